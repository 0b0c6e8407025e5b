package upstream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/saarportal/api-gateway/shared/models"
)

// WorkflowsHandler serves /workflows: starting and querying
// administrative processes on behalf of a tenant.
type WorkflowsHandler struct{}

func NewWorkflowsHandler() *WorkflowsHandler { return &WorkflowsHandler{} }

type workflowRequest struct {
	WorkflowType string                 `json:"workflow_type"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
}

type workflowResponse struct {
	WorkflowID   string    `json:"workflow_id"`
	WorkflowType string    `json:"workflow_type"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
}

func (h *WorkflowsHandler) Handle(_ context.Context, req *models.APIRequest) *models.UpstreamResult {
	var body workflowRequest
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return &models.UpstreamResult{StatusCode: 400, Err: "invalid workflow request body"}
		}
	}
	if body.WorkflowType == "" {
		return &models.UpstreamResult{StatusCode: 400, Err: "workflow_type is required"}
	}

	return jsonResult(201, workflowResponse{
		WorkflowID:   uuid.New().String(),
		WorkflowType: body.WorkflowType,
		Status:       "started",
		StartedAt:    time.Now().UTC(),
	})
}
