package upstream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/saarportal/api-gateway/shared/models"
)

// DocumentsHandler serves /documents: submission and text extraction of
// citizen-uploaded documents.
type DocumentsHandler struct{}

func NewDocumentsHandler() *DocumentsHandler { return &DocumentsHandler{} }

type documentRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Content     string `json:"content,omitempty"` // base64
}

type documentResponse struct {
	DocumentID  string    `json:"document_id"`
	Filename    string    `json:"filename"`
	SizeBytes   int       `json:"size_bytes"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (h *DocumentsHandler) Handle(_ context.Context, req *models.APIRequest) *models.UpstreamResult {
	var body documentRequest
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return &models.UpstreamResult{StatusCode: 400, Err: "invalid document request body"}
		}
	}
	if body.Filename == "" {
		return &models.UpstreamResult{StatusCode: 400, Err: "filename is required"}
	}

	return jsonResult(202, documentResponse{
		DocumentID:  uuid.New().String(),
		Filename:    body.Filename,
		SizeBytes:   len(body.Content),
		Status:      "processing",
		SubmittedAt: time.Now().UTC(),
	})
}
