package upstream

import (
	"context"
	"encoding/json"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/saarportal/api-gateway/shared/models"
)

const defaultChatModel = "gpt-4o-mini"

// ChatHandler serves the /chat endpoint family. Without an upstream API
// key it answers from a local echo stub so the gateway stays usable in
// development.
type ChatHandler struct {
	client *openai.Client
	model  string
}

func NewChatHandler(apiKey, model string) *ChatHandler {
	if model == "" {
		model = defaultChatModel
	}
	h := &ChatHandler{model: model}
	if apiKey != "" {
		h.client = openai.NewClient(apiKey)
	} else {
		log.Println("No upstream AI key configured, /chat runs in echo mode")
	}
	return h
}

type chatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Answer string    `json:"answer"`
	Model  string    `json:"model"`
	Usage  chatUsage `json:"usage"`
}

func (h *ChatHandler) Handle(ctx context.Context, req *models.APIRequest) *models.UpstreamResult {
	var body chatRequest
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return &models.UpstreamResult{StatusCode: 400, Err: "invalid chat request body"}
		}
	}
	if body.Message == "" {
		return &models.UpstreamResult{StatusCode: 400, Err: "message is required"}
	}

	model := body.Model
	if model == "" {
		model = h.model
	}

	if h.client == nil {
		return jsonResult(200, chatResponse{
			Answer: "Echo: " + body.Message,
			Model:  model,
			Usage:  chatUsage{PromptTokens: 50, CompletionTokens: 100, TotalTokens: 150},
		})
	}

	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: body.Message},
		},
	})
	if err != nil {
		log.Printf("Chat upstream call failed: %v", err)
		return &models.UpstreamResult{StatusCode: 502, Err: "chat upstream unavailable"}
	}
	if len(resp.Choices) == 0 {
		return &models.UpstreamResult{StatusCode: 502, Err: "chat upstream returned no choices"}
	}

	return jsonResult(200, chatResponse{
		Answer: resp.Choices[0].Message.Content,
		Model:  resp.Model,
		Usage: chatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	})
}
