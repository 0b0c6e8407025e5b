package upstream

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/saarportal/api-gateway/shared/models"
)

func TestDispatchUnknownEndpoint(t *testing.T) {
	r := NewRegistry()
	res := r.Dispatch(context.Background(), &models.APIRequest{Endpoint: "/nowhere"})
	if res.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
}

func TestDispatchLongestPrefixWins(t *testing.T) {
	r := NewRegistry()
	r.Register("/documents", func(context.Context, *models.APIRequest) *models.UpstreamResult {
		return jsonResult(200, map[string]string{"handler": "generic"})
	})
	r.Register("/documents/ocr", func(context.Context, *models.APIRequest) *models.UpstreamResult {
		return jsonResult(200, map[string]string{"handler": "ocr"})
	})

	res := r.Dispatch(context.Background(), &models.APIRequest{Endpoint: "/documents/ocr/scan"})
	var payload map[string]string
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["handler"] != "ocr" {
		t.Fatalf("handler = %q, want ocr", payload["handler"])
	}
}

func TestChatEchoMode(t *testing.T) {
	h := NewChatHandler("", "")
	req := &models.APIRequest{
		Endpoint: "/chat",
		Body:     json.RawMessage(`{"message":"Hallo"}`),
	}
	res := h.Handle(context.Background(), req)
	if res.StatusCode != 200 {
		t.Fatalf("status = %d, want 200 (err %q)", res.StatusCode, res.Err)
	}

	var payload chatResponse
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Usage.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want the echo-mode estimate 150", payload.Usage.TotalTokens)
	}
	if payload.Model != defaultChatModel {
		t.Errorf("Model = %q, want %q", payload.Model, defaultChatModel)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	h := NewChatHandler("", "")
	res := h.Handle(context.Background(), &models.APIRequest{Endpoint: "/chat", Body: json.RawMessage(`{}`)})
	if res.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestDocumentsHandler(t *testing.T) {
	h := NewDocumentsHandler()
	req := &models.APIRequest{
		Endpoint: "/documents",
		Body:     json.RawMessage(`{"filename":"antrag.pdf","content":"aGVsbG8="}`),
	}
	res := h.Handle(context.Background(), req)
	if res.StatusCode != 202 {
		t.Fatalf("status = %d, want 202", res.StatusCode)
	}

	var payload documentResponse
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.DocumentID == "" || payload.Status != "processing" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestWorkflowsHandlerValidation(t *testing.T) {
	h := NewWorkflowsHandler()
	res := h.Handle(context.Background(), &models.APIRequest{Endpoint: "/workflows", Body: json.RawMessage(`{}`)})
	if res.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}

	res = h.Handle(context.Background(), &models.APIRequest{
		Endpoint: "/workflows",
		Body:     json.RawMessage(`{"workflow_type":"residence_registration"}`),
	})
	if res.StatusCode != 201 {
		t.Fatalf("status = %d, want 201", res.StatusCode)
	}
}

func TestEndpointsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("/workflows", NewWorkflowsHandler().Handle)
	r.Register("/chat", NewChatHandler("", "").Handle)
	r.Register("/documents", NewDocumentsHandler().Handle)

	eps := r.Endpoints()
	want := []string{"/chat", "/documents", "/workflows"}
	if len(eps) != len(want) {
		t.Fatalf("endpoints = %v", eps)
	}
	for i := range want {
		if eps[i] != want[i] {
			t.Fatalf("endpoints = %v, want %v", eps, want)
		}
	}
}
