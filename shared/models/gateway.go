package models

import "encoding/json"

// APIRequest is the gateway call boundary: everything the gateway needs to
// authenticate, gate and dispatch one call.
type APIRequest struct {
	APIKey    string            `json:"api_key"`
	Endpoint  string            `json:"endpoint"`
	Method    string            `json:"method"`
	IPAddress string            `json:"ip_address"`
	UserAgent string            `json:"user_agent"`
	Body      json.RawMessage   `json:"body,omitempty"`
	Query     map[string]string `json:"query_params,omitempty"`
	Country   string            `json:"country,omitempty"`
}

// UpstreamResult is what a dispatched handler returns. The gateway treats
// handlers as opaque: status plus payload or error.
type UpstreamResult struct {
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data,omitempty"`
	Err        string          `json:"error,omitempty"`
}

// APIResponse is the outcome returned to the caller of the gateway.
type APIResponse struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorCode   string          `json:"error_code,omitempty"`
	Cost        float64         `json:"cost"`
	RateLimited bool            `json:"rate_limited,omitempty"`
	RetryAfter  int             `json:"retry_after,omitempty"`
}
