// Package upstream routes authenticated gateway calls to their backing
// service handlers.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/saarportal/api-gateway/shared/models"
)

// Handler executes one upstream call. Implementations report failures
// through UpstreamResult.Err rather than panicking.
type Handler func(ctx context.Context, req *models.APIRequest) *models.UpstreamResult

// Registry maps endpoint prefixes to handlers. Dispatch picks the
// longest matching prefix so /documents/ocr can override /documents.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs a handler for an endpoint prefix, replacing any
// previous registration.
func (r *Registry) Register(prefix string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = h
}

// Endpoints returns the registered prefixes, sorted.
func (r *Registry) Endpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eps := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		eps = append(eps, p)
	}
	sort.Strings(eps)
	return eps
}

// Dispatch runs the handler owning the request's endpoint. Unknown
// endpoints return a 404 result, never an error.
func (r *Registry) Dispatch(ctx context.Context, req *models.APIRequest) *models.UpstreamResult {
	r.mu.RLock()
	var (
		best    Handler
		bestLen = -1
	)
	for prefix, h := range r.handlers {
		if strings.HasPrefix(req.Endpoint, prefix) && len(prefix) > bestLen {
			best, bestLen = h, len(prefix)
		}
	}
	r.mu.RUnlock()

	if best == nil {
		return &models.UpstreamResult{
			StatusCode: 404,
			Err:        fmt.Sprintf("unknown endpoint %s", req.Endpoint),
		}
	}
	return best(ctx, req)
}

func jsonResult(status int, v interface{}) *models.UpstreamResult {
	data, err := json.Marshal(v)
	if err != nil {
		return &models.UpstreamResult{StatusCode: 500, Err: "failed to encode upstream response"}
	}
	return &models.UpstreamResult{StatusCode: status, Data: data}
}
