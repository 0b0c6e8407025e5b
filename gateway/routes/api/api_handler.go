// Package api exposes the gateway's management and proxy surface under
// /api/gateway, driven by an action parameter.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saarportal/api-gateway/billing"
	"github.com/saarportal/api-gateway/engine"
	"github.com/saarportal/api-gateway/ratelimit"
	"github.com/saarportal/api-gateway/shared/db"
	"github.com/saarportal/api-gateway/shared/models"
	"github.com/saarportal/api-gateway/usagelog"
)

const tenantHeader = "X-Tenant-ID"

// Handler bundles the dependencies the API surface needs.
type Handler struct {
	Store   *db.Store
	Gateway *engine.Gateway
	Tracker *usagelog.Tracker
	Limiter *ratelimit.Limiter
}

func tenantID(c *gin.Context) (string, bool) {
	tenant := c.GetHeader(tenantHeader)
	if tenant == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": tenantHeader + " header is required"})
		return "", false
	}
	return tenant, true
}

// Post handles the write actions: create_api_key, proxy_request and
// validate_key.
func (h *Handler) Post(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	switch envelope.Action {
	case "create_api_key":
		h.createAPIKey(c, raw)
	case "proxy_request":
		h.proxyRequest(c, raw)
	case "validate_key":
		h.validateKey(c, raw)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + envelope.Action})
	}
}

func (h *Handler) createAPIKey(c *gin.Context, raw []byte) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req models.CreateAPIKeyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key request"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	key, secret, err := h.Store.CreateAPIKey(c.Request.Context(), tenant, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create API key"})
		return
	}

	c.JSON(http.StatusCreated, models.CreateAPIKeyResponse{
		APIKey:    *key,
		SecretKey: secret,
		Message:   "Store this key securely, it will not be shown again",
	})
}

func (h *Handler) proxyRequest(c *gin.Context, raw []byte) {
	var req models.APIRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proxy request"})
		return
	}
	if req.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}
	if req.Method == "" {
		req.Method = http.MethodPost
	}
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()
	if req.Country == "" {
		req.Country = c.GetHeader("X-Country")
	}

	writeGatewayResponse(c, h.Gateway.Handle(c.Request.Context(), &req))
}

func (h *Handler) validateKey(c *gin.Context, raw []byte) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(raw, &req); err != nil || req.APIKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key is required"})
		return
	}

	key, errResp := h.Gateway.Validate(c.Request.Context(), req.APIKey)
	if errResp != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": errResp.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "api_key": key})
}

// Get handles the read actions: list_keys, usage_analytics,
// billing_summary and rate_limit_status.
func (h *Handler) Get(c *gin.Context) {
	switch action := c.Query("action"); action {
	case "list_keys":
		h.listKeys(c)
	case "usage_analytics":
		h.usageAnalytics(c)
	case "billing_summary":
		h.billingSummary(c)
	case "rate_limit_status":
		h.rateLimitStatus(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + action})
	}
}

func (h *Handler) listKeys(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	keys, err := h.Store.ListAPIKeys(c.Request.Context(), tenant)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list API keys"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": keys, "count": len(keys)})
}

func (h *Handler) usageAnalytics(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	analytics, err := h.Store.GetUsageAnalytics(c.Request.Context(), tenant, c.Query("timeframe"))
	if err != nil {
		if strings.Contains(err.Error(), "unknown timeframe") {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load usage analytics"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *Handler) billingSummary(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	keyID := c.Query("key_id")
	if keyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key_id is required"})
		return
	}

	key, err := h.Store.GetAPIKeyByID(c.Request.Context(), keyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load API key"})
		return
	}
	if key == nil || key.TenantID != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}
	c.JSON(http.StatusOK, billing.Summarize(key))
}

func (h *Handler) rateLimitStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"limiter":     h.Limiter.Snapshot(),
		"usage_queue": h.Tracker.GetStats(),
	})
}

// UpdateKey changes a key's status, PUT /api/gateway/keys/:id.
func (h *Handler) UpdateKey(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	h.changeKeyStatus(c, tenant, c.Param("id"), req.Status)
}

// RevokeKey marks a key revoked, DELETE /api/gateway/keys/:id. Keys are
// never hard-deleted.
func (h *Handler) RevokeKey(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	h.changeKeyStatus(c, tenant, c.Param("id"), models.StatusRevoked)
}

func (h *Handler) changeKeyStatus(c *gin.Context, tenant, keyID, status string) {
	key, err := h.Store.GetAPIKeyByID(c.Request.Context(), keyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load API key"})
		return
	}
	if key == nil || key.TenantID != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}

	if err := h.Store.UpdateAPIKeyStatus(c.Request.Context(), keyID, status); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": keyID, "status": status})
}

// Proxy is the catch-all route: any unmatched path is treated as an
// upstream endpoint, with the secret taken from headers.
func (h *Handler) Proxy(c *gin.Context) {
	secret := c.GetHeader("X-API-Key")
	if secret == "" {
		auth := c.GetHeader("Authorization")
		secret = strings.TrimPrefix(auth, "Bearer ")
		if secret == auth {
			secret = ""
		}
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	query := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	req := &models.APIRequest{
		APIKey:    secret,
		Endpoint:  c.Request.URL.Path,
		Method:    c.Request.Method,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Body:      body,
		Query:     query,
		Country:   c.GetHeader("X-Country"),
	}

	writeGatewayResponse(c, h.Gateway.Handle(c.Request.Context(), req))
}

func writeGatewayResponse(c *gin.Context, resp *models.APIResponse) {
	if resp.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(resp.RetryAfter))
	}
	c.JSON(responseStatus(resp), resp)
}

// responseStatus maps gateway error codes onto HTTP status codes.
func responseStatus(resp *models.APIResponse) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.ErrorCode {
	case engine.ErrCodeInvalidKey:
		return http.StatusUnauthorized
	case engine.ErrCodeInsufficientPerms:
		return http.StatusForbidden
	case engine.ErrCodeRateLimited, engine.ErrCodeQueueTimeout:
		return http.StatusTooManyRequests
	case engine.ErrCodeUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
