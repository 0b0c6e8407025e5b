// Package engine is the gateway's request orchestrator. Every call runs
// the same pipeline: authenticate, authorize, throttle, dispatch, meter.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/saarportal/api-gateway/ratelimit"
	"github.com/saarportal/api-gateway/shared/keys"
	"github.com/saarportal/api-gateway/shared/models"
)

// Error codes surfaced to API consumers.
const (
	ErrCodeInvalidKey        = "invalid_api_key"
	ErrCodeInsufficientPerms = "insufficient_permissions"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeQueueTimeout      = "queue_timeout"
	ErrCodeUpstreamError     = "upstream_error"
	ErrCodeInternal          = "internal_error"
)

// KeyStore resolves API keys by their hash.
type KeyStore interface {
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
}

// RuleStore loads the policies that can apply to a tenant.
type RuleStore interface {
	GetRateLimitRules(ctx context.Context, tenantID string) ([]models.RateLimitRule, error)
	GetMonetizationRules(ctx context.Context, tenantID string) ([]models.MonetizationRule, error)
}

// RateLimiter gates one request against the applicable rules.
type RateLimiter interface {
	Check(key *models.APIKey, rules []models.RateLimitRule, req ratelimit.RequestInfo) (ratelimit.Decision, func())
}

// Dispatcher executes the upstream call.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *models.APIRequest) *models.UpstreamResult
}

// CostCalculator prices a completed call.
type CostCalculator interface {
	Calculate(key *models.APIKey, req *models.APIRequest, result *models.UpstreamResult, rules []models.MonetizationRule) float64
}

// Recorder meters processed and rejected calls.
type Recorder interface {
	RecordRequest(key *models.APIKey, req *models.APIRequest, result *models.UpstreamResult, cost float64, responseTime time.Duration)
	RecordRejection(key *models.APIKey, req *models.APIRequest)
}

// Gateway wires the pipeline stages together.
type Gateway struct {
	keys       KeyStore
	rules      RuleStore
	limiter    RateLimiter
	dispatcher Dispatcher
	calculator CostCalculator
	recorder   Recorder
	now        func() time.Time
	sleep      func(context.Context, time.Duration)
}

func NewGateway(ks KeyStore, rs RuleStore, rl RateLimiter, d Dispatcher, cc CostCalculator, rec Recorder) *Gateway {
	return &Gateway{
		keys:       ks,
		rules:      rs,
		limiter:    rl,
		dispatcher: d,
		calculator: cc,
		recorder:   rec,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func errorResponse(code, message string) *models.APIResponse {
	return &models.APIResponse{Success: false, Error: message, ErrorCode: code}
}

// Handle runs one request through the full pipeline and always returns a
// response, never panics.
func (g *Gateway) Handle(ctx context.Context, req *models.APIRequest) (resp *models.APIResponse) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Gateway panic handling %s %s: %v", req.Method, req.Endpoint, r)
			resp = errorResponse(ErrCodeInternal, "internal gateway error")
		}
	}()

	start := g.now()

	// Authenticate.
	key, errResp := g.authenticate(ctx, req.APIKey)
	if errResp != nil {
		return errResp
	}

	// Authorize.
	if errResp := g.authorize(key, req); errResp != nil {
		return errResp
	}

	// Throttle. A rule-store outage degrades to key-level limits only,
	// it does not take the gateway down.
	rules, err := g.rules.GetRateLimitRules(ctx, key.TenantID)
	if err != nil {
		log.Printf("Failed to load rate limit rules for tenant %s: %v", key.TenantID, err)
		rules = nil
	}

	decision, release := g.limiter.Check(key, rules, ratelimit.RequestInfo{
		Endpoint:  req.Endpoint,
		ClientIP:  req.IPAddress,
		UserAgent: req.UserAgent,
		Country:   req.Country,
	})
	defer release()

	if !decision.Allowed {
		g.recorder.RecordRejection(key, req)
		code := ErrCodeRateLimited
		if decision.QueueTimeout {
			code = ErrCodeQueueTimeout
		}
		r := errorResponse(code, decision.Reason)
		r.RateLimited = true
		r.RetryAfter = decision.RetryAfter
		if decision.CustomResponse != nil && decision.CustomResponse.Message != "" {
			r.Error = decision.CustomResponse.Message
		}
		return r
	}
	if decision.Throttled && decision.Delay > 0 {
		g.sleep(ctx, decision.Delay)
	}

	// Dispatch.
	result := g.dispatch(ctx, req)

	// Meter and bill. Upstream errors are costed too, at their actual
	// response size.
	var cost float64
	monetization, err := g.rules.GetMonetizationRules(ctx, key.TenantID)
	if err != nil {
		log.Printf("Failed to load monetization rules for tenant %s: %v", key.TenantID, err)
	} else {
		cost = g.calculator.Calculate(key, req, result, monetization)
	}
	g.recorder.RecordRequest(key, req, result, cost, g.now().Sub(start))

	if result.StatusCode >= 400 {
		msg := result.Err
		if msg == "" {
			msg = fmt.Sprintf("upstream returned status %d", result.StatusCode)
		}
		r := errorResponse(ErrCodeUpstreamError, msg)
		r.Data = result.Data
		r.Cost = cost
		return r
	}

	return &models.APIResponse{Success: true, Data: result.Data, Cost: cost}
}

// dispatch shields the pipeline from handler panics.
func (g *Gateway) dispatch(ctx context.Context, req *models.APIRequest) (result *models.UpstreamResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Upstream handler panic on %s: %v", req.Endpoint, r)
			result = &models.UpstreamResult{StatusCode: 500, Err: "upstream handler failure"}
		}
	}()
	return g.dispatcher.Dispatch(ctx, req)
}

func (g *Gateway) authenticate(ctx context.Context, secret string) (*models.APIKey, *models.APIResponse) {
	if secret == "" {
		return nil, errorResponse(ErrCodeInvalidKey, "API key is required")
	}

	key, err := g.keys.GetAPIKeyByHash(ctx, keys.Hash(secret))
	if err != nil {
		log.Printf("API key lookup failed: %v", err)
		return nil, errorResponse(ErrCodeInternal, "failed to validate API key")
	}
	if key == nil {
		return nil, errorResponse(ErrCodeInvalidKey, "invalid API key")
	}
	if key.Status != models.StatusActive {
		return nil, errorResponse(ErrCodeInvalidKey, "API key is "+key.Status)
	}
	if key.IsExpired(g.now()) {
		return nil, errorResponse(ErrCodeInvalidKey, "API key has expired")
	}
	return key, nil
}

func (g *Gateway) authorize(key *models.APIKey, req *models.APIRequest) *models.APIResponse {
	if !key.AllowsEndpoint(req.Endpoint) {
		return errorResponse(ErrCodeInsufficientPerms,
			fmt.Sprintf("API key does not permit endpoint %s", req.Endpoint))
	}
	if len(key.Permissions.IPWhitelist) > 0 && !ipAllowed(req.IPAddress, key.Permissions.IPWhitelist) {
		return errorResponse(ErrCodeInsufficientPerms, "request IP is not whitelisted for this key")
	}
	return nil
}

func ipAllowed(ip string, whitelist []string) bool {
	for _, allowed := range whitelist {
		if allowed == ip {
			return true
		}
	}
	return false
}

// Validate checks a secret without running a request through the
// pipeline. Used by the validate_key action.
func (g *Gateway) Validate(ctx context.Context, secret string) (*models.APIKey, *models.APIResponse) {
	return g.authenticate(ctx, secret)
}
