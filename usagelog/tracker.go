package usagelog

import (
	"time"

	"github.com/saarportal/api-gateway/metrics"
	"github.com/saarportal/api-gateway/shared/models"
)

// Tracker is the metering entry point for the request pipeline. One
// record is written per attempt, rejections included.
type Tracker struct {
	pool    *WorkerPool
	enabled bool
}

func NewTracker(store MetricsStore, config *WorkerConfig) *Tracker {
	pool := NewWorkerPool(store, config)
	pool.Start()
	return &Tracker{pool: pool, enabled: true}
}

func (t *Tracker) SetEnabled(enabled bool) { t.enabled = enabled }

// RecordRequest meters one dispatched call and advances the key's
// counters by exactly one request.
func (t *Tracker) RecordRequest(key *models.APIKey, req *models.APIRequest, result *models.UpstreamResult, cost float64, responseTime time.Duration) {
	if !t.enabled {
		return
	}

	m := models.UsageMetric{
		TenantID:         key.TenantID,
		APIKeyID:         key.ID,
		Endpoint:         req.Endpoint,
		Method:           req.Method,
		Timestamp:        time.Now().UTC(),
		ResponseTimeMS:   int(responseTime.Milliseconds()),
		StatusCode:       result.StatusCode,
		RequestSizeBytes: len(req.Body),
		IPAddress:        req.IPAddress,
		UserAgent:        req.UserAgent,
		CostIncurred:     cost,
	}
	if result.Data != nil {
		m.ResponseSizeBytes = len(result.Data)
	}
	if req.Country != "" {
		m.Geo = &models.GeoLocation{Country: req.Country}
	}
	if result.Err != "" {
		m.Error = &models.ErrorDetails{Type: "upstream_error", Message: result.Err}
	}

	delta := models.UsageDelta{Total: 1, MonthUsage: 1, MonthCost: cost}
	if result.StatusCode >= 200 && result.StatusCode < 400 {
		delta.Successful = 1
	} else {
		delta.Failed = 1
	}

	if cost > 0 {
		metrics.GatewayCostTotal.WithLabelValues(req.Endpoint).Add(cost)
	}

	t.pool.Submit(&Job{Metric: m, KeyID: key.ID, Delta: &delta, CreatedAt: time.Now()})
}

// RecordRejection meters a rate-limited attempt. Rejections cost nothing
// and do not count against the key's usage.
func (t *Tracker) RecordRejection(key *models.APIKey, req *models.APIRequest) {
	if !t.enabled {
		return
	}

	m := models.UsageMetric{
		TenantID:         key.TenantID,
		APIKeyID:         key.ID,
		Endpoint:         req.Endpoint,
		Method:           req.Method,
		Timestamp:        time.Now().UTC(),
		StatusCode:       429,
		RequestSizeBytes: len(req.Body),
		IPAddress:        req.IPAddress,
		UserAgent:        req.UserAgent,
		RateLimitHit:     true,
	}
	if req.Country != "" {
		m.Geo = &models.GeoLocation{Country: req.Country}
	}

	t.pool.Submit(&Job{Metric: m, KeyID: key.ID, CreatedAt: time.Now()})
}

func (t *Tracker) Stop() { t.pool.Stop() }

func (t *Tracker) GetStats() Stats { return t.pool.GetStats() }
