package models

import "time"

type GeoLocation struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

type ErrorDetails struct {
	Type    string `json:"error_type"`
	Message string `json:"error_message"`
}

// UsageMetric is one immutable record per processed call or rejection.
// Write-once, append-only; rejected attempts are recorded with status 429
// and zero cost.
type UsageMetric struct {
	ID                string        `json:"id" db:"id"`
	TenantID          string        `json:"tenant_id" db:"tenant_id"`
	APIKeyID          string        `json:"api_key_id" db:"api_key_id"`
	Endpoint          string        `json:"endpoint" db:"endpoint"`
	Method            string        `json:"method" db:"method"`
	Timestamp         time.Time     `json:"timestamp" db:"timestamp"`
	ResponseTimeMS    int           `json:"response_time_ms" db:"response_time_ms"`
	StatusCode        int           `json:"status_code" db:"status_code"`
	RequestSizeBytes  int           `json:"request_size_bytes" db:"request_size_bytes"`
	ResponseSizeBytes int           `json:"response_size_bytes" db:"response_size_bytes"`
	IPAddress         string        `json:"ip_address" db:"ip_address"`
	UserAgent         string        `json:"user_agent" db:"user_agent"`
	Geo               *GeoLocation  `json:"geographic_location,omitempty"`
	CostIncurred      float64       `json:"cost_incurred" db:"cost_incurred"`
	RateLimitHit      bool          `json:"rate_limit_hit" db:"rate_limit_hit"`
	Error             *ErrorDetails `json:"error_details,omitempty"`
}

// UsageDelta is a best-effort increment applied to a key's rolling
// counters after a call.
type UsageDelta struct {
	Total      int64
	Successful int64
	Failed     int64
	MonthUsage int64
	MonthCost  float64
}

// UsageSummary aggregates metrics over a time window.
type UsageSummary struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	AvgResponseTimeMS  float64 `json:"average_response_time"`
	TotalCost          float64 `json:"total_cost"`
	RateLimitHits      int64   `json:"rate_limit_hits"`
}

type EndpointCount struct {
	Endpoint string `json:"endpoint"`
	Count    int64  `json:"count"`
}

type HourlyUsage struct {
	Hour     int   `json:"hour"`
	Requests int64 `json:"requests"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type UsageAnalytics struct {
	Timeframe              string          `json:"timeframe"`
	Summary                UsageSummary    `json:"summary"`
	TopEndpoints           []EndpointCount `json:"top_endpoints"`
	UsageByHour            []HourlyUsage   `json:"usage_by_hour"`
	GeographicDistribution []CountryCount  `json:"geographic_distribution"`
}
