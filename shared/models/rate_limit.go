package models

import "time"

// Exceed-handling strategies.
const (
	ActionBlock         = "block"
	ActionQueue         = "queue"
	ActionThrottle      = "throttle"
	ActionUpgradePrompt = "upgrade_prompt"
)

// TimeWindowCondition restricts a rule to a daily time window, HH:MM.
type TimeWindowCondition struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"`
}

// RuleConditions is a predicate over the incoming request. A rule applies
// only when every present condition matches; absent fields are wildcards.
type RuleConditions struct {
	APIKeyPlans       []string              `json:"api_key_plan,omitempty"`
	Endpoints         []string              `json:"endpoints,omitempty"`
	IPRanges          []string              `json:"ip_ranges,omitempty"`
	UserAgents        []string              `json:"user_agents,omitempty"`
	GeographicRegions []string              `json:"geographic_regions,omitempty"`
	TimeWindows       []TimeWindowCondition `json:"time_windows,omitempty"`
}

// RuleLimits holds independent caps per window plus burst and
// concurrent-request ceilings. A zero cap means unlimited for that window.
type RuleLimits struct {
	RequestsPerSecond  int `json:"requests_per_second"`
	RequestsPerMinute  int `json:"requests_per_minute"`
	RequestsPerHour    int `json:"requests_per_hour"`
	RequestsPerDay     int `json:"requests_per_day"`
	BurstCapacity      int `json:"burst_capacity"`
	ConcurrentRequests int `json:"concurrent_requests"`
}

type CustomResponse struct {
	StatusCode int               `json:"status_code"`
	Message    string            `json:"message"`
	Headers    map[string]string `json:"headers,omitempty"`
}

type RuleActions struct {
	OnLimitExceeded     string          `json:"on_limit_exceeded"`
	RetryAfterSeconds   int             `json:"retry_after_seconds,omitempty"`
	QueueTimeoutSeconds int             `json:"queue_timeout_seconds,omitempty"`
	ThrottleFactor      float64         `json:"throttle_factor,omitempty"`
	CustomResponse      *CustomResponse `json:"custom_response,omitempty"`
}

type RuleMonitoring struct {
	AlertThreshold       float64  `json:"alert_threshold"` // percentage of limit
	NotificationChannels []string `json:"notification_channels,omitempty"`
	LogViolations        bool     `json:"log_violations"`
}

// RateLimitRule is a named, prioritized throttling policy. A nil TenantID
// makes the rule global. Rules are read-only to the gateway at request time.
type RateLimitRule struct {
	ID         string         `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	TenantID   *string        `json:"tenant_id,omitempty" db:"tenant_id"`
	Priority   int            `json:"priority" db:"priority"`
	Conditions RuleConditions `json:"conditions"`
	Limits     RuleLimits     `json:"limits"`
	Actions    RuleActions    `json:"actions"`
	Monitoring RuleMonitoring `json:"monitoring"`
	Active     bool           `json:"active" db:"active"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}
