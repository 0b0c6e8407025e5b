package models

import (
	"time"
)

// Key environments.
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// Key lifecycle states. Revocation is a status change, keys are never
// hard-deleted.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusRevoked   = "revoked"
)

// Billing plans.
const (
	PlanFree         = "free"
	PlanBasic        = "basic"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
	PlanCustom       = "custom"
)

// EndpointWildcard grants access to every endpoint.
const EndpointWildcard = "*"

// RateLimits holds the per-window request caps attached to a key.
type RateLimits struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	RequestsPerHour   int `json:"requests_per_hour"`
	RequestsPerDay    int `json:"requests_per_day"`
	RequestsPerMonth  int `json:"requests_per_month"`
}

// KeyPermissions is the allow-list attached to a key. Endpoints supports
// the "*" wildcard; an entry otherwise matches by prefix.
type KeyPermissions struct {
	Endpoints      []string   `json:"endpoints"`
	RateLimits     RateLimits `json:"rate_limits"`
	IPWhitelist    []string   `json:"ip_whitelist,omitempty"`
	AllowedOrigins []string   `json:"allowed_origins,omitempty"`
}

// KeyUsage holds the rolling usage counters. Mutated only by the gateway
// after each processed call.
type KeyUsage struct {
	TotalRequests      int64      `json:"total_requests"`
	SuccessfulRequests int64      `json:"successful_requests"`
	FailedRequests     int64      `json:"failed_requests"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
	CurrentMonthUsage  int64      `json:"current_month_usage"`
	CurrentMonthCost   float64    `json:"current_month_cost"`
}

// KeyBilling carries the plan attached to a key.
type KeyBilling struct {
	Plan             string  `json:"plan"`
	CostPerRequest   float64 `json:"cost_per_request"`
	IncludedRequests int64   `json:"included_requests"`
	OverageRate      float64 `json:"overage_rate"`
	BillingCycle     string  `json:"billing_cycle"`
}

// APIKey is one issued credential. Only the SHA-256 hash of the secret is
// stored; the plaintext is returned exactly once at creation.
type APIKey struct {
	ID          string         `json:"id" db:"id"`
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	Name        string         `json:"name" db:"name"`
	KeyHash     string         `json:"-" db:"key_hash"`
	KeyPrefix   string         `json:"key_prefix" db:"key_prefix"`
	Environment string         `json:"environment" db:"environment"`
	Status      string         `json:"status" db:"status"`
	Permissions KeyPermissions `json:"permissions"`
	Usage       KeyUsage       `json:"usage_analytics"`
	Billing     KeyBilling     `json:"billing"`
	Description *string        `json:"description,omitempty" db:"description"`
	CreatedBy   string         `json:"created_by" db:"created_by"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
}

// IsExpired reports whether the key's expiry, if any, has passed.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// AllowsEndpoint checks the endpoint against the key's allow-list.
func (k *APIKey) AllowsEndpoint(endpoint string) bool {
	for _, p := range k.Permissions.Endpoints {
		if p == EndpointWildcard {
			return true
		}
		if p != "" && len(endpoint) >= len(p) && endpoint[:len(p)] == p {
			return true
		}
	}
	return false
}

type CreateAPIKeyRequest struct {
	Name        string         `json:"name" binding:"required"`
	Environment string         `json:"environment"`
	Permissions KeyPermissions `json:"permissions"`
	Billing     KeyBilling     `json:"billing"`
	Description *string        `json:"description"`
	CreatedBy   string         `json:"created_by"`
	ExpiresAt   *time.Time     `json:"expires_at"`
}

type CreateAPIKeyResponse struct {
	APIKey    APIKey `json:"api_key"`
	SecretKey string `json:"secret_key"` // Only returned once during creation
	Message   string `json:"message"`
}
