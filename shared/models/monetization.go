package models

import "time"

// Pricing models.
const (
	PricingPerRequest   = "per_request"
	PricingPerToken     = "per_token"
	PricingTiered       = "tiered"
	PricingUsageBased   = "usage_based"
	PricingSubscription = "subscription"
)

// PricingTier covers usage levels in [From, To). A nil To leaves the tier
// open-ended.
type PricingTier struct {
	From  int64   `json:"from"`
	To    *int64  `json:"to,omitempty"`
	Price float64 `json:"price"`
}

// Contains reports whether usage falls inside the tier's range.
func (t PricingTier) Contains(usage int64) bool {
	return usage >= t.From && (t.To == nil || usage < *t.To)
}

type PricingConfig struct {
	BasePrice       *float64      `json:"base_price,omitempty"`
	PerRequestPrice *float64      `json:"per_request_price,omitempty"`
	PerTokenPrice   *float64      `json:"per_token_price,omitempty"`
	PerUnitPrice    *float64      `json:"per_unit_price,omitempty"`
	Tiers           []PricingTier `json:"tiers,omitempty"`
	IncludedQuota   *int64        `json:"included_quota,omitempty"`
	OverageRate     *float64      `json:"overage_rate,omitempty"`
}

// MonetizationConditions selects which calls a pricing rule applies to,
// with the same all-of semantics as rate-limit conditions.
type MonetizationConditions struct {
	Endpoints    []string `json:"endpoints,omitempty"`
	APIKeyPlans  []string `json:"api_key_plans,omitempty"`
	RequestTypes []string `json:"request_types,omitempty"`
	AIModels     []string `json:"ai_model_used,omitempty"`
}

// MonetizationRule converts a completed call into a charge. Multiple
// applicable rules are summed.
type MonetizationRule struct {
	ID               string                 `json:"id" db:"id"`
	Name             string                 `json:"name" db:"name"`
	TenantID         *string                `json:"tenant_id,omitempty" db:"tenant_id"`
	PricingModel     string                 `json:"pricing_model" db:"pricing_model"`
	PricingConfig    PricingConfig          `json:"pricing_config"`
	Conditions       MonetizationConditions `json:"conditions"`
	BillingFrequency string                 `json:"billing_frequency" db:"billing_frequency"`
	Currency         string                 `json:"currency" db:"currency"`
	Active           bool                   `json:"active" db:"active"`
	CreatedAt        time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at" db:"updated_at"`
}
