// Package billing turns completed gateway calls into charges based on the
// tenant's monetization rules.
package billing

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/saarportal/api-gateway/shared/models"
)

const (
	// defaultTokenEstimate is charged when a response carries no token
	// count of its own.
	defaultTokenEstimate = 100
	// defaultPerUnitPrice applies to usage-based rules without an
	// explicit per-unit price, in currency units per response byte.
	defaultPerUnitPrice = 0.001
)

// Calculator prices one request against the applicable monetization
// rules. It is stateless; charges from multiple matching rules add up.
type Calculator struct{}

// Calculate returns the total charge for the call, rounded to cents.
// Rule order does not affect the result.
func (Calculator) Calculate(key *models.APIKey, req *models.APIRequest, result *models.UpstreamResult, rules []models.MonetizationRule) float64 {
	var total float64
	for i := range rules {
		rule := &rules[i]
		if !rule.Active || !ruleApplies(rule, key, req, result) {
			continue
		}
		total += charge(rule, key, req, result)
	}
	if total < 0 {
		total = 0
	}
	return round2(total)
}

func charge(rule *models.MonetizationRule, key *models.APIKey, req *models.APIRequest, result *models.UpstreamResult) float64 {
	cfg := rule.PricingConfig
	switch rule.PricingModel {
	case models.PricingPerRequest:
		if cfg.PerRequestPrice != nil {
			return *cfg.PerRequestPrice
		}
		if cfg.BasePrice != nil {
			return *cfg.BasePrice
		}
		return 0

	case models.PricingPerToken:
		if cfg.PerTokenPrice == nil {
			return 0
		}
		return float64(extractTokens(result)) * *cfg.PerTokenPrice

	case models.PricingTiered:
		usage := key.Usage.CurrentMonthUsage
		for _, tier := range cfg.Tiers {
			if tier.Contains(usage) {
				return tier.Price
			}
		}
		return 0

	case models.PricingUsageBased:
		price := defaultPerUnitPrice
		if cfg.PerUnitPrice != nil {
			price = *cfg.PerUnitPrice
		}
		return float64(payloadSize(result)) * price

	case models.PricingSubscription:
		// Flat subscriptions are billed out of band, not per call.
		return 0
	}
	return 0
}

func payloadSize(result *models.UpstreamResult) int {
	if result == nil {
		return 0
	}
	return len(result.Data)
}

// extractTokens reads the token count from the upstream payload, falling
// back to a flat estimate when the handler reports none.
func extractTokens(result *models.UpstreamResult) int64 {
	if result == nil || len(result.Data) == 0 {
		return defaultTokenEstimate
	}
	var payload struct {
		TokensUsed *int64 `json:"tokens_used"`
		Usage      *struct {
			TotalTokens *int64 `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(result.Data, &payload); err != nil {
		return defaultTokenEstimate
	}
	if payload.TokensUsed != nil {
		return *payload.TokensUsed
	}
	if payload.Usage != nil && payload.Usage.TotalTokens != nil {
		return *payload.Usage.TotalTokens
	}
	return defaultTokenEstimate
}

// ruleApplies mirrors rate-limit condition matching: every present
// condition must hold.
func ruleApplies(rule *models.MonetizationRule, key *models.APIKey, req *models.APIRequest, result *models.UpstreamResult) bool {
	c := rule.Conditions

	if len(c.Endpoints) > 0 && !prefixMatch(req.Endpoint, c.Endpoints) {
		return false
	}
	if len(c.APIKeyPlans) > 0 && !contains(c.APIKeyPlans, key.Billing.Plan) {
		return false
	}
	if len(c.RequestTypes) > 0 && !contains(c.RequestTypes, req.Method) {
		return false
	}
	if len(c.AIModels) > 0 && !contains(c.AIModels, extractModel(result)) {
		return false
	}
	return true
}

func extractModel(result *models.UpstreamResult) string {
	if result == nil || len(result.Data) == 0 {
		return ""
	}
	var payload struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(result.Data, &payload); err != nil {
		return ""
	}
	return payload.Model
}

func prefixMatch(endpoint string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(endpoint, p) {
			return true
		}
	}
	return false
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
