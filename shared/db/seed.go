package db

import (
	"context"
	"log"

	"github.com/saarportal/api-gateway/shared/models"
)

func float64Ptr(v float64) *float64 { return &v }

// SeedDefaultRules installs the baseline global policies on a fresh
// database: a platform-wide rate-limit rule and the standard pricing
// rules. Tenant-specific rules come in later through the admin surface.
func (s *Store) SeedDefaultRules(ctx context.Context) error {
	var ruleCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rate_limit_rules`).Scan(&ruleCount); err != nil {
		return err
	}
	if ruleCount > 0 {
		log.Println("Seed skipped, rate limit rules already exist")
		return nil
	}

	log.Println("Seeding default gateway rules...")

	globalRule := models.RateLimitRule{
		Name:     "global-default",
		Priority: 100,
		Limits: models.RuleLimits{
			RequestsPerSecond: 50,
			RequestsPerMinute: 1000,
			RequestsPerHour:   50000,
			RequestsPerDay:    1000000,
		},
		Actions: models.RuleActions{
			OnLimitExceeded: models.ActionBlock,
		},
		Monitoring: models.RuleMonitoring{
			AlertThreshold: 80,
			LogViolations:  true,
		},
		Active: true,
	}
	if err := s.CreateRateLimitRule(ctx, &globalRule); err != nil {
		return err
	}

	perRequest := models.MonetizationRule{
		Name:         "base-per-request",
		PricingModel: models.PricingPerRequest,
		PricingConfig: models.PricingConfig{
			PerRequestPrice: float64Ptr(0.01),
		},
		BillingFrequency: "real_time",
		Currency:         "EUR",
		Active:           true,
	}
	if err := s.CreateMonetizationRule(ctx, &perRequest); err != nil {
		return err
	}

	perToken := models.MonetizationRule{
		Name:         "chat-per-token",
		PricingModel: models.PricingPerToken,
		PricingConfig: models.PricingConfig{
			PerTokenPrice: float64Ptr(0.0001),
		},
		Conditions: models.MonetizationConditions{
			Endpoints: []string{"/chat"},
		},
		BillingFrequency: "real_time",
		Currency:         "EUR",
		Active:           true,
	}
	if err := s.CreateMonetizationRule(ctx, &perToken); err != nil {
		return err
	}

	log.Println("Default gateway rules seeded")
	return nil
}
