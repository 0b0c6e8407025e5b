package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/saarportal/api-gateway/shared/models"
)

// GetRateLimitRules returns the active rules that can apply to a tenant:
// global rules (tenant unset) plus the tenant's own, in priority order
// (lower number first).
func (s *Store) GetRateLimitRules(ctx context.Context, tenantID string) ([]models.RateLimitRule, error) {
	query := `
		SELECT id, name, tenant_id, priority, conditions, limits, actions, monitoring,
		       active, created_at, updated_at
		FROM rate_limit_rules
		WHERE active = true AND (tenant_id IS NULL OR tenant_id = $1)
		ORDER BY priority ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.RateLimitRule
	for rows.Next() {
		var rule models.RateLimitRule
		var conditions, limits, actions, monitoring []byte

		err := rows.Scan(&rule.ID, &rule.Name, &rule.TenantID, &rule.Priority,
			&conditions, &limits, &actions, &monitoring,
			&rule.Active, &rule.CreatedAt, &rule.UpdatedAt)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("failed to decode conditions for rule %s: %w", rule.ID, err)
		}
		if err := json.Unmarshal(limits, &rule.Limits); err != nil {
			return nil, fmt.Errorf("failed to decode limits for rule %s: %w", rule.ID, err)
		}
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode actions for rule %s: %w", rule.ID, err)
		}
		if err := json.Unmarshal(monitoring, &rule.Monitoring); err != nil {
			return nil, fmt.Errorf("failed to decode monitoring for rule %s: %w", rule.ID, err)
		}

		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// CreateRateLimitRule persists a new throttling policy. Pass a nil
// tenantID for a global rule.
func (s *Store) CreateRateLimitRule(ctx context.Context, rule *models.RateLimitRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	limits, err := json.Marshal(rule.Limits)
	if err != nil {
		return fmt.Errorf("failed to encode limits: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}
	monitoring, err := json.Marshal(rule.Monitoring)
	if err != nil {
		return fmt.Errorf("failed to encode monitoring: %w", err)
	}

	query := `
		INSERT INTO rate_limit_rules (name, tenant_id, priority, conditions, limits, actions, monitoring, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowContext(ctx, query,
		rule.Name, rule.TenantID, rule.Priority, conditions, limits, actions, monitoring, rule.Active,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

// GetMonetizationRules returns the active pricing rules that can apply to
// a tenant, global rules included.
func (s *Store) GetMonetizationRules(ctx context.Context, tenantID string) ([]models.MonetizationRule, error) {
	query := `
		SELECT id, name, tenant_id, pricing_model, pricing_config, conditions,
		       billing_frequency, currency, active, created_at, updated_at
		FROM monetization_rules
		WHERE active = true AND (tenant_id IS NULL OR tenant_id = $1)
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.MonetizationRule
	for rows.Next() {
		var rule models.MonetizationRule
		var pricingConfig, conditions []byte

		err := rows.Scan(&rule.ID, &rule.Name, &rule.TenantID, &rule.PricingModel,
			&pricingConfig, &conditions, &rule.BillingFrequency, &rule.Currency,
			&rule.Active, &rule.CreatedAt, &rule.UpdatedAt)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(pricingConfig, &rule.PricingConfig); err != nil {
			return nil, fmt.Errorf("failed to decode pricing config for rule %s: %w", rule.ID, err)
		}
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("failed to decode conditions for rule %s: %w", rule.ID, err)
		}

		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// CreateMonetizationRule persists a new pricing policy.
func (s *Store) CreateMonetizationRule(ctx context.Context, rule *models.MonetizationRule) error {
	pricingConfig, err := json.Marshal(rule.PricingConfig)
	if err != nil {
		return fmt.Errorf("failed to encode pricing config: %w", err)
	}
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}

	query := `
		INSERT INTO monetization_rules (name, tenant_id, pricing_model, pricing_config,
			conditions, billing_frequency, currency, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowContext(ctx, query,
		rule.Name, rule.TenantID, rule.PricingModel, pricingConfig,
		conditions, rule.BillingFrequency, rule.Currency, rule.Active,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}
