package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/saarportal/api-gateway/shared/keys"
	"github.com/saarportal/api-gateway/shared/models"
)

const apiKeyColumns = `id, tenant_id, name, key_hash, key_prefix, environment, status,
	permissions, billing, total_requests, successful_requests, failed_requests,
	current_month_usage, current_month_cost, last_used_at, description, created_by,
	expires_at, created_at, updated_at`

// CreateAPIKey builds and persists a key record and returns it together
// with the plaintext secret. The secret is not stored and cannot be
// retrieved again.
func (s *Store) CreateAPIKey(ctx context.Context, tenantID string, req models.CreateAPIKeyRequest) (*models.APIKey, string, error) {
	secret, err := keys.Generate()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate API key: %w", err)
	}

	key := models.APIKey{
		TenantID:    tenantID,
		Name:        req.Name,
		KeyHash:     keys.Hash(secret),
		KeyPrefix:   keys.Prefix(secret),
		Environment: req.Environment,
		Status:      models.StatusActive,
		Permissions: req.Permissions,
		Billing:     req.Billing,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		ExpiresAt:   req.ExpiresAt,
	}
	if key.Environment == "" {
		key.Environment = models.EnvProduction
	}
	if len(key.Permissions.Endpoints) == 0 {
		key.Permissions.Endpoints = []string{models.EndpointWildcard}
	}
	if key.Billing.Plan == "" {
		key.Billing.Plan = models.PlanFree
	}
	if key.CreatedBy == "" {
		key.CreatedBy = "system"
	}

	permissions, err := json.Marshal(key.Permissions)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode permissions: %w", err)
	}
	billing, err := json.Marshal(key.Billing)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode billing: %w", err)
	}

	query := `
		INSERT INTO api_keys (tenant_id, name, key_hash, key_prefix, environment, status,
			permissions, billing, description, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRowContext(ctx, query,
		key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Environment, key.Status,
		permissions, billing, key.Description, key.CreatedBy, key.ExpiresAt,
	).Scan(&key.ID, &key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create API key: %w", err)
	}

	return &key, secret, nil
}

// GetAPIKeyByHash looks a key up by its fingerprint. Returns (nil, nil)
// when no key matches; status filtering is the caller's concern so that
// revoked keys fail closed rather than appear missing.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`

	key, err := scanAPIKey(s.db.QueryRowContext(ctx, query, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GetAPIKeyByID fetches a single key record.
func (s *Store) GetAPIKeyByID(ctx context.Context, id string) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`

	key, err := scanAPIKey(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// ListAPIKeys returns all keys owned by a tenant, newest first.
func (s *Store) ListAPIKeys(ctx context.Context, tenantID string) ([]models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE tenant_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *key)
	}
	return result, rows.Err()
}

// UpdateKeyUsage applies counter deltas in a single atomic UPDATE. Callers
// treat this as best-effort: a failure here must never fail the request
// that triggered it.
func (s *Store) UpdateKeyUsage(ctx context.Context, id string, delta models.UsageDelta) error {
	query := `
		UPDATE api_keys SET
			total_requests = total_requests + $2,
			successful_requests = successful_requests + $3,
			failed_requests = failed_requests + $4,
			current_month_usage = current_month_usage + $5,
			current_month_cost = current_month_cost + $6,
			last_used_at = NOW(),
			updated_at = NOW()
		WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query,
		id, delta.Total, delta.Successful, delta.Failed, delta.MonthUsage, delta.MonthCost)
	return err
}

// UpdateAPIKeyStatus transitions a key between active/suspended/revoked.
func (s *Store) UpdateAPIKeyStatus(ctx context.Context, id, status string) error {
	switch status {
	case models.StatusActive, models.StatusSuspended, models.StatusRevoked:
	default:
		return fmt.Errorf("invalid key status %q", status)
	}

	query := `UPDATE api_keys SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("API key %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAPIKey(row rowScanner) (*models.APIKey, error) {
	var key models.APIKey
	var permissions, billing []byte

	err := row.Scan(
		&key.ID, &key.TenantID, &key.Name, &key.KeyHash, &key.KeyPrefix,
		&key.Environment, &key.Status, &permissions, &billing,
		&key.Usage.TotalRequests, &key.Usage.SuccessfulRequests, &key.Usage.FailedRequests,
		&key.Usage.CurrentMonthUsage, &key.Usage.CurrentMonthCost, &key.Usage.LastUsedAt,
		&key.Description, &key.CreatedBy, &key.ExpiresAt, &key.CreatedAt, &key.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(permissions, &key.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions for key %s: %w", key.ID, err)
	}
	if err := json.Unmarshal(billing, &key.Billing); err != nil {
		return nil, fmt.Errorf("failed to decode billing for key %s: %w", key.ID, err)
	}

	return &key, nil
}
