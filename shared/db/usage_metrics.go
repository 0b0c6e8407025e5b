package db

import (
	"context"
	"fmt"
	"time"

	"github.com/saarportal/api-gateway/shared/models"
)

// maxAggregateRows bounds analytics scans so a large window cannot pin the
// database.
const maxAggregateRows = 100000

// InsertUsageMetric appends one metrics row. Rows are never updated.
func (s *Store) InsertUsageMetric(ctx context.Context, m *models.UsageMetric) error {
	var country, region, city *string
	if m.Geo != nil {
		country, region, city = &m.Geo.Country, &m.Geo.Region, &m.Geo.City
	}
	var errType, errMsg *string
	if m.Error != nil {
		errType, errMsg = &m.Error.Type, &m.Error.Message
	}
	var keyID *string
	if m.APIKeyID != "" {
		keyID = &m.APIKeyID
	}

	query := `
		INSERT INTO api_usage_metrics (tenant_id, api_key_id, endpoint, method, timestamp,
			response_time_ms, status_code, request_size_bytes, response_size_bytes,
			ip_address, user_agent, country, region, city, cost_incurred, rate_limit_hit,
			error_type, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id`

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return s.db.QueryRowContext(ctx, query,
		m.TenantID, keyID, m.Endpoint, m.Method, ts,
		m.ResponseTimeMS, m.StatusCode, m.RequestSizeBytes, m.ResponseSizeBytes,
		m.IPAddress, m.UserAgent, country, region, city, m.CostIncurred, m.RateLimitHit,
		errType, errMsg,
	).Scan(&m.ID)
}

// GetUsageSummary aggregates a tenant's metrics since the given time.
func (s *Store) GetUsageSummary(ctx context.Context, tenantID string, since time.Time) (*models.UsageSummary, error) {
	query := `
		SELECT
			COUNT(*) AS total_requests,
			COUNT(CASE WHEN status_code >= 200 AND status_code < 400 THEN 1 END) AS successful_requests,
			COUNT(CASE WHEN status_code >= 400 THEN 1 END) AS failed_requests,
			COALESCE(AVG(response_time_ms), 0) AS avg_response_time,
			COALESCE(SUM(cost_incurred), 0) AS total_cost,
			COUNT(CASE WHEN rate_limit_hit THEN 1 END) AS rate_limit_hits
		FROM (
			SELECT status_code, response_time_ms, cost_incurred, rate_limit_hit
			FROM api_usage_metrics
			WHERE tenant_id = $1 AND timestamp >= $2
			ORDER BY timestamp DESC
			LIMIT $3
		) bounded`

	var summary models.UsageSummary
	err := s.db.QueryRowContext(ctx, query, tenantID, since, maxAggregateRows).Scan(
		&summary.TotalRequests, &summary.SuccessfulRequests, &summary.FailedRequests,
		&summary.AvgResponseTimeMS, &summary.TotalCost, &summary.RateLimitHits,
	)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetTopEndpoints returns the most-called endpoints since the given time.
func (s *Store) GetTopEndpoints(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.EndpointCount, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT endpoint, COUNT(*) AS count
		FROM api_usage_metrics
		WHERE tenant_id = $1 AND timestamp >= $2
		GROUP BY endpoint
		ORDER BY count DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, tenantID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.EndpointCount
	for rows.Next() {
		var ec models.EndpointCount
		if err := rows.Scan(&ec.Endpoint, &ec.Count); err != nil {
			return nil, err
		}
		result = append(result, ec)
	}
	return result, rows.Err()
}

// GetUsageByHour returns a full 0-23 histogram of requests per hour of day.
func (s *Store) GetUsageByHour(ctx context.Context, tenantID string, since time.Time) ([]models.HourlyUsage, error) {
	query := `
		SELECT EXTRACT(HOUR FROM timestamp)::int AS hour, COUNT(*) AS requests
		FROM api_usage_metrics
		WHERE tenant_id = $1 AND timestamp >= $2
		GROUP BY hour`

	rows, err := s.db.QueryContext(ctx, query, tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var hour int
		var requests int64
		if err := rows.Scan(&hour, &requests); err != nil {
			return nil, err
		}
		counts[hour] = requests
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	histogram := make([]models.HourlyUsage, 24)
	for h := 0; h < 24; h++ {
		histogram[h] = models.HourlyUsage{Hour: h, Requests: counts[h]}
	}
	return histogram, nil
}

// GetGeoDistribution returns request counts per country, largest first.
func (s *Store) GetGeoDistribution(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.CountryCount, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT COALESCE(NULLIF(country, ''), 'Unknown') AS country, COUNT(*) AS count
		FROM api_usage_metrics
		WHERE tenant_id = $1 AND timestamp >= $2
		GROUP BY country
		ORDER BY count DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, tenantID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.CountryCount
	for rows.Next() {
		var cc models.CountryCount
		if err := rows.Scan(&cc.Country, &cc.Count); err != nil {
			return nil, err
		}
		result = append(result, cc)
	}
	return result, rows.Err()
}

// GetTopLimitedEndpoints returns the endpoints with the most rate-limit
// rejections since the given time.
func (s *Store) GetTopLimitedEndpoints(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.EndpointCount, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `
		SELECT endpoint, COUNT(*) AS count
		FROM api_usage_metrics
		WHERE tenant_id = $1 AND timestamp >= $2 AND rate_limit_hit = true
		GROUP BY endpoint
		ORDER BY count DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, tenantID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.EndpointCount
	for rows.Next() {
		var ec models.EndpointCount
		if err := rows.Scan(&ec.Endpoint, &ec.Count); err != nil {
			return nil, err
		}
		result = append(result, ec)
	}
	return result, rows.Err()
}

// GetUsageAnalytics assembles the full analytics view for a timeframe
// ("24h", "7d", "30d", "90d").
func (s *Store) GetUsageAnalytics(ctx context.Context, tenantID, timeframe string) (*models.UsageAnalytics, error) {
	since, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	summary, err := s.GetUsageSummary(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}
	topEndpoints, err := s.GetTopEndpoints(ctx, tenantID, since, 10)
	if err != nil {
		return nil, err
	}
	byHour, err := s.GetUsageByHour(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}
	geo, err := s.GetGeoDistribution(ctx, tenantID, since, 10)
	if err != nil {
		return nil, err
	}

	return &models.UsageAnalytics{
		Timeframe:              timeframe,
		Summary:                *summary,
		TopEndpoints:           topEndpoints,
		UsageByHour:            byHour,
		GeographicDistribution: geo,
	}, nil
}

// ParseTimeframe converts a timeframe label into its window start.
func ParseTimeframe(timeframe string) (time.Time, error) {
	now := time.Now()
	switch timeframe {
	case "24h":
		return now.Add(-24 * time.Hour), nil
	case "7d", "":
		return now.Add(-7 * 24 * time.Hour), nil
	case "30d":
		return now.Add(-30 * 24 * time.Hour), nil
	case "90d":
		return now.Add(-90 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unknown timeframe %q", timeframe)
	}
}
