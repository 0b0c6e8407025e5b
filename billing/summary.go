package billing

import "github.com/saarportal/api-gateway/shared/models"

// Summary is the per-key billing view for the current cycle.
type Summary struct {
	APIKeyID          string  `json:"api_key_id"`
	KeyName           string  `json:"key_name"`
	Plan              string  `json:"plan"`
	BillingCycle      string  `json:"billing_cycle"`
	CurrentMonthUsage int64   `json:"current_month_usage"`
	CurrentMonthCost  float64 `json:"current_month_cost"`
	IncludedRequests  int64   `json:"included_requests"`
	OverageRequests   int64   `json:"overage_requests"`
	OverageCost       float64 `json:"overage_cost"`
	EstimatedTotal    float64 `json:"estimated_total"`
}

// Summarize splits a key's month-to-date usage into included and overage
// portions based on its plan settings.
func Summarize(key *models.APIKey) Summary {
	s := Summary{
		APIKeyID:          key.ID,
		KeyName:           key.Name,
		Plan:              key.Billing.Plan,
		BillingCycle:      key.Billing.BillingCycle,
		CurrentMonthUsage: key.Usage.CurrentMonthUsage,
		CurrentMonthCost:  round2(key.Usage.CurrentMonthCost),
		IncludedRequests:  key.Billing.IncludedRequests,
	}
	if s.IncludedRequests > 0 && s.CurrentMonthUsage > s.IncludedRequests {
		s.OverageRequests = s.CurrentMonthUsage - s.IncludedRequests
		s.OverageCost = round2(float64(s.OverageRequests) * key.Billing.OverageRate)
	}
	s.EstimatedTotal = round2(s.CurrentMonthCost + s.OverageCost)
	return s
}
