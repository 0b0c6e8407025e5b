package billing

import (
	"encoding/json"
	"testing"

	"github.com/saarportal/api-gateway/shared/models"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func billingKey(plan string) *models.APIKey {
	return &models.APIKey{
		ID:      "key-1",
		Billing: models.KeyBilling{Plan: plan},
	}
}

func chatRequest() *models.APIRequest {
	return &models.APIRequest{Endpoint: "/chat", Method: "POST"}
}

func okResult(data string) *models.UpstreamResult {
	return &models.UpstreamResult{StatusCode: 200, Data: json.RawMessage(data)}
}

func perRequestRule(price float64) models.MonetizationRule {
	return models.MonetizationRule{
		ID:            "pr",
		Name:          "per-request",
		PricingModel:  models.PricingPerRequest,
		PricingConfig: models.PricingConfig{PerRequestPrice: f64(price)},
		Active:        true,
	}
}

func TestPerRequestPricing(t *testing.T) {
	var calc Calculator
	cost := calc.Calculate(billingKey(models.PlanFree), chatRequest(), okResult(`{}`),
		[]models.MonetizationRule{perRequestRule(0.01)})
	if cost != 0.01 {
		t.Fatalf("cost = %v, want 0.01", cost)
	}
}

func TestPerTokenPricingFromPayload(t *testing.T) {
	var calc Calculator
	rule := models.MonetizationRule{
		ID:            "pt",
		PricingModel:  models.PricingPerToken,
		PricingConfig: models.PricingConfig{PerTokenPrice: f64(0.0001)},
		Active:        true,
	}

	cost := calc.Calculate(billingKey(models.PlanFree), chatRequest(),
		okResult(`{"tokens_used": 500}`), []models.MonetizationRule{rule})
	if cost != 0.05 {
		t.Fatalf("cost = %v, want 0.05 for 500 tokens", cost)
	}

	cost = calc.Calculate(billingKey(models.PlanFree), chatRequest(),
		okResult(`{"usage": {"total_tokens": 200}}`), []models.MonetizationRule{rule})
	if cost != 0.02 {
		t.Fatalf("cost = %v, want 0.02 for nested token count", cost)
	}
}

func TestPerTokenPricingDefaultEstimate(t *testing.T) {
	var calc Calculator
	rule := models.MonetizationRule{
		ID:            "pt",
		PricingModel:  models.PricingPerToken,
		PricingConfig: models.PricingConfig{PerTokenPrice: f64(0.0001)},
		Active:        true,
	}

	cost := calc.Calculate(billingKey(models.PlanFree), chatRequest(),
		okResult(`{"answer": "hello"}`), []models.MonetizationRule{rule})
	if cost != 0.01 {
		t.Fatalf("cost = %v, want 0.01 from the 100-token estimate", cost)
	}
}

func TestTieredPricingUsesMonthUsage(t *testing.T) {
	var calc Calculator
	rule := models.MonetizationRule{
		ID:           "tier",
		PricingModel: models.PricingTiered,
		PricingConfig: models.PricingConfig{
			Tiers: []models.PricingTier{
				{From: 0, To: i64(1000), Price: 0.02},
				{From: 1000, To: i64(10000), Price: 0.01},
				{From: 10000, Price: 0.005},
			},
		},
		Active: true,
	}
	rules := []models.MonetizationRule{rule}

	cases := []struct {
		usage int64
		want  float64
	}{
		{0, 0.02},
		{999, 0.02},
		{1000, 0.01}, // lower bound is inclusive
		{9999, 0.01},
		{10000, 0.01}, // 0.005 rounds up at cent granularity
		{50000, 0.01},
	}
	for _, tc := range cases {
		key := billingKey(models.PlanFree)
		key.Usage.CurrentMonthUsage = tc.usage
		if got := calc.Calculate(key, chatRequest(), okResult(`{}`), rules); got != tc.want {
			t.Errorf("usage %d: cost = %v, want %v", tc.usage, got, tc.want)
		}
	}
}

func TestUsageBasedPricing(t *testing.T) {
	var calc Calculator
	rule := models.MonetizationRule{
		ID:            "ub",
		PricingModel:  models.PricingUsageBased,
		PricingConfig: models.PricingConfig{PerUnitPrice: f64(0.001)},
		Active:        true,
	}

	result := okResult(`{"answer":"hello"}`)

	want := round2(float64(len(result.Data)) * 0.001)
	got := calc.Calculate(billingKey(models.PlanFree), chatRequest(), result, []models.MonetizationRule{rule})
	if got != want {
		t.Fatalf("cost = %v, want %v", got, want)
	}

	// Only response bytes count; the request body must not change the
	// charge.
	req := chatRequest()
	req.Body = json.RawMessage(`{"q":"a much longer request body"}`)
	if got := calc.Calculate(billingKey(models.PlanFree), req, result, []models.MonetizationRule{rule}); got != want {
		t.Fatalf("cost with request body = %v, want %v", got, want)
	}
}

func TestSubscriptionChargesNothingPerCall(t *testing.T) {
	var calc Calculator
	rule := models.MonetizationRule{
		ID:            "sub",
		PricingModel:  models.PricingSubscription,
		PricingConfig: models.PricingConfig{BasePrice: f64(99)},
		Active:        true,
	}
	cost := calc.Calculate(billingKey(models.PlanEnterprise), chatRequest(), okResult(`{}`),
		[]models.MonetizationRule{rule})
	if cost != 0 {
		t.Fatalf("cost = %v, want 0 for subscription pricing", cost)
	}
}

func TestMultipleRulesSum(t *testing.T) {
	var calc Calculator
	perToken := models.MonetizationRule{
		ID:            "pt",
		PricingModel:  models.PricingPerToken,
		PricingConfig: models.PricingConfig{PerTokenPrice: f64(0.0001)},
		Conditions:    models.MonetizationConditions{Endpoints: []string{"/chat"}},
		Active:        true,
	}
	rules := []models.MonetizationRule{perRequestRule(0.01), perToken}

	cost := calc.Calculate(billingKey(models.PlanFree), chatRequest(),
		okResult(`{"tokens_used": 500}`), rules)
	if cost != 0.06 {
		t.Fatalf("cost = %v, want 0.06 (0.01 + 0.05)", cost)
	}

	// Order independence.
	reversed := []models.MonetizationRule{rules[1], rules[0]}
	if got := calc.Calculate(billingKey(models.PlanFree), chatRequest(),
		okResult(`{"tokens_used": 500}`), reversed); got != cost {
		t.Fatalf("reversed order cost = %v, want %v", got, cost)
	}
}

func TestConditionsFilterRules(t *testing.T) {
	var calc Calculator
	rule := perRequestRule(0.5)
	rule.Conditions = models.MonetizationConditions{
		Endpoints:   []string{"/documents"},
		APIKeyPlans: []string{models.PlanEnterprise},
	}
	rules := []models.MonetizationRule{rule}

	if cost := calc.Calculate(billingKey(models.PlanFree), chatRequest(), okResult(`{}`), rules); cost != 0 {
		t.Fatalf("cost = %v, want 0 when conditions do not match", cost)
	}

	req := &models.APIRequest{Endpoint: "/documents/ocr", Method: "POST"}
	if cost := calc.Calculate(billingKey(models.PlanEnterprise), req, okResult(`{}`), rules); cost != 0.5 {
		t.Fatalf("cost = %v, want 0.5 when all conditions match", cost)
	}
}

func TestInactiveRuleChargesNothing(t *testing.T) {
	var calc Calculator
	rule := perRequestRule(0.5)
	rule.Active = false
	if cost := calc.Calculate(billingKey(models.PlanFree), chatRequest(), okResult(`{}`),
		[]models.MonetizationRule{rule}); cost != 0 {
		t.Fatalf("cost = %v, want 0 for an inactive rule", cost)
	}
}

func TestModelCondition(t *testing.T) {
	var calc Calculator
	rule := perRequestRule(0.2)
	rule.Conditions = models.MonetizationConditions{AIModels: []string{"gpt-4"}}
	rules := []models.MonetizationRule{rule}

	if cost := calc.Calculate(billingKey(models.PlanFree), chatRequest(),
		okResult(`{"model":"gpt-4"}`), rules); cost != 0.2 {
		t.Fatalf("cost = %v, want 0.2 for matching model", cost)
	}
	if cost := calc.Calculate(billingKey(models.PlanFree), chatRequest(),
		okResult(`{"model":"gpt-3.5"}`), rules); cost != 0 {
		t.Fatalf("cost = %v, want 0 for non-matching model", cost)
	}
}

func TestSummarizeOverage(t *testing.T) {
	key := &models.APIKey{
		ID:   "key-1",
		Name: "prod",
		Billing: models.KeyBilling{
			Plan:             models.PlanBasic,
			BillingCycle:     "monthly",
			IncludedRequests: 1000,
			OverageRate:      0.02,
		},
	}
	key.Usage.CurrentMonthUsage = 1500
	key.Usage.CurrentMonthCost = 10

	s := Summarize(key)
	if s.OverageRequests != 500 {
		t.Errorf("OverageRequests = %d, want 500", s.OverageRequests)
	}
	if s.OverageCost != 10 {
		t.Errorf("OverageCost = %v, want 10", s.OverageCost)
	}
	if s.EstimatedTotal != 20 {
		t.Errorf("EstimatedTotal = %v, want 20", s.EstimatedTotal)
	}
}

func TestSummarizeWithinIncluded(t *testing.T) {
	key := &models.APIKey{
		Billing: models.KeyBilling{Plan: models.PlanBasic, IncludedRequests: 1000},
	}
	key.Usage.CurrentMonthUsage = 400

	s := Summarize(key)
	if s.OverageRequests != 0 || s.OverageCost != 0 {
		t.Errorf("no overage expected, got %d requests / %v cost", s.OverageRequests, s.OverageCost)
	}
}
