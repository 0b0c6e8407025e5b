package ratelimit

import (
	"testing"
	"time"

	"github.com/saarportal/api-gateway/shared/models"
)

func ruleWithConditions(c models.RuleConditions) *models.RateLimitRule {
	return &models.RateLimitRule{ID: "r", Name: "r", Conditions: c, Active: true}
}

func TestRuleAppliesNoConditions(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{})
	if !RuleApplies(rule, testKey(), testRequest(), time.Now()) {
		t.Fatal("a rule with no conditions should apply to everything")
	}
}

func TestRuleAppliesEndpointPrefix(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{Endpoints: []string{"/chat", "/documents"}})

	req := testRequest()
	req.Endpoint = "/chat/completions"
	if !RuleApplies(rule, testKey(), req, time.Now()) {
		t.Error("/chat/completions should match the /chat prefix")
	}

	req.Endpoint = "/workflows"
	if RuleApplies(rule, testKey(), req, time.Now()) {
		t.Error("/workflows should not match")
	}
}

func TestRuleAppliesPlan(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{APIKeyPlans: []string{models.PlanFree, models.PlanBasic}})

	key := testKey()
	key.Billing.Plan = models.PlanFree
	if !RuleApplies(rule, key, testRequest(), time.Now()) {
		t.Error("free plan should match")
	}

	key.Billing.Plan = models.PlanEnterprise
	if RuleApplies(rule, key, testRequest(), time.Now()) {
		t.Error("enterprise plan should not match")
	}
}

func TestRuleAppliesIPRanges(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{IPRanges: []string{"192.168.0.0/16", "10.1.2.3"}})

	cases := []struct {
		ip   string
		want bool
	}{
		{"192.168.4.5", true},
		{"10.1.2.3", true},
		{"10.1.2.4", false},
		{"8.8.8.8", false},
		{"not-an-ip", false},
	}
	for _, tc := range cases {
		req := testRequest()
		req.ClientIP = tc.ip
		if got := RuleApplies(rule, testKey(), req, time.Now()); got != tc.want {
			t.Errorf("ip %s: applies = %v, want %v", tc.ip, got, tc.want)
		}
	}
}

func TestRuleAppliesUserAgentSubstring(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{UserAgents: []string{"bot", "crawler"}})

	req := testRequest()
	req.UserAgent = "Mozilla/5.0 (compatible; Googlebot/2.1)"
	if !RuleApplies(rule, testKey(), req, time.Now()) {
		t.Error("user agent containing 'bot' should match")
	}

	req.UserAgent = "curl/8.0"
	if RuleApplies(rule, testKey(), req, time.Now()) {
		t.Error("curl should not match")
	}
}

func TestRuleAppliesGeographicRegions(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{GeographicRegions: []string{"DE", "FR"}})

	req := testRequest()
	req.Country = "DE"
	if !RuleApplies(rule, testKey(), req, time.Now()) {
		t.Error("DE should match")
	}

	req.Country = "US"
	if RuleApplies(rule, testKey(), req, time.Now()) {
		t.Error("US should not match")
	}
}

func TestRuleAppliesAllOfSemantics(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{
		Endpoints:   []string{"/chat"},
		APIKeyPlans: []string{models.PlanFree},
	})

	key := testKey()
	key.Billing.Plan = models.PlanFree
	req := testRequest()
	req.Endpoint = "/chat"
	if !RuleApplies(rule, key, req, time.Now()) {
		t.Error("both conditions satisfied, rule should apply")
	}

	key.Billing.Plan = models.PlanProfessional
	if RuleApplies(rule, key, req, time.Now()) {
		t.Error("one failing condition should make the rule not apply")
	}
}

func TestRuleAppliesTimeWindow(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{
		TimeWindows: []models.TimeWindowCondition{
			{StartTime: "09:00", EndTime: "17:00", Timezone: "UTC"},
		},
	})

	inside := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
	if !RuleApplies(rule, testKey(), testRequest(), inside) {
		t.Error("12:30 should be inside 09:00-17:00")
	}

	outside := time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC)
	if RuleApplies(rule, testKey(), testRequest(), outside) {
		t.Error("20:00 should be outside 09:00-17:00")
	}
}

func TestRuleAppliesTimeWindowWrapsMidnight(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{
		TimeWindows: []models.TimeWindowCondition{
			{StartTime: "22:00", EndTime: "06:00", Timezone: "UTC"},
		},
	})

	cases := []struct {
		hour int
		want bool
	}{
		{23, true},
		{2, true},
		{12, false},
		{6, false},
	}
	for _, tc := range cases {
		at := time.Date(2025, 6, 15, tc.hour, 0, 0, 0, time.UTC)
		if got := RuleApplies(rule, testKey(), testRequest(), at); got != tc.want {
			t.Errorf("hour %02d: applies = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestRuleAppliesBadTimeWindowIgnored(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{
		TimeWindows: []models.TimeWindowCondition{
			{StartTime: "not-a-time", EndTime: "17:00"},
		},
	})
	if RuleApplies(rule, testKey(), testRequest(), time.Now()) {
		t.Error("an unparseable window never matches, so the condition fails")
	}
}

func TestRuleAppliesUnknownTimezoneFallsBackToUTC(t *testing.T) {
	rule := ruleWithConditions(models.RuleConditions{
		TimeWindows: []models.TimeWindowCondition{
			{StartTime: "09:00", EndTime: "17:00", Timezone: "Not/AZone"},
		},
	})
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	if !RuleApplies(rule, testKey(), testRequest(), at) {
		t.Error("unknown timezone should fall back to UTC")
	}
}
