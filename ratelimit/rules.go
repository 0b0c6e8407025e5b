package ratelimit

import (
	"net"
	"strings"
	"time"

	"github.com/saarportal/api-gateway/shared/models"
)

// RequestInfo carries the request attributes rule conditions match on.
type RequestInfo struct {
	Endpoint  string
	ClientIP  string
	UserAgent string
	Country   string
}

// RuleApplies evaluates a rule's conditions against a request with all-of
// semantics: every present condition must match, absent conditions are
// wildcards.
func RuleApplies(rule *models.RateLimitRule, key *models.APIKey, req RequestInfo, now time.Time) bool {
	c := rule.Conditions

	if len(c.Endpoints) > 0 && !matchesAnyPrefix(req.Endpoint, c.Endpoints) {
		return false
	}
	if len(c.APIKeyPlans) > 0 && !containsString(c.APIKeyPlans, key.Billing.Plan) {
		return false
	}
	if len(c.IPRanges) > 0 && !matchesIPRange(req.ClientIP, c.IPRanges) {
		return false
	}
	if len(c.UserAgents) > 0 && !matchesSubstring(req.UserAgent, c.UserAgents) {
		return false
	}
	if len(c.GeographicRegions) > 0 && !containsString(c.GeographicRegions, req.Country) {
		return false
	}
	if len(c.TimeWindows) > 0 && !withinAnyTimeWindow(c.TimeWindows, now) {
		return false
	}
	return true
}

func matchesAnyPrefix(endpoint string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(endpoint, p) {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func matchesSubstring(value string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(value, f) {
			return true
		}
	}
	return false
}

// matchesIPRange accepts both CIDR ranges and bare addresses.
func matchesIPRange(clientIP string, ranges []string) bool {
	ip := net.ParseIP(clientIP)
	if ip == nil {
		return false
	}
	for _, r := range ranges {
		if strings.Contains(r, "/") {
			_, network, err := net.ParseCIDR(r)
			if err != nil {
				continue
			}
			if network.Contains(ip) {
				return true
			}
		} else if r == clientIP {
			return true
		}
	}
	return false
}

func withinAnyTimeWindow(windows []models.TimeWindowCondition, now time.Time) bool {
	for _, w := range windows {
		loc, err := time.LoadLocation(w.Timezone)
		if err != nil {
			loc = time.UTC
		}
		local := now.In(loc)

		start, err1 := parseClock(w.StartTime)
		end, err2 := parseClock(w.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}

		minutes := local.Hour()*60 + local.Minute()
		if start <= end {
			if minutes >= start && minutes < end {
				return true
			}
		} else {
			// Window wraps midnight, e.g. 22:00-06:00.
			if minutes >= start || minutes < end {
				return true
			}
		}
	}
	return false
}

func parseClock(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
