// Package ratelimit implements the gateway's in-memory multi-window rate
// limiting. Counters are ephemeral and window-scoped; durable logging of
// exceed events happens in the metering layer.
package ratelimit

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/saarportal/api-gateway/metrics"
	"github.com/saarportal/api-gateway/shared/models"
)

// Window names.
const (
	WindowSecond = "second"
	WindowMinute = "minute"
	WindowHour   = "hour"
	WindowDay    = "day"
)

type window struct {
	name  string
	size  time.Duration
	limit func(models.RuleLimits) int
}

// checkWindows is evaluated in order for every applicable rule. Burst
// capacity raises the per-second cap when larger.
var checkWindows = []window{
	{WindowSecond, time.Second, func(l models.RuleLimits) int {
		if l.BurstCapacity > l.RequestsPerSecond {
			return l.BurstCapacity
		}
		return l.RequestsPerSecond
	}},
	{WindowMinute, time.Minute, func(l models.RuleLimits) int { return l.RequestsPerMinute }},
	{WindowHour, time.Hour, func(l models.RuleLimits) int { return l.RequestsPerHour }},
	{WindowDay, 24 * time.Hour, func(l models.RuleLimits) int { return l.RequestsPerDay }},
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed        bool
	Throttled      bool
	Delay          time.Duration
	RetryAfter     int // seconds
	Reason         string
	RuleID         string
	RuleName       string
	Window         string
	QueueTimeout   bool
	CustomResponse *models.CustomResponse
}

// Violation describes one exceeded window for alerting and upsell hooks.
type Violation struct {
	RuleID     string
	RuleName   string
	Window     string
	Count      int
	Limit      int
	RetryAfter int
	Endpoint   string
}

// Notifier receives best-effort notifications. Implementations must not
// block; failures never influence the request outcome.
type Notifier interface {
	RateLimitAlert(rule models.RateLimitRule, key *models.APIKey, v Violation)
	UpgradePrompt(rule models.RateLimitRule, key *models.APIKey, v Violation)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) RateLimitAlert(rule models.RateLimitRule, key *models.APIKey, v Violation) {
	log.Printf("Rate limit alert for rule %s (key %s): %d/%d per %s on %s",
		rule.Name, key.ID, v.Count, v.Limit, v.Window, v.Endpoint)
}

func (LogNotifier) UpgradePrompt(rule models.RateLimitRule, key *models.APIKey, v Violation) {
	log.Printf("Upgrade prompt sent to tenant %s (key %s, rule %s)", key.TenantID, key.ID, rule.Name)
}

type counter struct {
	count     int
	resetTime time.Time
	alerted   bool
}

type waiter struct {
	ch   chan struct{}
	done bool
}

type waitQueue struct {
	waiters []*waiter
}

func (q *waitQueue) pending() int {
	n := 0
	for _, w := range q.waiters {
		if !w.done {
			n++
		}
	}
	return n
}

// Limiter owns the counter map. One instance is created at service start
// and injected wherever checks happen; all state lives on the struct so
// test instances stay isolated.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	queues   map[string]*waitQueue
	inflight map[string]int
	notifier Notifier
	now      func() time.Time
}

func NewLimiter(notifier Notifier) *Limiter {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Limiter{
		counters: make(map[string]*counter),
		queues:   make(map[string]*waitQueue),
		inflight: make(map[string]int),
		notifier: notifier,
		now:      time.Now,
	}
}

func counterKey(ruleID, keyID, endpoint, client, windowName string) string {
	return ruleID + ":" + keyID + ":" + endpoint + ":" + client + ":" + windowName
}

func queueKey(keyID, endpoint string) string {
	return keyID + ":" + endpoint
}

// keyRule synthesizes an implicit highest-priority rule from the limits
// attached to the key itself, so per-key caps are enforced alongside
// configured rules.
func keyRule(key *models.APIKey) (models.RateLimitRule, bool) {
	rl := key.Permissions.RateLimits
	if rl.RequestsPerMinute <= 0 && rl.RequestsPerHour <= 0 && rl.RequestsPerDay <= 0 {
		return models.RateLimitRule{}, false
	}
	return models.RateLimitRule{
		ID:       "key-" + key.ID,
		Name:     "api-key-limits",
		Priority: 0,
		Limits: models.RuleLimits{
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			RequestsPerDay:    rl.RequestsPerDay,
		},
		Actions: models.RuleActions{OnLimitExceeded: models.ActionBlock},
		Active:  true,
	}, true
}

// Check evaluates every applicable rule across every window it defines,
// short-circuiting on the first violation. The read-check-increment per
// composite key is atomic under the limiter mutex, so concurrent callers
// can never both slip past the cap. The returned release function must be
// called once the request finishes; it frees concurrent-request slots.
func (l *Limiter) Check(key *models.APIKey, rules []models.RateLimitRule, req RequestInfo) (Decision, func()) {
	now := l.now()

	applicable := make([]models.RateLimitRule, 0, len(rules)+1)
	if implicit, ok := keyRule(key); ok {
		applicable = append(applicable, implicit)
	}
	for i := range rules {
		if rules[i].Active && RuleApplies(&rules[i], key, req, now) {
			applicable = append(applicable, rules[i])
		}
	}

	var acquired []string

	l.mu.Lock()
	for ri := range applicable {
		rule := applicable[ri]

		if rule.Limits.ConcurrentRequests > 0 {
			ik := rule.ID + ":" + key.ID + ":" + req.Endpoint
			if l.inflight[ik] >= rule.Limits.ConcurrentRequests {
				l.releaseLocked(acquired)
				l.mu.Unlock()
				metrics.RateLimitViolationsTotal.WithLabelValues(rule.Name, "concurrent").Inc()
				return Decision{
					Allowed:    false,
					RetryAfter: 1,
					Reason:     fmt.Sprintf("Concurrent request limit exceeded: %d in flight", rule.Limits.ConcurrentRequests),
					RuleID:     rule.ID,
					RuleName:   rule.Name,
					Window:     "concurrent",
				}, func() {}
			}
			l.inflight[ik]++
			acquired = append(acquired, ik)
		}

		for _, w := range checkWindows {
			limit := w.limit(rule.Limits)
			if limit <= 0 {
				continue
			}

			ck := counterKey(rule.ID, key.ID, req.Endpoint, req.ClientIP, w.name)
			c := l.counters[ck]
			if c == nil || !now.Before(c.resetTime) {
				l.counters[ck] = &counter{count: 1, resetTime: now.Add(w.size)}
				continue
			}
			c.count++

			if w.name == WindowMinute && rule.Monitoring.AlertThreshold > 0 && !c.alerted &&
				float64(c.count) >= float64(limit)*rule.Monitoring.AlertThreshold/100 {
				c.alerted = true
				v := Violation{RuleID: rule.ID, RuleName: rule.Name, Window: w.name,
					Count: c.count, Limit: limit, Endpoint: req.Endpoint}
				go l.notifier.RateLimitAlert(rule, key, v)
			}

			if c.count > limit {
				return l.exceededLocked(rule, key, req, w, c, now, acquired)
			}
		}
	}
	l.mu.Unlock()

	return Decision{Allowed: true}, l.releaseFunc(acquired)
}

// exceededLocked handles one violated window. Called with the mutex held,
// returns with it released.
func (l *Limiter) exceededLocked(rule models.RateLimitRule, key *models.APIKey, req RequestInfo, w window, c *counter, now time.Time, acquired []string) (Decision, func()) {
	retryAfter := int(math.Ceil(c.resetTime.Sub(now).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	if rule.Actions.RetryAfterSeconds > 0 {
		retryAfter = rule.Actions.RetryAfterSeconds
	}

	v := Violation{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Window:     w.name,
		Count:      c.count,
		Limit:      w.limit(rule.Limits),
		RetryAfter: retryAfter,
		Endpoint:   req.Endpoint,
	}

	if rule.Monitoring.LogViolations {
		log.Printf("Rate limit exceeded: rule=%s key=%s endpoint=%s %d/%d per %s",
			rule.Name, key.ID, req.Endpoint, v.Count, v.Limit, w.name)
	}
	metrics.RateLimitViolationsTotal.WithLabelValues(rule.Name, w.name).Inc()

	reason := fmt.Sprintf("Rate limit exceeded: %d/%d requests per %s", v.Count, v.Limit, w.name)
	blocked := Decision{
		Allowed:        false,
		RetryAfter:     retryAfter,
		Reason:         reason,
		RuleID:         rule.ID,
		RuleName:       rule.Name,
		Window:         w.name,
		CustomResponse: rule.Actions.CustomResponse,
	}

	switch rule.Actions.OnLimitExceeded {
	case models.ActionThrottle:
		factor := rule.Actions.ThrottleFactor
		if factor <= 0 || factor > 1 {
			factor = 0.5
		}
		remaining := c.resetTime.Sub(now)
		l.mu.Unlock()
		return Decision{
			Allowed:   true,
			Throttled: true,
			Delay:     time.Duration(float64(remaining) * factor),
			RuleID:    rule.ID,
			RuleName:  rule.Name,
			Window:    w.name,
		}, l.releaseFunc(acquired)

	case models.ActionQueue:
		return l.enqueueLocked(rule, key, req, w, c, blocked, acquired)

	case models.ActionUpgradePrompt:
		l.releaseLocked(acquired)
		l.mu.Unlock()
		go l.notifier.UpgradePrompt(rule, key, v)
		return blocked, func() {}

	default: // block
		l.releaseLocked(acquired)
		l.mu.Unlock()
		return blocked, func() {}
	}
}

// enqueueLocked parks the request in the per-(key,endpoint) FIFO list and
// waits for the drain timer or the queue timeout, whichever fires first.
// Called with the mutex held, returns with it released.
func (l *Limiter) enqueueLocked(rule models.RateLimitRule, key *models.APIKey, req RequestInfo, w window, c *counter, blocked Decision, acquired []string) (Decision, func()) {
	timeout := time.Duration(rule.Actions.QueueTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	qk := queueKey(key.ID, req.Endpoint)
	q := l.queues[qk]
	if q == nil {
		q = &waitQueue{}
		l.queues[qk] = q
	}
	wtr := &waiter{ch: make(chan struct{}, 1)}
	q.waiters = append(q.waiters, wtr)

	// Drain trigger: when the violated window resets, admit queued
	// waiters up to the freed capacity, strictly FIFO.
	wait := c.resetTime.Sub(l.now())
	if wait < 0 {
		wait = 0
	}
	ruleCopy := rule
	time.AfterFunc(wait, func() {
		l.drainQueue(qk, ruleCopy, w, key.ID, req.ClientIP, req.Endpoint)
	})
	l.mu.Unlock()

	select {
	case <-wtr.ch:
		return Decision{Allowed: true, RuleID: rule.ID, RuleName: rule.Name, Window: w.name},
			l.releaseFunc(acquired)
	case <-time.After(timeout):
		l.mu.Lock()
		if wtr.done {
			// Drained concurrently with the timeout; the slot is ours.
			l.mu.Unlock()
			return Decision{Allowed: true, RuleID: rule.ID, RuleName: rule.Name, Window: w.name},
				l.releaseFunc(acquired)
		}
		wtr.done = true
		l.releaseLocked(acquired)
		l.mu.Unlock()

		timedOut := blocked
		timedOut.QueueTimeout = true
		timedOut.Reason = "Request queue timeout"
		return timedOut, func() {}
	}
}

// drainQueue releases queued waiters into a fresh window, oldest first.
func (l *Limiter) drainQueue(qk string, rule models.RateLimitRule, w window, keyID, clientIP, endpoint string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := l.queues[qk]
	if q == nil {
		return
	}

	now := l.now()
	ck := counterKey(rule.ID, keyID, endpoint, clientIP, w.name)
	c := l.counters[ck]
	if c == nil || !now.Before(c.resetTime) {
		c = &counter{count: 0, resetTime: now.Add(w.size)}
		l.counters[ck] = c
	}

	limit := w.limit(rule.Limits)
	for len(q.waiters) > 0 && c.count < limit {
		wtr := q.waiters[0]
		q.waiters = q.waiters[1:]
		if wtr.done {
			continue
		}
		c.count++
		wtr.done = true
		wtr.ch <- struct{}{}
	}

	if q.pending() == 0 {
		delete(l.queues, qk)
	}
}

func (l *Limiter) releaseLocked(keys []string) {
	for _, k := range keys {
		if l.inflight[k] > 0 {
			l.inflight[k]--
			if l.inflight[k] == 0 {
				delete(l.inflight, k)
			}
		}
	}
}

func (l *Limiter) releaseFunc(keys []string) func() {
	if len(keys) == 0 {
		return func() {}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.releaseLocked(keys)
			l.mu.Unlock()
		})
	}
}

// Snapshot summarizes the limiter's live state for the status endpoint.
type Snapshot struct {
	ActiveCounters int `json:"active_counters"`
	QueuedRequests int `json:"queued_requests"`
	InflightSlots  int `json:"inflight_slots"`
}

func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{ActiveCounters: len(l.counters)}
	for _, q := range l.queues {
		snap.QueuedRequests += q.pending()
	}
	for _, n := range l.inflight {
		snap.InflightSlots += n
	}
	return snap
}
