package email

import (
	"fmt"
	"log"
	"os"

	"github.com/saarportal/api-gateway/ratelimit"
	"github.com/saarportal/api-gateway/shared/models"
)

// Notifier delivers rate-limit alerts and upgrade prompts by mail. Rules
// opt in through their "email" notification channel; everything else is
// logged only.
type Notifier struct {
	client *SMTPClient
	admin  string
	logger ratelimit.LogNotifier
}

// NewNotifierFromEnv builds a Notifier when SMTP is configured, nil
// otherwise.
func NewNotifierFromEnv() *Notifier {
	cfg, ok := ConfigFromEnv()
	if !ok {
		return nil
	}
	admin := os.Getenv("ALERT_EMAIL")
	if admin == "" {
		log.Println("SMTP configured but ALERT_EMAIL unset, alert mails disabled")
		return nil
	}
	return &Notifier{client: NewSMTPClient(cfg), admin: admin}
}

func wantsEmail(rule models.RateLimitRule) bool {
	for _, ch := range rule.Monitoring.NotificationChannels {
		if ch == "email" {
			return true
		}
	}
	return false
}

func (n *Notifier) RateLimitAlert(rule models.RateLimitRule, key *models.APIKey, v ratelimit.Violation) {
	n.logger.RateLimitAlert(rule, key, v)
	if !wantsEmail(rule) {
		return
	}

	msg := Message{
		To:      n.admin,
		Subject: fmt.Sprintf("Rate limit alert: %s", rule.Name),
		Body: fmt.Sprintf("Rule %s reached %d/%d requests per %s.\nKey: %s (tenant %s)\nEndpoint: %s\n",
			rule.Name, v.Count, v.Limit, v.Window, key.ID, key.TenantID, v.Endpoint),
	}
	if err := n.client.Send(msg); err != nil {
		log.Printf("Failed to send rate limit alert mail: %v", err)
	}
}

func (n *Notifier) UpgradePrompt(rule models.RateLimitRule, key *models.APIKey, v ratelimit.Violation) {
	n.logger.UpgradePrompt(rule, key, v)
	if !wantsEmail(rule) {
		return
	}

	msg := Message{
		To:      n.admin,
		Subject: fmt.Sprintf("Upgrade prompt: tenant %s", key.TenantID),
		Body: fmt.Sprintf("Key %s on plan %s exceeded rule %s on %s.\nConsider reaching out about a plan upgrade.\n",
			key.ID, key.Billing.Plan, rule.Name, v.Endpoint),
	}
	if err := n.client.Send(msg); err != nil {
		log.Printf("Failed to send upgrade prompt mail: %v", err)
	}
}
