// Package email sends operational notifications for rate-limit alerts
// and upgrade prompts.
package email

import (
	"fmt"
	"net/smtp"
	"os"
	"strconv"
)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

// ConfigFromEnv reads the SMTP settings from the environment. Returns
// false when no host is configured.
func ConfigFromEnv() (SMTPConfig, bool) {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return SMTPConfig{}, false
	}

	port := 587
	if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil && p > 0 {
		port = p
	}

	return SMTPConfig{
		Host:      host,
		Port:      port,
		Username:  os.Getenv("SMTP_USERNAME"),
		Password:  os.Getenv("SMTP_PASSWORD"),
		FromName:  "Saarportal API Gateway",
		FromEmail: os.Getenv("SMTP_FROM_EMAIL"),
	}, true
}

// Message represents an email to be sent.
type Message struct {
	To      string
	Subject string
	Body    string
}

// SMTPClient sends mail over STARTTLS.
type SMTPClient struct {
	config SMTPConfig
}

func NewSMTPClient(config SMTPConfig) *SMTPClient {
	return &SMTPClient{config: config}
}

// Send delivers one message.
func (c *SMTPClient) Send(message Message) error {
	cfg := c.config
	body := fmt.Sprintf("From: %s <%s>\nTo: %s\nSubject: %s\n\n%s",
		cfg.FromName, cfg.FromEmail, message.To, message.Subject, message.Body)

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	if err := smtp.SendMail(addr, auth, cfg.FromEmail, []string{message.To}, []byte(body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
