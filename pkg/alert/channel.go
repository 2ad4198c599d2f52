/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"sync"
	"time"

	"github.com/slack-go/slack"
)

// Channel delivers a triggered alert to one destination.
type Channel interface {
	Kind() ChannelKind
	Send(ctx context.Context, a Alert) NotificationResult
}

func result(kind ChannelKind, err error) NotificationResult {
	r := NotificationResult{Channel: kind, Timestamp: time.Now(), Success: err == nil}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// EmailConfig configures the Email channel's SMTP delivery.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	Username   string
	Password   string
	From       string
	To         []string
}

// EmailChannel delivers alerts over SMTP.
type EmailChannel struct {
	cfg EmailConfig
}

func NewEmailChannel(cfg EmailConfig) *EmailChannel { return &EmailChannel{cfg: cfg} }

func (c *EmailChannel) Kind() ChannelKind { return ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, a Alert) NotificationResult {
	if len(c.cfg.To) == 0 {
		return result(ChannelEmail, fmt.Errorf("no email recipients configured"))
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.SMTPServer, c.cfg.SMTPPort)
	subject := fmt.Sprintf("netmond alert: %s - %s", a.Severity, a.RuleName)
	body := fmt.Sprintf("Device: %s (%s)\nMetric: %s/%s\nCurrent value: %s\nThreshold: %s\nTriggered at: %s\n\n%s\n",
		a.DeviceName, a.DeviceID, a.Family, a.MetricName, a.CurrentValue, a.ThresholdValue,
		a.TriggeredAt.Format(time.RFC3339), a.Message)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", c.cfg.From, joinAddrs(c.cfg.To), subject, body)

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPServer)
	}

	err := smtp.SendMail(addr, auth, c.cfg.From, c.cfg.To, []byte(msg))
	return result(ChannelEmail, err)
}

func joinAddrs(addrs []string) string {
	var b bytes.Buffer
	for i, a := range addrs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a)
	}
	return b.String()
}

// WebhookConfig configures the Webhook channel's delivery target.
type WebhookConfig struct {
	URL       string
	Headers   map[string]string
	AuthToken string
	Timeout   time.Duration
}

// WebhookChannel POSTs the alert as JSON to a configured URL.
type WebhookChannel struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhookChannel(cfg WebhookConfig) *WebhookChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookChannel{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (c *WebhookChannel) Kind() ChannelKind { return ChannelWebhook }

func (c *WebhookChannel) Send(ctx context.Context, a Alert) NotificationResult {
	if c.cfg.URL == "" {
		return result(ChannelWebhook, fmt.Errorf("no webhook URL configured"))
	}

	payload, err := json.Marshal(map[string]interface{}{
		"alert":     a,
		"timestamp": time.Now().Format(time.RFC3339),
		"source":    "netmond-alert-engine",
	})
	if err != nil {
		return result(ChannelWebhook, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return result(ChannelWebhook, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return result(ChannelWebhook, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return result(ChannelWebhook, fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
	return result(ChannelWebhook, nil)
}

// InAppStreamChannel buffers recent alerts for a live dashboard feed
// instead of delivering to an external system.
type InAppStreamChannel struct {
	mu       sync.Mutex
	capacity int
	recent   []Alert
}

func NewInAppStreamChannel(capacity int) *InAppStreamChannel {
	if capacity <= 0 {
		capacity = 100
	}
	return &InAppStreamChannel{capacity: capacity}
}

func (c *InAppStreamChannel) Kind() ChannelKind { return ChannelInAppStream }

func (c *InAppStreamChannel) Send(ctx context.Context, a Alert) NotificationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recent = append(c.recent, a)
	if overflow := len(c.recent) - c.capacity; overflow > 0 {
		c.recent = c.recent[overflow:]
	}
	return result(ChannelInAppStream, nil)
}

// Recent returns up to limit of the most recently streamed alerts, newest last.
func (c *InAppStreamChannel) Recent(limit int) []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 || limit > len(c.recent) {
		limit = len(c.recent)
	}
	out := make([]Alert, limit)
	copy(out, c.recent[len(c.recent)-limit:])
	return out
}

// ChatWebhookChannel delivers alerts to a Slack incoming webhook.
type ChatWebhookChannel struct {
	webhookURL string
}

func NewChatWebhookChannel(webhookURL string) *ChatWebhookChannel {
	return &ChatWebhookChannel{webhookURL: webhookURL}
}

func (c *ChatWebhookChannel) Kind() ChannelKind { return ChannelChatWebhook }

func (c *ChatWebhookChannel) Send(ctx context.Context, a Alert) NotificationResult {
	if c.webhookURL == "" {
		return result(ChannelChatWebhook, fmt.Errorf("no chat webhook URL configured"))
	}

	msg := &slack.WebhookMessage{
		Attachments: []slack.Attachment{
			{
				Color: severityColor(a.Severity),
				Title: fmt.Sprintf("%s: %s", a.Severity, a.RuleName),
				Text:  a.Message,
				Fields: []slack.AttachmentField{
					{Title: "Device", Value: fmt.Sprintf("%s (%s)", a.DeviceName, a.DeviceID), Short: true},
					{Title: "Metric", Value: fmt.Sprintf("%s/%s", a.Family, a.MetricName), Short: true},
					{Title: "Current value", Value: a.CurrentValue, Short: true},
					{Title: "Threshold", Value: a.ThresholdValue, Short: true},
				},
				Footer: "netmond",
				Ts:     json.Number(fmt.Sprintf("%d", a.TriggeredAt.Unix())),
			},
		},
	}

	err := slack.PostWebhookContext(ctx, c.webhookURL, msg)
	return result(ChannelChatWebhook, err)
}

func severityColor(s Severity) string {
	switch s {
	case SeverityInfo:
		return "#36a64f"
	case SeverityWarning:
		return "#ff9500"
	case SeverityCritical:
		return "#ff0000"
	case SeverityEmergency:
		return "#800080"
	default:
		return "#6c757d"
	}
}
