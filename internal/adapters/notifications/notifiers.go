// Package notifications provides the channel adapters that deliver
// notification payloads to external services. Adapters classify HTTP
// failures into the retryable/non-retryable error set the notification
// worker acts on.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// classifyStatus maps an HTTP response status to the notifier error set.
func classifyStatus(status int, body []byte) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusTooManyRequests:
		return ports.ErrRateLimited
	case status >= 500:
		return fmt.Errorf("%w: status %d", ports.ErrChannelUnavailable, status)
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		return fmt.Errorf("%w: status %d: %s", ports.ErrInvalidTarget, status, truncate(body, 200))
	default:
		return fmt.Errorf("%w: status %d: %s", ports.ErrDeliveryFailed, status, truncate(body, 200))
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrChannelUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return classifyStatus(resp.StatusCode, respBody)
}

func severityColor(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "#dc3545"
	case domain.SeverityWarning:
		return "#ffc107"
	default:
		return "#17a2b8"
	}
}

// WebhookNotifier POSTs the notification as JSON to the target URL.
type WebhookNotifier struct {
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{client: newHTTPClient()}
}

func (n *WebhookNotifier) Channel() domain.Channel { return domain.ChannelWebhook }

func (n *WebhookNotifier) Notify(ctx context.Context, msg *ports.Notification) (*ports.NotifyResult, error) {
	if msg.Target == "" {
		return nil, fmt.Errorf("%w: empty webhook url", ports.ErrInvalidTarget)
	}
	payload := map[string]any{
		"alert_id": msg.AlertID.String(),
		"severity": msg.Severity,
		"summary":  msg.Summary,
		"labels":   msg.Labels,
	}
	if err := postJSON(ctx, n.client, msg.Target, payload); err != nil {
		return nil, err
	}
	return &ports.NotifyResult{}, nil
}

// SlackNotifier posts an attachment-formatted message to a Slack incoming
// webhook, mentioning the target user.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Slack notifier for a workspace webhook.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, client: newHTTPClient()}
}

func (n *SlackNotifier) Channel() domain.Channel { return domain.ChannelSlack }

func (n *SlackNotifier) Notify(ctx context.Context, msg *ports.Notification) (*ports.NotifyResult, error) {
	if n.webhookURL == "" {
		return nil, fmt.Errorf("%w: slack webhook not configured", ports.ErrChannelUnavailable)
	}
	if msg.Target == "" {
		return nil, fmt.Errorf("%w: empty slack id", ports.ErrInvalidTarget)
	}
	payload := map[string]any{
		"text": fmt.Sprintf("<@%s> [%s] %s", msg.Target, msg.Severity, msg.Summary),
		"attachments": []map[string]any{{
			"color":  severityColor(msg.Severity),
			"fields": labelFields(msg.Labels),
		}},
	}
	if err := postJSON(ctx, n.client, n.webhookURL, payload); err != nil {
		return nil, err
	}
	return &ports.NotifyResult{}, nil
}

func labelFields(labels map[string]string) []map[string]any {
	fields := make([]map[string]any, 0, len(labels))
	for k, v := range labels {
		fields = append(fields, map[string]any{"title": k, "value": v, "short": true})
	}
	return fields
}

// DiscordNotifier posts a plain-text message to a Discord webhook, mentioning
// the target user. No embed or severity color is sent.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a Discord notifier for a channel webhook.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{webhookURL: webhookURL, client: newHTTPClient()}
}

func (n *DiscordNotifier) Channel() domain.Channel { return domain.ChannelDiscord }

func (n *DiscordNotifier) Notify(ctx context.Context, msg *ports.Notification) (*ports.NotifyResult, error) {
	if n.webhookURL == "" {
		return nil, fmt.Errorf("%w: discord webhook not configured", ports.ErrChannelUnavailable)
	}
	if msg.Target == "" {
		return nil, fmt.Errorf("%w: empty discord id", ports.ErrInvalidTarget)
	}
	payload := map[string]any{
		"content": fmt.Sprintf("<@%s> [%s] %s", msg.Target, msg.Severity, msg.Summary),
	}
	if err := postJSON(ctx, n.client, n.webhookURL, payload); err != nil {
		return nil, err
	}
	return &ports.NotifyResult{}, nil
}

// SMSNotifier relays the message to an SMS provider webhook. The target must
// be an E.164 number.
type SMSNotifier struct {
	providerURL string
	client      *http.Client
}

// NewSMSNotifier creates an SMS notifier for a provider endpoint.
func NewSMSNotifier(providerURL string) *SMSNotifier {
	return &SMSNotifier{providerURL: providerURL, client: newHTTPClient()}
}

func (n *SMSNotifier) Channel() domain.Channel { return domain.ChannelSMS }

func (n *SMSNotifier) Notify(ctx context.Context, msg *ports.Notification) (*ports.NotifyResult, error) {
	if n.providerURL == "" {
		return nil, fmt.Errorf("%w: sms provider not configured", ports.ErrChannelUnavailable)
	}
	if _, err := domain.NewPhone(msg.Target); err != nil {
		return nil, fmt.Errorf("%w: %q is not E.164", ports.ErrInvalidTarget, msg.Target)
	}
	payload := map[string]any{
		"to":   msg.Target,
		"body": fmt.Sprintf("[%s] %s", msg.Severity, msg.Summary),
	}
	if err := postJSON(ctx, n.client, n.providerURL, payload); err != nil {
		return nil, err
	}
	return &ports.NotifyResult{}, nil
}
