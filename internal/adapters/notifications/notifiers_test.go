package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

func testNotification(target string) *ports.Notification {
	return &ports.Notification{
		AlertID:  domain.NewAlertID(),
		Severity: domain.SeverityCritical,
		Summary:  "High CPU",
		Labels:   map[string]string{"service": "api"},
		Target:   target,
	}
}

func TestNotifierChannels(t *testing.T) {
	cases := []struct {
		notifier ports.Notifier
		want     domain.Channel
	}{
		{NewWebhookNotifier(), domain.ChannelWebhook},
		{NewSlackNotifier("https://hooks.example.com"), domain.ChannelSlack},
		{NewDiscordNotifier("https://discord.example.com"), domain.ChannelDiscord},
		{NewSMSNotifier("https://sms.example.com"), domain.ChannelSMS},
		{NewEmailNotifier(SMTPConfig{Host: "mail.example.com"}), domain.ChannelEmail},
	}
	for _, tc := range cases {
		if got := tc.notifier.Channel(); got != tc.want {
			t.Errorf("Channel() = %s, want %s", got, tc.want)
		}
	}
}

func TestWebhookNotifier_PostsPayload(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("payload not JSON: %v", err)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := testNotification(srv.URL)
	if _, err := NewWebhookNotifier().Notify(context.Background(), n); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if received["summary"] != "High CPU" {
		t.Errorf("payload = %v", received)
	}
	if received["alert_id"] != n.AlertID.String() {
		t.Error("alert id missing from payload")
	}
}

func TestWebhookNotifier_EmptyTarget(t *testing.T) {
	_, err := NewWebhookNotifier().Notify(context.Background(), testNotification(""))
	if !errors.Is(err, ports.ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusOK, nil},
		{http.StatusNoContent, nil},
		{http.StatusTooManyRequests, ports.ErrRateLimited},
		{http.StatusInternalServerError, ports.ErrChannelUnavailable},
		{http.StatusBadGateway, ports.ErrChannelUnavailable},
		{http.StatusNotFound, ports.ErrInvalidTarget},
		{http.StatusBadRequest, ports.ErrInvalidTarget},
		{http.StatusForbidden, ports.ErrDeliveryFailed},
	}
	for _, tc := range cases {
		err := classifyStatus(tc.status, nil)
		if tc.want == nil {
			if err != nil {
				t.Errorf("classifyStatus(%d) = %v, want nil", tc.status, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("classifyStatus(%d) = %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestSlackNotifier_FailureMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewSlackNotifier(srv.URL).Notify(context.Background(), testNotification("U1"))
	if !errors.Is(err, ports.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestSlackNotifier_MentionsTarget(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if _, err := NewSlackNotifier(srv.URL).Notify(context.Background(), testNotification("U42")); err != nil {
		t.Fatal(err)
	}
	text, _ := payload["text"].(string)
	if text == "" || !containsAll(text, "<@U42>", "High CPU") {
		t.Errorf("text = %q", text)
	}
}

func TestSlackNotifier_Unconfigured(t *testing.T) {
	_, err := NewSlackNotifier("").Notify(context.Background(), testNotification("U1"))
	if !errors.Is(err, ports.ErrChannelUnavailable) {
		t.Errorf("expected ErrChannelUnavailable, got %v", err)
	}
}

func TestDiscordNotifier_EmptyTarget(t *testing.T) {
	_, err := NewDiscordNotifier("https://discord.example.com").Notify(context.Background(), testNotification(""))
	if !errors.Is(err, ports.ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestSMSNotifier_RejectsNonE164(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("provider called for invalid target")
	}))
	defer srv.Close()

	_, err := NewSMSNotifier(srv.URL).Notify(context.Background(), testNotification("not-a-number"))
	if !errors.Is(err, ports.ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestSMSNotifier_SendsToProvider(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if _, err := NewSMSNotifier(srv.URL).Notify(context.Background(), testNotification("+41791234567")); err != nil {
		t.Fatal(err)
	}
	if payload["to"] != "+41791234567" {
		t.Errorf("payload = %v", payload)
	}
}

func TestEmailNotifier_BuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	notifier := NewEmailNotifier(SMTPConfig{Host: "mail.example.com", Port: 587, From: "vigil@example.com"})
	notifier.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if _, err := notifier.Notify(context.Background(), testNotification("alice@example.com")); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if gotAddr != "mail.example.com:587" || gotFrom != "vigil@example.com" {
		t.Errorf("addr = %s, from = %s", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "alice@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	if !containsAll(string(gotMsg), "Subject: [CRITICAL] High CPU", "service=api") {
		t.Errorf("message = %q", gotMsg)
	}
}

func TestEmailNotifier_InvalidAddress(t *testing.T) {
	notifier := NewEmailNotifier(SMTPConfig{Host: "mail.example.com", Port: 587})
	notifier.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Error("send called for invalid address")
		return nil
	}
	_, err := notifier.Notify(context.Background(), testNotification("no-at-sign"))
	if !errors.Is(err, ports.ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget, got %v", err)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
