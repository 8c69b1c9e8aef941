package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier delivers notifications over SMTP.
type EmailNotifier struct {
	config SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an email notifier.
func NewEmailNotifier(config SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: config, send: smtp.SendMail}
}

func (n *EmailNotifier) Channel() domain.Channel { return domain.ChannelEmail }

func (n *EmailNotifier) Notify(_ context.Context, msg *ports.Notification) (*ports.NotifyResult, error) {
	if n.config.Host == "" {
		return nil, fmt.Errorf("%w: smtp not configured", ports.ErrChannelUnavailable)
	}
	if !strings.Contains(msg.Target, "@") {
		return nil, fmt.Errorf("%w: %q is not an email address", ports.ErrInvalidTarget, msg.Target)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Target)
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", strings.ToUpper(string(msg.Severity)), msg.Summary)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Alert %s is %s.\r\n\r\n", msg.AlertID, msg.Severity)
	for k, v := range msg.Labels {
		fmt.Fprintf(&b, "%s=%s\r\n", k, v)
	}

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	if err := n.send(addr, auth, n.config.From, []string{msg.Target}, []byte(b.String())); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrChannelUnavailable, err)
	}
	return &ports.NotifyResult{}, nil
}
