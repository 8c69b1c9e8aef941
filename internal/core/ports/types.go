package ports

import (
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
)

// RawAlert is inbound alert data from an external source, before domain
// validation. Only a status of "resolved" (case-insensitive) is special.
type RawAlert struct {
	ExternalID string            `json:"external_id"`
	Source     string            `json:"source"`
	Severity   string            `json:"severity"`
	Labels     map[string]string `json:"labels"`
	Summary    string            `json:"summary"`
	Status     string            `json:"status"`
}

// Notification is the payload handed to a channel adapter.
type Notification struct {
	AlertID  domain.AlertID    `json:"alert_id"`
	Channel  domain.Channel    `json:"channel"`
	Severity domain.Severity   `json:"severity"`
	Summary  string            `json:"summary"`
	Labels   map[string]string `json:"labels"`
	Target   string            `json:"target"`
}

// NotifyResult is delivery metadata returned by notifiers.
type NotifyResult struct {
	ExternalID string
	Metadata   map[string]string
}

// AlertFilter selects alerts for listing.
type AlertFilter struct {
	Status   domain.Status
	Severity domain.Severity
	Source   string
	Search   string
	Page     int
	PerPage  int
}

// QueueStatus is the lifecycle state of a persisted queue row. Sent, fired,
// dead and cancelled are terminal.
type QueueStatus string

const (
	QueuePending   QueueStatus = "pending"
	QueueSent      QueueStatus = "sent"
	QueueFired     QueueStatus = "fired"
	QueueFailed    QueueStatus = "failed"
	QueueDead      QueueStatus = "dead"
	QueueCancelled QueueStatus = "cancelled"
)

// PendingNotification is a notification waiting in the database queue.
type PendingNotification struct {
	ID            string
	AlertID       domain.AlertID
	Channel       domain.Channel
	Target        string
	Payload       string
	Status        QueueStatus
	NextAttemptAt time.Time
	RetryCount    int
	CreatedAt     time.Time
}

// PendingEscalation is an escalation step waiting to fire. Repetition counts
// completed wrap-arounds of the policy's step sequence so repeats survive
// restarts.
type PendingEscalation struct {
	ID         string
	AlertID    domain.AlertID
	PolicyID   domain.PolicyID
	StepOrder  int
	Repetition int
	FiresAt    time.Time
	Status     QueueStatus
}
