// Package ports defines the interfaces decoupling the domain and services
// from infrastructure. Every method that touches a repository, queue,
// publisher or notifier is an I/O suspension point and takes a context.
package ports

import (
	"context"
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
)

// AlertRepository persists alert aggregates as JSON blobs beside indexable
// columns. Lookups return ErrNotFound when no row matches.
type AlertRepository interface {
	// Save upserts an alert by id.
	Save(ctx context.Context, alert *domain.Alert) error

	// FindByID retrieves an alert.
	FindByID(ctx context.Context, id domain.AlertID) (*domain.Alert, error)

	// FindOpenByFingerprint retrieves the most recent non-resolved alert with
	// the fingerprint. Resolved alerts do not count: a resolved fingerprint
	// fires a fresh alert on its next ingestion.
	FindOpenByFingerprint(ctx context.Context, fp domain.Fingerprint) (*domain.Alert, error)

	// List retrieves alerts matching the filter, newest first.
	List(ctx context.Context, filter AlertFilter) ([]*domain.Alert, error)
}

// GroupRepository persists alert groups.
type GroupRepository interface {
	Save(ctx context.Context, group *domain.AlertGroup) error

	// FindLatestByKey returns the most recently extended group for a key;
	// the caller applies the window check. ErrNotFound when none exists.
	FindLatestByKey(ctx context.Context, key string) (*domain.AlertGroup, error)
}

// ScheduleRepository persists schedules.
type ScheduleRepository interface {
	Save(ctx context.Context, schedule *domain.Schedule) error
	FindByID(ctx context.Context, id domain.ScheduleID) (*domain.Schedule, error)
	ListAll(ctx context.Context) ([]*domain.Schedule, error)
}

// PolicyRepository persists escalation policies.
type PolicyRepository interface {
	Save(ctx context.Context, policy *domain.EscalationPolicy) error
	FindByID(ctx context.Context, id domain.PolicyID) (*domain.EscalationPolicy, error)
}

// UserRepository persists users.
type UserRepository interface {
	Save(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// TeamRepository persists teams.
type TeamRepository interface {
	Save(ctx context.Context, team *domain.Team) error
	FindByID(ctx context.Context, id domain.TeamID) (*domain.Team, error)
}

// NoiseRepository persists per-fingerprint noise counters.
type NoiseRepository interface {
	// GetOrCreate loads the score for a fingerprint, or a zero score when the
	// fingerprint has not been seen.
	GetOrCreate(ctx context.Context, fingerprint string) (*domain.NoiseScore, error)

	Save(ctx context.Context, score *domain.NoiseScore) error

	// Noisiest lists scores with at least minFires fires, highest score first.
	Noisiest(ctx context.Context, minFires int64) ([]*domain.NoiseScore, error)
}

// NotificationQueue is the durable outbound notification queue.
type NotificationQueue interface {
	Enqueue(ctx context.Context, n PendingNotification) error

	// PollPending returns pending rows whose next_attempt_at has passed,
	// ordered by next_attempt_at ascending.
	PollPending(ctx context.Context, now time.Time) ([]PendingNotification, error)

	MarkSent(ctx context.Context, id string) error

	// MarkFailed records the failure, increments retry_count and re-promotes
	// the row to pending with the rewritten next_attempt_at.
	MarkFailed(ctx context.Context, id string, reason string, nextAttempt time.Time) error

	MarkDead(ctx context.Context, id string) error
}

// EscalationQueue is the durable timer queue for escalation steps.
type EscalationQueue interface {
	Enqueue(ctx context.Context, step PendingEscalation) error

	// PollDue returns pending rows whose fires_at has passed, ordered by
	// fires_at ascending.
	PollDue(ctx context.Context, now time.Time) ([]PendingEscalation, error)

	// CancelForAlert cancels every pending row of an alert. Fired and
	// cancelled rows are untouched; the call is idempotent.
	CancelForAlert(ctx context.Context, alertID domain.AlertID) error

	MarkFired(ctx context.Context, id string) error
}

// EventPublisher delivers domain events to subscribers. Services call it only
// after the corresponding state change has been persisted.
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.DomainEvent) error
}

// Notifier delivers a notification payload over one channel.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) (*NotifyResult, error)
	Channel() domain.Channel
}

// AlertSourceParser turns a source-specific webhook payload into raw alerts.
type AlertSourceParser interface {
	Parse(payload []byte, headers map[string]string) ([]RawAlert, error)
	SourceName() string
}

// Logger defines the structured logging interface used across services and
// workers.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
}

// Instrumentation counts engine activity for operational metrics. A no-op
// implementation is used where metrics are not wired.
type Instrumentation interface {
	AlertReceived(source string)
	AlertDeduplicated()
	EscalationFired()
	EscalationExhausted()
	NotificationSent(channel string)
	NotificationFailed(channel string)
}
