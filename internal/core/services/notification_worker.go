package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// DefaultMaxAttempts is the attempt budget before a notification row is
// declared dead.
const DefaultMaxAttempts = 10

// NotificationWorker drains the notifications queue: each pending row is
// handed to the notifier registered for its channel, then marked sent, retried
// with backoff, or killed. Delivery is at-least-once per channel attempt;
// downstream adapters own their own dedup where they support it.
type NotificationWorker struct {
	queue       ports.NotificationQueue
	notifiers   map[domain.Channel]ports.Notifier
	events      ports.EventPublisher
	logger      ports.Logger
	metrics     ports.Instrumentation
	interval    time.Duration
	maxAttempts int
}

// NewNotificationWorker wires a notification worker polling at the interval.
func NewNotificationWorker(
	queue ports.NotificationQueue,
	events ports.EventPublisher,
	logger ports.Logger,
	metrics ports.Instrumentation,
	interval time.Duration,
	maxAttempts int,
) *NotificationWorker {
	if metrics == nil {
		metrics = NopInstrumentation{}
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &NotificationWorker{
		queue:       queue,
		notifiers:   make(map[domain.Channel]ports.Notifier),
		events:      events,
		logger:      logger,
		metrics:     metrics,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// RegisterNotifier installs the adapter for its channel.
func (w *NotificationWorker) RegisterNotifier(n ports.Notifier) {
	w.notifiers[n.Channel()] = n
}

// Run polls until the context is cancelled. This is the only place the worker
// reads the wall clock.
func (w *NotificationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Tick(ctx, time.Now().UTC()); err != nil {
				w.logger.Error("notification tick failed", "error", err)
			}
		}
	}
}

// Tick processes every due pending notification once.
func (w *NotificationWorker) Tick(ctx context.Context, now time.Time) error {
	pending, err := w.queue.PollPending(ctx, now)
	if err != nil {
		return err
	}
	for _, row := range pending {
		if err := w.process(ctx, row, now); err != nil {
			w.logger.Error("notification failed", "notification_id", row.ID, "error", err)
		}
	}
	return nil
}

func (w *NotificationWorker) process(ctx context.Context, row ports.PendingNotification, now time.Time) error {
	notifier, ok := w.notifiers[row.Channel]
	if !ok {
		// No adapter for the channel; retrying cannot help.
		return w.kill(ctx, row, "no notifier for channel "+string(row.Channel), now)
	}

	var n ports.Notification
	if err := json.Unmarshal([]byte(row.Payload), &n); err != nil {
		return w.kill(ctx, row, "malformed payload: "+err.Error(), now)
	}
	n.Channel = row.Channel
	n.Target = row.Target

	if _, err := notifier.Notify(ctx, &n); err != nil {
		return w.handleFailure(ctx, row, err, now)
	}

	if err := w.queue.MarkSent(ctx, row.ID); err != nil {
		return err
	}
	w.metrics.NotificationSent(string(row.Channel))
	return w.events.Publish(ctx, []domain.DomainEvent{domain.NotificationSent{
		AlertID:    row.AlertID,
		Channel:    row.Channel,
		Target:     row.Target,
		OccurredAt: now,
	}})
}

func (w *NotificationWorker) handleFailure(ctx context.Context, row ports.PendingNotification, cause error, now time.Time) error {
	if !ports.Retryable(cause) {
		return w.kill(ctx, row, cause.Error(), now)
	}
	if row.RetryCount+1 >= w.maxAttempts {
		return w.kill(ctx, row, cause.Error(), now)
	}

	w.metrics.NotificationFailed(string(row.Channel))
	if err := w.events.Publish(ctx, []domain.DomainEvent{domain.NotificationFailed{
		AlertID:    row.AlertID,
		Channel:    row.Channel,
		Target:     row.Target,
		Reason:     cause.Error(),
		OccurredAt: now,
	}}); err != nil {
		return err
	}

	next := now.Add(RetryBackoff(row.RetryCount))
	return w.queue.MarkFailed(ctx, row.ID, cause.Error(), next)
}

// kill moves a row to dead and emits a terminal notification.failed event.
func (w *NotificationWorker) kill(ctx context.Context, row ports.PendingNotification, reason string, now time.Time) error {
	w.metrics.NotificationFailed(string(row.Channel))
	if err := w.events.Publish(ctx, []domain.DomainEvent{domain.NotificationFailed{
		AlertID:    row.AlertID,
		Channel:    row.Channel,
		Target:     row.Target,
		Reason:     reason,
		Terminal:   true,
		OccurredAt: now,
	}}); err != nil {
		return err
	}
	return w.queue.MarkDead(ctx, row.ID)
}

// RetryBackoff returns the delay before attempt retryCount+1: exponential from
// 30s, capped at one hour. It is a pure function of the retry count so any
// process can recompute a row's schedule.
func RetryBackoff(retryCount int) time.Duration {
	const (
		base = 30 * time.Second
		ceil = time.Hour
	)
	if retryCount > 7 {
		// 30s << 7 already exceeds the ceiling.
		return ceil
	}
	d := base << uint(retryCount)
	if d > ceil {
		return ceil
	}
	return d
}
