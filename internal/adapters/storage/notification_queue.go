package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// NotificationQueue implements ports.NotificationQueue over the notifications
// table.
type NotificationQueue struct {
	db *DB
}

// NewNotificationQueue creates a notification queue adapter.
func NewNotificationQueue(db *DB) *NotificationQueue {
	return &NotificationQueue{db: db}
}

// Enqueue inserts a pending notification row.
func (q *NotificationQueue) Enqueue(ctx context.Context, n ports.PendingNotification) error {
	_, err := q.db.conn.ExecContext(ctx, `
		INSERT INTO notifications (id, alert_id, channel, target, payload, status, next_attempt_at, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?, ?, ?)`,
		n.ID,
		n.AlertID.String(),
		string(n.Channel),
		n.Target,
		n.Payload,
		formatTime(n.NextAttemptAt),
		n.RetryCount,
		formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// PollPending selects pending rows whose next_attempt_at has passed, oldest
// first.
func (q *NotificationQueue) PollPending(ctx context.Context, now time.Time) ([]ports.PendingNotification, error) {
	rows, err := q.db.conn.QueryContext(ctx, `
		SELECT id, alert_id, channel, target, payload, next_attempt_at, retry_count, created_at
		FROM notifications
		WHERE status = 'pending' AND next_attempt_at <= ?
		ORDER BY next_attempt_at ASC`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("poll notifications: %w", err)
	}
	defer rows.Close()

	var pending []ports.PendingNotification
	for rows.Next() {
		var (
			n                  ports.PendingNotification
			alertID, channel   string
			nextAt, createdAt  string
		)
		if err := rows.Scan(&n.ID, &alertID, &channel, &n.Target, &n.Payload, &nextAt, &n.RetryCount, &createdAt); err != nil {
			return nil, err
		}
		if n.AlertID, err = domain.ParseAlertID(alertID); err != nil {
			return nil, err
		}
		if n.Channel, err = domain.ParseChannel(channel); err != nil {
			return nil, err
		}
		if n.NextAttemptAt, err = parseTime(nextAt); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		n.Status = ports.QueuePending
		pending = append(pending, n)
	}
	return pending, rows.Err()
}

// MarkSent settles a delivered row.
func (q *NotificationQueue) MarkSent(ctx context.Context, id string) error {
	_, err := q.db.conn.ExecContext(ctx,
		"UPDATE notifications SET status = 'sent' WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records the failure and re-promotes the row to pending with the
// rewritten next_attempt_at so the next poll retries it.
func (q *NotificationQueue) MarkFailed(ctx context.Context, id string, reason string, nextAttempt time.Time) error {
	_, err := q.db.conn.ExecContext(ctx, `
		UPDATE notifications
		SET status = 'pending', next_attempt_at = ?, retry_count = retry_count + 1, last_error = ?
		WHERE id = ?`,
		formatTime(nextAttempt), reason, id)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

// MarkDead settles a row whose retries are exhausted or whose target is
// unusable.
func (q *NotificationQueue) MarkDead(ctx context.Context, id string) error {
	_, err := q.db.conn.ExecContext(ctx,
		"UPDATE notifications SET status = 'dead' WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark notification dead: %w", err)
	}
	return nil
}
