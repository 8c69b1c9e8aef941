package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// EscalationQueue implements ports.EscalationQueue over the escalation_steps
// table.
type EscalationQueue struct {
	db *DB
}

// NewEscalationQueue creates an escalation queue adapter.
func NewEscalationQueue(db *DB) *EscalationQueue {
	return &EscalationQueue{db: db}
}

// Enqueue inserts a pending step row.
func (q *EscalationQueue) Enqueue(ctx context.Context, step ports.PendingEscalation) error {
	_, err := q.db.conn.ExecContext(ctx, `
		INSERT INTO escalation_steps (id, alert_id, policy_id, step_order, repetition, fires_at, status)
		VALUES (?, ?, ?, ?, ?, ?, 'pending')`,
		step.ID,
		step.AlertID.String(),
		step.PolicyID.String(),
		step.StepOrder,
		step.Repetition,
		formatTime(step.FiresAt),
	)
	if err != nil {
		return fmt.Errorf("enqueue escalation step: %w", err)
	}
	return nil
}

// PollDue selects pending rows whose fires_at has passed, oldest first.
func (q *EscalationQueue) PollDue(ctx context.Context, now time.Time) ([]ports.PendingEscalation, error) {
	rows, err := q.db.conn.QueryContext(ctx, `
		SELECT id, alert_id, policy_id, step_order, repetition, fires_at
		FROM escalation_steps
		WHERE status = 'pending' AND fires_at <= ?
		ORDER BY fires_at ASC`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("poll escalation steps: %w", err)
	}
	defer rows.Close()

	var due []ports.PendingEscalation
	for rows.Next() {
		var (
			step              ports.PendingEscalation
			alertID, policyID string
			firesAt           string
		)
		if err := rows.Scan(&step.ID, &alertID, &policyID, &step.StepOrder, &step.Repetition, &firesAt); err != nil {
			return nil, err
		}
		if step.AlertID, err = domain.ParseAlertID(alertID); err != nil {
			return nil, err
		}
		if step.PolicyID, err = domain.ParsePolicyID(policyID); err != nil {
			return nil, err
		}
		if step.FiresAt, err = parseTime(firesAt); err != nil {
			return nil, err
		}
		step.Status = ports.QueuePending
		due = append(due, step)
	}
	return due, rows.Err()
}

// CancelForAlert cancels every pending row of an alert; fired and cancelled
// rows are untouched.
func (q *EscalationQueue) CancelForAlert(ctx context.Context, alertID domain.AlertID) error {
	_, err := q.db.conn.ExecContext(ctx,
		"UPDATE escalation_steps SET status = 'cancelled' WHERE alert_id = ? AND status = 'pending'",
		alertID.String())
	if err != nil {
		return fmt.Errorf("cancel escalation steps: %w", err)
	}
	return nil
}

// MarkFired settles a row after its notifications were fanned out.
func (q *EscalationQueue) MarkFired(ctx context.Context, id string) error {
	_, err := q.db.conn.ExecContext(ctx,
		"UPDATE escalation_steps SET status = 'fired' WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark escalation fired: %w", err)
	}
	return nil
}
