package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// EscalationWorker drives the escalation_steps timer queue: it resolves due
// steps to concrete recipients, fans them out as per-channel notification
// rows, and schedules the next step or declares the escalation exhausted.
//
// The worker is restartable: a row whose handler died between poll and
// MarkFired is simply re-observed on the next poll.
type EscalationWorker struct {
	escQueue   ports.EscalationQueue
	notifQueue ports.NotificationQueue
	alerts     ports.AlertRepository
	policies   ports.PolicyRepository
	schedules  ports.ScheduleRepository
	users      ports.UserRepository
	teams      ports.TeamRepository
	events     ports.EventPublisher
	logger     ports.Logger
	metrics    ports.Instrumentation
	interval   time.Duration
}

// NewEscalationWorker wires an escalation worker polling at the interval.
func NewEscalationWorker(
	escQueue ports.EscalationQueue,
	notifQueue ports.NotificationQueue,
	alerts ports.AlertRepository,
	policies ports.PolicyRepository,
	schedules ports.ScheduleRepository,
	users ports.UserRepository,
	teams ports.TeamRepository,
	events ports.EventPublisher,
	logger ports.Logger,
	metrics ports.Instrumentation,
	interval time.Duration,
) *EscalationWorker {
	if metrics == nil {
		metrics = NopInstrumentation{}
	}
	return &EscalationWorker{
		escQueue:   escQueue,
		notifQueue: notifQueue,
		alerts:     alerts,
		policies:   policies,
		schedules:  schedules,
		users:      users,
		teams:      teams,
		events:     events,
		logger:     logger,
		metrics:    metrics,
		interval:   interval,
	}
}

// Run polls until the context is cancelled. This is the only place the worker
// reads the wall clock.
func (w *EscalationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Tick(ctx, time.Now().UTC()); err != nil {
				w.logger.Error("escalation tick failed", "error", err)
			}
		}
	}
}

// Tick processes every due escalation step once.
func (w *EscalationWorker) Tick(ctx context.Context, now time.Time) error {
	due, err := w.escQueue.PollDue(ctx, now)
	if err != nil {
		return err
	}
	for _, row := range due {
		if err := w.process(ctx, row, now); err != nil {
			w.logger.Error("escalation step failed", "step_id", row.ID, "alert_id", row.AlertID, "error", err)
		}
	}
	return nil
}

func (w *EscalationWorker) process(ctx context.Context, row ports.PendingEscalation, now time.Time) error {
	policy, err := w.policies.FindByID(ctx, row.PolicyID)
	if err != nil {
		if isNotFound(err) {
			w.logger.Warn("escalation references unknown policy", "policy_id", row.PolicyID)
			return w.escQueue.MarkFired(ctx, row.ID)
		}
		return err
	}

	step := policy.StepAt(row.StepOrder)
	if step == nil {
		w.logger.Warn("escalation references unknown step", "policy_id", row.PolicyID, "step_order", row.StepOrder)
		return w.escQueue.MarkFired(ctx, row.ID)
	}

	alert, err := w.alerts.FindByID(ctx, row.AlertID)
	if err != nil {
		if isNotFound(err) {
			return w.escQueue.MarkFired(ctx, row.ID)
		}
		return err
	}
	// Cancellation normally removes rows of settled alerts; this guards the
	// window between a settle and a concurrent poll.
	if alert.Status != domain.StatusFiring {
		return w.escQueue.MarkFired(ctx, row.ID)
	}

	recipients := w.resolveTargets(ctx, step.Targets, now)
	targets := make([]string, 0, len(recipients))
	for _, userID := range recipients {
		targets = append(targets, userID.String())
		if err := w.fanOut(ctx, alert, userID, step.Channels, now); err != nil {
			w.logger.Error("notification fan-out failed", "alert_id", alert.ID, "user_id", userID, "error", err)
		}
	}

	if err := w.events.Publish(ctx, []domain.DomainEvent{domain.AlertEscalated{
		AlertID:    alert.ID,
		Step:       step.Order,
		Targets:    targets,
		OccurredAt: now,
	}}); err != nil {
		return err
	}
	w.metrics.EscalationFired()

	if err := w.escQueue.MarkFired(ctx, row.ID); err != nil {
		return err
	}

	return w.scheduleNext(ctx, policy, row, now)
}

// resolveTargets expands the step's target specs into user ids. Unresolvable
// targets are logged and skipped so one bad reference cannot stall a step.
func (w *EscalationWorker) resolveTargets(ctx context.Context, targets []domain.EscalationTarget, now time.Time) []domain.UserID {
	var recipients []domain.UserID
	for _, t := range targets {
		switch t.Kind {
		case domain.TargetUser:
			recipients = append(recipients, t.UserID)
		case domain.TargetTeam:
			team, err := w.teams.FindByID(ctx, t.TeamID)
			if err != nil {
				w.logger.Warn("escalation target team not found", "team_id", t.TeamID, "error", err)
				continue
			}
			recipients = append(recipients, team.Members...)
		case domain.TargetOnCall:
			schedule, err := w.schedules.FindByID(ctx, t.ScheduleID)
			if err != nil {
				w.logger.Warn("escalation target schedule not found", "schedule_id", t.ScheduleID, "error", err)
				continue
			}
			if t.Modifier == domain.OnCallNext {
				recipients = append(recipients, schedule.NextOnCall(now))
			} else {
				recipients = append(recipients, schedule.WhoIsOnCall(now))
			}
		}
	}
	return recipients
}

// fanOut enqueues one notification per channel the recipient is reachable on.
func (w *EscalationWorker) fanOut(ctx context.Context, alert *domain.Alert, userID domain.UserID, channels []domain.Channel, now time.Time) error {
	user, err := w.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		target, ok := user.ContactFor(ch)
		if !ok {
			w.logger.Warn("user has no contact route for channel", "user_id", userID, "channel", ch)
			continue
		}
		payload, err := json.Marshal(ports.Notification{
			AlertID:  alert.ID,
			Channel:  ch,
			Severity: alert.Severity,
			Summary:  alert.Summary,
			Labels:   alert.Labels,
			Target:   target,
		})
		if err != nil {
			return err
		}
		if err := w.notifQueue.Enqueue(ctx, ports.PendingNotification{
			ID:            uuid.NewString(),
			AlertID:       alert.ID,
			Channel:       ch,
			Target:        target,
			Payload:       string(payload),
			Status:        ports.QueuePending,
			NextAttemptAt: now,
			CreatedAt:     now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// scheduleNext enqueues the policy's next step, or emits
// escalation.exhausted when the sequence and its repeats are used up.
func (w *EscalationWorker) scheduleNext(ctx context.Context, policy *domain.EscalationPolicy, row ports.PendingEscalation, now time.Time) error {
	next := policy.NextStep(row.StepOrder, row.Repetition)
	if next == nil {
		w.metrics.EscalationExhausted()
		return w.events.Publish(ctx, []domain.DomainEvent{domain.EscalationExhausted{
			AlertID:    row.AlertID,
			PolicyID:   policy.ID,
			OccurredAt: now,
		}})
	}

	repetition := row.Repetition
	if next.Order <= row.StepOrder {
		// Wrapped back to the first step.
		repetition++
	}

	return w.escQueue.Enqueue(ctx, ports.PendingEscalation{
		ID:         uuid.NewString(),
		AlertID:    row.AlertID,
		PolicyID:   policy.ID,
		StepOrder:  next.Order,
		Repetition: repetition,
		FiresAt:    now.Add(time.Duration(next.WaitSeconds) * time.Second),
		Status:     ports.QueuePending,
	})
}
