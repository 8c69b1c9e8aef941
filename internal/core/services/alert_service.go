// Package services implements the application layer: orchestration of the
// domain aggregates over the repository, queue and publisher ports.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// AlertService orchestrates the alert lifecycle: ingestion with dedup,
// acknowledge/resolve, escalation scheduling, grouping and noise tracking.
//
// Every mutation follows the same ordering: mutate the aggregate in memory,
// cancel pending escalations, persist the aggregate, publish the events.
// A crash between cancel and persist is safe because cancel is idempotent and
// the dedup path replays the operation on re-receive; a subscriber never sees
// an event whose state change is not durable.
type AlertService struct {
	alerts   ports.AlertRepository
	policies ports.PolicyRepository
	escQueue ports.EscalationQueue
	events   ports.EventPublisher
	router   *Router
	grouping *GroupingService
	noise    *NoiseService
	logger   ports.Logger
	metrics  ports.Instrumentation

	locks keyedMutex
}

// NewAlertService wires an alert service. grouping and noise are optional;
// pass nil to disable those side channels.
func NewAlertService(
	alerts ports.AlertRepository,
	policies ports.PolicyRepository,
	escQueue ports.EscalationQueue,
	events ports.EventPublisher,
	router *Router,
	grouping *GroupingService,
	noise *NoiseService,
	logger ports.Logger,
	metrics ports.Instrumentation,
) *AlertService {
	if metrics == nil {
		metrics = NopInstrumentation{}
	}
	return &AlertService{
		alerts:   alerts,
		policies: policies,
		escQueue: escQueue,
		events:   events,
		router:   router,
		grouping: grouping,
		noise:    noise,
		logger:   logger,
		metrics:  metrics,
	}
}

// Receive ingests a raw alert. A "resolved" status resolves the open alert
// with the same fingerprint; a duplicate fingerprint is suppressed with an
// alert.deduplicated event; otherwise a new alert is created, routed and its
// first escalation step enqueued. Returns the id of the affected alert.
func (s *AlertService) Receive(ctx context.Context, raw ports.RawAlert, now time.Time) (domain.AlertID, error) {
	fingerprint := domain.FingerprintFromLabels(raw.Labels)

	// Source-initiated resolve.
	if strings.EqualFold(raw.Status, "resolved") {
		existing, err := s.alerts.FindOpenByFingerprint(ctx, fingerprint)
		if err != nil {
			return domain.AlertID{}, err
		}
		if err := s.Resolve(ctx, existing.ID, "source:"+raw.Source, now); err != nil {
			return domain.AlertID{}, err
		}
		return existing.ID, nil
	}

	// Dedup: an open alert with the same fingerprint absorbs the fire. The
	// existing alert is not mutated; its severity and labels stand.
	existing, err := s.alerts.FindOpenByFingerprint(ctx, fingerprint)
	switch {
	case err == nil:
		s.recordFire(ctx, string(fingerprint))
		s.metrics.AlertDeduplicated()
		if err := s.events.Publish(ctx, []domain.DomainEvent{domain.AlertDeduplicated{
			AlertID:     existing.ID,
			Fingerprint: string(fingerprint),
			OccurredAt:  now,
		}}); err != nil {
			return domain.AlertID{}, err
		}
		return existing.ID, nil
	case !isNotFound(err):
		return domain.AlertID{}, err
	}

	alert, creationEvents := domain.NewAlert(
		raw.ExternalID,
		domain.Source(raw.Source),
		domain.ParseSeverity(raw.Severity),
		raw.Labels,
		raw.Summary,
		now,
	)

	if err := s.alerts.Save(ctx, alert); err != nil {
		return domain.AlertID{}, fmt.Errorf("save alert: %w", err)
	}
	if err := s.events.Publish(ctx, creationEvents); err != nil {
		return domain.AlertID{}, err
	}
	s.metrics.AlertReceived(raw.Source)
	s.recordFire(ctx, string(fingerprint))

	if s.grouping != nil {
		if _, err := s.grouping.Process(ctx, alert); err != nil {
			s.logger.Warn("grouping failed", "alert_id", alert.ID, "error", err)
		}
	}

	if policyID, ok := s.router.Match(raw.Labels); ok {
		if err := s.enqueueFirstStep(ctx, alert.ID, policyID, now); err != nil {
			return domain.AlertID{}, err
		}
	}

	return alert.ID, nil
}

func (s *AlertService) enqueueFirstStep(ctx context.Context, alertID domain.AlertID, policyID domain.PolicyID, now time.Time) error {
	policy, err := s.policies.FindByID(ctx, policyID)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("routed to unknown policy", "policy_id", policyID)
			return nil
		}
		return err
	}
	first := policy.FirstStep()
	return s.escQueue.Enqueue(ctx, ports.PendingEscalation{
		ID:        uuid.NewString(),
		AlertID:   alertID,
		PolicyID:  policy.ID,
		StepOrder: first.Order,
		FiresAt:   now.Add(time.Duration(first.WaitSeconds) * time.Second),
		Status:    ports.QueuePending,
	})
}

// Acknowledge records a user taking ownership of an alert, cancelling its
// pending escalations. Acknowledging an acknowledged alert is a no-op;
// acknowledging a resolved alert fails with ErrAlertAlreadyResolved.
func (s *AlertService) Acknowledge(ctx context.Context, alertID domain.AlertID, userID domain.UserID, now time.Time) error {
	unlock := s.locks.lock(alertID.String())
	defer unlock()

	alert, err := s.alerts.FindByID(ctx, alertID)
	if err != nil {
		return err
	}

	events, err := alert.Acknowledge(userID, now)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	if err := s.escQueue.CancelForAlert(ctx, alertID); err != nil {
		return err
	}
	if err := s.alerts.Save(ctx, alert); err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return s.events.Publish(ctx, events)
}

// Resolve closes an alert, cancelling its pending escalations and recording
// the response with the noise tracker. Resolving a resolved alert is a no-op.
func (s *AlertService) Resolve(ctx context.Context, alertID domain.AlertID, resolvedBy string, now time.Time) error {
	unlock := s.locks.lock(alertID.String())
	defer unlock()

	alert, err := s.alerts.FindByID(ctx, alertID)
	if err != nil {
		return err
	}

	events := alert.Resolve(resolvedBy, now)
	if len(events) == 0 {
		return nil
	}

	if err := s.escQueue.CancelForAlert(ctx, alertID); err != nil {
		return err
	}
	if err := s.alerts.Save(ctx, alert); err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	if err := s.events.Publish(ctx, events); err != nil {
		return err
	}

	if s.noise != nil {
		if err := s.noise.RecordResponse(ctx, string(alert.Fingerprint), alert.CreatedAt, alert.AcknowledgedAt, now); err != nil {
			s.logger.Warn("noise tracking failed", "alert_id", alertID, "error", err)
		}
	}
	return nil
}

// Get retrieves an alert by id.
func (s *AlertService) Get(ctx context.Context, alertID domain.AlertID) (*domain.Alert, error) {
	return s.alerts.FindByID(ctx, alertID)
}

// List retrieves alerts matching the filter.
func (s *AlertService) List(ctx context.Context, filter ports.AlertFilter) ([]*domain.Alert, error) {
	return s.alerts.List(ctx, filter)
}

func (s *AlertService) recordFire(ctx context.Context, fingerprint string) {
	if s.noise == nil {
		return
	}
	if err := s.noise.RecordFire(ctx, fingerprint); err != nil {
		s.logger.Warn("noise tracking failed", "fingerprint", fingerprint, "error", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound)
}

// keyedMutex serializes operations per alert id so two simultaneous
// acknowledgements of one firing alert produce exactly one event.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
