package services

import (
	"context"
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// ScheduleService manages on-call schedules and their overrides.
type ScheduleService struct {
	schedules ports.ScheduleRepository
	events    ports.EventPublisher
}

// NewScheduleService wires a schedule service.
func NewScheduleService(schedules ports.ScheduleRepository, events ports.EventPublisher) *ScheduleService {
	return &ScheduleService{schedules: schedules, events: events}
}

// Create persists a new schedule and returns its id.
func (s *ScheduleService) Create(ctx context.Context, schedule *domain.Schedule) (domain.ScheduleID, error) {
	if err := s.schedules.Save(ctx, schedule); err != nil {
		return domain.ScheduleID{}, err
	}
	return schedule.ID, nil
}

// Get retrieves a schedule.
func (s *ScheduleService) Get(ctx context.Context, id domain.ScheduleID) (*domain.Schedule, error) {
	return s.schedules.FindByID(ctx, id)
}

// List retrieves every schedule.
func (s *ScheduleService) List(ctx context.Context) ([]*domain.Schedule, error) {
	return s.schedules.ListAll(ctx)
}

// WhoIsOnCall resolves the on-call user of a schedule at an instant.
func (s *ScheduleService) WhoIsOnCall(ctx context.Context, id domain.ScheduleID, at time.Time) (domain.UserID, error) {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return domain.UserID{}, err
	}
	return schedule.WhoIsOnCall(at), nil
}

// AddOverride appends an override to a schedule, persists and publishes.
func (s *ScheduleService) AddOverride(ctx context.Context, id domain.ScheduleID, ovr domain.ScheduleOverride, now time.Time) error {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return err
	}
	events, err := schedule.AddOverride(ovr, now)
	if err != nil {
		return err
	}
	if err := s.schedules.Save(ctx, schedule); err != nil {
		return err
	}
	return s.events.Publish(ctx, events)
}

// RemoveOverride deletes an override by id; unknown ids are a no-op.
func (s *ScheduleService) RemoveOverride(ctx context.Context, id domain.ScheduleID, overrideID domain.OverrideID, now time.Time) error {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return err
	}
	events := schedule.RemoveOverride(overrideID, now)
	if len(events) == 0 {
		return nil
	}
	if err := s.schedules.Save(ctx, schedule); err != nil {
		return err
	}
	return s.events.Publish(ctx, events)
}
