package domain

import (
	"fmt"
	"time"
)

// RotationKind discriminates the rotation cadence.
type RotationKind string

const (
	RotationDaily  RotationKind = "daily"
	RotationWeekly RotationKind = "weekly"
	RotationCustom RotationKind = "custom"
)

// Rotation is the shift cadence of a schedule. Seconds is only meaningful for
// the custom kind.
type Rotation struct {
	Kind    RotationKind `json:"kind"`
	Seconds int64        `json:"seconds,omitempty"`
}

func DailyRotation() Rotation  { return Rotation{Kind: RotationDaily} }
func WeeklyRotation() Rotation { return Rotation{Kind: RotationWeekly} }
func CustomRotation(d time.Duration) Rotation {
	return Rotation{Kind: RotationCustom, Seconds: int64(d / time.Second)}
}

// Duration returns the length of one shift.
func (r Rotation) Duration() time.Duration {
	switch r.Kind {
	case RotationDaily:
		return 24 * time.Hour
	case RotationWeekly:
		return 7 * 24 * time.Hour
	default:
		return time.Duration(r.Seconds) * time.Second
	}
}

// HandoffTime records the preferred shift handoff moment. It is stored for
// future anchoring semantics but does not currently offset the rotation epoch.
type HandoffTime struct {
	Day    time.Weekday `json:"day"`
	Hour   int          `json:"hour"`
	Minute int          `json:"minute"`
}

// ScheduleOverride substitutes a user for the rotation during the half-open
// interval [Start, End).
type ScheduleOverride struct {
	ID     OverrideID `json:"id"`
	UserID UserID     `json:"user_id"`
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
}

// NewScheduleOverride creates an override with a fresh id.
func NewScheduleOverride(userID UserID, start, end time.Time) ScheduleOverride {
	return ScheduleOverride{ID: NewOverrideID(), UserID: userID, Start: start, End: end}
}

// ActiveAt reports whether the override covers the instant; the start is
// inclusive, the end exclusive.
func (o ScheduleOverride) ActiveAt(at time.Time) bool {
	return !at.Before(o.Start) && at.Before(o.End)
}

// rotationEpoch anchors rotation arithmetic: Monday 2020-01-06 00:00:00 in the
// schedule's timezone. Together with the rotation duration and participant
// order it makes (schedule, at) fully determine the on-call user across
// restarts and replicas. Changing this constant changes every rotation.
func rotationEpoch(loc *time.Location) time.Time {
	return time.Date(2020, time.January, 6, 0, 0, 0, 0, loc)
}

// Schedule is a timezone-aware on-call rotation with an override stack.
// Participant order defines the rotation order.
type Schedule struct {
	ID           ScheduleID         `json:"id"`
	Name         string             `json:"name"`
	Timezone     string             `json:"timezone"`
	Rotation     Rotation           `json:"rotation"`
	Participants []UserID           `json:"participants"`
	Handoff      HandoffTime        `json:"handoff"`
	Overrides    []ScheduleOverride `json:"overrides"`
}

// NewSchedule builds a schedule; at least one participant and a valid IANA
// timezone are required.
func NewSchedule(name, timezone string, rotation Rotation, participants []UserID, handoff HandoffTime) (*Schedule, error) {
	if len(participants) == 0 {
		return nil, ErrScheduleRequiresParticipant
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Schedule{
		ID:           NewScheduleID(),
		Name:         name,
		Timezone:     timezone,
		Rotation:     rotation,
		Participants: participants,
		Handoff:      handoff,
	}, nil
}

func (s *Schedule) location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WhoIsOnCall resolves the on-call user at an instant: the most recently
// added override covering the instant wins, otherwise the rotation index.
func (s *Schedule) WhoIsOnCall(at time.Time) UserID {
	for i := len(s.Overrides) - 1; i >= 0; i-- {
		if s.Overrides[i].ActiveAt(at) {
			return s.Overrides[i].UserID
		}
	}
	return s.Participants[s.rotationIndex(at)]
}

// NextOnCall returns the participant one rotation slot after the current
// rotation index. Overrides do not shift the upcoming rotation.
func (s *Schedule) NextOnCall(at time.Time) UserID {
	idx := s.rotationIndex(at)
	return s.Participants[(idx+1)%len(s.Participants)]
}

func (s *Schedule) rotationIndex(at time.Time) int {
	epoch := rotationEpoch(s.location())
	elapsed := int64(at.Sub(epoch) / time.Second)
	rotationSecs := int64(s.Rotation.Duration() / time.Second)
	n := int64(len(s.Participants))
	// Euclidean remainder keeps pre-epoch instants on a valid index.
	idx := ((elapsed/rotationSecs)%n + n) % n
	return int(idx)
}

// AddOverride appends an override after validating its period and emits
// OnCallChanged for the overriding user.
func (s *Schedule) AddOverride(ovr ScheduleOverride, now time.Time) ([]DomainEvent, error) {
	if !ovr.End.After(ovr.Start) {
		return nil, ErrInvalidOverridePeriod
	}
	s.Overrides = append(s.Overrides, ovr)
	return []DomainEvent{OnCallChanged{
		ScheduleID: s.ID,
		NewUser:    ovr.UserID,
		OccurredAt: now,
	}}, nil
}

// RemoveOverride deletes an override by id. When found, the current on-call
// user is recomputed and reported via OnCallChanged; an unknown id is a no-op.
func (s *Schedule) RemoveOverride(id OverrideID, now time.Time) []DomainEvent {
	for i, ovr := range s.Overrides {
		if ovr.ID == id {
			s.Overrides = append(s.Overrides[:i], s.Overrides[i+1:]...)
			return []DomainEvent{OnCallChanged{
				ScheduleID: s.ID,
				NewUser:    s.WhoIsOnCall(now),
				OccurredAt: now,
			}}
		}
	}
	return nil
}
