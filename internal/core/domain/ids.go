package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Typed id wrappers. Embedding uuid.UUID keeps String/MarshalText/UnmarshalText
// while making the id kinds distinct at compile time.

// AlertID identifies an alert aggregate.
type AlertID struct{ uuid.UUID }

// UserID identifies a user.
type UserID struct{ uuid.UUID }

// ScheduleID identifies an on-call schedule.
type ScheduleID struct{ uuid.UUID }

// PolicyID identifies an escalation policy.
type PolicyID struct{ uuid.UUID }

// TeamID identifies a team.
type TeamID struct{ uuid.UUID }

// GroupID identifies an alert group.
type GroupID struct{ uuid.UUID }

// OverrideID identifies a schedule override.
type OverrideID struct{ uuid.UUID }

func NewAlertID() AlertID       { return AlertID{uuid.New()} }
func NewUserID() UserID         { return UserID{uuid.New()} }
func NewScheduleID() ScheduleID { return ScheduleID{uuid.New()} }
func NewPolicyID() PolicyID     { return PolicyID{uuid.New()} }
func NewTeamID() TeamID         { return TeamID{uuid.New()} }
func NewGroupID() GroupID       { return GroupID{uuid.New()} }
func NewOverrideID() OverrideID { return OverrideID{uuid.New()} }

func parseID(kind, s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: %s", ErrInvalidID, kind)
	}
	return u, nil
}

func ParseAlertID(s string) (AlertID, error) {
	u, err := parseID("AlertID", s)
	return AlertID{u}, err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseID("UserID", s)
	return UserID{u}, err
}

func ParseScheduleID(s string) (ScheduleID, error) {
	u, err := parseID("ScheduleID", s)
	return ScheduleID{u}, err
}

func ParsePolicyID(s string) (PolicyID, error) {
	u, err := parseID("PolicyID", s)
	return PolicyID{u}, err
}

func ParseTeamID(s string) (TeamID, error) {
	u, err := parseID("TeamID", s)
	return TeamID{u}, err
}

func ParseGroupID(s string) (GroupID, error) {
	u, err := parseID("GroupID", s)
	return GroupID{u}, err
}

func ParseOverrideID(s string) (OverrideID, error) {
	u, err := parseID("OverrideID", s)
	return OverrideID{u}, err
}
