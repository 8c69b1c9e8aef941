package services

import (
	"context"
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// GroupingResult reports where an alert landed.
type GroupingResult struct {
	GroupID domain.GroupID
	New     bool
}

// GroupingService clusters temporally close alerts sharing a source+service
// key into groups with a fixed window.
type GroupingService struct {
	groups ports.GroupRepository
	window time.Duration
}

// NewGroupingService builds a grouping service with the configured window.
func NewGroupingService(groups ports.GroupRepository, window time.Duration) *GroupingService {
	return &GroupingService{groups: groups, window: window}
}

// Process joins the alert to the active group for its key, or opens a new
// group with the alert as root when none is active.
func (s *GroupingService) Process(ctx context.Context, alert *domain.Alert) (GroupingResult, error) {
	key := domain.GroupingKey(alert)

	group, err := s.groups.FindLatestByKey(ctx, key)
	switch {
	case err == nil:
		if domain.ShouldGroup(group, alert.CreatedAt, s.window) {
			group.AddMember(alert.ID, alert.CreatedAt)
			if err := s.groups.Save(ctx, group); err != nil {
				return GroupingResult{}, err
			}
			return GroupingResult{GroupID: group.ID}, nil
		}
	case !isNotFound(err):
		return GroupingResult{}, err
	}

	group = domain.NewAlertGroup(alert.ID, key, s.window, alert.CreatedAt)
	if err := s.groups.Save(ctx, group); err != nil {
		return GroupingResult{}, err
	}
	return GroupingResult{GroupID: group.ID, New: true}, nil
}
