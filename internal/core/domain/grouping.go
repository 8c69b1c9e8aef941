package domain

import "time"

// GroupingKey derives the deterministic cluster key for an alert:
// "<source>:<service label>" when the service label is present, else the
// source alone.
func GroupingKey(a *Alert) string {
	if service, ok := a.Labels["service"]; ok {
		return string(a.Source) + ":" + service
	}
	return string(a.Source)
}

// ShouldGroup reports whether an alert created at newCreatedAt falls inside an
// existing group's window. The comparison is strictly less-than: an alert
// exactly at the boundary opens a new group.
func ShouldGroup(g *AlertGroup, newCreatedAt time.Time, window time.Duration) bool {
	return newCreatedAt.Before(g.LastAddedAt.Add(window))
}
