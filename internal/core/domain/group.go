package domain

import "time"

// AlertGroup clusters temporally close alerts that share a grouping key.
// Membership is append-only; groups are never evicted — closing a group is a
// query-time filter on last_added_at + window.
type AlertGroup struct {
	ID             GroupID   `json:"id"`
	RootAlertID    AlertID   `json:"root_alert_id"`
	MemberAlertIDs []AlertID `json:"member_alert_ids"`
	GroupingKey    string    `json:"grouping_key"`
	WindowSecs     int64     `json:"window_secs"`
	CreatedAt      time.Time `json:"created_at"`
	LastAddedAt    time.Time `json:"last_added_at"`
}

// NewAlertGroup opens a group with the root alert as its sole member.
func NewAlertGroup(rootAlertID AlertID, key string, window time.Duration, now time.Time) *AlertGroup {
	return &AlertGroup{
		ID:             NewGroupID(),
		RootAlertID:    rootAlertID,
		MemberAlertIDs: []AlertID{rootAlertID},
		GroupingKey:    key,
		WindowSecs:     int64(window / time.Second),
		CreatedAt:      now,
		LastAddedAt:    now,
	}
}

// AddMember appends an alert and extends the group's window.
func (g *AlertGroup) AddMember(alertID AlertID, now time.Time) {
	g.MemberAlertIDs = append(g.MemberAlertIDs, alertID)
	g.LastAddedAt = now
}

// MemberCount returns the number of member alerts, root included.
func (g *AlertGroup) MemberCount() int { return len(g.MemberAlertIDs) }

// Window returns the grouping window as a duration.
func (g *AlertGroup) Window() time.Duration {
	return time.Duration(g.WindowSecs) * time.Second
}
