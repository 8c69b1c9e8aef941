package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// GroupRepository implements ports.GroupRepository over the alert_groups table.
type GroupRepository struct {
	db *DB
}

// NewGroupRepository creates a group repository.
func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Save upserts a group by id.
func (r *GroupRepository) Save(ctx context.Context, group *domain.AlertGroup) error {
	data, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("marshal group: %w", err)
	}
	_, err = r.db.conn.ExecContext(ctx, `
		INSERT INTO alert_groups (id, grouping_key, data, last_added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			last_added_at = excluded.last_added_at`,
		group.ID.String(),
		group.GroupingKey,
		string(data),
		formatTime(group.LastAddedAt),
	)
	if err != nil {
		return fmt.Errorf("save group: %w", err)
	}
	return nil
}

// FindLatestByKey returns the most recently extended group for a key.
func (r *GroupRepository) FindLatestByKey(ctx context.Context, key string) (*domain.AlertGroup, error) {
	var data string
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT data FROM alert_groups
		WHERE grouping_key = ?
		ORDER BY last_added_at DESC LIMIT 1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	var group domain.AlertGroup
	if err := json.Unmarshal([]byte(data), &group); err != nil {
		return nil, fmt.Errorf("unmarshal group: %w", err)
	}
	return &group, nil
}
