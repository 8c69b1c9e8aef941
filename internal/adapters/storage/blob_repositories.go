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

// The schedule, policy, user and team aggregates have no queryable columns
// beyond their id; they share a minimal id->JSON upsert shape.

func upsertBlob(ctx context.Context, db *DB, table, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", table, err)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data",
		table)
	if _, err := db.conn.ExecContext(ctx, query, id, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	return nil
}

func findBlob(ctx context.Context, db *DB, table, id string, v any) error {
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = ?", table)
	var data string
	if err := db.conn.QueryRowContext(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", table, err)
	}
	return nil
}

// ScheduleRepository implements ports.ScheduleRepository.
type ScheduleRepository struct {
	db *DB
}

func NewScheduleRepository(db *DB) *ScheduleRepository { return &ScheduleRepository{db: db} }

func (r *ScheduleRepository) Save(ctx context.Context, schedule *domain.Schedule) error {
	return upsertBlob(ctx, r.db, "schedules", schedule.ID.String(), schedule)
}

func (r *ScheduleRepository) FindByID(ctx context.Context, id domain.ScheduleID) (*domain.Schedule, error) {
	var schedule domain.Schedule
	if err := findBlob(ctx, r.db, "schedules", id.String(), &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *ScheduleRepository) ListAll(ctx context.Context) ([]*domain.Schedule, error) {
	rows, err := r.db.conn.QueryContext(ctx, "SELECT data FROM schedules")
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var schedule domain.Schedule
		if err := json.Unmarshal([]byte(data), &schedule); err != nil {
			return nil, fmt.Errorf("unmarshal schedule: %w", err)
		}
		schedules = append(schedules, &schedule)
	}
	return schedules, rows.Err()
}

// PolicyRepository implements ports.PolicyRepository.
type PolicyRepository struct {
	db *DB
}

func NewPolicyRepository(db *DB) *PolicyRepository { return &PolicyRepository{db: db} }

func (r *PolicyRepository) Save(ctx context.Context, policy *domain.EscalationPolicy) error {
	return upsertBlob(ctx, r.db, "escalation_policies", policy.ID.String(), policy)
}

func (r *PolicyRepository) FindByID(ctx context.Context, id domain.PolicyID) (*domain.EscalationPolicy, error) {
	var policy domain.EscalationPolicy
	if err := findBlob(ctx, r.db, "escalation_policies", id.String(), &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// UserRepository implements ports.UserRepository.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository { return &UserRepository{db: db} }

func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	return upsertBlob(ctx, r.db, "users", user.ID.String(), user)
}

func (r *UserRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var user domain.User
	if err := findBlob(ctx, r.db, "users", id.String(), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// TeamRepository implements ports.TeamRepository.
type TeamRepository struct {
	db *DB
}

func NewTeamRepository(db *DB) *TeamRepository { return &TeamRepository{db: db} }

func (r *TeamRepository) Save(ctx context.Context, team *domain.Team) error {
	return upsertBlob(ctx, r.db, "teams", team.ID.String(), team)
}

func (r *TeamRepository) FindByID(ctx context.Context, id domain.TeamID) (*domain.Team, error) {
	var team domain.Team
	if err := findBlob(ctx, r.db, "teams", id.String(), &team); err != nil {
		return nil, err
	}
	return &team, nil
}
