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

// AlertRepository implements ports.AlertRepository over the alerts table.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates an alert repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Save upserts an alert by id.
func (r *AlertRepository) Save(ctx context.Context, alert *domain.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	_, err = r.db.conn.ExecContext(ctx, `
		INSERT INTO alerts (id, fingerprint, status, severity, source, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			status = excluded.status,
			severity = excluded.severity,
			source = excluded.source,
			data = excluded.data`,
		alert.ID.String(),
		string(alert.Fingerprint),
		string(alert.Status),
		string(alert.Severity),
		string(alert.Source),
		string(data),
		formatTime(alert.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return nil
}

// FindByID retrieves an alert, or ports.ErrNotFound.
func (r *AlertRepository) FindByID(ctx context.Context, id domain.AlertID) (*domain.Alert, error) {
	row := r.db.conn.QueryRowContext(ctx, "SELECT data FROM alerts WHERE id = ?", id.String())
	return scanAlert(row)
}

// FindOpenByFingerprint retrieves the most recent non-resolved alert with the
// fingerprint, or ports.ErrNotFound.
func (r *AlertRepository) FindOpenByFingerprint(ctx context.Context, fp domain.Fingerprint) (*domain.Alert, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT data FROM alerts
		WHERE fingerprint = ? AND status != 'resolved'
		ORDER BY created_at DESC LIMIT 1`, string(fp))
	return scanAlert(row)
}

// List retrieves alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter ports.AlertFilter) ([]*domain.Alert, error) {
	query := "SELECT data FROM alerts WHERE 1=1"
	var args []any

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if filter.Search != "" {
		query += " AND data LIKE ?"
		args = append(args, "%"+filter.Search+"%")
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var alert domain.Alert
		if err := json.Unmarshal([]byte(data), &alert); err != nil {
			return nil, fmt.Errorf("unmarshal alert: %w", err)
		}
		alerts = append(alerts, &alert)
	}
	return alerts, rows.Err()
}

func scanAlert(row *sql.Row) (*domain.Alert, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	var alert domain.Alert
	if err := json.Unmarshal([]byte(data), &alert); err != nil {
		return nil, fmt.Errorf("unmarshal alert: %w", err)
	}
	return &alert, nil
}
