package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vigil-run/vigil/internal/core/domain"
)

// NoiseRepository implements ports.NoiseRepository over the noise_scores
// table. Scores live in plain columns rather than a JSON blob so the noisiest
// query can sort in SQL.
type NoiseRepository struct {
	db *DB
}

// NewNoiseRepository creates a noise repository.
func NewNoiseRepository(db *DB) *NoiseRepository {
	return &NoiseRepository{db: db}
}

// GetOrCreate loads the score for a fingerprint; an unseen fingerprint yields
// a fresh zero score without inserting a row.
func (r *NoiseRepository) GetOrCreate(ctx context.Context, fingerprint string) (*domain.NoiseScore, error) {
	var score domain.NoiseScore
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT fingerprint, total_fires, dismissed_count, acted_on_count, avg_time_to_ack_secs
		FROM noise_scores WHERE fingerprint = ?`, fingerprint).
		Scan(&score.Fingerprint, &score.TotalFires, &score.DismissedCount, &score.ActedOnCount, &score.AvgTimeToAckSecs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNoiseScore(fingerprint), nil
		}
		return nil, fmt.Errorf("load noise score: %w", err)
	}
	return &score, nil
}

// Save upserts a score by fingerprint.
func (r *NoiseRepository) Save(ctx context.Context, score *domain.NoiseScore) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO noise_scores (fingerprint, total_fires, dismissed_count, acted_on_count, avg_time_to_ack_secs)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			total_fires = excluded.total_fires,
			dismissed_count = excluded.dismissed_count,
			acted_on_count = excluded.acted_on_count,
			avg_time_to_ack_secs = excluded.avg_time_to_ack_secs`,
		score.Fingerprint,
		score.TotalFires,
		score.DismissedCount,
		score.ActedOnCount,
		score.AvgTimeToAckSecs,
	)
	if err != nil {
		return fmt.Errorf("save noise score: %w", err)
	}
	return nil
}

// Noisiest lists scores with at least minFires fires, highest dismissed
// fraction first.
func (r *NoiseRepository) Noisiest(ctx context.Context, minFires int64) ([]*domain.NoiseScore, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT fingerprint, total_fires, dismissed_count, acted_on_count, avg_time_to_ack_secs
		FROM noise_scores
		WHERE total_fires >= ?
		ORDER BY CAST(dismissed_count AS REAL) / CAST(total_fires AS REAL) DESC`,
		minFires)
	if err != nil {
		return nil, fmt.Errorf("list noise scores: %w", err)
	}
	defer rows.Close()

	var scores []*domain.NoiseScore
	for rows.Next() {
		var score domain.NoiseScore
		if err := rows.Scan(&score.Fingerprint, &score.TotalFires, &score.DismissedCount, &score.ActedOnCount, &score.AvgTimeToAckSecs); err != nil {
			return nil, err
		}
		scores = append(scores, &score)
	}
	return scores, rows.Err()
}
