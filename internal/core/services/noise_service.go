package services

import (
	"context"
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// NoiseService records alert fires and classifies operator responses so that
// chronically dismissed fingerprints can be surfaced as noise.
type NoiseService struct {
	scores ports.NoiseRepository
}

// NewNoiseService wires a noise service.
func NewNoiseService(scores ports.NoiseRepository) *NoiseService {
	return &NoiseService{scores: scores}
}

// RecordFire counts a fire for the fingerprint.
func (s *NoiseService) RecordFire(ctx context.Context, fingerprint string) error {
	score, err := s.scores.GetOrCreate(ctx, fingerprint)
	if err != nil {
		return err
	}
	score.RecordFire()
	return s.scores.Save(ctx, score)
}

// RecordResponse classifies a resolved alert's response as dismiss or action.
// With an acknowledgement, classification uses ack latency and the ack-to-
// resolve gap; without one, the total time to resolve stands in for the ack
// latency.
func (s *NoiseService) RecordResponse(ctx context.Context, fingerprint string, createdAt time.Time, acknowledgedAt *time.Time, resolvedAt time.Time) error {
	score, err := s.scores.GetOrCreate(ctx, fingerprint)
	if err != nil {
		return err
	}

	if acknowledgedAt != nil {
		timeToAck := acknowledgedAt.Sub(createdAt)
		timeToResolve := resolvedAt.Sub(*acknowledgedAt)
		if domain.ClassifyResponse(timeToAck, &timeToResolve) {
			score.RecordDismiss()
		} else {
			score.RecordAction()
		}
		score.UpdateAvgAckTime(timeToAck)
	} else {
		if domain.ClassifyResponse(resolvedAt.Sub(createdAt), nil) {
			score.RecordDismiss()
		} else {
			score.RecordAction()
		}
	}

	return s.scores.Save(ctx, score)
}

// Noisiest lists fingerprints with at least minFires fires, noisiest first.
func (s *NoiseService) Noisiest(ctx context.Context, minFires int64) ([]*domain.NoiseScore, error) {
	return s.scores.Noisiest(ctx, minFires)
}
