package domain

import "time"

// NoiseScore tracks, per fingerprint, how often fires were dismissed rather
// than acted on. Invariant: DismissedCount + ActedOnCount <= TotalFires.
type NoiseScore struct {
	Fingerprint      string `json:"fingerprint"`
	TotalFires       int64  `json:"total_fires"`
	DismissedCount   int64  `json:"dismissed_count"`
	ActedOnCount     int64  `json:"acted_on_count"`
	AvgTimeToAckSecs int64  `json:"avg_time_to_ack_secs"`
}

// NewNoiseScore returns an empty score for a fingerprint.
func NewNoiseScore(fingerprint string) *NoiseScore {
	return &NoiseScore{Fingerprint: fingerprint}
}

func (n *NoiseScore) RecordFire()    { n.TotalFires++ }
func (n *NoiseScore) RecordDismiss() { n.DismissedCount++ }
func (n *NoiseScore) RecordAction()  { n.ActedOnCount++ }

// UpdateAvgAckTime folds an ack latency into the running mean over
// DismissedCount + ActedOnCount responses. Call after the corresponding
// RecordDismiss/RecordAction.
func (n *NoiseScore) UpdateAvgAckTime(ackDuration time.Duration) {
	count := n.DismissedCount + n.ActedOnCount
	secs := int64(ackDuration / time.Second)
	if count == 0 {
		n.AvgTimeToAckSecs = secs
		return
	}
	prevTotal := n.AvgTimeToAckSecs * (count - 1)
	n.AvgTimeToAckSecs = (prevTotal + secs) / count
}

// Score is the dismissed fraction, from 0.0 (useful) to 1.0 (pure noise).
func (n *NoiseScore) Score() float64 {
	if n.TotalFires == 0 {
		return 0.0
	}
	return float64(n.DismissedCount) / float64(n.TotalFires)
}

// IsNoise reports whether the fingerprint is mostly dismissed.
func (n *NoiseScore) IsNoise() bool { return n.Score() > 0.8 }

// SuggestSuppression reports whether the fingerprint is a suppression candidate.
func (n *NoiseScore) SuggestSuppression() bool { return n.Score() > 0.95 }

// AvgTimeToAck returns the running mean as a duration.
func (n *NoiseScore) AvgTimeToAck() time.Duration {
	return time.Duration(n.AvgTimeToAckSecs) * time.Second
}

// ClassifyResponse reports whether an ack/resolve pair was a dismissal:
// acked within 5 seconds (reflexive), or resolved within 60 seconds of the
// ack (nothing was actually done). timeToResolve may be negative-absent (nil).
func ClassifyResponse(timeToAck time.Duration, timeToResolve *time.Duration) bool {
	if timeToAck < 5*time.Second {
		return true
	}
	if timeToResolve != nil && *timeToResolve < 60*time.Second {
		return true
	}
	return false
}
