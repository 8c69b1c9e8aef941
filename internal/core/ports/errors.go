package ports

import "errors"

// Port errors classify infrastructure failures. ErrNotFound is surfaced to
// callers; the rest propagate out of service calls for the transport layer to
// translate.
var (
	ErrNotFound = errors.New("not found")
)

// Notifier errors. The notification worker retries ErrChannelUnavailable,
// ErrRateLimited and ErrDeliveryFailed with backoff; ErrInvalidTarget is
// non-retryable and kills the queue row immediately.
var (
	ErrChannelUnavailable = errors.New("channel unavailable")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidTarget      = errors.New("invalid target")
	ErrDeliveryFailed     = errors.New("delivery failed")
)

// Parser errors.
var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrMissingField   = errors.New("missing required field")
)

// Retryable reports whether a notification delivery error should be retried.
func Retryable(err error) bool {
	return !errors.Is(err, ErrInvalidTarget)
}
