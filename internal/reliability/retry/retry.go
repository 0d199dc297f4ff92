package retry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yourorg/timetrack/internal/domain"
)

// Retryable is a function that can be retried
type Retryable[T any] func(ctx context.Context) (T, error)

// Do executes a retryable function up to attempts times, retrying only
// failures the domain classifies as transient. Backoff between attempts
// belongs to the store transport; this helper only bounds the attempt
// count. Validation, authorization, and transition errors surface on
// the first attempt.
func Do[T any](ctx context.Context, attempts int, log *slog.Logger, op string, fn Retryable[T]) (T, error) {
	var zero T
	var lastErr error

	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !domain.IsTransient(err) {
			return zero, err
		}

		lastErr = err
		if attempt < attempts {
			log.Warn("operation failed, retrying",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.String("error", err.Error()),
			)
		}
	}

	return zero, fmt.Errorf("operation '%s' failed after %d attempts: %w", op, attempts, lastErr)
}
