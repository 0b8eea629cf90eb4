package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Counter reports the number of stored activities.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// RunStoredGauge refreshes the stored activities gauge every interval until ctx is done.
// Count failures are logged and retried on the next tick.
func RunStoredGauge(ctx context.Context, counter Counter, interval time.Duration, logger zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := counter.Count(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn().Err(err).Msg("failed to count stored activities")
		} else {
			RecordActivitiesStored(n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
