package pg

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// isRetriable returns true for Postgres error codes that indicate a
// transient conflict rather than a real failure.
func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001": // serialization_failure
		return true
	case "40P01": // deadlock_detected
		return true
	default:
		return false
	}
}

// withRetry executes fn, retrying on serialization or deadlock errors
// with jittered exponential backoff. Used only around SaveBundle, the
// one operation that can conflict under concurrent advances sharing a
// parent agent. Each retry is logged at warn level with the Postgres
// error code and attempt number so repeated conflicts on one agent
// lineage show up in the logs rather than only surfacing as latency.
func (b *Backend) withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isRetriable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		var pgErr *pgconn.PgError
		errors.As(err, &pgErr)
		b.logger.WarnContext(ctx, "storage/pg: retrying after conflict",
			"attempt", attempt+1, "max_retries", maxRetries, "code", pgErr.Code)

		jitter := time.Duration(rand.Int64N(int64(baseDelay)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay + jitter):
		}
		baseDelay *= 2
	}
	return err
}
