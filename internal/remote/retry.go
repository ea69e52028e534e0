package remote

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	goretry "github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/dentistedb/cloudsync/internal/retry"
)

// Retryable reports whether a remote failure is worth retrying within the
// same cycle. Connection-class failures (SQLSTATE 08xxx), server shutdown
// (57xxx) and timeouts recover on their own. Everything else (constraint
// violations, auth failures, bad data) will fail identically on retry and is
// left for the next cycle with the watermark unchanged.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57")
	}

	return pgconn.SafeToRetry(err)
}

// WithUpsertRetry runs a remote operation, retrying with backoff only while
// the failure is classified as retryable.
func WithUpsertRetry(ctx context.Context, operation func() error, operationName string) error {
	backoff := retry.RemoteDefaults().CreateBackoff()

	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		err := operation()
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}

		logrus.WithError(err).
			WithField("operation", operationName).
			Warn("Retryable remote failure, backing off")
		return goretry.RetryableError(err)
	})
}
