package remote

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"net timeout", &net.DNSError{IsTimeout: true}, true},
		{"connection failure 08006", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown 57P01", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation 23505", &pgconn.PgError{Code: "23505"}, false},
		{"invalid password 28P01", &pgconn.PgError{Code: "28P01"}, false},
		{"undefined table 42P01", &pgconn.PgError{Code: "42P01"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, Retryable(tt.err))
		})
	}
}

func TestWithUpsertRetryTerminalErrorNoRetry(t *testing.T) {
	callCount := 0
	terminal := &pgconn.PgError{Code: "23505"}

	err := WithUpsertRetry(context.Background(), func() error {
		callCount++
		return terminal
	}, "test-upsert")

	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, callCount, "terminal errors must not be retried in-cycle")
}

func TestWithUpsertRetrySuccessAfterTransientFailure(t *testing.T) {
	callCount := 0

	err := WithUpsertRetry(context.Background(), func() error {
		callCount++
		if callCount == 1 {
			return &pgconn.PgError{Code: "08006"}
		}
		return nil
	}, "test-upsert")

	assert.NoError(t, err)
	assert.Equal(t, 2, callCount)
}
