package storage

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func fastRetries(t *testing.T) {
	t.Helper()
	prev := writeBackoff
	writeBackoff = time.Millisecond
	t.Cleanup(func() { writeBackoff = prev })
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"no rows", pgx.ErrNoRows, false},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := isTransient(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestWithRetryRecoversFromTransientError(t *testing.T) {
	fastRetries(t)
	calls := 0
	err := withRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "08006"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetryGivesUpAfterBudget(t *testing.T) {
	fastRetries(t)
	calls := 0
	err := withRetry(context.Background(), func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	require.Equal(t, writeAttempts, calls)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	fastRetries(t)
	calls := 0
	err := withRetry(context.Background(), func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "23503"}
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestNewDBRejectsMalformedDSN(t *testing.T) {
	_, err := NewDB(context.Background(), "postgres://%zz")
	require.ErrorContains(t, err, "parse postgres config")
}
