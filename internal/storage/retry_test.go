package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-htsget/htsgetd/internal/htserr"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	err := Retry(context.Background(), policy, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return htserr.Transient.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	err := Retry(context.Background(), policy, func(ctx context.Context) error {
		calls++
		return htserr.Transient.New("always flaky")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryDoesNotRetryNonTransientErrors(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	err := Retry(context.Background(), policy, func(ctx context.Context) error {
		calls++
		return htserr.NotFound.New("gone")
	})
	require.Error(t, err)
	require.True(t, htserr.NotFound.Has(err))
	require.Equal(t, 1, calls)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}
	err := Retry(ctx, policy, func(ctx context.Context) error {
		return htserr.Transient.New("flaky")
	})
	require.True(t, errors.Is(err, context.Canceled))
}
