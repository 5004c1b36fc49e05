package util

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestRetryStopsAtMaxAttemptsOnTransient(t *testing.T) {
	calls := 0
	res, err := Retry(context.Background(), fastPolicy(3), zap.NewNop(), "analyze", func(context.Context) error {
		calls++
		return errors.NewServiceError("rate limited", "gemini", "generate", 429, errors.KindTransient, nil)
	})

	require.Error(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 3, res.Attempts)
	require.True(t, errors.IsRetryable(err))
}

func TestRetryDoesNotRetryPermanent(t *testing.T) {
	calls := 0
	permanent := errors.NewValidationError("school name is required", "school_name", "")
	res, err := Retry(context.Background(), fastPolicy(3), nil, "analyze", func(context.Context) error {
		calls++
		return permanent
	})

	require.Equal(t, 1, calls)
	require.Equal(t, 1, res.Attempts)

	var ve *errors.ValidationError
	require.True(t, stderrors.As(err, &ve))
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	res, err := Retry(context.Background(), fastPolicy(3), nil, "persist", func(context.Context) error {
		calls++
		if calls < 3 {
			return stderrors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, res.Attempts)
}

func TestRetryRespectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := RetryPolicy{MaxAttempts: 5, InitialInterval: time.Hour, MaxInterval: time.Hour}

	_, err := Retry(ctx, policy, nil, "source", func(context.Context) error {
		calls++
		cancel()
		return stderrors.New("flaky")
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	require.Equal(t, 1, p.MaxAttempts)
	require.Equal(t, time.Second, p.InitialInterval)
	require.Equal(t, time.Second, p.MaxInterval)
	require.Equal(t, 2.0, p.Multiplier)
}
