package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"go.uber.org/zap"
)

// RetryPolicy bounds attempts for one unit of work. Backoff grows exponentially
// from InitialInterval, capped at MaxInterval. Only transient errors are retried.
type RetryPolicy struct {
	MaxAttempts         int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = time.Second
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.RandomizationFactor < 0 || p.RandomizationFactor >= 1 {
		p.RandomizationFactor = 0
	}
	return p
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOffContext {
	p = p.withDefaults()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.RandomizationFactor = p.RandomizationFactor
	exp.MaxElapsedTime = 0 // bounded by attempts, not wall time

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// RetryResult reports how many attempts a Retry call made.
type RetryResult struct {
	Attempts int
}

// Retry runs fn until it succeeds, returns a non-transient error, the policy's
// attempts are exhausted, or ctx is done. The last error is returned unchanged.
func Retry(ctx context.Context, policy RetryPolicy, logger *zap.Logger, unit string, fn func(ctx context.Context) error) (RetryResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy = policy.withDefaults()

	var result RetryResult
	op := func() error {
		result.Attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		logger.Warn("Retrying unit after transient failure",
			zap.String("unit", unit),
			zap.Int("attempt", result.Attempts),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, policy.newBackOff(ctx), notify)
	return result, err
}
