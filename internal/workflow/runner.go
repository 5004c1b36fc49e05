package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/metrics"
	"github.com/kapu/roster-aggregator-go/internal/util"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"go.uber.org/zap"
)

// UnitOptions describes how one unit of work is executed.
type UnitOptions struct {
	Type    domain.UnitType
	Name    string
	Timeout time.Duration // per attempt; zero means no limit
	Retry   util.RetryPolicy
}

// Report summarises a finished unit.
type Report struct {
	Attempts int
	Duration time.Duration
}

// Runner executes units in-process: each attempt gets its own deadline, transient
// failures are retried under the unit's policy, and panics become permanent errors.
type Runner struct {
	logger  *zap.Logger
	metrics *metrics.Recorder
}

func NewRunner(logger *zap.Logger, recorder *metrics.Recorder) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, metrics: recorder}
}

func (r *Runner) Logger() *zap.Logger {
	return r.logger
}

func (r *Runner) Metrics() *metrics.Recorder {
	return r.metrics
}

// Execute runs fn as one unit and returns its value with an execution report.
func Execute[T any](ctx context.Context, r *Runner, opts UnitOptions, fn func(ctx context.Context) (T, error)) (T, Report, error) {
	var (
		value T
		start = time.Now()
		label = fmt.Sprintf("%s:%s", opts.Type, opts.Name)
	)

	res, err := util.Retry(ctx, opts.Retry, r.logger, label, func(ctx context.Context) error {
		v, err := runAttempt(ctx, opts, fn)
		if err != nil {
			return err
		}
		value = v
		return nil
	})

	report := Report{Attempts: res.Attempts, Duration: time.Since(start)}
	r.metrics.RecordUnit(string(opts.Type), report.Attempts, report.Duration, err)

	if err != nil {
		var zero T
		return zero, report, err
	}
	return value, report, nil
}

func runAttempt[T any](ctx context.Context, opts UnitOptions, fn func(ctx context.Context) (T, error)) (value T, err error) {
	attemptCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New(fmt.Sprintf("%s %q panicked: %v", opts.Type, opts.Name, rec), errors.CodeService, errors.KindPermanent, nil)
		}
	}()

	value, err = fn(attemptCtx)
	if err != nil && ctx.Err() == nil && attemptCtx.Err() == context.DeadlineExceeded {
		err = errors.New(fmt.Sprintf("%s %q timed out after %s", opts.Type, opts.Name, opts.Timeout), errors.CodeTimeout, errors.KindTransient, nil).WithCause(err)
	}
	return value, err
}
