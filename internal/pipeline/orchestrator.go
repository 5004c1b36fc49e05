package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/service/scraper"
	"github.com/kapu/roster-aggregator-go/internal/util"
	"github.com/kapu/roster-aggregator-go/internal/workflow"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// SourceScraper scrapes every team of one source.
type SourceScraper interface {
	ScrapeAll(ctx context.Context, src domain.SourceDescriptor) (*scraper.Result, error)
}

type OrchestratorConfig struct {
	Concurrency   int
	SourceRetry   util.RetryPolicy
	SourceTimeout time.Duration
}

// SourceRun is the combined scrape of all sources, in declaration order.
type SourceRun struct {
	Teams   []*domain.TeamRecord
	Skipped []domain.Skip
}

type Orchestrator struct {
	scraper SourceScraper
	runner  *workflow.Runner
	cfg     OrchestratorConfig
	logger  *zap.Logger
}

func NewOrchestrator(sc SourceScraper, runner *workflow.Runner, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = workflow.NewRunner(logger, nil)
	}
	return &Orchestrator{scraper: sc, runner: runner, cfg: cfg, logger: logger}
}

// RunSource scrapes one source under the orchestrator's source policy.
func (o *Orchestrator) RunSource(ctx context.Context, src domain.SourceDescriptor) (*scraper.Result, error) {
	return o.RunSourceWithPolicy(ctx, src, o.cfg.SourceRetry)
}

// RunSourceWithPolicy scrapes one source, retrying transient failures under
// policy. A malformed descriptor fails without any attempt.
func (o *Orchestrator) RunSourceWithPolicy(ctx context.Context, src domain.SourceDescriptor, policy util.RetryPolicy) (*scraper.Result, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	result, report, err := workflow.Execute(ctx, o.runner, workflow.UnitOptions{
		Type:    domain.UnitSource,
		Name:    src.Name,
		Timeout: o.cfg.SourceTimeout,
		Retry:   policy,
	}, func(ctx context.Context) (*scraper.Result, error) {
		return o.scraper.ScrapeAll(ctx, src)
	})
	if err != nil {
		return nil, fmt.Errorf("source %s failed after %d attempt(s): %w", src.Name, report.Attempts, err)
	}
	if result == nil {
		result = &scraper.Result{}
	}
	return result, nil
}

type sourceOutcome struct {
	result *scraper.Result
	err    error
}

// RunAll scrapes all sources with bounded concurrency. A failing source is
// logged and skipped. Only a Fatal error stops the other sources; it is
// returned together with whatever was collected.
func (o *Orchestrator) RunAll(ctx context.Context, sources []domain.SourceDescriptor) (*SourceRun, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]sourceOutcome, len(sources))
	var (
		resultsMu sync.Mutex
		fatalErr  error
	)

	p := pool.New().WithMaxGoroutines(o.cfg.Concurrency)
	for idx, src := range sources {
		idx, src := idx, src
		p.Go(func() {
			result, err := o.RunSource(ctx, src)
			resultsMu.Lock()
			defer resultsMu.Unlock()
			outcomes[idx] = sourceOutcome{result: result, err: err}
			if errors.IsFatal(err) && fatalErr == nil {
				fatalErr = err
				cancel()
			}
		})
	}
	p.Wait()

	run := &SourceRun{Teams: make([]*domain.TeamRecord, 0)}
	for idx, src := range sources {
		outcome := outcomes[idx]
		if outcome.err != nil {
			o.logger.Warn("Source skipped",
				zap.String("source", src.Name),
				zap.String("kind", errors.KindOf(outcome.err).String()),
				zap.Error(outcome.err),
			)
			o.runner.Metrics().RecordSkip(string(domain.UnitSource), errors.KindOf(outcome.err))
			run.Skipped = append(run.Skipped, domain.NewSkip(domain.UnitSource, src.Name, src.Name, outcome.err))
			continue
		}
		run.Teams = append(run.Teams, outcome.result.Teams...)
		run.Skipped = append(run.Skipped, outcome.result.Skipped...)
	}

	kept, duplicates := domain.DedupeTeams(run.Teams)
	for _, dup := range duplicates {
		o.logger.Warn("Dropping duplicate team", zap.String("team", dup.Key().String()))
		run.Skipped = append(run.Skipped, domain.NewSkip(domain.UnitTeam, "", dup.SchoolName,
			errors.NewValidationError("duplicate team in run", "school_name", dup.SchoolName)))
	}
	run.Teams = kept

	o.logger.Info("Sources scraped",
		zap.Int("sources", len(sources)),
		zap.Int("teams", len(run.Teams)),
		zap.Int("skipped", len(run.Skipped)),
	)
	return run, fatalErr
}
