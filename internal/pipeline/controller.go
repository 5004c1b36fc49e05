package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/util"
	"github.com/kapu/roster-aggregator-go/internal/workflow"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// TeamEnricher turns one scraped team into an enriched record.
type TeamEnricher interface {
	Enrich(ctx context.Context, team *domain.TeamRecord) (*domain.EnrichedRecord, error)
}

// BatchStore persists the records of a whole run.
type BatchStore interface {
	Save(ctx context.Context, result *domain.RunResult) error
}

type ControllerConfig struct {
	TeamConcurrency   int
	TeamTimeout       time.Duration
	RunTimeout        time.Duration
	BatchTimeout      time.Duration
	BatchRetry        util.RetryPolicy
	SingleSourceRetry util.RetryPolicy
}

// Controller drives a full aggregation run.
type Controller struct {
	sources      []domain.SourceDescriptor
	orchestrator *Orchestrator
	enricher     TeamEnricher
	batch        BatchStore
	runner       *workflow.Runner
	cfg          ControllerConfig
	logger       *zap.Logger

	newRunID func() string
	now      func() time.Time
}

func NewController(
	sources []domain.SourceDescriptor,
	orchestrator *Orchestrator,
	enricher TeamEnricher,
	batch BatchStore,
	runner *workflow.Runner,
	cfg ControllerConfig,
	logger *zap.Logger,
) *Controller {
	if cfg.TeamConcurrency <= 0 {
		cfg.TeamConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = workflow.NewRunner(logger, nil)
	}
	return &Controller{
		sources:      sources,
		orchestrator: orchestrator,
		enricher:     enricher,
		batch:        batch,
		runner:       runner,
		cfg:          cfg,
		logger:       logger,
		newRunID:     func() string { return uuid.NewString() },
		now:          time.Now,
	}
}

// Run scrapes every configured source, enriches the collected teams and saves
// the batch. Only Fatal failures make it return an error; everything else ends
// up in RunResult.Skipped.
func (c *Controller) Run(ctx context.Context) (*domain.RunResult, error) {
	if c.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RunTimeout)
		defer cancel()
	}

	result := &domain.RunResult{
		RunID:     c.newRunID(),
		StartedAt: c.now().UTC(),
		Records:   make([]*domain.EnrichedRecord, 0),
	}
	logger := c.logger.With(zap.String("run_id", result.RunID))
	logger.Info("Aggregation run started", zap.Int("sources", len(c.sources)))

	scraped, err := c.orchestrator.RunAll(ctx, c.sources)
	result.Skipped = append(result.Skipped, scraped.Skipped...)
	if err != nil {
		return c.abort(ctx, result, err)
	}

	records, skips, err := c.enrichAll(ctx, logger, scraped.Teams)
	result.Records = records
	result.Skipped = append(result.Skipped, skips...)
	if err != nil {
		return c.abort(ctx, result, err)
	}
	if err := ctx.Err(); err != nil {
		return c.abort(ctx, result, err)
	}

	result.FinishedAt = c.now().UTC()
	c.runner.Metrics().SetRecords(len(result.Records))

	if len(result.Records) == 0 {
		logger.Info("No enriched records, skipping batch persistence", zap.Int("skipped", len(result.Skipped)))
		return result, nil
	}

	_, report, err := workflow.Execute(ctx, c.runner, workflow.UnitOptions{
		Type:    domain.UnitBatch,
		Name:    result.RunID,
		Timeout: c.cfg.BatchTimeout,
		Retry:   c.cfg.BatchRetry,
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.batch.Save(ctx, result)
	})
	if err != nil {
		return c.abort(ctx, result, fmt.Errorf("save batch after %d attempt(s): %w", report.Attempts, err))
	}

	logger.Info("Aggregation run completed",
		zap.Int("records", len(result.Records)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

func (c *Controller) abort(ctx context.Context, result *domain.RunResult, err error) (*domain.RunResult, error) {
	result.FinishedAt = c.now().UTC()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errors.New(fmt.Sprintf("aggregation run exceeded %s", c.cfg.RunTimeout), errors.CodeTimeout, errors.KindFatal, nil).WithCause(err)
	} else if !errors.IsFatal(err) {
		err = errors.Fatal(err)
	}
	c.logger.Error("Aggregation run failed", zap.String("run_id", result.RunID), zap.Error(err))
	return result, err
}

type teamOutcome struct {
	record *domain.EnrichedRecord
	err    error
}

func (c *Controller) enrichAll(ctx context.Context, logger *zap.Logger, teams []*domain.TeamRecord) ([]*domain.EnrichedRecord, []domain.Skip, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]teamOutcome, len(teams))
	var (
		resultsMu sync.Mutex
		fatalErr  error
	)

	p := pool.New().WithMaxGoroutines(c.cfg.TeamConcurrency)
	for idx, team := range teams {
		idx, team := idx, team
		p.Go(func() {
			record, err := c.enrichTeam(ctx, team)
			resultsMu.Lock()
			defer resultsMu.Unlock()
			outcomes[idx] = teamOutcome{record: record, err: err}
			if errors.IsFatal(err) && fatalErr == nil {
				fatalErr = err
				cancel()
			}
		})
	}
	p.Wait()

	records := make([]*domain.EnrichedRecord, 0, len(teams))
	var skips []domain.Skip
	for idx, team := range teams {
		outcome := outcomes[idx]
		if outcome.err != nil {
			logger.Warn("Team skipped",
				zap.String("team", team.SchoolName),
				zap.String("kind", errors.KindOf(outcome.err).String()),
				zap.Error(outcome.err),
			)
			c.runner.Metrics().RecordSkip(string(domain.UnitTeam), errors.KindOf(outcome.err))
			skips = append(skips, domain.NewSkip(domain.UnitTeam, "", team.SchoolName, outcome.err))
			continue
		}
		records = append(records, outcome.record)
	}
	return records, skips, fatalErr
}

func (c *Controller) enrichTeam(ctx context.Context, team *domain.TeamRecord) (*domain.EnrichedRecord, error) {
	if c.cfg.TeamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.TeamTimeout)
		defer cancel()
	}

	start := time.Now()
	record, err := c.enricher.Enrich(ctx, team)
	if err == nil && record == nil {
		err = errors.New("enrichment returned no record", errors.CodeService, errors.KindPermanent, nil)
	}
	c.runner.Metrics().RecordUnit(string(domain.UnitTeam), 1, time.Since(start), err)
	return record, err
}

// RunSingleSource scrapes one source under its own retry policy, without
// enrichment or persistence.
func (c *Controller) RunSingleSource(ctx context.Context, src domain.SourceDescriptor) ([]*domain.TeamRecord, error) {
	if c.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RunTimeout)
		defer cancel()
	}

	result, err := c.orchestrator.RunSourceWithPolicy(ctx, src, c.cfg.SingleSourceRetry)
	if err != nil {
		c.logger.Error("Single source run failed", zap.String("source", src.Name), zap.Error(err))
		return nil, err
	}
	for _, skip := range result.Skipped {
		c.logger.Warn("Team page skipped", zap.String("source", src.Name), zap.String("locator", skip.Name), zap.String("reason", skip.Reason))
	}

	teams, duplicates := domain.DedupeTeams(result.Teams)
	for _, dup := range duplicates {
		c.logger.Warn("Dropping duplicate team", zap.String("source", src.Name), zap.String("team", dup.Key().String()))
		c.runner.Metrics().RecordSkip(string(domain.UnitTeam), errors.KindPermanent)
	}
	c.logger.Info("Single source run completed", zap.String("source", src.Name), zap.Int("teams", len(teams)))
	return teams, nil
}
