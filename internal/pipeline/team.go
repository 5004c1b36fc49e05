package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/util"
	"github.com/kapu/roster-aggregator-go/internal/workflow"
	"go.uber.org/zap"
)

// Analyzer writes the analysis for one team.
type Analyzer interface {
	Analyze(ctx context.Context, team *domain.TeamRecord) (domain.Analysis, error)
}

// TeamStore persists one analysed team, e.g. as a spreadsheet tab.
type TeamStore interface {
	Persist(ctx context.Context, team *domain.TeamRecord, analysis domain.Analysis) (domain.StorageOutcome, error)
}

type TeamPipelineConfig struct {
	AnalyzeRetry util.RetryPolicy
	PersistRetry util.RetryPolicy
	StageTimeout time.Duration
}

// TeamPipeline enriches one team at a time: analyze, then persist, each stage
// retried under its own budget.
type TeamPipeline struct {
	analyzer Analyzer
	store    TeamStore
	runner   *workflow.Runner
	cfg      TeamPipelineConfig
	logger   *zap.Logger
	observer domain.TransitionFunc
}

func NewTeamPipeline(analyzer Analyzer, store TeamStore, runner *workflow.Runner, cfg TeamPipelineConfig, logger *zap.Logger) *TeamPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = workflow.NewRunner(logger, nil)
	}
	return &TeamPipeline{
		analyzer: analyzer,
		store:    store,
		runner:   runner,
		cfg:      cfg,
		logger:   logger,
	}
}

// WithObserver registers a callback for every state transition.
func (p *TeamPipeline) WithObserver(observer domain.TransitionFunc) *TeamPipeline {
	p.observer = observer
	return p
}

func (p *TeamPipeline) observe(key domain.TeamKey, from, to domain.TeamState) {
	p.logger.Debug("Team state transition",
		zap.String("team", key.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if p.observer != nil {
		p.observer(key, from, to)
	}
}

// Enrich runs both stages for team. On failure the team ends in FAILED and the
// stage error is returned; it is the caller's job to skip the team.
func (p *TeamPipeline) Enrich(ctx context.Context, team *domain.TeamRecord) (*domain.EnrichedRecord, error) {
	if err := team.Validate(); err != nil {
		if team != nil {
			p.fail(domain.NewTeamProgress(team.Key(), p.observe))
		}
		return nil, err
	}

	progress := domain.NewTeamProgress(team.Key(), p.observe)
	if err := progress.Transition(domain.TeamStateAnalyzing); err != nil {
		return nil, err
	}

	analysis, report, err := workflow.Execute(ctx, p.runner, workflow.UnitOptions{
		Type:    domain.UnitAnalyze,
		Name:    team.SchoolName,
		Timeout: p.cfg.StageTimeout,
		Retry:   p.cfg.AnalyzeRetry,
	}, func(ctx context.Context) (domain.Analysis, error) {
		return p.analyzer.Analyze(ctx, team)
	})
	if err != nil {
		p.fail(progress)
		return nil, fmt.Errorf("analyze %s after %d attempt(s): %w", team.SchoolName, report.Attempts, err)
	}

	if err := progress.Transition(domain.TeamStateAnalyzed); err != nil {
		return nil, err
	}
	if err := progress.Transition(domain.TeamStatePersisting); err != nil {
		return nil, err
	}

	outcome, report, err := workflow.Execute(ctx, p.runner, workflow.UnitOptions{
		Type:    domain.UnitPersist,
		Name:    team.SchoolName,
		Timeout: p.cfg.StageTimeout,
		Retry:   p.cfg.PersistRetry,
	}, func(ctx context.Context) (domain.StorageOutcome, error) {
		return p.store.Persist(ctx, team, analysis)
	})
	if err != nil {
		p.fail(progress)
		return nil, fmt.Errorf("persist %s after %d attempt(s): %w", team.SchoolName, report.Attempts, err)
	}

	if err := progress.Transition(domain.TeamStateDone); err != nil {
		return nil, err
	}

	return &domain.EnrichedRecord{
		Team:           team,
		Analysis:       analysis,
		StorageOutcome: outcome,
	}, nil
}

func (p *TeamPipeline) fail(progress *domain.TeamProgress) {
	if err := progress.Transition(domain.TeamStateFailed); err != nil {
		p.logger.Error("Invalid team state transition", zap.String("team", progress.Key.String()), zap.Error(err))
	}
}
