package app

import (
	"context"
	"fmt"

	"github.com/kapu/roster-aggregator-go/internal/config"
	"github.com/kapu/roster-aggregator-go/internal/constants"
	"github.com/kapu/roster-aggregator-go/internal/metrics"
	"github.com/kapu/roster-aggregator-go/internal/pipeline"
	"github.com/kapu/roster-aggregator-go/internal/service/analysis"
	"github.com/kapu/roster-aggregator-go/internal/service/cache"
	"github.com/kapu/roster-aggregator-go/internal/service/database"
	"github.com/kapu/roster-aggregator-go/internal/service/fetch"
	"github.com/kapu/roster-aggregator-go/internal/service/results"
	"github.com/kapu/roster-aggregator-go/internal/service/scraper"
	"github.com/kapu/roster-aggregator-go/internal/service/sheets"
	"github.com/kapu/roster-aggregator-go/internal/util"
	"github.com/kapu/roster-aggregator-go/internal/workflow"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"go.uber.org/zap"
)

// Container bundles the assembled services of one process.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Recorder
	Controller *pipeline.Controller

	closers []func()
}

// Close releases every resource acquired by Build, newest first.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// PushMetrics sends the run's metrics to the configured Pushgateway, if any.
func (c *Container) PushMetrics(ctx context.Context) {
	if c.Config.Metrics.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, constants.TimeoutDefaults.MetricPush)
	defer cancel()
	if err := c.Metrics.Push(pushCtx, c.Config.Metrics.PushgatewayURL, c.Config.Metrics.Job); err != nil {
		c.Logger.Warn("Failed to push metrics", zap.Error(err))
	}
}

// RetryPolicy converts configured retry settings into a runner policy.
func RetryPolicy(s config.RetrySettings) util.RetryPolicy {
	return util.RetryPolicy{
		MaxAttempts:         s.MaxAttempts,
		InitialInterval:     s.InitialInterval,
		MaxInterval:         s.MaxInterval,
		Multiplier:          constants.RetryDefaults.Multiplier,
		RandomizationFactor: constants.RetryDefaults.RandomizationFactor,
	}
}

// BuildScrape assembles only the scraping side, enough for single-source runs.
// It needs no analysis or spreadsheet credentials.
func BuildScrape(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	recorder := metrics.NewRecorder()
	runner := workflow.NewRunner(logger, recorder)
	orchestrator := newOrchestrator(cfg, runner, logger)

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    recorder,
		Controller: pipeline.NewController(cfg.Sources, orchestrator, nil, nil, runner, controllerConfig(cfg), logger),
	}, nil
}

// Build assembles the full aggregation graph. Startup failures are Fatal and
// release whatever was already acquired.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.ValidateAggregation(); err != nil {
		return nil, err
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	recorder := metrics.NewRecorder()
	runner := workflow.NewRunner(logger, recorder)

	// Analysis stack
	modelManager, err := analysis.NewModelManager(ctx, analysis.ModelManagerConfig{
		Gemini:         analysis.ProviderConfig{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model},
		OpenAI:         analysis.ProviderConfig{APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model},
		EnableFallback: cfg.OpenAI.EnableFallback,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model manager: %w", err)
	}

	var (
		analyzer pipeline.Analyzer = modelManager
		cached   bool
	)
	if cfg.Redis.Enabled {
		cacheSvc, cacheErr := cache.NewCacheService(ctx, cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if cacheErr != nil {
			logger.Warn("Analysis cache unavailable, continuing without it", zap.Error(cacheErr))
		} else {
			closers = append(closers, func() {
				_ = cacheSvc.Close()
			})
			analyzer = analysis.NewCachedAnalyzer(modelManager, cacheSvc, cfg.Redis.TTL, logger)
			cached = true
		}
	}

	// Spreadsheet
	sheetStore, err := sheets.NewStore(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.CredentialsFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets store: %w", err)
	}

	// Final batch persistence
	batch := results.MultiStore{results.NewFileStore(cfg.Output.Dir, logger)}
	if cfg.Postgres.Enabled {
		postgresSvc, pgErr := database.NewPostgresService(ctx, database.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
		}, logger)
		if pgErr != nil {
			return nil, errors.Fatal(fmt.Errorf("failed to create postgres service: %w", pgErr))
		}
		closers = append(closers, func() {
			_ = postgresSvc.Close()
		})
		batch = append(batch, results.NewPostgresStore(postgresSvc.GetDB(), logger))
	}

	teamPipeline := pipeline.NewTeamPipeline(analyzer, sheetStore, runner, pipeline.TeamPipelineConfig{
		AnalyzeRetry: RetryPolicy(cfg.Retry.Stage),
		PersistRetry: RetryPolicy(cfg.Retry.Stage),
		StageTimeout: cfg.Timeouts.Stage,
	}, logger)

	controller := pipeline.NewController(
		cfg.Sources,
		newOrchestrator(cfg, runner, logger),
		teamPipeline,
		batch,
		runner,
		controllerConfig(cfg),
		logger,
	)

	logger.Info("Aggregation services ready",
		zap.Int("sources", len(cfg.Sources)),
		zap.String("batch_store", batch.Name()),
		zap.Bool("analysis_cache", cached),
	)

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    recorder,
		Controller: controller,
		closers:    closers,
	}, nil
}

func newOrchestrator(cfg *config.Config, runner *workflow.Runner, logger *zap.Logger) *pipeline.Orchestrator {
	scraperSvc := scraper.NewService(scraper.Options{
		ItemConcurrency: cfg.Scraper.ItemConcurrency,
		RequestInterval: cfg.Scraper.RequestInterval,
		FetchRetry:      RetryPolicy(cfg.Retry.Fetch),
		Fetch: fetch.Options{
			Timeout:   cfg.Scraper.RequestTimeout,
			UserAgent: cfg.Scraper.UserAgent,
		},
	}, runner, logger)

	return pipeline.NewOrchestrator(scraperSvc, runner, pipeline.OrchestratorConfig{
		Concurrency:   cfg.Scraper.SourceConcurrency,
		SourceRetry:   RetryPolicy(cfg.Retry.Source),
		SourceTimeout: cfg.Timeouts.Source,
	}, logger)
}

func controllerConfig(cfg *config.Config) pipeline.ControllerConfig {
	return pipeline.ControllerConfig{
		TeamConcurrency:   cfg.Pipeline.TeamConcurrency,
		TeamTimeout:       cfg.Timeouts.Team,
		RunTimeout:        cfg.Timeouts.Run,
		BatchTimeout:      cfg.Timeouts.Batch,
		BatchRetry:        RetryPolicy(cfg.Retry.Batch),
		SingleSourceRetry: RetryPolicy(cfg.Retry.Source),
	}
}
