package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/constants"
	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/prompt"
	"github.com/kapu/roster-aggregator-go/internal/util"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"go.uber.org/zap"
)

// Analyzer produces the written analysis for one team.
type Analyzer interface {
	Analyze(ctx context.Context, team *domain.TeamRecord) (domain.Analysis, error)
}

// ModelManager calls the primary provider and, when enabled, the fallback.
// A shared circuit breaker stops calls while both keep failing.
type ModelManager struct {
	primary        Provider
	fallback       Provider
	circuitBreaker *util.CircuitBreaker
	temperature    float32
	maxTokens      int
	logger         *zap.Logger
	now            func() time.Time
}

type ModelManagerConfig struct {
	Gemini         ProviderConfig
	OpenAI         ProviderConfig
	EnableFallback bool
}

// NewModelManager builds Gemini as primary. Without a Gemini key OpenAI becomes
// the primary provider.
func NewModelManager(ctx context.Context, cfg ModelManagerConfig, logger *zap.Logger) (*ModelManager, error) {
	var primary, fallback Provider

	if cfg.Gemini.APIKey != "" {
		gemini, err := NewGeminiProvider(ctx, cfg.Gemini, logger)
		if err != nil {
			return nil, errors.NewServiceError("failed to create Gemini client", "gemini", "init", 0, errors.KindFatal, err)
		}
		primary = gemini
	}

	if openaiProvider := NewOpenAIProvider(cfg.OpenAI, logger); openaiProvider != nil {
		switch {
		case primary == nil:
			primary = openaiProvider
		case cfg.EnableFallback:
			fallback = openaiProvider
		}
	}

	if primary == nil {
		return nil, errors.NewConfigError("no analysis provider configured", "GEMINI_API_KEY", errors.KindFatal)
	}

	mm := NewModelManagerWithProviders(primary, fallback, logger)
	logger.Info("Analysis providers ready",
		zap.String("primary", primary.Name()),
		zap.Bool("fallback", fallback != nil),
	)
	return mm, nil
}

func NewModelManagerWithProviders(primary, fallback Provider, logger *zap.Logger) *ModelManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelManager{
		primary:  primary,
		fallback: fallback,
		circuitBreaker: util.NewCircuitBreaker(
			"analysis",
			constants.CircuitBreakerConfig.FailureThreshold,
			constants.CircuitBreakerConfig.ResetTimeout,
			logger,
		),
		temperature: constants.AnalysisConfig.Temperature,
		maxTokens:   constants.AnalysisConfig.MaxOutputTokens,
		logger:      logger,
		now:         time.Now,
	}
}

func (mm *ModelManager) Analyze(ctx context.Context, team *domain.TeamRecord) (domain.Analysis, error) {
	if err := team.Validate(); err != nil {
		return domain.Analysis{}, err
	}

	p, err := prompt.BuildTeamAnalysisPrompt(team)
	if err != nil {
		return domain.Analysis{}, errors.Permanent(err)
	}
	req := Request{System: p.System, Prompt: p.User, Temperature: mm.temperature, MaxOutputTokens: mm.maxTokens}

	if !mm.circuitBreaker.CanExecute() {
		status := mm.circuitBreaker.Status()
		mm.logger.Warn("Analysis skipped, circuit open",
			zap.String("school", team.SchoolName),
			zap.Int("failure_count", status.FailureCount),
		)
		return domain.Analysis{}, errors.NewServiceError("analysis providers unavailable", "analysis", "generate", 503, errors.KindTransient, nil)
	}

	analysis, primaryErr := mm.invoke(ctx, mm.primary, req)
	if primaryErr == nil {
		mm.circuitBreaker.RecordSuccess()
		return analysis, nil
	}
	mm.recordFailure(primaryErr)

	if mm.fallback == nil || ctx.Err() != nil {
		return domain.Analysis{}, primaryErr
	}

	mm.logger.Info("Falling back to secondary analysis provider",
		zap.String("school", team.SchoolName),
		zap.String("provider", mm.fallback.Name()),
		zap.Error(primaryErr),
	)
	analysis, fallbackErr := mm.invoke(ctx, mm.fallback, req)
	if fallbackErr == nil {
		mm.circuitBreaker.RecordSuccess()
		return analysis, nil
	}
	mm.recordFailure(fallbackErr)

	// report the retryable error when there is one
	if errors.IsRetryable(primaryErr) && !errors.IsRetryable(fallbackErr) {
		return domain.Analysis{}, primaryErr
	}
	return domain.Analysis{}, fallbackErr
}

func (mm *ModelManager) invoke(ctx context.Context, provider Provider, req Request) (domain.Analysis, error) {
	resp, err := provider.Generate(ctx, req)
	if err != nil {
		return domain.Analysis{}, classifyProviderError(provider.Name(), err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return domain.Analysis{}, errors.NewServiceError(provider.Name()+" returned an empty analysis", provider.Name(), "generate", 0, errors.KindTransient, nil)
	}

	return domain.Analysis{
		Text:      text,
		Provider:  provider.Name(),
		Model:     resp.Model,
		Timestamp: mm.now().UTC(),
	}, nil
}

// recordFailure counts only service-side failures against the breaker.
func (mm *ModelManager) recordFailure(err error) {
	if !errors.IsRetryable(err) || errors.Is(err, context.Canceled) {
		return
	}
	cooldown := time.Duration(0)
	if isRateLimited(err) {
		cooldown = constants.CircuitBreakerConfig.RateLimitTimeout
	}
	mm.circuitBreaker.RecordFailure(cooldown)
}

func (mm *ModelManager) CircuitStatus() util.CircuitBreakerStatus {
	return mm.circuitBreaker.Status()
}
