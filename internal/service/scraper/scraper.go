package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/service/fetch"
	"github.com/kapu/roster-aggregator-go/internal/util"
	"github.com/kapu/roster-aggregator-go/internal/workflow"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FetchCloser is a fetcher owned by exactly one scrape.
type FetchCloser interface {
	Fetcher
	Close()
}

type Options struct {
	ItemConcurrency int
	RequestInterval time.Duration
	FetchRetry      util.RetryPolicy
	Fetch           fetch.Options
}

// Result is the outcome of one source scrape: parsed teams in discovery order
// and one Skip per dropped team page.
type Result struct {
	Teams   []*domain.TeamRecord
	Skipped []domain.Skip
}

// Service builds a fresh scraper per source scrape.
type Service struct {
	extractors map[domain.Division]Extractor
	newFetcher func() FetchCloser
	runner     *workflow.Runner
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(opts Options, runner *workflow.Runner, logger *zap.Logger) *Service {
	if opts.ItemConcurrency <= 0 {
		opts.ItemConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = workflow.NewRunner(logger, nil)
	}
	fetchOpts := opts.Fetch
	return &Service{
		extractors: DefaultExtractors(),
		newFetcher: func() FetchCloser { return fetch.New(fetchOpts) },
		runner:     runner,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// WithExtractors replaces the extractor registry.
func (s *Service) WithExtractors(extractors map[domain.Division]Extractor) *Service {
	s.extractors = extractors
	return s
}

// WithFetcherFactory replaces how per-scrape fetchers are built.
func (s *Service) WithFetcherFactory(newFetcher func() FetchCloser) *Service {
	s.newFetcher = newFetcher
	return s
}

// ExtractorFor returns the extractor for a division. An unknown division is a
// configuration problem and is never retried.
func (s *Service) ExtractorFor(division domain.Division) (Extractor, error) {
	extractor, ok := s.extractors[division]
	if !ok {
		return nil, errors.NewConfigError(fmt.Sprintf("no scraper for division %q", division), "division", errors.KindPermanent)
	}
	return extractor, nil
}

// ScrapeAll discovers and scrapes every team of src. The fetcher it uses lives
// exactly as long as this call.
func (s *Service) ScrapeAll(ctx context.Context, src domain.SourceDescriptor) (*Result, error) {
	if err := src.Validate(); err != nil {
		return &Result{}, err
	}
	extractor, err := s.ExtractorFor(src.Division)
	if err != nil {
		return &Result{}, err
	}

	fetcher := s.newFetcher()
	defer fetcher.Close()

	sc := &sourceScraper{
		Service:   s,
		src:       src,
		extractor: extractor,
		fetcher:   fetcher,
		limiter:   newLimiter(s.opts.RequestInterval),
		logger:    s.logger.With(zap.String("source", src.Name), zap.String("division", src.Division.String())),
	}
	return sc.scrapeAll(ctx)
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

type sourceScraper struct {
	*Service
	src       domain.SourceDescriptor
	extractor Extractor
	fetcher   FetchCloser
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func (sc *sourceScraper) scrapeAll(ctx context.Context) (*Result, error) {
	locators, err := sc.extractor.Discover(ctx, pacedFetcher{sc}, sc.src)
	if err != nil {
		sc.logger.Warn("Team discovery failed", zap.Error(err))
		return &Result{}, fmt.Errorf("discover teams for %s: %w", sc.src.Name, err)
	}

	sc.logger.Info("Discovered team pages", zap.Int("count", len(locators)))

	teams := make([]*domain.TeamRecord, len(locators))
	skips := make([]*domain.Skip, len(locators))
	resultsMu := sync.Mutex{}

	p := pool.New().WithMaxGoroutines(sc.opts.ItemConcurrency)
	for idx, locator := range locators {
		idx, locator := idx, locator
		p.Go(func() {
			team, err := sc.scrapeTeam(ctx, locator)
			resultsMu.Lock()
			defer resultsMu.Unlock()
			if err != nil {
				skip := domain.NewSkip(domain.UnitFetch, sc.src.Name, locator, err)
				skips[idx] = &skip
				return
			}
			teams[idx] = team
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return &Result{}, fmt.Errorf("scrape %s: %w", sc.src.Name, err)
	}

	result := &Result{Teams: make([]*domain.TeamRecord, 0, len(locators))}
	for idx := range locators {
		if skips[idx] != nil {
			sc.logger.Warn("Skipping team page",
				zap.String("locator", skips[idx].Name),
				zap.String("kind", skips[idx].Kind.String()),
				zap.String("reason", skips[idx].Reason),
			)
			sc.runner.Metrics().RecordSkip(string(domain.UnitFetch), skips[idx].Kind)
			result.Skipped = append(result.Skipped, *skips[idx])
			continue
		}
		if teams[idx] != nil {
			result.Teams = append(result.Teams, teams[idx])
		}
	}

	sc.logger.Info("Source scrape completed",
		zap.Int("teams", len(result.Teams)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (sc *sourceScraper) scrapeTeam(ctx context.Context, locator string) (*domain.TeamRecord, error) {
	content, err := pacedFetcher{sc}.Fetch(ctx, locator).Result()
	if err != nil {
		return nil, err
	}

	team, err := sc.extract(content, locator)
	if err != nil {
		if errors.KindOf(err) != errors.KindPermanent {
			err = errors.NewExtractError("extraction failed", locator, err)
		}
		return nil, err
	}
	if team == nil {
		return nil, errors.NewExtractError("extractor returned no team", locator, nil)
	}
	if team.Division == "" {
		team.Division = sc.src.Division
	}
	if team.LastUpdated.IsZero() {
		team.LastUpdated = sc.now().UTC()
	}
	if err := team.Validate(); err != nil {
		return nil, err
	}
	return team, nil
}

// extract runs the extractor for one page. A panic only fails that page.
func (sc *sourceScraper) extract(content []byte, locator string) (team *domain.TeamRecord, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			team = nil
			err = errors.NewExtractError(fmt.Sprintf("extractor panicked: %v", rec), locator, nil)
		}
	}()
	return sc.extractor.Extract(content, locator, sc.src)
}

// pacedFetcher waits on the source's limiter before every attempt and retries
// transient failures under the fetch policy.
type pacedFetcher struct {
	sc *sourceScraper
}

func (f pacedFetcher) Fetch(ctx context.Context, locator string) domain.FetchOutcome {
	var last domain.FetchOutcome
	opts := workflow.UnitOptions{Type: domain.UnitFetch, Name: locator, Retry: f.sc.opts.FetchRetry}

	_, _, err := workflow.Execute(ctx, f.sc.runner, opts, func(ctx context.Context) (struct{}, error) {
		if err := f.sc.limiter.Wait(ctx); err != nil {
			return struct{}{}, errors.Permanent(err)
		}
		last = f.sc.fetcher.Fetch(ctx, locator)
		return struct{}{}, last.Err
	})
	if err != nil && last.Err == nil {
		return domain.FetchFailure(locator, 0, errors.KindOf(err), "fetch aborted", err)
	}
	return last
}
