package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/service/scraper"
	"github.com/kapu/roster-aggregator-go/internal/util"
)

var fastRetry = util.RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func source(name string) domain.SourceDescriptor {
	return domain.SourceDescriptor{
		Name:     name,
		Division: domain.DivisionPrimary,
		BaseURL:  "https://example.com/" + name,
	}
}

func team(school string) *domain.TeamRecord {
	return &domain.TeamRecord{
		SchoolName:  school,
		Division:    domain.DivisionPrimary,
		Players:     []domain.Player{{Name: school + " Setter"}},
		LastUpdated: time.Now(),
	}
}

type scrapeFunc func(ctx context.Context, src domain.SourceDescriptor) (*scraper.Result, error)

// fakeScraper dispatches by source name and counts calls per source.
type fakeScraper struct {
	mu     sync.Mutex
	calls  map[string]int
	scrape map[string]scrapeFunc
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{calls: map[string]int{}, scrape: map[string]scrapeFunc{}}
}

func (f *fakeScraper) on(name string, fn scrapeFunc) *fakeScraper {
	f.scrape[name] = fn
	return f
}

func (f *fakeScraper) teams(name string, schools ...string) *fakeScraper {
	return f.on(name, func(context.Context, domain.SourceDescriptor) (*scraper.Result, error) {
		result := &scraper.Result{}
		for _, school := range schools {
			result.Teams = append(result.Teams, team(school))
		}
		return result, nil
	})
}

func (f *fakeScraper) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeScraper) ScrapeAll(ctx context.Context, src domain.SourceDescriptor) (*scraper.Result, error) {
	f.mu.Lock()
	f.calls[src.Name]++
	fn := f.scrape[src.Name]
	f.mu.Unlock()
	if fn == nil {
		return &scraper.Result{}, nil
	}
	return fn(ctx, src)
}

type analyzeFunc func(ctx context.Context, team *domain.TeamRecord, attempt int) (domain.Analysis, error)

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls map[string]int
	fn    analyzeFunc
}

func newFakeAnalyzer(fn analyzeFunc) *fakeAnalyzer {
	if fn == nil {
		fn = func(_ context.Context, team *domain.TeamRecord, _ int) (domain.Analysis, error) {
			return domain.Analysis{Text: "analysis of " + team.SchoolName, Provider: "stub", Timestamp: time.Now()}, nil
		}
	}
	return &fakeAnalyzer{calls: map[string]int{}, fn: fn}
}

func (f *fakeAnalyzer) Calls(school string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[school]
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, team *domain.TeamRecord) (domain.Analysis, error) {
	f.mu.Lock()
	f.calls[team.SchoolName]++
	attempt := f.calls[team.SchoolName]
	f.mu.Unlock()
	return f.fn(ctx, team, attempt)
}

type persistFunc func(ctx context.Context, team *domain.TeamRecord, attempt int) (domain.StorageOutcome, error)

type fakeTeamStore struct {
	mu    sync.Mutex
	calls map[string]int
	fn    persistFunc
}

func newFakeTeamStore(fn persistFunc) *fakeTeamStore {
	if fn == nil {
		fn = func(_ context.Context, team *domain.TeamRecord, _ int) (domain.StorageOutcome, error) {
			return domain.StorageOutcome{Target: team.SchoolName, CellsWritten: 10}, nil
		}
	}
	return &fakeTeamStore{calls: map[string]int{}, fn: fn}
}

func (f *fakeTeamStore) Calls(school string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[school]
}

func (f *fakeTeamStore) Persist(ctx context.Context, team *domain.TeamRecord, _ domain.Analysis) (domain.StorageOutcome, error) {
	f.mu.Lock()
	f.calls[team.SchoolName]++
	attempt := f.calls[team.SchoolName]
	f.mu.Unlock()
	return f.fn(ctx, team, attempt)
}

type fakeBatchStore struct {
	calls int32
	err   error
	saved *domain.RunResult
}

func (f *fakeBatchStore) Save(_ context.Context, result *domain.RunResult) error {
	atomic.AddInt32(&f.calls, 1)
	f.saved = result
	return f.err
}

func (f *fakeBatchStore) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

func schools(teams []*domain.TeamRecord) []string {
	names := make([]string, 0, len(teams))
	for _, t := range teams {
		names = append(names, t.SchoolName)
	}
	return names
}

func recordSchools(records []*domain.EnrichedRecord) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Team.SchoolName)
	}
	return names
}
