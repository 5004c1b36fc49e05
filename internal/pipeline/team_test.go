package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type transitionLog struct {
	mu     sync.Mutex
	states []domain.TeamState
}

func (l *transitionLog) observe(_ domain.TeamKey, _, to domain.TeamState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, to)
}

func newTeamPipeline(analyzer Analyzer, store TeamStore) (*TeamPipeline, *transitionLog) {
	log := &transitionLog{}
	p := NewTeamPipeline(analyzer, store, nil, TeamPipelineConfig{
		AnalyzeRetry: fastRetry,
		PersistRetry: fastRetry,
		StageTimeout: time.Second,
	}, zap.NewNop()).WithObserver(log.observe)
	return p, log
}

func TestEnrichTransientTwiceThenSucceeds(t *testing.T) {
	analyzer := newFakeAnalyzer(func(_ context.Context, team *domain.TeamRecord, attempt int) (domain.Analysis, error) {
		if attempt < 3 {
			return domain.Analysis{}, errors.NewServiceError("rate limited", "gemini", "generate", 429, errors.KindTransient, nil)
		}
		return domain.Analysis{Text: "ok", Timestamp: time.Now()}, nil
	})
	store := newFakeTeamStore(nil)
	p, log := newTeamPipeline(analyzer, store)

	record, err := p.Enrich(context.Background(), team("Penn State"))
	require.NoError(t, err)
	require.Equal(t, "ok", record.Analysis.Text)
	require.Equal(t, "Penn State", record.StorageOutcome.Target)
	require.Equal(t, 3, analyzer.Calls("Penn State"))
	require.Equal(t, 1, store.Calls("Penn State"))
	require.Equal(t, []domain.TeamState{
		domain.TeamStateAnalyzing,
		domain.TeamStateAnalyzed,
		domain.TeamStatePersisting,
		domain.TeamStateDone,
	}, log.states)
}

func TestEnrichAlwaysTransientStopsAtMaxAttempts(t *testing.T) {
	analyzer := newFakeAnalyzer(func(context.Context, *domain.TeamRecord, int) (domain.Analysis, error) {
		return domain.Analysis{}, errors.NewServiceError("unavailable", "gemini", "generate", 503, errors.KindTransient, nil)
	})
	store := newFakeTeamStore(nil)
	p, log := newTeamPipeline(analyzer, store)

	_, err := p.Enrich(context.Background(), team("Nebraska"))
	require.Error(t, err)
	require.True(t, errors.IsRetryable(err))
	require.Equal(t, 3, analyzer.Calls("Nebraska"))
	require.Zero(t, store.Calls("Nebraska"))
	require.Equal(t, []domain.TeamState{domain.TeamStateAnalyzing, domain.TeamStateFailed}, log.states)
}

func TestEnrichPermanentIsAttemptedOnce(t *testing.T) {
	analyzer := newFakeAnalyzer(func(context.Context, *domain.TeamRecord, int) (domain.Analysis, error) {
		return domain.Analysis{}, errors.NewServiceError("bad request", "gemini", "generate", 400, errors.KindPermanent, nil)
	})
	p, _ := newTeamPipeline(analyzer, newFakeTeamStore(nil))

	_, err := p.Enrich(context.Background(), team("Stanford"))
	require.Error(t, err)
	require.Equal(t, errors.KindPermanent, errors.KindOf(err))
	require.Equal(t, 1, analyzer.Calls("Stanford"))
}

func TestEnrichStagesHaveIndependentBudgets(t *testing.T) {
	flaky := errors.NewServiceError("flaky", "stub", "call", 500, errors.KindTransient, nil)
	analyzer := newFakeAnalyzer(func(_ context.Context, _ *domain.TeamRecord, attempt int) (domain.Analysis, error) {
		if attempt < 3 {
			return domain.Analysis{}, flaky
		}
		return domain.Analysis{Text: "ok"}, nil
	})
	store := newFakeTeamStore(func(_ context.Context, team *domain.TeamRecord, attempt int) (domain.StorageOutcome, error) {
		if attempt < 3 {
			return domain.StorageOutcome{}, flaky
		}
		return domain.StorageOutcome{Target: team.SchoolName, CellsWritten: 42}, nil
	})
	p, _ := newTeamPipeline(analyzer, store)

	record, err := p.Enrich(context.Background(), team("Texas"))
	require.NoError(t, err)
	require.Equal(t, int64(42), record.StorageOutcome.CellsWritten)
	require.Equal(t, 3, analyzer.Calls("Texas"))
	require.Equal(t, 3, store.Calls("Texas"))
}

func TestEnrichPersistFailureEndsFailed(t *testing.T) {
	store := newFakeTeamStore(func(context.Context, *domain.TeamRecord, int) (domain.StorageOutcome, error) {
		return domain.StorageOutcome{}, errors.NewServiceError("forbidden", "sheets", "update", 403, errors.KindPermanent, nil)
	})
	p, log := newTeamPipeline(newFakeAnalyzer(nil), store)

	_, err := p.Enrich(context.Background(), team("Wisconsin"))
	require.Error(t, err)
	require.Equal(t, 1, store.Calls("Wisconsin"))
	require.Equal(t, domain.TeamStateFailed, log.states[len(log.states)-1])
	require.Contains(t, log.states, domain.TeamStatePersisting)
}

func TestEnrichInvalidRecordSkipsStages(t *testing.T) {
	analyzer := newFakeAnalyzer(nil)
	p, log := newTeamPipeline(analyzer, newFakeTeamStore(nil))

	_, err := p.Enrich(context.Background(), &domain.TeamRecord{SchoolName: " ", Division: domain.DivisionPrimary})
	require.Error(t, err)
	require.Equal(t, errors.KindPermanent, errors.KindOf(err))
	require.Zero(t, analyzer.Calls(" "))
	require.Equal(t, []domain.TeamState{domain.TeamStateFailed}, log.states)

	_, err = p.Enrich(context.Background(), nil)
	require.Error(t, err)
}

func TestEnrichStageTimeoutIsRetried(t *testing.T) {
	analyzer := newFakeAnalyzer(func(ctx context.Context, _ *domain.TeamRecord, attempt int) (domain.Analysis, error) {
		if attempt == 1 {
			<-ctx.Done()
			return domain.Analysis{}, ctx.Err()
		}
		return domain.Analysis{Text: "second try"}, nil
	})
	p := NewTeamPipeline(analyzer, newFakeTeamStore(nil), nil, TeamPipelineConfig{
		AnalyzeRetry: fastRetry,
		PersistRetry: fastRetry,
		StageTimeout: 10 * time.Millisecond,
	}, nil)

	record, err := p.Enrich(context.Background(), team("Kentucky"))
	require.NoError(t, err)
	require.Equal(t, "second try", record.Analysis.Text)
	require.Equal(t, 2, analyzer.Calls("Kentucky"))
}
