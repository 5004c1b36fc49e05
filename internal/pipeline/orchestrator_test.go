package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/service/scraper"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newOrchestrator(sc SourceScraper, concurrency int, logger *zap.Logger) *Orchestrator {
	return NewOrchestrator(sc, nil, OrchestratorConfig{
		Concurrency:   concurrency,
		SourceRetry:   fastRetry,
		SourceTimeout: time.Second,
	}, logger)
}

func TestRunAllPreservesDeclarationOrder(t *testing.T) {
	names := []string{"first", "second", "third", "fourth"}
	sc := newFakeScraper()
	sources := make([]domain.SourceDescriptor, 0, len(names))
	for idx, name := range names {
		name := name
		delay := time.Duration(len(names)-idx) * 15 * time.Millisecond
		sc.on(name, func(ctx context.Context, _ domain.SourceDescriptor) (*scraper.Result, error) {
			time.Sleep(delay)
			return &scraper.Result{Teams: []*domain.TeamRecord{team(name + " 1"), team(name + " 2")}}, nil
		})
		sources = append(sources, source(name))
	}

	run, err := newOrchestrator(sc, len(names), nil).RunAll(context.Background(), sources)
	require.NoError(t, err)
	require.Equal(t, []string{
		"first 1", "first 2",
		"second 1", "second 2",
		"third 1", "third 2",
		"fourth 1", "fourth 2",
	}, schools(run.Teams))
	require.Empty(t, run.Skipped)
}

func TestRunAllSkipsPermanentlyFailingSource(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sc := newFakeScraper().
		teams("A", "Alpha").
		on("B", func(context.Context, domain.SourceDescriptor) (*scraper.Result, error) {
			return &scraper.Result{}, fmt.Errorf("discover teams for B: %w",
				errors.NewFetchError("gone", "https://example.com/B", 410, errors.KindPermanent, nil))
		}).
		teams("C", "Gamma")

	run, err := newOrchestrator(sc, 3, zap.New(core)).RunAll(context.Background(), []domain.SourceDescriptor{source("A"), source("B"), source("C")})
	require.NoError(t, err)
	require.Equal(t, []string{"Alpha", "Gamma"}, schools(run.Teams))
	require.Equal(t, 1, sc.Calls("B"))

	require.Len(t, run.Skipped, 1)
	require.Equal(t, domain.UnitSource, run.Skipped[0].Unit)
	require.Equal(t, "B", run.Skipped[0].Source)
	require.Equal(t, errors.KindPermanent, run.Skipped[0].Kind)

	entries := logs.FilterMessage("Source skipped").All()
	require.Len(t, entries, 1)
	require.Equal(t, "B", entries[0].ContextMap()["source"])
}

func TestRunAllRetriesTransientSource(t *testing.T) {
	attempts := 0
	sc := newFakeScraper().on("flaky", func(context.Context, domain.SourceDescriptor) (*scraper.Result, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.NewFetchError("unavailable", "https://example.com/flaky", 503, errors.KindTransient, nil)
		}
		return &scraper.Result{Teams: []*domain.TeamRecord{team("Hawaii")}}, nil
	})

	run, err := newOrchestrator(sc, 1, nil).RunAll(context.Background(), []domain.SourceDescriptor{source("flaky")})
	require.NoError(t, err)
	require.Equal(t, []string{"Hawaii"}, schools(run.Teams))
	require.Equal(t, 3, sc.Calls("flaky"))
}

func TestRunAllAlwaysTransientSourceIsSkippedAfterMaxAttempts(t *testing.T) {
	sc := newFakeScraper().on("down", func(context.Context, domain.SourceDescriptor) (*scraper.Result, error) {
		return nil, errors.NewFetchError("unavailable", "https://example.com/down", 502, errors.KindTransient, nil)
	})

	run, err := newOrchestrator(sc, 1, nil).RunAll(context.Background(), []domain.SourceDescriptor{source("down")})
	require.NoError(t, err)
	require.Empty(t, run.Teams)
	require.Len(t, run.Skipped, 1)
	require.Equal(t, errors.KindTransient, run.Skipped[0].Kind)
	require.Equal(t, 3, sc.Calls("down"))
}

func TestRunAllMalformedDescriptorIsNotAttempted(t *testing.T) {
	sc := newFakeScraper().teams("good", "Baylor")
	bad := domain.SourceDescriptor{Name: "bad", Division: "D9", BaseURL: "https://example.com"}

	run, err := newOrchestrator(sc, 2, nil).RunAll(context.Background(), []domain.SourceDescriptor{bad, source("good")})
	require.NoError(t, err)
	require.Equal(t, []string{"Baylor"}, schools(run.Teams))
	require.Zero(t, sc.Calls("bad"))
	require.Len(t, run.Skipped, 1)
	require.Equal(t, errors.KindPermanent, run.Skipped[0].Kind)
}

func TestRunAllKeepsItemSkipsAndDedupes(t *testing.T) {
	sc := newFakeScraper().
		on("A", func(context.Context, domain.SourceDescriptor) (*scraper.Result, error) {
			return &scraper.Result{
				Teams:   []*domain.TeamRecord{team("Purdue"), team("Ohio State")},
				Skipped: []domain.Skip{{Unit: domain.UnitFetch, Source: "A", Name: "https://example.com/x", Kind: errors.KindPermanent}},
			}, nil
		}).
		teams("B", "purdue ", "Illinois")

	run, err := newOrchestrator(sc, 2, nil).RunAll(context.Background(), []domain.SourceDescriptor{source("A"), source("B")})
	require.NoError(t, err)
	require.Equal(t, []string{"Purdue", "Ohio State", "Illinois"}, schools(run.Teams))
	require.Len(t, run.Skipped, 2)
	require.Equal(t, domain.UnitFetch, run.Skipped[0].Unit)
	require.Equal(t, domain.UnitTeam, run.Skipped[1].Unit)
	require.Equal(t, "purdue ", run.Skipped[1].Name)
}

func TestRunAllFatalCancelsSiblings(t *testing.T) {
	sc := newFakeScraper().
		on("fatal", func(context.Context, domain.SourceDescriptor) (*scraper.Result, error) {
			return nil, errors.NewConfigError("credentials rejected", "GOOGLE_CREDENTIALS_FILE", errors.KindFatal)
		}).
		on("slow", func(ctx context.Context, _ domain.SourceDescriptor) (*scraper.Result, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &scraper.Result{Teams: []*domain.TeamRecord{team("Late")}}, nil
			}
		})

	start := time.Now()
	run, err := newOrchestrator(sc, 2, nil).RunAll(context.Background(), []domain.SourceDescriptor{source("slow"), source("fatal")})
	require.Error(t, err)
	require.True(t, errors.IsFatal(err))
	require.Less(t, time.Since(start), 2*time.Second)
	require.Empty(t, run.Teams)
	require.Len(t, run.Skipped, 2)
	require.Equal(t, 1, sc.Calls("fatal"))
}
