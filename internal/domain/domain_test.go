package domain

import (
	"testing"

	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseDivisionAcceptsLegacyTags(t *testing.T) {
	cases := map[string]Division{
		"PRIMARY_DIVISION": DivisionPrimary,
		"ncaa_d1":          DivisionPrimary,
		"NCAA_D3":          DivisionSecondary,
		" Canadian ":       DivisionInternational,
		"INTERNATIONAL":    DivisionInternational,
	}
	for in, want := range cases {
		got, err := ParseDivision(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseDivision("NAIA")
	require.Error(t, err)
	require.Equal(t, errors.KindPermanent, errors.KindOf(err))
}

func TestSourceDescriptorValidate(t *testing.T) {
	for _, src := range DefaultSources() {
		require.NoError(t, src.Validate(), src.Name)
	}

	bad := []SourceDescriptor{
		{Name: "", Division: DivisionPrimary, BaseURL: "https://example.com"},
		{Name: "x", Division: "D2", BaseURL: "https://example.com"},
		{Name: "x", Division: DivisionPrimary, BaseURL: "not a url"},
	}
	for _, src := range bad {
		err := src.Validate()
		require.Error(t, err)
		require.False(t, errors.IsRetryable(err))
	}
}

func TestTeamRecordValidate(t *testing.T) {
	require.NoError(t, (&TeamRecord{SchoolName: "Waterloo", Division: DivisionInternational}).Validate())
	require.Error(t, (&TeamRecord{SchoolName: "  ", Division: DivisionInternational}).Validate())
	require.Error(t, (&TeamRecord{SchoolName: "Waterloo", Division: "CANADA"}).Validate())

	var nilTeam *TeamRecord
	require.Error(t, nilTeam.Validate())
}

func TestDedupeTeamsKeepsFirstOccurrence(t *testing.T) {
	a := &TeamRecord{SchoolName: "Penn State", Division: DivisionPrimary}
	b := &TeamRecord{SchoolName: "Calvin", Division: DivisionSecondary}
	dup := &TeamRecord{SchoolName: "penn  state", Division: DivisionPrimary}
	otherDivision := &TeamRecord{SchoolName: "Penn State", Division: DivisionSecondary}

	kept, dups := DedupeTeams([]*TeamRecord{a, b, dup, otherDivision, nil})
	require.Equal(t, []*TeamRecord{a, b, otherDivision}, kept)
	require.Equal(t, []*TeamRecord{dup}, dups)
}

func TestTeamProgressTransitions(t *testing.T) {
	var seen []TeamState
	p := NewTeamProgress(TeamKey{School: "x", Division: DivisionPrimary}, func(_ TeamKey, _, to TeamState) {
		seen = append(seen, to)
	})

	require.Equal(t, TeamStatePending, p.State())
	require.NoError(t, p.Transition(TeamStateAnalyzing))
	require.NoError(t, p.Transition(TeamStateAnalyzed))
	require.NoError(t, p.Transition(TeamStatePersisting))
	require.NoError(t, p.Transition(TeamStateDone))
	require.True(t, p.State().Terminal())
	require.Error(t, p.Transition(TeamStateFailed))
	require.Equal(t, []TeamState{TeamStateAnalyzing, TeamStateAnalyzed, TeamStatePersisting, TeamStateDone}, seen)
}

func TestTeamProgressRejectsSkippingStages(t *testing.T) {
	p := NewTeamProgress(TeamKey{}, nil)
	require.Error(t, p.Transition(TeamStatePersisting))
	require.NoError(t, p.Transition(TeamStateFailed))
	require.Error(t, p.Transition(TeamStateAnalyzing))
	require.False(t, TeamStateAnalyzed.CanTransition(TeamStateFailed))
}

func TestFetchOutcome(t *testing.T) {
	ok := FetchSuccess("http://x", 200, []byte("<html>"))
	body, err := ok.Result()
	require.NoError(t, err)
	require.True(t, ok.OK())
	require.Equal(t, "<html>", string(body))

	failed := FetchFailure("http://x", 404, errors.KindPermanent, "not found", nil)
	_, err = failed.Result()
	require.Error(t, err)
	require.False(t, failed.OK())
	require.Equal(t, errors.KindPermanent, errors.KindOf(err))
}
