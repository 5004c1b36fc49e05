package prompt

import (
	"testing"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestBuildTeamAnalysisPrompt(t *testing.T) {
	team := &domain.TeamRecord{
		SchoolName:  "University of Waterloo",
		Division:    domain.DivisionInternational,
		Mascot:      domain.StringPtr("Warriors"),
		Players:     []domain.Player{{Name: "Jane Doe", Position: domain.StringPtr("Setter")}},
		LastUpdated: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	p, err := BuildTeamAnalysisPrompt(team)
	require.NoError(t, err)
	require.Contains(t, p.System, "volleyball analytics expert")
	require.Contains(t, p.User, "(University of Waterloo, INTERNATIONAL)")
	require.Contains(t, p.User, "Geographic distribution of players")
	require.Contains(t, p.User, `"mascot": "Warriors"`)
	require.Contains(t, p.User, `"position": "Setter"`)
}

func TestBuildTeamAnalysisPromptRejectsNilTeam(t *testing.T) {
	_, err := BuildTeamAnalysisPrompt(nil)
	require.Error(t, err)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := render("missing.tmpl", nil)
	require.Error(t, err)
}

func TestTemplatesParse(t *testing.T) {
	tmpl, err := loadTemplates()
	require.NoError(t, err)
	require.NotNil(t, tmpl.Lookup(teamAnalysisTemplate))
	require.NotNil(t, tmpl.Lookup(teamAnalysisSystemTemplate))
}
