package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"
	"text/template"

	"github.com/kapu/roster-aggregator-go/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	teamAnalysisTemplate       = "team_analysis.tmpl"
	teamAnalysisSystemTemplate = "team_analysis_system.tmpl"
)

var loadTemplates = sync.OnceValues(func() (*template.Template, error) {
	tmpl, err := template.New("prompts").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	return tmpl, nil
})

// TeamAnalysisPrompt is the rendered request for one team's analysis.
type TeamAnalysisPrompt struct {
	System string
	User   string
}

type teamAnalysisVars struct {
	School   string
	Division string
	TeamJSON string
}

// BuildTeamAnalysisPrompt renders the analysis prompt with the team serialized
// as indented JSON.
func BuildTeamAnalysisPrompt(team *domain.TeamRecord) (TeamAnalysisPrompt, error) {
	if team == nil {
		return TeamAnalysisPrompt{}, fmt.Errorf("team is nil")
	}
	data, err := json.MarshalIndent(team, "", "  ")
	if err != nil {
		return TeamAnalysisPrompt{}, fmt.Errorf("serialize team: %w", err)
	}

	system, err := render(teamAnalysisSystemTemplate, nil)
	if err != nil {
		return TeamAnalysisPrompt{}, err
	}
	user, err := render(teamAnalysisTemplate, teamAnalysisVars{
		School:   team.SchoolName,
		Division: team.Division.String(),
		TeamJSON: string(data),
	})
	if err != nil {
		return TeamAnalysisPrompt{}, err
	}
	return TeamAnalysisPrompt{System: system, User: user}, nil
}

func render(name string, data any) (string, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
