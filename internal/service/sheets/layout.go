package sheets

import (
	"github.com/kapu/roster-aggregator-go/internal/domain"
)

// BuildRows lays out one school's tab: info block, analysis, roster, then the
// coaching staff.
func BuildRows(team *domain.TeamRecord, analysis domain.Analysis) [][]interface{} {
	rows := [][]interface{}{
		{"Team Information", analysis.Timestamp.UTC().Format("2006-01-02T15:04:05Z")},
		{"School", team.SchoolName},
		{"Division", team.Division.String()},
		{"Conference", domain.Deref(team.Conference)},
		{"Location", domain.Deref(team.Location)},
		{""},
		{"AI Analysis"},
		{analysis.Text},
		{""},
		{"Roster"},
		{"Name", "Number", "Position", "Year", "Hometown", "Height"},
	}

	for _, p := range team.Players {
		rows = append(rows, []interface{}{
			p.Name,
			domain.Deref(p.Number),
			domain.Deref(p.Position),
			domain.Deref(p.Year),
			domain.Deref(p.Hometown),
			domain.Deref(p.Height),
		})
	}

	rows = append(rows,
		[]interface{}{""},
		[]interface{}{"Coaching Staff"},
		[]interface{}{"Name", "Title"},
	)
	if team.HeadCoach != nil {
		rows = append(rows, []interface{}{team.HeadCoach.Name, team.HeadCoach.Title})
	}
	for _, c := range team.AssistantCoaches {
		rows = append(rows, []interface{}{c.Name, c.Title})
	}
	return rows
}
