package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/util"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle(title)
	return t
}

// RenderRun prints the enriched records and skipped units of a run.
func RenderRun(w io.Writer, result *domain.RunResult) {
	if result == nil {
		return
	}

	t := newTable(w, fmt.Sprintf("Run %s", result.RunID))
	t.AppendHeader(table.Row{"#", "School", "Division", "Players", "Sheet", "Cells", "Model"})
	for idx, record := range result.Records {
		t.AppendRow(table.Row{
			idx + 1,
			record.Team.SchoolName,
			record.Team.Division,
			len(record.Team.Players),
			record.StorageOutcome.Target,
			record.StorageOutcome.CellsWritten,
			record.Analysis.Model,
		})
	}
	t.AppendFooter(table.Row{"", "Total", "", "", "", "", len(result.Records)})
	t.Render()

	RenderSkips(w, result.Skipped)
}

// RenderTeams prints scraped teams without enrichment.
func RenderTeams(w io.Writer, source string, teams []*domain.TeamRecord) {
	t := newTable(w, source)
	t.AppendHeader(table.Row{"#", "School", "Conference", "Head Coach", "Players"})
	for idx, team := range teams {
		coach := ""
		if team.HeadCoach != nil {
			coach = team.HeadCoach.Name
		}
		t.AppendRow(table.Row{
			idx + 1,
			team.SchoolName,
			domain.Deref(team.Conference),
			coach,
			len(team.Players),
		})
	}
	t.Render()
}

func RenderSkips(w io.Writer, skips []domain.Skip) {
	if len(skips) == 0 {
		return
	}
	t := newTable(w, "Skipped")
	t.AppendHeader(table.Row{"Unit", "Source", "Name", "Kind", "Reason"})
	for _, skip := range skips {
		t.AppendRow(table.Row{
			skip.Unit,
			skip.Source,
			util.TruncateString(skip.Name, 60),
			skip.Kind,
			util.TruncateString(skip.Reason, 80),
		})
	}
	t.Render()
}
