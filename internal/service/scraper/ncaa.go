package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
)

// NCAAExtractor handles the primary and secondary division school directories.
type NCAAExtractor struct{}

func (NCAAExtractor) Discover(ctx context.Context, fetcher Fetcher, src domain.SourceDescriptor) ([]string, error) {
	doc, err := fetchDocument(ctx, fetcher, src.BaseURL)
	if err != nil {
		return nil, err
	}
	return rosterLinks(doc, src.BaseURL, func(href string) bool {
		return strings.Contains(href, "volleyball") && strings.Contains(href, "roster")
	}), nil
}

func (NCAAExtractor) Extract(content []byte, locator string, src domain.SourceDescriptor) (*domain.TeamRecord, error) {
	doc, err := parseDocument(content, locator)
	if err != nil {
		return nil, err
	}

	school := schoolNameFromDocument(doc)
	if school == "" {
		return nil, errors.NewExtractError("school name not found", locator, nil)
	}

	team := &domain.TeamRecord{
		SchoolName:       school,
		Division:         src.Division,
		Conference:       domain.StringPtr(text(doc.Find(".conference").First())),
		Mascot:           domain.StringPtr(text(doc.Find(".mascot").First())),
		Location:         domain.StringPtr(text(doc.Find(".location").First())),
		AssistantCoaches: []domain.Coach{},
		Players:          ncaaPlayers(doc),
		WebsiteURL:       domain.StringPtr(locator),
	}

	doc.Find(".coach").Each(func(i int, sel *goquery.Selection) {
		name := text(sel.Find(".coach-name").First())
		if name == "" {
			name = text(sel)
		}
		if name == "" {
			return
		}
		title := text(sel.Find(".coach-title").First())
		if team.HeadCoach == nil {
			if title == "" {
				title = "Head Coach"
			}
			team.HeadCoach = &domain.Coach{Name: name, Title: title}
			return
		}
		if title == "" {
			title = "Assistant Coach"
		}
		team.AssistantCoaches = append(team.AssistantCoaches, domain.Coach{Name: name, Title: title})
	})

	return team, nil
}

// ncaaPlayers reads table.roster: name, number, position, then optional
// year, height and hometown columns. The first row is the header.
func ncaaPlayers(doc *goquery.Document) []domain.Player {
	players := make([]domain.Player, 0)
	doc.Find("table.roster tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cols := row.Find("td")
		if cols.Length() < 3 {
			return
		}
		col := func(idx int) *string {
			if idx >= cols.Length() {
				return nil
			}
			return domain.StringPtr(text(cols.Eq(idx)))
		}
		name := text(cols.Eq(0))
		if name == "" {
			return
		}
		players = append(players, domain.Player{
			Name:     name,
			Number:   col(1),
			Position: col(2),
			Year:     col(3),
			Height:   col(4),
			Hometown: col(5),
		})
	})
	return players
}
