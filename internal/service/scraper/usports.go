package scraper

import (
	"context"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
)

// USportsExtractor handles Canadian university athletics sites built on the
// sidearm roster layout.
type USportsExtractor struct{}

type schoolProfile struct {
	Name       string
	Conference string
	Mascot     string
	Location   string
}

// knownSchools fills in what sidearm pages do not print, keyed by host.
var knownSchools = map[string]schoolProfile{
	"athletics.uwaterloo.ca": {Name: "University of Waterloo", Conference: "OUA", Mascot: "Warriors", Location: "Waterloo, ON"},
}

const waterlooRosterURL = "https://athletics.uwaterloo.ca/sports/womens-volleyball/roster"

// Discover reads volleyball roster links from the directory page. When the
// directory lists none, the Waterloo roster is scraped on its own.
func (USportsExtractor) Discover(ctx context.Context, fetcher Fetcher, src domain.SourceDescriptor) ([]string, error) {
	doc, err := fetchDocument(ctx, fetcher, src.BaseURL)
	if err != nil {
		return nil, err
	}
	links := rosterLinks(doc, src.BaseURL, func(href string) bool {
		return strings.Contains(href, "volleyball/roster")
	})
	if len(links) == 0 {
		links = []string{waterlooRosterURL}
	}
	return links, nil
}

func (USportsExtractor) Extract(content []byte, locator string, src domain.SourceDescriptor) (*domain.TeamRecord, error) {
	doc, err := parseDocument(content, locator)
	if err != nil {
		return nil, err
	}

	profile := schoolProfile{}
	if u, err := url.Parse(locator); err == nil {
		profile = knownSchools[strings.ToLower(u.Host)]
	}
	if profile.Name == "" {
		profile.Name = schoolNameFromDocument(doc)
	}
	if profile.Name == "" {
		return nil, errors.NewExtractError("unsupported roster page", locator, nil)
	}

	players := make([]domain.Player, 0)
	doc.Find("li.sidearm-roster-player").Each(func(_ int, sel *goquery.Selection) {
		if p, ok := sidearmPlayer(sel); ok {
			players = append(players, p)
		}
	})

	coaches := make([]domain.Coach, 0)
	doc.Find(".sidearm-roster-coach").Each(func(_ int, sel *goquery.Selection) {
		name := text(sel.Find("h3").First())
		title := text(sel.Find(".sidearm-roster-coach-title").First())
		if name != "" && title != "" {
			coaches = append(coaches, domain.Coach{Name: name, Title: title})
		}
	})

	team := &domain.TeamRecord{
		SchoolName:       profile.Name,
		Division:         src.Division,
		Conference:       domain.StringPtr(profile.Conference),
		Mascot:           domain.StringPtr(profile.Mascot),
		Location:         domain.StringPtr(profile.Location),
		AssistantCoaches: []domain.Coach{},
		Players:          players,
		WebsiteURL:       domain.StringPtr(locator),
	}
	if len(coaches) > 0 {
		head := coaches[0]
		team.HeadCoach = &head
		team.AssistantCoaches = append(team.AssistantCoaches, coaches[1:]...)
	}
	return team, nil
}

func sidearmPlayer(sel *goquery.Selection) (domain.Player, bool) {
	name := text(sel.Find("h3").First())
	if name == "" {
		return domain.Player{}, false
	}

	var number, position, height, year, hometown string
	sel.Find("span.sidearm-roster-player-details").Each(func(_ int, detail *goquery.Selection) {
		value := text(detail)
		switch {
		case strings.HasPrefix(value, "Position:"):
			position = strings.TrimSpace(strings.TrimPrefix(value, "Position:"))
		case strings.HasPrefix(value, "Height:"):
			height = strings.TrimSpace(strings.TrimPrefix(value, "Height:"))
		case strings.HasPrefix(value, "Year:"):
			year = strings.TrimSpace(strings.TrimPrefix(value, "Year:"))
		case strings.HasPrefix(value, "Hometown:"):
			hometown = strings.TrimSpace(strings.TrimPrefix(value, "Hometown:"))
		case value != "" && strings.IndexFunc(value, func(r rune) bool { return !unicode.IsDigit(r) }) < 0:
			number = value
		}
	})

	return domain.Player{
		Name:     name,
		Number:   domain.StringPtr(number),
		Position: domain.StringPtr(position),
		Year:     domain.StringPtr(year),
		Hometown: domain.StringPtr(hometown),
		Height:   domain.StringPtr(height),
	}, true
}
