package scraper

import (
	"testing"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/stretchr/testify/require"
)

const ncaaTeamPage = `<html><head>
<title>2025 Women's Volleyball Roster - Stanford University</title>
</head><body>
<div class="conference">  Pac-12 </div>
<div class="mascot">Cardinal</div>
<div class="coach"><span class="coach-name">Kevin Hambly</span></div>
<div class="coach"><span class="coach-name">Alice Smith</span><span class="coach-title">Associate Head Coach</span></div>
<div class="coach">Bob Jones</div>
<table class="roster">
<tr><th>Name</th><th>No.</th><th>Pos.</th></tr>
<tr><td>Kendall Kipp</td><td>1</td><td>OH</td><td>Sr.</td></tr>
<tr><td>Elia Rubin</td><td>7</td><td>OH</td></tr>
<tr><td>short row</td></tr>
</table>
</body></html>`

const sidearmPage = `<html><head><title>Women's Volleyball Roster - Waterloo Warriors</title></head><body>
<section class="sidearm-roster-players"><ul>
<li class="sidearm-roster-player">
  <h3>Jane Doe</h3>
  <span class="sidearm-roster-player-details">12</span>
  <span class="sidearm-roster-player-details">Position: Setter</span>
  <span class="sidearm-roster-player-details">Height: 5'10"</span>
  <span class="sidearm-roster-player-details">Year: 2</span>
  <span class="sidearm-roster-player-details">Hometown: Guelph, ON</span>
</li>
<li class="sidearm-roster-player"><span>no name</span></li>
</ul></section>
<div class="sidearm-roster-coach"><h3>Gord Nelson</h3><div class="sidearm-roster-coach-title">Head Coach</div></div>
<div class="sidearm-roster-coach"><h3>Sam Lee</h3><div class="sidearm-roster-coach-title">Assistant Coach</div></div>
</body></html>`

func TestNCAAExtract(t *testing.T) {
	src := domain.SourceDescriptor{Name: "D1", Division: domain.DivisionPrimary, BaseURL: "https://example.com"}
	team, err := NCAAExtractor{}.Extract([]byte(ncaaTeamPage), "https://example.com/stanford/volleyball/roster", src)
	require.NoError(t, err)

	require.Equal(t, "Stanford University", team.SchoolName)
	require.Equal(t, domain.DivisionPrimary, team.Division)
	require.Equal(t, "Pac-12", domain.Deref(team.Conference))
	require.Equal(t, "Cardinal", domain.Deref(team.Mascot))
	require.Nil(t, team.Location)
	require.Equal(t, &domain.Coach{Name: "Kevin Hambly", Title: "Head Coach"}, team.HeadCoach)
	require.Equal(t, []domain.Coach{
		{Name: "Alice Smith", Title: "Associate Head Coach"},
		{Name: "Bob Jones", Title: "Assistant Coach"},
	}, team.AssistantCoaches)
	require.Len(t, team.Players, 2)
	require.Equal(t, "Kendall Kipp", team.Players[0].Name)
	require.Equal(t, "Sr.", domain.Deref(team.Players[0].Year))
	require.Nil(t, team.Players[1].Year)
	require.Equal(t, "https://example.com/stanford/volleyball/roster", domain.Deref(team.WebsiteURL))
}

func TestNCAAExtractWithoutSchoolName(t *testing.T) {
	src := domain.SourceDescriptor{Name: "D3", Division: domain.DivisionSecondary, BaseURL: "https://example.com"}
	_, err := NCAAExtractor{}.Extract([]byte(`<html><body><p>nothing</p></body></html>`), "https://example.com/x", src)
	require.Error(t, err)

	var ee *errors.ExtractError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, errors.KindPermanent, errors.KindOf(err))
}

func TestUSportsExtractKnownSchool(t *testing.T) {
	src := domain.SourceDescriptor{Name: "Canada", Division: domain.DivisionInternational, BaseURL: "https://usports.ca"}
	team, err := USportsExtractor{}.Extract([]byte(sidearmPage), waterlooRosterURL, src)
	require.NoError(t, err)

	require.Equal(t, "University of Waterloo", team.SchoolName)
	require.Equal(t, "OUA", domain.Deref(team.Conference))
	require.Equal(t, "Warriors", domain.Deref(team.Mascot))
	require.Equal(t, "Waterloo, ON", domain.Deref(team.Location))
	require.Len(t, team.Players, 1)

	p := team.Players[0]
	require.Equal(t, "Jane Doe", p.Name)
	require.Equal(t, "12", domain.Deref(p.Number))
	require.Equal(t, "Setter", domain.Deref(p.Position))
	require.Equal(t, `5'10"`, domain.Deref(p.Height))
	require.Equal(t, "2", domain.Deref(p.Year))
	require.Equal(t, "Guelph, ON", domain.Deref(p.Hometown))

	require.Equal(t, "Gord Nelson", team.HeadCoach.Name)
	require.Equal(t, []domain.Coach{{Name: "Sam Lee", Title: "Assistant Coach"}}, team.AssistantCoaches)
}

func TestUSportsExtractUnknownHostUsesTitle(t *testing.T) {
	src := domain.SourceDescriptor{Name: "Canada", Division: domain.DivisionInternational, BaseURL: "https://usports.ca"}
	team, err := USportsExtractor{}.Extract([]byte(sidearmPage), "https://gryphons.ca/sports/womens-volleyball/roster", src)
	require.NoError(t, err)
	require.Equal(t, "Waterloo Warriors", team.SchoolName)
	require.Nil(t, team.Conference)
}
