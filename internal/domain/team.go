package domain

import (
	"strings"
	"time"

	"github.com/kapu/roster-aggregator-go/pkg/errors"
)

type Coach struct {
	Name          string  `json:"name"`
	Title         string  `json:"title"`
	YearsAtSchool *int    `json:"years_at_school,omitempty"`
	CareerRecord  *string `json:"career_record,omitempty"`
}

type Player struct {
	Name     string  `json:"name"`
	Number   *string `json:"number,omitempty"`
	Position *string `json:"position,omitempty"`
	Year     *string `json:"year,omitempty"`
	Hometown *string `json:"hometown,omitempty"`
	Height   *string `json:"height,omitempty"`
}

// TeamRecord is one scraped roster. Records are not mutated after creation;
// enrichment wraps them in an EnrichedRecord.
type TeamRecord struct {
	SchoolName       string    `json:"school_name"`
	Division         Division  `json:"division"`
	Conference       *string   `json:"conference,omitempty"`
	Mascot           *string   `json:"mascot,omitempty"`
	Location         *string   `json:"location,omitempty"`
	HeadCoach        *Coach    `json:"head_coach,omitempty"`
	AssistantCoaches []Coach   `json:"assistant_coaches"`
	Players          []Player  `json:"players"`
	WebsiteURL       *string   `json:"website_url,omitempty"`
	LastUpdated      time.Time `json:"last_updated"`
}

func (t *TeamRecord) Validate() error {
	if t == nil {
		return errors.NewValidationError("team record is nil", "team", nil)
	}
	if strings.TrimSpace(t.SchoolName) == "" {
		return errors.NewValidationError("school name is required", "school_name", t.SchoolName)
	}
	if !t.Division.Valid() {
		return errors.NewValidationError("division is invalid", "division", t.Division)
	}
	return nil
}

// TeamKey identifies a team within one run.
type TeamKey struct {
	School   string
	Division Division
}

func (k TeamKey) String() string {
	return string(k.Division) + "/" + k.School
}

func (t *TeamRecord) Key() TeamKey {
	return TeamKey{
		School:   strings.Join(strings.Fields(strings.ToLower(t.SchoolName)), " "),
		Division: t.Division,
	}
}

// StringPtr returns nil for blank values so optional fields stay absent.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
