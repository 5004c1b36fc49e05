package domain

import (
	"net/url"
	"strings"

	"github.com/kapu/roster-aggregator-go/pkg/errors"
)

type Division string

const (
	DivisionPrimary       Division = "PRIMARY_DIVISION"
	DivisionSecondary     Division = "SECONDARY_DIVISION"
	DivisionInternational Division = "INTERNATIONAL"
)

// legacyDivisions maps the tags used by older source configs.
var legacyDivisions = map[string]Division{
	"NCAA_D1":  DivisionPrimary,
	"NCAA_D3":  DivisionSecondary,
	"CANADIAN": DivisionInternational,
}

func (d Division) String() string {
	return string(d)
}

func (d Division) Valid() bool {
	switch d {
	case DivisionPrimary, DivisionSecondary, DivisionInternational:
		return true
	default:
		return false
	}
}

// ParseDivision accepts canonical and legacy tags, case-insensitively.
func ParseDivision(value string) (Division, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if d := Division(normalized); d.Valid() {
		return d, nil
	}
	if d, ok := legacyDivisions[normalized]; ok {
		return d, nil
	}
	return "", errors.NewValidationError("unknown division", "division", value)
}

// SourceDescriptor identifies one site whose teams are scraped together.
type SourceDescriptor struct {
	Name     string   `json:"name"`
	Division Division `json:"division"`
	BaseURL  string   `json:"base_url"`
}

// Validate reports malformed descriptors. The error is Permanent: retrying a bad
// descriptor cannot help.
func (s SourceDescriptor) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.NewConfigError("source name is required", "name", errors.KindPermanent)
	}
	if !s.Division.Valid() {
		return errors.NewConfigError("source division is invalid: "+string(s.Division), "division", errors.KindPermanent)
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewConfigError("source base URL is invalid: "+s.BaseURL, "base_url", errors.KindPermanent)
	}
	return nil
}

// DefaultSources are the sources scraped when no source file is configured.
func DefaultSources() []SourceDescriptor {
	return []SourceDescriptor{
		{
			Name:     "NCAA Division I",
			Division: DivisionPrimary,
			BaseURL:  "https://www.ncaa.com/schools",
		},
		{
			Name:     "NCAA Division III",
			Division: DivisionSecondary,
			BaseURL:  "https://www.ncaa.com/schools",
		},
		{
			Name:     "Canadian Universities",
			Division: DivisionInternational,
			BaseURL:  "https://usports.ca/en/sports/volleyball/f",
		},
	}
}
