package domain

import (
	"time"

	"github.com/kapu/roster-aggregator-go/pkg/errors"
)

type UnitType string

const (
	UnitFetch   UnitType = "fetch"
	UnitSource  UnitType = "source"
	UnitTeam    UnitType = "team"
	UnitAnalyze UnitType = "analyze"
	UnitPersist UnitType = "persist"
	UnitBatch   UnitType = "batch"
)

// Skip records a unit of work that was dropped from the result.
type Skip struct {
	Unit   UnitType    `json:"unit"`
	Source string      `json:"source,omitempty"`
	Name   string      `json:"name"`
	Kind   errors.Kind `json:"kind"`
	Reason string      `json:"reason"`
}

func NewSkip(unit UnitType, source, name string, err error) Skip {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return Skip{
		Unit:   unit,
		Source: source,
		Name:   name,
		Kind:   errors.KindOf(err),
		Reason: reason,
	}
}

type RunResult struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Records    []*EnrichedRecord `json:"records"`
	Skipped    []Skip            `json:"skipped"`
}

// DedupeTeams keeps the first record for each (school, division) pair and
// returns the dropped duplicates separately.
func DedupeTeams(teams []*TeamRecord) (kept []*TeamRecord, duplicates []*TeamRecord) {
	seen := make(map[TeamKey]struct{}, len(teams))
	kept = make([]*TeamRecord, 0, len(teams))
	for _, team := range teams {
		if team == nil {
			continue
		}
		key := team.Key()
		if _, exists := seen[key]; exists {
			duplicates = append(duplicates, team)
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, team)
	}
	return kept, duplicates
}
