package domain

import "fmt"

// TeamState tracks one team's progress through enrichment.
type TeamState string

const (
	TeamStatePending    TeamState = "PENDING"
	TeamStateAnalyzing  TeamState = "ANALYZING"
	TeamStateAnalyzed   TeamState = "ANALYZED"
	TeamStatePersisting TeamState = "PERSISTING"
	TeamStateDone       TeamState = "DONE"
	TeamStateFailed     TeamState = "FAILED"
)

func (s TeamState) String() string {
	return string(s)
}

func (s TeamState) Terminal() bool {
	return s == TeamStateDone || s == TeamStateFailed
}

var teamTransitions = map[TeamState][]TeamState{
	TeamStatePending:    {TeamStateAnalyzing, TeamStateFailed},
	TeamStateAnalyzing:  {TeamStateAnalyzed, TeamStateFailed},
	TeamStateAnalyzed:   {TeamStatePersisting},
	TeamStatePersisting: {TeamStateDone, TeamStateFailed},
}

func (s TeamState) CanTransition(to TeamState) bool {
	for _, next := range teamTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionFunc observes state changes, e.g. for logging or tests.
type TransitionFunc func(key TeamKey, from, to TeamState)

// TeamProgress is a per-team state machine. It is owned by one goroutine.
type TeamProgress struct {
	Key      TeamKey
	state    TeamState
	observer TransitionFunc
}

func NewTeamProgress(key TeamKey, observer TransitionFunc) *TeamProgress {
	return &TeamProgress{Key: key, state: TeamStatePending, observer: observer}
}

func (p *TeamProgress) State() TeamState {
	return p.state
}

func (p *TeamProgress) Transition(to TeamState) error {
	if !p.state.CanTransition(to) {
		return fmt.Errorf("invalid team state transition %s -> %s", p.state, to)
	}
	from := p.state
	p.state = to
	if p.observer != nil {
		p.observer(p.Key, from, to)
	}
	return nil
}
