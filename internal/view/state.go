// Package view holds the per-client display state of the answer page and
// drives it through the pipeline: idle → searching → summarizing →
// revealing → done, or error from any active phase.
package view

import (
	"errors"
	"fmt"

	"answer-engine/internal/domain"
	"answer-engine/internal/reveal"
	"answer-engine/internal/usecase"
)

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseSearching   Phase = "searching"
	PhaseSummarizing Phase = "summarizing"
	PhaseRevealing   Phase = "revealing"
	PhaseDone        Phase = "done"
	PhaseError       Phase = "error"
)

// A new query may be submitted from any phase; it supersedes whatever run is
// in flight.
var allowed = map[Phase][]Phase{
	PhaseIdle:        {PhaseSearching},
	PhaseSearching:   {PhaseSearching, PhaseSummarizing, PhaseError},
	PhaseSummarizing: {PhaseSearching, PhaseRevealing, PhaseError},
	PhaseRevealing:   {PhaseSearching, PhaseDone, PhaseError},
	PhaseDone:        {PhaseSearching},
	PhaseError:       {PhaseSearching},
}

// ErrInvalidTransition is returned when a transition does not start from a
// phase that may lead to the target phase.
var ErrInvalidTransition = errors.New("view: invalid transition")

// State is one immutable snapshot of the page. Transitions return a new
// value; slices are shared between snapshots and never written to.
type State struct {
	Generation uint64           `json:"generation"`
	Phase      Phase            `json:"phase"`
	QueryID    string           `json:"queryId,omitempty"`
	Query      string           `json:"query,omitempty"`
	Results    []domain.Result  `json:"results,omitempty"`
	Selected   []domain.Result  `json:"selected,omitempty"`
	Display    string           `json:"display,omitempty"`
	Answer     string           `json:"answer,omitempty"`
	Sections   []domain.Section `json:"sections,omitempty"`
	ErrCode    string           `json:"errorCode,omitempty"`
	Err        error            `json:"-"`
}

func (s State) to(p Phase) (State, error) {
	for _, next := range allowed[s.Phase] {
		if next == p {
			s.Phase = p
			return s, nil
		}
	}
	return s, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, s.Phase, p)
}

// Searching starts a new query. Everything from the previous query is
// dropped and the generation advances.
func (s State) Searching(query string) (State, error) {
	next, err := s.to(PhaseSearching)
	if err != nil {
		return s, err
	}
	return State{
		Generation: next.Generation + 1,
		Phase:      PhaseSearching,
		Query:      query,
	}, nil
}

func (s State) Summarizing(found usecase.SearchOutput) (State, error) {
	next, err := s.to(PhaseSummarizing)
	if err != nil {
		return s, err
	}
	next.QueryID = found.QueryID
	next.Query = found.Query
	next.Results = found.Results
	next.Selected = found.Selected
	return next, nil
}

// Revealing records the finished answer and clears the display buffer.
func (s State) Revealing(answer string) (State, error) {
	next, err := s.to(PhaseRevealing)
	if err != nil {
		return s, err
	}
	next.Answer = answer
	next.Display = ""
	return next, nil
}

func (s State) Revealed(f reveal.Frame) (State, error) {
	if s.Phase != PhaseRevealing {
		return s, fmt.Errorf("%w: frame in %s", ErrInvalidTransition, s.Phase)
	}
	s.Display = f.Buffer
	return s, nil
}

func (s State) Done(sections []domain.Section) (State, error) {
	next, err := s.to(PhaseDone)
	if err != nil {
		return s, err
	}
	next.Sections = sections
	return next, nil
}

// Failed ends the query. Results already received stay visible.
func (s State) Failed(err error) (State, error) {
	next, terr := s.to(PhaseError)
	if terr != nil {
		return s, terr
	}
	next.Err = err
	next.ErrCode = string(usecase.ErrorInternal)
	var ue *usecase.Error
	if errors.As(err, &ue) {
		next.ErrCode = string(ue.Code)
		if ue.Stage == usecase.StageSearch || ue.Stage == usecase.StageValidate {
			next.Results = nil
			next.Selected = nil
		}
	}
	return next, nil
}

// Active reports whether a query is in flight.
func (s State) Active() bool {
	switch s.Phase {
	case PhaseSearching, PhaseSummarizing, PhaseRevealing:
		return true
	}
	return false
}
