package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"answer-engine/internal/render"
	"answer-engine/internal/reveal"
	"answer-engine/internal/usecase"
)

// ErrSuperseded is returned by Submit when a newer query on the same session
// cancelled the run.
var ErrSuperseded = errors.New("view: superseded by a newer query")

// Pipeline is the part of the answer service a session drives.
type Pipeline interface {
	Search(ctx context.Context, in usecase.AnswerInput) (usecase.SearchOutput, error)
	Summarize(ctx context.Context, found usecase.SearchOutput, correlationID string) (string, error)
}

// Session owns the view state of one client. At most one query runs per
// session; submitting a new one cancels the previous run and discards any
// transition it attempts afterwards.
type Session struct {
	id       string
	pipeline Pipeline
	revealer *reveal.Revealer
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	lastSeen time.Time
}

func NewSession(id string, p Pipeline, r *reveal.Revealer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = reveal.New(reveal.DefaultDelay)
	}
	s := &Session{
		id:       id,
		pipeline: p,
		revealer: r,
		logger:   logger.With("session_id", id),
		now:      time.Now,
		state:    State{Phase: PhaseIdle},
	}
	s.lastSeen = s.now()
	return s
}

func (s *Session) ID() string { return s.id }

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit runs query to completion, passing every accepted snapshot to
// observe. It returns the final snapshot of this run. Cancelling ctx ends the
// run in the error phase; a newer Submit ends it with ErrSuperseded.
func (s *Session) Submit(ctx context.Context, query, correlationID string, observe func(State)) (State, error) {
	if observe == nil {
		observe = func(State) {}
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	first, err := s.state.Searching(query)
	if err != nil {
		s.mu.Unlock()
		cancel()
		return s.State(), err
	}
	s.state = first
	s.lastSeen = s.now()
	s.mu.Unlock()

	gen := first.Generation
	defer func() {
		cancel()
		s.mu.Lock()
		if s.state.Generation == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
	}()
	observe(first)

	run := &run{session: s, gen: gen, observe: observe}

	found, err := s.pipeline.Search(runCtx, usecase.AnswerInput{Query: query, CorrelationID: correlationID})
	if err != nil {
		return run.fail(err)
	}
	if _, ok := run.step(func(st State) (State, error) { return st.Summarizing(found) }); !ok {
		return run.superseded()
	}

	answer, err := s.pipeline.Summarize(runCtx, found, correlationID)
	if err != nil {
		return run.fail(err)
	}
	if _, ok := run.step(func(st State) (State, error) { return st.Revealing(answer) }); !ok {
		return run.superseded()
	}

	if err := s.revealer.Run(runCtx, answer, func(f reveal.Frame) {
		run.step(func(st State) (State, error) { return st.Revealed(f) })
	}); err != nil {
		return run.fail(err)
	}

	sections := render.Parse(answer, found.Selected)
	final, ok := run.step(func(st State) (State, error) { return st.Done(sections) })
	if !ok {
		return run.superseded()
	}
	s.logger.Info("query revealed", "query_id", final.QueryID, "sections", len(sections))
	return final, nil
}

// Cancel stops the run in progress, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen, s.state.Active()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

// run applies the transitions of one Submit call.
type run struct {
	session *Session
	gen     uint64
	observe func(State)
}

// step applies f if this run still owns the session and reports whether the
// transition was accepted.
func (r *run) step(f func(State) (State, error)) (State, bool) {
	s := r.session
	s.mu.Lock()
	if s.state.Generation != r.gen {
		st := s.state
		s.mu.Unlock()
		return st, false
	}
	next, err := f(s.state)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("rejected view transition", "err", err)
		return next, false
	}
	s.state = next
	s.lastSeen = s.now()
	s.mu.Unlock()

	r.observe(next)
	return next, true
}

func (r *run) fail(err error) (State, error) {
	st, ok := r.step(func(st State) (State, error) { return st.Failed(err) })
	if !ok {
		return r.superseded()
	}
	r.session.logger.Error("query failed", "query_id", st.QueryID, "phase_err", st.ErrCode, "err", err)
	return st, err
}

func (r *run) superseded() (State, error) {
	return r.session.State(), ErrSuperseded
}
