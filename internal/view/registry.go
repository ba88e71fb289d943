package view

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"answer-engine/internal/reveal"
)

const DefaultSessionTTL = 30 * time.Minute

// Registry maps client session IDs to sessions. Idle sessions are dropped
// once they have been unused for longer than the TTL.
type Registry struct {
	pipeline Pipeline
	revealer *reveal.Revealer
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(p Pipeline, r *reveal.Revealer, ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		pipeline: p,
		revealer: r,
		logger:   logger,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, creating it when id is empty or unknown.
// The returned session's ID may differ from id.
func (r *Registry) Get(id string) *Session {
	id = strings.TrimSpace(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()

	if s, ok := r.sessions[id]; ok && id != "" {
		s.touch()
		return s
	}
	if _, err := uuid.Parse(id); err != nil {
		id = newSessionID()
	}
	s := NewSession(id, r.pipeline, r.revealer, r.logger)
	s.now = r.now
	s.lastSeen = r.now()
	r.sessions[id] = s
	return s
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) pruneLocked() {
	cutoff := r.now().Add(-r.ttl)
	for id, s := range r.sessions {
		lastSeen, active := s.idleSince()
		if !active && lastSeen.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}

var newSessionID = func() string {
	return uuid.NewString()
}
