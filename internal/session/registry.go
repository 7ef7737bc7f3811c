// Package session tracks client sessions: whether a run is active and the
// review gate that run waits on.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jonathan/storybook/internal/review"
)

var (
	// ErrUnknownSession is returned when an operation names a session the registry does not hold
	ErrUnknownSession = errors.New("unknown session")
	// ErrRunInProgress is returned by Begin when the session already has an active run
	ErrRunInProgress = errors.New("a run is already in progress for this session")
)

// Session is a point-in-time view of a registered session
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Running   bool      `json:"running"`
}

type entry struct {
	createdAt time.Time
	running   bool
	gate      *review.Gate
}

// Registry maps session ids to their state. All mutations happen under one mutex.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// GetOrCreate returns the session for id, creating it when missing.
// An empty id allocates a fresh one.
func (r *Registry) GetOrCreate(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	e, ok := r.sessions[id]
	if !ok {
		e = r.newEntry()
		r.sessions[id] = e
	}
	return e.snapshot(id), !ok
}

// Get returns the session for id
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return e.snapshot(id), true
}

// Begin marks a run as active for the session
func (r *Registry) Begin(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return ErrUnknownSession
	}
	if e.running {
		return ErrRunInProgress
	}
	e.running = true
	e.gate.Drain()
	return nil
}

// Clear ends the active run and discards any undelivered decision
func (r *Registry) Clear(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[id]; ok {
		e.running = false
		e.gate.Drain()
	}
}

// Sweep removes sessions created more than maxAge ago. Sessions with an
// active run are kept. It returns the number of sessions removed.
func (r *Registry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	removed := 0
	for id, e := range r.sessions {
		if e.running || !e.createdAt.Before(cutoff) {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Int("remaining", len(r.sessions)).Msg("swept expired sessions")
	}
	return removed
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Submit delivers a decision to the session's gate, creating the session when
// it does not exist yet. It reports whether the session was created.
func (r *Registry) Submit(id string, d review.Decision) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		e = r.newEntry()
		r.sessions[id] = e
	}
	r.mu.Unlock()

	e.gate.Submit(d)
	return !ok
}

// Await blocks on the session's gate. It never creates a session.
func (r *Registry) Await(ctx context.Context, id string, timeout time.Duration) (review.Decision, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return review.Decision{}, ErrUnknownSession
	}
	return e.gate.Await(ctx, timeout)
}

// Reviewer returns a reviewer that waits on the session's gate
func (r *Registry) Reviewer(id string, timeout time.Duration) *Reviewer {
	return &Reviewer{registry: r, id: id, timeout: timeout}
}

func (r *Registry) newEntry() *entry {
	return &entry{createdAt: r.now(), gate: review.NewGate()}
}

func (e *entry) snapshot(id string) Session {
	return Session{ID: id, CreatedAt: e.createdAt, Running: e.running}
}

// Reviewer adapts one session's gate to the pipeline's review step
type Reviewer struct {
	registry *Registry
	id       string
	timeout  time.Duration
}

// Await waits for the session's next decision
func (rv *Reviewer) Await(ctx context.Context) (review.Decision, error) {
	return rv.registry.Await(ctx, rv.id, rv.timeout)
}
