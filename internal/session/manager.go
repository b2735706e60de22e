package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/docquiz/internal/model"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

type entry struct {
	state    State
	lastSeen time.Time
}

// Manager keeps isolated in-memory sessions keyed by ID. Nothing survives a
// restart. Transitions on one session are applied one at a time.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
	now      func() time.Time
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*entry),
		now:      time.Now,
	}
}

// Create starts a new session over qs.
func (m *Manager) Create(qs model.QuizSet) (uuid.UUID, State, error) {
	st, err := Start(qs)
	if err != nil {
		return uuid.Nil, State{}, err
	}
	id := uuid.New()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &entry{state: st, lastSeen: m.now()}
	slog.Debug("session created", "session_id", id)
	return id, st, nil
}

// Get returns the current state of a session.
func (m *Manager) Get(id uuid.UUID) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	e.lastSeen = m.now()
	return e.state, nil
}

// Apply runs a transition on a session and stores the result. When the
// transition fails the stored state is left as it was.
func (m *Manager) Apply(id uuid.UUID, fn func(State) (State, error)) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	e.lastSeen = m.now()
	next, err := fn(e.state)
	if err != nil {
		return e.state, err
	}
	e.state = next
	return next, nil
}

// Delete clears a session. It reports whether the session existed.
func (m *Manager) Delete(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than ttl and returns how many went.
func (m *Manager) Sweep(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-ttl)
	removed := 0
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
