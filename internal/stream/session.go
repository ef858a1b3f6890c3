// Package stream tracks active response streams: per-stream cancellation
// and the continuation chains that work through multi-step plans.
package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Continuation binds a session to a multi-step plan. NextStep returns the
// prompt for the next unfinished step, or ok=false when the plan is done.
type Continuation struct {
	PlanID   string
	NextStep func() (prompt string, ok bool)
}

// Session is one live response stream. Its context is derived from the
// parent session's, so cancelling a parent reaches every child it spawned.
type Session struct {
	ID           string
	ParentID     string
	Continuation *Continuation

	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the session's cancellation context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Live reports whether the session has not been cancelled.
func (s *Session) Live() bool {
	return s.ctx.Err() == nil
}

// Manager owns the streamId to session mapping.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	seq      atomic.Uint64
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Open registers a new session. parentID may be empty for a root stream;
// when set, the new session's context descends from the parent's so
// cancellation propagates down the chain.
func (m *Manager) Open(parentID string, cont *Continuation) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := context.Background()
	if parent, ok := m.sessions[parentID]; ok {
		base = parent.ctx
	}
	ctx, cancel := context.WithCancel(base)

	session := &Session{
		ID:           fmt.Sprintf("stream-%d", m.seq.Add(1)),
		ParentID:     parentID,
		Continuation: cont,
		ctx:          ctx,
		cancel:       cancel,
	}
	m.sessions[session.ID] = session
	return session
}

// Get looks up a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Cancel cancels a session. Children keep their map entries but their
// contexts are already done through context inheritance.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	s.cancel()
	return true
}

// Close cancels and removes a session.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.cancel()
		delete(m.sessions, id)
	}
}

// ActiveCount returns the number of registered sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
