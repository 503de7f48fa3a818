package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetplan/internal/metrics"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Store holds live sessions.
type Store interface {
	Create() *Session
	Get(id string) (*Session, error)
	Delete(id string) error
	Len() int
}

// Memory is the in-process Store. Idle sessions are evicted by Sweep.
type Memory struct {
	deps *Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemory returns an empty store. Defaults are applied to a copy of deps
// once, so concurrent Create calls only read it.
func NewMemory(deps *Deps) *Memory {
	return &Memory{deps: deps.withDefaults(), sessions: map[string]*Session{}}
}

func (m *Memory) Create() *Session {
	s := New(m.deps)
	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.Sessions.Set(float64(n))
	m.deps.Log.Info("session created", zap.String("session", s.ID))
	return s
}

func (m *Memory) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	metrics.Sessions.Set(float64(n))
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than ttl and returns how many went.
func (m *Memory) Sweep(ttl time.Duration) int {
	cutoff := m.deps.now().Add(-ttl)
	m.mu.Lock()
	var stale []string
	for id, s := range m.sessions {
		if s.Touched().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if len(stale) > 0 {
		metrics.Sessions.Set(float64(n))
		m.deps.Log.Info("evicted idle sessions", zap.Int("count", len(stale)), zap.Duration("ttl", ttl))
	}
	return len(stale)
}

// RunJanitor sweeps every interval until ctx is done.
func (m *Memory) RunJanitor(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ttl)
		}
	}
}
