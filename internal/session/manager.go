package session

import (
	"sync"

	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/domain"
	"github.com/vidgrab/vidgrab/internal/platform"
)

// Manager tracks the live sessions owned by the API server.
type Manager struct {
	cfg      config.DownloadConfig
	registry *platform.Registry
	deps     Deps

	mu       sync.RWMutex
	sessions map[domain.SessionID]*Controller
}

// NewManager creates a session manager.
func NewManager(cfg config.DownloadConfig, registry *platform.Registry, deps Deps) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: registry,
		deps:     deps,
		sessions: make(map[domain.SessionID]*Controller),
	}
}

// Create makes a new session controller for a platform.
func (m *Manager) Create(p domain.Platform) (*Controller, error) {
	rule, err := m.registry.Rule(p)
	if err != nil {
		return nil, err
	}

	c := New(m.cfg, rule, m.deps)

	m.mu.Lock()
	m.sessions[c.ID()] = c
	m.mu.Unlock()
	return c, nil
}

// Get returns a session controller by ID.
func (m *Manager) Get(id domain.SessionID) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	return c, ok
}

// List returns snapshots of all tracked sessions.
func (m *Manager) List() []domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Session, 0, len(m.sessions))
	for _, c := range m.sessions {
		out = append(out, c.Session())
	}
	return out
}

// Remove closes and forgets a session.
func (m *Manager) Remove(id domain.SessionID) {
	m.mu.Lock()
	c, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		c.Close()
	}
}

// CloseAll tears down every tracked session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		sessions = append(sessions, c)
	}
	m.sessions = make(map[domain.SessionID]*Controller)
	m.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
}
