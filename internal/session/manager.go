package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/cutbench/cutbench-agent/internal/inference"
	"github.com/cutbench/cutbench-agent/internal/project"
)

// ErrProjectNotFound is returned when a session is opened for a project id
// with no catalog row.
var ErrProjectNotFound = errors.New("session: project not found")

// Manager holds one live session per open project. Opening is idempotent;
// closing flushes and discards the session, and the next open re-hydrates
// from SQLite.
type Manager struct {
	service   *project.Service
	repo      project.Repository
	inference inference.Client
	pub       Publisher
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(service *project.Service, repo project.Repository, client inference.Client, pub Publisher, logger *slog.Logger) *Manager {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Manager{
		service:   service,
		repo:      repo,
		inference: client,
		pub:       pub,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Open returns the project's live session, creating and hydrating it on
// first use.
func (m *Manager) Open(ctx context.Context, projectID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[projectID]; ok {
		return s, nil
	}

	p, err := m.service.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}

	s, err := newSession(ctx, projectID, m.service, m.repo, m.inference, m.pub, m.logger)
	if err != nil {
		return nil, err
	}
	m.sessions[projectID] = s

	if m.logger != nil {
		m.logger.Info("session opened", "project_id", projectID)
	}
	return s, nil
}

// Get returns the live session without opening one.
func (m *Manager) Get(projectID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[projectID]
	return s, ok
}

// Close flushes and discards a project's session. Closing a project with no
// open session is a no-op.
func (m *Manager) Close(projectID string) {
	m.mu.Lock()
	s, ok := m.sessions[projectID]
	delete(m.sessions, projectID)
	m.mu.Unlock()

	if ok {
		s.Close()
		if m.logger != nil {
			m.logger.Info("session closed", "project_id", projectID)
		}
	}
}

// CloseAll flushes every open session, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// OpenCount reports how many sessions are live.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// OnInsights is the job runner's completion hook: a finished analysis job
// refreshes the open session, if any. Projects without an open session pick
// the document up on next open.
func (m *Manager) OnInsights(projectID string, document []byte) {
	if s, ok := m.Get(projectID); ok {
		s.handleInsights(document)
	}
}
