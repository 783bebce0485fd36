package ledger

import (
	"context"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/store"
)

// Manager owns the loaded sessions, one per signed-in user, bounded by count
// and idle time. A dropped session is closed, not cleared: a request still
// holding it fails with ErrSessionClosed instead of writing through empty
// mirrors, and the next Open loads a fresh one.
type Manager struct {
	mu       sync.Mutex
	tables   store.Tables
	sessions *cache.LRUCache[*Session]
	opts     []Option
	logger   *log.Logger
}

func NewManager(tables store.Tables, maxSessions int, idle time.Duration, logger *log.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	m := &Manager{
		tables:   tables,
		sessions: cache.NewLRUCache[*Session](maxSessions, idle),
		opts:     append([]Option{WithLogger(logger)}, opts...),
		logger:   logger.WithComponent(log.ComponentLedger),
	}
	m.sessions.OnEvict(func(userID string, s *Session) {
		s.Close()
		m.logger.Info("Session evicted", log.FieldUserID, userID)
	})
	return m
}

// Open returns the user's session, constructing and loading it on first use.
// A session whose load fails is not kept.
func (m *Manager) Open(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, core.ErrAuthRequired
	}
	if s, ok := m.sessions.Get(userID); ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions.Get(userID); ok {
		return s, nil
	}
	s := NewSession(m.tables, userID, m.opts...)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	m.sessions.Set(userID, s)
	m.logger.InfoContext(ctx, "Session opened", log.FieldUserID, userID)
	return s, nil
}

// Get returns a cached session without loading.
func (m *Manager) Get(userID string) (*Session, bool) {
	return m.sessions.Get(userID)
}

// Close tears down the user's session, as on sign-out.
func (m *Manager) Close(userID string) {
	if s, ok := m.sessions.Get(userID); ok {
		s.Close()
	}
	m.sessions.Delete(userID)
	m.logger.Info("Session closed", log.FieldUserID, userID)
}

// Switch reacts to an identity change: the old session is dropped and the new
// user's mirrors are loaded. An empty newID only signs out.
func (m *Manager) Switch(ctx context.Context, oldID, newID string) (*Session, error) {
	if oldID != "" && oldID != newID {
		m.Close(oldID)
	}
	if newID == "" {
		return nil, nil
	}
	return m.Open(ctx, newID)
}

// CleanExpired lets a cache.Manager purge idle sessions.
func (m *Manager) CleanExpired() int {
	return m.sessions.CleanExpired()
}

func (m *Manager) Size() int {
	return m.sessions.Size()
}
