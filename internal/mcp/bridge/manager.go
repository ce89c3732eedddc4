package bridge

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

type Config struct {
	WorldWSURL  string
	MaxSessions int
	EventBuffer int
	Logger      *log.Logger
}

// Manager maps tool-call session keys to world connections. Each key is one
// agent; the least recently used session is closed when MaxSessions is hit.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session

	closed bool
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.WorldWSURL == "" {
		return nil, fmt.Errorf("empty world ws url")
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 256
	}
	return &Manager{
		cfg:      cfg,
		sessions: map[string]*Session{},
	}, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	return nil
}

func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) GetStatus(ctx context.Context, sessionKey string) (Status, error) {
	s, err := m.getOrCreateSession(sessionKey)
	if err != nil {
		return Status{}, err
	}
	_ = ctx
	return s.Status(), nil
}

func (m *Manager) GetView(ctx context.Context, sessionKey string, opts GetViewOpts) (ViewResult, error) {
	s, err := m.getOrCreateSession(sessionKey)
	if err != nil {
		return ViewResult{}, err
	}
	s.ResumeReconnect()
	return s.GetView(ctx, opts)
}

func (m *Manager) GetEvents(ctx context.Context, sessionKey string, opts GetEventsOpts) (EventsResult, error) {
	s, err := m.getOrCreateSession(sessionKey)
	if err != nil {
		return EventsResult{}, err
	}
	s.ResumeReconnect()
	return s.GetEvents(ctx, opts)
}

func (m *Manager) ListObjects(ctx context.Context, sessionKey string) ([]ObjectView, error) {
	s, err := m.getOrCreateSession(sessionKey)
	if err != nil {
		return nil, err
	}
	s.ResumeReconnect()
	return s.ListObjects(ctx)
}

func (m *Manager) LookAt(ctx context.Context, sessionKey string, args LookArgs) (LookResult, error) {
	s, err := m.getOrCreateSession(sessionKey)
	if err != nil {
		return LookResult{}, err
	}
	s.ResumeReconnect()
	return s.LookAt(ctx, args)
}

func (m *Manager) Interact(ctx context.Context, sessionKey string, args InteractArgs) (ActionResult, error) {
	s, err := m.getOrCreateSession(sessionKey)
	if err != nil {
		return ActionResult{}, err
	}
	s.ResumeReconnect()
	return s.Interact(ctx, args)
}

func (m *Manager) SetCanInteract(ctx context.Context, sessionKey string, value bool) (ActionResult, error) {
	s, err := m.getOrCreateSession(sessionKey)
	if err != nil {
		return ActionResult{}, err
	}
	s.ResumeReconnect()
	return s.SetCanInteract(ctx, value)
}

func (m *Manager) Disconnect(ctx context.Context, sessionKey string) error {
	s, err := m.getOrCreateSession(sessionKey)
	if err != nil {
		return err
	}
	_ = ctx
	s.DisconnectAndPause()
	return nil
}

func (m *Manager) getOrCreateSession(key string) (*Session, error) {
	if key == "" {
		key = "default"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("bridge manager closed")
	}

	if s := m.sessions[key]; s != nil {
		return s, nil
	}

	if len(m.sessions) >= m.cfg.MaxSessions {
		var oldestKey string
		var oldest time.Time
		for k, s := range m.sessions {
			t := s.LastUsedAt()
			if oldestKey == "" || t.Before(oldest) {
				oldestKey = k
				oldest = t
			}
		}
		if oldestKey != "" {
			m.sessions[oldestKey].Close()
			delete(m.sessions, oldestKey)
		}
	}

	s := NewSession(SessionConfig{
		Key:         key,
		WorldWSURL:  m.cfg.WorldWSURL,
		EventBuffer: m.cfg.EventBuffer,
		Logger:      m.cfg.Logger,
	})
	m.sessions[key] = s
	s.Start()
	return s, nil
}
