// internal/service/session/manager.go

package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mapaeleitoral/internal/clock"
	"mapaeleitoral/internal/domain/election"
)

// ManagerConfig contains configuration for the session manager
type ManagerConfig struct {
	Session Config
	// IdleTimeout closes sessions without a view after this long
	IdleTimeout time.Duration
	// SweepInterval is how often idle sessions are looked for
	SweepInterval time.Duration
	// MaxSessions caps concurrent sessions; zero means unlimited
	MaxSessions int
}

// Manager holds the live sessions by id
type Manager struct {
	source    election.Source
	config    ManagerConfig
	clock     clock.Clock
	observers []Observer

	mu       sync.RWMutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager. Every session it creates is observed by
// observers. Idle sessions are swept in the background when both
// IdleTimeout and SweepInterval are set.
func NewManager(source election.Source, config ManagerConfig, clk clock.Clock, observers ...Observer) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		source:    source,
		config:    config,
		clock:     clk,
		observers: observers,
		sessions:  make(map[string]*Session),
		ctx:       ctx,
		cancel:    cancel,
	}

	if config.IdleTimeout > 0 && config.SweepInterval > 0 {
		m.wg.Add(1)
		go m.sweepIdleSessions()
	}

	return m
}

// Create starts a session from a page URL query
func (m *Manager) Create(rawQuery string) (*Session, error) {
	m.mu.Lock()
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrLimit, m.config.MaxSessions)
	}
	s := New(uuid.New().String(), m.source, m.config.Session, m.clock)
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	for _, o := range m.observers {
		s.Subscribe(o)
	}

	if _, _, err := s.Start(rawQuery); err != nil {
		m.remove(s.ID())
		s.Close()
		return nil, fmt.Errorf("error starting session: %w", err)
	}
	return s, nil
}

// Get returns a session by id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close closes and forgets a session
func (m *Manager) Close(id string) error {
	s := m.remove(id)
	if s == nil {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) remove(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	delete(m.sessions, id)
	return s
}

func (m *Manager) sweepIdleSessions() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.CloseIdle()
		}
	}
}

// CloseIdle closes every session that has had no view and no activity
// for the idle timeout. It returns how many were closed.
func (m *Manager) CloseIdle() int {
	cutoff := m.clock.Now().Add(-m.config.IdleTimeout)

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.Idle(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if err := m.Close(id); err == nil {
			log.Printf("session %s: closed after being idle", id)
			closed++
		}
	}
	return closed
}

// Shutdown stops the sweeper and closes every session concurrently
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			done := make(chan struct{})
			go func() {
				s.Close()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return fmt.Errorf("session %s: %w", s.ID(), gctx.Err())
			}
		})
	}
	return g.Wait()
}
