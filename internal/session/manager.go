package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/cart"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrManagerClosed   = errors.New("session manager closed")
)

// Session is one browser session and the cart it owns.
type Session struct {
	ID string

	mu       sync.Mutex
	cart     *cart.Store
	lastSeen time.Time
	now      func() time.Time
}

// Update runs fn against the session cart and returns the resulting snapshot.
// Calls on the same session are serialized.
func (s *Session) Update(fn func(*cart.Store)) cart.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.cart)
	s.lastSeen = s.now()
	return s.cart.Snapshot()
}

// View returns the current cart snapshot.
func (s *Session) View() cart.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = s.now()
	return s.cart.Snapshot()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Config controls session expiry
type Config struct {
	IdleTimeout   time.Duration // Sessions unused for this long are ended
	SweepInterval time.Duration // How often idle sessions are looked for
}

// Manager owns the live sessions. Construct it at startup and Close it at shutdown.
type Manager struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	stop chan struct{}
	done chan struct{}
}

// NewManager creates a manager and starts its idle sweeper when SweepInterval > 0.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cfg.SweepInterval > 0 && cfg.IdleTimeout > 0 {
		go m.sweepLoop()
	} else {
		close(m.done)
	}

	return m
}

// Start begins a new session with an empty cart.
func (m *Manager) Start() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	s := &Session{
		ID:       uuid.NewString(),
		cart:     cart.NewStore(),
		lastSeen: m.now(),
		now:      m.now,
	}
	m.sessions[s.ID] = s

	m.logger.Debug("Session started", zap.String("session_id", s.ID))
	return s, nil
}

// Get returns the live session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// End discards a session and its cart. Unknown ids are ignored.
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		m.logger.Debug("Session ended", zap.String("session_id", id))
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep ends every session idle for longer than the configured timeout and
// returns how many were ended.
func (m *Manager) Sweep() int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	ended := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			ended++
		}
	}

	if ended > 0 {
		m.logger.Info("Expired idle sessions",
			zap.Int("ended", ended),
			zap.Int("remaining", len(m.sessions)),
		)
	}
	return ended
}

// Close stops the sweeper and ends all sessions. Start fails afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	count := len(m.sessions)
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	close(m.stop)
	<-m.done

	m.logger.Info("Session manager closed", zap.Int("sessions_ended", count))
	return nil
}

func (m *Manager) sweepLoop() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
