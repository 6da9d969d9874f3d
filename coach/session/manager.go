package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"essaycoach/coach/transcript"
	"essaycoach/coach/utils/apperr"
	"essaycoach/coach/utils/logging"
	"essaycoach/coach/utils/types"

	"go.uber.org/zap"
)

var ErrUnknownSession = errors.New("unknown or ended session")

// Manager is the registry of live sessions. Sessions are never shared
// between users; the registry only maps ids to their owner's session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	base     context.Context
	interval time.Duration
	closing  sync.WaitGroup
}

func NewManager(base context.Context, keepAlive time.Duration) *Manager {
	if keepAlive <= 0 {
		keepAlive = 60 * time.Second
	}
	return &Manager{
		sessions: map[string]*Session{},
		base:     base,
		interval: keepAlive,
	}
}

// Open creates a session for an identity the provider has already vouched
// for and activates it with the given seed turns. A user holds one live
// session at a time: any earlier session of the same user is forgotten at
// once and closed in the background.
func (m *Manager) Open(ctx context.Context, id types.Identity, seed []transcript.Turn) (*Session, error) {
	s := New(m.base, m.interval)
	if err := s.Activate(ctx, id, seed); err != nil {
		return nil, apperr.Session("open", err)
	}
	var replaced []*Session
	m.mu.Lock()
	for sid, old := range m.sessions {
		if old.Identity().UID == id.UID {
			delete(m.sessions, sid)
			replaced = append(replaced, old)
		}
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()
	for _, old := range replaced {
		m.closeLater(old, "replaced")
	}
	return s, nil
}

// closeLater ends s off the caller's path; s may be mid-interaction and End
// waits for it. Shutdown waits for these too.
func (m *Manager) closeLater(s *Session, reason string) {
	m.closing.Add(1)
	go func() {
		defer m.closing.Done()
		if err := s.End(context.WithoutCancel(m.base)); err != nil {
			logging.ErrorLogger.Error("session close failed", zap.String("session_id", s.ID), zap.String("reason", reason), zap.Error(err))
			return
		}
		logging.AppLogger.Info("session retired", zap.String("session_id", s.ID), zap.String("reason", reason))
	}()
}

// Reap closes every session with no interaction for longer than maxIdle and
// reports how many it retired.
func (m *Manager) Reap(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	var idle []*Session
	m.mu.Lock()
	for sid, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(m.sessions, sid)
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()
	for _, s := range idle {
		m.closeLater(s, "idle")
	}
	return len(idle)
}

// RunReaper calls Reap every interval until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, every, maxIdle time.Duration) {
	if every <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(maxIdle); n > 0 {
				logging.AppLogger.Info("idle sessions reaped", zap.Int("count", n), zap.Int("live", m.Len()))
			}
		}
	}
}

// Get returns the live session with id, checking that it belongs to uid.
func (m *Manager) Get(id, uid string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.Identity().UID != uid {
		return nil, apperr.Session("lookup", ErrUnknownSession)
	}
	return s, nil
}

// End closes and forgets the session.
func (m *Manager) End(ctx context.Context, id, uid string) error {
	s, err := m.Get(id, uid)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	if err := s.End(ctx); err != nil {
		return apperr.Session("end", err)
	}
	return nil
}

// Shutdown ends every live session and waits for background closes.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	live := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	for id, s := range live {
		if err := s.End(ctx); err != nil {
			logging.ErrorLogger.Error("session shutdown failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	m.closing.Wait()
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
