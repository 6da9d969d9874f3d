// Package session owns the state of one authenticated tutoring session: its
// lifecycle state machine, its transcript and its keep-alive task.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"essaycoach/coach/transcript"
	"essaycoach/coach/utils/logging"
	"essaycoach/coach/utils/types"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
	"go.uber.org/zap"
)

const (
	StateUnauthenticated = "Unauthenticated"
	StateActive          = "Active"
	StateClosed          = "Closed"
)

const (
	TriggerLogin  = "Login"
	TriggerLogout = "Logout"
)

var ErrNotActive = errors.New("session is not active")

type activation struct {
	identity   types.Identity
	transcript *transcript.Transcript
}

type Session struct {
	ID string

	// mu serializes interactions: the holder is the transcript's only writer.
	mu         sync.Mutex
	fsm        *stateless.StateMachine
	identity   atomic.Pointer[types.Identity]
	transcript *transcript.Transcript

	base     context.Context
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	lastSeen atomic.Int64
	lastUsed atomic.Int64
	beats    atomic.Int64
}

// New returns an Unauthenticated session. base bounds the keep-alive task,
// which ticks every interval once the session is active.
func New(base context.Context, interval time.Duration) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		base:     base,
		interval: interval,
	}
	now := time.Now().UnixNano()
	s.lastSeen.Store(now)
	s.lastUsed.Store(now)

	sm := stateless.NewStateMachine(StateUnauthenticated)
	sm.Configure(StateUnauthenticated).
		Permit(TriggerLogin, StateActive)
	sm.Configure(StateActive).
		OnEntryFrom(TriggerLogin, s.onLogin).
		Permit(TriggerLogout, StateClosed)
	sm.Configure(StateClosed).
		OnEntry(s.onLogout)
	s.fsm = sm
	return s
}

// Activate moves the session to Active for the given identity, seeding its
// transcript and starting the keep-alive task.
func (s *Session) Activate(ctx context.Context, id types.Identity, seed []transcript.Turn) error {
	tr, err := transcript.New(seed...)
	if err != nil {
		return fmt.Errorf("seed transcript: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fsm.FireCtx(ctx, TriggerLogin, activation{identity: id, transcript: tr}); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	return nil
}

func (s *Session) onLogin(ctx context.Context, args ...any) error {
	if len(args) != 1 {
		return errors.New("login needs an identity")
	}
	act, ok := args[0].(activation)
	if !ok {
		return fmt.Errorf("unexpected login argument %T", args[0])
	}
	s.identity.Store(&act.identity)
	s.transcript = act.transcript

	kctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.keepAlive(kctx)

	logging.AppLogger.Info("session active", zap.String("session_id", s.ID), zap.String("uid", act.identity.UID))
	return nil
}

// End closes the session and returns once its keep-alive task has exited.
// It takes the interaction lock first, so it blocks until an in-flight Do,
// including its backend call and export, has finished.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fsm.FireCtx(ctx, TriggerLogout); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *Session) onLogout(ctx context.Context, args ...any) error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	logging.AppLogger.Info("session closed", zap.String("session_id", s.ID), zap.Int64("keepalive_beats", s.beats.Load()))
	return nil
}

func (s *Session) keepAlive(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.lastSeen.Store(t.UnixNano())
			s.beats.Add(1)
			logging.AppLogger.Debug("session keep-alive", zap.String("session_id", s.ID))
		}
	}
}

// Do runs fn with exclusive access to the transcript. It fails with
// ErrNotActive unless the session is Active.
func (s *Session) Do(fn func(tr *transcript.Transcript) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fsm.MustState() != StateActive {
		return ErrNotActive
	}
	now := time.Now().UnixNano()
	s.lastSeen.Store(now)
	s.lastUsed.Store(now)
	return fn(s.transcript)
}

func (s *Session) State() string {
	st, _ := s.fsm.MustState().(string)
	return st
}

// Identity is the authenticated user; zero until the session is activated.
func (s *Session) Identity() types.Identity {
	if id := s.identity.Load(); id != nil {
		return *id
	}
	return types.Identity{}
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// LastUsed is when the session was opened or last ran an interaction.
// Keep-alive ticks do not count.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Beats is how many keep-alive ticks have fired.
func (s *Session) Beats() int64 {
	return s.beats.Load()
}
