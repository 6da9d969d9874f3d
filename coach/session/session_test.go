package session

import (
	"context"
	"testing"
	"time"

	"essaycoach/coach/transcript"
	"essaycoach/coach/utils/apperr"
	"essaycoach/coach/utils/types"

	"github.com/stretchr/testify/require"
)

var jo = types.Identity{UID: "uid-jo", Email: "jo@example.com"}

func seed(t *testing.T) []transcript.Turn {
	t.Helper()
	a, err := transcript.NewAnnotator("Europe/London", nil)
	require.NoError(t, err)
	return []transcript.Turn{
		a.NewTurn(transcript.RoleSystem, "be a tutor"),
		a.NewTurn(transcript.RoleAssistant, "Hi there!"),
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := New(context.Background(), time.Hour)
	require.Equal(t, StateUnauthenticated, s.State())
	require.ErrorIs(t, s.Do(func(*transcript.Transcript) error { return nil }), ErrNotActive)

	require.NoError(t, s.Activate(context.Background(), jo, seed(t)))
	require.Equal(t, StateActive, s.State())
	require.Equal(t, jo, s.Identity())

	var n int
	require.NoError(t, s.Do(func(tr *transcript.Transcript) error {
		n = tr.Len()
		return nil
	}))
	require.Equal(t, 2, n)

	require.Error(t, s.Activate(context.Background(), jo, seed(t)), "already active")

	require.NoError(t, s.End(context.Background()))
	require.Equal(t, StateClosed, s.State())
	require.ErrorIs(t, s.Do(func(*transcript.Transcript) error { return nil }), ErrNotActive)
	require.Error(t, s.End(context.Background()), "closed is terminal")
}

func TestActivateRejectsBadSeed(t *testing.T) {
	s := New(context.Background(), time.Hour)
	err := s.Activate(context.Background(), jo, []transcript.Turn{{Role: transcript.RoleSystem, Content: "unstamped"}})
	require.Error(t, err)
	require.Equal(t, StateUnauthenticated, s.State())
}

func TestKeepAliveStopsOnEnd(t *testing.T) {
	s := New(context.Background(), 5*time.Millisecond)
	require.NoError(t, s.Activate(context.Background(), jo, seed(t)))

	require.Eventually(t, func() bool { return s.Beats() >= 2 }, time.Second, time.Millisecond)
	require.NoError(t, s.End(context.Background()))

	// End waits for the task, so no beat can land afterwards.
	after := s.Beats()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, s.Beats())
	require.WithinDuration(t, time.Now(), s.LastSeen(), time.Second)
}

func TestKeepAliveBoundToBaseContext(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	s := New(base, 5*time.Millisecond)
	require.NoError(t, s.Activate(context.Background(), jo, seed(t)))
	cancel()
	// the task exits with its base; End must still complete
	require.NoError(t, s.End(context.Background()))
}

func TestManager(t *testing.T) {
	m := NewManager(context.Background(), time.Hour)
	s, err := m.Open(context.Background(), jo, seed(t))
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID, jo.UID)
	require.NoError(t, err)
	require.Same(t, s, got)

	_, err = m.Get(s.ID, "someone-else")
	require.True(t, apperr.Is(err, apperr.KindSession))

	other, err := m.Open(context.Background(), types.Identity{UID: "uid-sam", Email: "sam@example.com"}, seed(t))
	require.NoError(t, err)
	require.NotEqual(t, s.ID, other.ID)

	require.NoError(t, m.End(context.Background(), s.ID, jo.UID))
	require.Equal(t, StateClosed, s.State())
	_, err = m.Get(s.ID, jo.UID)
	require.True(t, apperr.Is(err, apperr.KindSession))
	require.True(t, apperr.Is(m.End(context.Background(), s.ID, jo.UID), apperr.KindSession))

	m.Shutdown(context.Background())
	require.Equal(t, 0, m.Len())
	require.Equal(t, StateClosed, other.State())
}

func TestEndWaitsForInteraction(t *testing.T) {
	s := New(context.Background(), time.Hour)
	require.NoError(t, s.Activate(context.Background(), jo, seed(t)))

	entered := make(chan struct{})
	release := make(chan struct{})
	go s.Do(func(*transcript.Transcript) error {
		close(entered)
		<-release
		return nil
	})
	<-entered

	ended := make(chan error, 1)
	go func() { ended <- s.End(context.Background()) }()
	select {
	case <-ended:
		t.Fatal("End returned while an interaction held the session")
	case <-time.After(20 * time.Millisecond):
	}
	require.Equal(t, StateActive, s.State())

	close(release)
	require.NoError(t, <-ended)
	require.Equal(t, StateClosed, s.State())
}

func TestManagerKeepsOneSessionPerUser(t *testing.T) {
	m := NewManager(context.Background(), time.Hour)
	defer m.Shutdown(context.Background())

	var opened []*Session
	for i := 0; i < 5; i++ {
		s, err := m.Open(context.Background(), jo, seed(t))
		require.NoError(t, err)
		opened = append(opened, s)
	}
	sam, err := m.Open(context.Background(), types.Identity{UID: "uid-sam", Email: "sam@example.com"}, seed(t))
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	latest := opened[len(opened)-1]
	_, err = m.Get(latest.ID, jo.UID)
	require.NoError(t, err)
	for _, old := range opened[:len(opened)-1] {
		_, err := m.Get(old.ID, jo.UID)
		require.True(t, apperr.Is(err, apperr.KindSession))
		require.Eventually(t, func() bool { return old.State() == StateClosed }, time.Second, time.Millisecond)
	}
	require.Equal(t, StateActive, sam.State())
}

func TestManagerReapsIdleSessions(t *testing.T) {
	m := NewManager(context.Background(), 5*time.Millisecond)
	defer m.Shutdown(context.Background())

	stale, err := m.Open(context.Background(), jo, seed(t))
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	fresh, err := m.Open(context.Background(), types.Identity{UID: "uid-sam", Email: "sam@example.com"}, seed(t))
	require.NoError(t, err)

	// keep-alive beats alone do not keep a session from going idle
	require.Positive(t, stale.Beats())
	require.Equal(t, 1, m.Reap(20*time.Millisecond))
	require.Equal(t, 1, m.Len())
	require.Eventually(t, func() bool { return stale.State() == StateClosed }, time.Second, time.Millisecond)
	require.Equal(t, StateActive, fresh.State())

	require.Zero(t, m.Reap(time.Hour))
}

func TestRunReaperStopsWithContext(t *testing.T) {
	m := NewManager(context.Background(), time.Hour)
	defer m.Shutdown(context.Background())
	s, err := m.Open(context.Background(), jo, seed(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunReaper(ctx, 5*time.Millisecond, 10*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return s.State() == StateClosed }, time.Second, time.Millisecond)
	cancel()
	<-done
}
