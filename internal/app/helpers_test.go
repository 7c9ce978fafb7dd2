package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/store"
)

// fakeSession records every event it receives, in order.
type fakeSession struct {
	id SessionID

	mu     sync.Mutex
	events []Event
	fail   bool

	// onSend, when set, runs for every delivered event before it is
	// recorded. Lets a test observe state at delivery time.
	onSend func(ev Event)
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: SessionID(id)}
}

func (s *fakeSession) ID() SessionID { return s.id }

func (s *fakeSession) Send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrInconsistent
	}
	if s.onSend != nil {
		s.onSend(ev)
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeSession) names() []EventName {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventName, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Name)
	}
	return out
}

func (s *fakeSession) count(name EventName) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func (s *fakeSession) last(name EventName) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Name == name {
			return s.events[i], true
		}
	}
	return Event{}, false
}

func (s *fakeSession) reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

// newTestEngine builds an engine on the in-memory store with background work
// running inline, so tests observe side effects synchronously.
func newTestEngine(t *testing.T) (*Engine, *store.Store, *Registry) {
	t.Helper()
	st := store.NewMemory()
	reg := NewRegistry()
	e := NewEngine(st, reg)
	e.background = func(fn func()) { fn() }
	return e, st, reg
}

func seedUser(t *testing.T, st *store.Store, id string) domain.User {
	t.Helper()
	u := domain.User{ID: domain.UserID(id), DisplayName: id}
	require.NoError(t, st.Users.Create(context.Background(), u))
	return u
}

// seedStage creates a stage with one group via the engine so invariants hold.
func seedStage(t *testing.T, e *Engine, admin domain.UserID, password string) (domain.Stage, domain.Group) {
	t.Helper()
	ctx := context.Background()
	stage, err := e.CreateStage(ctx, admin, "test stage", password)
	require.NoError(t, err)
	group, err := e.CreateGroup(ctx, admin, stage.ID, "band")
	require.NoError(t, err)
	return *stage, *group
}

// connect registers a recording session for a user.
func connect(reg *Registry, userID domain.UserID, sid string) *fakeSession {
	s := newFakeSession(sid)
	reg.Register(userID, s)
	return s
}
