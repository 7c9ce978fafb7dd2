package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ovstage/stagehub/internal/domain"
)

type SessionID string

// Session is one connected transport endpoint. Send must preserve program
// order per session; the websocket adapter backs it with a single buffered
// channel drained by one write pump.
type Session interface {
	ID() SessionID
	Send(ev Event) error
}

// Registry tracks which sessions belong to which user so the router can
// reach "all of a user's devices". It is process-local transient state,
// rebuilt from reconnects after a restart.
type Registry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]map[SessionID]Session
	users  map[SessionID]domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[domain.UserID]map[SessionID]Session),
		users:  make(map[SessionID]domain.UserID),
	}
}

// Register associates a session with a user. A user may hold any number of
// concurrent sessions.
func (r *Registry) Register(userID domain.UserID, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[SessionID]Session)
	}
	r.byUser[userID][s.ID()] = s
	r.users[s.ID()] = userID
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID())).Str("user", string(userID)).Msg("session registered")
}

// Unregister drops a session; no-op when already removed.
func (r *Registry) Unregister(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.users[sid]
	if !ok {
		return
	}
	delete(r.users, sid)
	if sessions := r.byUser[userID]; sessions != nil {
		delete(sessions, sid)
		if len(sessions) == 0 {
			delete(r.byUser, userID)
		}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(userID)).Msg("session unregistered")
}

// SessionsFor returns the user's current sessions, possibly empty.
func (r *Registry) SessionsFor(userID domain.UserID) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.byUser[userID]))
	for _, s := range r.byUser[userID] {
		out = append(out, s)
	}
	return out
}

// UserOf resolves the authenticated user behind a session.
func (r *Registry) UserOf(sid SessionID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.users[sid]
	return userID, ok
}

// Online reports whether the user has at least one connected session.
func (r *Registry) Online(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// SessionCount is the number of connected sessions across all users.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
