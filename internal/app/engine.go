// Package app is the stage membership and fan-out engine: session registry,
// router, membership state machine, customization overlays and cascade
// deletes. One Engine is constructed at startup and injected into the
// transport adapters; there is no ambient global state.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/store"
)

// Engine owns the core behavior. Methods are grouped by concern across
// membership.go, custom.go, lifecycle.go, stages.go and devices.go.
type Engine struct {
	store    *store.Store
	registry *Registry
	router   *Router

	mu        sync.Mutex
	userLocks map[domain.UserID]*sync.Mutex

	// background schedules fire-and-forget work (producer offline sweeps
	// after leave). Tests replace it with an inline runner.
	background func(fn func())
}

func NewEngine(st *store.Store, reg *Registry) *Engine {
	return &Engine{
		store:      st,
		registry:   reg,
		router:     NewRouter(st, reg),
		userLocks:  make(map[domain.UserID]*sync.Mutex),
		background: func(fn func()) { go fn() },
	}
}

// Registry exposes the session registry for the transport adapter.
func (e *Engine) Registry() *Registry { return e.registry }

// Router exposes the fan-out router.
func (e *Engine) Router() *Router { return e.router }

// lockUser serializes membership transitions per user. Two concurrent joins
// for the same user must not both pass the create-member branch.
func (e *Engine) lockUser(userID domain.UserID) func() {
	e.mu.Lock()
	l, ok := e.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.userLocks[userID] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// ReconcileOnlineMembers sweeps for stage members marked online whose user
// has no connected session, and marks them offline. Run periodically; covers
// crashes that dropped registry entries without a clean disconnect.
func (e *Engine) ReconcileOnlineMembers(ctx context.Context) error {
	members, err := e.store.StageMembers.Find(ctx, func(m domain.StageMember) bool { return m.Online })
	if err != nil {
		return err
	}
	for _, m := range members {
		if e.registry.Online(m.UserID) {
			continue
		}
		log.Warn().Str("module", "app.engine").Str("member", string(m.ID)).Str("user", string(m.UserID)).Msg("online member without sessions, forcing leave")
		if err := e.Leave(ctx, m.UserID, true); err != nil {
			log.Error().Err(err).Str("module", "app.engine").Str("user", string(m.UserID)).Msg("reconcile leave failed")
		}
	}
	return nil
}
