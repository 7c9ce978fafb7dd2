package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/metrics"
	"github.com/ovstage/stagehub/internal/store"
)

// Router resolves a logical target into concrete sessions and emits. Sends
// are best-effort: a missing stage resolves to an empty set, a failed
// session send is logged and skipped, never surfaced.
type Router struct {
	store    *store.Store
	registry *Registry
}

func NewRouter(st *store.Store, reg *Registry) *Router {
	return &Router{store: st, registry: reg}
}

// Send resolves target and emits ev to every matching session. Only store
// failures during resolution are returned.
func (r *Router) Send(ctx context.Context, target Target, ev Event) error {
	switch t := target.(type) {
	case ToSession:
		r.emit(t.Session, ev)
		return nil
	case ToUser:
		r.emitToUser(t.UserID, ev)
		return nil
	case ToStage:
		users, err := r.stageAssociates(ctx, t.StageID)
		if err != nil {
			return err
		}
		for _, u := range users {
			r.emitToUser(u, ev)
		}
		return nil
	case ToStageAdmins:
		stage, err := r.store.Stages.Get(ctx, string(t.StageID))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("resolve stage admins: %w", err)
		}
		for _, u := range stage.Admins {
			r.emitToUser(u, ev)
		}
		return nil
	case ToJoinedMembers:
		users, err := r.joinedUsers(ctx, t.StageID)
		if err != nil {
			return err
		}
		for _, u := range users {
			r.emitToUser(u, ev)
		}
		return nil
	default:
		return fmt.Errorf("unknown fan-out target %T", target)
	}
}

// ToUser emits to every session of one user.
func (r *Router) ToUser(ctx context.Context, userID domain.UserID, name EventName, payload any) error {
	return r.Send(ctx, ToUser{UserID: userID}, Event{Name: name, Payload: payload})
}

// ToSession emits to a single session.
func (r *Router) ToSession(ctx context.Context, s Session, name EventName, payload any) error {
	return r.Send(ctx, ToSession{Session: s}, Event{Name: name, Payload: payload})
}

// ToStage emits to admins plus every historical member of the stage. Some
// notifications (stage removed) must reach offline and former members too.
func (r *Router) ToStage(ctx context.Context, stageID domain.StageID, name EventName, payload any) error {
	return r.Send(ctx, ToStage{StageID: stageID}, Event{Name: name, Payload: payload})
}

// ToStageAdmins emits to the stage's admins only.
func (r *Router) ToStageAdmins(ctx context.Context, stageID domain.StageID, name EventName, payload any) error {
	return r.Send(ctx, ToStageAdmins{StageID: stageID}, Event{Name: name, Payload: payload})
}

// ToJoinedStageMembers emits only to users currently online in the stage.
func (r *Router) ToJoinedStageMembers(ctx context.Context, stageID domain.StageID, name EventName, payload any) error {
	return r.Send(ctx, ToJoinedMembers{StageID: stageID}, Event{Name: name, Payload: payload})
}

// stageAssociates is admins ∪ users of every stage member row, deduplicated.
func (r *Router) stageAssociates(ctx context.Context, stageID domain.StageID) ([]domain.UserID, error) {
	seen := make(map[domain.UserID]struct{})
	var out []domain.UserID

	stage, err := r.store.Stages.Get(ctx, string(stageID))
	switch {
	case err == nil:
		for _, u := range stage.Admins {
			if _, dup := seen[u]; !dup {
				seen[u] = struct{}{}
				out = append(out, u)
			}
		}
	case errors.Is(err, store.ErrNotFound):
		// Nobody to notify is not an error.
	default:
		return nil, fmt.Errorf("resolve stage: %w", err)
	}

	members, err := r.store.StageMembers.Find(ctx, func(m domain.StageMember) bool {
		return m.StageID == stageID
	})
	if err != nil {
		return nil, fmt.Errorf("resolve stage members: %w", err)
	}
	for _, m := range members {
		if _, dup := seen[m.UserID]; !dup {
			seen[m.UserID] = struct{}{}
			out = append(out, m.UserID)
		}
	}
	return out, nil
}

// joinedUsers resolves users whose active stage equals stageID right now.
func (r *Router) joinedUsers(ctx context.Context, stageID domain.StageID) ([]domain.UserID, error) {
	users, err := r.store.Users.Find(ctx, func(u domain.User) bool {
		return u.ActiveStageID != nil && *u.ActiveStageID == stageID
	})
	if err != nil {
		return nil, fmt.Errorf("resolve joined users: %w", err)
	}
	out := make([]domain.UserID, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out, nil
}

func (r *Router) emitToUser(userID domain.UserID, ev Event) {
	for _, s := range r.registry.SessionsFor(userID) {
		r.emit(s, ev)
	}
}

func (r *Router) emit(s Session, ev Event) {
	if err := s.Send(ev); err != nil {
		log.Warn().Str("module", "app.router").Str("sid", string(s.ID())).Str("event", string(ev.Name)).Err(err).Msg("dropped event")
		return
	}
	metrics.EventsEmitted.WithLabelValues(string(ev.Name)).Inc()
}
