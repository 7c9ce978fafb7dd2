package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/store"
)

// Join moves a user into a stage. Validation (stage exists, password, group
// belongs to stage) happens strictly before any write, so a failed join
// leaves the user unjoined with no partial state. The whole transition is
// serialized per user.
func (e *Engine) Join(ctx context.Context, userID domain.UserID, stageID domain.StageID, groupID domain.GroupID, password string) error {
	stage, err := e.store.Stages.Get(ctx, string(stageID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("join: load stage: %w", err)
	}
	if len(stage.PasswordHash) > 0 {
		if bcrypt.CompareHashAndPassword(stage.PasswordHash, []byte(password)) != nil {
			return ErrInvalidPassword
		}
	}
	group, err := e.store.Groups.Get(ctx, string(groupID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("join: load group: %w", err)
	}
	if group.StageID != stageID {
		return ErrNotFound
	}

	unlock := e.lockUser(userID)
	defer unlock()

	user, err := e.store.Users.Get(ctx, string(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("join: load user: %w", err)
	}

	// A stage transition leaves the old stage first, without the stage-left
	// notification: the user is moving, not disconnecting.
	if user.Joined() && *user.ActiveStageID != stageID {
		if err := e.leaveLocked(ctx, &user, true); err != nil {
			return err
		}
	}

	// Upsert-or-reactivate: at most one stage member per (user, stage).
	var member domain.StageMember
	created := false
	existing, err := e.store.StageMembers.FindOne(ctx, func(m domain.StageMember) bool {
		return m.UserID == userID && m.StageID == stageID
	})
	switch {
	case err == nil:
		member, err = e.store.StageMembers.Update(ctx, string(existing.ID), func(m *domain.StageMember) {
			m.Online = true
			m.GroupID = groupID
		})
		if err != nil {
			return fmt.Errorf("join: reactivate member: %w", err)
		}
	case errors.Is(err, store.ErrNotFound):
		created = true
		member = *domain.NewStageMember(stageID, groupID, userID)
		if err := e.store.StageMembers.Create(ctx, member); err != nil {
			return fmt.Errorf("join: create member: %w", err)
		}
	default:
		return fmt.Errorf("join: find member: %w", err)
	}

	if _, err := e.store.Users.Update(ctx, string(userID), func(u *domain.User) {
		sid, mid := stageID, member.ID
		u.ActiveStageID = &sid
		u.ActiveStageMemberID = &mid
	}); err != nil {
		return fmt.Errorf("join: activate user: %w", err)
	}

	// Broadcast against the post-join joined set so the joining user receives
	// their own member event too.
	memberEvent := MemberChanged
	if created {
		memberEvent = MemberAdded
	}
	e.notify(ctx, ToJoinedMembers{StageID: stageID}, memberEvent, member)

	toUser := func(name EventName, payload any) {
		e.notify(ctx, ToUser{UserID: userID}, name, payload)
	}

	// First-time joiners who are not admins have never seen the stage's
	// static structure.
	if created && !stage.IsAdmin(userID) {
		toUser(StageAdded, stage.Sanitized())
		e.sendGroups(ctx, stageID, toUser)
	}

	e.sendStageState(ctx, userID, stageID, member.ID, toUser)
	toUser(StageJoined, StageJoinedPayload{StageID: stageID, GroupID: groupID, StageMemberID: member.ID})

	e.republishProducers(ctx, &member)

	log.Info().Str("module", "app.membership").Str("user", string(userID)).Str("stage", string(stageID)).Bool("created", created).Msg("joined stage")
	return nil
}

// Leave takes the user out of their active stage. Idempotent: an unjoined
// user is a no-op with no notifications.
func (e *Engine) Leave(ctx context.Context, userID domain.UserID, skipLeaveNotification bool) error {
	unlock := e.lockUser(userID)
	defer unlock()

	user, err := e.store.Users.Get(ctx, string(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("leave: load user: %w", err)
	}
	return e.leaveLocked(ctx, &user, skipLeaveNotification)
}

// leaveLocked runs the leave transition. Caller holds the user lock; user is
// updated in place with the persisted result.
func (e *Engine) leaveLocked(ctx context.Context, user *domain.User, skipLeaveNotification bool) error {
	if !user.Joined() {
		return nil
	}

	member, err := e.store.StageMembers.Get(ctx, string(*user.ActiveStageMemberID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// A joined user must always resolve to a stage member.
			log.Error().Str("module", "app.membership").Str("user", string(user.ID)).Str("member", string(*user.ActiveStageMemberID)).Msg("joined user without stage member")
			return ErrInconsistent
		}
		return fmt.Errorf("leave: load member: %w", err)
	}
	stageID := member.StageID

	// Revoke first: the client tears down local state while it can still
	// resolve every reference.
	e.revokeStageView(ctx, user.ID, stageID)

	member, err = e.store.StageMembers.Update(ctx, string(member.ID), func(m *domain.StageMember) {
		m.Online = false
	})
	if err != nil {
		return fmt.Errorf("leave: deactivate member: %w", err)
	}
	e.notify(ctx, ToJoinedMembers{StageID: stageID}, MemberChanged, member)

	updated, err := e.store.Users.Update(ctx, string(user.ID), func(u *domain.User) {
		u.ActiveStageID = nil
		u.ActiveStageMemberID = nil
	})
	if err != nil {
		return fmt.Errorf("leave: deactivate user: %w", err)
	}
	*user = updated

	if !skipLeaveNotification {
		e.notify(ctx, ToUser{UserID: user.ID}, StageLeft, nil)
	}

	e.background(func() {
		e.suspendRemoteMedia(context.WithoutCancel(ctx), member)
	})

	log.Info().Str("module", "app.membership").Str("user", string(user.ID)).Str("stage", string(stageID)).Msg("left stage")
	return nil
}

// LeaveForGood hard-deletes the user's membership in a stage so it no longer
// reappears among their recent stages. The whole operation runs under the
// user lock: a concurrent join must not slip in between tearing the active
// membership down and deleting the row it pointed at.
func (e *Engine) LeaveForGood(ctx context.Context, userID domain.UserID, stageID domain.StageID) error {
	unlock := e.lockUser(userID)
	defer unlock()

	member, err := e.store.StageMembers.FindOne(ctx, func(m domain.StageMember) bool {
		return m.UserID == userID && m.StageID == stageID
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("leave for good: find member: %w", err)
	}

	user, err := e.store.Users.Get(ctx, string(userID))
	if err == nil && user.ActiveStageMemberID != nil && *user.ActiveStageMemberID == member.ID {
		if err := e.leaveLocked(ctx, &user, false); err != nil {
			return err
		}
	}
	// The user is no longer active on this member, so the cascade below will
	// not re-enter the lock.
	return e.DeleteStageMember(ctx, member.ID)
}

// SendInitialSnapshot pushes everything a freshly connected session needs:
// the user's devices, every stage they are associated with plus its groups,
// and, when currently joined, the dynamic stage state.
func (e *Engine) SendInitialSnapshot(ctx context.Context, userID domain.UserID, s Session) error {
	user, err := e.store.Users.Get(ctx, string(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("snapshot: load user: %w", err)
	}

	toSession := func(name EventName, payload any) {
		e.notify(ctx, ToSession{Session: s}, name, payload)
	}

	devices, err := e.store.Devices.Find(ctx, func(d domain.Device) bool { return d.UserID == userID })
	if err != nil {
		return fmt.Errorf("snapshot: load devices: %w", err)
	}
	for _, d := range devices {
		toSession(DeviceAdded, d)
	}

	members, err := e.store.StageMembers.Find(ctx, func(m domain.StageMember) bool { return m.UserID == userID })
	if err != nil {
		return fmt.Errorf("snapshot: load memberships: %w", err)
	}
	memberStages := make(map[domain.StageID]struct{}, len(members))
	for _, m := range members {
		memberStages[m.StageID] = struct{}{}
	}
	stages, err := e.store.Stages.Find(ctx, func(st domain.Stage) bool {
		if st.IsAdmin(userID) {
			return true
		}
		_, ok := memberStages[st.ID]
		return ok
	})
	if err != nil {
		return fmt.Errorf("snapshot: load stages: %w", err)
	}
	for _, st := range stages {
		toSession(StageAdded, st.Sanitized())
		e.sendGroups(ctx, st.ID, toSession)
	}

	if user.Joined() {
		e.sendStageState(ctx, userID, *user.ActiveStageID, *user.ActiveStageMemberID, toSession)
		payload := StageJoinedPayload{
			StageID:       *user.ActiveStageID,
			StageMemberID: *user.ActiveStageMemberID,
		}
		if member, err := e.store.StageMembers.Get(ctx, string(*user.ActiveStageMemberID)); err == nil {
			payload.GroupID = member.GroupID
		}
		toSession(StageJoined, payload)
	}
	return nil
}

// notify is the best-effort fan-out used after validation has passed; store
// failures during resolution are logged, never surfaced to the command.
func (e *Engine) notify(ctx context.Context, target Target, name EventName, payload any) {
	if err := e.router.Send(ctx, target, Event{Name: name, Payload: payload}); err != nil {
		log.Warn().Err(err).Str("module", "app.engine").Str("event", string(name)).Msg("fan-out failed")
	}
}

func (e *Engine) sendGroups(ctx context.Context, stageID domain.StageID, emit func(EventName, any)) {
	groups, err := e.store.Groups.Find(ctx, func(g domain.Group) bool { return g.StageID == stageID })
	if err != nil {
		log.Warn().Err(err).Str("module", "app.membership").Msg("group snapshot failed")
		return
	}
	for _, g := range groups {
		emit(GroupAdded, g)
	}
}

// sendStageState emits the dynamic view of a stage scoped to one viewer:
// the other members, the viewer's private overlays, and the active remote
// media sources.
func (e *Engine) sendStageState(ctx context.Context, userID domain.UserID, stageID domain.StageID, selfID domain.StageMemberID, emit func(EventName, any)) {
	warn := func(err error, what string) {
		log.Warn().Err(err).Str("module", "app.membership").Str("stage", string(stageID)).Msg(what + " snapshot failed")
	}

	members, err := e.store.StageMembers.Find(ctx, func(m domain.StageMember) bool { return m.StageID == stageID })
	if err != nil {
		warn(err, "member")
	}
	for _, m := range members {
		if m.ID == selfID {
			continue
		}
		emit(MemberAdded, m)
	}

	customGroups, err := e.store.CustomGroups.Find(ctx, func(c domain.CustomGroup) bool {
		return c.UserID == userID && c.StageID == stageID
	})
	if err != nil {
		warn(err, "custom group")
	}
	for _, c := range customGroups {
		emit(CustomGroupAdded, c)
	}

	customMembers, err := e.store.CustomStageMembers.Find(ctx, func(c domain.CustomStageMember) bool {
		return c.UserID == userID && c.StageID == stageID
	})
	if err != nil {
		warn(err, "custom member")
	}
	for _, c := range customMembers {
		emit(CustomMemberAdded, c)
	}

	remotes, err := e.store.RemoteProducers.Find(ctx, func(r domain.RemoteProducer) bool {
		return r.StageID == stageID && r.Online
	})
	if err != nil {
		warn(err, "remote producer")
	}
	for _, r := range remotes {
		emit(RemoteProducerAdded, r)
	}

	remoteTracks, err := e.store.RemoteOvTracks.Find(ctx, func(r domain.RemoteOvTrack) bool {
		return r.StageID == stageID && r.Online
	})
	if err != nil {
		warn(err, "remote ov track")
	}
	for _, r := range remoteTracks {
		emit(RemoteOvTrackAdded, r)
	}

	customRemotes, err := e.store.CustomRemoteProducers.Find(ctx, func(c domain.CustomRemoteProducer) bool {
		return c.UserID == userID && c.StageID == stageID
	})
	if err != nil {
		warn(err, "custom remote producer")
	}
	for _, c := range customRemotes {
		emit(CustomRemoteProducerAdded, c)
	}

	customRemoteTracks, err := e.store.CustomRemoteOvTracks.Find(ctx, func(c domain.CustomRemoteOvTrack) bool {
		return c.UserID == userID && c.StageID == stageID
	})
	if err != nil {
		warn(err, "custom remote ov track")
	}
	for _, c := range customRemoteTracks {
		emit(CustomRemoteOvTrackAdded, c)
	}
}

// revokeStageView sends the leaving user removal events for everything they
// currently see in the stage, before the membership itself goes offline.
func (e *Engine) revokeStageView(ctx context.Context, userID domain.UserID, stageID domain.StageID) {
	toUser := func(name EventName, payload any) {
		e.notify(ctx, ToUser{UserID: userID}, name, payload)
	}
	warn := func(err error, what string) {
		log.Warn().Err(err).Str("module", "app.membership").Str("stage", string(stageID)).Msg(what + " revoke failed")
	}

	remotes, err := e.store.RemoteProducers.Find(ctx, func(r domain.RemoteProducer) bool { return r.StageID == stageID })
	if err != nil {
		warn(err, "remote producer")
	}
	for _, r := range remotes {
		toUser(RemoteProducerRemoved, r.ID)
	}
	remoteTracks, err := e.store.RemoteOvTracks.Find(ctx, func(r domain.RemoteOvTrack) bool { return r.StageID == stageID })
	if err != nil {
		warn(err, "remote ov track")
	}
	for _, r := range remoteTracks {
		toUser(RemoteOvTrackRemoved, r.ID)
	}

	customGroups, err := e.store.CustomGroups.Find(ctx, func(c domain.CustomGroup) bool {
		return c.UserID == userID && c.StageID == stageID
	})
	if err != nil {
		warn(err, "custom group")
	}
	for _, c := range customGroups {
		toUser(CustomGroupRemoved, c.ID)
	}
	customMembers, err := e.store.CustomStageMembers.Find(ctx, func(c domain.CustomStageMember) bool {
		return c.UserID == userID && c.StageID == stageID
	})
	if err != nil {
		warn(err, "custom member")
	}
	for _, c := range customMembers {
		toUser(CustomMemberRemoved, c.ID)
	}

	members, err := e.store.StageMembers.Find(ctx, func(m domain.StageMember) bool { return m.StageID == stageID })
	if err != nil {
		warn(err, "member")
	}
	for _, m := range members {
		toUser(MemberRemoved, m.ID)
	}
}

// republishProducers retargets the joining user's existing media sources to
// their (possibly new) stage member and announces them to the joined set.
func (e *Engine) republishProducers(ctx context.Context, member *domain.StageMember) {
	producers, err := e.store.Producers.Find(ctx, func(p domain.Producer) bool {
		return p.UserID == member.UserID && p.Online
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "app.membership").Msg("republish: load producers failed")
		return
	}
	for _, p := range producers {
		remote, err := e.store.RemoteProducers.FindOne(ctx, func(r domain.RemoteProducer) bool {
			return r.ProducerID == p.ID
		})
		switch {
		case err == nil:
			remote, err = e.store.RemoteProducers.Update(ctx, string(remote.ID), func(r *domain.RemoteProducer) {
				r.StageMemberID = member.ID
				r.StageID = member.StageID
				r.Online = true
			})
			if err != nil {
				log.Warn().Err(err).Str("module", "app.membership").Msg("republish: retarget failed")
				continue
			}
			e.notify(ctx, ToJoinedMembers{StageID: member.StageID}, RemoteProducerChanged, remote)
		case errors.Is(err, store.ErrNotFound):
			fresh := domain.NewRemoteProducer(&p, member)
			if err := e.store.RemoteProducers.Create(ctx, *fresh); err != nil {
				log.Warn().Err(err).Str("module", "app.membership").Msg("republish: create failed")
				continue
			}
			e.notify(ctx, ToJoinedMembers{StageID: member.StageID}, RemoteProducerAdded, *fresh)
		default:
			log.Warn().Err(err).Str("module", "app.membership").Msg("republish: find remote failed")
		}
	}

	tracks, err := e.store.OvTracks.Find(ctx, func(t domain.OvTrack) bool { return t.UserID == member.UserID })
	if err != nil {
		log.Warn().Err(err).Str("module", "app.membership").Msg("republish: load ov tracks failed")
		return
	}
	for _, t := range tracks {
		remote, err := e.store.RemoteOvTracks.FindOne(ctx, func(r domain.RemoteOvTrack) bool {
			return r.OvTrackID == t.ID
		})
		switch {
		case err == nil:
			remote, err = e.store.RemoteOvTracks.Update(ctx, string(remote.ID), func(r *domain.RemoteOvTrack) {
				r.StageMemberID = member.ID
				r.StageID = member.StageID
				r.Online = true
			})
			if err != nil {
				log.Warn().Err(err).Str("module", "app.membership").Msg("republish: retarget ov failed")
				continue
			}
			e.notify(ctx, ToJoinedMembers{StageID: member.StageID}, RemoteOvTrackChanged, remote)
		case errors.Is(err, store.ErrNotFound):
			fresh := domain.NewRemoteOvTrack(&t, member)
			if err := e.store.RemoteOvTracks.Create(ctx, *fresh); err != nil {
				log.Warn().Err(err).Str("module", "app.membership").Msg("republish: create ov failed")
				continue
			}
			e.notify(ctx, ToJoinedMembers{StageID: member.StageID}, RemoteOvTrackAdded, *fresh)
		default:
			log.Warn().Err(err).Str("module", "app.membership").Msg("republish: find remote ov failed")
		}
	}
}

// suspendRemoteMedia marks the member's remote media sources offline after a
// leave. Best-effort background work: failures are logged only.
func (e *Engine) suspendRemoteMedia(ctx context.Context, member domain.StageMember) {
	remotes, err := e.store.RemoteProducers.Find(ctx, func(r domain.RemoteProducer) bool {
		return r.StageMemberID == member.ID && r.Online
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "app.membership").Msg("suspend: load remotes failed")
		return
	}
	for _, r := range remotes {
		updated, err := e.store.RemoteProducers.Update(ctx, string(r.ID), func(r *domain.RemoteProducer) {
			r.Online = false
		})
		if err != nil {
			log.Warn().Err(err).Str("module", "app.membership").Msg("suspend: remote producer failed")
			continue
		}
		e.notify(ctx, ToJoinedMembers{StageID: member.StageID}, RemoteProducerChanged, updated)
	}

	tracks, err := e.store.RemoteOvTracks.Find(ctx, func(r domain.RemoteOvTrack) bool {
		return r.StageMemberID == member.ID && r.Online
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "app.membership").Msg("suspend: load remote ov failed")
		return
	}
	for _, r := range tracks {
		updated, err := e.store.RemoteOvTracks.Update(ctx, string(r.ID), func(r *domain.RemoteOvTrack) {
			r.Online = false
		})
		if err != nil {
			log.Warn().Err(err).Str("module", "app.membership").Msg("suspend: remote ov failed")
			continue
		}
		e.notify(ctx, ToJoinedMembers{StageID: member.StageID}, RemoteOvTrackChanged, updated)
	}
}
