package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/store"
)

// Cascade deletes, expressed as explicit ordered cleanup sequences instead of
// storage-layer hooks. Invariant throughout: notifications for a dependent
// row are emitted before its parent disappears, so a client never receives a
// reference the server can no longer resolve. Cascades are best-effort: a
// failed child step is logged and the cascade continues.

// DeleteStage removes a stage with all of its groups, members and overlays.
// Every user ever associated with the stage (admins plus historical members)
// is told before the document goes away.
func (e *Engine) DeleteStage(ctx context.Context, stageID domain.StageID) error {
	stage, err := e.store.Stages.Get(ctx, string(stageID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete stage: load: %w", err)
	}

	// Collect the audience before the cascade tears the member rows down.
	associates := make(map[domain.UserID]struct{})
	var audience []domain.UserID
	for _, u := range stage.Admins {
		if _, dup := associates[u]; !dup {
			associates[u] = struct{}{}
			audience = append(audience, u)
		}
	}
	members, err := e.store.StageMembers.Find(ctx, func(m domain.StageMember) bool { return m.StageID == stageID })
	if err != nil {
		return fmt.Errorf("delete stage: load members: %w", err)
	}
	for _, m := range members {
		if _, dup := associates[m.UserID]; !dup {
			associates[m.UserID] = struct{}{}
			audience = append(audience, m.UserID)
		}
	}

	groups, err := e.store.Groups.Find(ctx, func(g domain.Group) bool { return g.StageID == stageID })
	if err != nil {
		return fmt.Errorf("delete stage: load groups: %w", err)
	}
	for _, g := range groups {
		if err := e.DeleteGroup(ctx, g.ID); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("group", string(g.ID)).Msg("stage cascade: group delete failed")
		}
	}

	// Groups cascade their members; anything left is an orphan.
	leftovers, err := e.store.StageMembers.Find(ctx, func(m domain.StageMember) bool { return m.StageID == stageID })
	if err != nil {
		return fmt.Errorf("delete stage: load leftover members: %w", err)
	}
	for _, m := range leftovers {
		if err := e.DeleteStageMember(ctx, m.ID); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("member", string(m.ID)).Msg("stage cascade: member delete failed")
		}
	}

	for _, u := range audience {
		e.notify(ctx, ToUser{UserID: u}, StageRemoved, stage.ID)
	}

	if _, err := e.store.Stages.Delete(ctx, string(stageID)); err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}
	log.Info().Str("module", "app.lifecycle").Str("stage", string(stageID)).Msg("stage deleted")
	return nil
}

// DeleteGroup removes a group, its member rows and every CustomGroup overlay
// referencing it.
func (e *Engine) DeleteGroup(ctx context.Context, groupID domain.GroupID) error {
	group, err := e.store.Groups.Get(ctx, string(groupID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete group: load: %w", err)
	}

	// Capture the audience before the member cascade shrinks it; a user whose
	// membership goes with the group still hears the group went away.
	audience, err := e.router.stageAssociates(ctx, group.StageID)
	if err != nil {
		return fmt.Errorf("delete group: resolve audience: %w", err)
	}

	customs, err := e.store.CustomGroups.Find(ctx, func(c domain.CustomGroup) bool { return c.GroupID == groupID })
	if err != nil {
		return fmt.Errorf("delete group: load overlays: %w", err)
	}
	for _, c := range customs {
		e.notify(ctx, ToUser{UserID: c.UserID}, CustomGroupRemoved, c.ID)
		if _, err := e.store.CustomGroups.Delete(ctx, string(c.ID)); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("overlay", string(c.ID)).Msg("group cascade: overlay delete failed")
		}
	}

	members, err := e.store.StageMembers.Find(ctx, func(m domain.StageMember) bool { return m.GroupID == groupID })
	if err != nil {
		return fmt.Errorf("delete group: load members: %w", err)
	}
	for _, m := range members {
		if err := e.DeleteStageMember(ctx, m.ID); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("member", string(m.ID)).Msg("group cascade: member delete failed")
		}
	}

	for _, u := range audience {
		e.notify(ctx, ToUser{UserID: u}, GroupRemoved, group.ID)
	}
	if _, err := e.store.Groups.Delete(ctx, string(groupID)); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// DeleteStageMember hard-deletes a membership row. When the owning user is
// live on exactly this member, a clean leave runs first so their session is
// torn down before the row disappears.
func (e *Engine) DeleteStageMember(ctx context.Context, id domain.StageMemberID) error {
	member, err := e.store.StageMembers.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete member: load: %w", err)
	}

	user, err := e.store.Users.Get(ctx, string(member.UserID))
	if err == nil && user.ActiveStageMemberID != nil && *user.ActiveStageMemberID == member.ID {
		if err := e.Leave(ctx, member.UserID, false); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("user", string(member.UserID)).Msg("member cascade: forced leave failed")
		}
	}

	customs, err := e.store.CustomStageMembers.Find(ctx, func(c domain.CustomStageMember) bool {
		return c.StageMemberID == member.ID
	})
	if err != nil {
		return fmt.Errorf("delete member: load overlays: %w", err)
	}
	for _, c := range customs {
		e.notify(ctx, ToUser{UserID: c.UserID}, CustomMemberRemoved, c.ID)
		if _, err := e.store.CustomStageMembers.Delete(ctx, string(c.ID)); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("overlay", string(c.ID)).Msg("member cascade: overlay delete failed")
		}
	}

	remotes, err := e.store.RemoteProducers.Find(ctx, func(r domain.RemoteProducer) bool {
		return r.StageMemberID == member.ID
	})
	if err != nil {
		return fmt.Errorf("delete member: load remotes: %w", err)
	}
	for _, r := range remotes {
		e.deleteRemoteProducer(ctx, r)
	}
	remoteTracks, err := e.store.RemoteOvTracks.Find(ctx, func(r domain.RemoteOvTrack) bool {
		return r.StageMemberID == member.ID
	})
	if err != nil {
		return fmt.Errorf("delete member: load remote ov: %w", err)
	}
	for _, r := range remoteTracks {
		e.deleteRemoteOvTrack(ctx, r)
	}

	e.notify(ctx, ToJoinedMembers{StageID: member.StageID}, MemberRemoved, member.ID)
	if _, err := e.store.StageMembers.Delete(ctx, string(id)); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// DeleteDevice removes a device and everything it published.
func (e *Engine) DeleteDevice(ctx context.Context, id domain.DeviceID) error {
	device, err := e.store.Devices.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete device: load: %w", err)
	}

	producers, err := e.store.Producers.Find(ctx, func(p domain.Producer) bool { return p.DeviceID == device.ID })
	if err != nil {
		return fmt.Errorf("delete device: load producers: %w", err)
	}
	for _, p := range producers {
		if err := e.DeleteProducer(ctx, p.ID); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("producer", string(p.ID)).Msg("device cascade: producer delete failed")
		}
	}
	tracks, err := e.store.OvTracks.Find(ctx, func(t domain.OvTrack) bool { return t.DeviceID == device.ID })
	if err != nil {
		return fmt.Errorf("delete device: load ov tracks: %w", err)
	}
	for _, t := range tracks {
		if err := e.DeleteOvTrack(ctx, t.ID); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("track", string(t.ID)).Msg("device cascade: ov track delete failed")
		}
	}

	e.notify(ctx, ToUser{UserID: device.UserID}, DeviceRemoved, device.ID)
	if _, err := e.store.Devices.Delete(ctx, string(id)); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

// DeleteProducer removes a published media source and its stage projections.
func (e *Engine) DeleteProducer(ctx context.Context, id domain.ProducerID) error {
	p, err := e.store.Producers.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete producer: load: %w", err)
	}

	remotes, err := e.store.RemoteProducers.Find(ctx, func(r domain.RemoteProducer) bool { return r.ProducerID == p.ID })
	if err != nil {
		return fmt.Errorf("delete producer: load remotes: %w", err)
	}
	for _, r := range remotes {
		e.deleteRemoteProducer(ctx, r)
	}

	e.notify(ctx, ToUser{UserID: p.UserID}, ProducerRemoved, p.ID)
	if _, err := e.store.Producers.Delete(ctx, string(id)); err != nil {
		return fmt.Errorf("delete producer: %w", err)
	}
	return nil
}

// DeleteOvTrack removes an OV track and its stage projections.
func (e *Engine) DeleteOvTrack(ctx context.Context, id domain.OvTrackID) error {
	t, err := e.store.OvTracks.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete ov track: load: %w", err)
	}

	remotes, err := e.store.RemoteOvTracks.Find(ctx, func(r domain.RemoteOvTrack) bool { return r.OvTrackID == t.ID })
	if err != nil {
		return fmt.Errorf("delete ov track: load remotes: %w", err)
	}
	for _, r := range remotes {
		e.deleteRemoteOvTrack(ctx, r)
	}

	e.notify(ctx, ToUser{UserID: t.UserID}, OvTrackRemoved, t.ID)
	if _, err := e.store.OvTracks.Delete(ctx, string(id)); err != nil {
		return fmt.Errorf("delete ov track: %w", err)
	}
	return nil
}

func (e *Engine) deleteRemoteProducer(ctx context.Context, r domain.RemoteProducer) {
	customs, err := e.store.CustomRemoteProducers.Find(ctx, func(c domain.CustomRemoteProducer) bool {
		return c.RemoteProducerID == r.ID
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.lifecycle").Str("remote", string(r.ID)).Msg("remote cascade: load overlays failed")
	}
	for _, c := range customs {
		e.notify(ctx, ToUser{UserID: c.UserID}, CustomRemoteProducerRemoved, c.ID)
		if _, err := e.store.CustomRemoteProducers.Delete(ctx, string(c.ID)); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("overlay", string(c.ID)).Msg("remote cascade: overlay delete failed")
		}
	}
	e.notify(ctx, ToJoinedMembers{StageID: r.StageID}, RemoteProducerRemoved, r.ID)
	if _, err := e.store.RemoteProducers.Delete(ctx, string(r.ID)); err != nil {
		log.Error().Err(err).Str("module", "app.lifecycle").Str("remote", string(r.ID)).Msg("remote cascade: delete failed")
	}
}

func (e *Engine) deleteRemoteOvTrack(ctx context.Context, r domain.RemoteOvTrack) {
	customs, err := e.store.CustomRemoteOvTracks.Find(ctx, func(c domain.CustomRemoteOvTrack) bool {
		return c.RemoteOvTrackID == r.ID
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.lifecycle").Str("remote", string(r.ID)).Msg("remote ov cascade: load overlays failed")
	}
	for _, c := range customs {
		e.notify(ctx, ToUser{UserID: c.UserID}, CustomRemoteOvTrackRemoved, c.ID)
		if _, err := e.store.CustomRemoteOvTracks.Delete(ctx, string(c.ID)); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("overlay", string(c.ID)).Msg("remote ov cascade: overlay delete failed")
		}
	}
	e.notify(ctx, ToJoinedMembers{StageID: r.StageID}, RemoteOvTrackRemoved, r.ID)
	if _, err := e.store.RemoteOvTracks.Delete(ctx, string(r.ID)); err != nil {
		log.Error().Err(err).Str("module", "app.lifecycle").Str("remote", string(r.ID)).Msg("remote ov cascade: delete failed")
	}
}
