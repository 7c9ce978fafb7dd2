package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/store"
)

// CustomPatch is a partial per-viewer override. Nil fields keep the current
// (or inherited) value.
type CustomPatch struct {
	Volume   *float64         `json:"volume,omitempty"`
	Muted    *bool            `json:"muted,omitempty"`
	Position *domain.Position `json:"position,omitempty"`
}

// Empty reports whether the patch changes nothing; setters treat an empty
// patch as a no-op and skip the write.
func (p CustomPatch) Empty() bool {
	return p.Volume == nil && p.Muted == nil && p.Position == nil
}

func (p CustomPatch) apply(volume *float64, muted *bool, pos *domain.Position) {
	if p.Volume != nil {
		*volume = *p.Volume
	}
	if p.Muted != nil {
		*muted = *p.Muted
	}
	if p.Position != nil {
		*pos = *p.Position
	}
}

// ownerOnly is the ownership check shared by every overlay delete: overlays
// are private, only their viewer may touch them.
func ownerOnly(owner, requester domain.UserID) error {
	if owner != requester {
		return ErrUnauthorized
	}
	return nil
}

// SetCustomGroup upserts the viewer's overlay for a group. Overlays notify
// only their owner, never other viewers.
func (e *Engine) SetCustomGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID, patch CustomPatch) (*domain.CustomGroup, error) {
	if patch.Empty() {
		return nil, nil
	}
	group, err := e.store.Groups.Get(ctx, string(groupID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("custom group: load target: %w", err)
	}

	existing, err := e.store.CustomGroups.FindOne(ctx, func(c domain.CustomGroup) bool {
		return c.UserID == userID && c.GroupID == groupID
	})
	switch {
	case err == nil:
		updated, err := e.store.CustomGroups.Update(ctx, string(existing.ID), func(c *domain.CustomGroup) {
			patch.apply(&c.Volume, &c.Muted, &c.Position)
			c.StageID = group.StageID
		})
		if err != nil {
			return nil, fmt.Errorf("custom group: update: %w", err)
		}
		e.notify(ctx, ToUser{UserID: userID}, CustomGroupChanged, updated)
		return &updated, nil
	case errors.Is(err, store.ErrNotFound):
		c := domain.NewCustomGroup(userID, &group)
		patch.apply(&c.Volume, &c.Muted, &c.Position)
		if err := e.store.CustomGroups.Create(ctx, *c); err != nil {
			return nil, fmt.Errorf("custom group: create: %w", err)
		}
		e.notify(ctx, ToUser{UserID: userID}, CustomGroupAdded, *c)
		return c, nil
	default:
		return nil, fmt.Errorf("custom group: find: %w", err)
	}
}

// DeleteCustomGroup removes the viewer's overlay. Removal events go out
// while the row still exists, same order as the cascades.
func (e *Engine) DeleteCustomGroup(ctx context.Context, requester domain.UserID, id domain.CustomID) error {
	c, err := e.store.CustomGroups.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("custom group: load: %w", err)
	}
	if err := ownerOnly(c.UserID, requester); err != nil {
		return err
	}
	e.notify(ctx, ToUser{UserID: c.UserID}, CustomGroupRemoved, c.ID)
	if _, err := e.store.CustomGroups.Delete(ctx, string(id)); err != nil {
		return fmt.Errorf("custom group: delete: %w", err)
	}
	return nil
}

// GetCustomGroup reads a single overlay by id. Overlays are private, so the
// requester must own it.
func (e *Engine) GetCustomGroup(ctx context.Context, requester domain.UserID, id domain.CustomID) (*domain.CustomGroup, error) {
	c, err := e.store.CustomGroups.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("custom group: load: %w", err)
	}
	if err := ownerOnly(c.UserID, requester); err != nil {
		return nil, err
	}
	return &c, nil
}

func (e *Engine) GetCustomGroupByUserAndTarget(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (*domain.CustomGroup, error) {
	c, err := e.store.CustomGroups.FindOne(ctx, func(c domain.CustomGroup) bool {
		return c.UserID == userID && c.GroupID == groupID
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// SetCustomStageMember upserts the viewer's overlay for another member.
func (e *Engine) SetCustomStageMember(ctx context.Context, userID domain.UserID, memberID domain.StageMemberID, patch CustomPatch) (*domain.CustomStageMember, error) {
	if patch.Empty() {
		return nil, nil
	}
	member, err := e.store.StageMembers.Get(ctx, string(memberID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("custom member: load target: %w", err)
	}

	existing, err := e.store.CustomStageMembers.FindOne(ctx, func(c domain.CustomStageMember) bool {
		return c.UserID == userID && c.StageMemberID == memberID
	})
	switch {
	case err == nil:
		updated, err := e.store.CustomStageMembers.Update(ctx, string(existing.ID), func(c *domain.CustomStageMember) {
			patch.apply(&c.Volume, &c.Muted, &c.Position)
			c.StageID = member.StageID
		})
		if err != nil {
			return nil, fmt.Errorf("custom member: update: %w", err)
		}
		e.notify(ctx, ToUser{UserID: userID}, CustomMemberChanged, updated)
		return &updated, nil
	case errors.Is(err, store.ErrNotFound):
		c := domain.NewCustomStageMember(userID, &member)
		patch.apply(&c.Volume, &c.Muted, &c.Position)
		if err := e.store.CustomStageMembers.Create(ctx, *c); err != nil {
			return nil, fmt.Errorf("custom member: create: %w", err)
		}
		e.notify(ctx, ToUser{UserID: userID}, CustomMemberAdded, *c)
		return c, nil
	default:
		return nil, fmt.Errorf("custom member: find: %w", err)
	}
}

func (e *Engine) DeleteCustomStageMember(ctx context.Context, requester domain.UserID, id domain.CustomID) error {
	c, err := e.store.CustomStageMembers.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("custom member: load: %w", err)
	}
	if err := ownerOnly(c.UserID, requester); err != nil {
		return err
	}
	e.notify(ctx, ToUser{UserID: c.UserID}, CustomMemberRemoved, c.ID)
	if _, err := e.store.CustomStageMembers.Delete(ctx, string(id)); err != nil {
		return fmt.Errorf("custom member: delete: %w", err)
	}
	return nil
}

func (e *Engine) GetCustomStageMember(ctx context.Context, requester domain.UserID, id domain.CustomID) (*domain.CustomStageMember, error) {
	c, err := e.store.CustomStageMembers.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("custom member: load: %w", err)
	}
	if err := ownerOnly(c.UserID, requester); err != nil {
		return nil, err
	}
	return &c, nil
}

func (e *Engine) GetCustomStageMemberByUserAndTarget(ctx context.Context, userID domain.UserID, memberID domain.StageMemberID) (*domain.CustomStageMember, error) {
	c, err := e.store.CustomStageMembers.FindOne(ctx, func(c domain.CustomStageMember) bool {
		return c.UserID == userID && c.StageMemberID == memberID
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// SetCustomRemoteProducer upserts the viewer's overlay for a remote audio
// producer.
func (e *Engine) SetCustomRemoteProducer(ctx context.Context, userID domain.UserID, remoteID domain.RemoteProducerID, patch CustomPatch) (*domain.CustomRemoteProducer, error) {
	if patch.Empty() {
		return nil, nil
	}
	remote, err := e.store.RemoteProducers.Get(ctx, string(remoteID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("custom remote producer: load target: %w", err)
	}

	existing, err := e.store.CustomRemoteProducers.FindOne(ctx, func(c domain.CustomRemoteProducer) bool {
		return c.UserID == userID && c.RemoteProducerID == remoteID
	})
	switch {
	case err == nil:
		updated, err := e.store.CustomRemoteProducers.Update(ctx, string(existing.ID), func(c *domain.CustomRemoteProducer) {
			patch.apply(&c.Volume, &c.Muted, &c.Position)
			c.StageID = remote.StageID
		})
		if err != nil {
			return nil, fmt.Errorf("custom remote producer: update: %w", err)
		}
		e.notify(ctx, ToUser{UserID: userID}, CustomRemoteProducerChanged, updated)
		return &updated, nil
	case errors.Is(err, store.ErrNotFound):
		c := domain.NewCustomRemoteProducer(userID, &remote)
		patch.apply(&c.Volume, &c.Muted, &c.Position)
		if err := e.store.CustomRemoteProducers.Create(ctx, *c); err != nil {
			return nil, fmt.Errorf("custom remote producer: create: %w", err)
		}
		e.notify(ctx, ToUser{UserID: userID}, CustomRemoteProducerAdded, *c)
		return c, nil
	default:
		return nil, fmt.Errorf("custom remote producer: find: %w", err)
	}
}

func (e *Engine) DeleteCustomRemoteProducer(ctx context.Context, requester domain.UserID, id domain.CustomID) error {
	c, err := e.store.CustomRemoteProducers.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("custom remote producer: load: %w", err)
	}
	if err := ownerOnly(c.UserID, requester); err != nil {
		return err
	}
	e.notify(ctx, ToUser{UserID: c.UserID}, CustomRemoteProducerRemoved, c.ID)
	if _, err := e.store.CustomRemoteProducers.Delete(ctx, string(id)); err != nil {
		return fmt.Errorf("custom remote producer: delete: %w", err)
	}
	return nil
}

func (e *Engine) GetCustomRemoteProducer(ctx context.Context, requester domain.UserID, id domain.CustomID) (*domain.CustomRemoteProducer, error) {
	c, err := e.store.CustomRemoteProducers.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("custom remote producer: load: %w", err)
	}
	if err := ownerOnly(c.UserID, requester); err != nil {
		return nil, err
	}
	return &c, nil
}

func (e *Engine) GetCustomRemoteProducerByUserAndTarget(ctx context.Context, userID domain.UserID, remoteID domain.RemoteProducerID) (*domain.CustomRemoteProducer, error) {
	c, err := e.store.CustomRemoteProducers.FindOne(ctx, func(c domain.CustomRemoteProducer) bool {
		return c.UserID == userID && c.RemoteProducerID == remoteID
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// SetCustomRemoteOvTrack upserts the viewer's overlay for a remote OV track.
func (e *Engine) SetCustomRemoteOvTrack(ctx context.Context, userID domain.UserID, remoteID domain.RemoteOvTrackID, patch CustomPatch) (*domain.CustomRemoteOvTrack, error) {
	if patch.Empty() {
		return nil, nil
	}
	remote, err := e.store.RemoteOvTracks.Get(ctx, string(remoteID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("custom remote ov track: load target: %w", err)
	}

	existing, err := e.store.CustomRemoteOvTracks.FindOne(ctx, func(c domain.CustomRemoteOvTrack) bool {
		return c.UserID == userID && c.RemoteOvTrackID == remoteID
	})
	switch {
	case err == nil:
		updated, err := e.store.CustomRemoteOvTracks.Update(ctx, string(existing.ID), func(c *domain.CustomRemoteOvTrack) {
			patch.apply(&c.Volume, &c.Muted, &c.Position)
			c.StageID = remote.StageID
		})
		if err != nil {
			return nil, fmt.Errorf("custom remote ov track: update: %w", err)
		}
		e.notify(ctx, ToUser{UserID: userID}, CustomRemoteOvTrackChanged, updated)
		return &updated, nil
	case errors.Is(err, store.ErrNotFound):
		c := domain.NewCustomRemoteOvTrack(userID, &remote)
		patch.apply(&c.Volume, &c.Muted, &c.Position)
		if err := e.store.CustomRemoteOvTracks.Create(ctx, *c); err != nil {
			return nil, fmt.Errorf("custom remote ov track: create: %w", err)
		}
		e.notify(ctx, ToUser{UserID: userID}, CustomRemoteOvTrackAdded, *c)
		return c, nil
	default:
		return nil, fmt.Errorf("custom remote ov track: find: %w", err)
	}
}

func (e *Engine) DeleteCustomRemoteOvTrack(ctx context.Context, requester domain.UserID, id domain.CustomID) error {
	c, err := e.store.CustomRemoteOvTracks.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("custom remote ov track: load: %w", err)
	}
	if err := ownerOnly(c.UserID, requester); err != nil {
		return err
	}
	e.notify(ctx, ToUser{UserID: c.UserID}, CustomRemoteOvTrackRemoved, c.ID)
	if _, err := e.store.CustomRemoteOvTracks.Delete(ctx, string(id)); err != nil {
		return fmt.Errorf("custom remote ov track: delete: %w", err)
	}
	return nil
}

func (e *Engine) GetCustomRemoteOvTrack(ctx context.Context, requester domain.UserID, id domain.CustomID) (*domain.CustomRemoteOvTrack, error) {
	c, err := e.store.CustomRemoteOvTracks.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("custom remote ov track: load: %w", err)
	}
	if err := ownerOnly(c.UserID, requester); err != nil {
		return nil, err
	}
	return &c, nil
}

func (e *Engine) GetCustomRemoteOvTrackByUserAndTarget(ctx context.Context, userID domain.UserID, remoteID domain.RemoteOvTrackID) (*domain.CustomRemoteOvTrack, error) {
	c, err := e.store.CustomRemoteOvTracks.FindOne(ctx, func(c domain.CustomRemoteOvTrack) bool {
		return c.UserID == userID && c.RemoteOvTrackID == remoteID
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
