package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/store"
)

// DevicePatch is a partial device update.
type DevicePatch struct {
	Name         *string              `json:"name,omitempty"`
	Capabilities *domain.Capabilities `json:"capabilities,omitempty"`
	Server       *string              `json:"server,omitempty"`
}

// RegisterDevice brings a device online for a user. A device with a mac is a
// persistent hardware identity: reconnecting reuses the existing row. A
// device without one is ephemeral and will be deleted on disconnect.
func (e *Engine) RegisterDevice(ctx context.Context, userID domain.UserID, name, mac, server string, caps domain.Capabilities) (*domain.Device, error) {
	if mac != "" {
		existing, err := e.store.Devices.FindOne(ctx, func(d domain.Device) bool {
			return d.UserID == userID && d.Mac == mac
		})
		switch {
		case err == nil:
			updated, err := e.store.Devices.Update(ctx, string(existing.ID), func(d *domain.Device) {
				d.Online = true
				d.Server = server
				if name != "" {
					d.Name = name
				}
			})
			if err != nil {
				return nil, fmt.Errorf("register device: reactivate: %w", err)
			}
			e.notify(ctx, ToUser{UserID: userID}, DeviceChanged, updated)
			return &updated, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("register device: find: %w", err)
		}
	}

	device := domain.NewDevice(userID, name, mac, caps)
	device.Server = server
	if err := e.store.Devices.Create(ctx, *device); err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	e.notify(ctx, ToUser{UserID: userID}, DeviceAdded, *device)
	log.Info().Str("module", "app.devices").Str("device", string(device.ID)).Str("user", string(userID)).Bool("ephemeral", device.Ephemeral()).Msg("device registered")
	return device, nil
}

// UpdateDevice applies an owner-only patch.
func (e *Engine) UpdateDevice(ctx context.Context, requester domain.UserID, id domain.DeviceID, patch DevicePatch) (*domain.Device, error) {
	device, err := e.store.Devices.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update device: load: %w", err)
	}
	if device.UserID != requester {
		return nil, ErrUnauthorized
	}
	updated, err := e.store.Devices.Update(ctx, string(id), func(d *domain.Device) {
		if patch.Name != nil {
			d.Name = *patch.Name
		}
		if patch.Capabilities != nil {
			d.Capabilities = *patch.Capabilities
		}
		if patch.Server != nil {
			d.Server = *patch.Server
		}
	})
	if err != nil {
		return nil, fmt.Errorf("update device: %w", err)
	}
	e.notify(ctx, ToUser{UserID: requester}, DeviceChanged, updated)
	return &updated, nil
}

// DisconnectDevice handles a closed connection: persistent devices go
// offline, ephemeral ones are deleted with their producers.
func (e *Engine) DisconnectDevice(ctx context.Context, id domain.DeviceID) error {
	device, err := e.store.Devices.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("disconnect device: load: %w", err)
	}
	if device.Ephemeral() {
		return e.DeleteDevice(ctx, id)
	}
	updated, err := e.store.Devices.Update(ctx, string(id), func(d *domain.Device) {
		d.Online = false
	})
	if err != nil {
		return fmt.Errorf("disconnect device: %w", err)
	}
	e.notify(ctx, ToUser{UserID: device.UserID}, DeviceChanged, updated)
	return nil
}

// AddProducer publishes a media source from a device. If the owner is
// currently joined, the stage-scoped projection is created and announced to
// the joined members immediately.
func (e *Engine) AddProducer(ctx context.Context, userID domain.UserID, deviceID domain.DeviceID, kind domain.MediaKind, routerID string) (*domain.Producer, error) {
	device, err := e.store.Devices.Get(ctx, string(deviceID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("add producer: load device: %w", err)
	}
	if device.UserID != userID {
		return nil, ErrUnauthorized
	}

	p := domain.NewProducer(kind, deviceID, userID, routerID)
	if err := e.store.Producers.Create(ctx, *p); err != nil {
		return nil, fmt.Errorf("add producer: %w", err)
	}
	e.notify(ctx, ToUser{UserID: userID}, ProducerAdded, *p)

	e.projectProducer(ctx, p)
	return p, nil
}

// projectProducer creates the remote projection for a newly published
// producer when its owner has an active stage member.
func (e *Engine) projectProducer(ctx context.Context, p *domain.Producer) {
	user, err := e.store.Users.Get(ctx, string(p.UserID))
	if err != nil || !user.Joined() {
		return
	}
	member, err := e.store.StageMembers.Get(ctx, string(*user.ActiveStageMemberID))
	if err != nil {
		log.Error().Err(err).Str("module", "app.devices").Str("user", string(p.UserID)).Msg("joined user without stage member")
		return
	}
	remote := domain.NewRemoteProducer(p, &member)
	if err := e.store.RemoteProducers.Create(ctx, *remote); err != nil {
		log.Warn().Err(err).Str("module", "app.devices").Msg("project producer failed")
		return
	}
	e.notify(ctx, ToJoinedMembers{StageID: member.StageID}, RemoteProducerAdded, *remote)
}

// RemoveProducer unpublishes an owned media source.
func (e *Engine) RemoveProducer(ctx context.Context, requester domain.UserID, id domain.ProducerID) error {
	p, err := e.store.Producers.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("remove producer: load: %w", err)
	}
	if p.UserID != requester {
		return ErrUnauthorized
	}
	return e.DeleteProducer(ctx, id)
}

// AddOvTrack publishes a low-latency audio track from a device.
func (e *Engine) AddOvTrack(ctx context.Context, userID domain.UserID, deviceID domain.DeviceID, channel int) (*domain.OvTrack, error) {
	device, err := e.store.Devices.Get(ctx, string(deviceID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("add ov track: load device: %w", err)
	}
	if device.UserID != userID {
		return nil, ErrUnauthorized
	}

	t := domain.NewOvTrack(deviceID, userID, channel)
	if err := e.store.OvTracks.Create(ctx, *t); err != nil {
		return nil, fmt.Errorf("add ov track: %w", err)
	}
	e.notify(ctx, ToUser{UserID: userID}, OvTrackAdded, *t)

	user, err := e.store.Users.Get(ctx, string(userID))
	if err != nil || !user.Joined() {
		return t, nil
	}
	member, err := e.store.StageMembers.Get(ctx, string(*user.ActiveStageMemberID))
	if err != nil {
		log.Error().Err(err).Str("module", "app.devices").Str("user", string(userID)).Msg("joined user without stage member")
		return t, nil
	}
	remote := domain.NewRemoteOvTrack(t, &member)
	if err := e.store.RemoteOvTracks.Create(ctx, *remote); err != nil {
		log.Warn().Err(err).Str("module", "app.devices").Msg("project ov track failed")
		return t, nil
	}
	e.notify(ctx, ToJoinedMembers{StageID: member.StageID}, RemoteOvTrackAdded, *remote)
	return t, nil
}

// RemoveOvTrack unpublishes an owned OV track.
func (e *Engine) RemoveOvTrack(ctx context.Context, requester domain.UserID, id domain.OvTrackID) error {
	t, err := e.store.OvTracks.Get(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("remove ov track: load: %w", err)
	}
	if t.UserID != requester {
		return ErrUnauthorized
	}
	return e.DeleteOvTrack(ctx, id)
}
