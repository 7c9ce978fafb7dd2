package signal

import (
	"context"
	"encoding/json"

	"github.com/ovstage/stagehub/internal/app"
	"github.com/ovstage/stagehub/internal/domain"
)

func (ctl *Controller) handleRegisterDevice(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		Name         string              `json:"name"`
		Mac          string              `json:"mac,omitempty"`
		Capabilities domain.Capabilities `json:"capabilities"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	device, err := ctl.Engine.RegisterDevice(ctx, s.userID, p.Name, p.Mac, ctl.Cfg.Server, p.Capabilities)
	if err != nil {
		return err
	}
	s.setDevice(device.ID)
	return nil
}

func (ctl *Controller) handleUpdateDevice(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID     string          `json:"id" validate:"required"`
		Update app.DevicePatch `json:"update"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.UpdateDevice(ctx, s.userID, domain.DeviceID(p.ID), p.Update)
	return err
}

func (ctl *Controller) handleAddProducer(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		DeviceID string `json:"deviceId" validate:"required"`
		Kind     string `json:"kind" validate:"required,oneof=audio video"`
		RouterID string `json:"routerId,omitempty"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.AddProducer(ctx, s.userID, domain.DeviceID(p.DeviceID), domain.MediaKind(p.Kind), p.RouterID)
	return err
}

func (ctl *Controller) handleRemoveProducer(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID string `json:"id" validate:"required"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	return ctl.Engine.RemoveProducer(ctx, s.userID, domain.ProducerID(p.ID))
}

func (ctl *Controller) handleAddOvTrack(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		DeviceID string `json:"deviceId" validate:"required"`
		Channel  int    `json:"channel"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.AddOvTrack(ctx, s.userID, domain.DeviceID(p.DeviceID), p.Channel)
	return err
}

func (ctl *Controller) handleRemoveOvTrack(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID string `json:"id" validate:"required"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	return ctl.Engine.RemoveOvTrack(ctx, s.userID, domain.OvTrackID(p.ID))
}
