package signal

import (
	"context"
	"encoding/json"

	"github.com/ovstage/stagehub/internal/app"
	"github.com/ovstage/stagehub/internal/domain"
)

func (ctl *Controller) handleSetCustomGroup(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		GroupID string          `json:"groupId" validate:"required"`
		Update  app.CustomPatch `json:"update"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.SetCustomGroup(ctx, s.userID, domain.GroupID(p.GroupID), p.Update)
	return err
}

func (ctl *Controller) handleRemoveCustomGroup(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID string `json:"id" validate:"required"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	return ctl.Engine.DeleteCustomGroup(ctx, s.userID, domain.CustomID(p.ID))
}

func (ctl *Controller) handleSetCustomStageMember(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		StageMemberID string          `json:"stageMemberId" validate:"required"`
		Update        app.CustomPatch `json:"update"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.SetCustomStageMember(ctx, s.userID, domain.StageMemberID(p.StageMemberID), p.Update)
	return err
}

func (ctl *Controller) handleRemoveCustomStageMember(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID string `json:"id" validate:"required"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	return ctl.Engine.DeleteCustomStageMember(ctx, s.userID, domain.CustomID(p.ID))
}

func (ctl *Controller) handleSetCustomRemoteProducer(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		RemoteProducerID string          `json:"remoteProducerId" validate:"required"`
		Update           app.CustomPatch `json:"update"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.SetCustomRemoteProducer(ctx, s.userID, domain.RemoteProducerID(p.RemoteProducerID), p.Update)
	return err
}

func (ctl *Controller) handleRemoveCustomRemoteProducer(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID string `json:"id" validate:"required"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	return ctl.Engine.DeleteCustomRemoteProducer(ctx, s.userID, domain.CustomID(p.ID))
}

func (ctl *Controller) handleSetCustomRemoteOvTrack(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		RemoteOvTrackID string          `json:"remoteOvTrackId" validate:"required"`
		Update          app.CustomPatch `json:"update"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.SetCustomRemoteOvTrack(ctx, s.userID, domain.RemoteOvTrackID(p.RemoteOvTrackID), p.Update)
	return err
}

func (ctl *Controller) handleRemoveCustomRemoteOvTrack(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID string `json:"id" validate:"required"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	return ctl.Engine.DeleteCustomRemoteOvTrack(ctx, s.userID, domain.CustomID(p.ID))
}
