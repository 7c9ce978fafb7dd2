package signal

import (
	"context"
	"encoding/json"

	"github.com/ovstage/stagehub/internal/app"
	"github.com/ovstage/stagehub/internal/domain"
)

func (ctl *Controller) handleAddStage(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		Name     string `json:"name" validate:"required"`
		Password string `json:"password,omitempty"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.CreateStage(ctx, s.userID, p.Name, p.Password)
	return err
}

func (ctl *Controller) handleChangeStage(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID     string         `json:"id" validate:"required"`
		Update app.StagePatch `json:"update"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.UpdateStage(ctx, s.userID, domain.StageID(p.ID), p.Update)
	return err
}

func (ctl *Controller) handleRemoveStage(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID string `json:"id" validate:"required"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	return ctl.Engine.RemoveStage(ctx, s.userID, domain.StageID(p.ID))
}

func (ctl *Controller) handleAddGroup(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		StageID string `json:"stageId" validate:"required"`
		Name    string `json:"name" validate:"required"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.CreateGroup(ctx, s.userID, domain.StageID(p.StageID), p.Name)
	return err
}

func (ctl *Controller) handleChangeGroup(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID     string         `json:"id" validate:"required"`
		Update app.GroupPatch `json:"update"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	_, err := ctl.Engine.UpdateGroup(ctx, s.userID, domain.GroupID(p.ID), p.Update)
	return err
}

func (ctl *Controller) handleRemoveGroup(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		ID string `json:"id" validate:"required"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	return ctl.Engine.RemoveGroup(ctx, s.userID, domain.GroupID(p.ID))
}
