package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ovstage/stagehub/internal/domain"
)

func (ctl *Controller) handleJoinStage(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		StageID  string `json:"stageId" validate:"required"`
		GroupID  string `json:"groupId" validate:"required"`
		Password string `json:"password,omitempty"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(s.id)).Str("stage", p.StageID).Msg("join")
	return ctl.Engine.Join(ctx, s.userID, domain.StageID(p.StageID), domain.GroupID(p.GroupID), p.Password)
}

func (ctl *Controller) handleLeaveForGood(ctx context.Context, s *wsSession, raw json.RawMessage) error {
	var p struct {
		StageID string `json:"stageId" validate:"required"`
	}
	if err := ctl.decode(raw, &p); err != nil {
		return err
	}
	return ctl.Engine.LeaveForGood(ctx, s.userID, domain.StageID(p.StageID))
}
