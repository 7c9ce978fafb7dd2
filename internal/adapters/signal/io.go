package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ovstage/stagehub/internal/app"
	"github.com/ovstage/stagehub/internal/metrics"
)

const writeTimeout = 5 * time.Second

// envelope is the inbound frame: a command with an optional request id the
// client uses to correlate the acknowledgment.
type envelope struct {
	Type    string          `json:"type"`
	ReqID   string          `json:"reqId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Type    app.EventName `json:"type"`
	Payload any           `json:"payload,omitempty"`
}

func marshalEvent(ev app.Event) ([]byte, error) {
	return json.Marshal(outbound{Type: ev.Name, Payload: ev.Payload})
}

func (ctl *Controller) writePump(ctx context.Context, s *wsSession) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.id)).Msg("ping failed")
				return
			}
		case data, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, s *wsSession) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(s.id)).Msg("readPump closing")
		s.close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(s.id)).Msg("readPump read error")
				}
				return
			}
			ctl.handleFrame(ctx, s, data)
		}
	}
}

func (ctl *Controller) handleFrame(ctx context.Context, s *wsSession, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(s, "", "bad-payload")
		return
	}

	if env.Type == "ping" {
		ctl.sendRaw(s, map[string]any{"type": "pong"})
		return
	}

	err := ctl.dispatch(ctx, s, env)
	status := "ok"
	if err != nil {
		status = "error"
		ctl.sendError(s, env.ReqID, errorCode(err))
		// An invariant violation means the client's view can no longer be
		// trusted; recover by resending the full state.
		if errors.Is(err, app.ErrInconsistent) {
			if snapErr := ctl.Engine.SendInitialSnapshot(ctx, s.userID, s); snapErr != nil {
				log.Error().Err(snapErr).Str("module", "signal").Str("user", string(s.userID)).Msg("recovery snapshot failed")
			}
		}
	} else if env.ReqID != "" {
		ctl.sendRaw(s, map[string]any{"type": "ack", "reqId": env.ReqID})
	}
	metrics.CommandsHandled.WithLabelValues(env.Type, status).Inc()
}

func (ctl *Controller) dispatch(ctx context.Context, s *wsSession, env envelope) error {
	switch env.Type {
	case "register-device":
		return ctl.handleRegisterDevice(ctx, s, env.Payload)
	case "update-device":
		return ctl.handleUpdateDevice(ctx, s, env.Payload)
	case "join-stage":
		return ctl.handleJoinStage(ctx, s, env.Payload)
	case "leave-stage":
		return ctl.Engine.Leave(ctx, s.userID, false)
	case "leave-stage-for-good":
		return ctl.handleLeaveForGood(ctx, s, env.Payload)
	case "add-stage":
		return ctl.handleAddStage(ctx, s, env.Payload)
	case "change-stage":
		return ctl.handleChangeStage(ctx, s, env.Payload)
	case "remove-stage":
		return ctl.handleRemoveStage(ctx, s, env.Payload)
	case "add-group":
		return ctl.handleAddGroup(ctx, s, env.Payload)
	case "change-group":
		return ctl.handleChangeGroup(ctx, s, env.Payload)
	case "remove-group":
		return ctl.handleRemoveGroup(ctx, s, env.Payload)
	case "set-custom-group":
		return ctl.handleSetCustomGroup(ctx, s, env.Payload)
	case "remove-custom-group":
		return ctl.handleRemoveCustomGroup(ctx, s, env.Payload)
	case "set-custom-stage-member":
		return ctl.handleSetCustomStageMember(ctx, s, env.Payload)
	case "remove-custom-stage-member":
		return ctl.handleRemoveCustomStageMember(ctx, s, env.Payload)
	case "set-custom-remote-producer":
		return ctl.handleSetCustomRemoteProducer(ctx, s, env.Payload)
	case "remove-custom-remote-producer":
		return ctl.handleRemoveCustomRemoteProducer(ctx, s, env.Payload)
	case "set-custom-remote-ov-track":
		return ctl.handleSetCustomRemoteOvTrack(ctx, s, env.Payload)
	case "remove-custom-remote-ov-track":
		return ctl.handleRemoveCustomRemoteOvTrack(ctx, s, env.Payload)
	case "add-producer":
		return ctl.handleAddProducer(ctx, s, env.Payload)
	case "remove-producer":
		return ctl.handleRemoveProducer(ctx, s, env.Payload)
	case "add-ov-track":
		return ctl.handleAddOvTrack(ctx, s, env.Payload)
	case "remove-ov-track":
		return ctl.handleRemoveOvTrack(ctx, s, env.Payload)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown command")
		return errUnknownCommand
	}
}

var errUnknownCommand = errors.New("unknown command")

func errorCode(err error) string {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return "not-found"
	case errors.Is(err, app.ErrInvalidPassword):
		return "invalid-password"
	case errors.Is(err, app.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, app.ErrInconsistent):
		return "out-of-sync"
	case errors.Is(err, errUnknownCommand):
		return "unknown-command"
	case errors.Is(err, errBadPayload):
		return "bad-payload"
	default:
		return "internal"
	}
}

var errBadPayload = errors.New("bad payload")

// decode unmarshals and validates a command payload.
func (ctl *Controller) decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	if err := ctl.validate.Struct(v); err != nil {
		return errBadPayload
	}
	return nil
}

func (ctl *Controller) sendRaw(s *wsSession, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendRaw marshal")
		return
	}
	_ = s.trySend(b)
}

func (ctl *Controller) sendError(s *wsSession, reqID, code string) {
	msg := map[string]any{"type": "error", "error": code}
	if reqID != "" {
		msg["reqId"] = reqID
	}
	ctl.sendRaw(s, msg)
}
