// Package signal is the websocket transport adapter: it authenticates
// connections, turns inbound frames into engine commands and drains the
// per-session event queue through a single write pump.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ovstage/stagehub/internal/app"
	"github.com/ovstage/stagehub/internal/auth"
	"github.com/ovstage/stagehub/internal/config"
	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/metrics"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Engine   *app.Engine
	Verifier *auth.Verifier
	Cfg      *config.Config
	validate *validator.Validate
}

func NewController(engine *app.Engine, verifier *auth.Verifier, cfg *config.Config) *Controller {
	return &Controller{
		Engine:   engine,
		Verifier: verifier,
		Cfg:      cfg,
		validate: validator.New(),
	}
}

// wsSession is one connected client. Send order is preserved by the single
// buffered channel drained by the write pump.
type wsSession struct {
	id     app.SessionID
	userID domain.UserID
	conn   *websocket.Conn
	send   chan []byte

	mu       sync.RWMutex
	closed   bool
	deviceID domain.DeviceID
}

func (s *wsSession) ID() app.SessionID { return s.id }

func (s *wsSession) Send(ev app.Event) error {
	b, err := marshalEvent(ev)
	if err != nil {
		return err
	}
	return s.trySend(b)
}

func (s *wsSession) trySend(b []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("connection closed")
	}
	select {
	case s.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (s *wsSession) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.send)
	_ = s.conn.Close()
	s.mu.Unlock()
}

func (s *wsSession) setDevice(id domain.DeviceID) {
	s.mu.Lock()
	s.deviceID = id
	s.mu.Unlock()
}

func (s *wsSession) device() domain.DeviceID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the connection, authenticates the credential and
// binds the session to the registry. The initial snapshot is pushed before
// the first inbound command is read.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Authorization")
	}
	userID, claims, err := ctl.Verifier.Verify(token)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	sess := &wsSession{
		id:     app.SessionID(uuid.NewString()),
		userID: userID,
		conn:   ws,
		send:   make(chan []byte, ctl.Cfg.SendBuffer),
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.id)).Str("user", string(userID)).Msg("new WS connection")

	if _, err := ctl.Engine.EnsureUser(ctx, userID, claims.DisplayName, claims.AvatarURL); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ensure user")
		_ = ws.Close()
		return
	}

	ctl.Engine.Registry().Register(userID, sess)
	metrics.ConnectedSessions.Inc()

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, sess)

	if err := ctl.Engine.SendInitialSnapshot(ctx, userID, sess); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(userID)).Msg("initial snapshot failed")
	}

	go func() {
		defer cancel()
		ctl.readPump(ctx, sess)
		ctl.onDisconnect(sess)
	}()
}

// onDisconnect tears transient state down. Cleanup of persisted state is
// fire-and-forget relative to the socket teardown.
func (ctl *Controller) onDisconnect(sess *wsSession) {
	ctl.Engine.Registry().Unregister(sess.id)
	metrics.ConnectedSessions.Dec()

	deviceID := sess.device()
	userID := sess.userID
	go ctl.cleanup(context.Background(), userID, deviceID)
}

// cleanup releases the persisted state a closed session was responsible for.
// The online check happens here, not at disconnect time: a client that
// reconnected while the old socket was still tearing down must keep its
// stage membership.
func (ctl *Controller) cleanup(ctx context.Context, userID domain.UserID, deviceID domain.DeviceID) {
	if deviceID != "" {
		if err := ctl.Engine.DisconnectDevice(ctx, deviceID); err != nil && !errors.Is(err, app.ErrNotFound) {
			log.Warn().Err(err).Str("module", "signal").Str("device", string(deviceID)).Msg("disconnect cleanup failed")
		}
	}
	// Last session gone: the user leaves their active stage.
	if !ctl.Engine.Registry().Online(userID) {
		if err := ctl.Engine.Leave(ctx, userID, false); err != nil && !errors.Is(err, app.ErrNotFound) {
			log.Warn().Err(err).Str("module", "signal").Str("user", string(userID)).Msg("leave on disconnect failed")
		}
	}
}
