package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovstage/stagehub/internal/app"
	"github.com/ovstage/stagehub/internal/auth"
	"github.com/ovstage/stagehub/internal/config"
	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/store"
)

func newTestController(t *testing.T) (*Controller, *store.Store) {
	t.Helper()
	st := store.NewMemory()
	engine := app.NewEngine(st, app.NewRegistry())
	cfg := &config.Config{SendBuffer: 64, ReadLimit: 32768}
	return NewController(engine, auth.NewVerifier("test-secret"), cfg), st
}

// testSession builds a session without a live socket; handleFrame only
// touches the send channel.
func testSession(userID string) *wsSession {
	return &wsSession{
		id:     "test-session",
		userID: domain.UserID(userID),
		send:   make(chan []byte, 64),
	}
}

func drain(t *testing.T, s *wsSession) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case data := <-s.send:
			var m map[string]any
			require.NoError(t, json.Unmarshal(data, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func frame(t *testing.T, typ, reqID string, payload any) []byte {
	t.Helper()
	env := map[string]any{"type": typ}
	if reqID != "" {
		env["reqId"] = reqID
	}
	if payload != nil {
		env["payload"] = payload
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

func TestHandleFramePing(t *testing.T) {
	ctl, _ := newTestController(t)
	s := testSession("alice")

	ctl.handleFrame(context.Background(), s, []byte(`{"type":"ping"}`))

	msgs := drain(t, s)
	require.Len(t, msgs, 1)
	assert.Equal(t, "pong", msgs[0]["type"])
}

func TestHandleFrameAcksWithReqID(t *testing.T) {
	ctx := context.Background()
	ctl, st := newTestController(t)
	require.NoError(t, st.Users.Create(ctx, domain.User{ID: "alice", DisplayName: "alice"}))
	s := testSession("alice")

	ctl.handleFrame(ctx, s, frame(t, "add-stage", "req-1", map[string]any{"name": "my stage"}))

	msgs := drain(t, s)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ack", msgs[0]["type"])
	assert.Equal(t, "req-1", msgs[0]["reqId"])

	stages, err := st.Stages.Find(ctx, func(domain.Stage) bool { return true })
	require.NoError(t, err)
	assert.Len(t, stages, 1)
}

func TestHandleFrameNoAckWithoutReqID(t *testing.T) {
	ctx := context.Background()
	ctl, st := newTestController(t)
	require.NoError(t, st.Users.Create(ctx, domain.User{ID: "alice", DisplayName: "alice"}))
	s := testSession("alice")

	ctl.handleFrame(ctx, s, frame(t, "add-stage", "", map[string]any{"name": "my stage"}))
	assert.Empty(t, drain(t, s))
}

func TestHandleFrameUnknownCommand(t *testing.T) {
	ctl, _ := newTestController(t)
	s := testSession("alice")

	ctl.handleFrame(context.Background(), s, frame(t, "no-such-command", "req-1", nil))

	msgs := drain(t, s)
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgs[0]["type"])
	assert.Equal(t, "unknown-command", msgs[0]["error"])
	assert.Equal(t, "req-1", msgs[0]["reqId"])
}

func TestHandleFrameBadJSON(t *testing.T) {
	ctl, _ := newTestController(t)
	s := testSession("alice")

	ctl.handleFrame(context.Background(), s, []byte(`{not json`))

	msgs := drain(t, s)
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgs[0]["type"])
	assert.Equal(t, "bad-payload", msgs[0]["error"])
}

func TestHandleFrameValidationFailure(t *testing.T) {
	ctl, _ := newTestController(t)
	s := testSession("alice")

	// join-stage requires stageId and groupId.
	ctl.handleFrame(context.Background(), s, frame(t, "join-stage", "req-1", map[string]any{"stageId": "s1"}))

	msgs := drain(t, s)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bad-payload", msgs[0]["error"])
}

func TestHandleFrameDomainError(t *testing.T) {
	ctx := context.Background()
	ctl, st := newTestController(t)
	require.NoError(t, st.Users.Create(ctx, domain.User{ID: "alice", DisplayName: "alice"}))
	s := testSession("alice")

	ctl.handleFrame(ctx, s, frame(t, "join-stage", "req-1", map[string]any{"stageId": "nope", "groupId": "nope"}))

	msgs := drain(t, s)
	require.Len(t, msgs, 1)
	assert.Equal(t, "not-found", msgs[0]["error"])
}

func TestErrorCode(t *testing.T) {
	cases := map[string]struct {
		err  error
		code string
	}{
		"not found":        {app.ErrNotFound, "not-found"},
		"wrapped":          {fmt.Errorf("join: %w", app.ErrNotFound), "not-found"},
		"invalid password": {app.ErrInvalidPassword, "invalid-password"},
		"unauthorized":     {app.ErrUnauthorized, "unauthorized"},
		"inconsistent":     {app.ErrInconsistent, "out-of-sync"},
		"unknown command":  {errUnknownCommand, "unknown-command"},
		"bad payload":      {errBadPayload, "bad-payload"},
		"anything else":    {errors.New("boom"), "internal"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.code, errorCode(tc.err))
		})
	}
}

func TestMarshalEvent(t *testing.T) {
	b, err := marshalEvent(app.Event{Name: app.StageLeft})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"stage-left"}`, string(b))

	b, err = marshalEvent(app.Event{Name: app.StageRemoved, Payload: domain.StageID("s1")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"stage-removed","payload":"s1"}`, string(b))
}

func TestTrySendBackpressure(t *testing.T) {
	s := &wsSession{id: "s", send: make(chan []byte, 1)}
	require.NoError(t, s.trySend([]byte("one")))
	assert.ErrorIs(t, s.trySend([]byte("two")), ErrBackpressure)
}

func TestTrySendClosed(t *testing.T) {
	s := &wsSession{id: "s", send: make(chan []byte, 1)}
	s.closed = true
	assert.Error(t, s.trySend([]byte("one")))
}

func TestCleanupChecksPresenceAtRunTime(t *testing.T) {
	ctx := context.Background()
	ctl, st := newTestController(t)

	admin, err := ctl.Engine.EnsureUser(ctx, "admin", "Admin", "")
	require.NoError(t, err)
	alice, err := ctl.Engine.EnsureUser(ctx, "alice", "Alice", "")
	require.NoError(t, err)
	stage, err := ctl.Engine.CreateStage(ctx, admin.ID, "rehearsal", "")
	require.NoError(t, err)
	group, err := ctl.Engine.CreateGroup(ctx, admin.ID, stage.ID, "band")
	require.NoError(t, err)
	require.NoError(t, ctl.Engine.Join(ctx, alice.ID, stage.ID, group.ID, ""))

	// A fresh session registered before cleanup runs means the user
	// reconnected; the membership stays.
	replacement := testSession("alice")
	replacement.id = "alice-2"
	ctl.Engine.Registry().Register(alice.ID, replacement)

	ctl.cleanup(ctx, alice.ID, "")

	user, err := ctl.Engine.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, user.Joined(), "reconnected user keeps the stage")

	// No session left: cleanup tears the membership down.
	ctl.Engine.Registry().Unregister(replacement.id)
	ctl.cleanup(ctx, alice.ID, "")

	user, err = ctl.Engine.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, user.Joined(), "offline user left the stage")

	members, err := st.StageMembers.Find(ctx, func(m domain.StageMember) bool { return m.UserID == alice.ID })
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.False(t, members[0].Online)
}
