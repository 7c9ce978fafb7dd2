package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/store"
)

func TestRouterToUserReachesEverySession(t *testing.T) {
	st := store.NewMemory()
	reg := NewRegistry()
	r := NewRouter(st, reg)

	laptop := connect(reg, "alice", "laptop")
	phone := connect(reg, "alice", "phone")
	other := connect(reg, "bob", "bob-1")

	require.NoError(t, r.ToUser(context.Background(), "alice", StageLeft, nil))

	assert.Equal(t, 1, laptop.count(StageLeft))
	assert.Equal(t, 1, phone.count(StageLeft))
	assert.Zero(t, other.count(StageLeft))
}

func TestRouterToStageUnionsAdminsAndMembers(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	reg := NewRegistry()
	r := NewRouter(st, reg)

	// Admin "owner" is also a member: must receive exactly once per session.
	stage := domain.Stage{ID: "s1", Name: "s", Admins: []domain.UserID{"owner"}}
	require.NoError(t, st.Stages.Create(ctx, stage))
	require.NoError(t, st.StageMembers.Create(ctx, domain.StageMember{ID: "m1", StageID: "s1", UserID: "owner"}))
	require.NoError(t, st.StageMembers.Create(ctx, domain.StageMember{ID: "m2", StageID: "s1", UserID: "guest"}))

	owner := connect(reg, "owner", "owner-1")
	guest := connect(reg, "guest", "guest-1")
	outsider := connect(reg, "outsider", "out-1")

	require.NoError(t, r.ToStage(ctx, "s1", StageChanged, stage.Sanitized()))

	assert.Equal(t, 1, owner.count(StageChanged), "admin+member must not be notified twice")
	assert.Equal(t, 1, guest.count(StageChanged))
	assert.Zero(t, outsider.count(StageChanged))
}

func TestRouterToStageMissingStageIsEmptyNotError(t *testing.T) {
	st := store.NewMemory()
	reg := NewRegistry()
	r := NewRouter(st, reg)

	s := connect(reg, "alice", "s1")
	require.NoError(t, r.ToStage(context.Background(), "no-such-stage", StageRemoved, nil))
	assert.Empty(t, s.names())
}

func TestRouterToStageAdminsOnly(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	reg := NewRegistry()
	r := NewRouter(st, reg)

	require.NoError(t, st.Stages.Create(ctx, domain.Stage{ID: "s1", Name: "s", Admins: []domain.UserID{"owner"}}))
	require.NoError(t, st.StageMembers.Create(ctx, domain.StageMember{ID: "m1", StageID: "s1", UserID: "guest"}))

	owner := connect(reg, "owner", "owner-1")
	guest := connect(reg, "guest", "guest-1")

	require.NoError(t, r.ToStageAdmins(ctx, "s1", StageChanged, nil))
	assert.Equal(t, 1, owner.count(StageChanged))
	assert.Zero(t, guest.count(StageChanged))
}

func TestRouterToJoinedMembersExcludesInactive(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	reg := NewRegistry()
	r := NewRouter(st, reg)

	stageID := domain.StageID("s1")
	otherStage := domain.StageID("s2")
	joined := domain.User{ID: "joined", DisplayName: "j", ActiveStageID: &stageID}
	elsewhere := domain.User{ID: "elsewhere", DisplayName: "e", ActiveStageID: &otherStage}
	left := domain.User{ID: "left", DisplayName: "l"}
	for _, u := range []domain.User{joined, elsewhere, left} {
		require.NoError(t, st.Users.Create(ctx, u))
	}

	joinedSess := connect(reg, "joined", "j-1")
	elsewhereSess := connect(reg, "elsewhere", "e-1")
	leftSess := connect(reg, "left", "l-1")

	require.NoError(t, r.ToJoinedStageMembers(ctx, stageID, MemberChanged, nil))

	assert.Equal(t, 1, joinedSess.count(MemberChanged))
	assert.Zero(t, elsewhereSess.count(MemberChanged))
	assert.Zero(t, leftSess.count(MemberChanged), "historical member without active stage must not receive live events")
}

func TestRouterFailedSendIsDroppedNotSurfaced(t *testing.T) {
	st := store.NewMemory()
	reg := NewRegistry()
	r := NewRouter(st, reg)

	broken := connect(reg, "alice", "broken")
	broken.fail = true
	healthy := connect(reg, "alice", "healthy")

	require.NoError(t, r.ToUser(context.Background(), "alice", StageLeft, nil))
	assert.Equal(t, 1, healthy.count(StageLeft), "one dead session must not block the others")
}
