package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovstage/stagehub/internal/domain"
)

func TestDeleteStageCascades(t *testing.T) {
	ctx := context.Background()
	e, st, reg := newTestEngine(t)

	admin := seedUser(t, st, "admin")
	guest := seedUser(t, st, "guest")
	stage, group := seedStage(t, e, admin.ID, "")
	require.NoError(t, e.Join(ctx, guest.ID, stage.ID, group.ID, ""))
	_, err := e.SetCustomGroup(ctx, guest.ID, group.ID, CustomPatch{Muted: b(true)})
	require.NoError(t, err)

	// Guest leaves but stays a historical member, and must still hear about
	// the removal.
	require.NoError(t, e.Leave(ctx, guest.ID, false))
	guestSess := connect(reg, guest.ID, "guest-1")

	require.NoError(t, e.DeleteStage(ctx, stage.ID))

	stages, err := st.Stages.Find(ctx, func(domain.Stage) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, stages)
	groups, err := st.Groups.Find(ctx, func(domain.Group) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, groups, "groups not cascaded")
	members, err := st.StageMembers.Find(ctx, func(domain.StageMember) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, members, "members not cascaded")
	overlays, err := st.CustomGroups.Find(ctx, func(domain.CustomGroup) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, overlays, "overlays not cascaded")

	assert.Equal(t, 1, guestSess.count(CustomGroupRemoved))
	assert.Equal(t, 1, guestSess.count(GroupRemoved))
	assert.Equal(t, 1, guestSess.count(StageRemoved), "historical members are told the stage is gone")

	// Dependents are revoked before their parents.
	names := guestSess.names()
	assert.Less(t, index(names, CustomGroupRemoved), index(names, GroupRemoved))
	assert.Less(t, index(names, GroupRemoved), index(names, StageRemoved))
}

func TestDeleteGroupCascadesMembersAndOverlays(t *testing.T) {
	ctx := context.Background()
	e, st, reg := newTestEngine(t)

	admin := seedUser(t, st, "admin")
	guest := seedUser(t, st, "guest")
	stage, group := seedStage(t, e, admin.ID, "")
	keep, err := e.CreateGroup(ctx, admin.ID, stage.ID, "audience")
	require.NoError(t, err)
	require.NoError(t, e.Join(ctx, guest.ID, stage.ID, group.ID, ""))
	_, err = e.SetCustomGroup(ctx, guest.ID, group.ID, CustomPatch{Muted: b(true)})
	require.NoError(t, err)

	guestSess := connect(reg, guest.ID, "guest-1")
	require.NoError(t, e.DeleteGroup(ctx, group.ID))

	_, err = st.Groups.Get(ctx, string(group.ID))
	assert.Error(t, err)
	_, err = st.Groups.Get(ctx, string(keep.ID))
	assert.NoError(t, err, "sibling group untouched")

	members, err := st.StageMembers.Find(ctx, func(m domain.StageMember) bool { return m.GroupID == group.ID })
	require.NoError(t, err)
	assert.Empty(t, members)

	overlays, err := st.CustomGroups.Find(ctx, func(c domain.CustomGroup) bool { return c.GroupID == group.ID })
	require.NoError(t, err)
	assert.Empty(t, overlays)

	user, err := e.GetUser(ctx, guest.ID)
	require.NoError(t, err)
	assert.False(t, user.Joined(), "deleting the member forces a clean leave")
	assert.Equal(t, 1, guestSess.count(StageLeft))
}

func TestDeleteStageMemberForcesLeave(t *testing.T) {
	ctx := context.Background()
	e, st, reg := newTestEngine(t)

	admin := seedUser(t, st, "admin")
	guest := seedUser(t, st, "guest")
	stage, group := seedStage(t, e, admin.ID, "")
	require.NoError(t, e.Join(ctx, guest.ID, stage.ID, group.ID, ""))

	guestSess := connect(reg, guest.ID, "guest-1")
	member, err := st.StageMembers.FindOne(ctx, func(m domain.StageMember) bool { return m.UserID == guest.ID })
	require.NoError(t, err)

	require.NoError(t, e.DeleteStageMember(ctx, member.ID))

	user, err := e.GetUser(ctx, guest.ID)
	require.NoError(t, err)
	assert.False(t, user.Joined())
	activePair(t, *user)
	assert.Equal(t, 1, guestSess.count(StageLeft))

	_, err = st.StageMembers.Get(ctx, string(member.ID))
	assert.Error(t, err)
}

func TestDeleteDeviceCascadesProducers(t *testing.T) {
	ctx := context.Background()
	e, st, reg := newTestEngine(t)

	admin := seedUser(t, st, "admin")
	guest := seedUser(t, st, "guest")
	stage, group := seedStage(t, e, admin.ID, "")
	require.NoError(t, e.Join(ctx, guest.ID, stage.ID, group.ID, ""))

	device, err := e.RegisterDevice(ctx, guest.ID, "laptop", "", "", domain.Capabilities{CanAudio: true})
	require.NoError(t, err)
	producer, err := e.AddProducer(ctx, guest.ID, device.ID, domain.MediaAudio, "")
	require.NoError(t, err)
	track, err := e.AddOvTrack(ctx, guest.ID, device.ID, 3)
	require.NoError(t, err)

	guestSess := connect(reg, guest.ID, "guest-1")
	require.NoError(t, e.DeleteDevice(ctx, device.ID))

	_, err = st.Producers.Get(ctx, string(producer.ID))
	assert.Error(t, err)
	_, err = st.OvTracks.Get(ctx, string(track.ID))
	assert.Error(t, err)

	remotes, err := st.RemoteProducers.Find(ctx, func(r domain.RemoteProducer) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, remotes, "stage projections go with the producer")

	remoteTracks, err := st.RemoteOvTracks.Find(ctx, func(r domain.RemoteOvTrack) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, remoteTracks)

	assert.Equal(t, 1, guestSess.count(ProducerRemoved))
	assert.Equal(t, 1, guestSess.count(OvTrackRemoved))
	assert.Equal(t, 1, guestSess.count(DeviceRemoved))
	assert.Equal(t, 1, guestSess.count(RemoteProducerRemoved))

	names := guestSess.names()
	assert.Less(t, index(names, RemoteProducerRemoved), index(names, ProducerRemoved))
	assert.Less(t, index(names, ProducerRemoved), index(names, DeviceRemoved))
}

func TestDeleteProducerRemovesOverlays(t *testing.T) {
	ctx := context.Background()
	e, st, _ := newTestEngine(t)

	admin := seedUser(t, st, "admin")
	guest := seedUser(t, st, "guest")
	viewer := seedUser(t, st, "viewer")
	stage, group := seedStage(t, e, admin.ID, "")
	require.NoError(t, e.Join(ctx, guest.ID, stage.ID, group.ID, ""))

	device, err := e.RegisterDevice(ctx, guest.ID, "laptop", "", "", domain.Capabilities{CanAudio: true})
	require.NoError(t, err)
	producer, err := e.AddProducer(ctx, guest.ID, device.ID, domain.MediaAudio, "")
	require.NoError(t, err)

	remote, err := st.RemoteProducers.FindOne(ctx, func(r domain.RemoteProducer) bool { return r.ProducerID == producer.ID })
	require.NoError(t, err)
	overlay, err := e.SetCustomRemoteProducer(ctx, viewer.ID, remote.ID, CustomPatch{Volume: f64(0.5)})
	require.NoError(t, err)

	require.NoError(t, e.DeleteProducer(ctx, producer.ID))

	_, err = st.CustomRemoteProducers.Get(ctx, string(overlay.ID))
	assert.Error(t, err, "overlay must not outlive its target")
	_, err = st.RemoteProducers.Get(ctx, string(remote.ID))
	assert.Error(t, err)
}

// index returns the position of the first occurrence of name, or a large
// value when absent so ordering assertions fail loudly.
func index(names []EventName, name EventName) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return 1 << 30
}
