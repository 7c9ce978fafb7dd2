package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovstage/stagehub/internal/domain"
)

func TestRegisterDeviceReusesMac(t *testing.T) {
	ctx := context.Background()
	e, st, reg := newTestEngine(t)
	guest := seedUser(t, st, "guest")
	sess := connect(reg, guest.ID, "guest-1")

	first, err := e.RegisterDevice(ctx, guest.ID, "studio box", "aa:bb:cc", "", domain.Capabilities{CanOv: true})
	require.NoError(t, err)
	assert.False(t, first.Ephemeral())
	assert.Equal(t, 1, sess.count(DeviceAdded))

	require.NoError(t, e.DisconnectDevice(ctx, first.ID))
	got, err := st.Devices.Get(ctx, string(first.ID))
	require.NoError(t, err)
	assert.False(t, got.Online, "persistent device survives disconnect offline")

	second, err := e.RegisterDevice(ctx, guest.ID, "", "aa:bb:cc", "srv-2", domain.Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "mac identifies the device across reconnects")
	assert.True(t, second.Online)
	assert.Equal(t, "studio box", second.Name, "empty name keeps the stored one")
	assert.Equal(t, "srv-2", second.Server)
	assert.Equal(t, 1, sess.count(DeviceAdded), "reconnect is a change, not a new device")
	assert.GreaterOrEqual(t, sess.count(DeviceChanged), 1)
}

func TestEphemeralDeviceDeletedOnDisconnect(t *testing.T) {
	ctx := context.Background()
	e, st, _ := newTestEngine(t)
	guest := seedUser(t, st, "guest")

	device, err := e.RegisterDevice(ctx, guest.ID, "browser", "", "", domain.Capabilities{})
	require.NoError(t, err)
	assert.True(t, device.Ephemeral())

	require.NoError(t, e.DisconnectDevice(ctx, device.ID))
	_, err = st.Devices.Get(ctx, string(device.ID))
	assert.Error(t, err)
}

func TestUpdateDeviceOwnerOnly(t *testing.T) {
	ctx := context.Background()
	e, st, _ := newTestEngine(t)
	guest := seedUser(t, st, "guest")
	intruder := seedUser(t, st, "intruder")

	device, err := e.RegisterDevice(ctx, guest.ID, "laptop", "", "", domain.Capabilities{})
	require.NoError(t, err)

	_, err = e.UpdateDevice(ctx, intruder.ID, device.ID, DevicePatch{Name: str("mine now")})
	assert.ErrorIs(t, err, ErrUnauthorized)

	updated, err := e.UpdateDevice(ctx, guest.ID, device.ID, DevicePatch{Name: str("desk laptop")})
	require.NoError(t, err)
	assert.Equal(t, "desk laptop", updated.Name)
}

func TestAddProducerProjectsWhenJoined(t *testing.T) {
	ctx := context.Background()
	e, st, reg := newTestEngine(t)

	admin := seedUser(t, st, "admin")
	guest := seedUser(t, st, "guest")
	other := seedUser(t, st, "other")
	stage, group := seedStage(t, e, admin.ID, "")
	require.NoError(t, e.Join(ctx, guest.ID, stage.ID, group.ID, ""))
	require.NoError(t, e.Join(ctx, other.ID, stage.ID, group.ID, ""))

	otherSess := connect(reg, other.ID, "other-1")
	device, err := e.RegisterDevice(ctx, guest.ID, "laptop", "", "", domain.Capabilities{CanAudio: true})
	require.NoError(t, err)

	producer, err := e.AddProducer(ctx, guest.ID, device.ID, domain.MediaAudio, "rtr-1")
	require.NoError(t, err)

	remote, err := st.RemoteProducers.FindOne(ctx, func(r domain.RemoteProducer) bool { return r.ProducerID == producer.ID })
	require.NoError(t, err)
	assert.Equal(t, stage.ID, remote.StageID)
	assert.True(t, remote.Online)
	assert.Equal(t, 1, otherSess.count(RemoteProducerAdded), "joined members see the projection")
}

func TestAddProducerUnjoinedStaysLocal(t *testing.T) {
	ctx := context.Background()
	e, st, _ := newTestEngine(t)
	guest := seedUser(t, st, "guest")

	device, err := e.RegisterDevice(ctx, guest.ID, "laptop", "", "", domain.Capabilities{CanAudio: true})
	require.NoError(t, err)
	_, err = e.AddProducer(ctx, guest.ID, device.ID, domain.MediaAudio, "")
	require.NoError(t, err)

	remotes, err := st.RemoteProducers.Find(ctx, func(domain.RemoteProducer) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, remotes, "no projection without a stage")
}

func TestAddProducerForeignDevice(t *testing.T) {
	ctx := context.Background()
	e, st, _ := newTestEngine(t)
	guest := seedUser(t, st, "guest")
	intruder := seedUser(t, st, "intruder")

	device, err := e.RegisterDevice(ctx, guest.ID, "laptop", "", "", domain.Capabilities{})
	require.NoError(t, err)
	_, err = e.AddProducer(ctx, intruder.ID, device.ID, domain.MediaAudio, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLeaveSuspendsRemoteMedia(t *testing.T) {
	ctx := context.Background()
	e, st, _ := newTestEngine(t)

	admin := seedUser(t, st, "admin")
	guest := seedUser(t, st, "guest")
	stage, group := seedStage(t, e, admin.ID, "")
	require.NoError(t, e.Join(ctx, guest.ID, stage.ID, group.ID, ""))

	device, err := e.RegisterDevice(ctx, guest.ID, "laptop", "", "", domain.Capabilities{CanAudio: true})
	require.NoError(t, err)
	producer, err := e.AddProducer(ctx, guest.ID, device.ID, domain.MediaAudio, "")
	require.NoError(t, err)

	require.NoError(t, e.Leave(ctx, guest.ID, false))

	remote, err := st.RemoteProducers.FindOne(ctx, func(r domain.RemoteProducer) bool { return r.ProducerID == producer.ID })
	require.NoError(t, err)
	assert.False(t, remote.Online, "projection is suspended, not deleted")
}

func TestRejoinRepublishesProducers(t *testing.T) {
	ctx := context.Background()
	e, st, _ := newTestEngine(t)

	admin := seedUser(t, st, "admin")
	guest := seedUser(t, st, "guest")
	stageA, groupA := seedStage(t, e, admin.ID, "")
	stageB, groupB := seedStage(t, e, admin.ID, "")
	require.NoError(t, e.Join(ctx, guest.ID, stageA.ID, groupA.ID, ""))

	device, err := e.RegisterDevice(ctx, guest.ID, "laptop", "", "", domain.Capabilities{CanAudio: true})
	require.NoError(t, err)
	producer, err := e.AddProducer(ctx, guest.ID, device.ID, domain.MediaAudio, "")
	require.NoError(t, err)

	require.NoError(t, e.Join(ctx, guest.ID, stageB.ID, groupB.ID, ""))

	remote, err := st.RemoteProducers.FindOne(ctx, func(r domain.RemoteProducer) bool { return r.ProducerID == producer.ID })
	require.NoError(t, err)
	assert.Equal(t, stageB.ID, remote.StageID, "projection follows the member to the new stage")
	assert.True(t, remote.Online)
}
