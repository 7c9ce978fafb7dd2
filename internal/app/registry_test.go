package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovstage/stagehub/internal/domain"
)

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	alice := domain.UserID("alice")

	s1 := newFakeSession("s1")
	s2 := newFakeSession("s2")
	reg.Register(alice, s1)
	reg.Register(alice, s2)

	assert.True(t, reg.Online(alice))
	assert.Len(t, reg.SessionsFor(alice), 2)
	assert.Equal(t, 2, reg.SessionCount())

	userID, ok := reg.UserOf("s1")
	require.True(t, ok)
	assert.Equal(t, alice, userID)
}

func TestRegistryUnregisterLastSessionGoesOffline(t *testing.T) {
	reg := NewRegistry()
	alice := domain.UserID("alice")

	reg.Register(alice, newFakeSession("s1"))
	reg.Register(alice, newFakeSession("s2"))

	reg.Unregister("s1")
	assert.True(t, reg.Online(alice), "one session left")

	reg.Unregister("s2")
	assert.False(t, reg.Online(alice))
	assert.Empty(t, reg.SessionsFor(alice))

	_, ok := reg.UserOf("s2")
	assert.False(t, ok)
}

func TestRegistryUnregisterUnknownIsNoop(t *testing.T) {
	reg := NewRegistry()
	reg.Register("alice", newFakeSession("s1"))

	reg.Unregister("never-registered")
	assert.Equal(t, 1, reg.SessionCount())
}
