package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry()

	v := h.mount(t, aliceToken, Options{})
	require.NoError(t, reg.Register(v))
	require.ErrorIs(t, reg.Register(v), ErrViewExists)
	require.Equal(t, 1, reg.Len())

	got, ok := reg.Lookup(v.ID(), "sess-alice")
	require.True(t, ok)
	require.Same(t, v, got)

	_, ok = reg.Lookup(v.ID(), "sess-bob")
	require.False(t, ok, "views are only reachable from their own session")
	_, ok = reg.Lookup(v.ID(), "")
	require.False(t, ok)
	_, ok = reg.Lookup("unknown", "sess-alice")
	require.False(t, ok)

	reg.Unregister(v)
	require.Equal(t, 0, reg.Len())
}

func TestRegistryReconnectReplacesStaleView(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry()
	id := NewID()

	stale := h.mountAs(t, id, aliceToken, Options{})
	require.NoError(t, reg.Register(stale))

	fresh := h.mountAs(t, id, aliceToken, Options{})
	require.NoError(t, reg.Register(fresh))

	select {
	case <-stale.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replaced view should be closed")
	}
	got, ok := reg.Lookup(id, "sess-alice")
	require.True(t, ok)
	require.Same(t, fresh, got)
	require.Equal(t, 1, h.broker.ActiveChannels())

	// the replaced stream's deferred Unregister must not evict its successor
	reg.Unregister(stale)
	require.Equal(t, 1, reg.Len())

	intruder := h.mountAs(t, id, bobToken, Options{})
	require.ErrorIs(t, reg.Register(intruder), ErrViewExists)
	got, _ = reg.Lookup(id, "sess-alice")
	require.Same(t, fresh, got)
}

func TestRegistryLookupSkipsSignedOutView(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry()

	v := h.mount(t, "", Options{})
	require.NoError(t, reg.Register(v))

	_, ok := reg.Lookup(v.ID(), "sess-alice")
	require.False(t, ok)
}

func TestRegistryCloseAll(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry()

	require.NoError(t, reg.Register(h.mount(t, aliceToken, Options{})))
	require.NoError(t, reg.Register(h.mount(t, bobToken, Options{})))
	require.Equal(t, 2, h.broker.ActiveChannels())

	reg.CloseAll()
	require.Equal(t, 0, reg.Len())
	require.Equal(t, 0, h.broker.ActiveChannels())
	require.Equal(t, 0, h.hub.Listeners())
}

func TestValidID(t *testing.T) {
	require.True(t, ValidID(NewID()))
	require.False(t, ValidID("not-an-id"))
}
