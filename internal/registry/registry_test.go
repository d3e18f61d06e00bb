package registry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatrelay/internal/registry"
	"github.com/Tyrowin/chatrelay/internal/registry/registrytest"
)

func TestRegistry_Register_New_Identity(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	h := registrytest.NewHandle()

	// When a new identity registers
	previous, err := reg.Register("alice", h)

	// Then it is online with no previous handle
	req.NoError(err)
	req.Nil(previous)
	got, ok := reg.Lookup("alice")
	req.True(ok)
	req.Equal(h.ID(), got.ID())
	req.Equal([]string{"alice"}, reg.Snapshot())

	entry, ok := reg.Entry("alice")
	req.True(ok)
	req.False(entry.RegisteredAt.IsZero())
}

func TestRegistry_Register_Replaces_Previous_Handle(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	first := registrytest.NewHandle()
	second := registrytest.NewHandle()

	_, err := reg.Register("alice", first)
	req.NoError(err)

	// When the same identity registers again
	previous, err := reg.Register("alice", second)

	// Then the first handle is returned and replaced
	req.NoError(err)
	req.Equal(first.ID(), previous.ID())
	got, _ := reg.Lookup("alice")
	req.Equal(second.ID(), got.ID())
	req.Equal(1, reg.Len())

	// And the old handle can no longer free the identity
	_, ok := reg.RemoveByHandleID(first.ID())
	req.False(ok)
}

func TestRegistry_Register_Rejects_Invalid_Input(t *testing.T) {
	req := require.New(t)
	reg := registry.New()

	_, err := reg.Register("", registrytest.NewHandle())
	req.ErrorIs(err, registry.ErrInvalidIdentity)

	_, err = reg.Register("   ", registrytest.NewHandle())
	req.ErrorIs(err, registry.ErrInvalidIdentity)

	_, err = reg.Register("alice", nil)
	req.ErrorIs(err, registry.ErrNilHandle)

	req.Zero(reg.Len())
}

func TestRegistry_Register_Trims_Identity(t *testing.T) {
	req := require.New(t)
	reg := registry.New()

	_, err := reg.Register("  alice ", registrytest.NewHandle())
	req.NoError(err)

	_, ok := reg.Lookup("alice")
	req.True(ok)
}

func TestRegistry_Register_Handle_Backing_Another_Identity(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	h := registrytest.NewHandle()

	_, err := reg.Register("alice", h)
	req.NoError(err)

	_, err = reg.Register("bob", h)
	req.ErrorIs(err, registry.ErrHandleInUse)
	req.Equal([]string{"alice"}, reg.Snapshot())
}

func TestRegistry_Remove_Is_Guarded_By_Handle(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	stale := registrytest.NewHandle()
	fresh := registrytest.NewHandle()

	_, _ = reg.Register("alice", stale)
	_, _ = reg.Register("alice", fresh)

	// When the superseded handle tries to remove the entry
	removed := reg.Remove("alice", stale)

	// Then nothing happens
	req.False(removed)
	got, ok := reg.Lookup("alice")
	req.True(ok)
	req.Equal(fresh.ID(), got.ID())

	// And the live handle removes it exactly once
	req.True(reg.Remove("alice", fresh))
	req.False(reg.Remove("alice", fresh))
	req.False(reg.Remove("alice", nil))
	_, ok = reg.Lookup("alice")
	req.False(ok)
}

func TestRegistry_RemoveByHandleID(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	h := registrytest.NewHandle()
	_, _ = reg.Register("alice", h)

	identity, ok := reg.RemoveByHandleID(h.ID())
	req.True(ok)
	req.Equal("alice", identity)

	// A second closure event for the same transport is a no-op
	_, ok = reg.RemoveByHandleID(h.ID())
	req.False(ok)
	req.Empty(reg.Snapshot())
}

func TestRegistry_Stale_Closure_After_Reconnect_Keeps_New_Handle(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	old := registrytest.NewHandle()
	reconnected := registrytest.NewHandle()

	// Given alice disconnects explicitly and reconnects before the old
	// transport closure is processed
	_, _ = reg.Register("alice", old)
	req.True(reg.Remove("alice", old))
	_, _ = reg.Register("alice", reconnected)

	// When the old transport closure arrives
	_, ok := reg.RemoveByHandleID(old.ID())

	// Then the new registration survives
	req.False(ok)
	got, ok := reg.Lookup("alice")
	req.True(ok)
	req.Equal(reconnected.ID(), got.ID())
}

func TestRegistry_Snapshot_And_Handles(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	a, b, c := registrytest.NewHandle(), registrytest.NewHandle(), registrytest.NewHandle()
	_, _ = reg.Register("carol", c)
	_, _ = reg.Register("alice", a)
	_, _ = reg.Register("bob", b)

	req.Equal([]string{"alice", "bob", "carol"}, reg.Snapshot())
	req.Len(reg.Handles(), 3)
}

func TestRegistry_Drain(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	_, _ = reg.Register("bob", registrytest.NewHandle())
	_, _ = reg.Register("alice", registrytest.NewHandle())

	entries := reg.Drain()

	req.Len(entries, 2)
	req.Equal("alice", entries[0].Identity)
	req.Equal("bob", entries[1].Identity)
	req.Zero(reg.Len())
	req.Empty(reg.Handles())
}

func TestRegistry_Concurrent_Register_Remove_Keeps_One_Handle_Per_Identity(t *testing.T) {
	req := require.New(t)
	reg := registry.New()

	const workers = 32
	const rounds = 200
	identities := []string{"alice", "bob", "carol"}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			identity := identities[w%len(identities)]
			for i := 0; i < rounds; i++ {
				h := registrytest.NewHandle()
				_, err := reg.Register(identity, h)
				if err != nil {
					t.Errorf("register: %v", err)
					return
				}
				if i%2 == 0 {
					reg.Remove(identity, h)
				} else {
					reg.RemoveByHandleID(h.ID())
				}
			}
		}(w)
	}
	wg.Wait()

	// Every remaining identity maps to exactly one handle, and every handle
	// id resolves back to that same identity.
	req.LessOrEqual(reg.Len(), len(identities))
	for _, identity := range reg.Snapshot() {
		h, ok := reg.Lookup(identity)
		req.True(ok)
		got, ok := reg.RemoveByHandleID(h.ID())
		req.True(ok)
		req.Equal(identity, got)
	}
	req.Zero(reg.Len())
}
