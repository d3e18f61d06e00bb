// Package registry maps user identities to the live connection currently
// serving them.
//
// Locking discipline: a single RWMutex guards both the identity index and the
// handle-id index. Every mutation updates the two indexes together under the
// write lock, so for any identity register/remove calls are totally ordered.
// No method performs I/O on a Handle while the lock is held; callers receive
// copies and deliver after the lock is released.
package registry

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Registration errors.
var (
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrNilHandle       = errors.New("nil connection handle")
	ErrHandleInUse     = errors.New("handle already backs another identity")
)

// Handle is a live bidirectional connection. Implementations must make
// Deliver non-blocking and return an error once the handle is invalidated.
type Handle interface {
	ID() string
	Deliver(frame []byte) error
	Close() error
}

// Entry is a single registration.
type Entry struct {
	Identity     string
	Handle       Handle
	RegisteredAt time.Time
}

// Registry is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]Entry
	byHandle   map[string]string // handle id -> identity
	now        func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byIdentity: make(map[string]Entry),
		byHandle:   make(map[string]string),
		now:        time.Now,
	}
}

// NormalizeIdentity trims surrounding whitespace. An identity that is empty
// after trimming is invalid.
func NormalizeIdentity(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", ErrInvalidIdentity
	}
	return identity, nil
}

// Register inserts or replaces the entry for identity. The previous handle is
// returned when the identity was already registered; a nil previous handle
// means this registration took the identity from offline to online.
func (r *Registry) Register(identity string, h Handle) (Handle, error) {
	identity, err := NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrNilHandle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byHandle[h.ID()]; ok && owner != identity {
		return nil, errors.Wrapf(ErrHandleInUse, "handle %s is registered as %q", h.ID(), owner)
	}

	var previous Handle
	if old, ok := r.byIdentity[identity]; ok {
		previous = old.Handle
		delete(r.byHandle, old.Handle.ID())
	}

	r.byIdentity[identity] = Entry{Identity: identity, Handle: h, RegisteredAt: r.now()}
	r.byHandle[h.ID()] = identity
	return previous, nil
}

// Lookup returns the handle currently registered for identity.
func (r *Registry) Lookup(identity string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byIdentity[identity]
	if !ok {
		return nil, false
	}
	return e.Handle, true
}

// Entry returns the full registration for identity.
func (r *Registry) Entry(identity string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byIdentity[identity]
	return e, ok
}

// Remove deletes the entry for identity only if it is still backed by h.
// It reports whether an entry was deleted. A superseded or already removed
// handle is a no-op.
func (r *Registry) Remove(identity string, h Handle) bool {
	if h == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byIdentity[identity]
	if !ok || e.Handle.ID() != h.ID() {
		return false
	}
	delete(r.byIdentity, identity)
	delete(r.byHandle, h.ID())
	return true
}

// RemoveByHandleID deletes the entry backed by the transport id, returning
// the identity it freed. It returns false when the handle was never
// registered or has since been replaced.
func (r *Registry) RemoveByHandleID(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byHandle[id]
	if !ok {
		return "", false
	}
	delete(r.byHandle, id)
	delete(r.byIdentity, identity)
	return identity, true
}

// Snapshot returns the registered identities in sorted order.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	identities := lo.Keys(r.byIdentity)
	r.mu.RUnlock()

	slices.Sort(identities)
	return identities
}

// Handles returns the live handles.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.MapToSlice(r.byIdentity, func(_ string, e Entry) Handle {
		return e.Handle
	})
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}

// Drain removes every entry and returns them sorted by identity.
func (r *Registry) Drain() []Entry {
	r.mu.Lock()
	entries := lo.Values(r.byIdentity)
	r.byIdentity = make(map[string]Entry)
	r.byHandle = make(map[string]string)
	r.mu.Unlock()

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Identity, b.Identity)
	})
	return entries
}
