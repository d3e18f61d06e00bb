package presence

import (
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/registry"
)

// Tracker is the presence state machine. An identity is ONLINE exactly while
// it has a registry entry.
//
// The tracker mutex serialises every registry mutation together with the
// enqueue of its broadcast, so clients observe presence events for an
// identity in the same order as the underlying transitions. Broadcast
// delivery is a non-blocking enqueue per handle; no socket write happens
// under the lock.
type Tracker struct {
	mu        sync.Mutex
	reg       *registry.Registry
	broadcast Broadcaster
	notifier  *Notifier
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithNotifier forwards every transition to the notifier's observers.
func WithNotifier(n *Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithMetrics records transitions and the online gauge on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker over reg that announces transitions through b.
func NewTracker(reg *registry.Registry, b Broadcaster, log *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		reg:       reg,
		broadcast: b,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect registers h for identity and sends h the online snapshot. Only a
// registration that finds no previous handle is an OFFLINE -> ONLINE
// transition and is broadcast, to every live handle except h itself.
// Replacing a handle is silent.
//
// The snapshot is enqueued before the lock is released, so every presence
// event h receives afterwards is newer than the snapshot.
func (t *Tracker) Connect(identity string, h registry.Handle) (Transition, error) {
	identity, err := registry.NormalizeIdentity(identity)
	if err != nil {
		return Transition{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	previous, err := t.reg.Register(identity, h)
	if err != nil {
		return Transition{}, err
	}
	t.snapshotLocked(h)

	if previous != nil {
		t.log.Debug("connection replaced",
			zap.String("identity", identity),
			zap.String("previous", previous.ID()),
			zap.String("handle", h.ID()))
		return Transition{Replaced: previous}, nil
	}

	t.emitLocked(Event{Identity: identity, Status: Online, At: t.now()}, t.othersLocked(h))
	return Transition{Online: true}, nil
}

// Disconnect removes identity if h is still its live handle and broadcasts
// the ONLINE -> OFFLINE transition. A stale handle changes nothing.
func (t *Tracker) Disconnect(identity string, h registry.Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.reg.Remove(identity, h) {
		return false
	}
	t.emitLocked(Event{Identity: identity, Status: Offline, At: t.now()}, t.reg.Handles())
	return true
}

// DisconnectHandle is Disconnect keyed by transport id, for closures where
// the identity is not known to the caller.
func (t *Tracker) DisconnectHandle(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	identity, ok := t.reg.RemoveByHandleID(id)
	if !ok {
		return "", false
	}
	t.emitLocked(Event{Identity: identity, Status: Offline, At: t.now()}, t.reg.Handles())
	return identity, true
}

// Status answers a point query from the registry.
func (t *Tracker) Status(identity string) Status {
	if _, ok := t.reg.Lookup(identity); ok {
		return Online
	}
	return Offline
}

// Online returns the identities currently online.
func (t *Tracker) Online() []string {
	return t.reg.Snapshot()
}

// Drain takes every identity offline for service teardown. Each offline
// event is broadcast to the handles that were still live at that point, and
// observers are notified. The drained handles are returned so the caller can
// force-close them.
func (t *Tracker) Drain() []registry.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.reg.Drain()
	handles := lo.Map(entries, func(e registry.Entry, _ int) registry.Handle { return e.Handle })

	for i, e := range entries {
		t.emitLocked(Event{Identity: e.Identity, Status: Offline, At: t.now()}, handles[i+1:])
	}
	return handles
}

func (t *Tracker) othersLocked(h registry.Handle) []registry.Handle {
	return lo.Filter(t.reg.Handles(), func(other registry.Handle, _ int) bool {
		return other.ID() != h.ID()
	})
}

func (t *Tracker) snapshotLocked(h registry.Handle) {
	if t.broadcast != nil {
		t.broadcast.SendSnapshot(h, t.reg.Snapshot())
	}
}

func (t *Tracker) emitLocked(ev Event, targets []registry.Handle) {
	t.metrics.PresenceTransition(string(ev.Status))
	t.metrics.SetOnline(t.reg.Len())

	t.log.Info("presence changed",
		zap.String("identity", ev.Identity),
		zap.String("status", string(ev.Status)),
		zap.Int("audience", len(targets)))

	if t.broadcast != nil && len(targets) > 0 {
		t.broadcast.BroadcastPresence(ev, targets)
	}
	t.notifier.Notify(ev)
}
