//go:generate go run go.uber.org/mock/mockgen -source=observer.go -destination=../mocks/mock_presence.go -package=mocks
package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/chatrelay/internal/metrics"
)

// Observer is told about every presence transition after it happened, in
// order. Status stores and event mirrors implement it.
type Observer interface {
	PresenceChanged(ctx context.Context, ev Event) error
}

// Notifier hands presence events to observers from a single goroutine so
// that each observer sees transitions in the order they occurred.
type Notifier struct {
	observers []Observer
	timeout   time.Duration
	log       *zap.Logger
	metrics   *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

// NewNotifier returns a notifier with a queue of buffer events. Each observer
// call gets timeout to complete.
func NewNotifier(log *zap.Logger, m *metrics.Metrics, buffer int, timeout time.Duration, observers ...Observer) *Notifier {
	if buffer <= 0 {
		buffer = 1024
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		observers: observers,
		timeout:   timeout,
		log:       log,
		metrics:   m,
		events:    make(chan Event, buffer),
		done:      make(chan struct{}),
	}
}

// Notify queues ev without blocking. It reports false when the event was
// dropped because the queue is full or the notifier is closed.
func (n *Notifier) Notify(ev Event) bool {
	if n == nil || len(n.observers) == 0 {
		return true
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return false
	}
	select {
	case n.events <- ev:
		return true
	default:
		n.metrics.ObserverEventDropped()
		n.log.Warn("presence observer queue full; dropping event",
			zap.String("identity", ev.Identity),
			zap.String("status", string(ev.Status)))
		return false
	}
}

// Run delivers queued events until Close is called and the queue is empty,
// or ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.events:
			if !ok {
				return
			}
			n.dispatch(ctx, ev)
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, ev Event) {
	for _, o := range n.observers {
		callCtx, cancel := context.WithTimeout(ctx, n.timeout)
		err := o.PresenceChanged(callCtx, ev)
		cancel()
		if err != nil {
			n.log.Error("presence observer failed",
				zap.String("identity", ev.Identity),
				zap.String("status", string(ev.Status)),
				zap.Error(err))
		}
	}
}

// Close stops accepting events. Run returns once the remaining queue is
// delivered.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	close(n.events)
}

// Done is closed when Run has returned.
func (n *Notifier) Done() <-chan struct{} {
	return n.done
}
