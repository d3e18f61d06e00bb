// Package registrytest provides an in-memory registry.Handle for tests.
package registrytest

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrClosed is returned by Deliver after Close.
var ErrClosed = errors.New("handle closed")

// Handle records delivered frames instead of writing them to a socket.
type Handle struct {
	id string

	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	capacity int
}

// NewHandle returns an open handle with a random id and unbounded buffer.
func NewHandle() *Handle {
	return &Handle{id: uuid.NewString()}
}

// NewBoundedHandle returns a handle that rejects deliveries once it holds
// capacity frames, like a client whose send buffer is full.
func NewBoundedHandle(capacity int) *Handle {
	return &Handle{id: uuid.NewString(), capacity: capacity}
}

// ID returns the handle id.
func (h *Handle) ID() string { return h.id }

// Deliver records frame.
func (h *Handle) Deliver(frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.capacity > 0 && len(h.frames) >= h.capacity {
		return errors.New("buffer full")
	}
	h.frames = append(h.frames, append([]byte(nil), frame...))
	return nil
}

// Close marks the handle closed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Frames returns a copy of every delivered frame.
func (h *Handle) Frames() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.frames...)
}

// Reset forgets delivered frames.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = nil
}

// Frame is the decoded shape of a delivered frame.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decoded returns delivered frames decoded into Frame values. Frames that do
// not decode are skipped.
func (h *Handle) Decoded() []Frame {
	var out []Frame
	for _, raw := range h.Frames() {
		var f Frame
		if err := json.Unmarshal(raw, &f); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// OfType returns decoded frames with the given type.
func (h *Handle) OfType(typ string) []Frame {
	var out []Frame
	for _, f := range h.Decoded() {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}
