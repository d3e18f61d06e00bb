// Package presence derives online/offline transitions from connection
// registry mutations and announces them to connected clients and to
// out-of-band observers.
package presence

import (
	"time"

	"github.com/Tyrowin/chatrelay/internal/registry"
)

// Status is the presence of an identity. Offline is the implicit state of any
// identity absent from the registry.
type Status string

// Presence values carried on the wire.
const (
	Online  Status = "online"
	Offline Status = "offline"
)

// Event is an ephemeral presence transition.
type Event struct {
	Identity string    `json:"identity"`
	Status   Status    `json:"status"`
	At       time.Time `json:"at"`
}

// Broadcaster delivers presence to live handles. The tracker calls it with
// its mutex held, so implementations must not block on slow handles.
type Broadcaster interface {
	// BroadcastPresence delivers one transition to targets.
	BroadcastPresence(ev Event, targets []registry.Handle)
	// SendSnapshot delivers the identities online at registration time to the
	// handle that just registered.
	SendSnapshot(h registry.Handle, identities []string)
}

// Transition describes the outcome of Tracker.Connect.
type Transition struct {
	// Online is true when the identity went from offline to online.
	Online bool
	// Replaced is the handle superseded by the new registration, if any.
	Replaced registry.Handle
}
