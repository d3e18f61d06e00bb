package relay

import "github.com/pkg/errors"

var (
	// ErrInvalidIdentity closes the connection: the identify payload was
	// empty, malformed, or did not match the authenticated principal.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrUnauthenticatedEvent is logged when an event arrives before
	// identify. The event is ignored and the connection stays open.
	ErrUnauthenticatedEvent = errors.New("event received before identification")
	// ErrStaleRemoval is logged when a disconnect names a handle that has
	// already been superseded. The newer connection is left untouched.
	ErrStaleRemoval = errors.New("stale removal")
	// ErrSessionClosed tells the transport to close a connection whose
	// session reached CLOSED.
	ErrSessionClosed = errors.New("session closed")
)
