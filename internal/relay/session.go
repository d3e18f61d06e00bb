package relay

import (
	"github.com/Tyrowin/chatrelay/internal/registry"
)

// State is the lifecycle of one connection instance.
type State int

// Session states.
const (
	StateUnidentified State = iota
	StateIdentified
	StateClosed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateUnidentified:
		return "unidentified"
	case StateIdentified:
		return "identified"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the relay-side state of one connection. It is owned by the
// connection's read loop and must not be shared between goroutines.
type Session struct {
	handle      registry.Handle
	principal   string
	identity    string
	displayName string
	state       State
}

// NewSession starts a session in the UNIDENTIFIED state. principal is the
// identity vouched for by the auth collaborator, or empty when the
// connection was accepted without credentials.
func NewSession(h registry.Handle, principal string) *Session {
	return &Session{handle: h, principal: principal}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Identity returns the identified identity, or empty before identify.
func (s *Session) Identity() string { return s.identity }

// DisplayName returns the announced display name, defaulting to Identity.
func (s *Session) DisplayName() string { return s.displayName }

// Handle returns the connection behind the session.
func (s *Session) Handle() registry.Handle { return s.handle }

// Principal returns the identity vouched for by the authenticator.
func (s *Session) Principal() string { return s.principal }
