// Package relay wires inbound protocol events from each connection to the
// presence tracker and the message router, and emits the outbound events.
//
// Each connection owns a Session and calls Dispatch from its own read loop,
// so per-connection events are handled sequentially while different
// connections run concurrently. Shared state lives only in the registry.
package relay

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/presence"
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/registry"
	"github.com/Tyrowin/chatrelay/internal/router"
)

// Relay dispatches protocol events for every connection of one service
// instance.
type Relay struct {
	tracker *presence.Tracker
	router  *router.Router
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Relay over tracker and r. m may be nil.
func New(tracker *presence.Tracker, r *router.Router, log *zap.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		tracker: tracker,
		router:  r,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Dispatch handles one raw inbound frame. A non-nil error means the transport
// must close the connection: ErrInvalidIdentity after a rejected identify,
// ErrSessionClosed after an explicit disconnect. Every other problem is
// logged and the connection stays open.
func (r *Relay) Dispatch(s *Session, raw []byte) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}

	f, err := protocol.Decode(raw)
	if err != nil {
		r.log.Warn("discarding malformed frame",
			zap.String("handle", s.handle.ID()),
			zap.Error(err))
		return nil
	}

	if s.state == StateUnidentified {
		if f.Type != protocol.EventIdentify {
			r.metrics.UnidentifiedEvent()
			r.log.Warn("ignoring event",
				zap.String("handle", s.handle.ID()),
				zap.String("event", f.Type),
				zap.Error(ErrUnauthenticatedEvent))
			return nil
		}
		return r.identify(s, f)
	}

	switch f.Type {
	case protocol.EventCheckStatus:
		r.checkStatus(s, f)
	case protocol.EventSendMessage:
		r.sendMessage(s, f)
	case protocol.EventDisconnect:
		return r.disconnect(s, f)
	case protocol.EventIdentify:
		r.log.Debug("ignoring repeated identify",
			zap.String("identity", s.identity),
			zap.String("handle", s.handle.ID()))
	default:
		r.log.Warn("unknown event",
			zap.String("identity", s.identity),
			zap.String("event", f.Type))
	}
	return nil
}

// Closed handles transport-level closure. The registry entry is removed only
// if it is still backed by this session's handle.
func (r *Relay) Closed(s *Session) {
	s.state = StateClosed
	if identity, ok := r.tracker.DisconnectHandle(s.handle.ID()); ok {
		r.log.Debug("connection closed", zap.String("identity", identity), zap.String("handle", s.handle.ID()))
	}
}

// Online returns the identities currently online.
func (r *Relay) Online() []string {
	return r.tracker.Online()
}

// Drain takes every identity offline and force-closes its connection.
func (r *Relay) Drain() int {
	handles := r.tracker.Drain()
	for _, h := range handles {
		if err := h.Close(); err != nil {
			r.log.Debug("closing drained connection", zap.String("handle", h.ID()), zap.Error(err))
		}
	}
	return len(handles)
}

func (r *Relay) identify(s *Session, f protocol.Frame) error {
	var p protocol.Identify
	if err := protocol.DecodePayload(f, &p); err != nil {
		return r.reject(s, err.Error())
	}

	identity, err := registry.NormalizeIdentity(p.Identity)
	if err != nil {
		return r.reject(s, "identity is empty")
	}
	if s.principal != "" && identity != s.principal {
		return r.reject(s, "identity does not match credentials")
	}

	tr, err := r.tracker.Connect(identity, s.handle)
	if err != nil {
		return r.reject(s, err.Error())
	}

	s.identity = identity
	s.displayName = p.DisplayName
	if s.displayName == "" {
		s.displayName = identity
	}
	s.state = StateIdentified

	if tr.Replaced != nil {
		r.log.Info("identity reconnected",
			zap.String("identity", identity),
			zap.String("handle", s.handle.ID()),
			zap.String("replaced", tr.Replaced.ID()))
	}
	// Connect has already queued the online snapshot on s.handle.
	return nil
}

func (r *Relay) checkStatus(s *Session, f protocol.Frame) {
	var p protocol.CheckStatus
	if err := protocol.DecodePayload(f, &p); err != nil {
		r.invalidPayload(s, err)
		return
	}
	target, err := registry.NormalizeIdentity(p.TargetIdentity)
	if err != nil {
		r.invalidPayload(s, errors.Wrap(err, "targetIdentity"))
		return
	}
	r.reply(s, protocol.EventStatusReply, protocol.StatusReply{
		TargetIdentity: target,
		Status:         string(r.tracker.Status(target)),
	})
}

func (r *Relay) sendMessage(s *Session, f protocol.Frame) {
	var p protocol.SendMessage
	if err := protocol.DecodePayload(f, &p); err != nil {
		r.invalidPayload(s, err)
		return
	}
	recipient, err := registry.NormalizeIdentity(p.RecipientIdentity)
	if err != nil {
		r.invalidPayload(s, errors.Wrap(err, "recipientIdentity"))
		return
	}

	ts := r.now().UTC()
	if p.Timestamp != nil && !p.Timestamp.IsZero() {
		ts = *p.Timestamp
	}

	// The outcome is deliberately not reported back to the sender.
	outcome := r.router.Route(router.Envelope{
		ConversationID:    p.ConversationID,
		SenderIdentity:    s.identity,
		SenderName:        s.displayName,
		RecipientIdentity: recipient,
		RecipientName:     p.RecipientName,
		Content:           p.Content,
		Timestamp:         ts,
	})
	r.log.Debug("message routed",
		zap.String("sender", s.identity),
		zap.String("recipient", recipient),
		zap.Stringer("outcome", outcome))
}

func (r *Relay) disconnect(s *Session, f protocol.Frame) error {
	var p protocol.Disconnect
	if err := protocol.DecodePayload(f, &p); err != nil {
		r.invalidPayload(s, err)
		return nil
	}
	if requested := strings.TrimSpace(p.Identity); requested != "" && requested != s.identity {
		r.log.Warn("ignoring disconnect for another identity",
			zap.String("identity", s.identity),
			zap.String("requested", p.Identity))
		return nil
	}

	if !r.tracker.Disconnect(s.identity, s.handle) {
		r.log.Debug("disconnect ignored",
			zap.String("identity", s.identity),
			zap.String("handle", s.handle.ID()),
			zap.Error(ErrStaleRemoval))
	}
	s.state = StateClosed
	return ErrSessionClosed
}

func (r *Relay) reject(s *Session, reason string) error {
	r.log.Warn("rejecting identify",
		zap.String("handle", s.handle.ID()),
		zap.String("principal", s.principal),
		zap.String("reason", reason))
	r.reply(s, protocol.EventError, protocol.Error{Code: protocol.CodeInvalidIdentity, Message: reason})
	s.state = StateClosed
	return errors.Wrap(ErrInvalidIdentity, reason)
}

func (r *Relay) invalidPayload(s *Session, err error) {
	r.log.Warn("invalid payload", zap.String("identity", s.identity), zap.Error(err))
	r.reply(s, protocol.EventError, protocol.Error{Code: protocol.CodeInvalidPayload, Message: err.Error()})
}

func (r *Relay) reply(s *Session, eventType string, payload any) {
	frame, err := protocol.Encode(eventType, payload)
	if err != nil {
		r.log.Error("encoding reply failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	if err := s.handle.Deliver(frame); err != nil {
		r.log.Debug("reply dropped",
			zap.String("handle", s.handle.ID()),
			zap.String("event", eventType),
			zap.Error(err))
	}
}
