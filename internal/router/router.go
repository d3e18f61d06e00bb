// Package router delivers point-to-point chat messages to the recipient's
// live connection, if there is one. Delivery is fire-and-forget and
// at-most-once: nothing is queued for offline recipients and nothing is
// retried.
package router

import (
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/registry"
)

// DropReason explains why a message was not delivered.
type DropReason string

// Drop reasons.
const (
	RecipientOffline DropReason = "recipient-offline"
	DeliveryFailed   DropReason = "delivery-failed"
	EncodingFailed   DropReason = "encoding-failed"
)

// Envelope is a message in transit. The relay does not persist it.
type Envelope struct {
	ConversationID    string
	SenderIdentity    string
	SenderName        string
	RecipientIdentity string
	RecipientName     string
	Content           string
	Timestamp         time.Time
}

// Outcome is the result of routing one envelope.
type Outcome struct {
	Delivered bool
	Reason    DropReason
}

// String returns "delivered" or the drop reason.
func (o Outcome) String() string {
	if o.Delivered {
		return "delivered"
	}
	return string(o.Reason)
}

// Lookup resolves an identity to its live handle.
type Lookup interface {
	Lookup(identity string) (registry.Handle, bool)
}

// Router delivers envelopes to the live handle of their recipient.
type Router struct {
	lookup  Lookup
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Router resolving recipients through lookup. m may be nil.
func New(lookup Lookup, log *zap.Logger, m *metrics.Metrics) *Router {
	return &Router{lookup: lookup, log: log, metrics: m}
}

// Route delivers env verbatim to the recipient's handle.
func (r *Router) Route(env Envelope) Outcome {
	outcome := r.route(env)
	r.metrics.MessageRouted(outcome.String())
	return outcome
}

func (r *Router) route(env Envelope) Outcome {
	h, ok := r.lookup.Lookup(env.RecipientIdentity)
	if !ok {
		r.log.Debug("recipient offline",
			zap.String("sender", env.SenderIdentity),
			zap.String("recipient", env.RecipientIdentity),
			zap.String("conversation", env.ConversationID))
		return Outcome{Reason: RecipientOffline}
	}

	frame, err := protocol.Encode(protocol.EventMessageDelivered, protocol.MessageDelivered{
		ConversationID: env.ConversationID,
		SenderIdentity: env.SenderIdentity,
		SenderName:     env.SenderName,
		Content:        env.Content,
		Timestamp:      env.Timestamp,
	})
	if err != nil {
		r.log.Error("encoding message failed", zap.Error(err))
		return Outcome{Reason: EncodingFailed}
	}

	// The handle may have been invalidated between lookup and delivery.
	if err := h.Deliver(frame); err != nil {
		r.log.Debug("delivery failed",
			zap.String("recipient", env.RecipientIdentity),
			zap.String("handle", h.ID()),
			zap.Error(err))
		return Outcome{Reason: DeliveryFailed}
	}

	r.log.Debug("message delivered",
		zap.String("sender", env.SenderIdentity),
		zap.String("recipient", env.RecipientIdentity),
		zap.String("conversation", env.ConversationID))
	return Outcome{Delivered: true}
}
