package relay

import (
	"go.uber.org/zap"

	"github.com/Tyrowin/chatrelay/internal/presence"
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/registry"
)

// Broadcaster sends presence frames to connections. A handle that cannot
// accept a presence-changed frame is force-closed; its own closure then takes
// it offline.
type Broadcaster struct {
	log *zap.Logger
}

// NewBroadcaster creates a Broadcaster that logs delivery problems to log.
func NewBroadcaster(log *zap.Logger) *Broadcaster {
	return &Broadcaster{log: log}
}

// BroadcastPresence encodes ev once and enqueues it on every target.
func (b *Broadcaster) BroadcastPresence(ev presence.Event, targets []registry.Handle) {
	frame, err := protocol.Encode(protocol.EventPresenceChanged, protocol.PresenceChanged{
		Identity: ev.Identity,
		Status:   string(ev.Status),
	})
	if err != nil {
		b.log.Error("encoding presence event failed", zap.Error(err))
		return
	}

	for _, h := range targets {
		if err := h.Deliver(frame); err != nil {
			b.log.Warn("closing connection that cannot keep up",
				zap.String("handle", h.ID()),
				zap.Error(err))
			_ = h.Close()
		}
	}
}

// SendSnapshot enqueues an online-snapshot for a handle that just identified.
func (b *Broadcaster) SendSnapshot(h registry.Handle, identities []string) {
	frame, err := protocol.Encode(protocol.EventOnlineSnapshot, protocol.OnlineSnapshot{Identities: identities})
	if err != nil {
		b.log.Error("encoding online snapshot failed", zap.Error(err))
		return
	}
	if err := h.Deliver(frame); err != nil {
		b.log.Debug("online snapshot dropped", zap.String("handle", h.ID()), zap.Error(err))
	}
}
