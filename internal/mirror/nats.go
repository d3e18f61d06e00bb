// Package mirror republishes presence transitions on a NATS subject so other
// services can follow presence without holding a websocket.
package mirror

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/Tyrowin/chatrelay/internal/presence"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "chatrelay.presence"

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher mirrors presence transitions onto a NATS subject.
type NATSPublisher struct {
	pub     msgPublisher
	subject string
}

// NewNATSPublisher publishes on subject through conn.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	return newPublisher(conn, subject)
}

func newPublisher(pub msgPublisher, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{pub: pub, subject: subject}
}

// Dial connects to url with reconnects enabled.
func Dial(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("chatrelay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "nats connect %s", url)
	}
	return nc, nil
}

func (p *NATSPublisher) message(ev presence.Event) (*nats.Msg, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Chatrelay-Identity", ev.Identity)
	msg.Header.Set("Chatrelay-Status", string(ev.Status))
	return msg, nil
}

func (p *NATSPublisher) PresenceChanged(ctx context.Context, ev presence.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := p.message(ev)
	if err != nil {
		return errors.Wrap(err, "encode presence event")
	}
	return errors.Wrapf(p.pub.PublishMsg(msg), "publish %s", p.subject)
}
