package mirror

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatrelay/internal/presence"
)

type fakePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakePublisher) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func TestNATSPublisher_PresenceChanged(t *testing.T) {
	req := require.New(t)
	fake := &fakePublisher{}
	p := newPublisher(fake, "")
	ev := presence.Event{Identity: "alice", Status: presence.Online, At: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	req.NoError(p.PresenceChanged(context.Background(), ev))

	req.Len(fake.msgs, 1)
	msg := fake.msgs[0]
	req.Equal(DefaultSubject, msg.Subject)
	req.Equal("alice", msg.Header.Get("Chatrelay-Identity"))
	req.Equal("online", msg.Header.Get("Chatrelay-Status"))

	var got presence.Event
	req.NoError(json.Unmarshal(msg.Data, &got))
	req.Equal(ev.Identity, got.Identity)
	req.Equal(ev.Status, got.Status)
	req.True(ev.At.Equal(got.At))
}

func TestNATSPublisher_Propagates_Errors(t *testing.T) {
	req := require.New(t)
	boom := errors.New("connection closed")
	p := newPublisher(&fakePublisher{err: boom}, "presence.test")

	err := p.PresenceChanged(context.Background(), presence.Event{Identity: "bob", Status: presence.Offline})
	req.Error(err)
	req.Equal(boom, errors.Cause(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req.ErrorIs(p.PresenceChanged(ctx, presence.Event{Identity: "bob"}), context.Canceled)
}
