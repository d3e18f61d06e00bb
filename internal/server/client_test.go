package server

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestClient(buffer int) *Client {
	cfg := NewConfig()
	cfg.SendBufferSize = buffer
	return NewClient(nil, nil, "127.0.0.1:1234", "", cfg)
}

func TestClient_Deliver_Queues_Frames(t *testing.T) {
	req := require.New(t)
	c := newTestClient(2)

	req.NotEmpty(c.ID())
	req.NoError(c.Deliver([]byte("one")))
	req.NoError(c.Deliver([]byte("two")))

	req.Equal([]byte("one"), <-c.GetSendChan())
	req.Equal([]byte("two"), <-c.GetSendChan())
}

func TestClient_Deliver_Full_Buffer(t *testing.T) {
	req := require.New(t)
	c := newTestClient(1)

	req.NoError(c.Deliver([]byte("one")))
	err := c.Deliver([]byte("two"))

	req.True(errors.Is(err, errSendBufferFull))
	req.False(c.isClosed())
}

func TestClient_Close_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	c := newTestClient(4)
	req.NoError(c.Deliver([]byte("queued")))

	req.NoError(c.Close())
	req.NoError(c.Close())
	req.True(c.isClosed())

	// Frames queued before Close are still drained by the write pump.
	msg, ok := <-c.GetSendChan()
	req.True(ok)
	req.Equal([]byte("queued"), msg)
	_, ok = <-c.GetSendChan()
	req.False(ok)

	req.True(errors.Is(c.Deliver([]byte("late")), errClientClosed))
}

func TestClient_Concurrent_Deliver_And_Close(t *testing.T) {
	c := newTestClient(8)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Deliver([]byte("x"))
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Close()
	}()

	require.NotPanics(t, wg.Wait)
}

func TestClient_Unique_IDs(t *testing.T) {
	require.NotEqual(t, newTestClient(1).ID(), newTestClient(1).ID())
}
