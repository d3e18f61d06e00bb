// Package testhelpers provides common utilities for testing the relay over
// real websocket connections.
//
// It starts a fully wired server behind httptest, dials clients with an
// allowed origin, and reads protocol frames with deadlines so that a missing
// event fails the test instead of hanging it.
package testhelpers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/server"
)

// TestOrigin is allowed by the default test configuration.
const TestOrigin = "http://localhost:8080"

// ReadTimeout bounds every expected read.
const ReadTimeout = 2 * time.Second

// Env is a running relay behind an httptest server.
type Env struct {
	Server *server.Server
	HTTP   *httptest.Server
	URL    string
	WSURL  string
}

// StartServer builds and starts a relay. customize may adjust the config
// before the server is built. The server is shut down when the test ends.
func StartServer(t *testing.T, customize func(cfg *server.Config), opts server.Options) *Env {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{TestOrigin}
	cfg.RateLimitBurst = 100
	cfg.ShutdownTimeout = 5 * time.Second
	if customize != nil {
		customize(&cfg)
	}

	srv := server.New(cfg, zap.NewNop(), opts)
	srv.Start()
	ts := httptest.NewServer(srv.Handler())

	env := &Env{
		Server: srv,
		HTTP:   ts,
		URL:    ts.URL,
		WSURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
	t.Cleanup(env.Close)
	return env
}

// Close stops the relay and the HTTP listener. It is safe to call twice.
func (e *Env) Close() {
	if e.HTTP == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.Server.Shutdown(ctx)
	e.HTTP.Close()
	e.HTTP = nil
}

// Client is a test websocket client speaking the relay protocol. A
// background goroutine reads frames so that waiting with a timeout never
// poisons the connection.
type Client struct {
	t      *testing.T
	Conn   *websocket.Conn
	frames chan protocol.Frame
	done   chan struct{}
	err    error
}

// Dial connects to the relay with the test origin and optional extra headers.
func Dial(t *testing.T, wsURL string, header http.Header) (*Client, *http.Response, error) {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	h := http.Header{}
	h.Set("Origin", TestOrigin)
	for k, v := range header {
		h[k] = v
	}

	conn, resp, err := dialer.Dial(wsURL, h)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, resp, err
	}

	c := &Client{
		t:      t,
		Conn:   conn,
		frames: make(chan protocol.Frame, 256),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	t.Cleanup(func() { _ = conn.Close() })
	return c, resp, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			c.err = err
			return
		}
		var f protocol.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.err = err
			return
		}
		c.frames <- f
	}
}

// Connect dials the relay and fails the test on error.
func Connect(t *testing.T, wsURL string) *Client {
	t.Helper()
	c, _, err := Dial(t, wsURL, nil)
	require.NoError(t, err)
	return c
}

// ConnectAs dials, identifies and returns the client with its snapshot.
func ConnectAs(t *testing.T, wsURL, identity string) (*Client, protocol.OnlineSnapshot) {
	t.Helper()
	c := Connect(t, wsURL)
	c.Send(protocol.EventIdentify, protocol.Identify{Identity: identity})

	var snap protocol.OnlineSnapshot
	c.ExpectPayload(protocol.EventOnlineSnapshot, &snap)
	return c, snap
}

// Send writes one protocol frame.
func (c *Client) Send(eventType string, payload any) {
	c.t.Helper()
	raw, err := protocol.Encode(eventType, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.Conn.WriteMessage(websocket.TextMessage, raw))
}

// SendRaw writes raw bytes as a text message.
func (c *Client) SendRaw(data []byte) error {
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Read returns the next frame. ok is false when nothing arrived within
// timeout or the connection is gone.
func (c *Client) Read(timeout time.Duration) (protocol.Frame, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-c.frames:
		return f, true
	case <-c.done:
		select {
		case f := <-c.frames:
			return f, true
		default:
			return protocol.Frame{}, false
		}
	case <-timer.C:
		return protocol.Frame{}, false
	}
}

// Expect reads frames until one of eventType arrives, skipping others.
func (c *Client) Expect(eventType string) protocol.Frame {
	c.t.Helper()
	deadline := time.Now().Add(ReadTimeout)
	for {
		remaining := time.Until(deadline)
		require.True(c.t, remaining > 0, "timed out waiting for %s", eventType)
		f, ok := c.Read(remaining)
		require.True(c.t, ok, "no %s received (read error: %v)", eventType, c.readErr())
		if f.Type == eventType {
			return f
		}
	}
}

// ExpectPayload is Expect followed by decoding the payload into dst.
func (c *Client) ExpectPayload(eventType string, dst any) {
	c.t.Helper()
	f := c.Expect(eventType)
	require.NoError(c.t, json.Unmarshal(f.Payload, dst))
}

// ExpectPresence waits for the next presence-changed frame.
func (c *Client) ExpectPresence() protocol.PresenceChanged {
	c.t.Helper()
	var p protocol.PresenceChanged
	c.ExpectPayload(protocol.EventPresenceChanged, &p)
	return p
}

// Collect reads every frame that arrives within window.
func (c *Client) Collect(window time.Duration) []protocol.Frame {
	var frames []protocol.Frame
	deadline := time.Now().Add(window)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return frames
		}
		f, ok := c.Read(remaining)
		if !ok {
			return frames
		}
		frames = append(frames, f)
	}
}

// ExpectNone fails if any frame of eventType arrives within window.
func (c *Client) ExpectNone(eventType string, window time.Duration) {
	c.t.Helper()
	for _, f := range c.Collect(window) {
		require.NotEqual(c.t, eventType, f.Type, "unexpected %s: %s", f.Type, string(f.Payload))
	}
}

// ExpectClosed waits until the server closes the connection.
func (c *Client) ExpectClosed() {
	c.t.Helper()
	select {
	case <-c.done:
	case <-time.After(ReadTimeout):
		require.Fail(c.t, "connection was not closed by the server")
	}
}

func (c *Client) readErr() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close sends a normal close frame and closes the socket.
func (c *Client) Close() {
	_ = c.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.Conn.Close()
}

// Drop closes the socket without a close frame, like a lost network.
func (c *Client) Drop() {
	_ = c.Conn.UnderlyingConn().Close()
}

// Get performs an HTTP GET with a short timeout.
func Get(t *testing.T, url string) *http.Response {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// Eventually retries cond until it holds or ReadTimeout elapses.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, ReadTimeout, 10*time.Millisecond, msg)
}
