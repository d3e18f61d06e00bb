package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		typ     string
	}{
		{name: "identify", raw: `{"type":"identify","payload":{"identity":"alice"}}`, typ: EventIdentify},
		{name: "no payload", raw: `{"type":"disconnect"}`, typ: EventDisconnect},
		{name: "not json", raw: `hello`, wantErr: true},
		{name: "missing type", raw: `{"payload":{}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode([]byte(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedFrame)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.typ, f.Type)
		})
	}
}

func TestDecodePayload_Validates(t *testing.T) {
	req := require.New(t)

	f, err := Decode([]byte(`{"type":"identify","payload":{"identity":""}}`))
	req.NoError(err)
	var id Identify
	req.ErrorIs(DecodePayload(f, &id), ErrInvalidPayload)

	f, err = Decode([]byte(`{"type":"send-message","payload":{"conversationId":"c1","content":"hi"}}`))
	req.NoError(err)
	var msg SendMessage
	req.ErrorIs(DecodePayload(f, &msg), ErrInvalidPayload)

	f, err = Decode([]byte(`{"type":"check-status","payload":"oops"}`))
	req.NoError(err)
	var cs CheckStatus
	req.ErrorIs(DecodePayload(f, &cs), ErrInvalidPayload)
}

func TestDecodePayload_SendMessage_Timestamp(t *testing.T) {
	req := require.New(t)

	f, err := Decode([]byte(`{"type":"send-message","payload":{"conversationId":"c1","recipientIdentity":"bob","content":"hi","timestamp":"2024-05-01T10:00:00Z"}}`))
	req.NoError(err)

	var msg SendMessage
	req.NoError(DecodePayload(f, &msg))
	req.NotNil(msg.Timestamp)
	req.True(msg.Timestamp.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	f, _ = Decode([]byte(`{"type":"send-message","payload":{"conversationId":"c1","recipientIdentity":"bob"}}`))
	msg = SendMessage{}
	req.NoError(DecodePayload(f, &msg))
	req.Nil(msg.Timestamp)
}

func TestDecodePayload_Empty_Payload(t *testing.T) {
	f, err := Decode([]byte(`{"type":"disconnect"}`))
	require.NoError(t, err)

	var d Disconnect
	require.NoError(t, DecodePayload(f, &d))
	require.Empty(t, d.Identity)
}

func TestEncode(t *testing.T) {
	req := require.New(t)

	raw, err := Encode(EventPresenceChanged, PresenceChanged{Identity: "alice", Status: "online"})
	req.NoError(err)

	var generic map[string]any
	req.NoError(json.Unmarshal(raw, &generic))
	req.Equal(EventPresenceChanged, generic["type"])
	payload, ok := generic["payload"].(map[string]any)
	req.True(ok)
	req.Equal("alice", payload["identity"])
	req.Equal("online", payload["status"])
}
