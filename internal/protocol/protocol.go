// Package protocol defines the JSON frames exchanged between clients and the
// relay over a WebSocket connection.
//
// Every frame is an object with a "type" naming the event and an optional
// "payload" object:
//
//	{"type":"send-message","payload":{"conversationId":"c1","recipientIdentity":"bob","content":"hi"}}
package protocol

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Inbound events (connection -> relay).
const (
	EventIdentify    = "identify"
	EventCheckStatus = "check-status"
	EventSendMessage = "send-message"
	EventDisconnect  = "disconnect"
)

// Outbound events (relay -> connection).
const (
	EventOnlineSnapshot   = "online-snapshot"
	EventPresenceChanged  = "presence-changed"
	EventStatusReply      = "status-reply"
	EventMessageDelivered = "message-delivered"
	EventError            = "error"
)

// Error codes carried by EventError frames.
const (
	CodeInvalidIdentity = "invalid-identity"
	CodeInvalidPayload  = "invalid-payload"
)

// Decoding errors.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrInvalidPayload = errors.New("invalid payload")
)

var validate = validator.New()

// Frame is the envelope around every event.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Identify announces the identity behind a connection.
type Identify struct {
	Identity    string `json:"identity" validate:"required,max=128"`
	DisplayName string `json:"displayName" validate:"max=256"`
}

// CheckStatus asks for the presence of one identity.
type CheckStatus struct {
	TargetIdentity string `json:"targetIdentity" validate:"required"`
}

// SendMessage carries an optional timestamp; when it is absent the relay
// stamps the message with server time.
type SendMessage struct {
	ConversationID    string     `json:"conversationId" validate:"required"`
	RecipientIdentity string     `json:"recipientIdentity" validate:"required"`
	RecipientName     string     `json:"recipientName"`
	Content           string     `json:"content"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
}

// Disconnect ends the session explicitly. An empty Identity means the
// session's own.
type Disconnect struct {
	Identity string `json:"identity"`
}

// OnlineSnapshot lists the identities online when the receiver identified.
type OnlineSnapshot struct {
	Identities []string `json:"identities"`
}

// PresenceChanged announces one online or offline transition.
type PresenceChanged struct {
	Identity string `json:"identity"`
	Status   string `json:"status"`
}

// StatusReply answers CheckStatus.
type StatusReply struct {
	TargetIdentity string `json:"targetIdentity"`
	Status         string `json:"status"`
}

// MessageDelivered is a routed message as seen by the recipient.
type MessageDelivered struct {
	ConversationID string    `json:"conversationId"`
	SenderIdentity string    `json:"senderIdentity"`
	SenderName     string    `json:"senderName"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// Error is sent before the relay closes a connection or rejects a payload.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decode parses a raw frame. The payload is left undecoded.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, errors.Wrap(ErrMalformedFrame, err.Error())
	}
	if f.Type == "" {
		return Frame{}, errors.Wrap(ErrMalformedFrame, "missing type")
	}
	return f, nil
}

// DecodePayload unmarshals the frame payload into dst and validates it.
func DecodePayload(f Frame, dst any) error {
	payload := f.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return errors.Wrapf(ErrInvalidPayload, "%s: %v", f.Type, err)
	}
	if err := validate.Struct(dst); err != nil {
		return errors.Wrapf(ErrInvalidPayload, "%s: %v", f.Type, err)
	}
	return nil
}

// Encode marshals an outbound event.
func Encode(eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s payload", eventType)
	}
	return json.Marshal(Frame{Type: eventType, Payload: body})
}
