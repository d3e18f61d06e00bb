// Package server defines shared helpers that are reused across client and
// hub logic.
package server

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("send buffer full")
	// ErrHubClosed is returned when a connection arrives after shutdown began.
	ErrHubClosed = errors.New("hub closed")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
