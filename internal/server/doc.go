// Package server implements the HTTP and WebSocket surface of the relay.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, and HTTP handlers. Presence and routing
// decisions are made by the relay package; this package only moves frames.
package server
