// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the online snapshot.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// handleWebSocket authenticates the upgrade request, upgrades it, and hands
// the connection to the hub, which launches the pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	principal, err := s.auth.Authenticate(r)
	if err != nil {
		s.log.Warn("rejecting websocket upgrade", zap.String("addr", r.RemoteAddr), zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("addr", r.RemoteAddr), zap.Error(err))
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, principal.Identity, s.cfg)
	if err := s.hub.Register(client); err != nil {
		client.log.Info("refusing connection during shutdown")
		_ = conn.Close()
	}
}

// handleHealth provides a simple health check endpoint that returns server status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "chatrelay is running!")
}

type onlineResponse struct {
	Identities []string `json:"identities"`
	Count      int      `json:"count"`
}

// handleOnline returns the identities currently online.
func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
		return
	}

	online := s.relay.Online()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(onlineResponse{Identities: online, Count: len(online)}); err != nil {
		s.log.Warn("writing online snapshot", zap.Error(err))
	}
}
