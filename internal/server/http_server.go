// Package server constructs the HTTP service with production timeouts.
package server

import (
	"net/http"
	"time"
)

// createHTTPServer configures an HTTP server with the specified port and
// handler. Hijacked websocket connections are not bound by these timeouts.
func createHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
