// Package server HTTP lifecycle: construction and graceful shutdown of the
// ChatVerse HTTP service.
package server

import (
	"context"
	"net/http"
	"time"
)

// CreateServer creates an HTTP server with production timeout settings. The
// read/write timeouts do not apply to hijacked WebSocket connections, whose
// deadlines the client pumps manage themselves.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer begins listening and blocks until the server exits.
func StartServer(server *http.Server) error {
	return server.ListenAndServe()
}

// ShutdownServer gracefully stops the HTTP server, waiting up to timeout for
// active requests to drain.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return server.Shutdown(ctx)
}
