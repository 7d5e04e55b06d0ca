// Package server routing: wires the HTTP surface into a ServeMux.
package server

import "net/http"

// SetupRoutes configures and returns the application's ServeMux: health
// check, WebSocket endpoint, message history, and the test page.
func SetupRoutes(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", h.Health)
	mux.HandleFunc("GET /api/messages/{userId}", h.Messages)
	mux.HandleFunc("/ws", h.WebSocket)
	mux.HandleFunc("/test", h.TestPage)
	return mux
}
