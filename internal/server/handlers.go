// Package server HTTP handlers: the WebSocket upgrade guarded by the
// connection gate, the authenticated history fetch, the health check, and
// the built-in test page.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/codeinmyveins/chatverse/internal/logging"
	"github.com/codeinmyveins/chatverse/internal/storage/messages"
	"github.com/gorilla/websocket"
)

// Handlers bundles the HTTP surface of the realtime service.
type Handlers struct {
	hub      *Hub
	gate     *ConnectionGate
	messages messages.Repository
	logger   logging.Logger
	upgrader websocket.Upgrader
}

// NewHandlers wires the handlers to the hub, gate, and message store.
func NewHandlers(hub *Hub, gate *ConnectionGate, store messages.Repository, logger logging.Logger) *Handlers {
	h := &Handlers{
		hub:      hub,
		gate:     gate,
		messages: store,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if isOriginAllowed(r) {
				return true
			}
			logger.Warn(r.Context(), "blocked connection from disallowed origin",
				"origin", r.Header.Get("Origin"), "addr", r.RemoteAddr)
			return false
		},
	}
	return h
}

// WebSocket authenticates the handshake and, only on success, upgrades the
// connection and admits it to the hub. All three gate failures refuse the
// handshake with 401 before any connection state exists.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	user, err := h.gate.Authenticate(r.Context(), r)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			h.logger.Info(r.Context(), "handshake refused",
				"reason", authErr.Reason, "addr", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": authErr.Error()})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "authentication failed"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr, user.ID, user.Username)

	// The hub enrolls the client and launches its pumps.
	h.hub.register <- client
}

// Messages serves the conversation history between the authenticated caller
// and the user named in the path, ascending by time.
func (h *Handlers) Messages(w http.ResponseWriter, r *http.Request) {
	user, err := h.gate.Authenticate(r.Context(), r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": err.Error()})
		return
	}

	peerID, err := strconv.ParseInt(r.PathValue("userId"), 10, 64)
	if err != nil || peerID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid user id"})
		return
	}

	history, err := h.messages.ListBetween(r.Context(), user.ID, peerID)
	if err != nil {
		h.logger.Error(r.Context(), "history fetch failed",
			"user_id", user.ID, "peer_id", peerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		return
	}

	records := make([]MessageRecord, 0, len(history))
	for _, m := range history {
		records = append(records, MessageRecord{
			ID:             m.ID,
			SenderID:       m.SenderID,
			ReceiverID:     m.ReceiverID,
			Message:        m.Body,
			Timestamp:      m.Timestamp,
			SenderUsername: m.SenderUsername,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": records})
}

// Health reports that the service is up.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "ChatVerse realtime server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// TestPage serves a small page for exercising the realtime protocol by hand:
// paste a token, connect, and watch the event frames.
func (h *Handlers) TestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(testPageHTML))
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>ChatVerse WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background: #f9f9f9; font-family: monospace; font-size: 12px; }
        input { padding: 5px; margin-right: 6px; }
        #token { width: 380px; }
        button { padding: 5px 15px; cursor: pointer; }
    </style>
</head>
<body>
    <h1>ChatVerse WebSocket Test</h1>
    <div>
        <input type="text" id="token" placeholder="JWT token">
        <button onclick="connect()">Connect</button>
        <button onclick="disconnect()">Disconnect</button>
    </div>
    <div>
        <input type="number" id="receiver" placeholder="receiver id">
        <input type="text" id="body" placeholder="message">
        <button onclick="send()">Send</button>
        <button onclick="typing(true)">Typing start</button>
        <button onclick="typing(false)">Typing stop</button>
    </div>
    <div id="log"></div>
    <script>
        let ws = null;
        const log = (line) => {
            const el = document.createElement('div');
            el.textContent = line;
            const box = document.getElementById('log');
            box.appendChild(el);
            box.scrollTop = box.scrollHeight;
        };
        function connect() {
            const token = document.getElementById('token').value.trim();
            ws = new WebSocket('ws://' + location.host + '/ws?token=' + encodeURIComponent(token));
            ws.onopen = () => log('connected');
            ws.onmessage = (e) => log('<- ' + e.data);
            ws.onclose = () => { log('closed'); ws = null; };
            ws.onerror = () => log('error');
        }
        function disconnect() { if (ws) ws.close(); }
        function emit(event, data) {
            if (!ws || ws.readyState !== WebSocket.OPEN) return;
            const frame = JSON.stringify({event, data});
            ws.send(frame);
            log('-> ' + frame);
        }
        function send() {
            emit('send_message', {
                receiverId: Number(document.getElementById('receiver').value),
                message: document.getElementById('body').value
            });
        }
        function typing(on) {
            emit(on ? 'typing_start' : 'typing_stop', {
                receiverId: Number(document.getElementById('receiver').value)
            });
        }
    </script>
</body>
</html>`
