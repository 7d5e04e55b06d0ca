// Package testhelpers provides shared utilities for the ChatVerse server
// tests: an in-memory store, token signing, WebSocket dialing, and HTTP
// assertions.
package testhelpers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codeinmyveins/chatverse/internal/auth"
	"github.com/codeinmyveins/chatverse/internal/logging"
	"github.com/codeinmyveins/chatverse/internal/server"
	"github.com/codeinmyveins/chatverse/internal/storage"
	"github.com/codeinmyveins/chatverse/internal/storage/messages"
	"github.com/codeinmyveins/chatverse/internal/storage/users"
	"github.com/gorilla/websocket"
)

// TestSecret signs every token the tests mint.
const TestSecret = "test-signing-secret"

// MemoryStore is an in-memory users.Repository and messages.Repository for
// tests that need the full server without a database.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[int64]*users.User
	messages []*messages.Message
	nextID   int64

	// FailInserts makes every Insert fail when set.
	FailInserts bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]*users.User)}
}

// AddUser registers a user record.
func (s *MemoryStore) AddUser(id int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &users.User{ID: id, Username: username}
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (s *MemoryStore) Insert(_ context.Context, m *messages.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInserts {
		return errors.New("simulated insert failure")
	}
	s.nextID++
	m.ID = s.nextID
	m.Timestamp = time.Now()
	stored := *m
	s.messages = append(s.messages, &stored)
	return nil
}

func (s *MemoryStore) ListBetween(_ context.Context, userA, userB int64) ([]*messages.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*messages.Message
	for _, m := range s.messages {
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			if u, ok := s.users[m.SenderID]; ok {
				m.SenderUsername = u.Username
			}
			copied := *m
			result = append(result, &copied)
		}
	}
	return result, nil
}

// MessageCount returns how many messages have been persisted.
func (s *MemoryStore) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// SignToken mints a valid token for userID with the test secret.
func SignToken(t *testing.T, userID int64) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(TestSecret), time.Hour)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return token
}

// StartServer wires a hub, gate, and handlers over the store and returns the
// running test server plus the hub for shutdown assertions. Cleanup stops
// everything.
func StartServer(t *testing.T, store *MemoryStore) (*httptest.Server, *server.Hub) {
	t.Helper()

	hub := server.NewHub(store, logging.Nop())
	go hub.Run()

	gate := server.NewConnectionGate([]byte(TestSecret), store, logging.Nop())
	handlers := server.NewHandlers(hub, gate, store, logging.Nop())
	ts := httptest.NewServer(server.SetupRoutes(handlers))

	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return ts, hub
}

// Dial opens an authenticated WebSocket connection to ts, passing the token
// as the handshake auth field.
func Dial(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if token != "" {
		wsURL += "?token=" + token
	}

	header := http.Header{}
	header.Set("Origin", "http://localhost:5173")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("websocket dial failed (status %d): %v", status, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// DialExpectingRejection attempts the handshake and returns the HTTP status
// the server refused it with.
func DialExpectingRejection(t *testing.T, ts *httptest.Server, token string) int {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if token != "" {
		wsURL += "?token=" + token
	}

	header := http.Header{}
	header.Set("Origin", "http://localhost:5173")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake rejection, connection succeeded")
	}
	if resp == nil {
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

// Event is a decoded wire frame.
type Event struct {
	Event string
	Data  json.RawMessage
}

// ReadEvent reads the next frame from conn, failing the test after timeout.
func ReadEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) Event {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading event: %v", err)
	}

	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("decoding event %q: %v", frame, err)
	}
	return Event{Event: env.Event, Data: env.Data}
}

// ReadEventNamed reads frames until one with the given name arrives,
// failing the test if the deadline passes first. Broadcast-heavy flows use
// it to skip interleaved online_users frames.
func ReadEventNamed(t *testing.T, conn *websocket.Conn, name string, timeout time.Duration) Event {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("no %s event before deadline", name)
		}
		ev := ReadEvent(t, conn, remaining)
		if ev.Event == name {
			return ev
		}
	}
}

// SendEvent writes one envelope frame to conn.
func SendEvent(t *testing.T, conn *websocket.Conn, name string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	frame, err := json.Marshal(map[string]any{"event": name, "data": json.RawMessage(data)})
	if err != nil {
		t.Fatalf("marshaling envelope: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("writing event: %v", err)
	}
}

// AssertStatusCode checks the response status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks the response Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}
