package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeinmyveins/chatverse/test/testhelpers"
)

type messageRecord struct {
	ID             int64     `json:"id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
	SenderUsername string    `json:"sender_username"`
}

func decodeRecord(t *testing.T, ev testhelpers.Event) messageRecord {
	t.Helper()
	var rec messageRecord
	if err := json.Unmarshal(ev.Data, &rec); err != nil {
		t.Fatalf("decoding %s data %q: %v", ev.Event, ev.Data, err)
	}
	return rec
}

// assertNoEvent fails if a frame with the given name arrives within the
// window. Other frames, such as presence broadcasts, are skipped.
func assertNoEvent(t *testing.T, conn *websocket.Conn, name string, window time.Duration) {
	t.Helper()

	deadline := time.Now().Add(window)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env struct {
			Event string `json:"event"`
		}
		if json.Unmarshal(frame, &env) == nil && env.Event == name {
			t.Fatalf("unexpected %s event: %s", name, frame)
		}
	}
}

func TestDirectMessageDelivery(t *testing.T) {
	store := testhelpers.NewMemoryStore()
	store.AddUser(1, "alice")
	store.AddUser(2, "bob")
	ts, _ := testhelpers.StartServer(t, store)

	alice := testhelpers.Dial(t, ts, testhelpers.SignToken(t, 1))
	bob := testhelpers.Dial(t, ts, testhelpers.SignToken(t, 2))
	waitForOnlineUsers(t, bob, []int64{1, 2}, 2*time.Second)

	testhelpers.SendEvent(t, alice, "send_message", map[string]any{
		"receiverId": 2,
		"message":    "hello bob",
	})

	received := decodeRecord(t, testhelpers.ReadEventNamed(t, bob, "receive_message", 2*time.Second))
	if received.SenderID != 1 || received.ReceiverID != 2 {
		t.Errorf("wrong addressing: %+v", received)
	}
	if received.Message != "hello bob" {
		t.Errorf("wrong body: %q", received.Message)
	}
	if received.SenderUsername != "alice" {
		t.Errorf("wrong sender username: %q", received.SenderUsername)
	}
	if received.ID == 0 || received.Timestamp.IsZero() {
		t.Errorf("record missing persisted fields: %+v", received)
	}

	ack := decodeRecord(t, testhelpers.ReadEventNamed(t, alice, "message_sent", 2*time.Second))
	if ack.ID != received.ID {
		t.Errorf("ack id %d does not match delivered id %d", ack.ID, received.ID)
	}

	if store.MessageCount() != 1 {
		t.Errorf("expected 1 stored message, got %d", store.MessageCount())
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	store := testhelpers.NewMemoryStore()
	store.AddUser(1, "alice")
	store.AddUser(2, "bob")
	ts, _ := testhelpers.StartServer(t, store)

	alice := testhelpers.Dial(t, ts, testhelpers.SignToken(t, 1))
	waitForOnlineUsers(t, alice, []int64{1}, 2*time.Second)

	testhelpers.SendEvent(t, alice, "send_message", map[string]any{
		"receiverId": 2,
		"message":    "   ",
	})

	ev := testhelpers.ReadEventNamed(t, alice, "error", 2*time.Second)
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if payload.Message != "message cannot be empty" {
		t.Errorf("unexpected error message: %q", payload.Message)
	}
	if store.MessageCount() != 0 {
		t.Errorf("rejected message was stored")
	}
}

func TestMissingReceiverRejected(t *testing.T) {
	store := testhelpers.NewMemoryStore()
	store.AddUser(1, "alice")
	ts, _ := testhelpers.StartServer(t, store)

	alice := testhelpers.Dial(t, ts, testhelpers.SignToken(t, 1))
	waitForOnlineUsers(t, alice, []int64{1}, 2*time.Second)

	testhelpers.SendEvent(t, alice, "send_message", map[string]any{
		"message": "hello",
	})

	ev := testhelpers.ReadEventNamed(t, alice, "error", 2*time.Second)
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if payload.Message != "receiver is required" {
		t.Errorf("unexpected error message: %q", payload.Message)
	}
}

func TestOfflineReceiverStillPersists(t *testing.T) {
	store := testhelpers.NewMemoryStore()
	store.AddUser(1, "alice")
	store.AddUser(2, "bob")
	ts, _ := testhelpers.StartServer(t, store)

	alice := testhelpers.Dial(t, ts, testhelpers.SignToken(t, 1))
	waitForOnlineUsers(t, alice, []int64{1}, 2*time.Second)

	testhelpers.SendEvent(t, alice, "send_message", map[string]any{
		"receiverId": 2,
		"message":    "see you later",
	})

	ack := decodeRecord(t, testhelpers.ReadEventNamed(t, alice, "message_sent", 2*time.Second))
	if ack.ReceiverID != 2 {
		t.Errorf("ack addressed wrong receiver: %+v", ack)
	}
	if store.MessageCount() != 1 {
		t.Errorf("expected message persisted, store has %d", store.MessageCount())
	}

	// Bob can fetch the conversation later over the history endpoint.
	resp, err := http.Get(ts.URL + "/api/messages/1?token=" + testhelpers.SignToken(t, 2))
	if err != nil {
		t.Fatalf("history request failed: %v", err)
	}
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)

	var body struct {
		Messages []messageRecord `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Message != "see you later" {
		t.Errorf("unexpected history: %+v", body.Messages)
	}
}

func TestInsertFailureDeliversNothing(t *testing.T) {
	store := testhelpers.NewMemoryStore()
	store.AddUser(1, "alice")
	store.AddUser(2, "bob")
	ts, _ := testhelpers.StartServer(t, store)

	alice := testhelpers.Dial(t, ts, testhelpers.SignToken(t, 1))
	bob := testhelpers.Dial(t, ts, testhelpers.SignToken(t, 2))
	waitForOnlineUsers(t, bob, []int64{1, 2}, 2*time.Second)

	store.FailInserts = true
	testhelpers.SendEvent(t, alice, "send_message", map[string]any{
		"receiverId": 2,
		"message":    "will not make it",
	})

	ev := testhelpers.ReadEventNamed(t, alice, "error", 2*time.Second)
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if payload.Message != "Failed to send message" {
		t.Errorf("unexpected error message: %q", payload.Message)
	}

	assertNoEvent(t, bob, "receive_message", 300*time.Millisecond)
	if store.MessageCount() != 0 {
		t.Errorf("failed insert left %d messages", store.MessageCount())
	}
}

func TestMultiTabReceiverGetsOneCopyPerTab(t *testing.T) {
	store := testhelpers.NewMemoryStore()
	store.AddUser(1, "alice")
	store.AddUser(2, "bob")
	ts, _ := testhelpers.StartServer(t, store)

	alice := testhelpers.Dial(t, ts, testhelpers.SignToken(t, 1))
	bobTab1 := testhelpers.Dial(t, ts, testhelpers.SignToken(t, 2))
	bobTab2 := testhelpers.Dial(t, ts, testhelpers.SignToken(t, 2))
	waitForOnlineUsers(t, bobTab2, []int64{1, 2}, 2*time.Second)

	testhelpers.SendEvent(t, alice, "send_message", map[string]any{
		"receiverId": 2,
		"message":    "both tabs",
	})

	rec1 := decodeRecord(t, testhelpers.ReadEventNamed(t, bobTab1, "receive_message", 2*time.Second))
	rec2 := decodeRecord(t, testhelpers.ReadEventNamed(t, bobTab2, "receive_message", 2*time.Second))
	if rec1.ID != rec2.ID {
		t.Errorf("tabs saw different records: %d vs %d", rec1.ID, rec2.ID)
	}

	// Exactly one copy per tab.
	assertNoEvent(t, bobTab1, "receive_message", 300*time.Millisecond)
	assertNoEvent(t, bobTab2, "receive_message", 300*time.Millisecond)
}
