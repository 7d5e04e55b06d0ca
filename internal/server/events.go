// Package server event protocol: the JSON envelope and payload shapes
// exchanged over a connection. Field names match what the web client already
// speaks (snake_case message records, camelCase addressing fields).
package server

import (
	"encoding/json"
	"time"
)

// Event names on the client -> server surface.
const (
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
)

// Event names on the server -> client surface.
const (
	EventMessageSent    = "message_sent"
	EventReceiveMessage = "receive_message"
	EventUserTyping     = "user_typing"
	EventOnlineUsers    = "online_users"
	EventError          = "error"
)

// Envelope frames every event on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the body of a send_message event.
type SendMessagePayload struct {
	ReceiverID int64  `json:"receiverId"`
	Message    string `json:"message"`
}

// TypingPayload is the body of typing_start and typing_stop events.
type TypingPayload struct {
	ReceiverID int64 `json:"receiverId"`
}

// MessageRecord is the outward form of a persisted message, sent both as the
// receiver's receive_message and the sender's message_sent acknowledgment.
type MessageRecord struct {
	ID             int64     `json:"id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
	SenderUsername string    `json:"sender_username"`
}

// TypingNotice is the body of a user_typing event.
type TypingNotice struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// encodeEvent marshals name and payload into a wire frame.
func encodeEvent(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}
