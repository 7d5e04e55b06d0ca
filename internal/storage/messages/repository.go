// Package messages stores direct messages. An insert commits before the
// realtime core makes the message visible to anyone; history reads serve the
// conversation view.
package messages

import (
	"context"
	"time"
)

// Message is a durable direct message. ID and Timestamp are assigned by the
// store on insert. SenderUsername is populated on reads that join the sender.
type Message struct {
	ID             int64
	SenderID       int64
	ReceiverID     int64
	Body           string
	Timestamp      time.Time
	SenderUsername string
}

// Repository persists and lists direct messages.
type Repository interface {
	// Insert stores m and fills in the store-assigned ID and Timestamp.
	Insert(ctx context.Context, m *Message) error

	// ListBetween returns every message exchanged between the two users,
	// ascending by timestamp, with sender usernames populated.
	ListBetween(ctx context.Context, userA, userB int64) ([]*Message, error)
}
