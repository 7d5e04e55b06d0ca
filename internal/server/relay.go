// Package server relays: direct-message delivery with
// durability-before-visibility, and ephemeral typing notifications.
package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/codeinmyveins/chatverse/internal/logging"
	"github.com/codeinmyveins/chatverse/internal/storage/messages"
)

// MessageRelay validates, persists, and delivers direct messages. A message
// is never visible to anyone, the sender's acknowledgment included, before
// its insert has committed.
type MessageRelay struct {
	store  messages.Repository
	hub    *Hub
	logger logging.Logger
}

// NewMessageRelay builds a relay persisting through store and delivering
// through hub.
func NewMessageRelay(store messages.Repository, hub *Hub, logger logging.Logger) *MessageRelay {
	return &MessageRelay{store: store, hub: hub, logger: logger}
}

func (r *MessageRelay) handleSendMessage(ctx context.Context, c *Client, data []byte) error {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return &ValidationError{Reason: MissingReceiver}
	}
	return r.Send(ctx, c, payload.ReceiverID, payload.Message)
}

// Send runs the full relay contract: validate, insert, deliver to the
// receiver's address, acknowledge the sender. Persistence failures stop
// everything before any delivery; the caller may resubmit.
func (r *MessageRelay) Send(ctx context.Context, sender *Client, receiverID int64, body string) error {
	if receiverID == 0 {
		return &ValidationError{Reason: MissingReceiver}
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return &ValidationError{Reason: EmptyBody}
	}

	msg := &messages.Message{
		SenderID:   sender.userID,
		ReceiverID: receiverID,
		Body:       body,
	}
	if err := r.store.Insert(ctx, msg); err != nil {
		return &PersistenceError{Cause: err}
	}

	record := MessageRecord{
		ID:             msg.ID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Message:        msg.Body,
		Timestamp:      msg.Timestamp,
		SenderUsername: sender.username,
	}

	frame, err := encodeEvent(EventReceiveMessage, record)
	if err != nil {
		return &PersistenceError{Cause: err}
	}
	delivered := r.hub.DeliverToUser(receiverID, frame)

	ack, err := encodeEvent(EventMessageSent, record)
	if err != nil {
		return &PersistenceError{Cause: err}
	}
	if !r.hub.deliverToClient(sender, ack) {
		// The message is committed and delivered; only the ack is lost
		// because the sender went away mid-send.
		r.logger.Debug(ctx, "sender gone before ack",
			"message_id", msg.ID, "sender_id", msg.SenderID)
	}

	r.logger.Debug(ctx, "message relayed",
		"message_id", msg.ID, "sender_id", msg.SenderID,
		"receiver_id", msg.ReceiverID, "delivered", delivered)
	return nil
}

// TypingRelay passes ephemeral typing signals to the addressed user only.
// Nothing is stored, nothing is deduplicated, nothing is broadcast.
type TypingRelay struct {
	hub    *Hub
	logger logging.Logger
}

// NewTypingRelay builds a relay delivering through hub.
func NewTypingRelay(hub *Hub, logger logging.Logger) *TypingRelay {
	return &TypingRelay{hub: hub, logger: logger}
}

func (t *TypingRelay) handleTypingStart(ctx context.Context, c *Client, data []byte) error {
	return t.notify(ctx, c, data, true)
}

func (t *TypingRelay) handleTypingStop(ctx context.Context, c *Client, data []byte) error {
	return t.notify(ctx, c, data, false)
}

func (t *TypingRelay) notify(ctx context.Context, sender *Client, data []byte, isTyping bool) error {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ReceiverID == 0 {
		return &ValidationError{Reason: MissingReceiver}
	}
	return t.Notify(ctx, sender, payload.ReceiverID, isTyping)
}

// Notify delivers one user_typing event to receiverID's address. An empty
// address drops the signal silently.
func (t *TypingRelay) Notify(ctx context.Context, sender *Client, receiverID int64, isTyping bool) error {
	frame, err := encodeEvent(EventUserTyping, TypingNotice{
		UserID:   sender.userID,
		Username: sender.username,
		IsTyping: isTyping,
	})
	if err != nil {
		return err
	}

	t.hub.DeliverToUser(receiverID, frame)
	return nil
}
