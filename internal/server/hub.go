// Package server hub: coordinates connection admission, presence, and
// payload delivery for the ChatVerse realtime subsystem.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/codeinmyveins/chatverse/internal/logging"
	"github.com/codeinmyveins/chatverse/internal/storage/messages"
)

// Hub owns the room directory and the presence tracker. Admission and
// teardown are funneled through a single Run goroutine, so presence
// transitions and the broadcasts they trigger are serialized; delivery to an
// address happens on the calling connection's goroutine.
type Hub struct {
	directory *roomDirectory
	presence  *presenceTracker

	register   chan *Client
	unregister chan *Client

	relay  *MessageRelay
	typing *TypingRelay

	handlers map[string]eventHandler

	logger logging.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// eventHandler processes one inbound event for one connection.
type eventHandler func(ctx context.Context, c *Client, data []byte) error

// NewHub creates a hub delivering through the given message store. The hub
// is inert until Run is called.
func NewHub(store messages.Repository, logger logging.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		directory:  newRoomDirectory(),
		presence:   newPresenceTracker(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	h.relay = NewMessageRelay(store, h, logger)
	h.typing = NewTypingRelay(h, logger)

	h.handlers = map[string]eventHandler{
		EventSendMessage: h.relay.handleSendMessage,
		EventTypingStart: h.typing.handleTypingStart,
		EventTypingStop:  h.typing.handleTypingStop,
	}

	return h
}

// GetRegisterChan returns the channel used to admit authenticated clients.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used to tear down clients.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// OnlineUsers returns the current online set, sorted by user id.
func (h *Hub) OnlineUsers() []int64 {
	return h.presence.snapshot()
}

// Run services admission and teardown until Shutdown. It must be started in
// its own goroutine before any client registers.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn(h.ctx, "nil client registration skipped")
				continue
			}
			h.admit(client)

		case client := <-h.unregister:
			h.teardown(client)
		}
	}
}

// admit enrolls the authenticated client, bumps its user's presence, starts
// the pumps, and broadcasts the online set. The broadcast fires on every
// admission even when the set's membership is unchanged (a second tab still
// announces).
func (h *Hub) admit(client *Client) {
	h.directory.enroll(client)
	count := h.presence.increment(client.userID)

	h.logger.Info(h.ctx, "client connected",
		"conn_id", client.id, "user_id", client.userID, "username", client.username,
		"addr", client.addr, "connections", count)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	h.broadcastOnlineUsers()
}

// teardown withdraws the client and decrements presence exactly once; a
// duplicate teardown finds the client already withdrawn and does nothing.
// Runs only on the hub goroutine.
func (h *Hub) teardown(client *Client) {
	if client == nil {
		return
	}
	if !h.directory.withdraw(client) {
		return
	}

	count := h.presence.decrement(client.userID)
	close(client.send)

	h.logger.Info(h.ctx, "client disconnected",
		"conn_id", client.id, "user_id", client.userID, "connections", count)

	h.broadcastOnlineUsers()
}

// broadcastOnlineUsers pushes the full online set to every open connection.
// Cost is linear in the number of connections per presence change, which is
// the accepted tradeoff for deployments of this size.
func (h *Hub) broadcastOnlineUsers() {
	frame, err := encodeEvent(EventOnlineUsers, h.presence.snapshot())
	if err != nil {
		h.logger.Error(h.ctx, "encoding online set failed", "error", err)
		return
	}

	for _, client := range h.directory.clients() {
		if !h.directory.send(client, frame) {
			h.logger.Warn(h.ctx, "dropping unresponsive client",
				"conn_id", client.id, "user_id", client.userID)
			h.teardown(client)
		}
	}
}

// DeliverToUser sends payload to every connection under userID's address and
// returns how many received it. Zero enrolled connections drop the payload
// silently. Safe to call from any goroutine.
func (h *Hub) DeliverToUser(userID int64, payload []byte) int {
	delivered, failed := h.directory.deliverTo(userID, payload)
	for _, client := range failed {
		// Closing the transport makes the client's own read pump run the
		// normal teardown funnel; presence stays consistent.
		client.closeConnection()
	}
	return delivered
}

// deliverToClient sends payload to a single connection, used for sender
// acknowledgments and error events. Reports whether the client was still
// reachable.
func (h *Hub) deliverToClient(c *Client, payload []byte) bool {
	return h.directory.send(c, payload)
}

// shutdownClients withdraws and closes every live connection. Presence is
// cleared connection by connection; no broadcasts fire since everyone is
// going away.
func (h *Hub) shutdownClients() {
	clients := h.directory.clients()
	h.logger.Info(h.ctx, "closing client connections", "count", len(clients))

	for _, client := range clients {
		if h.directory.withdraw(client) {
			h.presence.decrement(client.userID)
			close(client.send)
		}
		client.closeConnection()
	}
}

// Shutdown stops the hub, closes all connections, and waits for the pump
// goroutines to finish or the timeout to lapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info(context.Background(), "hub shutting down")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info(context.Background(), "hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.logger.Warn(context.Background(), "hub shutdown timed out")
		return context.DeadlineExceeded
	}
}
