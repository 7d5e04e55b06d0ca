// Package server room directory: the mapping from user id to the set of live
// connections enrolled under it. Enroll, withdraw, and delivery are the only
// mutators; everything else sees snapshots.
package server

import "sync"

// roomDirectory addresses payloads to users without callers knowing which
// physical connections currently represent them. A user's address may hold
// any number of connections (multi-tab, multi-device), including zero.
type roomDirectory struct {
	mu    sync.RWMutex
	rooms map[int64]map[*Client]struct{}
}

func newRoomDirectory() *roomDirectory {
	return &roomDirectory{rooms: make(map[int64]map[*Client]struct{})}
}

// enroll adds the client to its user's address, creating the address on
// first use.
func (d *roomDirectory) enroll(c *Client) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[c.userID]
	if !ok {
		room = make(map[*Client]struct{})
		d.rooms[c.userID] = room
	}
	room[c] = struct{}{}
	c.closed = false
}

// withdraw removes the client from its address and reports whether it was
// enrolled. Withdrawing an absent client is a no-op, which makes teardown
// idempotent under close races. Empty addresses are deleted.
func (d *roomDirectory) withdraw(c *Client) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[c.userID]
	if !ok {
		return false
	}
	if _, ok := room[c]; !ok {
		return false
	}

	delete(room, c)
	c.closed = true
	if len(room) == 0 {
		delete(d.rooms, c.userID)
	}
	return true
}

// members returns the connections currently enrolled under userID.
func (d *roomDirectory) members(userID int64) []*Client {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room := d.rooms[userID]
	members := make([]*Client, 0, len(room))
	for c := range room {
		members = append(members, c)
	}
	return members
}

// clients returns every enrolled connection across all addresses.
func (d *roomDirectory) clients() []*Client {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var all []*Client
	for _, room := range d.rooms {
		for c := range room {
			all = append(all, c)
		}
	}
	return all
}

// send queues payload on the client's outbound channel. It fails without
// blocking when the client has been withdrawn, marked closed, or its buffer
// is full. The lock is held across the send so the channel cannot be closed
// underneath it.
func (d *roomDirectory) send(c *Client, payload []byte) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room, ok := d.rooms[c.userID]
	if !ok {
		return false
	}
	if _, ok := room[c]; !ok || c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// deliverTo sends payload to every connection under userID's address. An
// empty address drops the payload silently; durability is the relay's
// concern, not the directory's. Clients whose buffers were full are returned
// for the caller to tear down.
func (d *roomDirectory) deliverTo(userID int64, payload []byte) (delivered int, failed []*Client) {
	for _, c := range d.members(userID) {
		if d.send(c, payload) {
			delivered++
		} else {
			failed = append(failed, c)
		}
	}
	return delivered, failed
}
