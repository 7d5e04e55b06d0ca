// Package server presence tracking: a count of open authenticated
// connections per user id. A user is online iff its count is positive.
package server

import (
	"sort"
	"sync"
)

// presenceTracker owns the per-user connection counts. The map is never
// exposed; callers interact only through increment, decrement, and snapshot.
type presenceTracker struct {
	mu     sync.Mutex
	counts map[int64]int
}

func newPresenceTracker() *presenceTracker {
	return &presenceTracker{counts: make(map[int64]int)}
}

// increment records one more open connection for userID and returns the new
// count.
func (p *presenceTracker) increment(userID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[userID]++
	return p.counts[userID]
}

// decrement records a closed connection for userID, clamped at zero so a
// duplicate teardown can never drive the count negative. The entry is removed
// when the count reaches zero.
func (p *presenceTracker) decrement(userID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count, ok := p.counts[userID]
	if !ok {
		return 0
	}
	if count <= 1 {
		delete(p.counts, userID)
		return 0
	}
	p.counts[userID] = count - 1
	return count - 1
}

// snapshot returns the online set, sorted for deterministic broadcasts.
func (p *presenceTracker) snapshot() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	online := make([]int64, 0, len(p.counts))
	for userID := range p.counts {
		online = append(online, userID)
	}
	sort.Slice(online, func(i, j int) bool { return online[i] < online[j] })
	return online
}
