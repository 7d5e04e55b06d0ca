package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceIncrementDecrement(t *testing.T) {
	p := newPresenceTracker()

	assert.Equal(t, 1, p.increment(1))
	assert.Equal(t, 2, p.increment(1))
	assert.Equal(t, []int64{1}, p.snapshot())

	assert.Equal(t, 1, p.decrement(1))
	assert.Equal(t, []int64{1}, p.snapshot())

	assert.Equal(t, 0, p.decrement(1))
	assert.Empty(t, p.snapshot())
}

func TestPresenceDecrementClampedAtZero(t *testing.T) {
	p := newPresenceTracker()

	assert.Equal(t, 0, p.decrement(5))
	assert.Empty(t, p.snapshot())

	p.increment(5)
	p.decrement(5)
	// Duplicate teardown must not push the count negative.
	assert.Equal(t, 0, p.decrement(5))
	assert.Equal(t, 1, p.increment(5))
}

func TestPresenceSnapshotSorted(t *testing.T) {
	p := newPresenceTracker()
	for _, id := range []int64{9, 3, 7, 1} {
		p.increment(id)
	}

	assert.Equal(t, []int64{1, 3, 7, 9}, p.snapshot())
}

func TestPresenceConcurrentChurn(t *testing.T) {
	p := newPresenceTracker()

	const workers = 16
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				p.increment(userID)
				p.decrement(userID)
			}
		}(int64(w % 4))
	}
	wg.Wait()

	assert.Empty(t, p.snapshot())
}
