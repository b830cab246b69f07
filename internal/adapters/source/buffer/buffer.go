// Package buffer provides a bounded, time-windowed in-memory cache of
// recently ingested spots.
package buffer

import (
	"sync"
	"time"

	"github.com/okian/spotwatch/internal/domain/model"
	"github.com/okian/spotwatch/pkg/metrics"
)

// Default buffer configuration constants.
const (
	defaultCapacity  = 1000
	defaultRetention = 20 * time.Minute
)

// Buffer is a FIFO of spots with dual front eviction: entries are dropped
// when the buffer exceeds its capacity and when the oldest entry outlives
// the retention window, whichever triggers first. Reads never mutate the
// buffer and are safe against concurrent appends.
type Buffer struct {
	mu        sync.RWMutex
	spots     []model.Spot
	capacity  int
	retention time.Duration
	source    string // metrics label; empty disables gauge updates
	now       func() time.Time
}

// New creates a buffer with configuration options.
func New(opts ...Option) *Buffer {
	b := &Buffer{
		capacity:  defaultCapacity,
		retention: defaultRetention,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.spots = make([]model.Spot, 0, b.capacity)
	return b
}

// Append adds a spot and applies both eviction policies.
func (b *Buffer) Append(s model.Spot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.spots = append(b.spots, s)

	cutoff := b.now().UTC().Add(-b.retention)
	drop := 0
	for drop < len(b.spots) && b.spots[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if over := len(b.spots) - drop - b.capacity; over > 0 {
		drop += over
	}
	if drop > 0 {
		// Copy down instead of reslicing so evicted entries are freed.
		kept := len(b.spots) - drop
		copy(b.spots, b.spots[drop:])
		b.spots = b.spots[:kept]
	}

	if b.source != "" {
		metrics.UpdateBufferSize(b.source, len(b.spots))
	}
}

// Since returns all buffered spots with a timestamp at or after since, in
// insertion order.
func (b *Buffer) Since(since time.Time) []model.Spot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Spot, 0, len(b.spots))
	for _, s := range b.spots {
		if !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	return out
}

// Recent returns the newest n spots, newest first, without mutating the
// buffer.
func (b *Buffer) Recent(n int) []model.Spot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(b.spots) {
		n = len(b.spots)
	}
	out := make([]model.Spot, n)
	for i := 0; i < n; i++ {
		out[i] = b.spots[len(b.spots)-1-i]
	}
	return out
}

// Len returns the current number of buffered spots.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.spots)
}
