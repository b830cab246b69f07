// Package buffer provides a bounded, time-windowed in-memory cache of
// recently ingested spots.
package buffer

import "time"

// Option applies a configuration option to the Buffer.
type Option func(*Buffer)

// WithCapacity sets the hard cap on buffered spots.
func WithCapacity(capacity int) Option {
	return func(b *Buffer) {
		if capacity > 0 {
			b.capacity = capacity
		}
	}
}

// WithRetention sets the maximum age of buffered spots.
func WithRetention(retention time.Duration) Option {
	return func(b *Buffer) {
		if retention > 0 {
			b.retention = retention
		}
	}
}

// WithSource sets the source label used for the buffer size gauge.
func WithSource(source string) Option {
	return func(b *Buffer) {
		b.source = source
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) {
		if now != nil {
			b.now = now
		}
	}
}
