// Package source defines the contract for spot source adapters.
//
// Implementations own their connection and buffer state exclusively; the
// matching engine only calls the methods below and never blocks on a
// socket.
package source

import (
	"context"
	"time"

	"github.com/okian/spotwatch/internal/domain/model"
)

// Adapter produces Spots from one external feed.
type Adapter interface {
	// Name returns the source name used in alerts and dedup records.
	Name() string

	// FetchRecent returns spots observed after since. Transient upstream
	// failures yield an empty slice and a nil error; a non-nil error is
	// reserved for cancellation and programming faults, and the caller
	// must treat it as an empty batch either way.
	FetchRecent(ctx context.Context, since time.Time) ([]model.Spot, error)

	// TestConnection reports whether the feed is currently reachable.
	TestConnection(ctx context.Context) bool

	// SupportedModes returns the mode vocabulary of this feed.
	SupportedModes() []string

	// Close releases any held connection or session. Idempotent.
	Close(ctx context.Context) error
}

// RecentSpotter is the read-only query surface used by display tooling.
// Served from the adapter's in-memory buffer, never from the network.
type RecentSpotter interface {
	RecentSpots(count int) []model.Spot
}
