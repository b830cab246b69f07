// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"time"
)

// Spot represents a single observed callsign event reported by a source.
// Spots are immutable after creation and live for one monitoring cycle
// unless a notification is sent for them.
type Spot struct {
	Callsign  string            // normalized uppercase
	Mode      string            // normalized uppercase
	Frequency int64             // Hz, 0 when unknown
	Timestamp time.Time         // UTC
	SpotID    string            // source-scoped unique identifier
	Source    string            // source adapter name, e.g. "pskreporter"
	Spotter   string            // reporting station, may be empty
	Extra     map[string]string // source-specific annotations, may be nil
}

// Comment returns the free-text comment annotation, if any.
func (s Spot) Comment() string {
	if s.Extra == nil {
		return ""
	}
	return s.Extra["comment"]
}

// FallbackSpotID builds a deterministic spot id for sources that do not
// assign one. The id is only unique within the source's dedup domain;
// cross-source dedup relies on the callsign+mode window key instead.
func FallbackSpotID(callsign, mode string, frequency int64, ts time.Time) string {
	return fmt.Sprintf("%s_%s_%d_%d", callsign, mode, frequency, ts.Unix())
}

// Frequency unit boundaries. Feeds report frequency in MHz, kHz or Hz
// without saying which; magnitude disambiguates.
const (
	maxMHzValue = 1_000
	maxKHzValue = 100_000
)

// NormalizeFrequency converts a feed frequency value to Hz. Values below
// 1000 are treated as MHz, values in [1000, 100000) as kHz, anything
// larger is assumed to already be Hz.
func NormalizeFrequency(value float64) int64 {
	switch {
	case value <= 0:
		return 0
	case value < maxMHzValue:
		return int64(math.Round(value * 1_000_000))
	case value < maxKHzValue:
		return int64(math.Round(value * 1_000))
	default:
		return int64(math.Round(value))
	}
}
