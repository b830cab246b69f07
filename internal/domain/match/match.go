// Package match implements the alert-to-spot correlation rules.
package match

import (
	"strings"

	"github.com/okian/spotwatch/internal/domain/model"
)

// Patterns at or below this length are treated as prefixes. A 4-character
// pattern that happens to be a complete callsign still matches longer
// callsigns sharing the prefix; the registration surface does not carry
// an exact/prefix flag to disambiguate. See the callsign tests.
const prefixLengthMax = 4

// Callsign reports whether the spot callsign satisfies the alert pattern:
// exact equality always matches, and short patterns additionally match as
// prefixes.
func Callsign(pattern, callsign string) bool {
	pattern = model.NormalizeCallsign(pattern)
	callsign = model.NormalizeCallsign(callsign)
	if pattern == "" || callsign == "" {
		return false
	}
	if pattern == callsign {
		return true
	}
	if len(pattern) <= prefixLengthMax {
		return strings.HasPrefix(callsign, pattern)
	}
	return false
}

// Spot reports whether spot satisfies both the callsign and mode rules of
// alert. Source filtering and dedup are the caller's concern.
func Spot(alert model.Alert, spot model.Spot) bool {
	if !Callsign(alert.Pattern, spot.Callsign) {
		return false
	}
	return alert.WantsMode(spot.Mode)
}
