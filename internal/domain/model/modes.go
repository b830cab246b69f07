package model

import "strings"

// Digital modes reported by the polling feed.
var digitalModes = []string{
	"FT8", "FT4", "PSK31", "PSK63", "PSK125", "CW", "RTTY",
	"JT65", "JT9", "WSPR", "APRS", "FSK441", "JTMS", "ISCAT",
	"MSK144", "QRA64", "T10", "WSPR-15",
}

// Phone and image modes only seen on the cluster feed.
var analogModes = []string{
	"SSB", "LSB", "USB", "AM", "FM", "SSTV",
}

var knownModes = func() map[string]struct{} {
	m := make(map[string]struct{}, len(digitalModes)+len(analogModes))
	for _, s := range digitalModes {
		m[s] = struct{}{}
	}
	for _, s := range analogModes {
		m[s] = struct{}{}
	}
	return m
}()

// DigitalModes returns the mode vocabulary of the polling feed.
func DigitalModes() []string {
	out := make([]string, len(digitalModes))
	copy(out, digitalModes)
	return out
}

// AllModes returns the full known mode vocabulary.
func AllModes() []string {
	out := make([]string, 0, len(digitalModes)+len(analogModes))
	out = append(out, digitalModes...)
	out = append(out, analogModes...)
	return out
}

// IsKnownMode reports whether s (case-insensitive) is in the known mode
// vocabulary.
func IsKnownMode(s string) bool {
	_, ok := knownModes[strings.ToUpper(s)]
	return ok
}

// NormalizeMode trims and uppercases a mode token.
func NormalizeMode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeCallsign trims and uppercases a callsign or prefix pattern.
func NormalizeCallsign(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
