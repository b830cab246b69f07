package model

import (
	"strings"
	"time"
)

// SourceWildcard matches every enabled data source.
const SourceWildcard = "all"

// Alert is a user's standing request to be notified when a matching spot
// occurs. Alerts are soft-deleted: the core only ever flips Active to
// false, rows are never removed.
type Alert struct {
	ID        int64
	UserID    int64
	Pattern   string   // callsign or prefix, normalized uppercase
	Modes     []string // normalized uppercase; empty means any mode
	Source    string   // source name or SourceWildcard
	CreatedAt time.Time
	ExpiresAt time.Time
	Active    bool
}

// Expired reports whether the alert has passed its expiration time.
func (a Alert) Expired(now time.Time) bool {
	return !a.ExpiresAt.After(now)
}

// WantsMode reports whether the alert's mode set admits the given mode.
// An empty mode set is a wildcard.
func (a Alert) WantsMode(mode string) bool {
	if len(a.Modes) == 0 {
		return true
	}
	mode = strings.ToUpper(mode)
	for _, m := range a.Modes {
		if strings.ToUpper(m) == mode {
			return true
		}
	}
	return false
}

// User is the owner of one or more alerts. The display name is refreshed
// on every successful delivery.
type User struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
