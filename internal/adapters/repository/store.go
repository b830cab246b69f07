// Package repository provides durable storage for alerts, the dedup
// ledger and cooldown state.
//
// The store is constructed explicitly at bootstrap and injected into the
// engine and scheduler; there is no lazily-initialized global handle.
package repository

import (
	"context"
	"time"

	"github.com/okian/spotwatch/internal/domain/model"
)

// AlertStore provides CRUD access to alert registrations. The core only
// reads alerts and flips Active off; the chat command layer creates them.
type AlertStore interface {
	// CreateAlert registers a new alert and returns its id.
	CreateAlert(ctx context.Context, alert model.Alert) (int64, error)

	// GetUserAlerts returns a user's alerts, newest first.
	GetUserAlerts(ctx context.Context, userID int64, activeOnly bool) ([]model.Alert, error)

	// DeactivateAlert soft-deletes one alert owned by userID. Returns
	// false when no active alert matched.
	DeactivateAlert(ctx context.Context, alertID, userID int64) (bool, error)

	// GetActiveAlertsBySource returns active, unexpired alerts whose
	// data source equals source or the wildcard.
	GetActiveAlertsBySource(ctx context.Context, source string) ([]model.Alert, error)

	// ExpireAlerts deactivates alerts past their expiration and returns
	// how many were flipped.
	ExpireAlerts(ctx context.Context) (int64, error)
}

// DedupLedger is the durable record of sent notifications. It is the
// single writer of dedup and cooldown state; at-most-one delivery under
// concurrent cycles rests on its insert-or-ignore semantics, not on
// in-process locks.
type DedupLedger interface {
	// RecordSent stores the exact-spot dedup record. Inserting a
	// duplicate key is a silent no-op.
	RecordSent(ctx context.Context, alertID int64, spot model.Spot) error

	// WasSent checks both dedup keys: the exact (spot_id, source,
	// alert_id) record, and any (alert_id, callsign, mode) record within
	// window of the spot's timestamp.
	WasSent(ctx context.Context, alertID int64, spot model.Spot, window time.Duration) (bool, error)

	// IsInCooldown reports whether a notification for alertID was sent
	// within the cooldown window.
	IsInCooldown(ctx context.Context, alertID int64, cooldown time.Duration) (bool, error)

	// TouchCooldown upserts the alert's last-sent timestamp.
	TouchCooldown(ctx context.Context, alertID int64) error

	// CountRecentSends returns the number of distinct alerts that
	// triggered sends for userID within the trailing window.
	CountRecentSends(ctx context.Context, userID int64, window time.Duration) (int, error)
}

// UserStore keeps the owner table current.
type UserStore interface {
	// UpsertUser creates the user or refreshes the display name.
	UpsertUser(ctx context.Context, id int64, name string) error
}

// Store bundles every persistence concern behind one injectable object.
type Store interface {
	AlertStore
	DedupLedger
	UserStore

	Ping(ctx context.Context) error
	Close()
}
