package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/spotwatch/internal/domain/model"
)

// MemoryStore is an in-memory Store with the same semantics as the
// Postgres implementation. It backs tests and database-less development
// runs; nothing survives a restart.
type MemoryStore struct {
	mu sync.Mutex

	nextAlertID int64
	alerts      map[int64]model.Alert
	users       map[int64]model.User

	// history rows double as the exact-spot dedup set and the sent log.
	history   []historyRow
	exact     map[exactKey]struct{}
	cooldowns map[int64]time.Time

	now func() time.Time
}

type exactKey struct {
	spotID  string
	source  string
	alertID int64
}

type historyRow struct {
	alertID   int64
	callsign  string
	mode      string
	spottedAt time.Time
	sentAt    time.Time
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the time source. Intended for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		nextAlertID: 1,
		alerts:      make(map[int64]model.Alert),
		users:       make(map[int64]model.User),
		exact:       make(map[exactKey]struct{}),
		cooldowns:   make(map[int64]time.Time),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ping always succeeds.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() {}

// CreateAlert registers a new alert and returns its id.
func (m *MemoryStore) CreateAlert(_ context.Context, alert model.Alert) (int64, error) {
	if alert.Pattern == "" {
		return 0, ErrInvalidAlert
	}
	if !alert.ExpiresAt.After(alert.CreatedAt) {
		return 0, ErrInvalidAlert
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	alert.ID = m.nextAlertID
	m.nextAlertID++
	alert.Pattern = model.NormalizeCallsign(alert.Pattern)
	alert.Active = true
	m.alerts[alert.ID] = alert
	return alert.ID, nil
}

// GetUserAlerts returns a user's alerts, newest first.
func (m *MemoryStore) GetUserAlerts(_ context.Context, userID int64, activeOnly bool) ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Alert
	for _, a := range m.alerts {
		if a.UserID != userID {
			continue
		}
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeactivateAlert soft-deletes one active alert owned by userID.
func (m *MemoryStore) DeactivateAlert(_ context.Context, alertID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alertID]
	if !ok || a.UserID != userID || !a.Active {
		return false, nil
	}
	a.Active = false
	m.alerts[alertID] = a
	return true, nil
}

// GetActiveAlertsBySource returns active, unexpired alerts for source,
// including wildcard registrations.
func (m *MemoryStore) GetActiveAlertsBySource(_ context.Context, source string) ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	var out []model.Alert
	for _, a := range m.alerts {
		if !a.Active || a.Expired(now) {
			continue
		}
		if a.Source != source && a.Source != model.SourceWildcard {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ExpireAlerts deactivates alerts past their expiration.
func (m *MemoryStore) ExpireAlerts(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	var count int64
	for id, a := range m.alerts {
		if a.Active && a.Expired(now) {
			a.Active = false
			m.alerts[id] = a
			count++
		}
	}
	return count, nil
}

// RecordSent stores the exact-spot dedup record; duplicates are silent
// no-ops.
func (m *MemoryStore) RecordSent(_ context.Context, alertID int64, spot model.Spot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := exactKey{spotID: spot.SpotID, source: spot.Source, alertID: alertID}
	if _, dup := m.exact[key]; dup {
		return nil
	}
	m.exact[key] = struct{}{}
	m.history = append(m.history, historyRow{
		alertID:   alertID,
		callsign:  strings.ToUpper(spot.Callsign),
		mode:      strings.ToUpper(spot.Mode),
		spottedAt: spot.Timestamp,
		sentAt:    m.now().UTC(),
	})
	return nil
}

// WasSent checks both dedup keys.
func (m *MemoryStore) WasSent(_ context.Context, alertID int64, spot model.Spot, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.exact[exactKey{spotID: spot.SpotID, source: spot.Source, alertID: alertID}]; ok {
		return true, nil
	}

	cutoff := spot.Timestamp.Add(-window)
	callsign := strings.ToUpper(spot.Callsign)
	mode := strings.ToUpper(spot.Mode)
	for _, row := range m.history {
		if row.alertID == alertID && row.callsign == callsign && row.mode == mode &&
			!row.spottedAt.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// IsInCooldown reports whether the alert sent within the cooldown window.
func (m *MemoryStore) IsInCooldown(_ context.Context, alertID int64, cooldown time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lastSent, ok := m.cooldowns[alertID]
	if !ok {
		return false, nil
	}
	return m.now().UTC().Before(lastSent.Add(cooldown)), nil
}

// TouchCooldown upserts the alert's last-sent timestamp.
func (m *MemoryStore) TouchCooldown(_ context.Context, alertID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns[alertID] = m.now().UTC()
	return nil
}

// CountRecentSends counts distinct alerts that triggered sends for the
// user within the trailing window.
func (m *MemoryStore) CountRecentSends(_ context.Context, userID int64, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().UTC().Add(-window)
	seen := make(map[int64]struct{})
	for _, row := range m.history {
		if row.sentAt.Before(cutoff) || row.sentAt.Equal(cutoff) {
			continue
		}
		a, ok := m.alerts[row.alertID]
		if !ok || a.UserID != userID {
			continue
		}
		seen[row.alertID] = struct{}{}
	}
	return len(seen), nil
}

// UpsertUser creates the user or refreshes the display name.
func (m *MemoryStore) UpsertUser(_ context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		u = model.User{ID: id, CreatedAt: m.now().UTC()}
	}
	u.Name = name
	m.users[id] = u
	return nil
}

// UserName returns the stored display name, for tests.
func (m *MemoryStore) UserName(id int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u.Name, ok
}
