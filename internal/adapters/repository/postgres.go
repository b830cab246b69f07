package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/spotwatch/internal/domain/model"
)

// schemaSQL is embedded so the service can self-bootstrap its database
// schema.
//
//go:embed schema.sql
var schemaSQL string

const connectTimeout = 10 * time.Second

// PostgresStore is the durable Store implementation backed by pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a connection pool and fails fast if the
// database is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping validates database connectivity, for readiness checks.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// CreateAlert registers a new alert and returns its id.
func (p *PostgresStore) CreateAlert(ctx context.Context, alert model.Alert) (int64, error) {
	if alert.Pattern == "" {
		return 0, fmt.Errorf("%w: empty pattern", ErrInvalidAlert)
	}
	if !alert.ExpiresAt.After(alert.CreatedAt) {
		return 0, fmt.Errorf("%w: expires_at must be after created_at", ErrInvalidAlert)
	}

	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO alerts (user_id, callsign_or_prefix, modes, data_source, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, alert.UserID, model.NormalizeCallsign(alert.Pattern), alert.Modes,
		alert.Source, alert.CreatedAt, alert.ExpiresAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}
	return id, nil
}

// GetUserAlerts returns a user's alerts, newest first.
func (p *PostgresStore) GetUserAlerts(ctx context.Context, userID int64, activeOnly bool) ([]model.Alert, error) {
	query := `
		SELECT id, user_id, callsign_or_prefix, modes, data_source, created_at, expires_at, active
		FROM alerts
		WHERE user_id = $1`
	if activeOnly {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := p.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query user alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// DeactivateAlert soft-deletes one active alert owned by userID.
func (p *PostgresStore) DeactivateAlert(ctx context.Context, alertID, userID int64) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE alerts SET active = FALSE
		WHERE id = $1 AND user_id = $2 AND active = TRUE
	`, alertID, userID)
	if err != nil {
		return false, fmt.Errorf("deactivate alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetActiveAlertsBySource returns active, unexpired alerts for source,
// including wildcard registrations.
func (p *PostgresStore) GetActiveAlertsBySource(ctx context.Context, source string) ([]model.Alert, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, callsign_or_prefix, modes, data_source, created_at, expires_at, active
		FROM alerts
		WHERE active = TRUE
		  AND (data_source = $1 OR data_source = $2)
		  AND expires_at > NOW()
		ORDER BY created_at
	`, source, model.SourceWildcard)
	if err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// scanAlerts is the single mapping site from alert rows to the typed
// model.
func scanAlerts(rows pgx.Rows) ([]model.Alert, error) {
	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Pattern, &a.Modes, &a.Source,
			&a.CreatedAt, &a.ExpiresAt, &a.Active); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ExpireAlerts deactivates alerts past their expiration.
func (p *PostgresStore) ExpireAlerts(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE alerts SET active = FALSE
		WHERE active = TRUE AND expires_at <= NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("expire alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecordSent stores the exact-spot dedup record. The unique constraint
// makes duplicate inserts a silent no-op, which is what guarantees
// at-most-one delivery under concurrent cycles.
func (p *PostgresStore) RecordSent(ctx context.Context, alertID int64, spot model.Spot) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO spot_history (alert_id, spot_id, spot_source, callsign, mode, frequency, spotted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (spot_id, spot_source, alert_id) DO NOTHING
	`, alertID, spot.SpotID, spot.Source, spot.Callsign, spot.Mode, spot.Frequency, spot.Timestamp)
	if err != nil {
		return fmt.Errorf("record sent: %w", err)
	}
	return nil
}

// WasSent checks both dedup keys described in the ledger contract.
func (p *PostgresStore) WasSent(ctx context.Context, alertID int64, spot model.Spot, window time.Duration) (bool, error) {
	var one int
	err := p.pool.QueryRow(ctx, `
		SELECT 1 FROM spot_history
		WHERE spot_id = $1 AND spot_source = $2 AND alert_id = $3
		LIMIT 1
	`, spot.SpotID, spot.Source, alertID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("exact dedup lookup: %w", err)
	}

	// Same callsign+mode reported by a different source within the
	// window also counts as sent.
	err = p.pool.QueryRow(ctx, `
		SELECT 1 FROM spot_history
		WHERE alert_id = $1 AND callsign = $2 AND mode = $3 AND spotted_at >= $4
		LIMIT 1
	`, alertID, spot.Callsign, spot.Mode, spot.Timestamp.Add(-window)).Scan(&one)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("window dedup lookup: %w", err)
	}
	return false, nil
}

// IsInCooldown reports whether the alert sent within the cooldown window.
func (p *PostgresStore) IsInCooldown(ctx context.Context, alertID int64, cooldown time.Duration) (bool, error) {
	var lastSent time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT last_sent FROM alert_cooldowns WHERE alert_id = $1
	`, alertID).Scan(&lastSent)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cooldown lookup: %w", err)
	}
	return time.Now().UTC().Before(lastSent.Add(cooldown)), nil
}

// TouchCooldown upserts the alert's last-sent timestamp.
func (p *PostgresStore) TouchCooldown(ctx context.Context, alertID int64) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO alert_cooldowns (alert_id, last_sent)
		VALUES ($1, NOW())
		ON CONFLICT (alert_id) DO UPDATE SET last_sent = NOW()
	`, alertID)
	if err != nil {
		return fmt.Errorf("touch cooldown: %w", err)
	}
	return nil
}

// CountRecentSends counts distinct alerts that triggered sends for the
// user within the trailing window.
func (p *PostgresStore) CountRecentSends(ctx context.Context, userID int64, window time.Duration) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT sh.alert_id)
		FROM spot_history sh
		JOIN alerts a ON sh.alert_id = a.id
		WHERE a.user_id = $1 AND sh.sent_at > $2
	`, userID, time.Now().UTC().Add(-window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent sends: %w", err)
	}
	return count, nil
}

// UpsertUser creates the user or refreshes the display name.
func (p *PostgresStore) UpsertUser(ctx context.Context, id int64, name string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET username = $2
	`, id, name)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
