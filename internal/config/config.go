// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer
//   file and environment sources on top.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// PollIntervalMinutes sets the monitoring cycle cadence.
	PollIntervalMinutes int `koanf:"poll_interval_minutes"`

	// CooldownMinutes throttles repeat notifications per alert.
	CooldownMinutes int `koanf:"cooldown_minutes"`

	// DedupWindowMinutes is the cross-source callsign+mode dedup window.
	DedupWindowMinutes int `koanf:"dedup_window_minutes"`

	// HourlySendCap bounds distinct alert sends per user per hour.
	HourlySendCap int `koanf:"hourly_send_cap"`

	// DefaultExpirationDays is applied to alerts created without an
	// explicit expiration.
	DefaultExpirationDays int `koanf:"default_expiration_days"`

	// DefaultModes is handed to the alert-creation surface for alerts
	// registered without a mode list. Empty means match any mode.
	DefaultModes []string `koanf:"default_modes"`

	// EnabledSources lists the source adapters to run.
	EnabledSources []string `koanf:"enabled_sources"`

	// DXClusterAddr is the host:port of the DX cluster telnet feed.
	DXClusterAddr string `koanf:"dxcluster_addr"`

	// DXClusterLogin is the callsign sent at the cluster login prompt.
	// Empty skips login.
	DXClusterLogin string `koanf:"dxcluster_login"`

	// BufferCapacity bounds each streaming source's recent-spot buffer.
	BufferCapacity int `koanf:"buffer_capacity"`

	// BufferRetentionMinutes prunes buffered spots by age.
	BufferRetentionMinutes int `koanf:"buffer_retention_minutes"`

	// DatabaseURL selects the durable store. Empty runs in-memory.
	DatabaseURL string `koanf:"database_url"`

	// NATSURL selects the notification broker. Empty logs deliveries
	// instead of publishing them.
	NATSURL string `koanf:"nats_url"`

	// NATSSubject is the subject notifications publish to.
	NATSSubject string `koanf:"nats_subject"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		PollIntervalMinutes:    5,
		CooldownMinutes:        5,
		DedupWindowMinutes:     5,
		HourlySendCap:          20,
		DefaultExpirationDays:  30,
		EnabledSources:         []string{"pskreporter", "dxcluster"},
		DXClusterAddr:          "dxmaps.com:7300",
		BufferCapacity:         1000,
		BufferRetentionMinutes: 20,
		NATSSubject:            "spotwatch.notifications",
	}
}
