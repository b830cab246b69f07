package engine

import (
	"time"

	"github.com/okian/spotwatch/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithCooldown sets the per-alert cooldown window.
func WithCooldown(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cooldown = d
		}
	}
}

// WithDedupWindow sets the cross-source callsign+mode dedup window.
func WithDedupWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.dedupWindow = d
		}
	}
}

// WithLookback sets the since window for a source's first cycle.
func WithLookback(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// WithHourlySendCap sets the per-user distinct-alert send cap for the
// trailing hour.
func WithHourlySendCap(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sendCap = n
		}
	}
}

// WithDisplayNameResolver supplies the user display name written on
// upsert after a successful delivery.
func WithDisplayNameResolver(fn func(userID int64) string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.displayName = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
