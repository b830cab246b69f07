package dxcluster

import (
	"time"

	"github.com/okian/spotwatch/internal/adapters/source/buffer"
	"github.com/okian/spotwatch/pkg/logger"
)

// Option applies a configuration option to the Adapter.
type Option func(*Adapter)

// WithAddr sets the cluster server host:port.
func WithAddr(addr string) Option {
	return func(a *Adapter) {
		if addr != "" {
			a.addr = addr
		}
	}
}

// WithLoginCallsign sets the callsign written at the login prompt. When
// empty, login is skipped.
func WithLoginCallsign(callsign string) Option {
	return func(a *Adapter) {
		a.login = callsign
	}
}

// WithLogger sets a custom logger for the adapter.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l.Named(SourceName)
		}
	}
}

// WithBuffer replaces the default recent-spot buffer.
func WithBuffer(b *buffer.Buffer) Option {
	return func(a *Adapter) {
		if b != nil {
			a.buf = b
		}
	}
}

// WithReconnectDelays overrides the exponential backoff bounds. Intended
// for tests.
func WithReconnectDelays(base, max time.Duration) Option {
	return func(a *Adapter) {
		if base > 0 && max >= base {
			a.baseDelay = base
			a.maxDelay = max
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}
