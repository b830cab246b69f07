package pskreporter

import (
	"net/http"
	"time"

	"github.com/okian/spotwatch/pkg/logger"
)

// Option applies a configuration option to the Adapter.
type Option func(*Adapter)

// WithQueryURL overrides the feed endpoint. Intended for tests.
func WithQueryURL(u string) Option {
	return func(a *Adapter) {
		if u != "" {
			a.queryURL = u
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
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

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}
