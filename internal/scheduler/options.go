package scheduler

import (
	"time"

	"github.com/okian/spotwatch/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithCycleInterval sets the monitoring cadence.
func WithCycleInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.cycleInterval = d
		}
	}
}

// WithSweepInterval sets the expiration sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithReadySignal delays the first tick until the channel closes.
func WithReadySignal(ready <-chan struct{}) Option {
	return func(s *Scheduler) {
		s.ready = ready
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}
