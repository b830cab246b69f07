// Package scheduler drives periodic monitoring cycles and the alert
// expiration sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/okian/spotwatch/internal/engine"
	"github.com/okian/spotwatch/pkg/logger"
	"github.com/okian/spotwatch/pkg/metrics"
)

const (
	defaultCycleInterval = 2 * time.Minute
	defaultSweepInterval = time.Hour
)

// Runner executes one monitoring cycle.
type Runner interface {
	RunCycle(ctx context.Context) engine.CycleStats
}

// Expirer deactivates alerts past their expiration and reports how
// many it swept.
type Expirer interface {
	ExpireAlerts(ctx context.Context) (int64, error)
}

// Scheduler ticks the Runner on a fixed interval and the Expirer on a
// much slower one. Start is idempotent and the scheduler can be
// restarted after Stop.
type Scheduler struct {
	runner  Runner
	expirer Expirer

	cycleInterval time.Duration
	sweepInterval time.Duration
	ready         <-chan struct{}
	log           logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a Scheduler over a cycle runner and an expiration sweeper.
func New(runner Runner, expirer Expirer, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:        runner,
		expirer:       expirer,
		cycleInterval: defaultCycleInterval,
		sweepInterval: defaultSweepInterval,
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("scheduler")
	return s
}

// Start launches the monitoring loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.loop(runCtx, s.done)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.ready != nil {
		select {
		case <-s.ready:
		case <-ctx.Done():
			return
		}
	}
	s.log.Info(ctx, "monitoring loop started",
		logger.Duration("cycle_interval", s.cycleInterval),
		logger.Duration("sweep_interval", s.sweepInterval))

	cycle := time.NewTicker(s.cycleInterval)
	defer cycle.Stop()
	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "monitoring loop stopped")
			return
		case <-cycle.C:
			s.runCycle(ctx)
		case <-sweep.C:
			s.runSweep(ctx)
		}
	}
}

// runCycle runs one cycle and contains any panic so a single bad cycle
// never stops future ticks.
func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "monitoring cycle panicked", logger.Any("panic", r))
		}
	}()
	s.runner.RunCycle(ctx)
}

func (s *Scheduler) runSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "expiration sweep panicked", logger.Any("panic", r))
		}
	}()

	count, err := s.expirer.ExpireAlerts(ctx)
	if err != nil {
		s.log.Error(ctx, "expiration sweep failed", logger.Error(err))
		return
	}
	if count > 0 {
		metrics.RecordExpiredAlerts(int(count))
		s.log.Info(ctx, "alerts expired", logger.Int64("count", count))
	}
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop halts the loop and waits for it to exit, bounded by ctx.
// Idempotent; the scheduler may be started again afterwards.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
