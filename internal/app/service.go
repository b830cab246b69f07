// Package service wires the stores, source adapters, matching engine,
// and scheduler into one process-level lifecycle and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/spotwatch/internal/adapters/notify"
	"github.com/okian/spotwatch/internal/adapters/repository"
	"github.com/okian/spotwatch/internal/adapters/source"
	"github.com/okian/spotwatch/internal/adapters/source/buffer"
	"github.com/okian/spotwatch/internal/adapters/source/dxcluster"
	"github.com/okian/spotwatch/internal/adapters/source/pskreporter"
	"github.com/okian/spotwatch/internal/config"
	"github.com/okian/spotwatch/internal/domain/model"
	"github.com/okian/spotwatch/internal/engine"
	"github.com/okian/spotwatch/internal/scheduler"
	"github.com/okian/spotwatch/pkg/logger"
)

// Service owns the monitoring pipeline: durable store, source
// adapters, matching engine, notification sink, and scheduler.
type Service struct {
	mu sync.Mutex

	cfg *config.Config
	log logger.Logger

	store    repository.Store
	sink     notify.Sink
	adapters []source.Adapter
	engine   *engine.Engine
	sched    *scheduler.Scheduler

	recent map[string]source.RecentSpotter

	started   bool
	startedAt time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStore injects a pre-built store, bypassing config-driven setup.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSink injects a pre-built notification sink.
func WithSink(sink notify.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithAdapters injects pre-built source adapters.
func WithAdapters(adapters ...source.Adapter) Option {
	return func(s *Service) {
		if len(adapters) > 0 {
			s.adapters = adapters
		}
	}
}

// New constructs a Service from configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		log:    logger.Nop(),
		recent: make(map[string]source.RecentSpotter),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("service")
	return s
}

// Start builds any components not injected and launches the
// monitoring loop. Calling Start on a running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if err := s.setupStore(ctx); err != nil {
		return err
	}
	if err := s.setupSink(); err != nil {
		return err
	}
	if err := s.setupAdapters(ctx); err != nil {
		return err
	}

	s.engine = engine.New(s.store, s.store, s.store, s.sink, s.adapters,
		engine.WithCooldown(time.Duration(s.cfg.CooldownMinutes)*time.Minute),
		engine.WithDedupWindow(time.Duration(s.cfg.DedupWindowMinutes)*time.Minute),
		engine.WithHourlySendCap(s.cfg.HourlySendCap),
		engine.WithLogger(s.log),
	)

	ready := make(chan struct{})
	close(ready)
	s.sched = scheduler.New(s.engine, s.store,
		scheduler.WithCycleInterval(time.Duration(s.cfg.PollIntervalMinutes)*time.Minute),
		scheduler.WithReadySignal(ready),
		scheduler.WithLogger(s.log),
	)
	s.sched.Start(ctx)

	s.started = true
	s.startedAt = time.Now().UTC()
	s.log.Info(ctx, "service started",
		logger.Int("sources", len(s.adapters)),
		logger.Int("poll_interval_minutes", s.cfg.PollIntervalMinutes))
	return nil
}

func (s *Service) setupStore(ctx context.Context) error {
	if s.store != nil {
		return nil
	}
	if s.cfg.DatabaseURL == "" {
		s.log.Warn(ctx, "no database configured, alert state will not survive restarts")
		s.store = repository.NewMemoryStore()
		return nil
	}

	pg, err := repository.NewPostgresStore(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("setup store: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return fmt.Errorf("ensure schema: %w", err)
	}
	s.store = pg
	return nil
}

func (s *Service) setupSink() error {
	if s.sink != nil {
		return nil
	}
	if s.cfg.NATSURL == "" {
		s.sink = notify.NewLogSink(s.log)
		return nil
	}

	sink, err := notify.NewNATSSink(s.cfg.NATSURL,
		notify.WithSubject(s.cfg.NATSSubject),
		notify.WithNATSLogger(s.log),
	)
	if err != nil {
		return fmt.Errorf("setup sink: %w", err)
	}
	s.sink = sink
	return nil
}

func (s *Service) setupAdapters(ctx context.Context) error {
	if s.adapters == nil {
		for _, name := range s.cfg.EnabledSources {
			switch name {
			case pskreporter.SourceName:
				s.adapters = append(s.adapters, pskreporter.New(
					pskreporter.WithLogger(s.log)))
			case dxcluster.SourceName:
				buf := buffer.New(
					buffer.WithCapacity(s.cfg.BufferCapacity),
					buffer.WithRetention(time.Duration(s.cfg.BufferRetentionMinutes)*time.Minute),
					buffer.WithSource(dxcluster.SourceName),
				)
				s.adapters = append(s.adapters, dxcluster.New(
					dxcluster.WithAddr(s.cfg.DXClusterAddr),
					dxcluster.WithLoginCallsign(s.cfg.DXClusterLogin),
					dxcluster.WithBuffer(buf),
					dxcluster.WithLogger(s.log),
				))
			default:
				return fmt.Errorf("%w: unknown source %q", config.ErrInvalidConfig, name)
			}
		}
	}

	for _, a := range s.adapters {
		if rs, ok := a.(source.RecentSpotter); ok {
			s.recent[a.Name()] = rs
		}
		if starter, ok := a.(interface{ Start(context.Context) }); ok {
			starter.Start(ctx)
		}
	}
	return nil
}

// Stop tears the pipeline down in dependency order: scheduler first so
// no cycle touches a closing store, then adapters, sink, and store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}

	var firstErr error
	if err := s.sched.Stop(ctx); err != nil {
		firstErr = err
	}
	for _, a := range s.adapters {
		if err := a.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.sink.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.store.Close()

	s.started = false
	s.log.Info(ctx, "service stopped")
	return firstErr
}

// RecentSpots serves the display query from a streaming source's
// buffer, newest first.
func (s *Service) RecentSpots(sourceName string, n int) []model.Spot {
	s.mu.Lock()
	rs, ok := s.recent[sourceName]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return rs.RecentSpots(n)
}

// GetStats reports service state for the status endpoint.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"started_at": s.startedAt,
		"sources":    len(s.adapters),
	}
	for _, a := range s.adapters {
		key := "source_" + a.Name()
		entry := map[string]interface{}{
			"connected": a.TestConnection(context.Background()),
		}
		if s.engine != nil {
			if last, ok := s.engine.LastCheck(a.Name()); ok {
				entry["last_check"] = last
			}
		}
		stats[key] = entry
	}
	return stats
}
