// Package engine correlates incoming spots with registered alerts and
// drives notification delivery through the dedup, cooldown, and
// rate-limit policies.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/spotwatch/internal/adapters/notify"
	"github.com/okian/spotwatch/internal/adapters/repository"
	"github.com/okian/spotwatch/internal/adapters/source"
	"github.com/okian/spotwatch/internal/domain/match"
	"github.com/okian/spotwatch/internal/domain/model"
	"github.com/okian/spotwatch/pkg/logger"
	"github.com/okian/spotwatch/pkg/metrics"
)

const (
	defaultCooldown      = 5 * time.Minute
	defaultDedupWindow   = 5 * time.Minute
	defaultLookback      = 10 * time.Minute
	defaultRateWindow    = time.Hour
	defaultHourlySendCap = 20
)

// candidate is one matched (spot, alert) pair queued for delivery.
type candidate struct {
	spot  model.Spot
	alert model.Alert
}

// CycleStats summarizes one monitoring cycle for logging and the
// status endpoint.
type CycleStats struct {
	Sources   int
	Spots     int
	Matched   int
	Delivered int
	Dropped   int
}

// Engine runs monitoring cycles over a fixed set of source adapters.
// One cycle per adapter: fetch spots since the last check, match them
// against active alerts, and deliver the survivors.
type Engine struct {
	alerts repository.AlertStore
	ledger repository.DedupLedger
	users  repository.UserStore
	sink   notify.Sink

	adapters []source.Adapter

	cooldown    time.Duration
	dedupWindow time.Duration
	lookback    time.Duration
	rateWindow  time.Duration
	sendCap     int

	displayName func(userID int64) string
	log         logger.Logger
	now         func() time.Time

	mu        sync.Mutex
	lastCheck map[string]time.Time
}

// New builds an Engine over the given stores, sink, and adapters.
func New(alerts repository.AlertStore, ledger repository.DedupLedger, users repository.UserStore,
	sink notify.Sink, adapters []source.Adapter, opts ...Option) *Engine {
	e := &Engine{
		alerts:      alerts,
		ledger:      ledger,
		users:       users,
		sink:        sink,
		adapters:    adapters,
		cooldown:    defaultCooldown,
		dedupWindow: defaultDedupWindow,
		lookback:    defaultLookback,
		rateWindow:  defaultRateWindow,
		sendCap:     defaultHourlySendCap,
		displayName: func(userID int64) string { return fmt.Sprintf("user-%d", userID) },
		log:         logger.Nop(),
		now:         time.Now,
		lastCheck:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("engine")
	return e
}

// RunCycle executes one monitoring cycle across every adapter. A
// failure inside one source never blocks the others, and a failure on
// one (spot, alert) pair never aborts the rest.
func (e *Engine) RunCycle(ctx context.Context) CycleStats {
	start := e.now()
	stats := CycleStats{Sources: len(e.adapters)}

	for _, adapter := range e.adapters {
		if ctx.Err() != nil {
			break
		}
		e.runSource(ctx, adapter, &stats)
	}

	metrics.RecordCycleDuration(e.now().Sub(start).Seconds())
	e.log.Debug(ctx, "cycle complete",
		logger.Int("spots", stats.Spots),
		logger.Int("matched", stats.Matched),
		logger.Int("delivered", stats.Delivered),
		logger.Int("dropped", stats.Dropped),
		logger.Duration("took", e.now().Sub(start)),
	)
	return stats
}

func (e *Engine) runSource(ctx context.Context, adapter source.Adapter, stats *CycleStats) {
	name := adapter.Name()
	now := e.now().UTC()
	since := e.sinceFor(name, now)

	// The last-check time advances even on empty or failed fetches so
	// the since window never grows without bound.
	spots, err := adapter.FetchRecent(ctx, since)
	e.setLastCheck(name, now)
	if err != nil {
		e.log.Error(ctx, "fetch failed", logger.String("source", name), logger.Error(err))
		return
	}
	stats.Spots += len(spots)
	if len(spots) == 0 {
		return
	}

	alerts, err := e.alerts.GetActiveAlertsBySource(ctx, name)
	if err != nil {
		e.log.Error(ctx, "load alerts failed", logger.String("source", name), logger.Error(err))
		return
	}
	metrics.UpdateActiveAlerts(len(alerts))
	if len(alerts) == 0 {
		return
	}

	queue := e.matchSpots(ctx, name, spots, alerts, stats)
	for _, c := range queue {
		e.deliver(ctx, c, stats)
	}
}

// matchSpots applies the matching rules and returns the pairs that
// survived dedup and cooldown. Each alert triggers at most once per
// cycle across all spots; a cooldown skip leaves the alert eligible
// for later spots in the same cycle.
func (e *Engine) matchSpots(ctx context.Context, sourceName string, spots []model.Spot,
	alerts []model.Alert, stats *CycleStats) []candidate {
	var queue []candidate
	matched := make(map[int64]struct{}, len(alerts))

	for _, spot := range spots {
		for _, alert := range alerts {
			if _, done := matched[alert.ID]; done {
				continue
			}
			if !match.Spot(alert, spot) {
				continue
			}

			sent, err := e.ledger.WasSent(ctx, alert.ID, spot, e.dedupWindow)
			if err != nil {
				// Fail safe: an unreadable ledger must not cause a
				// duplicate notification.
				e.log.Error(ctx, "dedup check failed, skipping send",
					logger.Int64("alert_id", alert.ID),
					logger.String("spot_id", spot.SpotID),
					logger.Error(err))
				metrics.RecordNotificationDropped(metrics.DropLedgerError)
				stats.Dropped++
				continue
			}
			if sent {
				metrics.RecordNotificationDropped(metrics.DropDuplicate)
				stats.Dropped++
				continue
			}

			cooling, err := e.ledger.IsInCooldown(ctx, alert.ID, e.cooldown)
			if err != nil {
				e.log.Error(ctx, "cooldown check failed, skipping send",
					logger.Int64("alert_id", alert.ID), logger.Error(err))
				metrics.RecordNotificationDropped(metrics.DropLedgerError)
				stats.Dropped++
				continue
			}
			if cooling {
				metrics.RecordNotificationDropped(metrics.DropCooldown)
				stats.Dropped++
				continue
			}

			matched[alert.ID] = struct{}{}
			metrics.RecordSpotMatched()
			stats.Matched++
			queue = append(queue, candidate{spot: spot, alert: alert})
		}
	}

	if len(queue) > 0 {
		e.log.Info(ctx, "matched spots",
			logger.String("source", sourceName),
			logger.Int("candidates", len(queue)))
	}
	return queue
}

// deliver pushes one candidate through the rate limit and the sink,
// then records the outcome. Errors stay inside this pair.
func (e *Engine) deliver(ctx context.Context, c candidate, stats *CycleStats) {
	sends, err := e.ledger.CountRecentSends(ctx, c.alert.UserID, e.rateWindow)
	if err != nil {
		e.log.Error(ctx, "rate limit check failed, skipping send",
			logger.Int64("user_id", c.alert.UserID), logger.Error(err))
		metrics.RecordNotificationDropped(metrics.DropLedgerError)
		stats.Dropped++
		return
	}
	if sends >= e.sendCap {
		// Hard drop: no ledger or cooldown record, so the pair stays
		// eligible on a later cycle.
		e.log.Warn(ctx, "user over hourly send cap",
			logger.Int64("user_id", c.alert.UserID),
			logger.Int("sends", sends),
			logger.Int("cap", e.sendCap))
		metrics.RecordNotificationDropped(metrics.DropRateLimited)
		stats.Dropped++
		return
	}

	result, err := e.sink.Deliver(ctx, notify.Notification{Alert: c.alert, Spot: c.spot})
	switch result {
	case notify.DeliveryOK:
		e.recordSend(ctx, c)
		stats.Delivered++
	case notify.DeliveryPermanent:
		e.log.Warn(ctx, "permanent delivery failure",
			logger.Int64("alert_id", c.alert.ID),
			logger.Int64("user_id", c.alert.UserID),
			logger.Error(err))
		metrics.RecordNotificationDropped(metrics.DropPermanent)
		stats.Dropped++
	case notify.DeliveryTransient:
		// No cooldown update so the next cycle may retry.
		e.log.Warn(ctx, "transient delivery failure",
			logger.Int64("alert_id", c.alert.ID),
			logger.Error(err))
		metrics.RecordNotificationDropped(metrics.DropTransient)
		stats.Dropped++
	}
}

func (e *Engine) recordSend(ctx context.Context, c candidate) {
	if err := e.ledger.RecordSent(ctx, c.alert.ID, c.spot); err != nil {
		e.log.Error(ctx, "record send failed",
			logger.Int64("alert_id", c.alert.ID),
			logger.String("spot_id", c.spot.SpotID),
			logger.Error(err))
	}
	if err := e.ledger.TouchCooldown(ctx, c.alert.ID); err != nil {
		e.log.Error(ctx, "touch cooldown failed",
			logger.Int64("alert_id", c.alert.ID), logger.Error(err))
	}
	if err := e.users.UpsertUser(ctx, c.alert.UserID, e.displayName(c.alert.UserID)); err != nil {
		e.log.Error(ctx, "upsert user failed",
			logger.Int64("user_id", c.alert.UserID), logger.Error(err))
	}
	metrics.RecordNotificationSent()
	e.log.Info(ctx, "notification delivered",
		logger.Int64("alert_id", c.alert.ID),
		logger.Int64("user_id", c.alert.UserID),
		logger.String("callsign", c.spot.Callsign),
		logger.String("mode", c.spot.Mode),
		logger.String("source", c.spot.Source))
}

// sinceFor returns the window start for a source's fetch.
func (e *Engine) sinceFor(sourceName string, now time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastCheck[sourceName]; ok {
		return last
	}
	return now.Add(-e.lookback)
}

func (e *Engine) setLastCheck(sourceName string, t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastCheck[sourceName] = t
}

// LastCheck reports a source's last cycle time, for the status surface.
func (e *Engine) LastCheck(sourceName string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.lastCheck[sourceName]
	return t, ok
}
