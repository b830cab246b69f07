// Package notify defines the delivery boundary for matched spots.
package notify

import (
	"context"

	"github.com/okian/spotwatch/internal/domain/model"
	"github.com/okian/spotwatch/pkg/logger"
)

// DeliveryResult classifies a delivery attempt. The matching engine
// records and cools down only on DeliveryOK; DeliveryPermanent drops
// the notification without any record so the pair is never retried
// through the window key either; DeliveryTransient drops it without a
// cooldown so a later cycle may retry.
type DeliveryResult int

const (
	DeliveryOK DeliveryResult = iota
	DeliveryPermanent
	DeliveryTransient
)

// String returns the lowercase name of the result.
func (r DeliveryResult) String() string {
	switch r {
	case DeliveryOK:
		return "ok"
	case DeliveryPermanent:
		return "permanent"
	case DeliveryTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Notification is one matched spot bound for one alert owner.
type Notification struct {
	Alert model.Alert
	Spot  model.Spot
}

// Sink delivers notifications to their destination. Implementations
// must be safe for concurrent use.
type Sink interface {
	// Deliver attempts to send one notification and classifies the
	// outcome. An error accompanies non-OK results with detail.
	Deliver(ctx context.Context, n Notification) (DeliveryResult, error)

	// Close releases sink resources. Idempotent.
	Close() error
}

// NopSink accepts every notification and discards it.
type NopSink struct{}

// Deliver reports success without doing anything.
func (NopSink) Deliver(context.Context, Notification) (DeliveryResult, error) {
	return DeliveryOK, nil
}

// Close is a no-op.
func (NopSink) Close() error { return nil }

// LogSink writes each notification to the logger. Useful for local
// runs without a broker.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a sink that logs deliveries at info level.
func NewLogSink(log logger.Logger) *LogSink {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSink{log: log.Named("notify")}
}

// Deliver logs the notification and reports success.
func (s *LogSink) Deliver(ctx context.Context, n Notification) (DeliveryResult, error) {
	s.log.Info(ctx, "spot notification",
		logger.Int64("alert_id", n.Alert.ID),
		logger.Int64("user_id", n.Alert.UserID),
		logger.String("callsign", n.Spot.Callsign),
		logger.String("mode", n.Spot.Mode),
		logger.Int64("frequency_hz", n.Spot.Frequency),
		logger.String("source", n.Spot.Source),
	)
	return DeliveryOK, nil
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }
