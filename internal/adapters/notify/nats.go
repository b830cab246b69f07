package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/okian/spotwatch/pkg/logger"
)

const (
	defaultSubject      = "spotwatch.notifications"
	defaultFlushTimeout = 2 * time.Second
)

// payload is the wire form published for each delivery.
type payload struct {
	DeliveryID  string    `json:"delivery_id"`
	AlertID     int64     `json:"alert_id"`
	UserID      int64     `json:"user_id"`
	Pattern     string    `json:"pattern"`
	Callsign    string    `json:"callsign"`
	Mode        string    `json:"mode"`
	FrequencyHz int64     `json:"frequency_hz"`
	Source      string    `json:"source"`
	Spotter     string    `json:"spotter,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	SpottedAt   time.Time `json:"spotted_at"`
	SentAt      time.Time `json:"sent_at"`
}

// NATSSink publishes notifications as JSON messages on a NATS subject.
// Downstream consumers (chat bridges, mailers) subscribe independently.
type NATSSink struct {
	conn         *nats.Conn
	subject      string
	flushTimeout time.Duration
	log          logger.Logger
	now          func() time.Time
	ownsConn     bool
}

var _ Sink = (*NATSSink)(nil)

// NATSOption applies a configuration option to the NATSSink.
type NATSOption func(*NATSSink)

// WithSubject overrides the publish subject.
func WithSubject(subject string) NATSOption {
	return func(s *NATSSink) {
		if subject != "" {
			s.subject = subject
		}
	}
}

// WithFlushTimeout bounds the post-publish flush.
func WithFlushTimeout(d time.Duration) NATSOption {
	return func(s *NATSSink) {
		if d > 0 {
			s.flushTimeout = d
		}
	}
}

// WithNATSLogger sets the logger.
func WithNATSLogger(log logger.Logger) NATSOption {
	return func(s *NATSSink) {
		if log != nil {
			s.log = log
		}
	}
}

// WithNATSConn supplies an existing connection. The sink will not close
// a connection it does not own.
func WithNATSConn(conn *nats.Conn) NATSOption {
	return func(s *NATSSink) {
		if conn != nil {
			s.conn = conn
			s.ownsConn = false
		}
	}
}

// NewNATSSink connects to url unless a connection was supplied via
// WithNATSConn.
func NewNATSSink(url string, opts ...NATSOption) (*NATSSink, error) {
	s := &NATSSink{
		subject:      defaultSubject,
		flushTimeout: defaultFlushTimeout,
		log:          logger.Nop(),
		now:          time.Now,
		ownsConn:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("nats")

	if s.conn == nil {
		conn, err := nats.Connect(url,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to nats: %w", err)
		}
		s.conn = conn
	}
	return s, nil
}

// Deliver publishes one notification. Broker unavailability is a
// transient outcome; a payload that cannot be marshalled is permanent.
func (s *NATSSink) Deliver(ctx context.Context, n Notification) (DeliveryResult, error) {
	msg := payload{
		DeliveryID:  uuid.NewString(),
		AlertID:     n.Alert.ID,
		UserID:      n.Alert.UserID,
		Pattern:     n.Alert.Pattern,
		Callsign:    n.Spot.Callsign,
		Mode:        n.Spot.Mode,
		FrequencyHz: n.Spot.Frequency,
		Source:      n.Spot.Source,
		Spotter:     n.Spot.Spotter,
		Comment:     n.Spot.Comment(),
		SpottedAt:   n.Spot.Timestamp,
		SentAt:      s.now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return DeliveryPermanent, fmt.Errorf("marshal notification: %w", err)
	}

	if err := s.conn.Publish(s.subject, data); err != nil {
		return classifyPublishError(err), fmt.Errorf("publish notification: %w", err)
	}
	if err := s.conn.FlushTimeout(s.flushTimeout); err != nil {
		return DeliveryTransient, fmt.Errorf("flush notification: %w", err)
	}

	s.log.Debug(ctx, "notification published",
		logger.String("delivery_id", msg.DeliveryID),
		logger.Int64("alert_id", msg.AlertID),
		logger.String("subject", s.subject),
	)
	return DeliveryOK, nil
}

func classifyPublishError(err error) DeliveryResult {
	switch {
	case errors.Is(err, nats.ErrMaxPayload),
		errors.Is(err, nats.ErrBadSubject):
		return DeliveryPermanent
	default:
		return DeliveryTransient
	}
}

// Close flushes and closes an owned connection.
func (s *NATSSink) Close() error {
	if s.conn == nil || !s.ownsConn {
		return nil
	}
	if err := s.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		s.conn.Close()
		return err
	}
	s.conn = nil
	return nil
}
