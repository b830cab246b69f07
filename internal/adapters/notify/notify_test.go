package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spotwatch/internal/domain/model"
	"github.com/okian/spotwatch/pkg/logger"
)

func TestDeliveryResultString(t *testing.T) {
	Convey("Delivery results have stable names", t, func() {
		So(DeliveryOK.String(), ShouldEqual, "ok")
		So(DeliveryPermanent.String(), ShouldEqual, "permanent")
		So(DeliveryTransient.String(), ShouldEqual, "transient")
		So(DeliveryResult(99).String(), ShouldEqual, "unknown")
	})
}

func TestNopSink(t *testing.T) {
	Convey("The nop sink always succeeds", t, func() {
		var s NopSink
		res, err := s.Deliver(context.Background(), Notification{})
		So(err, ShouldBeNil)
		So(res, ShouldEqual, DeliveryOK)
		So(s.Close(), ShouldBeNil)
	})
}

func TestLogSink(t *testing.T) {
	Convey("The log sink succeeds and tolerates a nil logger", t, func() {
		s := NewLogSink(nil)
		n := Notification{
			Alert: model.Alert{ID: 1, UserID: 7, Pattern: "N4OG"},
			Spot: model.Spot{
				Callsign:  "N4OG",
				Mode:      "FT8",
				Frequency: 14074000,
				Timestamp: time.Now().UTC(),
				Source:    "pskreporter",
			},
		}
		res, err := s.Deliver(context.Background(), n)
		So(err, ShouldBeNil)
		So(res, ShouldEqual, DeliveryOK)
		So(s.Close(), ShouldBeNil)
	})
}

func TestClassifyPublishError(t *testing.T) {
	Convey("Publish errors map to the right retry class", t, func() {
		So(classifyPublishError(nats.ErrMaxPayload), ShouldEqual, DeliveryPermanent)
		So(classifyPublishError(nats.ErrBadSubject), ShouldEqual, DeliveryPermanent)
		So(classifyPublishError(nats.ErrConnectionClosed), ShouldEqual, DeliveryTransient)
		So(classifyPublishError(errors.New("broken pipe")), ShouldEqual, DeliveryTransient)
	})
}

func TestNATSOptions(t *testing.T) {
	Convey("Options shape the sink before connecting", t, func() {
		s := &NATSSink{
			subject:      defaultSubject,
			flushTimeout: defaultFlushTimeout,
			log:          logger.Nop(),
			now:          time.Now,
		}
		WithSubject("alerts.out")(s)
		WithFlushTimeout(5 * time.Second)(s)
		So(s.subject, ShouldEqual, "alerts.out")
		So(s.flushTimeout, ShouldEqual, 5*time.Second)

		WithSubject("")(s)
		WithFlushTimeout(0)(s)
		So(s.subject, ShouldEqual, "alerts.out")
		So(s.flushTimeout, ShouldEqual, 5*time.Second)
	})
}
