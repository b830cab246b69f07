package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spotwatch/internal/adapters/notify"
	"github.com/okian/spotwatch/internal/adapters/repository"
	"github.com/okian/spotwatch/internal/adapters/source"
	"github.com/okian/spotwatch/internal/domain/model"
)

type fakeAdapter struct {
	name      string
	spots     []model.Spot
	err       error
	lastSince time.Time
	calls     int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) FetchRecent(_ context.Context, since time.Time) ([]model.Spot, error) {
	f.calls++
	f.lastSince = since
	return f.spots, f.err
}

func (f *fakeAdapter) TestConnection(context.Context) bool { return true }
func (f *fakeAdapter) SupportedModes() []string            { return nil }
func (f *fakeAdapter) Close(context.Context) error         { return nil }

type fakeSink struct {
	result    notify.DeliveryResult
	err       error
	delivered []notify.Notification
}

func (f *fakeSink) Deliver(_ context.Context, n notify.Notification) (notify.DeliveryResult, error) {
	f.delivered = append(f.delivered, n)
	return f.result, f.err
}

func (f *fakeSink) Close() error { return nil }

// errLedger fails every dedup read.
type errLedger struct {
	repository.DedupLedger
}

func (errLedger) WasSent(context.Context, int64, model.Spot, time.Duration) (bool, error) {
	return false, errors.New("ledger unavailable")
}

type fixture struct {
	store   *repository.MemoryStore
	sink    *fakeSink
	adapter *fakeAdapter
	engine  *Engine
	current *time.Time
	ctx     context.Context
}

func newFixture(opts ...Option) *fixture {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	store := repository.NewMemoryStore(repository.WithMemoryClock(clock))
	sink := &fakeSink{result: notify.DeliveryOK}
	adapter := &fakeAdapter{name: "pskreporter"}
	opts = append([]Option{WithClock(clock)}, opts...)
	eng := New(store, store, store, sink, []source.Adapter{adapter}, opts...)
	return &fixture{store: store, sink: sink, adapter: adapter, engine: eng, current: &current, ctx: context.Background()}
}

func (f *fixture) addAlert(userID int64, pattern, source string, modes ...string) int64 {
	id, err := f.store.CreateAlert(f.ctx, model.Alert{
		UserID:    userID,
		Pattern:   pattern,
		Modes:     modes,
		Source:    source,
		CreatedAt: *f.current,
		ExpiresAt: f.current.Add(30 * 24 * time.Hour),
	})
	if err != nil {
		panic(err)
	}
	return id
}

func (f *fixture) spot(spotID, callsign, mode string) model.Spot {
	return model.Spot{
		Callsign:  callsign,
		Mode:      mode,
		Frequency: 14074000,
		Timestamp: *f.current,
		SpotID:    spotID,
		Source:    "pskreporter",
	}
}

func TestEndToEndDelivery(t *testing.T) {
	Convey("Given a wildcard alert and a fresh matching spot", t, func() {
		f := newFixture()
		id := f.addAlert(7, "N4OG", "all")
		spot := f.spot("s1", "N4OG", "FT8")
		f.adapter.spots = []model.Spot{spot}

		stats := f.engine.RunCycle(f.ctx)

		Convey("Then exactly one notification is delivered", func() {
			So(f.sink.delivered, ShouldHaveLength, 1)
			So(f.sink.delivered[0].Spot.Callsign, ShouldEqual, "N4OG")
			So(stats.Delivered, ShouldEqual, 1)
		})

		Convey("And the ledger holds the dedup and cooldown records", func() {
			sent, err := f.store.WasSent(f.ctx, id, spot, 5*time.Minute)
			So(err, ShouldBeNil)
			So(sent, ShouldBeTrue)

			cooling, _ := f.store.IsInCooldown(f.ctx, id, 5*time.Minute)
			So(cooling, ShouldBeTrue)
		})

		Convey("And the user row exists with a display name", func() {
			name, ok := f.store.UserName(7)
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, "user-7")
		})

		Convey("And a repeated cycle with the same spot delivers nothing", func() {
			f.engine.RunCycle(f.ctx)
			So(f.sink.delivered, ShouldHaveLength, 1)
		})
	})
}

func TestCrossSourceDedup(t *testing.T) {
	Convey("Given a spot already notified from one source", t, func() {
		f := newFixture()
		f.addAlert(7, "N4OG", "all")
		f.adapter.spots = []model.Spot{f.spot("s1", "N4OG", "FT8")}
		f.engine.RunCycle(f.ctx)
		So(f.sink.delivered, ShouldHaveLength, 1)

		Convey("When another source reports the same callsign and mode inside the window", func() {
			*f.current = f.current.Add(2 * time.Minute)
			dup := f.spot("other-id", "N4OG", "FT8")
			dup.Source = "dxcluster"
			dup.Timestamp = *f.current
			f.adapter.spots = []model.Spot{dup}

			f.engine.RunCycle(f.ctx)

			Convey("Then no second notification is sent", func() {
				So(f.sink.delivered, ShouldHaveLength, 1)
			})
		})
	})
}

func TestCooldownThrottling(t *testing.T) {
	Convey("Given a short-prefix alert that just fired", t, func() {
		f := newFixture()
		f.addAlert(7, "N4", "all")
		f.adapter.spots = []model.Spot{f.spot("s1", "N4OG", "FT8")}
		f.engine.RunCycle(f.ctx)
		So(f.sink.delivered, ShouldHaveLength, 1)

		Convey("A distinct callsign inside the cooldown window is suppressed", func() {
			*f.current = f.current.Add(time.Minute)
			next := f.spot("s2", "N4AB", "FT8")
			next.Timestamp = *f.current
			f.adapter.spots = []model.Spot{next}

			f.engine.RunCycle(f.ctx)
			So(f.sink.delivered, ShouldHaveLength, 1)

			Convey("And delivered once the cooldown elapses", func() {
				*f.current = f.current.Add(10 * time.Minute)
				late := f.spot("s3", "N4CD", "FT8")
				late.Timestamp = *f.current
				f.adapter.spots = []model.Spot{late}

				f.engine.RunCycle(f.ctx)
				So(f.sink.delivered, ShouldHaveLength, 2)
			})
		})
	})
}

func TestAlertFiresOncePerCycle(t *testing.T) {
	Convey("Given a broad prefix alert and a burst of matching spots", t, func() {
		f := newFixture()
		f.addAlert(7, "N4", "all")
		f.adapter.spots = []model.Spot{
			f.spot("s1", "N4OG", "FT8"),
			f.spot("s2", "N4AB", "FT8"),
			f.spot("s3", "N4CD", "CW"),
		}

		stats := f.engine.RunCycle(f.ctx)

		Convey("Then only the first spot triggers the alert", func() {
			So(f.sink.delivered, ShouldHaveLength, 1)
			So(f.sink.delivered[0].Spot.SpotID, ShouldEqual, "s1")
			So(stats.Matched, ShouldEqual, 1)
		})
	})
}

func TestModeFiltering(t *testing.T) {
	Convey("Given an alert restricted to CW", t, func() {
		f := newFixture()
		f.addAlert(7, "N4OG", "all", "CW")
		f.adapter.spots = []model.Spot{
			f.spot("s1", "N4OG", "FT8"),
			f.spot("s2", "N4OG", "cw"),
		}

		f.engine.RunCycle(f.ctx)

		Convey("Then only the CW spot is delivered, case-insensitively", func() {
			So(f.sink.delivered, ShouldHaveLength, 1)
			So(f.sink.delivered[0].Spot.SpotID, ShouldEqual, "s2")
		})
	})
}

func TestHourlyRateCap(t *testing.T) {
	Convey("Given a user at the hourly cap", t, func() {
		f := newFixture(WithHourlySendCap(1))
		f.addAlert(7, "N4OG", "all")
		second := f.addAlert(7, "K1AB", "all")

		f.adapter.spots = []model.Spot{
			f.spot("s1", "N4OG", "FT8"),
			f.spot("s2", "K1AB", "FT8"),
		}

		stats := f.engine.RunCycle(f.ctx)

		Convey("Then the second send is a hard drop with no records", func() {
			So(f.sink.delivered, ShouldHaveLength, 1)
			So(stats.Dropped, ShouldEqual, 1)

			sent, _ := f.store.WasSent(f.ctx, second, f.spot("s2", "K1AB", "FT8"), 5*time.Minute)
			So(sent, ShouldBeFalse)
			cooling, _ := f.store.IsInCooldown(f.ctx, second, 5*time.Minute)
			So(cooling, ShouldBeFalse)
		})
	})
}

func TestDeliveryFailureSemantics(t *testing.T) {
	Convey("Given a sink that fails permanently", t, func() {
		f := newFixture()
		id := f.addAlert(7, "N4OG", "all")
		f.sink.result = notify.DeliveryPermanent
		f.sink.err = errors.New("user unreachable")
		f.adapter.spots = []model.Spot{f.spot("s1", "N4OG", "FT8")}

		f.engine.RunCycle(f.ctx)

		Convey("Then nothing is recorded", func() {
			sent, _ := f.store.WasSent(f.ctx, id, f.spot("s1", "N4OG", "FT8"), 5*time.Minute)
			So(sent, ShouldBeFalse)
			cooling, _ := f.store.IsInCooldown(f.ctx, id, 5*time.Minute)
			So(cooling, ShouldBeFalse)
		})
	})

	Convey("Given a sink that fails transiently, then recovers", t, func() {
		f := newFixture()
		f.sink.result = notify.DeliveryTransient
		f.sink.err = errors.New("rate limited")
		f.addAlert(7, "N4OG", "all")
		f.adapter.spots = []model.Spot{f.spot("s1", "N4OG", "FT8")}

		f.engine.RunCycle(f.ctx)
		So(f.sink.delivered, ShouldHaveLength, 1)

		Convey("Then the next cycle retries and succeeds", func() {
			f.sink.result = notify.DeliveryOK
			f.sink.err = nil

			f.engine.RunCycle(f.ctx)
			So(f.sink.delivered, ShouldHaveLength, 2)
		})
	})
}

func TestLedgerFailureIsFailSafe(t *testing.T) {
	Convey("Given an unreadable dedup ledger", t, func() {
		f := newFixture()
		f.addAlert(7, "N4OG", "all")
		f.engine.ledger = errLedger{DedupLedger: f.store}
		f.adapter.spots = []model.Spot{f.spot("s1", "N4OG", "FT8")}

		stats := f.engine.RunCycle(f.ctx)

		Convey("Then the send is skipped rather than risking a duplicate", func() {
			So(f.sink.delivered, ShouldBeEmpty)
			So(stats.Dropped, ShouldEqual, 1)
		})
	})
}

func TestSinceWindow(t *testing.T) {
	Convey("Given a fresh engine", t, func() {
		f := newFixture()

		Convey("The first cycle looks back ten minutes", func() {
			f.engine.RunCycle(f.ctx)
			So(f.adapter.lastSince, ShouldEqual, f.current.Add(-10*time.Minute))
		})

		Convey("Later cycles resume from the previous check", func() {
			f.engine.RunCycle(f.ctx)
			first := *f.current
			*f.current = f.current.Add(3 * time.Minute)

			f.engine.RunCycle(f.ctx)
			So(f.adapter.lastSince, ShouldEqual, first)

			last, ok := f.engine.LastCheck("pskreporter")
			So(ok, ShouldBeTrue)
			So(last, ShouldEqual, *f.current)
		})

		Convey("A fetch error still advances the check time", func() {
			f.adapter.err = errors.New("socket closed")
			f.engine.RunCycle(f.ctx)

			_, ok := f.engine.LastCheck("pskreporter")
			So(ok, ShouldBeTrue)
		})
	})
}

func TestSourceScoping(t *testing.T) {
	Convey("Given an alert pinned to another source", t, func() {
		f := newFixture()
		f.addAlert(7, "N4OG", "dxcluster")
		f.adapter.spots = []model.Spot{f.spot("s1", "N4OG", "FT8")}

		f.engine.RunCycle(f.ctx)

		Convey("Then spots from this source never reach it", func() {
			So(f.sink.delivered, ShouldBeEmpty)
		})
	})
}
