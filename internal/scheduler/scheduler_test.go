package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spotwatch/internal/engine"
)

type countingRunner struct {
	cycles atomic.Int64
	panics atomic.Bool
}

func (c *countingRunner) RunCycle(context.Context) engine.CycleStats {
	c.cycles.Add(1)
	if c.panics.Load() {
		panic("cycle exploded")
	}
	return engine.CycleStats{}
}

type countingExpirer struct {
	sweeps atomic.Int64
	err    error
}

func (c *countingExpirer) ExpireAlerts(context.Context) (int64, error) {
	c.sweeps.Add(1)
	return 2, c.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSchedulerTicks(t *testing.T) {
	runner := &countingRunner{}
	expirer := &countingExpirer{}
	s := New(runner, expirer,
		WithCycleInterval(10*time.Millisecond),
		WithSweepInterval(25*time.Millisecond))

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	waitFor(t, func() bool { return runner.cycles.Load() >= 3 })
	waitFor(t, func() bool { return expirer.sweeps.Load() >= 1 })
}

func TestStartIsIdempotent(t *testing.T) {
	Convey("Given a running scheduler", t, func() {
		runner := &countingRunner{}
		s := New(runner, &countingExpirer{}, WithCycleInterval(10*time.Millisecond))
		ctx := context.Background()

		s.Start(ctx)
		So(s.Running(), ShouldBeTrue)

		Convey("A second Start changes nothing", func() {
			s.Start(ctx)
			So(s.Running(), ShouldBeTrue)
			So(s.Stop(ctx), ShouldBeNil)
		})

		Convey("And the scheduler restarts after Stop", func() {
			So(s.Stop(ctx), ShouldBeNil)
			So(s.Running(), ShouldBeFalse)

			before := runner.cycles.Load()
			s.Start(ctx)
			waitFor(t, func() bool { return runner.cycles.Load() > before })
			So(s.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(&countingRunner{}, &countingExpirer{}, WithCycleInterval(10*time.Millisecond))
	ctx := context.Background()

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop before start: %v", err)
	}

	s.Start(ctx)
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestPanickingCycleDoesNotStopLoop(t *testing.T) {
	runner := &countingRunner{}
	runner.panics.Store(true)
	s := New(runner, &countingExpirer{}, WithCycleInterval(10*time.Millisecond))

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	waitFor(t, func() bool { return runner.cycles.Load() >= 3 })
}

func TestSweepErrorIsNotFatal(t *testing.T) {
	runner := &countingRunner{}
	expirer := &countingExpirer{err: errors.New("database down")}
	s := New(runner, expirer,
		WithCycleInterval(10*time.Millisecond),
		WithSweepInterval(10*time.Millisecond))

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	waitFor(t, func() bool { return expirer.sweeps.Load() >= 2 && runner.cycles.Load() >= 2 })
}

func TestReadySignalGatesFirstTick(t *testing.T) {
	runner := &countingRunner{}
	ready := make(chan struct{})
	s := New(runner, &countingExpirer{},
		WithCycleInterval(10*time.Millisecond),
		WithReadySignal(ready))

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	time.Sleep(50 * time.Millisecond)
	if runner.cycles.Load() != 0 {
		t.Fatalf("cycles ran before readiness: %d", runner.cycles.Load())
	}

	close(ready)
	waitFor(t, func() bool { return runner.cycles.Load() >= 1 })
}
