package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewManagerWithCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(
		WithPrometheusRegistry(reg),
		WithNamespace("testns"),
		WithSubsystem("testsub"),
	)
	if m == nil {
		t.Fatal("expected manager")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	// Counters with no observations are not exported until first use; vec
	// metrics stay empty, but plain counters/gauges register immediately.
	found := false
	for _, f := range families {
		if f.GetName() == "testns_testsub_spots_matched_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected spots_matched_total to be registered")
	}
}

func TestGlobalHelpersDoNotPanic(t *testing.T) {
	RecordSpotIngested("dxcluster")
	RecordParseError("dxcluster")
	RecordFetchError("pskreporter")
	RecordReconnect("dxcluster")
	UpdateBufferSize("dxcluster", 42)
	RecordCycleDuration(0.25)
	RecordSpotMatched()
	UpdateActiveAlerts(3)
	RecordExpiredAlerts(2)
	RecordNotificationSent()
	RecordNotificationDropped(DropCooldown)
	RecordNotificationDropped(DropRateLimited)
}
