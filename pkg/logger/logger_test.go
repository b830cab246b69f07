package logger

import (
	"context"
	"testing"
)

func TestInitAndLevels(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	l := Get()
	if l == nil {
		t.Fatal("expected non-nil global logger")
	}

	for _, lvl := range []string{"debug", "info", "warn", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("SetLevelString(%q) returned error: %v", lvl, err)
		}
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNamedAndFields(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	l := Named("adapter")
	// Must not panic with any field combination.
	l.Info(context.Background(), "connected",
		String("host", "cluster.example.net"),
		Int("port", 7300),
		Any("modes", []string{"FT8", "CW"}),
	)
	l.Warn(context.Background(), "retrying", Duration("backoff", 0))
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "should not appear anywhere", Error(nil))
}
