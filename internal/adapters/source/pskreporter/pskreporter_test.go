package pskreporter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleXML = `<?xml version="1.0"?>
<receptionReports currentSeconds="1772366400">
  <receptionReport receiverCallsign="W1ABC" senderCallsign="N4OG" frequency="14074123" mode="FT8" flowStartSeconds="1772366100"/>
  <receptionReport receiverCallsign="JA1XYZ" senderCallsign="VU3YBH" frequency="28075100" mode="FT4" flowStartSeconds="1772366200"/>
  <receptionReport receiverCallsign="K9TTT" senderCallsign="" frequency="7074000" mode="FT8" flowStartSeconds="1772366200"/>
  <receptionReport receiverCallsign="K9TTT" senderCallsign="DL1AAA" frequency="7074000" mode="" flowStartSeconds="1772366200"/>
  <receptionReport receiverCallsign="K9TTT" senderCallsign="G0BBB" frequency="garbage" mode="CW" flowStartSeconds="1772366200"/>
</receptionReports>`

func TestFetchRecentParsesReports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("flowStartSeconds") == "" {
			t.Error("expected flowStartSeconds query parameter")
		}
		w.Write([]byte(sampleXML))
	}))
	defer srv.Close()

	fixed := time.Unix(1772366400, 0).UTC()
	a := New(WithQueryURL(srv.URL), WithClock(func() time.Time { return fixed }))

	spots, err := a.FetchRecent(context.Background(), fixed.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Empty sender, empty mode and garbage frequency rows are skipped.
	if len(spots) != 2 {
		t.Fatalf("expected 2 spots, got %d", len(spots))
	}

	s := spots[0]
	if s.Callsign != "N4OG" || s.Mode != "FT8" || s.Frequency != 14074123 {
		t.Errorf("unexpected first spot: %+v", s)
	}
	if s.Spotter != "W1ABC" {
		t.Errorf("expected spotter W1ABC, got %s", s.Spotter)
	}
	if s.Source != SourceName {
		t.Errorf("expected source %s, got %s", SourceName, s.Source)
	}
	if s.Timestamp.Unix() != 1772366100 {
		t.Errorf("expected flowStartSeconds timestamp, got %v", s.Timestamp)
	}
	if s.SpotID == "" || s.SpotID == spots[1].SpotID {
		t.Error("spot ids must be assigned and distinct")
	}
}

func TestFetchRecentFiltersBySince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleXML))
	}))
	defer srv.Close()

	fixed := time.Unix(1772366400, 0).UTC()
	a := New(WithQueryURL(srv.URL), WithClock(func() time.Time { return fixed }))

	// since after both report timestamps: everything filtered out.
	spots, err := a.FetchRecent(context.Background(), fixed.Add(-time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spots) != 0 {
		t.Errorf("expected all spots filtered by since, got %d", len(spots))
	}
}

func TestFetchRecentTreats503AsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := New(WithQueryURL(srv.URL))
	spots, err := a.FetchRecent(context.Background(), time.Now().Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("503 must not surface as an error, got %v", err)
	}
	if len(spots) != 0 {
		t.Errorf("expected empty batch on 503, got %d", len(spots))
	}
}

func TestFetchRecentTreatsBadXMLAsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<receptionReports><broken"))
	}))
	defer srv.Close()

	a := New(WithQueryURL(srv.URL))
	spots, err := a.FetchRecent(context.Background(), time.Now().Add(-10*time.Minute))
	if err != nil || len(spots) != 0 {
		t.Errorf("malformed body must yield empty batch, got %d spots err=%v", len(spots), err)
	}
}

func TestFetchRecentUnreachableHostIsTransient(t *testing.T) {
	a := New(WithQueryURL("http://127.0.0.1:1"))
	spots, err := a.FetchRecent(context.Background(), time.Now().Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("connection refusal must not surface as an error, got %v", err)
	}
	if len(spots) != 0 {
		t.Errorf("expected empty batch, got %d", len(spots))
	}
}

func TestTestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<receptionReports/>`))
	}))
	defer srv.Close()

	a := New(WithQueryURL(srv.URL))
	if !a.TestConnection(context.Background()) {
		t.Error("expected connection test to pass against healthy server")
	}

	srv.Close()
	if a.TestConnection(context.Background()) {
		t.Error("expected connection test to fail against closed server")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	a := New()
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestNameAndModes(t *testing.T) {
	a := New()
	if a.Name() != "pskreporter" {
		t.Errorf("unexpected name %s", a.Name())
	}
	modes := a.SupportedModes()
	if len(modes) == 0 {
		t.Fatal("expected non-empty mode list")
	}
	for _, m := range modes {
		if m == "SSB" {
			t.Error("digital feed must not claim SSB support")
		}
	}
}
