package model_test

import (
	"testing"
	"time"

	"github.com/okian/spotwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalizeFrequency(t *testing.T) {
	Convey("Given feed frequency values in mixed units", t, func() {
		cases := []struct {
			in   float64
			want int64
		}{
			{14.074, 14074000},      // MHz
			{14074, 14074000},       // kHz
			{14074000, 14074000},    // already Hz
			{14023.5, 14023500},     // kHz with fraction
			{28075.1, 28075100},     // kHz with fraction
			{7.074, 7074000},        // MHz
			{145500, 145500000},     // kHz, VHF
			{0, 0},                  // unknown
			{-5, 0},                 // nonsense
		}

		for _, c := range cases {
			So(model.NormalizeFrequency(c.in), ShouldEqual, c.want)
		}
	})
}

func TestAlertWantsMode(t *testing.T) {
	Convey("Given an alert with an explicit mode set", t, func() {
		a := model.Alert{Modes: []string{"FT8", "CW"}}

		Convey("Then membership is case-insensitive", func() {
			So(a.WantsMode("ft8"), ShouldBeTrue)
			So(a.WantsMode("FT8"), ShouldBeTrue)
			So(a.WantsMode("Cw"), ShouldBeTrue)
			So(a.WantsMode("SSB"), ShouldBeFalse)
		})
	})

	Convey("Given an alert with an empty mode set", t, func() {
		a := model.Alert{}

		Convey("Then any mode matches", func() {
			So(a.WantsMode("FT8"), ShouldBeTrue)
			So(a.WantsMode("SSTV"), ShouldBeTrue)
		})
	})
}

func TestAlertExpired(t *testing.T) {
	now := time.Now().UTC()

	a := model.Alert{ExpiresAt: now.Add(time.Hour)}
	if a.Expired(now) {
		t.Error("alert expiring in one hour should not be expired")
	}

	b := model.Alert{ExpiresAt: now.Add(-time.Minute)}
	if !b.Expired(now) {
		t.Error("alert past expires_at should be expired")
	}

	c := model.Alert{ExpiresAt: now}
	if !c.Expired(now) {
		t.Error("expires_at == now counts as expired")
	}
}

func TestModeVocabulary(t *testing.T) {
	if !model.IsKnownMode("ft8") {
		t.Error("FT8 should be known, case-insensitively")
	}
	if !model.IsKnownMode("SSB") {
		t.Error("SSB should be known")
	}
	if model.IsKnownMode("WARBLE") {
		t.Error("WARBLE should not be known")
	}

	digital := model.DigitalModes()
	all := model.AllModes()
	if len(all) <= len(digital) {
		t.Error("all modes should be a strict superset of digital modes")
	}

	// Returned slices are copies; mutating them must not poison the vocabulary.
	digital[0] = "JUNK"
	if !model.IsKnownMode("FT8") {
		t.Error("vocabulary mutated through returned slice")
	}
}

func TestFallbackSpotID(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id := model.FallbackSpotID("N4OG", "FT8", 14074000, ts)
	if id != "N4OG_FT8_14074000_1772366400" {
		t.Errorf("unexpected fallback id: %s", id)
	}
}
