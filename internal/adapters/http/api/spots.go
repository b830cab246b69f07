// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultRecentCount = 10
	maxRecentCount     = 100
)

// spotResponse mirrors the read shape of one buffered spot.
type spotResponse struct {
	Callsign    string    `json:"callsign"`
	Mode        string    `json:"mode"`
	FrequencyHz int64     `json:"frequency_hz"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Spotter     string    `json:"spotter,omitempty"`
	Comment     string    `json:"comment,omitempty"`
}

// SpotsHandler serves the recent-spot display query.
type SpotsHandler struct {
	spots SpotReader
}

// NewSpotsHandler creates a new recent-spots handler.
func NewSpotsHandler(spots SpotReader) *SpotsHandler {
	return &SpotsHandler{spots: spots}
}

// HandleRecentSpots handles GET /spots/recent?source=NAME&count=N.
func (h *SpotsHandler) HandleRecentSpots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, "missing_source", errors.New("source query parameter is required"))
		return
	}

	count := defaultRecentCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_count", errors.New("count must be a positive integer"))
			return
		}
		count = n
	}
	if count > maxRecentCount {
		count = maxRecentCount
	}

	out := make([]spotResponse, 0, count)
	for _, s := range h.spots.RecentSpots(source, count) {
		out = append(out, spotResponse{
			Callsign:    s.Callsign,
			Mode:        s.Mode,
			FrequencyHz: s.Frequency,
			Timestamp:   s.Timestamp,
			Source:      s.Source,
			Spotter:     s.Spotter,
			Comment:     s.Comment(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
