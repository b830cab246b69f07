// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/spotwatch/internal/domain/model"
)

// SpotReader exposes the recent-spot buffers for the display surface.
type SpotReader interface {
	// RecentSpots returns up to n buffered spots for one source,
	// newest first. Unknown sources yield an empty slice.
	RecentSpots(source string, n int) []model.Spot
}

// Server wires HTTP routes for the monitoring API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	spotsHandler  *SpotsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(spots SpotReader, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		spotsHandler:  NewSpotsHandler(spots),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("/stats", s.statsHandler.HandleStats)
	mux.HandleFunc("/spots/recent", s.spotsHandler.HandleRecentSpots)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
