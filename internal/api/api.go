// Package api provides the ops HTTP endpoints: liveness and a stats snapshot.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"stormcrier/internal/history"
	"stormcrier/internal/stats"
)

// recentLimit caps how many history rows the stats endpoint returns.
const recentLimit = 20

// StatsSource provides the current stats snapshot.
type StatsSource interface {
	Snapshot() stats.Record
}

// HistorySource provides recent deliveries.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]history.Delivery, error)
}

// Server serves the ops endpoints.
type Server struct {
	stats   StatsSource
	history HistorySource
}

// New creates an ops API server. history may be nil when delivery history
// is not configured.
func New(stats StatsSource, history HistorySource) *Server {
	return &Server{stats: stats, history: history}
}

// Routes returns the handler for the ops endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// statsResponse is the GET /stats payload.
type statsResponse struct {
	LastUpdate      time.Time          `json:"lastUpdate"`
	LastAlertUpdate time.Time          `json:"lastAlertUpdate"`
	Counters        map[string]int64   `json:"counters"`
	Recent          []deliveryResponse `json:"recent,omitempty"`
}

type deliveryResponse struct {
	ReceiptID   string    `json:"receiptId"`
	Job         string    `json:"job"`
	Late        bool      `json:"late"`
	Message     string    `json:"message"`
	EventTypes  []string  `json:"eventTypes,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// handleStats handles GET /stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rec := s.stats.Snapshot()
	resp := statsResponse{
		LastUpdate:      rec.LastUpdate,
		LastAlertUpdate: rec.LastAlertUpdate,
		Counters:        rec.Counters,
	}

	if s.history != nil {
		deliveries, err := s.history.Recent(r.Context(), recentLimit)
		if err != nil {
			slog.Warn("Failed to load recent deliveries", "error", err)
		}
		for _, d := range deliveries {
			resp.Recent = append(resp.Recent, deliveryResponse{
				ReceiptID:   d.ReceiptID,
				Job:         d.Job,
				Late:        d.Late,
				Message:     d.Message,
				EventTypes:  d.EventTypes,
				PublishedAt: d.PublishedAt,
			})
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// ErrorResponse is the JSON body for error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
