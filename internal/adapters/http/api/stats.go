package api

import (
	"context"
	"net/http"
)

// StatsProvider reports store counts, recompute runs and queue state.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	stats StatsProvider
}

// NewStatsHandler returns a StatsHandler reading from stats.
func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// HandleStats writes a fresh stats snapshot. Counts change with every
// mutation, so responses are never cached.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.stats.GetStats(r.Context()))
}
