package api

import (
	"context"
	"net/http"

	"github.com/okian/octofit/internal/domain/leaderboard"
	"github.com/okian/octofit/internal/domain/model"
	"github.com/okian/octofit/pkg/logger"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
// Entries are never written through the API; they come from recomputes.
type LeaderboardDependencies interface {
	ListLeaderboard(ctx context.Context) ([]model.LeaderboardEntry, error)
	GetLeaderboardEntry(ctx context.Context, id string) (model.LeaderboardEntry, error)
	RecomputeLeaderboard(ctx context.Context) (leaderboard.Result, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps   LeaderboardDependencies
	logger logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, log logger.Logger) *LeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LeaderboardHandler{deps: deps, logger: log}
}

// Register attaches the leaderboard routes.
func (h *LeaderboardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/leaderboard", MetricsMiddleware(h.HandleList, "leaderboard"))
	mux.HandleFunc("GET /api/leaderboard/{$}", MetricsMiddleware(h.HandleList, "leaderboard"))
	mux.HandleFunc("GET /api/leaderboard/{id}", MetricsMiddleware(h.HandleGet, "leaderboard_item"))
	mux.HandleFunc("POST /api/leaderboard/recompute", MetricsMiddleware(h.HandleRecompute, "leaderboard_recompute"))
}

// HandleList handles GET /api/leaderboard/ requests.
func (h *LeaderboardHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.ListLeaderboard(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGet handles GET /api/leaderboard/{id} requests.
func (h *LeaderboardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := h.deps.GetLeaderboardEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type skippedRecord struct {
	ActivityID string `json:"activity_id"`
	UserID     string `json:"user_id"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
}

type recomputeResponse struct {
	Entries     int                      `json:"entries"`
	Activities  int                      `json:"activities"`
	Skipped     []skippedRecord          `json:"skipped"`
	Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
}

// HandleRecompute handles POST /api/leaderboard/recompute requests. The
// recompute runs synchronously.
func (h *LeaderboardHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.RecomputeLeaderboard(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	resp := recomputeResponse{
		Entries:     len(res.Entries),
		Activities:  res.Activities,
		Skipped:     make([]skippedRecord, 0, len(res.Skipped)),
		Leaderboard: res.Entries,
	}
	if resp.Leaderboard == nil {
		resp.Leaderboard = []model.LeaderboardEntry{}
	}
	for _, sk := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skippedRecord{
			ActivityID: sk.ActivityID,
			UserID:     sk.UserID,
			Reason:     sk.Code(),
			Message:    sk.Error(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
