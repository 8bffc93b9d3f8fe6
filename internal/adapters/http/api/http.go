// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/octofit/internal/adapters/repository"
	service "github.com/okian/octofit/internal/app"
	"github.com/okian/octofit/internal/domain/leaderboard"
	"github.com/okian/octofit/internal/domain/model"
	"github.com/okian/octofit/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	UserDependencies
	TeamDependencies
	ActivityDependencies
	WorkoutDependencies
	LeaderboardDependencies
	StatsProvider
	ReadinessChecker
}

// UserDependencies covers the user collection.
type UserDependencies interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	UpdateUser(ctx context.Context, id string, u model.User) (model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// TeamDependencies covers the team collection.
type TeamDependencies interface {
	ListTeams(ctx context.Context) ([]model.Team, error)
	GetTeam(ctx context.Context, id string) (model.Team, error)
	CreateTeam(ctx context.Context, t model.Team) (model.Team, error)
	UpdateTeam(ctx context.Context, id string, t model.Team) (model.Team, error)
	DeleteTeam(ctx context.Context, id string) error
}

// ActivityDependencies covers the activity collection.
type ActivityDependencies interface {
	ListActivities(ctx context.Context) ([]model.Activity, error)
	GetActivity(ctx context.Context, id string) (model.Activity, error)
	CreateActivity(ctx context.Context, a model.Activity) (model.Activity, error)
	UpdateActivity(ctx context.Context, id string, a model.Activity) (model.Activity, error)
	DeleteActivity(ctx context.Context, id string) error
	ActivitiesByUser(ctx context.Context, userID string) ([]model.Activity, error)
}

// WorkoutDependencies covers the workout collection.
type WorkoutDependencies interface {
	ListWorkouts(ctx context.Context) ([]model.Workout, error)
	GetWorkout(ctx context.Context, id string) (model.Workout, error)
	CreateWorkout(ctx context.Context, w model.Workout) (model.Workout, error)
	UpdateWorkout(ctx context.Context, id string, w model.Workout) (model.Workout, error)
	DeleteWorkout(ctx context.Context, id string) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps   Dependencies
	logger logger.Logger

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the logger used for server side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{deps: deps, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", MetricsMiddleware(s.handleRoot, "root"))
	mux.HandleFunc("GET /api/{$}", MetricsMiddleware(s.handleRoot, "root"))

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	registerResource(mux, s.logger, resource[model.User]{
		name:   "users",
		list:   s.deps.ListUsers,
		get:    s.deps.GetUser,
		create: s.deps.CreateUser,
		update: s.deps.UpdateUser,
		remove: s.deps.DeleteUser,
		decode: decodeUser,
	})
	registerResource(mux, s.logger, resource[model.Team]{
		name:   "teams",
		list:   s.deps.ListTeams,
		get:    s.deps.GetTeam,
		create: s.deps.CreateTeam,
		update: s.deps.UpdateTeam,
		remove: s.deps.DeleteTeam,
	})
	registerResource(mux, s.logger, resource[model.Activity]{
		name:   "activities",
		list:   s.deps.ListActivities,
		get:    s.deps.GetActivity,
		create: s.deps.CreateActivity,
		update: s.deps.UpdateActivity,
		remove: s.deps.DeleteActivity,
	})
	registerResource(mux, s.logger, resource[model.Workout]{
		name:   "workouts",
		list:   s.deps.ListWorkouts,
		get:    s.deps.GetWorkout,
		create: s.deps.CreateWorkout,
		update: s.deps.UpdateWorkout,
		remove: s.deps.DeleteWorkout,
	})
	mux.HandleFunc("GET /api/users/{id}/activities", MetricsMiddleware(s.handleUserActivities, "user_activities"))

	s.leaderboardHandler.Register(mux)
}

// handleRoot lists the collection endpoints as absolute URLs.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	base := fmt.Sprintf("%s://%s/api/", scheme, r.Host)
	writeJSON(w, http.StatusOK, map[string]string{
		"users":       base + "users/",
		"teams":       base + "teams/",
		"activities":  base + "activities/",
		"leaderboard": base + "leaderboard/",
		"workouts":    base + "workouts/",
	})
}

func (s *Server) handleUserActivities(w http.ResponseWriter, r *http.Request) {
	acts, err := s.deps.ActivitiesByUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

// userRequest carries the write-only password that model.User never decodes.
type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Team     string `json:"team"`
}

func decodeUser(w http.ResponseWriter, r *http.Request) (model.User, error) {
	var req userRequest
	if err := decodeBody(w, r, &req); err != nil {
		return model.User{}, err
	}
	return model.User{Name: req.Name, Email: req.Email, Password: req.Password, Team: req.Team}, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
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

// statusFor maps service and store errors onto HTTP statuses and codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrValidation),
		errors.Is(err, repository.ErrInvalidID), errors.Is(err, leaderboard.ErrInvalidMetric):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, "conflict"
	case errors.Is(err, repository.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}
