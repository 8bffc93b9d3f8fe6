package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/octofit/internal/domain/model"
)

// CreateWorkout stores a new workout suggestion.
func (s *Service) CreateWorkout(ctx context.Context, w model.Workout) (model.Workout, error) {
	if err := prepareWorkout(&w); err != nil {
		return model.Workout{}, err
	}
	out, err := s.store.Workouts().Insert(ctx, w)
	if err != nil {
		return model.Workout{}, fmt.Errorf("create workout: %w", err)
	}
	return out, nil
}

// GetWorkout returns one workout by id.
func (s *Service) GetWorkout(ctx context.Context, id string) (model.Workout, error) {
	w, err := s.store.Workouts().Get(ctx, id)
	if err != nil {
		return model.Workout{}, fmt.Errorf("get workout %s: %w", id, err)
	}
	return w, nil
}

// ListWorkouts returns every workout.
func (s *Service) ListWorkouts(ctx context.Context) ([]model.Workout, error) {
	ws, err := s.store.Workouts().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	return ws, nil
}

// UpdateWorkout replaces workout id.
func (s *Service) UpdateWorkout(ctx context.Context, id string, w model.Workout) (model.Workout, error) {
	if err := prepareWorkout(&w); err != nil {
		return model.Workout{}, err
	}
	w.ID = id
	out, err := s.store.Workouts().Update(ctx, w)
	if err != nil {
		return model.Workout{}, fmt.Errorf("update workout %s: %w", id, err)
	}
	return out, nil
}

// DeleteWorkout removes a workout.
func (s *Service) DeleteWorkout(ctx context.Context, id string) error {
	if err := s.store.Workouts().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete workout %s: %w", id, err)
	}
	return nil
}

func prepareWorkout(w *model.Workout) error {
	w.Name = strings.TrimSpace(w.Name)
	switch {
	case w.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case w.Duration < 0:
		return fmt.Errorf("%w: duration %d", ErrValidation, w.Duration)
	}
	if w.Exercises == nil {
		w.Exercises = []string{}
	}
	return nil
}
