package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/octofit/internal/domain/leaderboard"
	"github.com/okian/octofit/internal/domain/model"
)

// CreateActivity stores a new activity. A missing date defaults to now.
// The owning user is not checked here; activities of unknown users are
// skipped by the recompute.
func (s *Service) CreateActivity(ctx context.Context, a model.Activity) (model.Activity, error) {
	if err := s.prepareActivity(&a); err != nil {
		return model.Activity{}, err
	}
	out, err := s.store.Activities().Insert(ctx, a)
	if err != nil {
		return model.Activity{}, fmt.Errorf("create activity: %w", err)
	}
	s.requestRecompute(ctx, "activity.created")
	return out, nil
}

// GetActivity returns one activity by id.
func (s *Service) GetActivity(ctx context.Context, id string) (model.Activity, error) {
	a, err := s.store.Activities().Get(ctx, id)
	if err != nil {
		return model.Activity{}, fmt.Errorf("get activity %s: %w", id, err)
	}
	return a, nil
}

// ListActivities returns every activity.
func (s *Service) ListActivities(ctx context.Context) ([]model.Activity, error) {
	acts, err := s.store.Activities().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return acts, nil
}

// UpdateActivity replaces activity id.
func (s *Service) UpdateActivity(ctx context.Context, id string, a model.Activity) (model.Activity, error) {
	if err := s.prepareActivity(&a); err != nil {
		return model.Activity{}, err
	}
	a.ID = id
	out, err := s.store.Activities().Update(ctx, a)
	if err != nil {
		return model.Activity{}, fmt.Errorf("update activity %s: %w", id, err)
	}
	s.requestRecompute(ctx, "activity.updated")
	return out, nil
}

// DeleteActivity removes an activity.
func (s *Service) DeleteActivity(ctx context.Context, id string) error {
	if err := s.store.Activities().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete activity %s: %w", id, err)
	}
	s.requestRecompute(ctx, "activity.deleted")
	return nil
}

// ActivitiesByUser returns the activities of an existing user.
func (s *Service) ActivitiesByUser(ctx context.Context, userID string) ([]model.Activity, error) {
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("activities of user %s: %w", userID, err)
	}
	acts, err := s.store.ActivitiesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("activities of user %s: %w", userID, err)
	}
	return acts, nil
}

func (s *Service) prepareActivity(a *model.Activity) error {
	a.UserID = strings.TrimSpace(a.UserID)
	a.Type = strings.TrimSpace(a.Type)
	switch {
	case a.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	case a.Type == "":
		return fmt.Errorf("%w: type is required", ErrValidation)
	}
	if err := leaderboard.ValidateActivity(*a); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if a.Date.IsZero() {
		a.Date = s.now().UTC()
	}
	return nil
}
