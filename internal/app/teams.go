package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/octofit/internal/domain/model"
)

// CreateTeam stores a new team.
func (s *Service) CreateTeam(ctx context.Context, t model.Team) (model.Team, error) {
	if err := prepareTeam(&t); err != nil {
		return model.Team{}, err
	}
	t.CreatedAt = s.now().UTC()
	out, err := s.store.Teams().Insert(ctx, t)
	if err != nil {
		return model.Team{}, fmt.Errorf("create team: %w", err)
	}
	return out, nil
}

// GetTeam returns one team by id.
func (s *Service) GetTeam(ctx context.Context, id string) (model.Team, error) {
	t, err := s.store.Teams().Get(ctx, id)
	if err != nil {
		return model.Team{}, fmt.Errorf("get team %s: %w", id, err)
	}
	return t, nil
}

// ListTeams returns every team.
func (s *Service) ListTeams(ctx context.Context) ([]model.Team, error) {
	teams, err := s.store.Teams().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

// UpdateTeam replaces team id, keeping its creation time.
func (s *Service) UpdateTeam(ctx context.Context, id string, t model.Team) (model.Team, error) {
	current, err := s.store.Teams().Get(ctx, id)
	if err != nil {
		return model.Team{}, fmt.Errorf("update team %s: %w", id, err)
	}
	if err := prepareTeam(&t); err != nil {
		return model.Team{}, err
	}
	t.ID = current.ID
	t.CreatedAt = current.CreatedAt
	out, err := s.store.Teams().Update(ctx, t)
	if err != nil {
		return model.Team{}, fmt.Errorf("update team %s: %w", id, err)
	}
	return out, nil
}

// DeleteTeam removes a team.
func (s *Service) DeleteTeam(ctx context.Context, id string) error {
	if err := s.store.Teams().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete team %s: %w", id, err)
	}
	return nil
}

func prepareTeam(t *model.Team) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if t.Members == nil {
		t.Members = []string{}
	}
	return nil
}
