package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/okian/octofit/internal/domain/model"
)

// CreateUser stores a new user. u.Password is taken as plaintext and stored
// as a bcrypt hash; the returned user carries the hash.
func (s *Service) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if err := s.prepareUser(&u); err != nil {
		return model.User{}, err
	}
	if u.Password != "" {
		hash, err := s.hashPassword(u.Password)
		if err != nil {
			return model.User{}, err
		}
		u.Password = hash
	}
	u.CreatedAt = s.now().UTC()

	out, err := s.store.Users().Insert(ctx, u)
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	s.requestRecompute(ctx, "user.created")
	return out, nil
}

// GetUser returns one user by id.
func (s *Service) GetUser(ctx context.Context, id string) (model.User, error) {
	u, err := s.store.Users().Get(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUser replaces user id. An empty password keeps the stored hash and
// the creation time is never changed.
func (s *Service) UpdateUser(ctx context.Context, id string, u model.User) (model.User, error) {
	current, err := s.store.Users().Get(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("update user %s: %w", id, err)
	}
	if err := s.prepareUser(&u); err != nil {
		return model.User{}, err
	}
	u.ID = current.ID
	u.CreatedAt = current.CreatedAt
	if u.Password == "" {
		u.Password = current.Password
	} else {
		hash, err := s.hashPassword(u.Password)
		if err != nil {
			return model.User{}, err
		}
		u.Password = hash
	}

	out, err := s.store.Users().Update(ctx, u)
	if err != nil {
		return model.User{}, fmt.Errorf("update user %s: %w", id, err)
	}
	// The team label on leaderboard entries comes from the user.
	s.requestRecompute(ctx, "user.updated")
	return out, nil
}

// DeleteUser removes a user. Their activities stay and are reported as
// orphans by the next recompute.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.store.Users().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	s.requestRecompute(ctx, "user.deleted")
	return nil
}

// CheckPassword reports whether plain matches the stored hash of u.
func CheckPassword(u model.User, plain string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

func (s *Service) prepareUser(u *model.User) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Team = strings.TrimSpace(u.Team)
	switch {
	case u.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case u.Email == "":
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if addr, err := mail.ParseAddress(u.Email); err != nil || addr.Address != u.Email {
		return fmt.Errorf("%w: email %q is not a valid address", ErrValidation, u.Email)
	}
	return nil
}

func (s *Service) hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password is longer than 72 bytes", ErrValidation)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
