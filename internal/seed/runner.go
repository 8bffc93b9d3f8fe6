package seed

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/okian/octofit/internal/adapters/repository"
	"github.com/okian/octofit/internal/domain/leaderboard"
	"github.com/okian/octofit/pkg/logger"
)

// Summary counts what a run wrote.
type Summary struct {
	Users       int
	Teams       int
	Activities  int
	Leaderboard int
	Workouts    int
}

// Run empties store and writes a fresh sample data set. A failure part way
// leaves whatever was written before it; rerunning starts over with a reset.
func Run(ctx context.Context, store repository.Store, cfg *Config) (Summary, error) {
	c := cfg.withDefaults()
	log := c.Logger
	now := c.Now().UTC()
	var sum Summary

	log.Info(ctx, "resetting store", logger.String("backend", store.Name()))
	if err := store.Reset(ctx); err != nil {
		return sum, fmt.Errorf("seed: reset: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), c.BcryptCost)
	if err != nil {
		return sum, fmt.Errorf("seed: hash password: %w", err)
	}

	log.Info(ctx, "inserting users")
	users, err := store.Users().InsertMany(ctx, Users(string(hash), now))
	if err != nil {
		return sum, fmt.Errorf("seed: users: %w", err)
	}
	sum.Users = len(users)

	log.Info(ctx, "inserting teams")
	teams, err := store.Teams().InsertMany(ctx, Teams(users, now))
	if err != nil {
		return sum, fmt.Errorf("seed: teams: %w", err)
	}
	sum.Teams = len(teams)

	log.Info(ctx, "inserting activities", logger.Any("seed", c.Seed))
	activities, err := store.Activities().InsertMany(ctx, NewGenerator(c.Seed, now).Activities(users))
	if err != nil {
		return sum, fmt.Errorf("seed: activities: %w", err)
	}
	sum.Activities = len(activities)

	log.Info(ctx, "computing leaderboard")
	res := leaderboard.Compute(users, activities, now)
	for _, skipped := range res.Skipped {
		log.Warn(ctx, "activity skipped", logger.String("activity_id", skipped.ActivityID), logger.String("reason", skipped.Code()))
	}
	if err := store.ReplaceLeaderboard(ctx, res.Entries); err != nil {
		return sum, fmt.Errorf("seed: leaderboard: %w", err)
	}
	sum.Leaderboard = len(res.Entries)

	log.Info(ctx, "inserting workout suggestions")
	workouts, err := store.Workouts().InsertMany(ctx, Workouts())
	if err != nil {
		return sum, fmt.Errorf("seed: workouts: %w", err)
	}
	sum.Workouts = len(workouts)

	log.Info(ctx, "store seeded",
		logger.Int("users", sum.Users),
		logger.Int("teams", sum.Teams),
		logger.Int("activities", sum.Activities),
		logger.Int("leaderboard", sum.Leaderboard),
		logger.Int("workouts", sum.Workouts))
	return sum, nil
}
