package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/okian/octofit/internal/adapters/events"
	"github.com/okian/octofit/internal/adapters/repository"
	"github.com/okian/octofit/internal/domain/leaderboard"
	"github.com/okian/octofit/internal/domain/model"
	"github.com/okian/octofit/pkg/logger"
	"github.com/okian/octofit/pkg/metrics"
)

// RunInfo summarizes the most recent successful recompute.
type RunInfo struct {
	RunID      string        `json:"run_id"`
	Reason     string        `json:"reason"`
	Entries    int           `json:"entries"`
	Skipped    int           `json:"skipped"`
	Activities int           `json:"activities"`
	At         time.Time     `json:"at"`
	Took       time.Duration `json:"took_ns"`
}

// RecomputeLeaderboard rebuilds the leaderboard from a snapshot of users and
// activities and replaces the stored one. On error nothing is replaced.
func (s *Service) RecomputeLeaderboard(ctx context.Context) (leaderboard.Result, error) {
	return s.recompute(ctx, uuid.NewString(), "manual")
}

func (s *Service) recompute(ctx context.Context, runID, reason string) (leaderboard.Result, error) {
	s.recomputeMu.Lock()
	defer s.recomputeMu.Unlock()

	start := time.Now()
	log := s.logger.Named("recompute")
	fail := func(stage string, err error) (leaderboard.Result, error) {
		metrics.RecordRecompute("error", float64(time.Since(start).Milliseconds()))
		metrics.RecordErrorByComponent("recompute", stage)
		s.statsMu.Lock()
		s.failures++
		s.statsMu.Unlock()
		log.Error(ctx, "recompute failed",
			logger.String("run_id", runID),
			logger.String("stage", stage),
			logger.Error(err),
		)
		return leaderboard.Result{}, fmt.Errorf("recompute leaderboard: %s: %w", stage, err)
	}

	b := leaderboard.NewBuilder()
	err := s.store.ReadSnapshot(ctx,
		func(u model.User) error {
			b.AddUser(u)
			return nil
		},
		func(a model.Activity) error {
			b.AddActivity(a)
			return nil
		})
	if err != nil {
		return fail("snapshot", err)
	}

	now := s.now().UTC()
	res := b.Build(now)
	for i := range res.Entries {
		res.Entries[i] = repository.EnsureID(res.Entries[i], nil)
	}
	for _, sk := range res.Skipped {
		metrics.RecordSkippedRecord(sk.Code())
		log.Warn(ctx, "activity skipped",
			logger.String("run_id", runID),
			logger.String("activity_id", sk.ActivityID),
			logger.String("user_id", sk.UserID),
			logger.String("reason", sk.Code()),
		)
	}

	if err := s.store.ReplaceLeaderboard(ctx, res.Entries); err != nil {
		return fail("replace", err)
	}

	took := time.Since(start)
	metrics.RecordRecompute("ok", float64(took.Milliseconds()))
	metrics.UpdateLeaderboardEntries(len(res.Entries))
	metrics.UpdateLastRecompute(float64(now.Unix()))

	info := RunInfo{
		RunID:      runID,
		Reason:     reason,
		Entries:    len(res.Entries),
		Skipped:    len(res.Skipped),
		Activities: res.Activities,
		At:         now,
		Took:       took,
	}
	s.statsMu.Lock()
	s.runs++
	s.lastRun = &info
	s.statsMu.Unlock()

	log.Info(ctx, "leaderboard recomputed",
		logger.String("run_id", runID),
		logger.String("reason", reason),
		logger.Int("entries", info.Entries),
		logger.Int("skipped", info.Skipped),
		logger.Duration("took", took),
	)

	// The leaderboard is already persisted; a lost event is logged, not fatal.
	ev := events.NewLeaderboardRecomputed(runID, res.Entries, len(res.Skipped), now)
	if err := s.publisher.PublishLeaderboardRecomputed(ctx, ev); err != nil {
		metrics.RecordErrorByComponent("publisher", "publish_error")
		log.Warn(ctx, "publish leaderboard event", logger.String("run_id", runID), logger.Error(err))
	}
	return res, nil
}

// LastRun returns the most recent successful recompute, if any.
func (s *Service) LastRun() (RunInfo, bool) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if s.lastRun == nil {
		return RunInfo{}, false
	}
	return *s.lastRun, true
}

// ListLeaderboard returns the stored entries ordered by rank.
func (s *Service) ListLeaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	entries, err := s.store.Leaderboard().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	slices.SortStableFunc(entries, func(a, b model.LeaderboardEntry) int {
		return cmp.Compare(a.Rank, b.Rank)
	})
	return entries, nil
}

// GetLeaderboardEntry returns one entry by id.
func (s *Service) GetLeaderboardEntry(ctx context.Context, id string) (model.LeaderboardEntry, error) {
	e, err := s.store.Leaderboard().Get(ctx, id)
	if err != nil {
		return model.LeaderboardEntry{}, fmt.Errorf("get leaderboard entry %s: %w", id, err)
	}
	return e, nil
}
