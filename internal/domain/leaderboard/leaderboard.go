// Package leaderboard turns users and their activities into a ranked leaderboard.
//
// Totals are summed per user, distance is rounded once on the sum to two
// decimal places (half away from zero), entries are ordered by calories
// descending with ties kept in user input order, and ranks run 1..N without
// gaps or shared values. Every user in the input gets exactly one entry.
package leaderboard

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/octofit/internal/domain/model"
)

// distancePlaces is the precision of total_distance.
const distancePlaces = 2

// Result is the outcome of one aggregation pass.
type Result struct {
	// Entries are ordered by rank.
	Entries []model.LeaderboardEntry
	// Skipped lists activities that did not contribute to any total.
	Skipped []SkippedRecord
	// Activities counts activities that did contribute.
	Activities int
}

// Compute aggregates a full snapshot. It has no side effects and never fails;
// problems with individual activities are reported in Result.Skipped.
func Compute(users []model.User, activities []model.Activity, now time.Time) Result {
	b := NewBuilder()
	for _, u := range users {
		b.AddUser(u)
	}
	for _, a := range activities {
		b.AddActivity(a)
	}
	return b.Build(now)
}

type totals struct {
	team     string
	calories int
	duration int
	distance decimal.Decimal
}

// Builder is the streaming form of Compute. Users and activities may arrive
// in any order; activities whose user has not been seen yet are held until
// Build. A Builder is not safe for concurrent use.
type Builder struct {
	order      []string
	byUser     map[string]*totals
	pending    []model.Activity
	skipped    []SkippedRecord
	activities int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byUser: make(map[string]*totals)}
}

// AddUser registers a user. A repeated id keeps the first registration.
func (b *Builder) AddUser(u model.User) {
	if _, ok := b.byUser[u.ID]; ok {
		return
	}
	b.order = append(b.order, u.ID)
	b.byUser[u.ID] = &totals{team: u.Team}
}

// AddActivity folds one activity into its user's totals.
func (b *Builder) AddActivity(a model.Activity) {
	if err := ValidateActivity(a); err != nil {
		b.skip(a, err)
		return
	}
	t, ok := b.byUser[a.UserID]
	if !ok {
		b.pending = append(b.pending, a)
		return
	}
	b.add(t, a)
}

func (b *Builder) add(t *totals, a model.Activity) {
	t.calories += a.Calories
	t.duration += a.Duration
	t.distance = t.distance.Add(decimal.NewFromFloat(a.Distance))
	b.activities++
}

func (b *Builder) skip(a model.Activity, reason error) {
	b.skipped = append(b.skipped, SkippedRecord{ActivityID: a.ID, UserID: a.UserID, Reason: reason})
}

// Build resolves held activities, ranks the totals and stamps every entry
// with now. The Builder must not be reused afterwards.
func (b *Builder) Build(now time.Time) Result {
	for _, a := range b.pending {
		if t, ok := b.byUser[a.UserID]; ok {
			b.add(t, a)
			continue
		}
		b.skip(a, ErrOrphanReference)
	}
	b.pending = nil

	entries := make([]model.LeaderboardEntry, 0, len(b.order))
	for _, id := range b.order {
		t := b.byUser[id]
		distance, _ := t.distance.Round(distancePlaces).Float64()
		entries = append(entries, model.LeaderboardEntry{
			UserID:        id,
			Team:          t.team,
			TotalCalories: t.calories,
			TotalDuration: t.duration,
			TotalDistance: distance,
			LastUpdated:   now,
		})
	}

	slices.SortStableFunc(entries, func(x, y model.LeaderboardEntry) int {
		return cmp.Compare(y.TotalCalories, x.TotalCalories)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return Result{Entries: entries, Skipped: b.skipped, Activities: b.activities}
}

// ValidateActivity reports ErrInvalidMetric for negative duration, calories
// or distance and for a non-finite distance.
func ValidateActivity(a model.Activity) error {
	switch {
	case a.Duration < 0:
		return fmt.Errorf("%w: duration %d", ErrInvalidMetric, a.Duration)
	case a.Calories < 0:
		return fmt.Errorf("%w: calories %d", ErrInvalidMetric, a.Calories)
	case math.IsNaN(a.Distance) || math.IsInf(a.Distance, 0):
		return fmt.Errorf("%w: distance is not finite", ErrInvalidMetric)
	case a.Distance < 0:
		return fmt.Errorf("%w: distance %g", ErrInvalidMetric, a.Distance)
	}
	return nil
}
