package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/octofit/internal/domain/model"
	"github.com/okian/octofit/pkg/metrics"
)

// Instrument wraps a Store so every call records latency and outcome metrics.
func Instrument(s Store) Store {
	return &instrumentedStore{
		Store:       s,
		users:       instrumentedCollection[model.User]{name: CollectionUsers, next: s.Users()},
		teams:       instrumentedCollection[model.Team]{name: CollectionTeams, next: s.Teams()},
		activities:  instrumentedCollection[model.Activity]{name: CollectionActivities, next: s.Activities()},
		workouts:    instrumentedCollection[model.Workout]{name: CollectionWorkouts, next: s.Workouts()},
		leaderboard: instrumentedCollection[model.LeaderboardEntry]{name: CollectionLeaderboard, next: s.Leaderboard()},
	}
}

func observe(collection, op string, start time.Time, err error) {
	metrics.RecordStoreOperation(collection, op, err, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordErrorByComponent("store", errorType(err))
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

type instrumentedStore struct {
	Store
	users       instrumentedCollection[model.User]
	teams       instrumentedCollection[model.Team]
	activities  instrumentedCollection[model.Activity]
	workouts    instrumentedCollection[model.Workout]
	leaderboard instrumentedCollection[model.LeaderboardEntry]
}

func (s *instrumentedStore) Users() Collection[model.User]                   { return s.users }
func (s *instrumentedStore) Teams() Collection[model.Team]                   { return s.teams }
func (s *instrumentedStore) Activities() Collection[model.Activity]          { return s.activities }
func (s *instrumentedStore) Workouts() Collection[model.Workout]             { return s.workouts }
func (s *instrumentedStore) Leaderboard() Collection[model.LeaderboardEntry] { return s.leaderboard }

func (s *instrumentedStore) ActivitiesByUser(ctx context.Context, userID string) (out []model.Activity, err error) {
	defer func(start time.Time) { observe(CollectionActivities, "by_user", start, err) }(time.Now())
	return s.Store.ActivitiesByUser(ctx, userID)
}

func (s *instrumentedStore) ReadSnapshot(ctx context.Context, onUser func(model.User) error, onActivity func(model.Activity) error) (err error) {
	defer func(start time.Time) { observe("all", "snapshot", start, err) }(time.Now())
	return s.Store.ReadSnapshot(ctx, onUser, onActivity)
}

func (s *instrumentedStore) ReplaceLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) (err error) {
	defer func(start time.Time) { observe(CollectionLeaderboard, "replace", start, err) }(time.Now())
	return s.Store.ReplaceLeaderboard(ctx, entries)
}

func (s *instrumentedStore) Reset(ctx context.Context) (err error) {
	defer func(start time.Time) { observe("all", "reset", start, err) }(time.Now())
	return s.Store.Reset(ctx)
}

type instrumentedCollection[T model.Document[T]] struct {
	name string
	next Collection[T]
}

func (c instrumentedCollection[T]) Insert(ctx context.Context, doc T) (out T, err error) {
	defer func(start time.Time) { observe(c.name, "insert", start, err) }(time.Now())
	return c.next.Insert(ctx, doc)
}

func (c instrumentedCollection[T]) InsertMany(ctx context.Context, docs []T) (out []T, err error) {
	defer func(start time.Time) { observe(c.name, "insert_many", start, err) }(time.Now())
	return c.next.InsertMany(ctx, docs)
}

func (c instrumentedCollection[T]) Get(ctx context.Context, id string) (out T, err error) {
	defer func(start time.Time) { observe(c.name, "get", start, err) }(time.Now())
	return c.next.Get(ctx, id)
}

func (c instrumentedCollection[T]) List(ctx context.Context) (out []T, err error) {
	defer func(start time.Time) { observe(c.name, "list", start, err) }(time.Now())
	return c.next.List(ctx)
}

func (c instrumentedCollection[T]) Update(ctx context.Context, doc T) (out T, err error) {
	defer func(start time.Time) { observe(c.name, "update", start, err) }(time.Now())
	return c.next.Update(ctx, doc)
}

func (c instrumentedCollection[T]) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observe(c.name, "delete", start, err) }(time.Now())
	return c.next.Delete(ctx, id)
}

func (c instrumentedCollection[T]) DeleteAll(ctx context.Context) (n int, err error) {
	defer func(start time.Time) { observe(c.name, "delete_all", start, err) }(time.Now())
	return c.next.DeleteAll(ctx)
}

func (c instrumentedCollection[T]) Count(ctx context.Context) (n int, err error) {
	defer func(start time.Time) { observe(c.name, "count", start, err) }(time.Now())
	return c.next.Count(ctx)
}
