// Package storetest holds the behavioral contract every repository.Store
// backend must satisfy. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okian/octofit/internal/adapters/repository"
	"github.com/okian/octofit/internal/domain/model"
)

// Factory returns an empty, open store. The suite resets it between cases.
type Factory func(t *testing.T) repository.Store

// Run executes the contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s repository.Store)
	}{
		{"InsertAssignsID", testInsertAssignsID},
		{"GetUnknown", testGetUnknown},
		{"UniqueEmail", testUniqueEmail},
		{"InsertManyAllOrNothing", testInsertManyAllOrNothing},
		{"UpdateAndDelete", testUpdateAndDelete},
		{"ActivitiesByUser", testActivitiesByUser},
		{"ReadSnapshot", testReadSnapshot},
		{"ReadSnapshotInsertionOrder", testReadSnapshotInsertionOrder},
		{"ReplaceLeaderboard", testReplaceLeaderboard},
		{"ReplaceLeaderboardConcurrentReaders", testReplaceConcurrentReaders},
		{"Reset", testReset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, s.Reset(context.Background()))
			tc.fn(t, s)
		})
	}
}

func testInsertAssignsID(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u, err := s.Users().Insert(ctx, model.User{Name: "Thor", Email: "thor@marvel.com", Team: "Team Marvel"})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	got, err := s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Thor", got.Name)
	require.Equal(t, "Team Marvel", got.Team)

	w, err := s.Workouts().Insert(ctx, model.Workout{ID: "fixed-id", Name: "Speedster Cardio", Exercises: []string{"sprint intervals", "hill runs"}})
	require.NoError(t, err)
	require.Equal(t, "fixed-id", w.ID)
	gotW, err := s.Workouts().Get(ctx, "fixed-id")
	require.NoError(t, err)
	require.Equal(t, []string{"sprint intervals", "hill runs"}, gotW.Exercises)

	_, err = s.Workouts().Insert(ctx, model.Workout{ID: "fixed-id", Name: "again"})
	require.ErrorIs(t, err, repository.ErrDuplicate)
}

func testGetUnknown(t *testing.T, s repository.Store) {
	_, err := s.Teams().Get(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Teams().Get(context.Background(), "")
	require.ErrorIs(t, err, repository.ErrInvalidID)
}

func testUniqueEmail(t *testing.T, s repository.Store) {
	ctx := context.Background()
	first, err := s.Users().Insert(ctx, model.User{Name: "Bruce", Email: "batman@dc.com"})
	require.NoError(t, err)
	_, err = s.Users().Insert(ctx, model.User{Name: "Impostor", Email: "batman@dc.com"})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	other, err := s.Users().Insert(ctx, model.User{Name: "Clark", Email: "superman@dc.com"})
	require.NoError(t, err)
	other.Email = first.Email
	_, err = s.Users().Update(ctx, other)
	require.ErrorIs(t, err, repository.ErrDuplicate)

	// Updating a user without changing the email is not a conflict.
	first.Name = "Bruce Wayne"
	_, err = s.Users().Update(ctx, first)
	require.NoError(t, err)
}

func testInsertManyAllOrNothing(t *testing.T, s repository.Store) {
	ctx := context.Background()
	_, err := s.Users().InsertMany(ctx, []model.User{
		{Name: "A", Email: "same@example.com"},
		{Name: "B", Email: "same@example.com"},
	})
	require.ErrorIs(t, err, repository.ErrDuplicate)
	n, err := s.Users().Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	out, err := s.Users().InsertMany(ctx, []model.User{
		{Name: "A", Email: "a@example.com"},
		{Name: "B", Email: "b@example.com"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotEqual(t, out[0].ID, out[1].ID)

	empty, err := s.Activities().InsertMany(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func testUpdateAndDelete(t *testing.T, s repository.Store) {
	ctx := context.Background()
	team, err := s.Teams().Insert(ctx, model.Team{Name: "Team DC", Description: "Justice League", Members: []string{"u1"}})
	require.NoError(t, err)

	team.Members = append(team.Members, "u2")
	_, err = s.Teams().Update(ctx, team)
	require.NoError(t, err)
	got, err := s.Teams().Get(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"u1", "u2"}, got.Members)

	_, err = s.Teams().Update(ctx, model.Team{ID: "missing", Name: "x"})
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.Teams().Delete(ctx, team.ID))
	require.ErrorIs(t, s.Teams().Delete(ctx, team.ID), repository.ErrNotFound)
	_, err = s.Teams().Get(ctx, team.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func testActivitiesByUser(t *testing.T, s repository.Store) {
	ctx := context.Background()
	_, err := s.Activities().InsertMany(ctx, []model.Activity{
		{UserID: "u1", Type: "running", Duration: 30, Distance: 5.5, Calories: 300, Date: time.Now().UTC()},
		{UserID: "u2", Type: "yoga", Duration: 45, Calories: 150},
		{UserID: "u1", Type: "cycling", Duration: 60, Distance: 20, Calories: 500},
	})
	require.NoError(t, err)

	acts, err := s.ActivitiesByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, acts, 2)
	for _, a := range acts {
		require.Equal(t, "u1", a.UserID)
	}

	none, err := s.ActivitiesByUser(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, none)
}

func testReadSnapshot(t *testing.T, s repository.Store) {
	ctx := context.Background()
	users, err := s.Users().InsertMany(ctx, []model.User{
		{Name: "A", Email: "a@example.com"},
		{Name: "B", Email: "b@example.com"},
	})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = s.Activities().Insert(ctx, model.Activity{UserID: users[i%2].ID, Type: "gym", Duration: 10, Calories: 100})
		require.NoError(t, err)
	}

	var gotUsers, gotActs int
	usersDone := false
	err = s.ReadSnapshot(ctx,
		func(model.User) error {
			require.False(t, usersDone, "users must be streamed before activities")
			gotUsers++
			return nil
		},
		func(model.Activity) error {
			usersDone = true
			gotActs++
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 2, gotUsers)
	require.Equal(t, 5, gotActs)

	stop := errors.New("stop")
	err = s.ReadSnapshot(ctx, func(model.User) error { return stop }, func(model.Activity) error { return nil })
	require.ErrorIs(t, err, stop)
}

// testReadSnapshotInsertionOrder checks that users stream in the order they
// were stored, which is what breaks calorie ties on the leaderboard.
func testReadSnapshotInsertionOrder(t *testing.T, s repository.Store) {
	ctx := context.Background()
	var want []string
	for i := range 12 {
		u, err := s.Users().Insert(ctx, model.User{Name: fmt.Sprintf("U%d", i), Email: fmt.Sprintf("u%d@example.com", i)})
		require.NoError(t, err)
		want = append(want, u.ID)
	}
	batch, err := s.Users().InsertMany(ctx, []model.User{
		{Name: "X", Email: "x@example.com"},
		{Name: "Y", Email: "y@example.com"},
	})
	require.NoError(t, err)
	want = append(want, batch[0].ID, batch[1].ID)

	var got []string
	err = s.ReadSnapshot(ctx,
		func(u model.User) error {
			got = append(got, u.ID)
			return nil
		},
		func(model.Activity) error { return nil })
	require.NoError(t, err)
	require.Equal(t, want, got)

	listed, err := s.Users().List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(listed))
	for _, u := range listed {
		ids = append(ids, u.ID)
	}
	require.Equal(t, want, ids)
}

func testReplaceLeaderboard(t *testing.T, s repository.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	first := []model.LeaderboardEntry{
		{UserID: "a", Rank: 1, TotalCalories: 10, LastUpdated: now},
		{UserID: "b", Rank: 2, TotalCalories: 5, LastUpdated: now},
		{UserID: "c", Rank: 3, LastUpdated: now},
	}
	require.NoError(t, s.ReplaceLeaderboard(ctx, first))
	got, err := s.Leaderboard().List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	second := []model.LeaderboardEntry{{UserID: "z", Rank: 1, TotalCalories: 99, TotalDistance: 15.55, LastUpdated: now}}
	require.NoError(t, s.ReplaceLeaderboard(ctx, second))
	got, err = s.Leaderboard().List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "z", got[0].UserID)
	require.Equal(t, 15.55, got[0].TotalDistance)
	require.NotEmpty(t, got[0].ID)

	// A failing replace leaves the previous leaderboard intact.
	bad := []model.LeaderboardEntry{{ID: "dup", UserID: "x"}, {ID: "dup", UserID: "y"}}
	require.Error(t, s.ReplaceLeaderboard(ctx, bad))
	got, err = s.Leaderboard().List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "z", got[0].UserID)

	require.NoError(t, s.ReplaceLeaderboard(ctx, nil))
	n, err := s.Leaderboard().Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

// testReplaceConcurrentReaders checks that readers only ever observe a
// complete leaderboard while replaces run.
func testReplaceConcurrentReaders(t *testing.T, s repository.Store) {
	ctx := context.Background()
	const size = 20
	batch := func(round int) []model.LeaderboardEntry {
		out := make([]model.LeaderboardEntry, size)
		for i := range out {
			out[i] = model.LeaderboardEntry{UserID: fmt.Sprintf("r%d-u%d", round, i), Rank: i + 1}
		}
		return out
	}
	require.NoError(t, s.ReplaceLeaderboard(ctx, batch(0)))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	done := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				got, err := s.Leaderboard().List(ctx)
				if err != nil {
					errs <- err
					return
				}
				if len(got) != size {
					errs <- fmt.Errorf("observed %d entries", len(got))
					return
				}
			}
		}()
	}
	for round := 1; round <= 10; round++ {
		require.NoError(t, s.ReplaceLeaderboard(ctx, batch(round)))
	}
	close(done)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func testReset(t *testing.T, s repository.Store) {
	ctx := context.Background()
	_, err := s.Users().Insert(ctx, model.User{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = s.Workouts().Insert(ctx, model.Workout{Name: "W"})
	require.NoError(t, err)
	require.NoError(t, s.ReplaceLeaderboard(ctx, []model.LeaderboardEntry{{UserID: "a", Rank: 1}}))

	require.NoError(t, s.Reset(ctx))
	for _, count := range []func(context.Context) (int, error){
		s.Users().Count, s.Teams().Count, s.Activities().Count, s.Workouts().Count, s.Leaderboard().Count,
	} {
		n, err := count(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	}
	require.NoError(t, s.Ping(ctx))
}
