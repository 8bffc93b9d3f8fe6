package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/octofit/internal/adapters/events"
	"github.com/okian/octofit/internal/adapters/repository"
	service "github.com/okian/octofit/internal/app"
	"github.com/okian/octofit/internal/domain/leaderboard"
	"github.com/okian/octofit/internal/domain/model"
)

var fixedNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newService(opts ...service.Option) (*service.Service, repository.Store) {
	store := repository.NewMemoryStore()
	base := []service.Option{
		service.WithAutoRecompute(false),
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithClock(func() time.Time { return fixedNow }),
	}
	return service.New(store, append(base, opts...)...), store
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LeaderboardRecomputed
	err    error
	closed bool
}

func (p *recordingPublisher) PublishLeaderboardRecomputed(_ context.Context, ev events.LeaderboardRecomputed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// brokenStore fails every snapshot or replace on demand.
type brokenStore struct {
	repository.Store
	failSnapshot bool
	failReplace  bool
}

func (s *brokenStore) ReadSnapshot(ctx context.Context, onUser func(model.User) error, onActivity func(model.Activity) error) error {
	if s.failSnapshot {
		return fmt.Errorf("%w: connection refused", repository.ErrStoreUnavailable)
	}
	return s.Store.ReadSnapshot(ctx, onUser, onActivity)
}

func (s *brokenStore) ReplaceLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error {
	if s.failReplace {
		return fmt.Errorf("%w: connection reset", repository.ErrStoreUnavailable)
	}
	return s.Store.ReplaceLeaderboard(ctx, entries)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(repository.NewMemoryStore())
		ctx := context.Background()

		Convey("When getting stats before starting", func() {
			stats := svc.GetStats(ctx)

			Convey("Then it should return basic stats", func() {
				So(stats["started"], ShouldEqual, false)
				So(stats["store"], ShouldEqual, "memory")
				So(stats["auto_recompute"], ShouldEqual, true)
				So(stats["queue_capacity"], ShouldEqual, 1)
			})
		})

		Convey("When starting and stopping the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats(ctx)["started"], ShouldEqual, true)
			So(svc.GetStats(ctx), ShouldContainKey, "queue_length")

			svc.Stop()
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a service without a store", t, func() {
		svc := service.New(nil)

		Convey("Then Start fails", func() {
			So(errors.Is(svc.Start(context.Background()), repository.ErrStoreUnavailable), ShouldBeTrue)
		})
	})
}

func TestService_Users(t *testing.T) {
	Convey("Given a service", t, func() {
		svc, _ := newService()
		ctx := context.Background()

		Convey("When creating a user with a password", func() {
			u, err := svc.CreateUser(ctx, model.User{Name: " Thor ", Email: "Thor@Marvel.com", Password: "thunderpassword", Team: "Team Marvel"})
			So(err, ShouldBeNil)

			Convey("Then the user is normalized and timestamped", func() {
				So(u.ID, ShouldNotBeEmpty)
				So(u.Name, ShouldEqual, "Thor")
				So(u.Email, ShouldEqual, "thor@marvel.com")
				So(u.CreatedAt, ShouldEqual, fixedNow)
			})

			Convey("And only a hash of the password is stored", func() {
				stored, err := svc.GetUser(ctx, u.ID)
				So(err, ShouldBeNil)
				So(stored.Password, ShouldNotEqual, "thunderpassword")
				So(service.CheckPassword(stored, "thunderpassword"), ShouldBeTrue)
				So(service.CheckPassword(stored, "wrong"), ShouldBeFalse)
			})

			Convey("And the same email cannot register twice", func() {
				_, err := svc.CreateUser(ctx, model.User{Name: "Loki", Email: "THOR@marvel.com"})
				So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)
			})

			Convey("And updating without a password keeps the hash and creation time", func() {
				stored, _ := svc.GetUser(ctx, u.ID)
				updated, err := svc.UpdateUser(ctx, u.ID, model.User{Name: "Thor Odinson", Email: "thor@marvel.com", Team: "Team Marvel"})
				So(err, ShouldBeNil)
				So(updated.Password, ShouldEqual, stored.Password)
				So(updated.CreatedAt, ShouldEqual, stored.CreatedAt)
				So(updated.Name, ShouldEqual, "Thor Odinson")
			})

			Convey("And deleting removes it", func() {
				So(svc.DeleteUser(ctx, u.ID), ShouldBeNil)
				_, err := svc.GetUser(ctx, u.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the input is invalid", func() {
			cases := []model.User{
				{Email: "a@example.com"},
				{Name: "A"},
				{Name: "A", Email: "not-an-email"},
				{Name: "A", Email: "Someone <a@example.com>"},
			}
			for _, u := range cases {
				_, err := svc.CreateUser(ctx, u)
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
			}

			_, err := svc.CreateUser(ctx, model.User{Name: "A", Email: "a@example.com", Password: string(make([]byte, 73))})
			So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
		})

		Convey("When updating an unknown user", func() {
			_, err := svc.UpdateUser(ctx, "missing", model.User{Name: "A", Email: "a@example.com"})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_TeamsAndWorkouts(t *testing.T) {
	Convey("Given a service", t, func() {
		svc, _ := newService()
		ctx := context.Background()

		Convey("When creating a team without members", func() {
			team, err := svc.CreateTeam(ctx, model.Team{Name: "Team DC", Description: "Justice League"})
			So(err, ShouldBeNil)
			So(team.Members, ShouldNotBeNil)
			So(team.Members, ShouldBeEmpty)

			Convey("Then it can be updated and listed", func() {
				updated, err := svc.UpdateTeam(ctx, team.ID, model.Team{Name: "Team DC", Members: []string{"u1"}})
				So(err, ShouldBeNil)
				So(updated.CreatedAt, ShouldEqual, team.CreatedAt)

				teams, err := svc.ListTeams(ctx)
				So(err, ShouldBeNil)
				So(teams, ShouldHaveLength, 1)
				So(teams[0].Members, ShouldResemble, []string{"u1"})
			})

			Convey("And deleted", func() {
				So(svc.DeleteTeam(ctx, team.ID), ShouldBeNil)
				So(errors.Is(svc.DeleteTeam(ctx, team.ID), repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When creating a team without a name", func() {
			_, err := svc.CreateTeam(ctx, model.Team{Name: "  "})
			So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
		})

		Convey("When managing workouts", func() {
			w, err := svc.CreateWorkout(ctx, model.Workout{Name: "Hero Strength Training", Type: "strength", Duration: 45, Difficulty: "intermediate"})
			So(err, ShouldBeNil)
			So(w.Exercises, ShouldNotBeNil)

			got, err := svc.GetWorkout(ctx, w.ID)
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Hero Strength Training")

			_, err = svc.UpdateWorkout(ctx, w.ID, model.Workout{Name: "Harder", Duration: -1})
			So(errors.Is(err, service.ErrValidation), ShouldBeTrue)

			_, err = svc.UpdateWorkout(ctx, w.ID, model.Workout{Name: "Harder", Duration: 60})
			So(err, ShouldBeNil)
			ws, err := svc.ListWorkouts(ctx)
			So(err, ShouldBeNil)
			So(ws, ShouldHaveLength, 1)
			So(ws[0].Name, ShouldEqual, "Harder")

			So(svc.DeleteWorkout(ctx, w.ID), ShouldBeNil)
		})
	})
}

func TestService_Activities(t *testing.T) {
	Convey("Given a service with one user", t, func() {
		svc, _ := newService()
		ctx := context.Background()
		u, err := svc.CreateUser(ctx, model.User{Name: "Flash", Email: "flash@dc.com", Team: "Team DC"})
		So(err, ShouldBeNil)

		Convey("When logging an activity without a date", func() {
			a, err := svc.CreateActivity(ctx, model.Activity{UserID: u.ID, Type: "running", Duration: 30, Distance: 5.5, Calories: 300})
			So(err, ShouldBeNil)

			Convey("Then the date defaults to now", func() {
				So(a.Date, ShouldEqual, fixedNow)
			})

			Convey("And it is listed for its user", func() {
				acts, err := svc.ActivitiesByUser(ctx, u.ID)
				So(err, ShouldBeNil)
				So(acts, ShouldHaveLength, 1)
				So(acts[0].ID, ShouldEqual, a.ID)
			})

			Convey("And it can be updated and deleted", func() {
				a.Calories = 350
				updated, err := svc.UpdateActivity(ctx, a.ID, a)
				So(err, ShouldBeNil)
				So(updated.Calories, ShouldEqual, 350)
				So(svc.DeleteActivity(ctx, a.ID), ShouldBeNil)
				acts, err := svc.ListActivities(ctx)
				So(err, ShouldBeNil)
				So(acts, ShouldBeEmpty)
			})
		})

		Convey("When an activity has a negative metric", func() {
			_, err := svc.CreateActivity(ctx, model.Activity{UserID: u.ID, Type: "running", Calories: -1})

			Convey("Then it is rejected as invalid", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, leaderboard.ErrInvalidMetric), ShouldBeTrue)
			})
		})

		Convey("When an activity lacks a user or a type", func() {
			_, err := svc.CreateActivity(ctx, model.Activity{Type: "yoga"})
			So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
			_, err = svc.CreateActivity(ctx, model.Activity{UserID: u.ID})
			So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
		})

		Convey("When listing activities of an unknown user", func() {
			_, err := svc.ActivitiesByUser(ctx, "nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_RecomputeLeaderboard(t *testing.T) {
	Convey("Given users A, B and C with activities", t, func() {
		pub := &recordingPublisher{}
		svc, _ := newService(service.WithPublisher(pub))
		ctx := context.Background()

		a, _ := svc.CreateUser(ctx, model.User{Name: "A", Email: "a@example.com", Team: "Team Marvel"})
		b, _ := svc.CreateUser(ctx, model.User{Name: "B", Email: "b@example.com", Team: "Team DC"})
		c, _ := svc.CreateUser(ctx, model.User{Name: "C", Email: "c@example.com", Team: "Team DC"})
		for _, act := range []model.Activity{
			{UserID: a.ID, Type: "running", Duration: 30, Distance: 12.345, Calories: 500},
			{UserID: b.ID, Type: "cycling", Duration: 60, Distance: 3.2, Calories: 800},
			{UserID: a.ID, Type: "walking", Duration: 10, Distance: 3.2},
		} {
			_, err := svc.CreateActivity(ctx, act)
			So(err, ShouldBeNil)
		}

		Convey("When the leaderboard is recomputed", func() {
			res, err := svc.RecomputeLeaderboard(ctx)
			So(err, ShouldBeNil)

			Convey("Then every user is ranked by calories", func() {
				So(res.Entries, ShouldHaveLength, 3)
				So(res.Entries[0].UserID, ShouldEqual, b.ID)
				So(res.Entries[1].UserID, ShouldEqual, a.ID)
				So(res.Entries[2].UserID, ShouldEqual, c.ID)
				So(res.Entries[1].TotalDistance, ShouldEqual, 15.55)
				So(res.Entries[2].Team, ShouldEqual, "Team DC")
				So(res.Entries[0].LastUpdated, ShouldEqual, fixedNow)
			})

			Convey("And the stored leaderboard matches", func() {
				stored, err := svc.ListLeaderboard(ctx)
				So(err, ShouldBeNil)
				So(stored, ShouldHaveLength, 3)
				for i, e := range stored {
					So(e.Rank, ShouldEqual, i+1)
				}
				one, err := svc.GetLeaderboardEntry(ctx, stored[0].ID)
				So(err, ShouldBeNil)
				So(one.UserID, ShouldEqual, b.ID)
			})

			Convey("And an event is published", func() {
				So(pub.events, ShouldHaveLength, 1)
				So(pub.events[0].Entries, ShouldEqual, 3)
				So(pub.events[0].Top[0].UserID, ShouldEqual, b.ID)
			})

			Convey("And the run is reported in stats", func() {
				run, ok := svc.LastRun()
				So(ok, ShouldBeTrue)
				So(run.Reason, ShouldEqual, "manual")
				So(run.Activities, ShouldEqual, 3)
				stats := svc.GetStats(ctx)
				So(stats["recompute_runs"], ShouldEqual, 1)
				So(stats["collections"].(map[string]any)["leaderboard"], ShouldEqual, 3)
			})
		})

		Convey("When the user of some activity was deleted", func() {
			So(svc.DeleteUser(ctx, a.ID), ShouldBeNil)
			res, err := svc.RecomputeLeaderboard(ctx)

			Convey("Then those activities are skipped as orphans", func() {
				So(err, ShouldBeNil)
				So(res.Entries, ShouldHaveLength, 2)
				So(res.Skipped, ShouldHaveLength, 2)
				So(errors.Is(res.Skipped[0], leaderboard.ErrOrphanReference), ShouldBeTrue)
			})
		})

		Convey("When publishing fails", func() {
			pub.err = errors.New("broker down")
			_, err := svc.RecomputeLeaderboard(ctx)

			Convey("Then the recompute still succeeds", func() {
				So(err, ShouldBeNil)
				stored, _ := svc.ListLeaderboard(ctx)
				So(stored, ShouldHaveLength, 3)
			})
		})
	})

	Convey("Given a store that fails mid-run", t, func() {
		ctx := context.Background()
		broken := &brokenStore{Store: repository.NewMemoryStore()}
		svc := service.New(broken, service.WithAutoRecompute(false), service.WithBcryptCost(bcrypt.MinCost))
		u, _ := svc.CreateUser(ctx, model.User{Name: "A", Email: "a@example.com"})
		_, _ = svc.CreateActivity(ctx, model.Activity{UserID: u.ID, Type: "gym", Calories: 10})
		_, err := svc.RecomputeLeaderboard(ctx)
		So(err, ShouldBeNil)

		Convey("When the replace fails", func() {
			broken.failReplace = true
			_, _ = svc.CreateActivity(ctx, model.Activity{UserID: u.ID, Type: "gym", Calories: 90})
			res, err := svc.RecomputeLeaderboard(ctx)

			Convey("Then the error is a store error and the old leaderboard stays", func() {
				So(errors.Is(err, repository.ErrStoreUnavailable), ShouldBeTrue)
				So(res.Entries, ShouldBeEmpty)
				stored, _ := svc.ListLeaderboard(ctx)
				So(stored, ShouldHaveLength, 1)
				So(stored[0].TotalCalories, ShouldEqual, 10)
				So(svc.GetStats(ctx)["recompute_failures"], ShouldEqual, 1)
			})
		})

		Convey("When the snapshot fails", func() {
			broken.failSnapshot = true
			_, err := svc.RecomputeLeaderboard(ctx)
			So(errors.Is(err, repository.ErrStoreUnavailable), ShouldBeTrue)
		})
	})
}

func TestService_AutoRecompute(t *testing.T) {
	Convey("Given a started service with auto recompute", t, func() {
		svc, store := newService(service.WithAutoRecompute(true), service.WithWorkerCount(2))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When activities are logged in a burst", func() {
			u, err := svc.CreateUser(ctx, model.User{Name: "Wonder Woman", Email: "wonderwoman@dc.com", Team: "Team DC"})
			So(err, ShouldBeNil)
			for i := 0; i < 20; i++ {
				_, err := svc.CreateActivity(ctx, model.Activity{UserID: u.ID, Type: "gym", Duration: 10, Calories: 10})
				So(err, ShouldBeNil)
			}

			Convey("Then the leaderboard converges on the final totals", func() {
				deadline := time.Now().Add(5 * time.Second)
				var total int
				for time.Now().Before(deadline) {
					entries, err := store.Leaderboard().List(ctx)
					So(err, ShouldBeNil)
					if len(entries) == 1 {
						total = entries[0].TotalCalories
						if total == 200 {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(total, ShouldEqual, 200)
			})
		})
	})
}
