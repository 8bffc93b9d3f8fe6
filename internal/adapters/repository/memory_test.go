package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/octofit/internal/adapters/repository"
	"github.com/okian/octofit/internal/adapters/repository/storetest"
	"github.com/okian/octofit/internal/domain/model"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return repository.NewMemoryStore()
	})
}

func TestMemoryStore_InstrumentedContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return repository.Instrument(repository.NewMemoryStore())
	})
}

func TestMemoryStore_DeterministicIDs(t *testing.T) {
	ctx := context.Background()
	n := 0
	store := repository.NewMemoryStore(repository.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))

	u, err := store.Users().Insert(ctx, model.User{Name: "Hulk", Email: "hulk@marvel.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "id-1" {
		t.Errorf("expected id-1, got %s", u.ID)
	}

	list, err := store.Users().List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != "id-1" {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestMemoryStore_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	for i := 0; i < 10; i++ {
		if _, err := store.Workouts().Insert(ctx, model.Workout{ID: fmt.Sprintf("w%d", i)}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := store.Workouts().Delete(ctx, "w3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := store.Workouts().List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"w0", "w1", "w2", "w4", "w5", "w6", "w7", "w8", "w9"}
	if len(list) != len(want) {
		t.Fatalf("expected %d workouts, got %d", len(want), len(list))
	}
	for i, w := range list {
		if w.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], w.ID)
		}
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	team, err := store.Teams().Insert(ctx, model.Team{Name: "Team Marvel", Members: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	team.Members[0] = "mutated"

	got, err := store.Teams().Get(ctx, team.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Members[0] != "a" {
		t.Errorf("stored team was mutated through a returned value: %v", got.Members)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	if err := store.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Users().List(ctx); !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.ReplaceLeaderboard(ctx, nil); !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := repository.NewMemoryStore()
	if _, err := store.Users().Insert(ctx, model.User{Name: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewID_Ordered(t *testing.T) {
	prev := repository.NewID()
	for i := 0; i < 1000; i++ {
		next := repository.NewID()
		if next <= prev {
			t.Fatalf("id %d: %s does not sort after %s", i, next, prev)
		}
		prev = next
	}
}
