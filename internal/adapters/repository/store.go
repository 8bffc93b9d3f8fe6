// Package repository defines the document store contract, its errors and an
// in-memory implementation. Persistent backends live in subpackages.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/okian/octofit/internal/domain/model"
)

// Collection names, shared by every backend.
const (
	CollectionUsers       = "users"
	CollectionTeams       = "teams"
	CollectionActivities  = "activities"
	CollectionLeaderboard = "leaderboard"
	CollectionWorkouts    = "workouts"
)

// Collection is a keyed set of documents of one type.
//
// Insert and InsertMany assign an identifier when the document has none.
// Update replaces the document with the same identifier.
type Collection[T model.Document[T]] interface {
	Insert(ctx context.Context, doc T) (T, error)
	InsertMany(ctx context.Context, docs []T) ([]T, error)
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (T, error)
	// List returns every document. Order is backend specific but stable.
	List(ctx context.Context) ([]T, error)
	Update(ctx context.Context, doc T) (T, error)
	Delete(ctx context.Context, id string) error
	// DeleteAll empties the collection and reports how many documents it removed.
	DeleteAll(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

// Store is an open handle on the five collections. Callers own its lifecycle:
// open it before use and Close it when done.
type Store interface {
	Users() Collection[model.User]
	Teams() Collection[model.Team]
	Activities() Collection[model.Activity]
	Workouts() Collection[model.Workout]
	Leaderboard() Collection[model.LeaderboardEntry]

	// ActivitiesByUser returns the activities owned by userID.
	ActivitiesByUser(ctx context.Context, userID string) ([]model.Activity, error)

	// ReadSnapshot streams every user and then every activity from a single
	// point-in-time view. A callback error stops the scan and is returned.
	ReadSnapshot(ctx context.Context, onUser func(model.User) error, onActivity func(model.Activity) error) error

	// ReplaceLeaderboard swaps the whole leaderboard for entries. Readers see
	// either the old set or the new one, never a mix.
	ReplaceLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error

	// Reset empties every collection.
	Reset(ctx context.Context) error

	// Name identifies the backend in logs and metrics.
	Name() string
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// NewID returns a fresh opaque document identifier. Ids are UUIDv7, so
// within one process later ids sort after earlier ones; backends that order
// by _id keep insertion order.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// EnsureID assigns a new identifier to doc when it has none.
func EnsureID[T model.Document[T]](doc T, gen func() string) T {
	if doc.DocumentID() != "" {
		return doc
	}
	if gen == nil {
		gen = NewID
	}
	return doc.WithDocumentID(gen())
}
