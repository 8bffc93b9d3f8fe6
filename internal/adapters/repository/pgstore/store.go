// Package pgstore implements repository.Store on PostgreSQL with one JSONB
// document table per collection.
//
// Snapshots run in a REPEATABLE READ READ ONLY transaction and scan through
// server-side cursors in batches. ReplaceLeaderboard deletes and copies in
// one transaction, so readers see the old or the new set only.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/octofit/internal/adapters/repository"
	"github.com/okian/octofit/internal/domain/model"
	"github.com/okian/octofit/pkg/logger"
)

const defaultBatchSize = 500

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
    seq BIGSERIAL,
    id  TEXT PRIMARY KEY,
    doc JSONB NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_unique ON users ((doc->>'email')) WHERE doc->>'email' <> '';
CREATE TABLE IF NOT EXISTS teams (
    seq BIGSERIAL,
    id  TEXT PRIMARY KEY,
    doc JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS activities (
    seq BIGSERIAL,
    id  TEXT PRIMARY KEY,
    doc JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS activities_user_id ON activities ((doc->>'user_id'));
CREATE TABLE IF NOT EXISTS workouts (
    seq BIGSERIAL,
    id  TEXT PRIMARY KEY,
    doc JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS leaderboard (
    seq BIGSERIAL,
    id  TEXT PRIMARY KEY,
    doc JSONB NOT NULL
);
`

// Option configures a Store.
type Option func(*Store)

// WithBatchSize sets how many rows each snapshot FETCH returns.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store is a repository.Store backed by a pgx pool.
type Store struct {
	pool      *pgxpool.Pool
	log       logger.Logger
	batchSize int

	users       *collection[model.User]
	teams       *collection[model.Team]
	activities  *collection[model.Activity]
	workouts    *collection[model.Workout]
	leaderboard *collection[model.LeaderboardEntry]
}

var _ repository.Store = (*Store)(nil)

// Open creates a pool for connString, verifies it and ensures the schema.
func Open(ctx context.Context, connString string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
	}
	s, err := New(ctx, pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The Store takes ownership of it.
func New(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	s := &Store{pool: pool, log: logger.Nop(), batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("%w: ensure schema: %w", repository.ErrStoreUnavailable, err)
	}

	s.users = newCollection(s, repository.CollectionUsers, "seq", userCodec())
	s.teams = newCollection(s, repository.CollectionTeams, "seq", jsonCodec[model.Team]())
	s.activities = newCollection(s, repository.CollectionActivities, "seq", jsonCodec[model.Activity]())
	s.workouts = newCollection(s, repository.CollectionWorkouts, "seq", jsonCodec[model.Workout]())
	s.leaderboard = newCollection(s, repository.CollectionLeaderboard, "(doc->>'rank')::int, seq", jsonCodec[model.LeaderboardEntry]())

	s.log.Info(ctx, "postgres store ready", logger.Int("batch_size", s.batchSize))
	return s, nil
}

func (s *Store) Users() repository.Collection[model.User]          { return s.users }
func (s *Store) Teams() repository.Collection[model.Team]          { return s.teams }
func (s *Store) Activities() repository.Collection[model.Activity] { return s.activities }
func (s *Store) Workouts() repository.Collection[model.Workout]    { return s.workouts }
func (s *Store) Leaderboard() repository.Collection[model.LeaderboardEntry] {
	return s.leaderboard
}

// Name implements repository.Store.
func (s *Store) Name() string { return "postgres" }

// Ping implements repository.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", repository.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

// ActivitiesByUser implements repository.Store.
func (s *Store) ActivitiesByUser(ctx context.Context, userID string) ([]model.Activity, error) {
	return s.activities.query(ctx, s.pool, "WHERE doc->>'user_id' = $1", userID)
}

// ReadSnapshot implements repository.Store.
func (s *Store) ReadSnapshot(ctx context.Context, onUser func(model.User) error, onActivity func(model.Activity) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := s.users.scan(ctx, tx, s.batchSize, onUser); err != nil {
		return err
	}
	if err := s.activities.scan(ctx, tx, s.batchSize, onActivity); err != nil {
		return err
	}
	return classify(tx.Commit(ctx))
}

// ReplaceLeaderboard implements repository.Store.
func (s *Store) ReplaceLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		e = repository.EnsureID(e, nil)
		doc, err := s.leaderboard.codec.encode(e)
		if err != nil {
			return fmt.Errorf("encode leaderboard entry: %w", err)
		}
		rows = append(rows, []any{e.ID, doc})
	}

	return classify(pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM leaderboard"); err != nil {
			return classify(err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{repository.CollectionLeaderboard}, []string{"id", "doc"}, pgx.CopyFromRows(rows)); err != nil {
			return classify(err)
		}
		return nil
	}))
}

// Reset implements repository.Store.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE users, teams, activities, workouts, leaderboard")
	return classify(err)
}

// classify maps pgx errors onto repository sentinels. Already classified
// errors pass through unchanged.
func classify(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrInvalidID), errors.Is(err, repository.ErrStoreUnavailable):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %w", repository.ErrNotFound, err)
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
	}
}
