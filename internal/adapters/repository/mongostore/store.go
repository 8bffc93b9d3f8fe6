// Package mongostore implements repository.Store on MongoDB.
//
// Snapshots use a snapshot-read session when the server is part of a replica
// set or sharded cluster; standalone servers fall back to plain reads.
// ReplaceLeaderboard fills a staging collection and swaps it in with
// renameCollection(dropTarget), which readers observe atomically.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/okian/octofit/internal/adapters/repository"
	"github.com/okian/octofit/internal/domain/model"
	"github.com/okian/octofit/pkg/logger"
)

const defaultBatchSize = 500

// Option configures a Store.
type Option func(*Store)

// WithBatchSize sets the cursor batch size used by snapshot scans.
func WithBatchSize(n int32) Option {
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

// Store is a repository.Store backed by one MongoDB database.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	log       logger.Logger
	batchSize int32
	snapshots bool

	users       *collection[model.User]
	teams       *collection[model.Team]
	activities  *collection[model.Activity]
	workouts    *collection[model.Workout]
	leaderboard *collection[model.LeaderboardEntry]
}

var _ repository.Store = (*Store)(nil)

// Open connects to uri, verifies the connection and ensures indexes.
func Open(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", repository.ErrStoreUnavailable, err)
	}
	s, err := New(ctx, client, database, opts...)
	if err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return s, nil
}

// New wraps an existing client. The Store takes ownership of it.
func New(ctx context.Context, client *mongo.Client, database string, opts ...Option) (*Store, error) {
	s := &Store{
		client:    client,
		db:        client.Database(database),
		log:       logger.Nop(),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}

	s.users = newCollection[model.User](s, repository.CollectionUsers, nil)
	s.teams = newCollection[model.Team](s, repository.CollectionTeams, nil)
	s.activities = newCollection[model.Activity](s, repository.CollectionActivities, nil)
	s.workouts = newCollection[model.Workout](s, repository.CollectionWorkouts, nil)
	s.leaderboard = newCollection[model.LeaderboardEntry](s, repository.CollectionLeaderboard, bson.D{{Key: "rank", Value: 1}})

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	s.snapshots = s.supportsSnapshots(ctx)
	s.log.Info(ctx, "mongo store ready",
		logger.String("database", database),
		logger.Bool("snapshot_reads", s.snapshots))
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return fmt.Errorf("%w: users index: %w", repository.ErrStoreUnavailable, err)
	}
	_, err = s.activities.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetName("activities_user_id"),
	})
	if err != nil {
		return fmt.Errorf("%w: activities index: %w", repository.ErrStoreUnavailable, err)
	}
	return nil
}

// supportsSnapshots reports whether the deployment is a replica set or a
// sharded cluster, the topologies that accept snapshot reads.
func (s *Store) supportsSnapshots(ctx context.Context) bool {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := s.db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		s.log.Warn(ctx, "hello command failed; snapshot reads disabled", logger.Error(err))
		return false
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid"
}

func (s *Store) Users() repository.Collection[model.User]          { return s.users }
func (s *Store) Teams() repository.Collection[model.Team]          { return s.teams }
func (s *Store) Activities() repository.Collection[model.Activity] { return s.activities }
func (s *Store) Workouts() repository.Collection[model.Workout]    { return s.workouts }
func (s *Store) Leaderboard() repository.Collection[model.LeaderboardEntry] {
	return s.leaderboard
}

// Name implements repository.Store.
func (s *Store) Name() string { return "mongo" }

// Ping implements repository.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: ping: %w", repository.ErrStoreUnavailable, err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}

// ActivitiesByUser implements repository.Store.
func (s *Store) ActivitiesByUser(ctx context.Context, userID string) ([]model.Activity, error) {
	return s.activities.find(ctx, bson.D{{Key: "user_id", Value: userID}})
}

// ReadSnapshot implements repository.Store.
func (s *Store) ReadSnapshot(ctx context.Context, onUser func(model.User) error, onActivity func(model.Activity) error) error {
	scan := func(ctx context.Context) error {
		if err := s.users.stream(ctx, onUser); err != nil {
			return err
		}
		return s.activities.stream(ctx, onActivity)
	}
	if !s.snapshots {
		return scan(ctx)
	}

	sess, err := s.client.StartSession(options.Session().SetSnapshot(true))
	if err != nil {
		return fmt.Errorf("%w: start snapshot session: %w", repository.ErrStoreUnavailable, err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))
	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		return scan(sc)
	})
}

// ReplaceLeaderboard writes entries to a fresh staging collection and renames
// it over the live one. A failure before the rename leaves the live
// collection untouched and drops the staging copy.
func (s *Store) ReplaceLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) (err error) {
	staging := repository.CollectionLeaderboard + "_staging_" + repository.NewID()
	if err := s.db.CreateCollection(ctx, staging); err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			if dropErr := s.db.Collection(staging).Drop(context.WithoutCancel(ctx)); dropErr != nil {
				s.log.Warn(ctx, "drop staging leaderboard", logger.String("collection", staging), logger.Error(dropErr))
			}
		}
	}()

	if len(entries) > 0 {
		docs := make([]any, 0, len(entries))
		seen := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			e = repository.EnsureID(e, nil)
			if _, dup := seen[e.ID]; dup {
				return fmt.Errorf("%w: leaderboard entry %s", repository.ErrDuplicate, e.ID)
			}
			seen[e.ID] = struct{}{}
			docs = append(docs, e)
		}
		if _, err := s.db.Collection(staging).InsertMany(ctx, docs); err != nil {
			return classify(err)
		}
	}

	rename := bson.D{
		{Key: "renameCollection", Value: s.db.Name() + "." + staging},
		{Key: "to", Value: s.db.Name() + "." + repository.CollectionLeaderboard},
		{Key: "dropTarget", Value: true},
	}
	if err := s.client.Database("admin").RunCommand(ctx, rename).Err(); err != nil {
		return classify(err)
	}
	return nil
}

// Reset implements repository.Store. Documents are deleted rather than the
// collections dropped so indexes survive.
func (s *Store) Reset(ctx context.Context) error {
	for _, deleteAll := range []func(context.Context) (int, error){
		s.users.DeleteAll, s.teams.DeleteAll, s.activities.DeleteAll, s.workouts.DeleteAll, s.leaderboard.DeleteAll,
	} {
		if _, err := deleteAll(ctx); err != nil {
			return err
		}
	}
	return nil
}

// classify maps driver errors onto repository sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %w", repository.ErrNotFound, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", repository.ErrDuplicate, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
	}
}
