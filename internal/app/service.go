// Package service provides the core business service behind the HTTP API:
// CRUD over the five collections and the leaderboard recompute.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/octofit/internal/adapters/events"
	"github.com/okian/octofit/internal/adapters/mq/queue"
	"github.com/okian/octofit/internal/adapters/mq/worker"
	"github.com/okian/octofit/internal/adapters/repository"
	"github.com/okian/octofit/pkg/logger"
)

// ErrValidation reports input the service refuses to store.
var ErrValidation = errors.New("validation failed")

// Service implements the API dependencies for the tracker.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	publisher events.Publisher

	// Recompute pipeline, present while started with auto recompute on.
	recomputeQueue *queue.InMemoryQueue
	workerPool     *worker.Pool

	// recomputeMu serializes runs so replaces never interleave.
	recomputeMu sync.Mutex
	statsMu     sync.Mutex
	lastRun     *RunInfo
	runs        int
	failures    int

	// Configuration
	autoRecompute bool
	queueSize     int
	workerCount   int
	bcryptCost    int
	now           func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher sets where recompute events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithAutoRecompute toggles the recompute triggered by user and activity
// mutations.
func WithAutoRecompute(enabled bool) Option {
	return func(s *Service) {
		s.autoRecompute = enabled
	}
}

// WithQueueSize sets how many recompute requests may be pending.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of recompute workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service over an open store. The caller keeps ownership of
// the store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		publisher:     events.NopPublisher{},
		autoRecompute: true,
		queueSize:     1,
		workerCount:   1,
		bcryptCost:    bcrypt.DefaultCost,
		now:           time.Now,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the recompute workers when auto recompute is enabled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return fmt.Errorf("start service: %w", repository.ErrStoreUnavailable)
	}

	s.logger.Info(ctx, "starting tracker service...", logger.String("store", s.store.Name()))

	if s.autoRecompute {
		s.recomputeQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
		s.workerPool = worker.NewPool(s.workerCount, s.recomputeQueue,
			worker.RecomputerFunc(func(ctx context.Context, req queue.Request) error {
				_, err := s.recompute(ctx, req.ID, req.Reason)
				return err
			}),
			worker.WithLogger(s.logger),
		)
		s.workerPool.Start(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "tracker service started",
		logger.Bool("auto_recompute", s.autoRecompute),
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
	)
	return nil
}

// Stop drains the recompute workers and closes the publisher.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping tracker service...")

	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
		s.workerPool = nil
		s.recomputeQueue = nil
	}
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn(ctx, "close publisher", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "tracker service stopped")
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// requestRecompute queues a background recompute. Requests are dropped when
// one is already pending, since that run will observe this mutation too.
func (s *Service) requestRecompute(ctx context.Context, reason string) {
	s.mu.RLock()
	q := s.recomputeQueue
	s.mu.RUnlock()
	if q == nil {
		return
	}
	req := queue.Request{ID: uuid.NewString(), Reason: reason, EnqueuedAt: s.now()}
	if !q.Enqueue(context.WithoutCancel(ctx), req) {
		s.logger.Debug(ctx, "recompute already pending", logger.String("reason", reason))
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	stats := map[string]any{
		"started":        s.started,
		"store":          s.store.Name(),
		"auto_recompute": s.autoRecompute,
		"worker_count":   s.workerCount,
		"queue_capacity": s.queueSize,
	}
	if s.recomputeQueue != nil {
		stats["queue_length"] = s.recomputeQueue.Len(ctx)
	}
	s.mu.RUnlock()

	counts := map[string]any{}
	for name, count := range map[string]func(context.Context) (int, error){
		repository.CollectionUsers:       s.store.Users().Count,
		repository.CollectionTeams:       s.store.Teams().Count,
		repository.CollectionActivities:  s.store.Activities().Count,
		repository.CollectionWorkouts:    s.store.Workouts().Count,
		repository.CollectionLeaderboard: s.store.Leaderboard().Count,
	} {
		n, err := count(ctx)
		if err != nil {
			s.logger.Warn(ctx, "count collection", logger.String("collection", name), logger.Error(err))
			continue
		}
		counts[name] = n
	}
	stats["collections"] = counts

	s.statsMu.Lock()
	stats["recompute_runs"] = s.runs
	stats["recompute_failures"] = s.failures
	if s.lastRun != nil {
		stats["last_recompute"] = *s.lastRun
	}
	s.statsMu.Unlock()
	return stats
}
