package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/okian/octofit/internal/domain/model"
)

// MemoryStore keeps every collection in process memory behind one RWMutex,
// which makes snapshots and leaderboard swaps trivially consistent.
type MemoryStore struct {
	mu     sync.RWMutex
	newID  func() string
	closed atomic.Bool

	users       *memCollection[model.User]
	teams       *memCollection[model.Team]
	activities  *memCollection[model.Activity]
	workouts    *memCollection[model.Workout]
	leaderboard *memCollection[model.LeaderboardEntry]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{newID: NewID}
	for _, opt := range opts {
		opt(s)
	}
	s.users = newMemCollection[model.User](s, CollectionUsers)
	s.users.conflict = func(a, b model.User) bool { return a.Email != "" && a.Email == b.Email }
	s.teams = newMemCollection[model.Team](s, CollectionTeams)
	s.teams.clone = func(t model.Team) model.Team {
		t.Members = slices.Clone(t.Members)
		return t
	}
	s.activities = newMemCollection[model.Activity](s, CollectionActivities)
	s.workouts = newMemCollection[model.Workout](s, CollectionWorkouts)
	s.workouts.clone = func(w model.Workout) model.Workout {
		w.Exercises = slices.Clone(w.Exercises)
		return w
	}
	s.leaderboard = newMemCollection[model.LeaderboardEntry](s, CollectionLeaderboard)
	return s
}

func (s *MemoryStore) Users() Collection[model.User]                   { return s.users }
func (s *MemoryStore) Teams() Collection[model.Team]                   { return s.teams }
func (s *MemoryStore) Activities() Collection[model.Activity]          { return s.activities }
func (s *MemoryStore) Workouts() Collection[model.Workout]             { return s.workouts }
func (s *MemoryStore) Leaderboard() Collection[model.LeaderboardEntry] { return s.leaderboard }

// Name implements Store.
func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return fmt.Errorf("%w: memory store closed", ErrStoreUnavailable)
	}
	return nil
}

// ActivitiesByUser implements Store.
func (s *MemoryStore) ActivitiesByUser(ctx context.Context, userID string) ([]model.Activity, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Activity{}
	for _, id := range s.activities.order {
		if a := s.activities.docs[id]; a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ReadSnapshot copies both collections under one read lock and streams the
// copies after releasing it.
func (s *MemoryStore) ReadSnapshot(ctx context.Context, onUser func(model.User) error, onActivity func(model.Activity) error) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	users := s.users.listLocked()
	activities := s.activities.listLocked()
	s.mu.RUnlock()

	for _, u := range users {
		if err := onUser(u); err != nil {
			return err
		}
	}
	for _, a := range activities {
		if err := onActivity(a); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceLeaderboard implements Store.
func (s *MemoryStore) ReplaceLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	docs := make(map[string]model.LeaderboardEntry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		e = EnsureID(e, s.newID)
		if _, dup := docs[e.ID]; dup {
			return fmt.Errorf("%w: leaderboard entry %s", ErrDuplicate, e.ID)
		}
		docs[e.ID] = e
		order = append(order, e.ID)
	}

	s.mu.Lock()
	s.leaderboard.docs = docs
	s.leaderboard.order = order
	s.mu.Unlock()
	return nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users.resetLocked()
	s.teams.resetLocked()
	s.activities.resetLocked()
	s.workouts.resetLocked()
	s.leaderboard.resetLocked()
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return s.check(ctx)
}

// Close implements Store. Further calls fail with ErrStoreUnavailable.
func (s *MemoryStore) Close(_ context.Context) error {
	s.closed.Store(true)
	return nil
}

// memCollection is one collection of a MemoryStore. It relies on the owning
// store's lock; order keeps List deterministic (insertion order).
type memCollection[T model.Document[T]] struct {
	s        *MemoryStore
	name     string
	docs     map[string]T
	order    []string
	clone    func(T) T
	conflict func(a, b T) bool
}

func newMemCollection[T model.Document[T]](s *MemoryStore, name string) *memCollection[T] {
	return &memCollection[T]{
		s:     s,
		name:  name,
		docs:  make(map[string]T),
		clone: func(v T) T { return v },
	}
}

func (c *memCollection[T]) resetLocked() {
	c.docs = make(map[string]T)
	c.order = nil
}

func (c *memCollection[T]) listLocked() []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.clone(c.docs[id]))
	}
	return out
}

// conflictLocked reports whether doc violates a unique constraint against any
// stored document other than itself or the extra pending documents.
func (c *memCollection[T]) conflictLocked(doc T, pending []T) bool {
	if c.conflict == nil {
		return false
	}
	for id, other := range c.docs {
		if id != doc.DocumentID() && c.conflict(doc, other) {
			return true
		}
	}
	for _, other := range pending {
		if c.conflict(doc, other) {
			return true
		}
	}
	return false
}

func (c *memCollection[T]) Insert(ctx context.Context, doc T) (T, error) {
	out, err := c.InsertMany(ctx, []T{doc})
	if err != nil {
		var zero T
		return zero, err
	}
	return out[0], nil
}

// InsertMany is all-or-nothing: one bad document rejects the batch.
func (c *memCollection[T]) InsertMany(ctx context.Context, docs []T) ([]T, error) {
	if err := c.s.check(ctx); err != nil {
		return nil, err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	prepared := make([]T, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		doc = c.clone(EnsureID(doc, c.s.newID))
		id := doc.DocumentID()
		if _, ok := c.docs[id]; ok {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicate, c.name, id)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicate, c.name, id)
		}
		if c.conflictLocked(doc, prepared) {
			return nil, fmt.Errorf("%w: %s unique field", ErrDuplicate, c.name)
		}
		seen[id] = struct{}{}
		prepared = append(prepared, doc)
	}

	out := make([]T, 0, len(prepared))
	for _, doc := range prepared {
		c.docs[doc.DocumentID()] = doc
		c.order = append(c.order, doc.DocumentID())
		out = append(out, c.clone(doc))
	}
	return out, nil
}

func (c *memCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := c.s.check(ctx); err != nil {
		return zero, err
	}
	if id == "" {
		return zero, ErrInvalidID
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	doc, ok := c.docs[id]
	if !ok {
		return zero, fmt.Errorf("%w: %s %s", ErrNotFound, c.name, id)
	}
	return c.clone(doc), nil
}

func (c *memCollection[T]) List(ctx context.Context) ([]T, error) {
	if err := c.s.check(ctx); err != nil {
		return nil, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.listLocked(), nil
}

func (c *memCollection[T]) Update(ctx context.Context, doc T) (T, error) {
	var zero T
	if err := c.s.check(ctx); err != nil {
		return zero, err
	}
	id := doc.DocumentID()
	if id == "" {
		return zero, ErrInvalidID
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return zero, fmt.Errorf("%w: %s %s", ErrNotFound, c.name, id)
	}
	doc = c.clone(doc)
	if c.conflictLocked(doc, nil) {
		return zero, fmt.Errorf("%w: %s unique field", ErrDuplicate, c.name)
	}
	c.docs[id] = doc
	return c.clone(doc), nil
}

func (c *memCollection[T]) Delete(ctx context.Context, id string) error {
	if err := c.s.check(ctx); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, c.name, id)
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(v string) bool { return v == id })
	return nil
}

func (c *memCollection[T]) DeleteAll(ctx context.Context) (int, error) {
	if err := c.s.check(ctx); err != nil {
		return 0, err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	n := len(c.docs)
	c.resetLocked()
	return n, nil
}

func (c *memCollection[T]) Count(ctx context.Context) (int, error) {
	if err := c.s.check(ctx); err != nil {
		return 0, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return len(c.docs), nil
}
