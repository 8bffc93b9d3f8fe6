package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/okian/octofit/internal/adapters/repository"
	"github.com/okian/octofit/internal/domain/model"
)

type collection[T model.Document[T]] struct {
	s    *Store
	name string
	coll *mongo.Collection
	sort bson.D
}

// newCollection defaults to _id order, which is insertion order for ids from
// repository.NewID.
func newCollection[T model.Document[T]](s *Store, name string, sort bson.D) *collection[T] {
	if sort == nil {
		sort = bson.D{{Key: "_id", Value: 1}}
	}
	return &collection[T]{s: s, name: name, coll: s.db.Collection(name), sort: sort}
}

func byID(id string) bson.D { return bson.D{{Key: "_id", Value: id}} }

func (c *collection[T]) Insert(ctx context.Context, doc T) (T, error) {
	doc = repository.EnsureID(doc, nil)
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		var zero T
		return zero, classify(err)
	}
	return doc, nil
}

// InsertMany inserts in order. When a document is rejected the ones already
// written by this call are deleted again so the batch is all-or-nothing.
func (c *collection[T]) InsertMany(ctx context.Context, docs []T) ([]T, error) {
	if len(docs) == 0 {
		return []T{}, nil
	}
	out := make([]T, 0, len(docs))
	raw := make([]any, 0, len(docs))
	for _, doc := range docs {
		doc = repository.EnsureID(doc, nil)
		out = append(out, doc)
		raw = append(raw, doc)
	}

	_, err := c.coll.InsertMany(ctx, raw, options.InsertMany().SetOrdered(true))
	if err == nil {
		return out, nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
		written := make([]string, 0, bwe.WriteErrors[0].Index)
		for _, doc := range out[:bwe.WriteErrors[0].Index] {
			written = append(written, doc.DocumentID())
		}
		if len(written) > 0 {
			filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: written}}}}
			if _, delErr := c.coll.DeleteMany(context.WithoutCancel(ctx), filter); delErr != nil {
				return nil, fmt.Errorf("%w: rollback partial insert into %s: %w", repository.ErrStoreUnavailable, c.name, delErr)
			}
		}
	}
	return nil, classify(err)
}

func (c *collection[T]) Get(ctx context.Context, id string) (T, error) {
	var doc T
	if id == "" {
		return doc, repository.ErrInvalidID
	}
	if err := c.coll.FindOne(ctx, byID(id)).Decode(&doc); err != nil {
		var zero T
		return zero, classify(err)
	}
	return doc, nil
}

func (c *collection[T]) List(ctx context.Context) ([]T, error) {
	return c.find(ctx, bson.D{})
}

func (c *collection[T]) find(ctx context.Context, filter bson.D) ([]T, error) {
	cur, err := c.coll.Find(ctx, filter, options.Find().SetSort(c.sort))
	if err != nil {
		return nil, classify(err)
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// stream decodes the collection one document at a time.
func (c *collection[T]) stream(ctx context.Context, fn func(T) error) error {
	cur, err := c.coll.Find(ctx, bson.D{}, options.Find().SetSort(c.sort).SetBatchSize(c.s.batchSize))
	if err != nil {
		return classify(err)
	}
	defer func() { _ = cur.Close(context.WithoutCancel(ctx)) }()
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("decode %s: %w", c.name, err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return classify(cur.Err())
}

func (c *collection[T]) Update(ctx context.Context, doc T) (T, error) {
	var zero T
	if doc.DocumentID() == "" {
		return zero, repository.ErrInvalidID
	}
	res, err := c.coll.ReplaceOne(ctx, byID(doc.DocumentID()), doc)
	if err != nil {
		return zero, classify(err)
	}
	if res.MatchedCount == 0 {
		return zero, fmt.Errorf("%w: %s %s", repository.ErrNotFound, c.name, doc.DocumentID())
	}
	return doc, nil
}

func (c *collection[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return repository.ErrInvalidID
	}
	res, err := c.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return classify(err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s %s", repository.ErrNotFound, c.name, id)
	}
	return nil
}

func (c *collection[T]) DeleteAll(ctx context.Context) (int, error) {
	res, err := c.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, classify(err)
	}
	return int(res.DeletedCount), nil
}

func (c *collection[T]) Count(ctx context.Context) (int, error) {
	n, err := c.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, classify(err)
	}
	return int(n), nil
}
