package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/okian/octofit/internal/adapters/repository"
	"github.com/okian/octofit/internal/domain/model"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type codec[T any] struct {
	encode func(T) ([]byte, error)
	decode func([]byte) (T, error)
}

func jsonCodec[T any]() codec[T] {
	return codec[T]{
		encode: func(v T) ([]byte, error) { return json.Marshal(v) },
		decode: func(b []byte) (T, error) {
			var v T
			err := json.Unmarshal(b, &v)
			return v, err
		},
	}
}

// storedUser keeps the password hash, which the public JSON form omits.
type storedUser struct {
	model.User
	Password string `json:"password"`
}

func userCodec() codec[model.User] {
	return codec[model.User]{
		encode: func(u model.User) ([]byte, error) {
			return json.Marshal(storedUser{User: u, Password: u.Password})
		},
		decode: func(b []byte) (model.User, error) {
			var su storedUser
			if err := json.Unmarshal(b, &su); err != nil {
				return model.User{}, err
			}
			su.User.Password = su.Password
			return su.User, nil
		},
	}
}

type collection[T model.Document[T]] struct {
	s     *Store
	table string
	order string
	codec codec[T]
}

func newCollection[T model.Document[T]](s *Store, table, order string, c codec[T]) *collection[T] {
	return &collection[T]{s: s, table: table, order: order, codec: c}
}

func (c *collection[T]) Insert(ctx context.Context, doc T) (T, error) {
	out, err := c.InsertMany(ctx, []T{doc})
	if err != nil {
		var zero T
		return zero, err
	}
	return out[0], nil
}

// InsertMany writes every document in one transaction.
func (c *collection[T]) InsertMany(ctx context.Context, docs []T) ([]T, error) {
	if len(docs) == 0 {
		return []T{}, nil
	}
	out := make([]T, 0, len(docs))
	batch := &pgx.Batch{}
	insert := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES ($1, $2)", c.table)
	for _, doc := range docs {
		doc = repository.EnsureID(doc, nil)
		raw, err := c.codec.encode(doc)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", c.table, err)
		}
		batch.Queue(insert, doc.DocumentID(), raw)
		out = append(out, doc)
	}

	err := pgx.BeginTxFunc(ctx, c.s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (c *collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, repository.ErrInvalidID
	}
	var raw []byte
	err := c.s.pool.QueryRow(ctx, fmt.Sprintf("SELECT doc FROM %s WHERE id = $1", c.table), id).Scan(&raw)
	if err != nil {
		return zero, classify(err)
	}
	doc, err := c.codec.decode(raw)
	if err != nil {
		return zero, fmt.Errorf("decode %s: %w", c.table, err)
	}
	return doc, nil
}

func (c *collection[T]) List(ctx context.Context) ([]T, error) {
	return c.query(ctx, c.s.pool, "")
}

func (c *collection[T]) query(ctx context.Context, q querier, where string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, fmt.Sprintf("SELECT doc FROM %s %s ORDER BY %s", c.table, where, c.order), args...)
	if err != nil {
		return nil, classify(err)
	}
	return c.collect(rows)
}

// collect decodes and closes rows of single-column documents.
func (c *collection[T]) collect(rows pgx.Rows) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, classify(err)
		}
		doc, err := c.codec.decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.table, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// scan walks the table through a server-side cursor inside tx, fetching
// batchSize rows at a time.
func (c *collection[T]) scan(ctx context.Context, tx pgx.Tx, batchSize int, fn func(T) error) error {
	cursor := "snapshot_" + c.table
	declare := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR SELECT doc FROM %s ORDER BY %s", cursor, c.table, c.order)
	if _, err := tx.Exec(ctx, declare); err != nil {
		return classify(err)
	}
	fetch := fmt.Sprintf("FETCH FORWARD %d FROM %s", batchSize, cursor)
	for {
		rows, err := tx.Query(ctx, fetch, pgx.QueryExecModeSimpleProtocol)
		if err != nil {
			return classify(err)
		}
		batch, err := c.collect(rows)
		if err != nil {
			return err
		}
		for _, doc := range batch {
			if err := fn(doc); err != nil {
				return err
			}
		}
		if len(batch) < batchSize {
			break
		}
	}
	if _, err := tx.Exec(ctx, "CLOSE "+cursor); err != nil {
		return classify(err)
	}
	return nil
}

func (c *collection[T]) Update(ctx context.Context, doc T) (T, error) {
	var zero T
	if doc.DocumentID() == "" {
		return zero, repository.ErrInvalidID
	}
	raw, err := c.codec.encode(doc)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", c.table, err)
	}
	tag, err := c.s.pool.Exec(ctx, fmt.Sprintf("UPDATE %s SET doc = $2 WHERE id = $1", c.table), doc.DocumentID(), raw)
	if err != nil {
		return zero, classify(err)
	}
	if tag.RowsAffected() == 0 {
		return zero, fmt.Errorf("%w: %s %s", repository.ErrNotFound, c.table, doc.DocumentID())
	}
	return doc, nil
}

func (c *collection[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return repository.ErrInvalidID
	}
	tag, err := c.s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.table), id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", repository.ErrNotFound, c.table, id)
	}
	return nil
}

func (c *collection[T]) DeleteAll(ctx context.Context) (int, error) {
	tag, err := c.s.pool.Exec(ctx, "DELETE FROM "+c.table)
	if err != nil {
		return 0, classify(err)
	}
	return int(tag.RowsAffected()), nil
}

func (c *collection[T]) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.s.pool.QueryRow(ctx, "SELECT count(*) FROM "+c.table).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}
