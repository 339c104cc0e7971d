// Package todos stores todo items in PostgreSQL.
package todos

import (
	"context"
	"errors"
	"os"

	"github.com/circleci/todo/db"
	"github.com/circleci/todo/errs"
	"github.com/circleci/todo/o11y"
)

// Accessor is the storage capability the rest of the service depends on.
type Accessor interface {
	// InitSchema applies the schema. It is idempotent for the shipped schema.
	InitSchema(ctx context.Context) error
	// List returns every todo in ascending id order, an empty slice if there are none.
	List(ctx context.Context) ([]Todo, error)
	// Create inserts an unchecked todo and returns it with its storage assigned id.
	Create(ctx context.Context, name string) (Todo, error)
}

// Todo is one item of the list. Checked is false for every newly created todo.
type Todo struct {
	ID      int64  `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Checked bool   `json:"checked" db:"checked"`
}

// Store is safe for concurrent use, every call leases its own connection.
type Store struct {
	pool       *db.Pool
	schemaPath string
}

var _ Accessor = (*Store)(nil)

// NewStore returns a Store leasing from pool. schemaPath is read on each InitSchema.
func NewStore(pool *db.Pool, schemaPath string) *Store {
	return &Store{
		pool:       pool,
		schemaPath: schemaPath,
	}
}

func (s *Store) InitSchema(ctx context.Context) (err error) {
	const op = "todos: init-schema"
	ctx, span := o11y.StartSpan(ctx, op)
	defer o11y.End(span, &err)
	span.AddField("schema_path", s.schemaPath)

	schema, err := os.ReadFile(s.schemaPath)
	if err != nil {
		return errs.New(errs.SchemaLoad, op, err)
	}

	return s.withConn(ctx, op, func(ctx context.Context, q db.Querier) error {
		return execSchema(ctx, q, string(schema))
	})
}

func (s *Store) List(ctx context.Context) (todos []Todo, err error) {
	const op = "todos: list"
	ctx, span := o11y.StartSpan(ctx, op)
	defer o11y.End(span, &err)

	err = s.withConn(ctx, op, func(ctx context.Context, q db.Querier) (err error) {
		todos, err = queryListTodos(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	span.AddField("count", len(todos))
	return todos, nil
}

func (s *Store) Create(ctx context.Context, name string) (todo Todo, err error) {
	const op = "todos: create"
	ctx, span := o11y.StartSpan(ctx, op)
	defer o11y.End(span, &err)

	err = s.withConn(ctx, op, func(ctx context.Context, q db.Querier) (err error) {
		todo, err = queryInsertTodo(ctx, q, name)
		return err
	})
	if err != nil {
		return Todo{}, err
	}
	span.AddField("id", todo.ID)
	return todo, nil
}

// withConn runs f on a leased connection. A failed lease is a PoolAcquire error, anything
// f returns that is not already classified is a Query error.
func (s *Store) withConn(ctx context.Context, op string, f func(context.Context, db.Querier) error) error {
	err := s.pool.WithConn(ctx, f)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrAcquire):
		return errs.New(errs.PoolAcquire, op, err)
	case errs.KindOf(err) != errs.Unknown:
		return err
	}
	return errs.New(errs.Query, op, err)
}
