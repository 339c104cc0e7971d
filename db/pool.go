package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/circleci/todo/o11y"
)

// Pool leases connections from a *sqlx.DB. It is safe for concurrent use, all the state
// is held by the underlying pool.
type Pool struct {
	DB *sqlx.DB
}

func NewPool(db *sqlx.DB) *Pool {
	return &Pool{DB: db}
}

// WithConn leases a connection for the duration of f. The connection goes back to the
// pool however f exits, including by panic. If no connection can be acquired the returned
// error wraps ErrAcquire and f is not called.
func (p *Pool) WithConn(ctx context.Context, f func(context.Context, Querier) error) (err error) {
	ctx, span := o11y.StartSpan(ctx, "pool: with-conn")
	defer o11y.End(span, &err)

	conn, err := p.DB.Connx(ctx)
	if err != nil {
		_, err = mapError(err)
		return fmt.Errorf("%w: %w", ErrAcquire, err)
	}
	defer func() {
		if cErr := conn.Close(); cErr != nil {
			span.AddField("release_error", cErr)
		}
	}()

	return f(ctx, mappedQuerier{conn: conn})
}
