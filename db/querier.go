package db

import (
	"context"
	"database/sql"
)

// Querier is the capability of a leased connection.
type Querier interface {
	// ExecContext executes the query with placeholder parameters that match the args.
	// With no args the query may hold several statements, which are run as one batch.
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// QueryContext binds args to the positional placeholders ($1, $2, ...) in the query
	// and returns the rows, which the caller must close.
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// mappedQuerier is the Querier handed to WithConn callbacks. Its errors match the
// package sentinels.
type mappedQuerier struct {
	conn Querier
}

func (m mappedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := m.conn.ExecContext(ctx, query, args...)
	return res, MapError(err)
}

func (m mappedQuerier) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := m.conn.QueryContext(ctx, query, args...)
	return rows, MapError(err)
}
