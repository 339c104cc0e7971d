package db

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/circleci/todo/o11y"
)

var (
	ErrNop         = o11y.NewWarning("no update or results")
	ErrConstrained = errors.New("violates constraints")
	ErrException   = errors.New("exception")
	ErrCanceled    = o11y.NewWarning("statement canceled")
	ErrBadConn     = o11y.NewWarning("bad connection")
	ErrAcquire     = errors.New("could not acquire connection")
)

const (
	pgForeignKeyConstraintErrorCode = "23503"
	pgUniqueViolationErrorCode      = "23505"
	pgExceptionRaised               = "P0001"
	pgStatementCanceled             = "57014"
)

// MapError applies the same mapping as the querier to an error reported after the query
// returned, such as from rows.Err. A nil error stays nil.
func MapError(err error) error {
	_, err = mapError(err)
	return err
}

// mapError maps a few pgx errors to errors defined in this package, wrapping the original
// error. If a mapping was made the returned bool will be true, if not the original error is
// returned and the bool will be false.
func mapError(err error) (bool, error) {
	if errors.Is(err, driver.ErrBadConn) {
		return true, fmt.Errorf("%w: %w", ErrBadConn, err)
	}
	e := &pgconn.PgError{}
	if errors.As(err, &e) {
		switch e.Code {
		case pgForeignKeyConstraintErrorCode:
			return true, fmt.Errorf("%w: %s - %s: %w", ErrConstrained, e.Message, e.Detail, err)
		case pgExceptionRaised:
			return true, fmt.Errorf("%w: %s - %s: %w", ErrException, e.Message, e.Detail, err)
		case pgStatementCanceled:
			return true, fmt.Errorf("%w: %s - %s: %w", ErrCanceled, e.Message, e.Detail, err)
		case pgUniqueViolationErrorCode:
			return true, fmt.Errorf("%w: %s - %s: %w", ErrNop, e.Message, e.Detail, err)
		}
	}
	return false, err
}
