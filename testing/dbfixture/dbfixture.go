// Package dbfixture creates a throwaway PostgreSQL database per test.
//
// Tests using it are skipped when no database is reachable, unless CI=true in which case
// they fail.
package dbfixture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
	"gotest.tools/v3/assert"

	"github.com/circleci/todo/config/secret"
	"github.com/circleci/todo/db"
	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/testing/testrand"
)

var globalFixture = &SharedFixture{}

var mustRunAllTests = os.Getenv("CI") == "true"

type SharedFixture struct {
	once sync.Once
	m    *Manager
	err  error
}

func (s *SharedFixture) Manager() *Manager {
	return s.m
}

// SetupSystem connects the shared manager once per test binary.
func SetupSystem(t testing.TB, con Connection) *SharedFixture {
	t.Helper()
	globalFixture.once.Do(func() {
		globalFixture.m, globalFixture.err = NewManager(con)
	})
	if err := globalFixture.err; err != nil {
		var noDBError *NoDBError
		if errors.As(err, &noDBError) && !mustRunAllTests {
			t.Skip(noDBError.Error())
		}
		t.Fatal(err.Error())
	}
	return globalFixture
}

// Connection is the superuser used to create and drop the test databases.
type Connection struct {
	Host     string
	User     string
	Password secret.String
}

// DefaultConnection is a local postgres, overridden by TEST_DB_HOST, TEST_DB_USER and
// TEST_DB_PASSWORD.
func DefaultConnection() Connection {
	return Connection{
		Host:     envOr("TEST_DB_HOST", "localhost:5432"),
		User:     envOr("TEST_DB_USER", "postgres"),
		Password: secret.String(envOr("TEST_DB_PASSWORD", "postgres")),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SetupDB creates a database named after the test with schema applied, and drops it when
// the test ends. An empty schema leaves the database empty.
func SetupDB(ctx context.Context, t testing.TB, schema string, con Connection) *Fixture {
	t.Helper()
	shared := SetupSystem(t, con)
	fix, err := shared.Manager().NewDB(ctx, con, t.Name(), schema)
	assert.Assert(t, err)
	t.Cleanup(func() {
		p := o11y.FromContext(ctx)
		ctx, cancel := context.WithTimeout(o11y.WithProvider(context.Background(), p), 10*time.Second)
		defer cancel()
		assert.Check(t, fix.Cleanup(ctx))
	})
	return fix
}

type Manager struct {
	db *sqlx.DB
}

func NewManager(con Connection) (*Manager, error) {
	d, err := newDB(con, "postgres", 2)
	if err != nil {
		return nil, err
	}
	return &Manager{db: d}, nil
}

// NewDB returns a new database fixture. The database name is generated from dbName behind a random prefix.
func (m *Manager) NewDB(ctx context.Context, con Connection, dbName, schema string) (fix *Fixture, err error) {
	ctx, span := o11y.StartSpan(ctx, "dbfixture: new-db")
	defer o11y.End(span, &err)

	name := testrand.Prefixed(dbName)
	if len(name) > 63 {
		name = name[:63]
	}
	span.AddField("dbname", name)
	span.AddField("host", con.Host)

	_, err = m.db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{name}.Sanitize()))
	if err != nil {
		return nil, err
	}

	fix = &Fixture{DBName: name, Host: con.Host, User: con.User, Password: con.Password}
	fix.DB, err = newDB(con, name, 10)
	if err != nil {
		return nil, multierror.Append(err, m.drop(ctx, name)).ErrorOrNil()
	}
	fix.Pool = db.NewPool(fix.DB)
	fix.Cleanup = func(ctx context.Context) error {
		return m.cleanup(ctx, fix)
	}

	if schema != "" {
		o11y.Log(ctx, "dbfixture: applying schema")
		if _, err = fix.DB.ExecContext(ctx, schema); err != nil {
			return nil, multierror.Append(fmt.Errorf("failed to apply schema: %w", err), fix.Cleanup(ctx))
		}
	}
	return fix, nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}

type NoDBError struct {
	err error
}

func (e *NoDBError) Error() string {
	return fmt.Sprintf("no database available: %s", e.err)
}

func (e *NoDBError) Unwrap() error {
	return e.err
}

func newDB(con Connection, name string, maxOpen int) (*sqlx.DB, error) {
	params := url.Values{}
	params.Set("connect_timeout", "5")
	params.Set("sslmode", "disable")

	uri := url.URL{
		Scheme:   "postgres",
		User:     con.Password.UserPassword(con.User),
		Host:     con.Host,
		Path:     name,
		RawQuery: params.Encode(),
	}

	d, err := sqlx.Open("pgx", uri.String())
	if err != nil {
		return nil, err
	}
	d.SetMaxOpenConns(maxOpen)
	d.SetMaxIdleConns(maxOpen / 2)

	if err = d.Ping(); err != nil {
		_ = d.Close()
		return nil, &NoDBError{err: err}
	}
	return d, nil
}

func (m *Manager) cleanup(ctx context.Context, fix *Fixture) error {
	if err := fix.DB.Close(); err != nil {
		o11y.LogError(ctx, "dbfixture: close", err)
	}
	if os.Getenv("TEST_PRESERVE_DB") != "" {
		return nil
	}
	return m.drop(ctx, fix.DBName)
}

// drop kicks out any lingering connections before dropping the database.
func (m *Manager) drop(ctx context.Context, name string) error {
	var result *multierror.Error
	sanitized := pgx.Identifier{name}.Sanitize()

	_, err := m.db.ExecContext(ctx, fmt.Sprintf("REVOKE CONNECT ON DATABASE %s FROM public;", sanitized))
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("revoke con: %w", err))
	}

	// language=PostgreSQL
	const killConSQL = `
SELECT pid, pg_terminate_backend(pid)
FROM pg_stat_activity
WHERE datname = $1 AND pid <> pg_backend_pid();
`
	_, err = m.db.ExecContext(ctx, killConSQL, name)
	if err != nil {
		o11y.LogError(ctx, "dbfixture: drop connections", err)
	}

	_, err = m.db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE %s", sanitized))
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("drop db: %w", err))
	}
	return result.ErrorOrNil()
}

type Fixture struct {
	DBName   string
	Host     string
	User     string
	Password secret.String
	DB       *sqlx.DB
	Pool     *db.Pool
	Cleanup  func(ctx context.Context) error
}

// Reset empties every table in the public schema and restarts their sequences.
func (f *Fixture) Reset(ctx context.Context) error {
	var tables []string
	// language=PostgreSQL
	err := f.DB.SelectContext(ctx, &tables, `
SELECT table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE' AND table_schema = 'public'`)
	if err != nil {
		return fmt.Errorf("could not get list of tables: %w", err)
	}
	for _, table := range tables {
		// nolint: gosec
		_, err = f.DB.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s RESTART IDENTITY CASCADE`,
			pgx.Identifier{table}.Sanitize()))
		if err != nil {
			return fmt.Errorf("could not truncate %s: %w", table, err)
		}
	}
	return nil
}
