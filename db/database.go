package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/circleci/todo/config/secret"
	"github.com/circleci/todo/o11y"
)

// Config describes the storage endpoint.
type Config struct {
	Host string
	Port int
	User string
	Pass secret.String
	Name string
	SSL  bool

	// Optional
	MaxOpenConns int
	MaxIdleConns int
}

// New opens the pool. No connection is made until the first lease.
func New(ctx context.Context, appName string, options Config) (db *sqlx.DB, err error) {
	_, span := o11y.StartSpan(ctx, "config: connect to database")
	defer o11y.End(span, &err)

	host := fmt.Sprintf("%s:%d", options.Host, options.Port)

	span.AddField("host", host)
	span.AddField("dbname", options.Name)
	span.AddField("username", options.User)

	db, err = sqlx.Open("pgx", URI(appName, options))
	if err != nil {
		return nil, err
	}

	if options.MaxOpenConns == 0 {
		options.MaxOpenConns = 100
	}
	if options.MaxIdleConns == 0 {
		options.MaxIdleConns = options.MaxOpenConns / 2
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetMaxOpenConns(options.MaxOpenConns)
	db.SetMaxIdleConns(options.MaxIdleConns)
	return db, nil
}

// URI renders options as a postgres connection URI.
func URI(appName string, options Config) string {
	params := url.Values{}
	params.Set("connect_timeout", "5")
	if appName != "" {
		params.Set("application_name", appName)
	}
	if options.SSL {
		params.Set("sslmode", "require")
	} else {
		params.Set("sslmode", "disable")
	}
	uri := url.URL{
		Scheme:   "postgres",
		User:     options.Pass.UserPassword(options.User),
		Host:     fmt.Sprintf("%s:%d", options.Host, options.Port),
		Path:     options.Name,
		RawQuery: params.Encode(),
	}
	return uri.String()
}
