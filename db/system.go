package db

import (
	"context"
	"fmt"

	"github.com/circleci/todo/system"
)

// Load opens the database and hands sys the pieces it runs: a readiness check and pool
// gauges named "<name>-db", and a cleanup closing the connections.
func Load(ctx context.Context, name, appName string, cfg Config, sys *system.System) (*Pool, error) {
	sqlDB, err := New(ctx, appName, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s-db: %w", name, err)
	}

	check := &HealthCheck{Name: name + "-db", DB: sqlDB}
	sys.AddHealthCheck(check)
	sys.AddMetrics(check)
	sys.AddCleanup(func(context.Context) error {
		return sqlDB.Close()
	})

	return NewPool(sqlDB), nil
}
