package healthcheck

import (
	"context"
	"fmt"

	"github.com/circleci/todo/httpserver"
	"github.com/circleci/todo/system"
)

// Load starts the admin API on addr. It should be loaded last so it sees every health check.
func Load(ctx context.Context, addr string, sys *system.System) (*httpserver.HTTPServer, error) {
	api, err := New(ctx, sys.HealthChecks())
	if err != nil {
		return nil, fmt.Errorf("error creating health check API: %w", err)
	}

	return httpserver.Load(ctx, httpserver.Config{
		Name:    "admin",
		Addr:    addr,
		Handler: api.Handler(),
	}, sys)
}
