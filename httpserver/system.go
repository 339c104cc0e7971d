package httpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/system"
)

var errNoHandler = errors.New("no handler")

// Load listens on cfg.Addr and hands the server to sys, which serves it alongside the
// other services and samples its connection gauges. The bound address is logged so a
// ":0" listener can be found.
func Load(ctx context.Context, cfg Config, sys *system.System) (*HTTPServer, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("%q server: %w", cfg.Name, errNoHandler)
	}

	server, err := New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%q server: listen on %q: %w", cfg.Name, cfg.Addr, err)
	}

	o11y.Log(ctx, "server: listening",
		o11y.Field("server_name", cfg.Name),
		o11y.Field("address", server.Addr()),
	)

	sys.AddService(cfg.Name+" server", server.Serve)
	sys.AddMetrics(server.MetricsProducer())
	return server, nil
}
