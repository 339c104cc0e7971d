package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/system"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second
	// ioTimeout stays under the 60s idle timeout of the load balancers in front.
	ioTimeout = 55 * time.Second
)

type HTTPServer struct {
	name            string
	listener        *trackedListener
	server          *http.Server
	shutdownTimeout time.Duration
}

type Config struct {
	// Name identifies the server in spans and gauges, e.g. "api" or "admin".
	Name    string
	// Addr is the address to listen on. Port 0 picks a free port.
	Addr    string
	Handler http.Handler

	// Network is "tcp" (the default), "tcp4", "tcp6", "unix" or "unixpacket".
	Network string
	// ShutdownTimeout bounds how long in flight requests get once Serve is cancelled.
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Network == "" {
		c.Network = "tcp"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return c
}

// New listens on cfg.Addr straight away, so the address is taken before New returns.
// Nothing is served until Serve is called.
func New(ctx context.Context, cfg Config) (s *HTTPServer, err error) {
	_, span := o11y.StartSpan(ctx, "server: new-server "+cfg.Name)
	defer o11y.End(span, &err)

	cfg = cfg.withDefaults()
	span.AddField("server_name", cfg.Name)
	span.AddField("network", cfg.Network)

	ln, err := net.Listen(cfg.Network, cfg.Addr)
	if err != nil {
		return nil, err
	}
	span.AddField("address", ln.Addr().String())

	return &HTTPServer{
		name:            cfg.Name,
		listener:        &trackedListener{Listener: ln, name: cfg.Name},
		shutdownTimeout: cfg.ShutdownTimeout,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           cfg.Handler,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       ioTimeout,
			WriteTimeout:      ioTimeout,
		},
	}, nil
}

// Serve blocks until ctx is cancelled, then shuts the server down, giving in flight
// requests up to the shutdown timeout to finish.
func (s *HTTPServer) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.server.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		o11y.Log(ctx, "server: shutdown",
			o11y.Field("server_name", s.name),
			o11y.Field("active_connections", s.listener.Gauges(ctx)["active_connections"]),
		)

		sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(sctx); err != nil {
			return fmt.Errorf("%s server shutdown: %w", s.name, err)
		}
		return nil
	})

	return g.Wait()
}

func (s *HTTPServer) MetricsProducer() system.MetricProducer {
	return s.listener
}

// Addr is the address actually listened on, which differs from Config.Addr for port 0.
func (s *HTTPServer) Addr() string {
	return s.listener.Addr().String()
}
