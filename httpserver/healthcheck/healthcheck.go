package healthcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hellofresh/health-go/v4"

	"github.com/circleci/todo/httpserver/ginrouter"
	"github.com/circleci/todo/system"
)

const checkTimeout = 5 * time.Second

type API struct {
	router *gin.Engine
}

func New(ctx context.Context, checked []system.HealthChecker) (*API, error) {
	r := ginrouter.Default(ctx, ginrouter.Options{Server: "admin"})

	live, ready, err := newHealthHandlers(checked)
	if err != nil {
		return nil, fmt.Errorf("failed to create health checks: %w", err)
	}

	r.GET("/live", gin.WrapH(live.Handler()))
	r.GET("/ready", gin.WrapH(ready.Handler()))
	r.GET("/debug/pprof/*profile", func(c *gin.Context) {
		switch c.Param("profile") {
		case "/cmdline":
			pprof.Cmdline(c.Writer, c.Request)
		case "/profile":
			pprof.Profile(c.Writer, c.Request)
		case "/symbol":
			pprof.Symbol(c.Writer, c.Request)
		case "/trace":
			pprof.Trace(c.Writer, c.Request)
		default:
			pprof.Index(c.Writer, c.Request)
		}
	})

	return &API{router: r}, nil
}

func (a *API) Handler() http.Handler {
	return a.router
}

func newHealthHandlers(checked []system.HealthChecker) (live, ready *health.Health, err error) {
	live, err = health.New()
	if err != nil {
		return nil, nil, err
	}
	ready, err = health.New()
	if err != nil {
		return nil, nil, err
	}

	for _, c := range checked {
		name, readyCheck, liveCheck := c.HealthChecks()
		if err = register(ready, name, readyCheck); err != nil {
			return nil, nil, err
		}
		if err = register(live, name, liveCheck); err != nil {
			return nil, nil, err
		}
	}
	return live, ready, nil
}

func register(h *health.Health, name string, check func(ctx context.Context) error) error {
	if check == nil {
		return nil
	}
	return h.Register(health.Config{
		Name:    name,
		Timeout: checkTimeout,
		Check:   check,
	})
}
