// Package ginrouter builds the gin engines the todo servers share.
package ginrouter

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/o11y/wrappers/o11ygin"
)

var releaseMode sync.Once

// Options configures an engine. QueryParams lists the query parameters copied onto the
// request span; any others are left off.
type Options struct {
	Server      string
	QueryParams []string
}

// Default returns an engine that traces, recovers from panics and reports client
// cancellation. Unknown routes and methods answer with the same JSON error body the
// handlers use.
func Default(ctx context.Context, opts Options) *gin.Engine {
	releaseMode.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	params := make(map[string]struct{}, len(opts.QueryParams))
	for _, p := range opts.QueryParams {
		params[p] = struct{}{}
	}

	r := gin.New()
	r.UseRawPath = true
	r.HandleMethodNotAllowed = true
	r.Use(
		o11ygin.Middleware(o11y.FromContext(ctx), opts.Server, params),
		o11ygin.Recovery(),
		o11ygin.ClientCancelled(),
	)
	r.NoRoute(abort(http.StatusNotFound, "not_found"))
	r.NoMethod(abort(http.StatusMethodNotAllowed, "method_not_allowed"))

	return r
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func abort(status int, kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.AbortWithStatusJSON(status, ErrorBody{
			Kind:    kind,
			Message: c.Request.Method + " " + c.Request.URL.Path + ": " + http.StatusText(status),
		})
	}
}
