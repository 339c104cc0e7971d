// Package o11ygin traces and times the requests a gin router serves.
package o11ygin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/circleci/todo/o11y"
)

const (
	cancelledKey = "o11y-client-cancelled"

	// statusClientClosed is nginx's code for a client that went away mid request.
	statusClientClosed = 499
)

// Middleware starts a server span for each request and emits a "handler" timing once
// the response is written. Only the query params named in queryParams are recorded.
func Middleware(provider o11y.Provider, serverName string, queryParams map[string]struct{}) gin.HandlerFunc {
	m := provider.MetricsProvider()
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request
		route := c.FullPath()

		ctx := o11y.WithProvider(req.Context(), provider)
		ctx, span := provider.StartSpan(ctx, req.Method+" "+route, o11y.WithSpanKind(o11y.SpanKindServer))
		defer span.End()
		c.Request = req.WithContext(ctx)

		if route == "" {
			c.Header("X-Route", "not-found")
		} else {
			c.Header("X-Route", route)
		}
		addRequestFields(span, c, serverName, queryParams)

		defer func() {
			status := c.Writer.Status()
			if c.GetBool(cancelledKey) {
				status = statusClientClosed
			}
			span.AddRawField("http.status_code", status)
			span.AddRawField("http.response_content_length", c.Writer.Size())
			if status >= http.StatusInternalServerError {
				span.AddRawField("result", "error")
			}
			if m == nil {
				return
			}
			_ = m.TimeInMilliseconds("handler",
				float64(time.Since(start))/float64(time.Millisecond),
				[]string{
					"http.server_name:" + serverName,
					"http.method:" + req.Method,
					"http.route:" + route,
					"http.status_code:" + strconv.Itoa(status),
				},
				1,
			)
		}()
		c.Next()
	}
}

func addRequestFields(span o11y.Span, c *gin.Context, serverName string, queryParams map[string]struct{}) {
	req := c.Request
	for _, p := range c.Params {
		span.AddRawField("handler.vars."+p.Key, p.Value)
	}
	for key, values := range req.URL.Query() {
		if _, ok := queryParams[key]; !ok {
			continue
		}
		var v interface{} = values
		if len(values) == 1 {
			v = values[0]
		}
		span.AddRawField("handler.query."+key, v)
	}

	for k, v := range map[string]interface{}{
		"meta.type":                   "http_server",
		"http.server_name":            serverName,
		"http.route":                  c.FullPath(),
		"http.client_ip":              c.ClientIP(),
		"http.method":                 req.Method,
		"http.url":                    req.URL.String(),
		"http.target":                 req.URL.Path,
		"http.host":                   req.Host,
		"http.user_agent":             req.UserAgent(),
		"http.request_content_length": req.ContentLength,
	} {
		span.AddRawField(k, v)
	}
}

// ClientCancelled is a gin middleware that will trap a request context cancellation
// and report a 499 (a.la. nginx).
// If the response has already been written to, for example setting a status code, then
// that code will be honoured.
func ClientCancelled() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		defer func() {
			if errors.Is(ctx.Err(), context.Canceled) {
				c.Set(cancelledKey, true)
				return
			}
			if len(c.Errors) > 0 {
				o11y.AddField(ctx, "gin_internal_error", c.Errors.String())
			}
		}()
		c.Next()
	}
}

// Recovery turns handler panics into a 500, recording the panic on the request span.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err interface{}) {
		c.AbortWithStatus(http.StatusInternalServerError)
		ctx := c.Request.Context()
		span := o11y.FromContext(ctx).GetSpan(ctx)
		if span == nil {
			return
		}

		// Most likely caused by one side of the proxy disappearing. Not really a panic
		// https://github.com/golang/go/issues/28239
		if origErr, ok := err.(error); ok && errors.Is(origErr, http.ErrAbortHandler) {
			o11y.AddResultToSpan(span, origErr)
			return
		}

		_ = o11y.HandlePanic(ctx, span, err, c.Request)
	})
}
