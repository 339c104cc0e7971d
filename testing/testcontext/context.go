// Package testcontext provides a context for tests with a working o11y provider, so test
// output includes the spans.
package testcontext

import (
	"context"

	"github.com/circleci/todo/config/o11y"
)

// ctx is built once at package init, so every test shares the same global tracer provider.
var ctx = newContext()

// Background returns a context for use in tests which contains a working o11y, so you get logs.
func Background() context.Context {
	return ctx
}

func newContext() context.Context {
	cx, _, err := o11y.Otel(context.Background(), o11y.Config{
		Service: "test-service",
		Test:    true,
	})
	if err != nil {
		panic(err)
	}
	return cx
}
