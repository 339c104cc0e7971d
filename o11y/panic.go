package o11y

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rollbar/rollbar-go"
)

// RollbarReporter is implemented by providers that forward panics to rollbar.
type RollbarReporter interface {
	RollBarClient() *rollbar.Client
}

// HandlePanic records a recovered panic value on span, counts it and, when the provider
// reports to rollbar, sends it there with the request r if there is one. It returns the
// panic as an error.
func HandlePanic(ctx context.Context, span Span, recovered interface{}, r *http.Request) error {
	err := fmt.Errorf("panic handled: %+v", recovered)
	span.AddRawField("panic", recovered)
	span.AddRawField("has_panicked", "true")
	span.AddRawField("stack", string(debug.Stack()))
	span.RecordMetric(Incr("panics", "name"))

	reporter, ok := FromContext(ctx).(RollbarReporter)
	if !ok {
		return err
	}
	if r != nil {
		reporter.RollBarClient().RequestError(rollbar.CRIT, r, err)
	} else {
		reporter.RollBarClient().LogPanic(recovered, true)
	}
	return err
}
