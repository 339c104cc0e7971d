package o11y

import (
	"context"
	"errors"
)

// End records the outcome held in *err on span and ends it. Taking a pointer lets it be
// deferred straight after StartSpan and still see the error finally returned through a
// named result:
//
//	func (s *Store) List(ctx context.Context) (todos []Todo, err error) {
//		ctx, span := o11y.StartSpan(ctx, "todos: list")
//		defer o11y.End(span, &err)
func End(span Span, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	AddResultToSpan(span, e)
	span.End()
}

// AddResultToSpan sets "result" and one of "error" or "warning" from err.
//
// Warnings and context cancellation are not failures of the span: a warning still counts
// as a success, a cancellation is "canceled".
func AddResultToSpan(span Span, err error) {
	switch {
	case err == nil:
		span.AddRawField("result", "success")
	case IsWarning(err):
		span.AddRawField("result", "success")
		span.AddRawField("warning", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		span.AddRawField("result", "canceled")
		span.AddRawField("warning", err.Error())
	default:
		span.AddRawField("result", "error")
		span.AddRawField("error", err.Error())
	}
}
