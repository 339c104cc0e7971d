package db

import (
	"context"

	"github.com/circleci/todo/o11y"
)

// Entity is the table a group of queries works on, eg. "todo". Its spans are named
// "db: <entity>.<query>" and feed the db.query timing, tagged by entity, query and result.
type Entity string

var queryTiming = o11y.Timing("db.query", "db.entity", "db.query_name", "result")

// Span starts the span for one query. Field names follow the otel database conventions.
func (e Entity) Span(ctx context.Context, queryName string) (context.Context, o11y.Span) {
	ctx, span := o11y.StartSpan(ctx, "db: "+string(e)+"."+queryName, o11y.WithSpanKind(o11y.SpanKindClient))
	span.RecordMetric(queryTiming)
	span.AddRawField("db.system", "postgresql")
	span.AddRawField("db.entity", string(e))
	span.AddRawField("db.query_name", queryName)
	return ctx, span
}

// AddRows records how many rows a query returned or touched.
func AddRows(span o11y.Span, n int) {
	span.AddRawField("db.rows", n)
}
