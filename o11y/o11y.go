// Package o11y is the tracing and metrics API of the todo service.
//
// Code starts a span per unit of work and ends it with the error it returns:
//
//	ctx, span := o11y.StartSpan(ctx, "todos: list")
//	defer o11y.End(span, &err)
//
// The Provider doing the work travels in the context, see WithProvider. Without one every
// call is a no-op, so packages can be tested without any setup.
package o11y

import (
	"context"
)

type Provider interface {
	// AddGlobalField sets a field on every span started after the call, see Globals.
	AddGlobalField(key string, val interface{})

	// StartSpan begins a span named for the work, such as "todos: create" or "GET /api/todos".
	// The caller must End it.
	StartSpan(ctx context.Context, name string, opts ...SpanOpt) (context.Context, Span)

	// GetSpan returns the span active in ctx, or nil.
	GetSpan(ctx context.Context) Span

	// AddField sets an "app." prefixed field on the span active in ctx.
	AddField(ctx context.Context, key string, val interface{})

	// Log records a zero duration span.
	Log(ctx context.Context, name string, fields ...Pair)

	// Close flushes whatever has not been exported.
	Close(ctx context.Context)

	// MetricsProvider sends metrics directly, for values that do not belong to a span such as
	// the pool gauges.
	MetricsProvider() MetricsProvider
}

type Span interface {
	// AddField sets an "app." prefixed field, for application data.
	AddField(key string, val interface{})

	// AddRawField sets a field as named, for plumbing such as db.entity or http.status_code.
	AddRawField(key string, val interface{})

	// RecordMetric asks for metric to be emitted from the span fields when the span ends.
	RecordMetric(metric Metric)

	// End completes the span. It must not be used afterwards.
	End()
}

// Globals are the fields identifying this process. They go on every span and, as tags, on
// every metric.
type Globals struct {
	Service string
	Version string
	// Mode is the command being run, eg. "serve". It is left off when empty.
	Mode string
}

// Apply adds the globals to p.
func (g Globals) Apply(p Provider) {
	for _, f := range g.pairs() {
		p.AddGlobalField(f.Key, f.Value)
	}
}

// Tags renders the globals as statsd tags.
func (g Globals) Tags() []string {
	pairs := g.pairs()
	tags := make([]string, 0, len(pairs))
	for _, f := range pairs {
		tags = append(tags, f.Key+":"+f.Value.(string))
	}
	return tags
}

func (g Globals) pairs() []Pair {
	pairs := []Pair{
		Field("service", g.Service),
		Field("version", g.Version),
	}
	if g.Mode != "" {
		pairs = append(pairs, Field("mode", g.Mode))
	}
	return pairs
}

type providerKey struct{}

// WithProvider returns a child of ctx carrying p.
func WithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// FromContext returns the provider in ctx, or a no-op provider.
func FromContext(ctx context.Context) Provider {
	if p, ok := ctx.Value(providerKey{}).(Provider); ok {
		return p
	}
	return defaultProvider
}

func StartSpan(ctx context.Context, name string, opts ...SpanOpt) (context.Context, Span) {
	return FromContext(ctx).StartSpan(ctx, name, opts...)
}

func AddField(ctx context.Context, key string, val interface{}) {
	FromContext(ctx).AddField(ctx, key, val)
}

func Log(ctx context.Context, name string, fields ...Pair) {
	FromContext(ctx).Log(ctx, name, fields...)
}

// LogError records a zero duration span carrying err.
func LogError(ctx context.Context, name string, err error, fields ...Pair) {
	_, span := StartSpan(ctx, name)
	for _, f := range fields {
		span.AddField(f.Key, f.Value)
	}
	End(span, &err)
}

// Pair is a named value for Log and Globals.
type Pair struct {
	Key   string
	Value interface{}
}

func Field(key string, value interface{}) Pair {
	return Pair{Key: key, Value: value}
}
