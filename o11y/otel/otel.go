// Package otel contains an o11y.Provider that records spans with open telemetry. Spans are always
// written to the text exporter, and additionally sent over OTLP gRPC when a collector is configured.
package otel

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/o11y/otel/texttrace"
)

type Config struct {
	Dataset            string
	GrpcHostAndPort    string
	ResourceAttributes []attribute.KeyValue

	// Writer receives the text formatted spans, it defaults to stdout
	Writer io.Writer
	// DisableText prevents the text output. Ignored if no collector is configured.
	DisableText bool
	// Test exports spans synchronously and without colour
	Test bool

	Metrics o11y.ClosableMetricsProvider
}

type Provider struct {
	metricsProvider o11y.ClosableMetricsProvider
	tracer          trace.Tracer
	tp              *sdktrace.TracerProvider
	globals         *annotator
}

var _ o11y.Provider = (*Provider)(nil)

func New(conf Config) (*Provider, error) {
	w := conf.Writer
	if w == nil {
		w = os.Stdout
	}
	text := texttrace.New(w, texttrace.WithColour(!conf.Test))

	exporters := []sdktrace.SpanExporter{text}
	if conf.GrpcHostAndPort != "" {
		grpc, err := newGRPC(context.Background(), conf.GrpcHostAndPort, conf.Dataset)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter failed: %w", err)
		}
		exporters = append(exporters, grpc)
		if conf.DisableText {
			exporters = exporters[1:]
		}
	}

	globals := &annotator{}
	tp := traceProvider(multipleExporter(exporters), globals, conf)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.Baggage{}, propagation.TraceContext{}))

	return &Provider{
		metricsProvider: conf.Metrics,
		tp:              tp,
		tracer:          tp.Tracer("github.com/circleci/todo"),
		globals:         globals,
	}, nil
}

func traceProvider(exporter sdktrace.SpanExporter, globals *annotator, conf Config) *sdktrace.TracerProvider {
	ra := append([]attribute.KeyValue{
		attribute.String("x-honeycomb-dataset", conf.Dataset),
	}, conf.ResourceAttributes...)

	var exportOpt sdktrace.TracerProviderOption
	if conf.Test {
		exportOpt = sdktrace.WithSyncer(exporter)
	} else {
		exportOpt = sdktrace.WithBatcher(exporter)
	}

	return sdktrace.NewTracerProvider(
		// globals must run before the exporting processor, so it sees the fields
		sdktrace.WithSpanProcessor(globals),
		exportOpt,
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, ra...)),
	)
}

func newGRPC(ctx context.Context, endpoint, dataset string) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithHeaders(map[string]string{"x-honeycomb-dataset": dataset}),
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

type spanCtxKey struct{}

func (o *Provider) AddGlobalField(key string, val interface{}) {
	mustValidateKey(key)
	o.globals.addField(key, val)
}

func (o *Provider) StartSpan(ctx context.Context, name string, opts ...o11y.SpanOpt) (context.Context, o11y.Span) {
	cfg := o11y.ApplySpanOpts(opts...)
	ctx, sp := o.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKind(cfg.Kind)))

	s := o.wrapSpan(sp)
	return context.WithValue(ctx, spanCtxKey{}, s), s
}

// GetSpan returns the active span in the given context. It will return nil if there is no span available.
func (o *Provider) GetSpan(ctx context.Context) o11y.Span {
	if s, ok := ctx.Value(spanCtxKey{}).(*span); ok {
		return s
	}
	return nil
}

func (o *Provider) AddField(ctx context.Context, key string, val interface{}) {
	if s, ok := o.GetSpan(ctx).(*span); ok {
		s.AddField(key, val)
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(attr("app."+key, val))
}

// Log emits a zero duration span carrying the fields.
func (o *Provider) Log(ctx context.Context, name string, fields ...o11y.Pair) {
	_, s := o.StartSpan(ctx, name)
	for _, f := range fields {
		s.AddField(f.Key, f.Value)
	}
	s.End()
}

func (o *Provider) Close(ctx context.Context) {
	_ = o.tp.Shutdown(ctx)
	if o.metricsProvider != nil {
		_ = o.metricsProvider.Close()
	}
}

func (o *Provider) MetricsProvider() o11y.MetricsProvider {
	if o.metricsProvider == nil {
		return &statsd.NoOpClient{}
	}
	return o.metricsProvider
}

func (o *Provider) wrapSpan(s trace.Span) *span {
	return &span{
		metricsProvider: o.metricsProvider,
		span:            s,
		start:           time.Now(),
		fields:          map[string]interface{}{},
	}
}

type span struct {
	span            trace.Span
	metrics         []o11y.Metric
	metricsProvider o11y.ClosableMetricsProvider
	start           time.Time
	fields          map[string]interface{}
}

func (s *span) AddField(key string, val interface{}) {
	s.AddRawField("app."+key, val)
}

func (s *span) AddRawField(key string, val interface{}) {
	mustValidateKey(key)
	s.fields[key] = val
	if err, ok := val.(error); ok {
		val = err.Error()
	}
	if key == "name" {
		if v, ok := val.(string); ok {
			s.span.SetName(v)
		}
	}
	s.span.SetAttributes(attr(key, val))
}

// RecordMetric will only emit a metric if End is called
func (s *span) RecordMetric(metric o11y.Metric) {
	s.metrics = append(s.metrics, metric)
}

func (s *span) End() {
	s.sendMetrics()
	s.span.End()
}

func (s *span) sendMetrics() {
	if s.metricsProvider == nil || len(s.metrics) == 0 {
		return
	}
	s.fields["duration_ms"] = time.Since(s.start) / time.Millisecond
	sendMetrics(s.metricsProvider, s.metrics, s.fields)
}

func mustValidateKey(key string) {
	if strings.Contains(key, "-") {
		panic(fmt.Errorf("key %q cannot contain '-'", key))
	}
}

type multipleExporter []sdktrace.SpanExporter

func (m multipleExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, e := range m {
		if err := e.ExportSpans(ctx, spans); err != nil {
			return err
		}
	}
	return nil
}

func (m multipleExporter) Shutdown(ctx context.Context) error {
	for _, e := range m {
		if err := e.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
