// Package o11y builds the o11y.Provider for a service from its configuration.
package o11y

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/cenkalti/backoff/v4"
	"github.com/rollbar/rollbar-go"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"

	"github.com/circleci/todo/config/secret"
	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/o11y/otel"
)

// Config contains everything needed to configure otel based instrumentation.
type Config struct {
	GrpcHostAndPort string
	Dataset         string
	// DisableText prevents output to stdout. Ignored if no collector is configured.
	DisableText bool
	// Writer overrides stdout for text output
	Writer io.Writer

	Test bool

	Statsd                  string
	StatsNamespace          string
	StatsdTelemetryDisabled bool
	// StatsdConnectAttempts bounds the startup connection attempts, zero means 30
	StatsdConnectAttempts uint64

	RollbarToken      secret.String
	RollbarEnv        string
	RollbarServerRoot string
	RollbarDisabled   bool

	Version string
	Service string
	Mode    string
}

// Otel is the primary entrypoint to initialize the o11y system.
func Otel(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	hostname, _ := os.Hostname()
	globals := o11y.Globals{Service: o.Service, Version: o.Version, Mode: o.Mode}

	mProv, err := metricsProvider(ctx, o, append(globals.Tags(), "hostname:"+hostname))
	if err != nil {
		return ctx, nil, fmt.Errorf("metrics provider failed: %w", err)
	}

	p, err := otel.New(otel.Config{
		GrpcHostAndPort: o.GrpcHostAndPort,
		Dataset:         o.Dataset,
		ResourceAttributes: []attribute.KeyValue{
			semconv.ServiceNameKey.String(o.Service),
			semconv.ServiceVersionKey.String(o.Version),
			attribute.String("service.mode", o.Mode),
		},
		Writer:      o.Writer,
		DisableText: o.DisableText,
		Test:        o.Test,
		Metrics:     mProv,
	})
	if err != nil {
		return ctx, nil, err
	}

	globals.Apply(p)

	var provider o11y.Provider = p
	if !o.RollbarToken.Empty() {
		client := rollbar.NewAsync(o.RollbarToken.Raw(), o.RollbarEnv, o.Version, hostname, o.RollbarServerRoot)
		client.SetEnabled(!o.RollbarDisabled)
		client.Message(rollbar.INFO, "Deployment")
		provider = rollbarProvider{
			Provider:      p,
			rollBarClient: client,
		}
	}

	return o11y.WithProvider(ctx, provider), provider.Close, nil
}

// metricsProvider connects to statsd, retrying while the agent sidecar may still be starting.
func metricsProvider(ctx context.Context, o Config, tags []string) (o11y.ClosableMetricsProvider, error) {
	if o.Statsd == "" {
		return &statsd.NoOpClient{}, nil
	}

	statsdOpts := []statsd.Option{
		statsd.WithNamespace(o.StatsNamespace),
		statsd.WithTags(tags),
	}
	if o.StatsdTelemetryDisabled {
		statsdOpts = append(statsdOpts, statsd.WithoutTelemetry())
	}

	attempts := o.StatsdConnectAttempts
	if attempts == 0 {
		attempts = 30
	}

	var stats *statsd.Client
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), attempts-1)
	err := backoff.Retry(func() (err error) {
		stats, err = statsd.New(o.Statsd, statsdOpts...)
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}
	return stats, nil
}

type rollbarProvider struct {
	o11y.Provider
	rollBarClient *rollbar.Client
}

func (p rollbarProvider) Close(ctx context.Context) {
	p.Provider.Close(ctx)
	_ = p.rollBarClient.Close()
}

func (p rollbarProvider) RollBarClient() *rollbar.Client {
	return p.rollBarClient
}
