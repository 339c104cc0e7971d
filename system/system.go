package system

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/termination"
)

// HealthChecker is implemented by anything that can report its readiness or liveness.
// Either func may be nil.
type HealthChecker interface {
	HealthChecks() (name string, ready, live func(ctx context.Context) error)
}

// Service is a long running part of the process. Serve blocks until ctx is done or the
// service fails.
type Service struct {
	Name  string
	Serve func(ctx context.Context) error
}

type System struct {
	group     *errgroup.Group
	ctx       context.Context
	services  []Service
	checks    []HealthChecker
	producers []MetricProducer
	cleanups  []func(ctx context.Context) error
}

func New(ctx context.Context) *System {
	group, ctx := errgroup.WithContext(ctx)
	return &System{
		group: group,
		ctx:   ctx,
	}
}

var terminationTestHook = termination.Handle

// Run starts every service and blocks until one of them returns, or until the process
// is terminated. The termination is delayed by delay.
func (r *System) Run(delay time.Duration) (err error) {
	ctx, span := o11y.StartSpan(r.ctx, "system: run")
	defer o11y.End(span, &err)
	span.AddField("services", len(r.services))
	span.RecordMetric(o11y.Timing("system.run", "result"))

	r.group.Go(func() error {
		return terminationTestHook(ctx, delay)
	})

	for _, s := range r.services {
		s := s
		r.group.Go(func() error {
			return serve(ctx, s)
		})
	}

	if len(r.producers) > 0 {
		r.group.Go(metricsReporter(ctx, metricsInterval, r.producers))
	}

	return r.group.Wait()
}

func serve(ctx context.Context, s Service) (err error) {
	ctx, span := o11y.StartSpan(ctx, "system: service "+s.Name)
	defer o11y.End(span, &err)

	err = s.Serve(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	return nil
}

func (r *System) AddService(name string, serve func(ctx context.Context) error) {
	r.services = append(r.services, Service{Name: name, Serve: serve})
}

func (r *System) AddHealthCheck(h HealthChecker) {
	r.checks = append(r.checks, h)
}

func (r *System) AddMetrics(m MetricProducer) {
	r.producers = append(r.producers, m)
}

func (r *System) AddCleanup(c func(ctx context.Context) error) {
	r.cleanups = append(r.cleanups, c)
}

func (r *System) HealthChecks() []HealthChecker {
	return r.checks
}

// Cleanup runs every cleanup, newest first, and returns their combined failures. The
// failures are logged too, since Cleanup is usually deferred.
func (r *System) Cleanup(ctx context.Context) error {
	var result *multierror.Error
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](ctx); err != nil {
			o11y.LogError(ctx, "system: cleanup", err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
