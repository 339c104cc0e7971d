package system

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/termination"
	"github.com/circleci/todo/testing/fakemetrics"
	"github.com/circleci/todo/testing/testcontext"
)

func TestSystem_Run(t *testing.T) {
	ctx := testcontext.Background()

	// Wait until everything has been exercised before terminating
	terminationWait := &sync.WaitGroup{}
	terminationTestHook = func(ctx context.Context, delay time.Duration) error {
		terminationWait.Wait()
		return termination.ErrTerminated
	}
	t.Cleanup(func() { terminationTestHook = termination.Handle })

	sys := New(ctx)

	sys.AddMetrics(newMockMetricProducer(terminationWait))

	terminationWait.Add(1)
	sys.AddService("waiter", func(ctx context.Context) (err error) {
		_, span := o11y.StartSpan(ctx, "service")
		defer o11y.End(span, &err)
		terminationWait.Done()
		<-ctx.Done()
		return nil
	})

	sys.AddHealthCheck(mockHealthChecker{})
	assert.Check(t, cmp.Len(sys.HealthChecks(), 1))

	var cleanups []string
	sys.AddCleanup(func(ctx context.Context) error {
		cleanups = append(cleanups, "pool")
		return errors.New("pool already closed")
	})
	sys.AddCleanup(func(ctx context.Context) error {
		cleanups = append(cleanups, "store")
		return nil
	})

	err := sys.Run(0)
	assert.Check(t, cmp.ErrorIs(err, termination.ErrTerminated))

	err = sys.Cleanup(ctx)
	assert.Check(t, cmp.ErrorContains(err, "pool already closed"))
	assert.Check(t, cmp.DeepEqual(cleanups, []string{"store", "pool"}))
}

func TestSystem_CleanupNone(t *testing.T) {
	sys := New(testcontext.Background())
	assert.Check(t, sys.Cleanup(testcontext.Background()))
}

func TestSystem_RunServiceError(t *testing.T) {
	ctx := testcontext.Background()
	terminationTestHook = func(ctx context.Context, delay time.Duration) error {
		<-ctx.Done()
		return nil
	}
	t.Cleanup(func() { terminationTestHook = termination.Handle })

	boom := errors.New("boom")
	sys := New(ctx)
	sys.AddService("api server", func(ctx context.Context) error {
		return boom
	})
	err := sys.Run(0)
	assert.Check(t, cmp.ErrorIs(err, boom))
	assert.Check(t, cmp.Error(err, "api server: boom"))
}

func TestPublishGauges(t *testing.T) {
	m := &fakemetrics.Provider{}
	publishGauges(context.Background(), m, []MetricProducer{
		newMockMetricProducer(&sync.WaitGroup{}),
	})

	assert.Check(t, cmp.DeepEqual(m.Calls(), []fakemetrics.MetricCall{
		{Metric: "gauge", Name: "gauge.mock_producer.key_a", Value: 1, Rate: 1},
		{Metric: "gauge", Name: "gauge.mock_producer.key_b", Value: 2, Rate: 1},
	}, fakemetrics.CMPMetrics))
}

type mockMetricProducer struct {
	once sync.Once
	wg   *sync.WaitGroup
}

func newMockMetricProducer(wg *sync.WaitGroup) *mockMetricProducer {
	wg.Add(1)
	return &mockMetricProducer{wg: wg}
}

func (m *mockMetricProducer) MetricName() string {
	return "mock-producer"
}

func (m *mockMetricProducer) Gauges(ctx context.Context) map[string]float64 {
	m.once.Do(m.wg.Done)
	return map[string]float64{
		"key_a": 1,
		"key_b": 2,
	}
}

type mockHealthChecker struct{}

func (mockHealthChecker) HealthChecks() (name string, ready, live func(ctx context.Context) error) {
	return "name", nil, nil
}
