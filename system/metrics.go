package system

import (
	"context"
	"strings"
	"time"

	"github.com/circleci/todo/o11y"
)

// MetricProducer reports a group of gauges, such as the connection counts of a listener
// or the pool stats of a database.
type MetricProducer interface {
	// MetricName prefixes every gauge of the group. Dashes become underscores.
	MetricName() string
	Gauges(context.Context) map[string]float64
}

var metricsInterval = 10 * time.Second

// gaugeName scopes a gauge by its producer, e.g. "gauge.api_listener.active_connections".
func gaugeName(producer, gauge string) string {
	return "gauge." + strings.ReplaceAll(producer, "-", "_") + "." + gauge
}

func publishGauges(ctx context.Context, m o11y.MetricsProvider, producers []MetricProducer) {
	for _, p := range producers {
		name := p.MetricName()
		for g, v := range p.Gauges(ctx) {
			_ = m.Gauge(gaugeName(name, g), v, nil, 1)
		}
	}
}

// metricsReporter returns a func for errgroup.Go that publishes the producers' gauges
// straight away and then every interval, until ctx is done.
func metricsReporter(ctx context.Context, interval time.Duration, producers []MetricProducer) func() error {
	m := o11y.FromContext(ctx).MetricsProvider()
	return func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			publishGauges(ctx, m, producers)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
}
