package otel

import (
	"fmt"
	"time"

	"github.com/circleci/todo/o11y"
)

// sendMetrics publishes each metric a span recorded, reading its value and tags from the
// span fields. A metric whose value field is missing is skipped; one of the wrong type
// is a programming error and panics.
func sendMetrics(mp o11y.MetricsProvider, metrics []o11y.Metric, fields map[string]any) {
	f := spanFields(fields)
	for _, m := range metrics {
		tags := f.tags(m.TagFields)
		switch m.Type {
		case o11y.MetricTimer:
			if ms, ok := f.number(m, toMilliseconds); ok {
				_ = mp.TimeInMilliseconds(m.Name, ms, tags, 1)
			}
		case o11y.MetricGauge:
			if v, ok := f.number(m, toFloat64); ok {
				_ = mp.Gauge(m.Name, v, tags, 1)
			}
		case o11y.MetricCount:
			n := int64(1)
			if m.Field != "" {
				v, ok := f.number(m, func(v any) (float64, bool) {
					i, ok := toInt64(v)
					return float64(i), ok
				})
				if !ok {
					continue
				}
				n = int64(v)
			}
			_ = mp.Count(m.Name, n, tags, 1)
		}
	}
}

type spanFields map[string]any

// get also looks up the app. prefixed name so AddField values can be used.
func (f spanFields) get(name string) (any, bool) {
	if v, ok := f[name]; ok {
		return v, true
	}
	v, ok := f["app."+name]
	return v, ok
}

func (f spanFields) tags(names []string) []string {
	tags := make([]string, 0, len(names))
	for _, name := range names {
		if v, ok := f.get(name); ok {
			tags = append(tags, fmt.Sprintf("%s:%v", name, v))
		}
	}
	return tags
}

func (f spanFields) number(m o11y.Metric, coerce func(any) (float64, bool)) (float64, bool) {
	v, ok := f.get(m.Field)
	if !ok {
		return 0, false
	}
	n, ok := coerce(v)
	if !ok {
		panic(fmt.Sprintf("metric %s: field %s is a %T, not a number", m.Name, m.Field, v))
	}
	return n, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	i, ok := toInt64(v)
	return float64(i), ok
}

// toMilliseconds accepts duration_ms, a Duration holding a count of milliseconds.
func toMilliseconds(v any) (float64, bool) {
	if d, ok := v.(time.Duration); ok {
		return float64(d), true
	}
	return toFloat64(v)
}
