package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// HealthCheck reports a database as ready once it answers a query, and publishes the
// pool stats as gauges. It has no liveness check, a database outage should not get the
// service restarted.
type HealthCheck struct {
	Name string
	DB   *sqlx.DB
}

func (h *HealthCheck) HealthChecks() (name string, ready, live func(ctx context.Context) error) {
	return h.Name, h.ready, nil
}

func (h *HealthCheck) ready(ctx context.Context) error {
	if err := h.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: ping: %w", h.Name, MapError(err))
	}
	var one int
	if err := h.DB.GetContext(ctx, &one, `SELECT 1`); err != nil {
		return fmt.Errorf("%s: select: %w", h.Name, MapError(err))
	}
	return nil
}

func (h *HealthCheck) MetricName() string {
	return h.Name
}

func (h *HealthCheck) Gauges(context.Context) map[string]float64 {
	s := h.DB.Stats()
	return map[string]float64{
		"max_open":            float64(s.MaxOpenConnections),
		"open":                float64(s.OpenConnections),
		"in_use":              float64(s.InUse),
		"idle":                float64(s.Idle),
		"wait_count":          float64(s.WaitCount),
		"wait_duration":       float64(s.WaitDuration / time.Millisecond),
		"max_idle_closed":     float64(s.MaxIdleClosed),
		"max_lifetime_closed": float64(s.MaxLifetimeClosed),
	}
}
