package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// Component health values.
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// ComponentHealth is one entry of HealthReport.Services.
type ComponentHealth struct {
	Status string `json:"status"`
}

// HealthReport is the JSON body for GET /health.
type HealthReport struct {
	Status   string                     `json:"status"`
	Services map[string]ComponentHealth `json:"services"`
}

// HealthService probes dependencies concurrently. A down dependency degrades
// the report; it never fails the endpoint.
type HealthService struct {
	Probes  map[string]Probe
	Timeout time.Duration
}

// Check runs every probe with a shared timeout.
func (h *HealthService) Check(ctx context.Context) HealthReport {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	report := HealthReport{Status: StatusHealthy, Services: make(map[string]ComponentHealth, len(h.Probes))}

	var g errgroup.Group
	for name, probe := range h.Probes {
		g.Go(func() error {
			status := StatusUp
			if err := probe(ctx); err != nil {
				status = StatusDown
				zerolog.Ctx(ctx).Warn().Err(err).Str("service", name).Msg("health probe failed")
			}
			mu.Lock()
			defer mu.Unlock()
			report.Services[name] = ComponentHealth{Status: status}
			if status == StatusDown {
				report.Status = StatusDegraded
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}
