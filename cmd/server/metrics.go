package main

import (
	"context"
	"time"

	"github.com/nadmax/tempo/internal/metrics"
	"github.com/nadmax/tempo/internal/registry"
)

const metricsInterval = 10 * time.Second

func startMetricsCollector(ctx context.Context, reg *registry.Registry) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	updateTimerMetrics(reg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateTimerMetrics(reg)
		}
	}
}

func updateTimerMetrics(reg *registry.Registry) {
	metrics.UpdateTimerGauges(reg.List())
	metrics.UpdateActiveDrivers(reg.ActiveDrivers())
	metrics.UpdateHistoryEntries(reg.History().Len())
}
