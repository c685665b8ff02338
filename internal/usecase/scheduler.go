package usecase

import (
	"context"
	"log/slog"
	"time"

	"StockAgent/internal/ports"
)

// CycleRunner registers the polling pipeline with a recurring scheduler.
type CycleRunner struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewCycleRunner returns a helper to start/stop recurring cycles.
func NewCycleRunner(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *CycleRunner {
	return &CycleRunner{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline cycle as the scheduled job. A failed
// cycle (registry unreachable) is logged; the next tick tries again.
func (c *CycleRunner) Start(ctx context.Context) error {
	if c.driver == nil || c.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if err := c.pipeline.RunCycle(ctx); err != nil && c.logger != nil {
			c.logger.Error("cycle aborted", "trigger", trigger.Format(time.RFC3339), "error", err)
		}
	}

	return c.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (c *CycleRunner) Stop(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}
	return c.driver.Stop(ctx)
}
