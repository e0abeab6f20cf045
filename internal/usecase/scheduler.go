package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
)

// Cleaner prunes cached articles older than maxAgeDays.
type Cleaner interface {
	Cleanup(maxAgeDays int) (int, error)
}

// Janitor wires the ticker driver with the article cache cleanup.
type Janitor struct {
	driver     ports.Scheduler
	cleaner    Cleaner
	maxAgeDays int
	logger     *slog.Logger
}

// NewJanitor returns a helper to start/stop recurring cache cleanups.
func NewJanitor(driver ports.Scheduler, cleaner Cleaner, maxAgeDays int, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		driver:     driver,
		cleaner:    cleaner,
		maxAgeDays: maxAgeDays,
		logger:     logger.With("component", "usecase.janitor"),
	}
}

// RunOnce prunes the cache immediately.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	removed, err := j.cleaner.Cleanup(j.maxAgeDays)
	if err != nil {
		j.logger.ErrorContext(ctx, "article cleanup failed", "error", err)
		return removed, err
	}
	j.logger.InfoContext(ctx, "article cleanup finished", "removed", removed, "max_age_days", j.maxAgeDays)
	return removed, nil
}

// Start registers the cleanup with the provided scheduler.
func (j *Janitor) Start(ctx context.Context) error {
	if j.driver == nil || j.cleaner == nil {
		return nil
	}

	job := func(time.Time) {
		_, _ = j.RunOnce(ctx)
	}

	return j.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.driver == nil {
		return nil
	}

	return j.driver.Stop(ctx)
}
