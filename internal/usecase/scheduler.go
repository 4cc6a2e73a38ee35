package usecase

import (
	"context"
	"log/slog"
	"time"

	"ProspectScanner/internal/ports"
)

// Scheduler wires the cron driver with the campaign pipeline.
type Scheduler struct {
	driver           ports.Scheduler
	pipeline         *Pipeline
	description      string
	maxOrganizations int
	logger           *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring campaigns.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, description string, maxOrganizations int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:           driver,
		pipeline:         pipeline,
		description:      description,
		maxOrganizations: maxOrganizations,
		logger:           logger.With("component", "campaign-scheduler"),
	}
}

// Start registers the campaign with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled campaign triggered", "at", trigger)
		results, err := s.pipeline.RunCampaign(ctx, s.description, s.maxOrganizations)
		if err != nil {
			s.logger.Error("scheduled campaign failed", "error", err)
			return
		}
		s.logger.Info("scheduled campaign finished", "prospects", len(results))
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
