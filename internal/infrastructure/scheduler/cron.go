package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ProspectScanner/internal/ports"
	"ProspectScanner/pkg/logger"
)

// ErrAlreadyStarted is returned when Start is called twice without Stop.
var ErrAlreadyStarted = errors.New("scheduler already started")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronScheduler runs a job on a five-field cron expression.
type CronScheduler struct {
	expr     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler validates expr and builds a stopped scheduler.
func NewCronScheduler(expr string, location *time.Location, log *slog.Logger) (*CronScheduler, error) {
	if _, err := parser.Parse(expr); err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &CronScheduler{expr: expr, location: location, logger: log.With("component", "scheduler")}, nil
}

// Next reports the first activation strictly after from.
func (c *CronScheduler) Next(from time.Time) time.Time {
	schedule, err := parser.Parse(c.expr)
	if err != nil {
		return time.Time{}
	}
	return schedule.Next(from.In(c.location))
}

// Start registers job and begins firing it. A panicking job is recovered and logged.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return ErrAlreadyStarted
	}

	cronLogger := cron.VerbosePrintfLogger(logger.New(c.logger, "cron"))
	runner := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(c.location),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := runner.AddFunc(c.expr, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("register job: %w", err)
	}

	runner.Start()
	c.cron = runner
	c.logger.Info("scheduler started", "cron", c.expr, "next", c.Next(time.Now()))

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts the scheduler and waits for a running job until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	done := runner.Stop()
	select {
	case <-done.Done():
		c.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}
