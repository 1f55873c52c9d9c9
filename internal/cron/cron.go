package cron

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/lodgepole/rentroll/internal/scheduler"
)

// Scheduler runs the billing tick and repair pass on an in-process schedule,
// for deployments without an external cron hitting the trigger endpoints.
type Scheduler struct {
	cron   *cron.Cron
	runner *scheduler.Runner
	logger *slog.Logger
}

// NewScheduler creates an in-process scheduler around the batch runner.
func NewScheduler(runner *scheduler.Runner, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		runner: runner,
		logger: logger,
	}
}

// Start registers the jobs and starts the cron scheduler.
// The billing tick fires at the top of every hour so every time zone's local
// midnight is observed; the repair pass runs once a day.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc("0 * * * *", s.runBilling); err != nil {
		s.logger.Error("failed to schedule billing tick", "error", err)
	} else {
		s.logger.Info("scheduled billing tick", "schedule", "0 * * * *")
	}

	if _, err := s.cron.AddFunc("30 4 * * *", s.runRepair); err != nil {
		s.logger.Error("failed to schedule repair pass", "error", err)
	} else {
		s.logger.Info("scheduled repair pass", "schedule", "30 4 * * *")
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runBilling() {
	if _, err := s.runner.Run(context.Background()); err != nil {
		s.logger.Error("scheduled billing run failed", "error", err)
	}
}

func (s *Scheduler) runRepair() {
	if _, err := s.runner.Repair(context.Background()); err != nil {
		s.logger.Error("scheduled repair pass failed", "error", err)
	}
}
