// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	importrepo "github.com/vendalink/orderhub/internal/domain/import/repository"
)

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron            *cron.Cron
	importRepo      importrepo.ImportRepository
	staleJobTimeout time.Duration
	logger          *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(importRepo importrepo.ImportRepository, staleJobTimeout time.Duration, logger *slog.Logger) *Scheduler {
	// Standard 5-field cron format, seconds disabled
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:            c,
		importRepo:      importRepo,
		staleJobTimeout: staleJobTimeout,
		logger:          logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Stale import reaper: jobs stuck in processing past the timeout are
	// failed so retries stop being blocked by a crashed worker.
	_, err := s.cron.AddFunc("*/10 * * * *", s.reapStaleImports)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the stale import reaper (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.reapStaleImports()
}

func (s *Scheduler) reapStaleImports() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	reaped, err := s.importRepo.FailStaleJobs(ctx, s.staleJobTimeout)
	if err != nil {
		s.logger.Error("failed to reap stale import jobs", slog.Any("error", err))
		return
	}
	if reaped > 0 {
		s.logger.Warn("reaped stale import jobs",
			slog.Int64("count", reaped),
			slog.Duration("olderThan", s.staleJobTimeout),
		)
	}
}
