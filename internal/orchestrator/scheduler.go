package orchestrator

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"ladder_maker/internal/core"
)

// Scheduler fires reconciliation cycles on a cron expression. A cycle that
// overruns its interval suppresses the next tick instead of stacking a
// second cycle on top of it.
type Scheduler struct {
	cron    *cron.Cron
	orch    *Orchestrator
	reports core.IReportStore
	logger  core.ILogger
	running atomic.Bool
}

func NewScheduler(cronSpec string, orch *Orchestrator, reports core.IReportStore, logger core.ILogger) (*Scheduler, error) {
	s := &Scheduler{
		orch:    orch,
		reports: reports,
		logger:  logger.WithField("component", "scheduler"),
	}

	c := cron.New()
	if _, err := c.AddFunc(cronSpec, func() { s.tick(context.Background()) }); err != nil {
		return nil, err
	}
	s.cron = c
	return s, nil
}

// Start begins scheduling and runs one cycle immediately so the ladders are
// reconciled at startup rather than after the first interval.
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler starting")
	s.tick(context.Background())
	s.cron.Start()
}

// Stop halts scheduling and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// RunOnce drives a single cycle outside the cron schedule.
func (s *Scheduler) RunOnce(ctx context.Context) *core.CycleReport {
	return s.orch.RunCycle(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Previous cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	report := s.orch.RunCycle(ctx)
	if err := s.reports.SaveReport(ctx, report); err != nil {
		s.logger.Warn("Failed to persist cycle report", "cycle_id", report.CycleID, "error", err)
	}
}
