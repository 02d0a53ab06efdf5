package jobs

import (
	"fmt"
	"time"

	"revshare/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the JobRunner's jobs on cron schedules with seconds
// precision in UTC.
type Scheduler struct {
	cron *cron.Cron
	jobs *JobRunner
	log  *zap.Logger
}

func NewScheduler(jobRunner *JobRunner, policy config.Policy, log *zap.Logger) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)
	s := &Scheduler{cron: c, jobs: jobRunner, log: log}
	if err := s.registerJobs(policy); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs(policy config.Policy) error {
	entries := []struct {
		name string
		spec string
		fn   func()
	}{
		{"release-stale-investments", policy.ReaperSchedule, s.jobs.ReleaseStaleInvestments},
		{"ledger-audit", policy.LedgerAuditSchedule, s.jobs.AuditLedger},
	}
	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.spec, e.fn); err != nil {
			return fmt.Errorf("register %s job: %w", e.name, err)
		}
		s.log.Info("job registered", zap.String("job", e.name), zap.String("schedule", e.spec))
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
