package jobs

import (
	"context"
	"time"

	"revshare/internal/services"

	"go.uber.org/zap"
)

type StaleInvestmentReleaser interface {
	ReleaseStale(ctx context.Context, now time.Time) (int, error)
}

type LedgerAuditor interface {
	VerifyAll(ctx context.Context) ([]services.ReplayReport, int, error)
}

// JobRunner holds the scheduled jobs and their dependencies.
type JobRunner struct {
	investments StaleInvestmentReleaser
	ledger      LedgerAuditor
	log         *zap.Logger
	timeout     time.Duration
	now         func() time.Time
}

func NewJobRunner(investments StaleInvestmentReleaser, ledger LedgerAuditor, log *zap.Logger) *JobRunner {
	return &JobRunner{
		investments: investments,
		ledger:      ledger,
		log:         log,
		timeout:     10 * time.Minute,
		now:         time.Now,
	}
}

// runWithRecovery logs start and finish and keeps a panicking job from
// taking the scheduler down.
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			jr.log.Error("job panicked", zap.String("job", jobName), zap.Any("panic", r))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
	defer cancel()

	start := jr.now()
	jr.log.Info("job started", zap.String("job", jobName))
	jobFunc(ctx)
	jr.log.Info("job completed", zap.String("job", jobName), zap.Duration("duration", jr.now().Sub(start)))
}

// ReleaseStaleInvestments cancels PENDING investments whose payment never
// arrived and returns their shares to the offering.
func (jr *JobRunner) ReleaseStaleInvestments() {
	jr.runWithRecovery("release-stale-investments", func(ctx context.Context) {
		released, err := jr.investments.ReleaseStale(ctx, jr.now().UTC())
		if err != nil {
			jr.log.Error("release stale investments failed", zap.Error(err))
			return
		}
		if released > 0 {
			jr.log.Info("stale investments released", zap.Int("released", released))
		}
	})
}

// AuditLedger replays every wallet's ledger.
func (jr *JobRunner) AuditLedger() {
	jr.runWithRecovery("ledger-audit", func(ctx context.Context) {
		broken, checked, err := jr.ledger.VerifyAll(ctx)
		if err != nil {
			jr.log.Error("ledger audit failed", zap.Error(err))
			return
		}
		for _, report := range broken {
			jr.log.Error("wallet ledger inconsistent",
				zap.String("wallet_id", report.WalletID),
				zap.Strings("problems", report.Problems))
		}
		jr.log.Info("ledger audit finished", zap.Int("wallets_checked", checked), zap.Int("inconsistent", len(broken)))
	})
}
