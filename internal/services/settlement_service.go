package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"revshare/internal/cache"
	"revshare/internal/config"
	"revshare/internal/db"
	"revshare/internal/events"
	"revshare/internal/models"
	"revshare/internal/money"
	"revshare/internal/payments"
	"revshare/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// settlementLockTTL outlives any realistic batch; the lock is released when
// the batch returns.
const settlementLockTTL = time.Hour

// Allocation is one investor's share of an offering's net revenue.
type Allocation struct {
	InvestmentID string `json:"investment_id"`
	InvestorID   string `json:"investor_id"`
	OfferingID   string `json:"offering_id"`
	Shares       int64  `json:"shares"`
	Amount       int64  `json:"amount"`
}

type OfferingAllocation struct {
	OfferingID      string          `json:"offering_id"`
	OfferingRevenue decimal.Decimal `json:"offering_revenue"`
	NetRevenue      decimal.Decimal `json:"net_revenue"`
	Payouts         []Allocation    `json:"payouts"`
}

// AllocatePayouts splits grossRevenue for one offering: the offering earns
// its share percentage, the platform keeps feeRate of that, and every
// investment gets the rest in proportion to its shares. Payouts are rounded
// half away from zero; non-positive payouts are dropped.
func AllocatePayouts(grossRevenue int64, feeRate decimal.Decimal, offering models.Offering, investments []models.Investment) OfferingAllocation {
	offeringRevenue := money.Scale(grossRevenue, offering.SharePercentage)
	net := offeringRevenue.Mul(decimal.NewFromInt(1).Sub(feeRate))
	result := OfferingAllocation{
		OfferingID:      offering.ID,
		OfferingRevenue: offeringRevenue,
		NetRevenue:      net,
	}
	if offering.TotalShares <= 0 {
		return result
	}
	total := decimal.NewFromInt(offering.TotalShares)
	for _, inv := range investments {
		amount := money.RoundMinor(net.Mul(decimal.NewFromInt(inv.Shares)).Div(total))
		if amount <= 0 {
			continue
		}
		result.Payouts = append(result.Payouts, Allocation{
			InvestmentID: inv.ID,
			InvestorID:   inv.InvestorID,
			OfferingID:   offering.ID,
			Shares:       inv.Shares,
			Amount:       amount,
		})
	}
	return result
}

type SettlementRequest struct {
	ChannelID    string `json:"channel_id"`
	RevenueMonth string `json:"revenue_month"`
	GrossRevenue int64  `json:"gross_revenue"`
}

type PayoutFailure struct {
	PayoutID     string `json:"payout_id,omitempty"`
	InvestmentID string `json:"investment_id"`
	InvestorID   string `json:"investor_id"`
	Reason       string `json:"reason"`
}

type SettlementSummary struct {
	ChannelID           string          `json:"channel_id"`
	RevenueMonth        string          `json:"revenue_month"`
	GrossRevenue        int64           `json:"gross_revenue"`
	OfferingsProcessed  int             `json:"offerings_processed"`
	PayoutsCreated      int             `json:"payouts_created"`
	PayoutsSkipped      int             `json:"payouts_skipped"`
	PayoutsCompleted    int             `json:"payouts_completed"`
	Failures            []PayoutFailure `json:"failures"`
	TotalPaid           int64           `json:"total_paid"`
	PlatformFee         int64           `json:"platform_fee"`
	PlatformFeeRecorded bool            `json:"platform_fee_recorded"`
}

// tally collects per-investor outcomes from concurrent workers.
type tally struct {
	mu      sync.Mutex
	summary *SettlementSummary
}

func (t *tally) add(fn func(s *SettlementSummary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.summary)
}

type SettlementService struct {
	txRunner     db.TxRunner
	offerings    OfferingStore
	investments  InvestmentStore
	payouts      PayoutStore
	transactions TransactionStore
	audit        AuditStore
	disburser    payments.Disburser
	guard        cache.Guard
	notifier     *Notifier
	policy       config.Policy
	log          *zap.Logger
	now          func() time.Time
}

func NewSettlementService(txRunner db.TxRunner, stores Stores, disburser payments.Disburser, guard cache.Guard, notifier *Notifier, policy config.Policy, log *zap.Logger) *SettlementService {
	return &SettlementService{
		txRunner:     txRunner,
		offerings:    stores.Offerings,
		investments:  stores.Investments,
		payouts:      stores.Payouts,
		transactions: stores.Transactions,
		audit:        stores.Audit,
		disburser:    disburser,
		guard:        guard,
		notifier:     notifier,
		policy:       policy,
		log:          log,
		now:          time.Now,
	}
}

func validatePeriod(channelID, month string) error {
	if strings.TrimSpace(channelID) == "" {
		return validation("invalid_channel", "channel id is required")
	}
	if err := validator.ValidateRevenueMonth(month); err != nil {
		return validation("invalid_revenue_month", "revenue month must be formatted YYYY-MM")
	}
	return nil
}

// lockPeriod claims the run lock for a channel and month. The returned
// func releases it.
func (s *SettlementService) lockPeriod(ctx context.Context, channelID, month string) (func(), error) {
	key := fmt.Sprintf("settlement:%s:%s", channelID, month)
	claimed, err := s.guard.Claim(ctx, key, settlementLockTTL)
	if err != nil {
		s.log.Error("settlement lock unavailable", zap.String("key", key), zap.Error(err))
		return func() {}, nil
	}
	if !claimed {
		return nil, ErrSettlementRunning
	}
	return func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
			s.log.Error("settlement lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// Reconcile settles one channel's gross revenue for a month. It can be run
// again for the same month: existing payouts are skipped and the platform
// fee is recorded once.
func (s *SettlementService) Reconcile(ctx context.Context, actorID string, req SettlementRequest) (SettlementSummary, error) {
	if err := validatePeriod(req.ChannelID, req.RevenueMonth); err != nil {
		return SettlementSummary{}, err
	}
	if req.GrossRevenue <= 0 {
		return SettlementSummary{}, ErrInvalidAmount
	}
	unlock, err := s.lockPeriod(ctx, req.ChannelID, req.RevenueMonth)
	if err != nil {
		return SettlementSummary{}, err
	}
	defer unlock()

	offerings, err := s.offerings.ListActiveByChannel(ctx, req.ChannelID)
	if err != nil {
		return SettlementSummary{}, err
	}
	summary := SettlementSummary{
		ChannelID:    req.ChannelID,
		RevenueMonth: req.RevenueMonth,
		GrossRevenue: req.GrossRevenue,
		Failures:     []PayoutFailure{},
	}
	var allocations []Allocation
	for _, offering := range offerings {
		investments, err := s.investments.ListConfirmedByOffering(ctx, offering.ID)
		if err != nil {
			return summary, err
		}
		alloc := AllocatePayouts(req.GrossRevenue, s.policy.PlatformFeeRate, offering, investments)
		allocations = append(allocations, alloc.Payouts...)
		summary.OfferingsProcessed++
	}

	t := &tally{summary: &summary}
	var g errgroup.Group
	g.SetLimit(s.concurrency())
	for _, alloc := range allocations {
		alloc := alloc
		g.Go(func() error {
			s.settleOne(ctx, req.RevenueMonth, alloc, t)
			return nil
		})
	}
	_ = g.Wait()

	fee := money.RoundMinor(money.Scale(req.GrossRevenue, s.policy.PlatformFeeRate))
	summary.PlatformFee = fee
	recorded, err := s.recordPlatformFee(ctx, actorID, req, fee, summary)
	if err != nil {
		return summary, err
	}
	summary.PlatformFeeRecorded = recorded

	s.log.Info("settlement completed",
		zap.String("channel_id", req.ChannelID),
		zap.String("revenue_month", req.RevenueMonth),
		zap.Int("payouts_created", summary.PayoutsCreated),
		zap.Int("payouts_skipped", summary.PayoutsSkipped),
		zap.Int("payouts_failed", len(summary.Failures)),
		zap.Int64("total_paid", summary.TotalPaid),
		zap.Int64("platform_fee", fee))
	s.notifier.Publish(ctx, events.SettlementCompleted, req.ChannelID, summary)
	return summary, nil
}

func (s *SettlementService) concurrency() int {
	if s.policy.SettlementConcurrency > 0 {
		return s.policy.SettlementConcurrency
	}
	return 1
}

// settleOne creates the payout for one allocation unless it exists, then
// disburses it. Every outcome lands in the tally.
func (s *SettlementService) settleOne(ctx context.Context, month string, alloc Allocation, t *tally) {
	payout := models.Payout{
		ID:           uuid.NewString(),
		InvestmentID: alloc.InvestmentID,
		InvestorID:   alloc.InvestorID,
		OfferingID:   alloc.OfferingID,
		RevenueMonth: month,
		Amount:       alloc.Amount,
		Status:       models.PayoutPending,
	}
	var created bool
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		created, err = s.payouts.CreateIfAbsent(ctx, tx, payout)
		return err
	})
	if err != nil {
		s.log.Warn("payout create failed",
			zap.String("investment_id", alloc.InvestmentID),
			zap.String("revenue_month", month),
			zap.Error(err))
		t.add(func(sum *SettlementSummary) {
			sum.Failures = append(sum.Failures, PayoutFailure{
				InvestmentID: alloc.InvestmentID,
				InvestorID:   alloc.InvestorID,
				Reason:       err.Error(),
			})
		})
		return
	}
	if !created {
		t.add(func(sum *SettlementSummary) { sum.PayoutsSkipped++ })
		return
	}
	t.add(func(sum *SettlementSummary) { sum.PayoutsCreated++ })
	s.disburse(ctx, payout, t)
}

// disburse pays one payout and records COMPLETED or FAILED.
func (s *SettlementService) disburse(ctx context.Context, payout models.Payout, t *tally) {
	err := s.disburser.Disburse(ctx, payments.Disbursement{
		PayoutID:    payout.ID,
		Amount:      payout.Amount,
		Currency:    s.policy.Currency,
		InvestorID:  payout.InvestorID,
		Destination: "wallet",
	})
	if err == nil {
		err = s.complete(ctx, payout)
	} else {
		reason := err.Error()
		if markErr := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.payouts.MarkFailed(ctx, tx, payout.ID, reason)
		}); markErr != nil {
			err = errors.Join(err, markErr)
		}
	}
	if err != nil {
		s.log.Warn("payout failed",
			zap.String("payout_id", payout.ID),
			zap.String("investor_id", payout.InvestorID),
			zap.String("revenue_month", payout.RevenueMonth),
			zap.Error(err))
		t.add(func(sum *SettlementSummary) {
			sum.Failures = append(sum.Failures, PayoutFailure{
				PayoutID:     payout.ID,
				InvestmentID: payout.InvestmentID,
				InvestorID:   payout.InvestorID,
				Reason:       err.Error(),
			})
		})
		s.notifier.Publish(ctx, events.PayoutFailed, payout.InvestorID, map[string]any{
			"payout_id":     payout.ID,
			"investment_id": payout.InvestmentID,
			"revenue_month": payout.RevenueMonth,
			"amount":        payout.Amount,
			"reason":        err.Error(),
		})
		return
	}
	t.add(func(sum *SettlementSummary) {
		sum.PayoutsCompleted++
		sum.TotalPaid += payout.Amount
	})
	s.notifier.Publish(ctx, events.PayoutCompleted, payout.InvestorID, map[string]any{
		"payout_id":     payout.ID,
		"investment_id": payout.InvestmentID,
		"revenue_month": payout.RevenueMonth,
		"amount":        payout.Amount,
	})
}

// payoutTransactionID is stable per payout so a repeated completion reuses
// the same transaction row.
func payoutTransactionID(payoutID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("payout:"+payoutID)).String()
}

func (s *SettlementService) complete(ctx context.Context, payout models.Payout) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.payouts.GetForUpdate(ctx, tx, payout.ID)
		if err != nil {
			return lookup(err, "payout")
		}
		if current.Status == models.PayoutCompleted {
			return nil
		}
		txID := payoutTransactionID(payout.ID)
		requestID := "payout:" + payout.ID
		investorID := payout.InvestorID
		if _, err := s.transactions.Create(ctx, tx, models.Transaction{
			ID:              txID,
			UserID:          &investorID,
			Type:            models.TransactionPayout,
			Status:          models.TransactionCompleted,
			Amount:          payout.Amount,
			Currency:        s.policy.Currency,
			Description:     "Revenue share for " + payout.RevenueMonth,
			ClientRequestID: &requestID,
		}); err != nil {
			return err
		}
		return s.payouts.MarkCompleted(ctx, tx, payout.ID, txID, s.now().UTC())
	})
}

func (s *SettlementService) recordPlatformFee(ctx context.Context, actorID string, req SettlementRequest, fee int64, summary SettlementSummary) (bool, error) {
	if fee <= 0 {
		return false, nil
	}
	key := fmt.Sprintf("platform-fee:%s:%s", req.ChannelID, req.RevenueMonth)
	var recorded bool
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		metadata, _ := json.Marshal(map[string]any{
			"channel_id":    req.ChannelID,
			"revenue_month": req.RevenueMonth,
			"gross_revenue": req.GrossRevenue,
			"fee_rate":      s.policy.PlatformFeeRate.String(),
		})
		var err error
		recorded, err = s.transactions.Create(ctx, tx, models.Transaction{
			ID:              uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String(),
			Type:            models.TransactionFee,
			Status:          models.TransactionCompleted,
			Amount:          fee,
			Currency:        s.policy.Currency,
			Description:     fmt.Sprintf("Platform fee for %s %s", req.ChannelID, req.RevenueMonth),
			Metadata:        string(metadata),
			ClientRequestID: &key,
		})
		if err != nil {
			return err
		}
		data, _ := json.Marshal(summary)
		return s.audit.Log(ctx, tx, actorID, "run_settlement", "channel", req.ChannelID, string(data))
	})
	return recorded, err
}

// RetryFailedPayouts disburses the FAILED payouts of a period again.
// Reconcile never does this on its own.
func (s *SettlementService) RetryFailedPayouts(ctx context.Context, actorID, channelID, month string) (SettlementSummary, error) {
	if err := validatePeriod(channelID, month); err != nil {
		return SettlementSummary{}, err
	}
	unlock, err := s.lockPeriod(ctx, channelID, month)
	if err != nil {
		return SettlementSummary{}, err
	}
	defer unlock()

	failed, err := s.payouts.ListFailed(ctx, channelID, month)
	if err != nil {
		return SettlementSummary{}, err
	}
	summary := SettlementSummary{ChannelID: channelID, RevenueMonth: month, Failures: []PayoutFailure{}}
	t := &tally{summary: &summary}
	var g errgroup.Group
	g.SetLimit(s.concurrency())
	for _, payout := range failed {
		payout := payout
		g.Go(func() error {
			s.disburse(ctx, payout, t)
			return nil
		})
	}
	_ = g.Wait()

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		data, _ := json.Marshal(summary)
		return s.audit.Log(ctx, tx, actorID, "retry_payouts", "channel", channelID, string(data))
	})
	if err != nil {
		return summary, err
	}
	s.log.Info("failed payouts retried",
		zap.String("channel_id", channelID),
		zap.String("revenue_month", month),
		zap.Int("retried", len(failed)),
		zap.Int("completed", summary.PayoutsCompleted))
	return summary, nil
}

func (s *SettlementService) ListPayouts(ctx context.Context, channelID, month string) ([]models.Payout, error) {
	if err := validatePeriod(channelID, month); err != nil {
		return nil, err
	}
	return s.payouts.ListByPeriod(ctx, channelID, month)
}

func (s *SettlementService) ListForInvestor(ctx context.Context, investorID string) ([]models.Payout, error) {
	return s.payouts.ListByInvestor(ctx, investorID)
}

// WalletDisburser pays payouts into the investor's wallet. Paying the same
// payout twice is a no-op.
type WalletDisburser struct {
	txRunner db.TxRunner
	poster   poster
	wallets  WalletStore
	notifier *Notifier
	currency string
}

func NewWalletDisburser(txRunner db.TxRunner, stores Stores, notifier *Notifier, currency string) *WalletDisburser {
	return &WalletDisburser{
		txRunner: txRunner,
		poster:   poster{wallets: stores.Wallets, ledger: stores.Ledger},
		wallets:  stores.Wallets,
		notifier: notifier,
		currency: currency,
	}
}

func (d *WalletDisburser) Disburse(ctx context.Context, p payments.Disbursement) error {
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	var after models.Wallet
	err := d.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := d.wallets.Ensure(ctx, tx, uuid.NewString(), p.InvestorID, d.currency)
		if err != nil {
			return err
		}
		next := wallet
		next.Balance += p.Amount
		next.TotalEarnings += p.Amount
		after, err = d.poster.post(ctx, tx, wallet, next, entrySpec{
			Type:          models.EntryPayout,
			Credit:        p.Amount,
			Description:   "Revenue share payout",
			ReferenceType: "payout",
			ReferenceID:   p.PayoutID,
		})
		return err
	})
	if db.IsUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return err
	}
	d.notifier.WalletChanged(after)
	return nil
}
