package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"revshare/internal/config"
	"revshare/internal/db"
	"revshare/internal/events"
	"revshare/internal/models"
	"revshare/internal/money"
	"revshare/internal/payments"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// staleBatchSize bounds one reaper pass.
const staleBatchSize = 100

type InvestmentService struct {
	txRunner     db.TxRunner
	poster       poster
	wallets      WalletStore
	transactions TransactionStore
	offerings    OfferingStore
	investments  InvestmentStore
	gate         *ComplianceGate
	processor    payments.Processor
	notifier     *Notifier
	policy       config.Policy
	log          *zap.Logger
	now          func() time.Time
}

func NewInvestmentService(txRunner db.TxRunner, stores Stores, gate *ComplianceGate, processor payments.Processor, notifier *Notifier, policy config.Policy, log *zap.Logger) *InvestmentService {
	return &InvestmentService{
		txRunner:     txRunner,
		poster:       poster{wallets: stores.Wallets, ledger: stores.Ledger},
		wallets:      stores.Wallets,
		transactions: stores.Transactions,
		offerings:    stores.Offerings,
		investments:  stores.Investments,
		gate:         gate,
		processor:    processor,
		notifier:     notifier,
		policy:       policy,
		log:          log,
		now:          time.Now,
	}
}

type InvestmentRequest struct {
	InvestorID string
	OfferingID string
	Shares     int64
}

type InvestmentResult struct {
	Investment   models.Investment `json:"investment"`
	ClientSecret string            `json:"client_secret,omitempty"`
}

// quote validates the request against the offering as currently stored and
// returns the total price. The caller re-checks under the offering lock.
func (s *InvestmentService) quote(ctx context.Context, req InvestmentRequest) (int64, error) {
	if req.Shares <= 0 {
		return 0, validation("invalid_shares", "shares must be positive")
	}
	offering, err := s.offerings.GetByID(ctx, req.OfferingID)
	if err != nil {
		return 0, lookup(err, "offering")
	}
	if offering.Status != models.OfferingActive {
		return 0, ErrOfferingNotActive
	}
	if req.Shares > offering.AvailableShares {
		return 0, ErrInsufficientShares
	}
	total := req.Shares * offering.PricePerShare
	if total < offering.MinInvestment || (offering.MaxInvestment > 0 && total > offering.MaxInvestment) {
		return 0, validation("investment_out_of_range", "investment must be between %s and %s",
			money.FormatMinor(offering.MinInvestment), money.FormatMinor(offering.MaxInvestment))
	}
	if err := mustBeEligible(s.gate.CheckInvestmentEligibility(ctx, req.InvestorID, total)); err != nil {
		return 0, err
	}
	return total, nil
}

// reserve takes the offering lock and decrements its available shares.
func (s *InvestmentService) reserve(ctx context.Context, tx *sqlx.Tx, offeringID string, shares int64) (models.Offering, error) {
	offering, err := s.offerings.GetForUpdate(ctx, tx, offeringID)
	if err != nil {
		return models.Offering{}, lookup(err, "offering")
	}
	if offering.Status != models.OfferingActive {
		return models.Offering{}, ErrOfferingNotActive
	}
	n, err := s.offerings.AdjustAvailableShares(ctx, tx, offeringID, -shares)
	if err != nil {
		return models.Offering{}, err
	}
	if n == 0 {
		return models.Offering{}, ErrInsufficientShares
	}
	return offering, nil
}

func (s *InvestmentService) restoreShares(ctx context.Context, tx *sqlx.Tx, inv models.Investment) error {
	n, err := s.offerings.AdjustAvailableShares(ctx, tx, inv.OfferingID, inv.Shares)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("restore %d shares to offering %s: exceeds total shares", inv.Shares, inv.OfferingID)
	}
	return nil
}

// Create reserves shares and opens a PENDING investment paid through the
// payment processor. The investment is confirmed by the processor's event.
// The cumulative cap counts it from here on, so confirmation never re-checks.
func (s *InvestmentService) Create(ctx context.Context, req InvestmentRequest) (InvestmentResult, error) {
	total, err := s.quote(ctx, req)
	if err != nil {
		return InvestmentResult{}, err
	}
	inv := models.Investment{
		ID:            uuid.NewString(),
		InvestorID:    req.InvestorID,
		OfferingID:    req.OfferingID,
		TransactionID: uuid.NewString(),
		Shares:        req.Shares,
		TotalAmount:   total,
		Status:        models.InvestmentPending,
		FundingSource: models.FundingExternal,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		offering, err := s.reserve(ctx, tx, req.OfferingID, req.Shares)
		if err != nil {
			return err
		}
		wallet, err := s.wallets.Ensure(ctx, tx, uuid.NewString(), req.InvestorID, s.policy.Currency)
		if err != nil {
			return err
		}
		if err := s.gate.checkCumulativeCap(ctx, tx, req.InvestorID, wallet.TotalInvested, total); err != nil {
			return err
		}
		if _, err := s.transactions.Create(ctx, tx, investmentTransaction(inv, offering, s.policy.Currency, nil, models.TransactionPending)); err != nil {
			return err
		}
		return s.investments.Create(ctx, tx, inv)
	})
	if err != nil {
		return InvestmentResult{}, err
	}
	inv.CreatedAt = s.now().UTC()

	intent, err := s.processor.CreatePaymentIntent(ctx, payments.PaymentIntentRequest{
		Amount:        total,
		Currency:      s.policy.Currency,
		UserID:        req.InvestorID,
		Purpose:       payments.PurposeInvestment,
		TransactionID: inv.TransactionID,
	})
	if err == nil {
		err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.transactions.SetExternalRef(ctx, tx, inv.TransactionID, intent.ID)
		})
	}
	if err != nil {
		s.log.Warn("payment intent failed, releasing investment", zap.String("investment_id", inv.ID), zap.Error(err))
		if _, relErr := s.release(ctx, inv.ID, models.InvestmentFailed, models.TransactionFailed, events.InvestmentFailed); relErr != nil {
			s.log.Error("release investment failed", zap.String("investment_id", inv.ID), zap.Error(relErr))
		}
		return InvestmentResult{}, fmt.Errorf("create payment intent: %w", err)
	}

	s.log.Info("investment created",
		zap.String("investment_id", inv.ID),
		zap.String("offering_id", inv.OfferingID),
		zap.Int64("shares", inv.Shares),
		zap.Int64("amount", inv.TotalAmount))
	return InvestmentResult{Investment: inv, ClientSecret: intent.ClientSecret}, nil
}

// CreateFromWallet buys shares with the available balance. The investment
// is confirmed immediately.
func (s *InvestmentService) CreateFromWallet(ctx context.Context, req InvestmentRequest) (models.Investment, error) {
	total, err := s.quote(ctx, req)
	if err != nil {
		return models.Investment{}, err
	}
	now := s.now().UTC()
	inv := models.Investment{
		ID:            uuid.NewString(),
		InvestorID:    req.InvestorID,
		OfferingID:    req.OfferingID,
		TransactionID: uuid.NewString(),
		Shares:        req.Shares,
		TotalAmount:   total,
		Status:        models.InvestmentConfirmed,
		FundingSource: models.FundingWallet,
		CreatedAt:     now,
		ConfirmedAt:   &now,
	}
	var after models.Wallet
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		offering, err := s.reserve(ctx, tx, req.OfferingID, req.Shares)
		if err != nil {
			return err
		}
		wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, req.InvestorID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientFunds
		}
		if err != nil {
			return err
		}
		if wallet.Balance < total {
			return ErrInsufficientFunds
		}
		if err := s.gate.checkCumulativeCap(ctx, tx, req.InvestorID, wallet.TotalInvested, total); err != nil {
			return err
		}
		if _, err := s.transactions.Create(ctx, tx, investmentTransaction(inv, offering, wallet.Currency, &wallet.ID, models.TransactionCompleted)); err != nil {
			return err
		}
		if err := s.investments.Create(ctx, tx, inv); err != nil {
			return err
		}
		next := wallet
		next.Balance -= total
		next.TotalInvested += total
		after, err = s.poster.post(ctx, tx, wallet, next, entrySpec{
			Type:          models.EntryInvestment,
			Debit:         total,
			Description:   "Investment in " + offering.Title,
			ReferenceType: "investment",
			ReferenceID:   inv.ID,
		})
		return err
	})
	if err != nil {
		return models.Investment{}, err
	}
	s.log.Info("wallet investment confirmed",
		zap.String("investment_id", inv.ID),
		zap.String("wallet_id", after.ID),
		zap.Int64("amount", total))
	s.notifier.WalletChanged(after)
	s.announce(ctx, events.InvestmentConfirmed, inv)
	return inv, nil
}

func investmentTransaction(inv models.Investment, offering models.Offering, currency string, walletID *string, status models.TransactionStatus) models.Transaction {
	metadata, _ := json.Marshal(map[string]any{
		"investment_id": inv.ID,
		"offering_id":   offering.ID,
		"shares":        inv.Shares,
	})
	investorID := inv.InvestorID
	return models.Transaction{
		ID:          inv.TransactionID,
		UserID:      &investorID,
		WalletID:    walletID,
		Type:        models.TransactionInvestment,
		Status:      status,
		Amount:      inv.TotalAmount,
		Currency:    currency,
		Description: fmt.Sprintf("%d shares of %s", inv.Shares, offering.Title),
		Metadata:    string(metadata),
	}
}

// ConfirmPayment applies the processor's verdict to a PENDING investment.
// Anything else is left alone and reported as unchanged.
func (s *InvestmentService) ConfirmPayment(ctx context.Context, investmentID string, succeeded bool, amount int64) (models.Investment, bool, error) {
	var (
		inv     models.Investment
		wallet  models.Wallet
		changed bool
	)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		inv, wallet, changed, err = s.confirm(ctx, tx, investmentID, succeeded, amount)
		return err
	})
	if err != nil {
		return models.Investment{}, false, err
	}
	if changed {
		s.confirmed(ctx, inv, wallet)
	}
	return inv, changed, nil
}

// confirm runs inside the caller's unit of work.
func (s *InvestmentService) confirm(ctx context.Context, tx *sqlx.Tx, investmentID string, succeeded bool, amount int64) (models.Investment, models.Wallet, bool, error) {
	inv, err := s.investments.GetForUpdate(ctx, tx, investmentID)
	if err != nil {
		return models.Investment{}, models.Wallet{}, false, lookup(err, "investment")
	}
	if inv.Status != models.InvestmentPending {
		return inv, models.Wallet{}, false, nil
	}
	if !succeeded {
		if err := s.restoreShares(ctx, tx, inv); err != nil {
			return models.Investment{}, models.Wallet{}, false, err
		}
		if err := s.investments.UpdateStatus(ctx, tx, inv.ID, models.InvestmentFailed, nil); err != nil {
			return models.Investment{}, models.Wallet{}, false, err
		}
		if err := s.transactions.UpdateStatus(ctx, tx, inv.TransactionID, models.TransactionFailed); err != nil {
			return models.Investment{}, models.Wallet{}, false, err
		}
		inv.Status = models.InvestmentFailed
		return inv, models.Wallet{}, true, nil
	}
	if amount != inv.TotalAmount {
		return models.Investment{}, models.Wallet{}, false, validation("amount_mismatch",
			"paid amount %s does not match investment amount %s", money.FormatMinor(amount), money.FormatMinor(inv.TotalAmount))
	}
	wallet, err := s.wallets.Ensure(ctx, tx, uuid.NewString(), inv.InvestorID, s.policy.Currency)
	if err != nil {
		return models.Investment{}, models.Wallet{}, false, err
	}
	next := wallet
	next.TotalInvested += inv.TotalAmount
	if wallet, err = s.poster.post(ctx, tx, wallet, next); err != nil {
		return models.Investment{}, models.Wallet{}, false, err
	}
	now := s.now().UTC()
	if err := s.investments.UpdateStatus(ctx, tx, inv.ID, models.InvestmentConfirmed, &now); err != nil {
		return models.Investment{}, models.Wallet{}, false, err
	}
	if err := s.transactions.UpdateStatus(ctx, tx, inv.TransactionID, models.TransactionCompleted); err != nil {
		return models.Investment{}, models.Wallet{}, false, err
	}
	inv.Status = models.InvestmentConfirmed
	inv.ConfirmedAt = &now
	return inv, wallet, true, nil
}

// confirmed announces a committed confirmation or failure.
func (s *InvestmentService) confirmed(ctx context.Context, inv models.Investment, wallet models.Wallet) {
	s.log.Info("investment payment settled",
		zap.String("investment_id", inv.ID),
		zap.String("status", string(inv.Status)))
	if inv.Status == models.InvestmentConfirmed {
		s.notifier.WalletChanged(wallet)
		s.announce(ctx, events.InvestmentConfirmed, inv)
		return
	}
	s.announce(ctx, events.InvestmentFailed, inv)
}

// Cancel lets the owner abandon a PENDING investment.
func (s *InvestmentService) Cancel(ctx context.Context, investorID, investmentID string) (models.Investment, error) {
	inv, err := s.investments.GetByID(ctx, investmentID)
	if err != nil {
		return models.Investment{}, lookup(err, "investment")
	}
	if inv.InvestorID != investorID {
		return models.Investment{}, notFound("investment")
	}
	if inv.Status != models.InvestmentPending {
		return models.Investment{}, ErrInvalidTransition
	}
	released, err := s.release(ctx, investmentID, models.InvestmentCancelled, models.TransactionCancelled, events.InvestmentCancelled)
	if err != nil {
		return models.Investment{}, err
	}
	if !released {
		return models.Investment{}, ErrInvalidTransition
	}
	inv.Status = models.InvestmentCancelled
	return inv, nil
}

// ReleaseStale cancels investments left PENDING longer than the configured
// TTL and returns their shares to the offering.
func (s *InvestmentService) ReleaseStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.policy.PendingInvestmentTTL)
	ids, err := s.investments.ListStalePending(ctx, cutoff, staleBatchSize)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, id := range ids {
		ok, err := s.release(ctx, id, models.InvestmentCancelled, models.TransactionCancelled, events.InvestmentCancelled)
		if err != nil {
			s.log.Warn("release stale investment failed", zap.String("investment_id", id), zap.Error(err))
			continue
		}
		if ok {
			released++
		}
	}
	if released > 0 {
		s.log.Info("stale investments released", zap.Int("count", released), zap.Time("cutoff", cutoff))
	}
	return released, nil
}

// release moves a PENDING investment to status and restores its shares.
// It reports false if the investment was no longer PENDING.
func (s *InvestmentService) release(ctx context.Context, investmentID string, status models.InvestmentStatus, txStatus models.TransactionStatus, eventType string) (bool, error) {
	var inv models.Investment
	released := false
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		inv, err = s.investments.GetForUpdate(ctx, tx, investmentID)
		if err != nil {
			return lookup(err, "investment")
		}
		if inv.Status != models.InvestmentPending {
			return nil
		}
		if err := s.restoreShares(ctx, tx, inv); err != nil {
			return err
		}
		if err := s.investments.UpdateStatus(ctx, tx, inv.ID, status, nil); err != nil {
			return err
		}
		if err := s.transactions.UpdateStatus(ctx, tx, inv.TransactionID, txStatus); err != nil {
			return err
		}
		inv.Status = status
		released = true
		return nil
	})
	if err != nil || !released {
		return false, err
	}
	s.announce(ctx, eventType, inv)
	return true, nil
}

func (s *InvestmentService) announce(ctx context.Context, eventType string, inv models.Investment) {
	s.notifier.Publish(ctx, eventType, inv.OfferingID, map[string]any{
		"investment_id":  inv.ID,
		"investor_id":    inv.InvestorID,
		"offering_id":    inv.OfferingID,
		"shares":         inv.Shares,
		"amount":         inv.TotalAmount,
		"status":         inv.Status,
		"funding_source": inv.FundingSource,
	})
}

func (s *InvestmentService) Get(ctx context.Context, investorID, investmentID string) (models.Investment, error) {
	inv, err := s.investments.GetByID(ctx, investmentID)
	if err != nil {
		return models.Investment{}, lookup(err, "investment")
	}
	if inv.InvestorID != investorID {
		return models.Investment{}, notFound("investment")
	}
	return inv, nil
}

func (s *InvestmentService) ListForInvestor(ctx context.Context, investorID string) ([]models.Investment, error) {
	return s.investments.ListByInvestor(ctx, investorID)
}
