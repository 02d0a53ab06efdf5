package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"revshare/internal/cache"
	"revshare/internal/db"
	"revshare/internal/events"
	"revshare/internal/models"
	"revshare/internal/money"
	"revshare/internal/payments"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// paymentClaimTTL covers the provider's redelivery window.
const paymentClaimTTL = 24 * time.Hour

type PaymentService struct {
	txRunner     db.TxRunner
	poster       poster
	wallets      WalletStore
	transactions TransactionStore
	investments  InvestmentStore
	invest       *InvestmentService
	processor    payments.Processor
	guard        cache.Guard
	notifier     *Notifier
	currency     string
	log          *zap.Logger
}

func NewPaymentService(txRunner db.TxRunner, stores Stores, invest *InvestmentService, processor payments.Processor, guard cache.Guard, notifier *Notifier, currency string, log *zap.Logger) *PaymentService {
	return &PaymentService{
		txRunner:     txRunner,
		poster:       poster{wallets: stores.Wallets, ledger: stores.Ledger},
		wallets:      stores.Wallets,
		transactions: stores.Transactions,
		investments:  stores.Investments,
		invest:       invest,
		processor:    processor,
		guard:        guard,
		notifier:     notifier,
		currency:     currency,
		log:          log,
	}
}

type DepositResult struct {
	Transaction  models.Transaction `json:"transaction"`
	ClientSecret string             `json:"client_secret"`
}

// Deposit opens a PENDING deposit and a payment intent for it. The wallet is
// credited when the processor confirms the payment.
func (s *PaymentService) Deposit(ctx context.Context, userID string, amount int64) (DepositResult, error) {
	if amount <= 0 {
		return DepositResult{}, ErrInvalidAmount
	}
	txn := models.Transaction{
		ID:          uuid.NewString(),
		UserID:      &userID,
		Type:        models.TransactionDeposit,
		Status:      models.TransactionPending,
		Amount:      amount,
		Currency:    s.currency,
		Description: "Wallet deposit",
	}
	var after models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.Ensure(ctx, tx, uuid.NewString(), userID, s.currency)
		if err != nil {
			return err
		}
		txn.WalletID = &wallet.ID
		if _, err := s.transactions.Create(ctx, tx, txn); err != nil {
			return err
		}
		next := wallet
		next.PendingBalance += amount
		after, err = s.poster.post(ctx, tx, wallet, next)
		return err
	})
	if err != nil {
		return DepositResult{}, err
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, payments.PaymentIntentRequest{
		Amount:        amount,
		Currency:      s.currency,
		UserID:        userID,
		Purpose:       payments.PurposeDeposit,
		TransactionID: txn.ID,
	})
	if err == nil {
		err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.transactions.SetExternalRef(ctx, tx, txn.ID, intent.ID)
		})
	}
	if err != nil {
		if _, failErr := s.settleDeposit(ctx, txn.ID, *txn.WalletID, amount, false); failErr != nil {
			s.log.Error("abandon deposit failed", zap.String("transaction_id", txn.ID), zap.Error(failErr))
		}
		return DepositResult{}, fmt.Errorf("create payment intent: %w", err)
	}
	txn.ExternalRef = &intent.ID
	s.log.Info("deposit opened",
		zap.String("transaction_id", txn.ID),
		zap.String("wallet_id", after.ID),
		zap.Int64("amount", amount))
	s.notifier.WalletChanged(after)
	return DepositResult{Transaction: txn, ClientSecret: intent.ClientSecret}, nil
}

// settleDeposit closes a deposit outside of a processor event, used when
// the intent could not be created.
func (s *PaymentService) settleDeposit(ctx context.Context, transactionID, walletID string, amount int64, succeeded bool) (models.Wallet, error) {
	var after models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.GetForUpdate(ctx, tx, walletID)
		if err != nil {
			return err
		}
		after, err = s.applyDeposit(ctx, tx, transactionID, wallet, amount, succeeded)
		return err
	})
	return after, err
}

func (s *PaymentService) applyDeposit(ctx context.Context, tx *sqlx.Tx, transactionID string, wallet models.Wallet, amount int64, succeeded bool) (models.Wallet, error) {
	next := wallet
	next.PendingBalance -= amount
	status := models.TransactionFailed
	var specs []entrySpec
	if succeeded {
		status = models.TransactionCompleted
		next.Balance += amount
		next.TotalDeposited += amount
		specs = append(specs, entrySpec{
			Type:          models.EntryDeposit,
			Credit:        amount,
			Description:   "Deposit",
			ReferenceType: "transaction",
			ReferenceID:   transactionID,
		})
	}
	after, err := s.poster.post(ctx, tx, wallet, next, specs...)
	if err != nil {
		return models.Wallet{}, err
	}
	if err := s.transactions.UpdateStatus(ctx, tx, transactionID, status); err != nil {
		return models.Wallet{}, err
	}
	return after, nil
}

type PaymentOutcome struct {
	TransactionID string                   `json:"transaction_id,omitempty"`
	Status        models.TransactionStatus `json:"status,omitempty"`
	Duplicate     bool                     `json:"duplicate"`
	// LateCredit is set when the payment arrived after its transaction was
	// closed and was credited to the wallet instead.
	LateCredit bool `json:"late_credit,omitempty"`
}

// HandlePaymentEvent applies an asynchronous processor confirmation. A
// redelivered event never credits twice.
func (s *PaymentService) HandlePaymentEvent(ctx context.Context, evt payments.PaymentEvent) (PaymentOutcome, error) {
	if evt.PaymentIntentID == "" {
		return PaymentOutcome{}, validation("invalid_payment_event", "payment intent id is required")
	}
	key := claimKey(evt)
	claimed, err := s.guard.Claim(ctx, key, paymentClaimTTL)
	if err != nil {
		// The transaction status check below still rejects replays.
		s.log.Error("payment claim failed", zap.String("payment_intent_id", evt.PaymentIntentID), zap.Error(err))
		claimed = true
	}
	if !claimed {
		return PaymentOutcome{Duplicate: true}, nil
	}

	var (
		outcome    PaymentOutcome
		wallet     models.Wallet
		investment models.Investment
	)
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		txn, err := s.transactions.GetByExternalRefForUpdate(ctx, tx, evt.PaymentIntentID)
		if err != nil {
			return lookup(err, "transaction")
		}
		outcome = PaymentOutcome{TransactionID: txn.ID, Status: txn.Status}
		if txn.Status != models.TransactionPending {
			if !evt.Succeeded || !closedUnpaid(txn.Status) {
				outcome.Duplicate = true
				return nil
			}
			credit, after, created, err := s.creditLatePayment(ctx, tx, txn, evt.Amount)
			if err != nil {
				return err
			}
			if !created {
				outcome.Duplicate = true
				return nil
			}
			wallet = after
			outcome = PaymentOutcome{TransactionID: credit.ID, Status: credit.Status, LateCredit: true}
			return nil
		}
		if evt.Amount != txn.Amount {
			return validation("amount_mismatch", "paid amount %s does not match %s",
				money.FormatMinor(evt.Amount), money.FormatMinor(txn.Amount))
		}
		switch txn.Type {
		case models.TransactionDeposit:
			if txn.WalletID == nil {
				return fmt.Errorf("deposit %s has no wallet", txn.ID)
			}
			current, err := s.wallets.GetForUpdate(ctx, tx, *txn.WalletID)
			if err != nil {
				return err
			}
			if wallet, err = s.applyDeposit(ctx, tx, txn.ID, current, txn.Amount, evt.Succeeded); err != nil {
				return err
			}
		case models.TransactionInvestment:
			inv, err := s.investments.GetByTransactionForUpdate(ctx, tx, txn.ID)
			if err != nil {
				return lookup(err, "investment")
			}
			if investment, wallet, _, err = s.invest.confirm(ctx, tx, inv.ID, evt.Succeeded, evt.Amount); err != nil {
				return err
			}
		default:
			return validation("unsupported_payment", "transaction type %s is not paid through the processor", txn.Type)
		}
		outcome.Status = models.TransactionFailed
		if evt.Succeeded {
			outcome.Status = models.TransactionCompleted
		}
		return nil
	})
	if err != nil {
		if relErr := s.guard.Release(ctx, key); relErr != nil {
			s.log.Error("payment claim release failed", zap.String("payment_intent_id", evt.PaymentIntentID), zap.Error(relErr))
		}
		return PaymentOutcome{}, err
	}
	if outcome.Duplicate {
		s.log.Info("duplicate payment event", zap.String("payment_intent_id", evt.PaymentIntentID))
		return outcome, nil
	}

	if outcome.LateCredit {
		s.log.Error("payment succeeded after its transaction closed, credited to wallet",
			zap.String("payment_intent_id", evt.PaymentIntentID),
			zap.String("transaction_id", outcome.TransactionID),
			zap.String("wallet_id", wallet.ID),
			zap.Int64("amount", evt.Amount))
		s.notifier.WalletChanged(wallet)
		s.notifier.Publish(ctx, events.DepositCompleted, wallet.ID, map[string]any{
			"transaction_id":    outcome.TransactionID,
			"user_id":           wallet.UserID,
			"amount":            evt.Amount,
			"payment_intent_id": evt.PaymentIntentID,
			"late":              true,
		})
		return outcome, nil
	}

	s.log.Info("payment event applied",
		zap.String("payment_intent_id", evt.PaymentIntentID),
		zap.String("transaction_id", outcome.TransactionID),
		zap.String("status", string(outcome.Status)))
	if investment.ID != "" {
		s.invest.confirmed(ctx, investment, wallet)
		return outcome, nil
	}
	s.notifier.WalletChanged(wallet)
	if evt.Succeeded {
		s.notifier.Publish(ctx, events.DepositCompleted, wallet.ID, map[string]any{
			"transaction_id": outcome.TransactionID,
			"user_id":        wallet.UserID,
			"amount":         evt.Amount,
		})
	}
	return outcome, nil
}

// claimKey separates verdicts so a success that follows a failure for the
// same intent is still applied.
func claimKey(evt payments.PaymentEvent) string {
	verdict := "failed"
	if evt.Succeeded {
		verdict = "succeeded"
	}
	return "payment:" + evt.PaymentIntentID + ":" + verdict
}

func closedUnpaid(status models.TransactionStatus) bool {
	return status == models.TransactionCancelled || status == models.TransactionFailed
}

// creditLatePayment books money collected for a transaction that was
// already cancelled or failed as a completed DEPOSIT into the payer's
// wallet. The credit is keyed by the closed transaction, so it is booked at
// most once.
func (s *PaymentService) creditLatePayment(ctx context.Context, tx *sqlx.Tx, closed models.Transaction, amount int64) (models.Transaction, models.Wallet, bool, error) {
	if amount <= 0 {
		return models.Transaction{}, models.Wallet{}, false, validation("invalid_payment_event", "paid amount must be positive")
	}
	if closed.UserID == nil {
		return models.Transaction{}, models.Wallet{}, false, fmt.Errorf("transaction %s has no payer", closed.ID)
	}
	wallet, err := s.wallets.Ensure(ctx, tx, uuid.NewString(), *closed.UserID, s.currency)
	if err != nil {
		return models.Transaction{}, models.Wallet{}, false, err
	}
	requestID := "late-payment:" + closed.ID
	metadata, _ := json.Marshal(map[string]any{
		"closed_transaction_id": closed.ID,
		"closed_type":           closed.Type,
		"closed_status":         closed.Status,
	})
	credit := models.Transaction{
		ID:              uuid.NewString(),
		UserID:          closed.UserID,
		WalletID:        &wallet.ID,
		Type:            models.TransactionDeposit,
		Status:          models.TransactionCompleted,
		Amount:          amount,
		Currency:        wallet.Currency,
		Description:     "Late payment credited to wallet",
		Metadata:        string(metadata),
		ClientRequestID: &requestID,
	}
	created, err := s.transactions.Create(ctx, tx, credit)
	if err != nil || !created {
		return models.Transaction{}, models.Wallet{}, false, err
	}
	next := wallet
	next.Balance += amount
	next.TotalDeposited += amount
	after, err := s.poster.post(ctx, tx, wallet, next, entrySpec{
		Type:          models.EntryDeposit,
		Credit:        amount,
		Description:   "Late payment",
		ReferenceType: "transaction",
		ReferenceID:   credit.ID,
	})
	if err != nil {
		return models.Transaction{}, models.Wallet{}, false, err
	}
	return credit, after, true, nil
}
