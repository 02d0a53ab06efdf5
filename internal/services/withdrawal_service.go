package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"revshare/internal/config"
	"revshare/internal/db"
	"revshare/internal/events"
	"revshare/internal/models"
	"revshare/internal/money"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type WithdrawalService struct {
	txRunner     db.TxRunner
	poster       poster
	wallets      WalletStore
	transactions TransactionStore
	bankAccounts BankAccountStore
	withdrawals  WithdrawalStore
	audit        AuditStore
	gate         *ComplianceGate
	notifier     *Notifier
	policy       config.Policy
	log          *zap.Logger
	now          func() time.Time
}

func NewWithdrawalService(txRunner db.TxRunner, stores Stores, gate *ComplianceGate, notifier *Notifier, policy config.Policy, log *zap.Logger) *WithdrawalService {
	return &WithdrawalService{
		txRunner:     txRunner,
		poster:       poster{wallets: stores.Wallets, ledger: stores.Ledger},
		wallets:      stores.Wallets,
		transactions: stores.Transactions,
		bankAccounts: stores.BankAccounts,
		withdrawals:  stores.Withdrawals,
		audit:        stores.Audit,
		gate:         gate,
		notifier:     notifier,
		policy:       policy,
		log:          log,
		now:          time.Now,
	}
}

type WithdrawalRequest struct {
	UserID        string
	BankAccountID string
	Amount        int64
}

// Fee is the platform fee retained on a completed withdrawal.
func (s *WithdrawalService) Fee(amount int64) int64 {
	return money.PercentOf(amount, s.policy.WithdrawalFeePercent)
}

// Request locks amount from the available balance and opens a PENDING
// withdrawal.
func (s *WithdrawalService) Request(ctx context.Context, req WithdrawalRequest) (models.Withdrawal, error) {
	if req.Amount <= 0 {
		return models.Withdrawal{}, ErrInvalidAmount
	}
	if req.Amount < s.policy.MinWithdrawal || req.Amount > s.policy.MaxWithdrawal {
		return models.Withdrawal{}, validation("amount_out_of_range", "withdrawal amount must be between %s and %s",
			money.FormatMinor(s.policy.MinWithdrawal), money.FormatMinor(s.policy.MaxWithdrawal))
	}
	if err := mustBeEligible(s.gate.CheckWithdrawalEligibility(ctx, req.UserID)); err != nil {
		return models.Withdrawal{}, err
	}
	wallet, err := s.wallets.GetByUser(ctx, req.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Withdrawal{}, notFound("bank_account")
	}
	if err != nil {
		return models.Withdrawal{}, err
	}
	account, err := s.bankAccounts.GetByID(ctx, req.BankAccountID)
	if err != nil {
		return models.Withdrawal{}, lookup(err, "bank_account")
	}
	if err := payableTo(account, wallet.ID); err != nil {
		return models.Withdrawal{}, err
	}

	fee := s.Fee(req.Amount)
	withdrawal := models.Withdrawal{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		WalletID:      wallet.ID,
		BankAccountID: account.ID,
		TransactionID: uuid.NewString(),
		Amount:        req.Amount,
		Fee:           fee,
		NetAmount:     req.Amount - fee,
		Status:        models.WithdrawalPending,
	}
	var after models.Wallet
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.wallets.GetForUpdate(ctx, tx, wallet.ID)
		if err != nil {
			return err
		}
		// Verification may have changed since the read above.
		locked, err := s.bankAccounts.GetForUpdate(ctx, tx, account.ID)
		if err != nil {
			return lookup(err, "bank_account")
		}
		if err := payableTo(locked, wallet.ID); err != nil {
			return err
		}
		active, err := s.withdrawals.CountActiveByUser(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrWithdrawalInFlight
		}
		if current.Balance-current.LockedBalance < req.Amount {
			return ErrInsufficientFunds
		}
		withdrawal.RequestedAt = s.now().UTC()
		metadata, _ := json.Marshal(map[string]any{
			"withdrawal_id":   withdrawal.ID,
			"bank_account_id": account.ID,
			"fee":             fee,
			"net_amount":      withdrawal.NetAmount,
		})
		if _, err := s.transactions.Create(ctx, tx, models.Transaction{
			ID:          withdrawal.TransactionID,
			UserID:      &req.UserID,
			WalletID:    &wallet.ID,
			Type:        models.TransactionWithdrawal,
			Status:      models.TransactionPending,
			Amount:      req.Amount,
			Currency:    current.Currency,
			Description: "Withdrawal to bank account ending " + account.Last4,
			Metadata:    string(metadata),
		}); err != nil {
			return err
		}
		if err := s.withdrawals.Create(ctx, tx, withdrawal); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrWithdrawalInFlight
			}
			return err
		}
		next := current
		next.Balance -= req.Amount
		next.LockedBalance += req.Amount
		after, err = s.poster.post(ctx, tx, current, next, entrySpec{
			Type:          models.EntryLock,
			Debit:         req.Amount,
			Description:   "Funds locked for withdrawal",
			ReferenceType: "withdrawal",
			ReferenceID:   withdrawal.ID,
		})
		return err
	})
	if err != nil {
		return models.Withdrawal{}, err
	}
	s.log.Info("withdrawal requested",
		zap.String("withdrawal_id", withdrawal.ID),
		zap.String("wallet_id", wallet.ID),
		zap.Int64("amount", withdrawal.Amount),
		zap.Int64("fee", withdrawal.Fee))
	s.announce(ctx, events.WithdrawalRequested, withdrawal, after)
	return withdrawal, nil
}

// payableTo reports whether account belongs to the wallet and is verified.
func payableTo(account models.BankAccount, walletID string) error {
	if account.WalletID != walletID {
		return notFound("bank_account")
	}
	if !account.IsVerified || account.Status != models.BankAccountVerified {
		return ErrBankAccountUnverified
	}
	return nil
}

// Approve moves a PENDING withdrawal to PROCESSING. Funds stay locked.
func (s *WithdrawalService) Approve(ctx context.Context, adminID, withdrawalID string) (models.Withdrawal, error) {
	return s.transition(ctx, withdrawalID, adminID, "approve_withdrawal", events.WithdrawalProcessing,
		func(_ *sqlx.Tx, w *models.Withdrawal, wallet models.Wallet) (models.Wallet, []entrySpec, error) {
			if w.Status != models.WithdrawalPending {
				return wallet, nil, ErrInvalidTransition
			}
			now := s.now().UTC()
			w.Status = models.WithdrawalProcessing
			w.ProcessedAt = &now
			return wallet, nil, nil
		})
}

// Complete confirms the bank transfer. The locked amount leaves the wallet:
// the net amount to the bank and the fee to the platform.
func (s *WithdrawalService) Complete(ctx context.Context, adminID, withdrawalID string) (models.Withdrawal, error) {
	return s.transition(ctx, withdrawalID, adminID, "complete_withdrawal", events.WithdrawalCompleted,
		func(tx *sqlx.Tx, w *models.Withdrawal, wallet models.Wallet) (models.Wallet, []entrySpec, error) {
			if w.Status != models.WithdrawalProcessing {
				return wallet, nil, ErrInvalidTransition
			}
			now := s.now().UTC()
			w.Status = models.WithdrawalCompleted
			w.CompletedAt = &now
			if err := s.transactions.UpdateStatus(ctx, tx, w.TransactionID, models.TransactionCompleted); err != nil {
				return wallet, nil, err
			}
			next := wallet
			next.LockedBalance -= w.Amount
			next.TotalWithdrawn += w.NetAmount
			specs := []entrySpec{{
				Type:          models.EntryWithdrawal,
				Debit:         w.NetAmount,
				Description:   "Withdrawal paid out",
				ReferenceType: "withdrawal",
				ReferenceID:   w.ID,
			}}
			if w.Fee > 0 {
				specs = append(specs, entrySpec{
					Type:          models.EntryFee,
					Debit:         w.Fee,
					Description:   "Withdrawal fee",
					ReferenceType: "withdrawal",
					ReferenceID:   w.ID,
				})
			}
			return next, specs, nil
		})
}

// Reject fails a PENDING or PROCESSING withdrawal and returns the full
// amount to the available balance.
func (s *WithdrawalService) Reject(ctx context.Context, adminID, withdrawalID, reason string) (models.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Withdrawal{}, ErrReasonRequired
	}
	return s.transition(ctx, withdrawalID, adminID, "reject_withdrawal", events.WithdrawalFailed,
		func(tx *sqlx.Tx, w *models.Withdrawal, wallet models.Wallet) (models.Wallet, []entrySpec, error) {
			if w.Status != models.WithdrawalPending && w.Status != models.WithdrawalProcessing {
				return wallet, nil, ErrInvalidTransition
			}
			w.Status = models.WithdrawalFailed
			w.FailureReason = &reason
			return s.unlock(ctx, tx, w, wallet, models.TransactionFailed, "Withdrawal rejected: "+reason)
		})
}

// Cancel lets the owner withdraw a PENDING request.
func (s *WithdrawalService) Cancel(ctx context.Context, userID, withdrawalID string) (models.Withdrawal, error) {
	return s.transition(ctx, withdrawalID, "", "", events.WithdrawalCancelled,
		func(tx *sqlx.Tx, w *models.Withdrawal, wallet models.Wallet) (models.Wallet, []entrySpec, error) {
			if w.UserID != userID {
				return wallet, nil, notFound("withdrawal")
			}
			if w.Status != models.WithdrawalPending {
				return wallet, nil, ErrInvalidTransition
			}
			w.Status = models.WithdrawalCancelled
			return s.unlock(ctx, tx, w, wallet, models.TransactionCancelled, "Withdrawal cancelled")
		})
}

func (s *WithdrawalService) unlock(ctx context.Context, tx *sqlx.Tx, w *models.Withdrawal, wallet models.Wallet, status models.TransactionStatus, description string) (models.Wallet, []entrySpec, error) {
	if err := s.transactions.UpdateStatus(ctx, tx, w.TransactionID, status); err != nil {
		return wallet, nil, err
	}
	next := wallet
	next.Balance += w.Amount
	next.LockedBalance -= w.Amount
	return next, []entrySpec{{
		Type:          models.EntryUnlock,
		Credit:        w.Amount,
		Description:   description,
		ReferenceType: "withdrawal",
		ReferenceID:   w.ID,
	}}, nil
}

type withdrawalStep func(tx *sqlx.Tx, w *models.Withdrawal, wallet models.Wallet) (models.Wallet, []entrySpec, error)

// transition locks the wallet and then the withdrawal, applies step and
// persists the result. Any error leaves both untouched.
func (s *WithdrawalService) transition(ctx context.Context, withdrawalID, actorID, action, eventType string, step withdrawalStep) (models.Withdrawal, error) {
	peek, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return models.Withdrawal{}, lookup(err, "withdrawal")
	}
	var result models.Withdrawal
	var after models.Wallet
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.GetForUpdate(ctx, tx, peek.WalletID)
		if err != nil {
			return err
		}
		w, err := s.withdrawals.GetForUpdate(ctx, tx, withdrawalID)
		if err != nil {
			return lookup(err, "withdrawal")
		}
		next, specs, err := step(tx, &w, wallet)
		if err != nil {
			return err
		}
		if err := s.withdrawals.UpdateStatus(ctx, tx, w); err != nil {
			return err
		}
		after = wallet
		if len(specs) > 0 {
			if after, err = s.poster.post(ctx, tx, wallet, next, specs...); err != nil {
				return err
			}
		}
		if action != "" {
			data, _ := json.Marshal(map[string]any{
				"withdrawal_id": w.ID,
				"status":        w.Status,
				"amount":        w.Amount,
			})
			if err := s.audit.Log(ctx, tx, actorID, action, "withdrawal", w.ID, string(data)); err != nil {
				return err
			}
		}
		result = w
		return nil
	})
	if err != nil {
		return models.Withdrawal{}, err
	}
	s.log.Info("withdrawal transitioned",
		zap.String("withdrawal_id", result.ID),
		zap.String("status", string(result.Status)),
		zap.String("actor_id", actorID))
	s.announce(ctx, eventType, result, after)
	return result, nil
}

func (s *WithdrawalService) announce(ctx context.Context, eventType string, w models.Withdrawal, wallet models.Wallet) {
	s.notifier.WalletChanged(wallet)
	s.notifier.Publish(ctx, eventType, w.WalletID, map[string]any{
		"withdrawal_id": w.ID,
		"user_id":       w.UserID,
		"status":        w.Status,
		"amount":        w.Amount,
		"fee":           w.Fee,
		"net_amount":    w.NetAmount,
	})
}

// Get returns a withdrawal owned by userID.
func (s *WithdrawalService) Get(ctx context.Context, userID, withdrawalID string) (models.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return models.Withdrawal{}, lookup(err, "withdrawal")
	}
	if w.UserID != userID {
		return models.Withdrawal{}, notFound("withdrawal")
	}
	return w, nil
}

func (s *WithdrawalService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Withdrawal, error) {
	return s.withdrawals.ListByUser(ctx, userID, limit, offset)
}

func (s *WithdrawalService) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error) {
	return s.withdrawals.ListByStatus(ctx, status, limit, offset)
}
