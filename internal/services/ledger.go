package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"revshare/internal/db"
	"revshare/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrLedgerMismatch means a posting's entries do not explain the wallet
// change it was asked to write. The enclosing transaction is rolled back.
var ErrLedgerMismatch = errors.New("ledger entries do not match wallet mutation")

type entrySpec struct {
	Type          models.EntryType
	Debit         int64
	Credit        int64
	Description   string
	ReferenceType string
	ReferenceID   string
}

// entryEffect is how one entry moves the available and locked balances.
func entryEffect(entryType models.EntryType, debit, credit int64) (available, locked int64) {
	net := credit - debit
	switch entryType {
	case models.EntryLock, models.EntryUnlock:
		return net, -net
	case models.EntryWithdrawal, models.EntryFee:
		return 0, net
	default:
		return net, 0
	}
}

// external reports whether an entry moves money across the wallet boundary.
// LOCK and UNLOCK only move it between available and locked.
func external(entryType models.EntryType) bool {
	return entryType != models.EntryLock && entryType != models.EntryUnlock
}

type poster struct {
	wallets WalletStore
	ledger  LedgerStore
}

// post writes next over the row-locked wallet current and appends the
// entries that explain the change, in one transaction. The entries must
// account exactly for the change of balance and locked balance.
func (p poster) post(ctx context.Context, tx *sqlx.Tx, current, next models.Wallet, specs ...entrySpec) (models.Wallet, error) {
	if next.Balance < 0 || next.LockedBalance < 0 || next.PendingBalance < 0 {
		return models.Wallet{}, ErrInsufficientFunds
	}
	available := current.Balance
	locked := current.LockedBalance
	entries := make([]models.LedgerEntry, 0, len(specs))
	for _, spec := range specs {
		if spec.Debit < 0 || spec.Credit < 0 {
			return models.Wallet{}, fmt.Errorf("%w: negative entry amount", ErrLedgerMismatch)
		}
		dAvailable, dLocked := entryEffect(spec.Type, spec.Debit, spec.Credit)
		available += dAvailable
		locked += dLocked
		entries = append(entries, models.LedgerEntry{
			ID:            uuid.NewString(),
			WalletID:      current.ID,
			EntryType:     spec.Type,
			Debit:         spec.Debit,
			Credit:        spec.Credit,
			Balance:       available,
			Description:   spec.Description,
			ReferenceType: spec.ReferenceType,
			ReferenceID:   spec.ReferenceID,
		})
	}
	if available != next.Balance || locked != next.LockedBalance {
		return models.Wallet{}, fmt.Errorf("%w: wallet %s expected balance %d/%d, entries give %d/%d",
			ErrLedgerMismatch, current.ID, next.Balance, next.LockedBalance, available, locked)
	}
	if err := p.wallets.UpdateBalances(ctx, tx, next); err != nil {
		return models.Wallet{}, err
	}
	for _, entry := range entries {
		if _, err := p.ledger.Append(ctx, tx, entry); err != nil {
			return models.Wallet{}, err
		}
	}
	return next, nil
}

// ReplayReport is the outcome of replaying one wallet's ledger.
type ReplayReport struct {
	WalletID      string   `json:"wallet_id"`
	Entries       int      `json:"entries"`
	Balance       int64    `json:"balance"`
	LockedBalance int64    `json:"locked_balance"`
	ExternalNet   int64    `json:"external_net"`
	Problems      []string `json:"problems,omitempty"`
}

func (r ReplayReport) Consistent() bool {
	return len(r.Problems) == 0
}

// ReplayLedger recomputes a wallet from its entries in posting order and
// checks every snapshot, the final balances and money conservation.
func ReplayLedger(wallet models.Wallet, entries []models.LedgerEntry) ReplayReport {
	report := ReplayReport{WalletID: wallet.ID, Entries: len(entries)}
	problem := func(format string, args ...any) {
		report.Problems = append(report.Problems, fmt.Sprintf(format, args...))
	}
	var lastSeq int64
	for i, entry := range entries {
		if i > 0 && entry.Seq <= lastSeq {
			problem("entry %s: seq %d not after %d", entry.ID, entry.Seq, lastSeq)
		}
		lastSeq = entry.Seq
		if entry.WalletID != wallet.ID {
			problem("entry %s belongs to wallet %s", entry.ID, entry.WalletID)
		}
		dAvailable, dLocked := entryEffect(entry.EntryType, entry.Debit, entry.Credit)
		report.Balance += dAvailable
		report.LockedBalance += dLocked
		if external(entry.EntryType) {
			report.ExternalNet += entry.Credit - entry.Debit
		}
		if entry.Balance != report.Balance {
			problem("entry %s (seq %d): snapshot %d, replay %d", entry.ID, entry.Seq, entry.Balance, report.Balance)
		}
		if report.Balance < 0 || report.LockedBalance < 0 {
			problem("entry %s (seq %d): negative balance %d/%d", entry.ID, entry.Seq, report.Balance, report.LockedBalance)
		}
	}
	if report.Balance != wallet.Balance {
		problem("stored balance %d, replay %d", wallet.Balance, report.Balance)
	}
	if report.LockedBalance != wallet.LockedBalance {
		problem("stored locked balance %d, replay %d", wallet.LockedBalance, report.LockedBalance)
	}
	if report.Balance+report.LockedBalance != report.ExternalNet {
		problem("balance+locked %d differs from net external flow %d", report.Balance+report.LockedBalance, report.ExternalNet)
	}
	return report
}

type LedgerService struct {
	txRunner     db.TxRunner
	wallets      WalletStore
	ledger       LedgerStore
	transactions TransactionStore
	currency     string
	log          *zap.Logger
}

func NewLedgerService(txRunner db.TxRunner, stores Stores, currency string, log *zap.Logger) *LedgerService {
	return &LedgerService{
		txRunner:     txRunner,
		wallets:      stores.Wallets,
		ledger:       stores.Ledger,
		transactions: stores.Transactions,
		currency:     currency,
		log:          log,
	}
}

// Wallet returns the user's wallet, or an empty one if nothing has moved
// money for the user yet.
func (s *LedgerService) Wallet(ctx context.Context, userID string) (models.Wallet, error) {
	wallet, err := s.wallets.GetByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{UserID: userID, Currency: s.currency}, nil
	}
	return wallet, err
}

func (s *LedgerService) History(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	wallet, err := s.wallets.GetByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.LedgerEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.ledger.ListByWallet(ctx, wallet.ID, limit, offset)
}

// Transactions lists the user's money movements, newest first. txType
// narrows the list to one transaction type when set.
func (s *LedgerService) Transactions(ctx context.Context, userID string, txType models.TransactionType, limit, offset int) ([]models.Transaction, error) {
	rows, err := s.transactions.ListByUser(ctx, userID, string(txType), limit, offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Transaction{}
	}
	return rows, nil
}

// VerifyWallet replays one wallet against a consistent snapshot.
func (s *LedgerService) VerifyWallet(ctx context.Context, walletID string) (ReplayReport, error) {
	var report ReplayReport
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.GetForUpdate(ctx, tx, walletID)
		if err != nil {
			return lookup(err, "wallet")
		}
		entries, err := s.ledger.AllByWallet(ctx, tx, walletID)
		if err != nil {
			return err
		}
		report = ReplayLedger(wallet, entries)
		return nil
	})
	return report, err
}

// VerifyAll replays every wallet and returns the inconsistent ones with
// the number checked.
func (s *LedgerService) VerifyAll(ctx context.Context) ([]ReplayReport, int, error) {
	ids, err := s.wallets.ListIDs(ctx)
	if err != nil {
		return nil, 0, err
	}
	var broken []ReplayReport
	for _, id := range ids {
		report, err := s.VerifyWallet(ctx, id)
		if err != nil {
			return broken, 0, err
		}
		if !report.Consistent() {
			broken = append(broken, report)
		}
	}
	return broken, len(ids), nil
}
