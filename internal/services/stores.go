package services

import (
	"context"
	"time"

	"revshare/internal/models"
	"revshare/internal/store"
)

type WalletStore interface {
	Ensure(ctx context.Context, tx store.Tx, id, userID, currency string) (models.Wallet, error)
	GetByUser(ctx context.Context, userID string) (models.Wallet, error)
	GetByID(ctx context.Context, walletID string) (models.Wallet, error)
	GetForUpdate(ctx context.Context, tx store.Getter, walletID string) (models.Wallet, error)
	GetByUserForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error)
	UpdateBalances(ctx context.Context, tx store.Execer, wallet models.Wallet) error
	ListIDs(ctx context.Context) ([]string, error)
}

type LedgerStore interface {
	Append(ctx context.Context, tx store.Getter, entry models.LedgerEntry) (models.LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.LedgerEntry, error)
	AllByWallet(ctx context.Context, q store.Selecter, walletID string) ([]models.LedgerEntry, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input models.Transaction) (bool, error)
	UpdateStatus(ctx context.Context, tx store.Execer, transactionID string, status models.TransactionStatus) error
	SetExternalRef(ctx context.Context, tx store.Execer, transactionID, ref string) error
	GetByExternalRefForUpdate(ctx context.Context, tx store.Getter, ref string) (models.Transaction, error)
	ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]models.Transaction, error)
}

type BankAccountStore interface {
	Create(ctx context.Context, tx store.Execer, account models.BankAccount) error
	CountByWallet(ctx context.Context, tx store.Getter, walletID string) (int, error)
	ExistsByHash(ctx context.Context, tx store.Getter, walletID, hash string) (bool, error)
	GetByID(ctx context.Context, id string) (models.BankAccount, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.BankAccount, error)
	ListByWallet(ctx context.Context, walletID string) ([]models.BankAccount, error)
	SetDefault(ctx context.Context, tx store.Execer, walletID, accountID string) error
	PromoteNewest(ctx context.Context, tx store.Execer, walletID string) error
	Delete(ctx context.Context, tx store.Execer, id string) error
	SetVerification(ctx context.Context, tx store.Execer, id string, status models.BankAccountStatus) error
}

type WithdrawalStore interface {
	Create(ctx context.Context, tx store.Execer, w models.Withdrawal) error
	GetByID(ctx context.Context, id string) (models.Withdrawal, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Withdrawal, error)
	CountActiveByUser(ctx context.Context, tx store.Getter, userID string) (int, error)
	CountActiveByBankAccount(ctx context.Context, tx store.Getter, bankAccountID string) (int, error)
	UpdateStatus(ctx context.Context, tx store.Execer, w models.Withdrawal) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Withdrawal, error)
	ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error)
}

type OfferingStore interface {
	Create(ctx context.Context, tx store.Execer, o models.Offering) error
	GetByID(ctx context.Context, id string) (models.Offering, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Offering, error)
	AdjustAvailableShares(ctx context.Context, tx store.Execer, id string, delta int64) (int64, error)
	UpdateStatus(ctx context.Context, tx store.Execer, id string, status models.OfferingStatus) error
	ListActiveByChannel(ctx context.Context, channelID string) ([]models.Offering, error)
	List(ctx context.Context, status string) ([]models.Offering, error)
}

type InvestmentStore interface {
	Create(ctx context.Context, tx store.Execer, inv models.Investment) error
	GetByID(ctx context.Context, id string) (models.Investment, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Investment, error)
	GetByTransactionForUpdate(ctx context.Context, tx store.Getter, transactionID string) (models.Investment, error)
	UpdateStatus(ctx context.Context, tx store.Execer, id string, status models.InvestmentStatus, confirmedAt *time.Time) error
	ListConfirmedByOffering(ctx context.Context, offeringID string) ([]models.Investment, error)
	ListByInvestor(ctx context.Context, investorID string) ([]models.Investment, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	PendingTotalByInvestor(ctx context.Context, q store.Getter, investorID string) (int64, error)
}

type PayoutStore interface {
	CreateIfAbsent(ctx context.Context, tx store.Execer, p models.Payout) (bool, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Payout, error)
	MarkCompleted(ctx context.Context, tx store.Execer, id, transactionID string, paidAt time.Time) error
	MarkFailed(ctx context.Context, tx store.Execer, id, reason string) error
	ListByPeriod(ctx context.Context, channelID, revenueMonth string) ([]models.Payout, error)
	ListFailed(ctx context.Context, channelID, revenueMonth string) ([]models.Payout, error)
	ListByInvestor(ctx context.Context, investorID string) ([]models.Payout, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type IdentityStore interface {
	KYCStatus(ctx context.Context, userID string) (models.KYCStatus, error)
	SaveSubmission(ctx context.Context, tx store.Execer, userID, document string) (bool, error)
	SetStatus(ctx context.Context, tx store.Execer, userID string, status models.KYCStatus) (int64, error)
}

// Stores bundles the persistence dependencies of the services.
type Stores struct {
	Wallets      WalletStore
	Ledger       LedgerStore
	Transactions TransactionStore
	BankAccounts BankAccountStore
	Withdrawals  WithdrawalStore
	Offerings    OfferingStore
	Investments  InvestmentStore
	Payouts      PayoutStore
	Audit        AuditStore
	Identity     IdentityStore
}
