package handlers

import (
	"context"

	"revshare/internal/models"
	"revshare/internal/payments"
	"revshare/internal/services"
	"revshare/internal/store"
)

type LedgerService interface {
	Wallet(ctx context.Context, userID string) (models.Wallet, error)
	History(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error)
	Transactions(ctx context.Context, userID string, txType models.TransactionType, limit, offset int) ([]models.Transaction, error)
	VerifyWallet(ctx context.Context, walletID string) (services.ReplayReport, error)
	VerifyAll(ctx context.Context) ([]services.ReplayReport, int, error)
}

type ComplianceGate interface {
	CheckInvestmentEligibility(ctx context.Context, userID string, amount int64) (services.Eligibility, error)
}

type PaymentService interface {
	Deposit(ctx context.Context, userID string, amount int64) (services.DepositResult, error)
	HandlePaymentEvent(ctx context.Context, evt payments.PaymentEvent) (services.PaymentOutcome, error)
}

type WithdrawalService interface {
	Fee(amount int64) int64
	Request(ctx context.Context, req services.WithdrawalRequest) (models.Withdrawal, error)
	Cancel(ctx context.Context, userID, withdrawalID string) (models.Withdrawal, error)
	Get(ctx context.Context, userID, withdrawalID string) (models.Withdrawal, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Withdrawal, error)
	Approve(ctx context.Context, adminID, withdrawalID string) (models.Withdrawal, error)
	Complete(ctx context.Context, adminID, withdrawalID string) (models.Withdrawal, error)
	Reject(ctx context.Context, adminID, withdrawalID, reason string) (models.Withdrawal, error)
	ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error)
}

type InvestmentService interface {
	Create(ctx context.Context, req services.InvestmentRequest) (services.InvestmentResult, error)
	CreateFromWallet(ctx context.Context, req services.InvestmentRequest) (models.Investment, error)
	Cancel(ctx context.Context, investorID, investmentID string) (models.Investment, error)
	Get(ctx context.Context, investorID, investmentID string) (models.Investment, error)
	ListForInvestor(ctx context.Context, investorID string) ([]models.Investment, error)
}

type BankAccountService interface {
	Add(ctx context.Context, userID string, in services.BankAccountInput) (models.BankAccount, error)
	List(ctx context.Context, userID string) ([]models.BankAccount, error)
	SetDefault(ctx context.Context, userID, accountID string) error
	Delete(ctx context.Context, userID, accountID string) error
	Verify(ctx context.Context, adminID, accountID string, status models.BankAccountStatus) (models.BankAccount, error)
}

type OfferingService interface {
	Create(ctx context.Context, adminID string, in services.OfferingInput) (models.Offering, error)
	SetStatus(ctx context.Context, adminID, offeringID string, status models.OfferingStatus) (models.Offering, error)
	Get(ctx context.Context, offeringID string) (models.Offering, error)
	List(ctx context.Context, status string) ([]models.Offering, error)
}

type KYCService interface {
	Status(ctx context.Context, userID string) (models.KYCStatus, error)
	Submit(ctx context.Context, userID string, doc models.KYCDocument) (models.KYCStatus, error)
	Decide(ctx context.Context, adminID, userID string, status models.KYCStatus) error
}

type SettlementService interface {
	Reconcile(ctx context.Context, actorID string, req services.SettlementRequest) (services.SettlementSummary, error)
	RetryFailedPayouts(ctx context.Context, actorID, channelID, month string) (services.SettlementSummary, error)
	ListPayouts(ctx context.Context, channelID, month string) ([]models.Payout, error)
	ListForInvestor(ctx context.Context, investorID string) ([]models.Payout, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	Get(ctx context.Context, userID string) (models.Admin, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	GrantRole(ctx context.Context, tx store.Execer, adminUserID, role, grantedBy string) error
	RevokeRole(ctx context.Context, tx store.Execer, adminUserID, role string) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, entityType string, limit, offset int) ([]models.AuditLog, error)
}

// Services groups the core services the API exposes.
type Services struct {
	Ledger       LedgerService
	Compliance   ComplianceGate
	Payments     PaymentService
	Withdrawals  WithdrawalService
	Investments  InvestmentService
	BankAccounts BankAccountService
	Offerings    OfferingService
	KYC          KYCService
	Settlement   SettlementService
}
