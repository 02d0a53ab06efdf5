package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	Currency       string     `db:"currency" json:"currency"`
	Balance        int64      `db:"balance" json:"balance"`
	PendingBalance int64      `db:"pending_balance" json:"pending_balance"`
	LockedBalance  int64      `db:"locked_balance" json:"locked_balance"`
	TotalDeposited int64      `db:"total_deposited" json:"total_deposited"`
	TotalInvested  int64      `db:"total_invested" json:"total_invested"`
	TotalWithdrawn int64      `db:"total_withdrawn" json:"total_withdrawn"`
	TotalEarnings  int64      `db:"total_earnings" json:"total_earnings"`
	LastActivityAt *time.Time `db:"last_activity_at" json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type EntryType string

const (
	EntryDeposit    EntryType = "DEPOSIT"
	EntryInvestment EntryType = "INVESTMENT"
	EntryWithdrawal EntryType = "WITHDRAWAL"
	EntryLock       EntryType = "LOCK"
	EntryUnlock     EntryType = "UNLOCK"
	EntryPayout     EntryType = "PAYOUT"
	EntryFee        EntryType = "FEE"
)

type LedgerEntry struct {
	ID            string    `db:"id" json:"id"`
	WalletID      string    `db:"wallet_id" json:"wallet_id"`
	Seq           int64     `db:"seq" json:"seq"`
	EntryType     EntryType `db:"entry_type" json:"entry_type"`
	Debit         int64     `db:"debit" json:"debit"`
	Credit        int64     `db:"credit" json:"credit"`
	Balance       int64     `db:"balance" json:"balance"`
	Description   string    `db:"description" json:"description"`
	ReferenceType string    `db:"reference_type" json:"reference_type"`
	ReferenceID   string    `db:"reference_id" json:"reference_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionInvestment TransactionType = "INVESTMENT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	TransactionFee        TransactionType = "FEE"
	TransactionPayout     TransactionType = "PAYOUT"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
	TransactionCancelled TransactionStatus = "CANCELLED"
)

type Transaction struct {
	ID              string            `db:"id" json:"id"`
	UserID          *string           `db:"user_id" json:"user_id,omitempty"`
	WalletID        *string           `db:"wallet_id" json:"wallet_id,omitempty"`
	Type            TransactionType   `db:"type" json:"type"`
	Status          TransactionStatus `db:"status" json:"status"`
	Amount          int64             `db:"amount" json:"amount"`
	Currency        string            `db:"currency" json:"currency"`
	Description     string            `db:"description" json:"description"`
	Metadata        string            `db:"metadata" json:"metadata"`
	ExternalRef     *string           `db:"external_ref" json:"external_ref,omitempty"`
	ClientRequestID *string           `db:"client_request_id" json:"client_request_id,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

type BankAccountStatus string

const (
	BankAccountPending  BankAccountStatus = "PENDING"
	BankAccountVerified BankAccountStatus = "VERIFIED"
	BankAccountRejected BankAccountStatus = "REJECTED"
)

// MaxBankAccounts per wallet.
const MaxBankAccounts = 5

type BankAccount struct {
	ID            string            `db:"id" json:"id"`
	WalletID      string            `db:"wallet_id" json:"wallet_id"`
	HolderName    string            `db:"holder_name" json:"holder_name"`
	BankName      string            `db:"bank_name" json:"bank_name"`
	RoutingNumber string            `db:"routing_number" json:"routing_number"`
	Last4         string            `db:"last4" json:"last4"`
	AccountHash   string            `db:"account_hash" json:"-"`
	IsDefault     bool              `db:"is_default" json:"is_default"`
	IsVerified    bool              `db:"is_verified" json:"is_verified"`
	Status        BankAccountStatus `db:"status" json:"status"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "PENDING"
	WithdrawalProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalCompleted  WithdrawalStatus = "COMPLETED"
	WithdrawalFailed     WithdrawalStatus = "FAILED"
	WithdrawalCancelled  WithdrawalStatus = "CANCELLED"
)

func (s WithdrawalStatus) Terminal() bool {
	switch s {
	case WithdrawalCompleted, WithdrawalFailed, WithdrawalCancelled:
		return true
	}
	return false
}

type Withdrawal struct {
	ID            string           `db:"id" json:"id"`
	UserID        string           `db:"user_id" json:"user_id"`
	WalletID      string           `db:"wallet_id" json:"wallet_id"`
	BankAccountID string           `db:"bank_account_id" json:"bank_account_id"`
	TransactionID string           `db:"transaction_id" json:"transaction_id"`
	Amount        int64            `db:"amount" json:"amount"`
	Fee           int64            `db:"fee" json:"fee"`
	NetAmount     int64            `db:"net_amount" json:"net_amount"`
	Status        WithdrawalStatus `db:"status" json:"status"`
	FailureReason *string          `db:"failure_reason" json:"failure_reason,omitempty"`
	RequestedAt   time.Time        `db:"requested_at" json:"requested_at"`
	ProcessedAt   *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
	CompletedAt   *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

type OfferingStatus string

const (
	OfferingDraft  OfferingStatus = "DRAFT"
	OfferingActive OfferingStatus = "ACTIVE"
	OfferingClosed OfferingStatus = "CLOSED"
)

type Offering struct {
	ID              string          `db:"id" json:"id"`
	ChannelID       string          `db:"channel_id" json:"channel_id"`
	Title           string          `db:"title" json:"title"`
	TotalShares     int64           `db:"total_shares" json:"total_shares"`
	AvailableShares int64           `db:"available_shares" json:"available_shares"`
	SharePercentage decimal.Decimal `db:"share_percentage" json:"share_percentage"`
	PricePerShare   int64           `db:"price_per_share" json:"price_per_share"`
	MinInvestment   int64           `db:"min_investment" json:"min_investment"`
	MaxInvestment   int64           `db:"max_investment" json:"max_investment"`
	Status          OfferingStatus  `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

type InvestmentStatus string

const (
	InvestmentPending   InvestmentStatus = "PENDING"
	InvestmentConfirmed InvestmentStatus = "CONFIRMED"
	InvestmentFailed    InvestmentStatus = "FAILED"
	InvestmentCancelled InvestmentStatus = "CANCELLED"
)

type FundingSource string

const (
	FundingExternal FundingSource = "EXTERNAL"
	FundingWallet   FundingSource = "WALLET"
)

type Investment struct {
	ID            string           `db:"id" json:"id"`
	InvestorID    string           `db:"investor_id" json:"investor_id"`
	OfferingID    string           `db:"offering_id" json:"offering_id"`
	TransactionID string           `db:"transaction_id" json:"transaction_id"`
	Shares        int64            `db:"shares" json:"shares"`
	TotalAmount   int64            `db:"total_amount" json:"total_amount"`
	Status        InvestmentStatus `db:"status" json:"status"`
	FundingSource FundingSource    `db:"funding_source" json:"funding_source"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	ConfirmedAt   *time.Time       `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "PENDING"
	PayoutCompleted PayoutStatus = "COMPLETED"
	PayoutFailed    PayoutStatus = "FAILED"
)

type Payout struct {
	ID            string       `db:"id" json:"id"`
	InvestmentID  string       `db:"investment_id" json:"investment_id"`
	InvestorID    string       `db:"investor_id" json:"investor_id"`
	OfferingID    string       `db:"offering_id" json:"offering_id"`
	RevenueMonth  string       `db:"revenue_month" json:"revenue_month"`
	Amount        int64        `db:"amount" json:"amount"`
	Status        PayoutStatus `db:"status" json:"status"`
	FailureReason *string      `db:"failure_reason" json:"failure_reason,omitempty"`
	TransactionID *string      `db:"transaction_id" json:"transaction_id,omitempty"`
	PaidAt        *time.Time   `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorUserID *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Data        string    `db:"data" json:"data"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Admin is an operator allowed onto the /admin routes. Super admins hold
// every role implicitly, so Roles lists explicit grants only.
type Admin struct {
	UserID    string    `db:"user_id" json:"user_id"`
	IsSuper   bool      `db:"is_super" json:"is_super"`
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Roles     []string  `db:"-" json:"roles"`
}
