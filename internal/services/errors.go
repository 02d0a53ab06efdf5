package services

import (
	"database/sql"
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindStateConflict     Kind = "state_conflict"
	KindCompliance        Kind = "compliance"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindDuplicate         Kind = "duplicate"
	KindNotFound          Kind = "not_found"
)

// Error is a business failure the caller can show to the user. Code is a
// stable machine-readable identifier, Message is human readable.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

// Is matches on Kind, and on Code as well when the target carries one, so
// errors.Is(err, ErrStateConflict) matches every state conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func newError(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrStateConflict     = &Error{Kind: KindStateConflict}
	ErrCompliance        = &Error{Kind: KindCompliance}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Code: "insufficient_funds", Message: "insufficient available balance"}
	ErrDuplicate         = &Error{Kind: KindDuplicate}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

var (
	ErrInvalidAmount          = &Error{Kind: KindValidation, Code: "invalid_amount", Message: "amount must be positive"}
	ErrAmountOutOfRange       = &Error{Kind: KindValidation, Code: "amount_out_of_range", Message: "amount is outside the allowed range"}
	ErrBankAccountUnverified  = &Error{Kind: KindValidation, Code: "bank_account_unverified", Message: "bank account is not verified"}
	ErrBankAccountLimit       = &Error{Kind: KindValidation, Code: "bank_account_limit", Message: "bank account limit reached"}
	ErrInsufficientShares     = &Error{Kind: KindValidation, Code: "insufficient_shares", Message: "not enough shares available"}
	ErrReasonRequired         = &Error{Kind: KindValidation, Code: "reason_required", Message: "a reason is required"}
	ErrWithdrawalInFlight     = &Error{Kind: KindStateConflict, Code: "withdrawal_in_flight", Message: "another withdrawal is already in progress"}
	ErrInvalidTransition      = &Error{Kind: KindStateConflict, Code: "invalid_transition", Message: "operation not allowed in the current state"}
	ErrOfferingNotActive      = &Error{Kind: KindStateConflict, Code: "offering_not_active", Message: "offering is not active"}
	ErrBankAccountInUse       = &Error{Kind: KindStateConflict, Code: "bank_account_in_use", Message: "bank account has a withdrawal in progress"}
	ErrSettlementRunning      = &Error{Kind: KindStateConflict, Code: "settlement_running", Message: "settlement for this period is already running"}
	ErrKYCNotVerified         = &Error{Kind: KindCompliance, Code: "kyc_not_verified", Message: "identity verification is required"}
	ErrSingleInvestmentCap    = &Error{Kind: KindCompliance, Code: "single_investment_cap", Message: "amount exceeds the single investment limit"}
	ErrCumulativeCap          = &Error{Kind: KindCompliance, Code: "cumulative_investment_cap", Message: "amount exceeds the cumulative investment limit"}
	ErrDuplicateBankAccount   = &Error{Kind: KindDuplicate, Code: "duplicate_bank_account", Message: "bank account already added"}
	ErrDuplicateKYCSubmission = &Error{Kind: KindDuplicate, Code: "kyc_already_verified", Message: "identity already verified"}
)

func notFound(entity string) *Error {
	return newError(KindNotFound, entity+"_not_found", "%s not found", entity)
}

func validation(code, format string, args ...any) *Error {
	return newError(KindValidation, code, format, args...)
}

// KindOf returns the kind of a business error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// lookup turns sql.ErrNoRows from a store into a NotFound error.
func lookup(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(entity)
	}
	return err
}
