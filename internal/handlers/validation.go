package handlers

import (
	"errors"
	"strings"

	"revshare/internal/models"
	"revshare/internal/money"

	"github.com/shopspring/decimal"
)

var errInvalidAmount = errors.New("invalid amount")
var errInvalidPercentage = errors.New("invalid percentage")

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

// parseOptionalMinor treats an empty string as zero.
func parseOptionalMinor(raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	amount, err := money.ParseMinor(raw)
	if err != nil || amount < 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

// parsePercentage reads a fraction such as "0.10" with at most six
// decimal places.
func parsePercentage(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !value.IsPositive() {
		return decimal.Zero, errInvalidPercentage
	}
	if value.Exponent() < -6 {
		return decimal.Zero, errInvalidPercentage
	}
	return value, nil
}

// parseTransactionType accepts an empty filter as "all types".
func parseTransactionType(raw string) (models.TransactionType, bool) {
	txType := models.TransactionType(strings.ToUpper(strings.TrimSpace(raw)))
	switch txType {
	case "", models.TransactionDeposit, models.TransactionInvestment, models.TransactionWithdrawal,
		models.TransactionFee, models.TransactionPayout:
		return txType, true
	}
	return "", false
}

func parseWithdrawalStatus(raw string) (models.WithdrawalStatus, bool) {
	status := models.WithdrawalStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case models.WithdrawalPending, models.WithdrawalProcessing, models.WithdrawalCompleted,
		models.WithdrawalFailed, models.WithdrawalCancelled:
		return status, true
	}
	return "", false
}
