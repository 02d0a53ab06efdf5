// Package money keeps amounts as int64 minor units (cents) and does rate
// arithmetic in decimal so nothing passes through float64.
package money

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

const minorDigits = 2

var (
	hundred = decimal.NewFromInt(100)
	// Plain positional notation only; exponents are rejected.
	plainNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)
	maxMajor    = decimal.New(1<<63-1, -minorDigits)
)

// ParseMinor reads a major-unit string such as "492.5" as minor units.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if !plainNumber.MatchString(trimmed) {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(strings.TrimPrefix(trimmed, "+"))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !value.Equal(value.Truncate(minorDigits)) {
		return 0, ErrTooManyDecimals
	}
	if value.Abs().GreaterThan(maxMajor) {
		return 0, ErrInvalidAmount
	}
	return value.Shift(minorDigits).IntPart(), nil
}

func FormatMinor(value int64) string {
	return decimal.New(value, -minorDigits).StringFixed(minorDigits)
}

// PercentOf returns percent% of amountMinor rounded half away from zero to
// the minor unit. 1.5% of 50000 is 750.
func PercentOf(amountMinor int64, percent decimal.Decimal) int64 {
	return RoundMinor(decimal.NewFromInt(amountMinor).Mul(percent).Div(hundred))
}

// Scale multiplies a minor-unit amount by a fraction without rounding.
func Scale(amountMinor int64, fraction decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(amountMinor).Mul(fraction)
}

func RoundMinor(value decimal.Decimal) int64 {
	return value.Round(0).IntPart()
}
