package validator

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidRoutingNumber = errors.New("invalid routing number")
	ErrInvalidAccountNumber = errors.New("invalid account number")
	ErrInvalidRevenueMonth  = errors.New("invalid revenue month")
	ErrInvalidName          = errors.New("invalid name")
)

var (
	routingRegex = regexp.MustCompile(`^[0-9]{9}$`)
	accountRegex = regexp.MustCompile(`^[0-9]{4,17}$`)
	monthRegex   = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}$`)
)

func ValidateRoutingNumber(routing string) error {
	if !routingRegex.MatchString(routing) {
		return ErrInvalidRoutingNumber
	}
	return nil
}

func ValidateAccountNumber(account string) error {
	if !accountRegex.MatchString(account) {
		return ErrInvalidAccountNumber
	}
	return nil
}

// ValidateRevenueMonth accepts a settlement period written as YYYY-MM.
func ValidateRevenueMonth(month string) error {
	if !monthRegex.MatchString(month) {
		return ErrInvalidRevenueMonth
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return ErrInvalidRevenueMonth
	}
	return nil
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 120 {
		return ErrInvalidName
	}
	return nil
}
