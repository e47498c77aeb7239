// Package money handles currency amounts as exact decimals. Balances are
// never accumulated through floating-point addition; every amount moves
// through decimal.Decimal and the database NUMERIC column is scanned as text.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount format")
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// ParseAmount parses a deposit amount from its wire representation. It
// rejects non-numeric input (including NaN and infinities, which never parse
// as decimals), non-positive values, and more than two decimal places of
// currency precision.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.Exponent() < -2 {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}

	return d, nil
}

// ParseBalance parses a stored balance, which unlike a deposit amount may be
// zero.
func ParseBalance(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Format renders an amount with exactly two decimal places for API
// responses.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
