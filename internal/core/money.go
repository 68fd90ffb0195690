// Package core provides the ledger's domain types and validation rules.
//
// This file contains helpers for handling monetary amounts. Amounts are
// positive decimal magnitudes kept at two decimal places; the sign is implied
// by the transaction type and never stored.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of decimal places amounts are stored with.
const AmountPlaces = 2

// NormalizeAmount rounds d half-up to two places and rejects values that are
// not strictly positive afterwards.
func NormalizeAmount(d decimal.Decimal) (decimal.Decimal, error) {
	d = d.Round(AmountPlaces)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseDecimal converts a user-entered amount to a normalised magnitude.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs are
// rejected: the transaction type carries the direction of money.
//
// Examples:
//
//	ParseDecimal("12.34")  -> 12.34, nil
//	ParseDecimal("12,34")  -> 12.34, nil
//	ParseDecimal("12.345") -> 12.35, nil (half-up)
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return NormalizeAmount(d)
}

// FormatAmount renders an amount with exactly two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountPlaces)
}
