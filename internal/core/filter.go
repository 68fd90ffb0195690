package core

import (
	"errors"
	"fmt"
)

// MaxReportMonths bounds the month range of one read.
const MaxReportMonths = 240

var ErrInvalidRange = errors.New("invalid month range")

// CheckRange validates an inclusive month range.
func CheckRange(from, to Period) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidRange)
	}
	n := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month()) + 1
	if n <= 0 {
		return fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from, to)
	}
	if n > MaxReportMonths {
		return fmt.Errorf("%w: more than %d months", ErrInvalidRange, MaxReportMonths)
	}
	return nil
}

// TransactionFilter narrows a transaction listing. Zero fields are ignored.
// From/To bound the effective date; MonthFrom/MonthTo bound the period.
type TransactionFilter struct {
	From         Date
	To           Date
	MonthFrom    Period
	MonthTo      Period
	Type         TransactionType
	CategoryID   *int64
	CategoryKind CategoryKind
	Text         string
	Limit        int
}

// DuplicateKey holds the fields two transactions must share to be treated as
// the same entry. Description is compared case-insensitively.
type DuplicateKey struct {
	Type          TransactionType
	Amount        string
	Currency      Currency
	EffectiveDate Date
	Description   string
}

// KeyOf builds the duplicate key of a stored or candidate transaction.
func KeyOf(t Transaction) DuplicateKey {
	return DuplicateKey{
		Type:          t.Type,
		Amount:        FormatAmount(t.Amount),
		Currency:      t.Currency,
		EffectiveDate: t.EffectiveDate(),
		Description:   t.Description,
	}
}
