package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionInput carries the caller-supplied fields for create and update.
type TransactionInput struct {
	Type           TransactionType
	Date           Date
	Period         Period
	Description    string
	Amount         decimal.Decimal
	CategoryID     *int64
	CategoryKind   CategoryKind
	Currency       Currency
	Source         string
	RecurrenceType RecurrenceType
	RecurrenceEnd  Period
}

// Normalize validates the input in place. Nothing is resolved against
// storage here; category existence is checked by the ledger.
func (in *TransactionInput) Normalize(defaultCurrency Currency) error {
	in.Type = TransactionType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	if in.Type == "" {
		return ErrMissingType
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}

	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return ErrEmptyDescription
	}
	if len(in.Description) > 255 {
		return ErrDescriptionTooLong
	}

	amount, err := NormalizeAmount(in.Amount)
	if err != nil {
		return err
	}
	in.Amount = amount

	switch {
	case !in.Date.IsZero():
		in.Date = DateOf(in.Date.Time)
		p := in.Date.Period()
		if !in.Period.IsZero() && !PeriodOf(in.Period.Time).Contains(in.Date) {
			return fmt.Errorf("%w: %s not in %s", ErrDateOutsidePeriod, in.Date, PeriodOf(in.Period.Time))
		}
		in.Period = p
	case !in.Period.IsZero():
		in.Period = PeriodOf(in.Period.Time)
	default:
		return ErrMissingPeriod
	}

	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	in.Currency = Currency(strings.ToUpper(string(in.Currency)))
	if !in.Currency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, in.Currency)
	}

	in.CategoryKind = CategoryKind(strings.ToLower(strings.TrimSpace(string(in.CategoryKind))))
	if in.CategoryKind != "" {
		if !in.CategoryKind.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidCategoryKind, in.CategoryKind)
		}
		if in.CategoryID == nil && !in.CategoryKind.Matches(in.Type) {
			return fmt.Errorf("%w: %s transaction with kind %s", ErrCategoryKindMismatch, in.Type, in.CategoryKind)
		}
	}

	in.Source = strings.TrimSpace(in.Source)

	if in.RecurrenceType == "" {
		in.RecurrenceType = OneTime
	}
	if !in.RecurrenceType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRecurrence, in.RecurrenceType)
	}
	if in.RecurrenceType == Monthly {
		if in.RecurrenceEnd.IsZero() {
			return ErrMissingRecurrenceEnd
		}
		in.RecurrenceEnd = PeriodOf(in.RecurrenceEnd.Time)
		if in.RecurrenceEnd.Before(in.Period.Time) {
			return ErrInvalidRecurrenceRange
		}
		if len(MonthsBetween(in.Period, in.RecurrenceEnd)) > MaxSeriesOccurrences {
			return ErrRecurrenceTooLong
		}
	}

	return nil
}

// ResolveKind applies the category kind sync rule: a referenced category
// dictates the kind, otherwise it is derived from the type.
func (in TransactionInput) ResolveKind(cat *Category) (CategoryKind, error) {
	if cat == nil {
		return DefaultKind(in.Type, in.CategoryKind), nil
	}
	if !cat.Kind.Matches(in.Type) {
		return "", fmt.Errorf("%w: %s transaction with %s category %q", ErrCategoryKindMismatch, in.Type, cat.Kind, cat.Name)
	}
	return cat.Kind, nil
}
