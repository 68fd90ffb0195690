package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	KindIncome   CategoryKind = "income"
	KindFixed    CategoryKind = "fixed"
	KindVariable CategoryKind = "variable"

	USD Currency = "USD"
	BRL Currency = "BRL"
	EUR Currency = "EUR"

	OneTime RecurrenceType = "one_time"
	Monthly RecurrenceType = "monthly"
)

// MaxSeriesOccurrences bounds how many monthly rows a single series may create.
const MaxSeriesOccurrences = 120

type (
	TransactionType string
	CategoryKind    string
	Currency        string
	RecurrenceType  string

	// Date is an optional calendar day. The zero value means "no date".
	Date struct {
		time.Time
	}

	Category struct {
		ID       int64
		TenantID int64
		Name     string
		Kind     CategoryKind
	}

	Transaction struct {
		ID                int64
		TenantID          int64
		Type              TransactionType
		Date              Date
		Period            Period
		Description       string
		Amount            decimal.Decimal
		Currency          Currency
		Source            string
		CategoryID        *int64
		CategoryKind      CategoryKind
		RecurrenceType    RecurrenceType
		RecurrenceGroupID string // empty when the row is not part of a series
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	// MonthlySummary is the denormalised aggregate for one tenant and period.
	MonthlySummary struct {
		TenantID int64
		Period   Period
		Income   decimal.Decimal
		Expense  decimal.Decimal
		Balance  decimal.Decimal
	}
)

var (
	ErrMissingType            = errors.New("missing transaction type")
	ErrInvalidType            = errors.New("invalid transaction type")
	ErrEmptyDescription       = errors.New("empty description")
	ErrDescriptionTooLong     = errors.New("description too long (max 255 characters)")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrMissingPeriod          = errors.New("missing date or period")
	ErrDateOutsidePeriod      = errors.New("date falls outside period")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrInvalidCategoryKind    = errors.New("invalid category kind")
	ErrInvalidRecurrence      = errors.New("invalid recurrence type")
	ErrMissingRecurrenceEnd   = errors.New("missing recurrence end month")
	ErrInvalidRecurrenceRange = errors.New("recurrence end month is before the anchor month")
	ErrRecurrenceTooLong      = fmt.Errorf("recurrence exceeds %d occurrences", MaxSeriesOccurrences)
	ErrCategoryNotFound       = errors.New("category not found")
	ErrCategoryKindMismatch   = errors.New("category kind does not match transaction type")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrEmptyCategoryName      = errors.New("empty category name")
	ErrDuplicateCategory      = errors.New("category already exists")
	ErrMissingTenant          = errors.New("missing tenant")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (k CategoryKind) Valid() bool {
	switch k {
	case KindIncome, KindFixed, KindVariable:
		return true
	}
	return false
}

// Matches reports whether a category of this kind may be used by a
// transaction of type t.
func (k CategoryKind) Matches(t TransactionType) bool {
	if t == Income {
		return k == KindIncome
	}
	return k == KindFixed || k == KindVariable
}

func (c Currency) Valid() bool {
	switch c {
	case USD, BRL, EUR:
		return true
	}
	return false
}

// ParseCurrency accepts ISO codes and the common symbols.
func ParseCurrency(s string) (Currency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USD", "US$", "$":
		return USD, nil
	case "BRL", "R$":
		return BRL, nil
	case "EUR", "€":
		return EUR, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
}

func (r RecurrenceType) Valid() bool {
	return r == OneTime || r == Monthly
}

// DefaultKind derives the category kind for a transaction that has no
// category, honouring the caller's kind only when it agrees with the type.
func DefaultKind(t TransactionType, requested CategoryKind) CategoryKind {
	if t == Income {
		return KindIncome
	}
	if requested == KindFixed || requested == KindVariable {
		return requested
	}
	return KindVariable
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO YYYY-MM-DD day. An empty string is the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" when empty.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Period returns the month bucket the date belongs to.
func (d Date) Period() Period {
	return PeriodOf(d.Time)
}

// EffectiveDate is the explicit date when present, otherwise the period start.
func (t Transaction) EffectiveDate() Date {
	if !t.Date.IsZero() {
		return t.Date
	}
	return Date{Time: t.Period.Time}
}
