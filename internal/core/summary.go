package core

import "github.com/shopspring/decimal"

// LedgerEntry is the minimal projection of a transaction used for aggregation.
type LedgerEntry struct {
	Period       Period
	Type         TransactionType
	Kind         CategoryKind
	CategoryID   *int64
	CategoryName string
	Amount       decimal.Decimal
}

// Summarize sums income and expense for one tenant and period. Both the
// maintained summary and the live fallback go through it.
func Summarize(tenantID int64, p Period, entries []LedgerEntry) MonthlySummary {
	s := MonthlySummary{
		TenantID: tenantID,
		Period:   p,
		Income:   decimal.Zero,
		Expense:  decimal.Zero,
	}
	for _, e := range entries {
		switch e.Type {
		case Income:
			s.Income = s.Income.Add(e.Amount)
		case Expense:
			s.Expense = s.Expense.Add(e.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expense)
	return s
}

// IsZero reports whether both totals are zero.
func (s MonthlySummary) IsZero() bool {
	return s.Income.IsZero() && s.Expense.IsZero()
}

// Totals is the range summary returned by the read API.
type Totals struct {
	TotalIncome     decimal.Decimal
	TotalExpense    decimal.Decimal
	Balance         decimal.Decimal
	FixedExpense    decimal.Decimal
	VariableExpense decimal.Decimal
}

// MonthPoint is one month of the monthly series.
type MonthPoint struct {
	Period  Period
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name  string
	Total decimal.Decimal
}

// Breakdown groups category totals by direction of money.
type Breakdown struct {
	Income  []CategoryAmount
	Expense []CategoryAmount
}
