package http

import (
	"time"

	"ledger/internal/core"
)

// Amounts travel as decimal strings with two places.

type transactionJSON struct {
	ID                int64   `json:"id"`
	Type              string  `json:"type"`
	Date              string  `json:"date,omitempty"`
	Period            string  `json:"period"`
	Description       string  `json:"description"`
	Amount            string  `json:"amount"`
	Currency          string  `json:"currency"`
	Source            string  `json:"source,omitempty"`
	CategoryID        *int64  `json:"categoryId"`
	CategoryKind      string  `json:"categoryKind,omitempty"`
	RecurrenceType    string  `json:"recurrenceType,omitempty"`
	RecurrenceGroupID string  `json:"recurrenceGroupId,omitempty"`
	CreatedAt         *string `json:"createdAt,omitempty"`
	UpdatedAt         *string `json:"updatedAt,omitempty"`
}

func timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:                t.ID,
		Type:              string(t.Type),
		Date:              t.Date.String(),
		Period:            t.Period.String(),
		Description:       t.Description,
		Amount:            core.FormatAmount(t.Amount),
		Currency:          string(t.Currency),
		Source:            t.Source,
		CategoryID:        t.CategoryID,
		CategoryKind:      string(t.CategoryKind),
		RecurrenceType:    string(t.RecurrenceType),
		RecurrenceGroupID: t.RecurrenceGroupID,
		CreatedAt:         timestamp(t.CreatedAt),
		UpdatedAt:         timestamp(t.UpdatedAt),
	}
}

type categoryJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{ID: c.ID, Name: c.Name, Kind: string(c.Kind)}
}

type totalsJSON struct {
	From            string `json:"from"`
	To              string `json:"to"`
	TotalIncome     string `json:"totalIncome"`
	TotalExpense    string `json:"totalExpense"`
	Balance         string `json:"balance"`
	FixedExpense    string `json:"fixedExpense"`
	VariableExpense string `json:"variableExpense"`
}

func toTotalsJSON(from, to core.Period, t core.Totals) totalsJSON {
	return totalsJSON{
		From:            from.String(),
		To:              to.String(),
		TotalIncome:     core.FormatAmount(t.TotalIncome),
		TotalExpense:    core.FormatAmount(t.TotalExpense),
		Balance:         core.FormatAmount(t.Balance),
		FixedExpense:    core.FormatAmount(t.FixedExpense),
		VariableExpense: core.FormatAmount(t.VariableExpense),
	}
}

type monthPointJSON struct {
	Period  string `json:"period"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Net     string `json:"net"`
}

func toSeriesJSON(points []core.MonthPoint) []monthPointJSON {
	out := make([]monthPointJSON, 0, len(points))
	for _, p := range points {
		out = append(out, monthPointJSON{
			Period:  p.Period.String(),
			Income:  core.FormatAmount(p.Income),
			Expense: core.FormatAmount(p.Expense),
			Net:     core.FormatAmount(p.Net),
		})
	}
	return out
}

type categoryAmountJSON struct {
	Name  string `json:"name"`
	Total string `json:"total"`
}

type breakdownJSON struct {
	Income  []categoryAmountJSON `json:"income"`
	Expense []categoryAmountJSON `json:"expense"`
}

func toAmountsJSON(in []core.CategoryAmount) []categoryAmountJSON {
	out := make([]categoryAmountJSON, 0, len(in))
	for _, c := range in {
		out = append(out, categoryAmountJSON{Name: c.Name, Total: core.FormatAmount(c.Total)})
	}
	return out
}

func toBreakdownJSON(b core.Breakdown) breakdownJSON {
	return breakdownJSON{Income: toAmountsJSON(b.Income), Expense: toAmountsJSON(b.Expense)}
}
