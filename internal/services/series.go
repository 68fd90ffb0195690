package services

import (
	"ledger/internal/core"
)

// ExpandSeries builds one row per month from base.Period through end, all
// tagged with groupID. When anchor is set each row keeps the anchor's
// day-of-month, clamped to the length of its month.
func ExpandSeries(base core.Transaction, anchor core.Date, end core.Period, groupID string) ([]core.Transaction, error) {
	if end.IsZero() {
		return nil, core.ErrMissingRecurrenceEnd
	}
	months := core.MonthsBetween(core.PeriodOf(base.Period.Time), core.PeriodOf(end.Time))
	if len(months) == 0 {
		return nil, core.ErrInvalidRecurrenceRange
	}
	if len(months) > core.MaxSeriesOccurrences {
		return nil, core.ErrRecurrenceTooLong
	}

	rows := make([]core.Transaction, 0, len(months))
	for _, p := range months {
		row := base
		row.Period = p
		row.Date = core.Date{}
		if !anchor.IsEmpty() {
			row.Date = core.ClampDay(p, anchor.Day())
		}
		row.RecurrenceType = core.Monthly
		row.RecurrenceGroupID = groupID
		rows = append(rows, row)
	}
	return rows, nil
}
