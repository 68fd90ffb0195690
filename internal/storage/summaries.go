package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger/internal/core"
)

// PeriodEntries returns the aggregation projection of every transaction in
// the inclusive period range.
func (q *Queries) PeriodEntries(ctx context.Context, tenantID int64, from, to core.Period) ([]core.LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT t.period, t.type, t.category_kind, t.category_id, COALESCE(c.name, ''), t.amount
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.tenant_id = ? AND t.period >= ? AND t.period <= ?
		ORDER BY t.period, t.id`, tenantID, from.Key(), to.Key())
	if err != nil {
		return nil, fmt.Errorf("period entries: %w", err)
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		var (
			e                 core.LedgerEntry
			period, typ, kind string
			categoryID        sql.NullInt64
		)
		if err := rows.Scan(&period, &typ, &kind, &categoryID, &e.CategoryName, &e.Amount); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Period, err = core.ParsePeriod(period); err != nil {
			return nil, err
		}
		e.Type = core.TransactionType(typ)
		e.Kind = core.CategoryKind(kind)
		if categoryID.Valid {
			id := categoryID.Int64
			e.CategoryID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertSummary replaces the stored totals for the summary's tenant and period.
func (q *Queries) UpsertSummary(ctx context.Context, s core.MonthlySummary) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO monthly_summaries (tenant_id, period, income, expense, balance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, period) DO UPDATE SET
			income = excluded.income,
			expense = excluded.expense,
			balance = excluded.balance,
			updated_at = excluded.updated_at`,
		s.TenantID, s.Period.Key(), core.FormatAmount(s.Income), core.FormatAmount(s.Expense),
		core.FormatAmount(s.Balance), q.timestamp())
	if err != nil {
		return fmt.Errorf("upsert summary %s: %w", s.Period, err)
	}
	return nil
}

// GetSummary reports false when no summary row exists.
func (q *Queries) GetSummary(ctx context.Context, tenantID int64, p core.Period) (core.MonthlySummary, bool, error) {
	s := core.MonthlySummary{TenantID: tenantID, Period: p}
	err := q.db.QueryRowContext(ctx, `
		SELECT income, expense, balance FROM monthly_summaries WHERE tenant_id = ? AND period = ?`,
		tenantID, p.Key()).Scan(&s.Income, &s.Expense, &s.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("get summary %s: %w", p, err)
	}
	return s, true, nil
}

// SummaryRange returns the stored summaries within the inclusive range.
func (q *Queries) SummaryRange(ctx context.Context, tenantID int64, from, to core.Period) ([]core.MonthlySummary, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT period, income, expense, balance FROM monthly_summaries
		WHERE tenant_id = ? AND period >= ? AND period <= ?
		ORDER BY period`, tenantID, from.Key(), to.Key())
	if err != nil {
		return nil, fmt.Errorf("summary range: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlySummary
	for rows.Next() {
		s := core.MonthlySummary{TenantID: tenantID}
		var period string
		if err := rows.Scan(&period, &s.Income, &s.Expense, &s.Balance); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if s.Period, err = core.ParsePeriod(period); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TenantPeriod names one month of one tenant's ledger.
type TenantPeriod struct {
	TenantID int64
	Period   core.Period
}

// ActivePeriods lists every month that has transactions or a stored summary,
// across all tenants, oldest first.
func (q *Queries) ActivePeriods(ctx context.Context) ([]TenantPeriod, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT tenant_id, period FROM transactions
		UNION
		SELECT tenant_id, period FROM monthly_summaries
		ORDER BY tenant_id, period`)
	if err != nil {
		return nil, fmt.Errorf("active periods: %w", err)
	}
	defer rows.Close()

	var out []TenantPeriod
	for rows.Next() {
		var (
			tp     TenantPeriod
			period string
		)
		if err := rows.Scan(&tp.TenantID, &period); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		if tp.Period, err = core.ParsePeriod(period); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}
