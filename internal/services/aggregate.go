package services

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/core"
	"ledger/internal/storage"
)

// AggregateMaintainer keeps monthly_summaries equal to the live totals. It
// always runs on the caller's Queries so the recompute commits or rolls back
// together with the mutation that triggered it.
type AggregateMaintainer struct {
	// observe, when set, sees every recomputed period.
	observe func(tenantID int64, p core.Period)
}

// Recompute sums every transaction of the tenant in p and overwrites the
// stored summary with the result.
func (m *AggregateMaintainer) Recompute(ctx context.Context, q *storage.Queries, tenantID int64, p core.Period) (core.MonthlySummary, error) {
	p = core.PeriodOf(p.Time)
	s, err := Live(ctx, q, tenantID, p)
	if err != nil {
		return core.MonthlySummary{}, err
	}
	if err := q.UpsertSummary(ctx, s); err != nil {
		return core.MonthlySummary{}, err
	}
	if m.observe != nil {
		m.observe(tenantID, p)
	}
	slog.DebugContext(ctx, "Summary recomputed",
		"tenant_id", tenantID,
		"period", p.String(),
		"income", core.FormatAmount(s.Income),
		"expense", core.FormatAmount(s.Expense))
	return s, nil
}

// RecomputePeriods recomputes each distinct period once, oldest first.
func (m *AggregateMaintainer) RecomputePeriods(ctx context.Context, q *storage.Queries, tenantID int64, periods []core.Period) error {
	for _, p := range core.UniquePeriods(periods) {
		if _, err := m.Recompute(ctx, q, tenantID, p); err != nil {
			return fmt.Errorf("recompute %s: %w", p, err)
		}
	}
	return nil
}

// Live computes the totals of one period straight from the transactions.
func Live(ctx context.Context, q *storage.Queries, tenantID int64, p core.Period) (core.MonthlySummary, error) {
	entries, err := q.PeriodEntries(ctx, tenantID, p, p)
	if err != nil {
		return core.MonthlySummary{}, err
	}
	return core.Summarize(tenantID, p, entries), nil
}
