package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/storage"
)

// AuditWorker checks stored monthly summaries against the transactions and
// rewrites any that drifted. It is driven by change messages from the broker
// and by periodic sweeps.
type AuditWorker struct {
	storage    *storage.SQLiteRepository
	aggregates *services.AggregateMaintainer
}

func NewAuditWorker(storage *storage.SQLiteRepository, aggregates *services.AggregateMaintainer) *AuditWorker {
	if aggregates == nil {
		aggregates = &services.AggregateMaintainer{}
	}
	return &AuditWorker{storage: storage, aggregates: aggregates}
}

// HandleLedgerChange verifies every period named in the message.
func (w *AuditWorker) HandleLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"tenant_id", msg.TenantID,
		"operation", msg.Operation,
		"periods", len(msg.Periods))

	for _, raw := range msg.Periods {
		p, err := core.ParsePeriod(raw)
		if err != nil || p.IsZero() {
			slog.WarnContext(ctx, "Skipping invalid period in message",
				"tenant_id", msg.TenantID,
				"period", raw)
			continue
		}
		if _, err := w.Verify(ctx, msg.TenantID, p); err != nil {
			return fmt.Errorf("verify %s: %w", p, err)
		}
	}
	return nil
}

// Verify compares one stored summary with the live totals and recomputes it
// when they differ. It reports whether a repair was made.
func (w *AuditWorker) Verify(ctx context.Context, tenantID int64, p core.Period) (bool, error) {
	repaired := false
	err := w.storage.WithTx(ctx, func(q *storage.Queries) error {
		stored, ok, err := q.GetSummary(ctx, tenantID, p)
		if err != nil {
			return err
		}
		live, err := services.Live(ctx, q, tenantID, p)
		if err != nil {
			return err
		}
		if ok && stored.Income.Equal(live.Income) && stored.Expense.Equal(live.Expense) && stored.Balance.Equal(live.Balance) {
			return nil
		}
		if !ok && live.IsZero() {
			return nil
		}

		slog.WarnContext(ctx, "Summary drift detected",
			"tenant_id", tenantID,
			"period", p.String(),
			"stored_income", core.FormatAmount(stored.Income),
			"stored_expense", core.FormatAmount(stored.Expense),
			"live_income", core.FormatAmount(live.Income),
			"live_expense", core.FormatAmount(live.Expense))

		if _, err := w.aggregates.Recompute(ctx, q, tenantID, p); err != nil {
			return err
		}
		repaired = true
		return nil
	})
	return repaired, err
}

// Sweep verifies every active period of every tenant.
func (w *AuditWorker) Sweep(ctx context.Context) (checked, repaired int, err error) {
	periods, err := w.storage.ActivePeriods(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list active periods: %w", err)
	}

	for _, tp := range periods {
		if err := ctx.Err(); err != nil {
			return checked, repaired, err
		}
		fixed, err := w.Verify(ctx, tp.TenantID, tp.Period)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to verify summary",
				"tenant_id", tp.TenantID,
				"period", tp.Period.String(),
				"error", err)
			continue
		}
		checked++
		if fixed {
			repaired++
		}
	}

	slog.InfoContext(ctx, "Summary sweep completed",
		"checked", checked,
		"repaired", repaired)
	return checked, repaired, nil
}
