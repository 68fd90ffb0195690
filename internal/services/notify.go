package services

import (
	"context"
	"log/slog"

	"ledger/internal/core"
)

// Operations reported in a Change.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpImport = "import"
)

// Change describes one committed ledger mutation.
type Change struct {
	TenantID  int64
	Operation string
	Periods   []core.Period
}

// ChangeNotifier is told about every committed mutation. It runs after the
// commit, so an error cannot undo the change.
type ChangeNotifier interface {
	LedgerChanged(ctx context.Context, c Change) error
}

// NotifierFunc adapts a function to ChangeNotifier.
type NotifierFunc func(ctx context.Context, c Change) error

func (f NotifierFunc) LedgerChanged(ctx context.Context, c Change) error {
	return f(ctx, c)
}

// Notifiers fans a change out to several notifiers.
type Notifiers []ChangeNotifier

func (ns Notifiers) LedgerChanged(ctx context.Context, c Change) error {
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.LedgerChanged(ctx, c); err != nil {
			slog.ErrorContext(ctx, "Change notification failed",
				"tenant_id", c.TenantID,
				"operation", c.Operation,
				"error", err)
		}
	}
	return nil
}

func notify(ctx context.Context, n ChangeNotifier, c Change) {
	if n == nil || len(c.Periods) == 0 {
		return
	}
	if err := n.LedgerChanged(ctx, c); err != nil {
		slog.ErrorContext(ctx, "Change notification failed",
			"tenant_id", c.TenantID,
			"operation", c.Operation,
			"error", err)
	}
}
