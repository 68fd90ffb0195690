package amqp

import (
	"context"

	"ledger/internal/services"
)

// Publisher is the part of Client the notifier needs.
type Publisher interface {
	PublishLedgerChange(ctx context.Context, msg *LedgerChangeMessage) error
}

// ChangeNotifier forwards committed ledger changes to the broker.
type ChangeNotifier struct {
	Publisher Publisher
}

func (n ChangeNotifier) LedgerChanged(ctx context.Context, c services.Change) error {
	periods := make([]string, 0, len(c.Periods))
	for _, p := range c.Periods {
		periods = append(periods, p.String())
	}
	return n.Publisher.PublishLedgerChange(ctx, NewLedgerChangeMessage(c.TenantID, c.Operation, periods))
}
