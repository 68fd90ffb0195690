package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/importer"
	"ledger/internal/storage"
)

// LedgerService runs every manual transaction mutation as one database
// transaction: the rows change, the touched periods are recomputed and only
// then does the transaction commit.
type LedgerService struct {
	repo            *storage.SQLiteRepository
	aggregates      *AggregateMaintainer
	notifier        ChangeNotifier
	defaultCurrency core.Currency
	newGroupID      func() string
}

func NewLedgerService(repo *storage.SQLiteRepository, aggregates *AggregateMaintainer, notifier ChangeNotifier, defaultCurrency core.Currency) *LedgerService {
	if aggregates == nil {
		aggregates = &AggregateMaintainer{}
	}
	return &LedgerService{
		repo:            repo,
		aggregates:      aggregates,
		notifier:        notifier,
		defaultCurrency: defaultCurrency,
		newGroupID:      func() string { return uuid.NewString() },
	}
}

// CreateResult carries the id of a single row, or the group id and size of a
// monthly series.
type CreateResult struct {
	ID                int64
	RecurrenceGroupID string
	Count             int
	Periods           []core.Period
}

type UpdateResult struct {
	SeriesUpdated bool
	Updated       int64
	Periods       []core.Period
}

type DeleteResult struct {
	SeriesDeleted bool
	Deleted       int64
	Periods       []core.Period
}

func checkTenant(tenantID int64) error {
	if tenantID <= 0 {
		return core.ErrMissingTenant
	}
	return nil
}

// resolveCategory loads the referenced category and applies the kind sync rule.
func resolveCategory(ctx context.Context, q *storage.Queries, tenantID int64, in core.TransactionInput) (core.CategoryKind, error) {
	var cat *core.Category
	if in.CategoryID != nil {
		c, err := q.GetCategory(ctx, tenantID, *in.CategoryID)
		if err != nil {
			return "", err
		}
		cat = &c
	}
	return in.ResolveKind(cat)
}

func newTransaction(tenantID int64, in core.TransactionInput, kind core.CategoryKind) core.Transaction {
	return core.Transaction{
		TenantID:       tenantID,
		Type:           in.Type,
		Date:           in.Date,
		Period:         in.Period,
		Description:    in.Description,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Source:         in.Source,
		CategoryID:     in.CategoryID,
		CategoryKind:   kind,
		RecurrenceType: in.RecurrenceType,
	}
}

// Create inserts one transaction, or a whole monthly series when the input
// asks for monthly recurrence.
func (s *LedgerService) Create(ctx context.Context, tenantID int64, in core.TransactionInput) (CreateResult, error) {
	if err := checkTenant(tenantID); err != nil {
		return CreateResult{}, err
	}
	if err := in.Normalize(s.defaultCurrency); err != nil {
		return CreateResult{}, err
	}

	var res CreateResult
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		kind, err := resolveCategory(ctx, q, tenantID, in)
		if err != nil {
			return err
		}
		base := newTransaction(tenantID, in, kind)

		if in.RecurrenceType != core.Monthly {
			if err := q.InsertTransaction(ctx, &base); err != nil {
				return err
			}
			res = CreateResult{ID: base.ID, Periods: []core.Period{base.Period}}
			return s.aggregates.RecomputePeriods(ctx, q, tenantID, res.Periods)
		}

		rows, err := ExpandSeries(base, in.Date, in.RecurrenceEnd, s.newGroupID())
		if err != nil {
			return err
		}
		res = CreateResult{RecurrenceGroupID: rows[0].RecurrenceGroupID, Count: len(rows)}
		for i := range rows {
			if err := q.InsertTransaction(ctx, &rows[i]); err != nil {
				return fmt.Errorf("insert occurrence %s: %w", rows[i].Period, err)
			}
			res.Periods = append(res.Periods, rows[i].Period)
		}
		return s.aggregates.RecomputePeriods(ctx, q, tenantID, res.Periods)
	})
	if err != nil {
		return CreateResult{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"tenant_id", tenantID,
		"id", res.ID,
		"group_id", res.RecurrenceGroupID,
		"count", res.Count)
	notify(ctx, s.notifier, Change{TenantID: tenantID, Operation: OpCreate, Periods: res.Periods})
	return res, nil
}

// Update changes one row, or with applyToSeries the shared fields of every
// row in its recurrence group. Series mode leaves each row's date and period
// untouched. Recurrence fields of the input are ignored.
func (s *LedgerService) Update(ctx context.Context, tenantID, id int64, in core.TransactionInput, applyToSeries bool) (UpdateResult, error) {
	if err := checkTenant(tenantID); err != nil {
		return UpdateResult{}, err
	}
	in.RecurrenceType = ""
	in.RecurrenceEnd = core.Period{}
	if err := in.Normalize(s.defaultCurrency); err != nil {
		return UpdateResult{}, err
	}

	var res UpdateResult
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetTransaction(ctx, tenantID, id)
		if err != nil {
			return err
		}
		kind, err := resolveCategory(ctx, q, tenantID, in)
		if err != nil {
			return err
		}

		if applyToSeries && existing.RecurrenceGroupID != "" {
			periods, err := q.GroupPeriods(ctx, tenantID, existing.RecurrenceGroupID)
			if err != nil {
				return err
			}
			shared := newTransaction(tenantID, in, kind)
			n, err := q.UpdateGroupShared(ctx, tenantID, existing.RecurrenceGroupID, shared)
			if err != nil {
				return err
			}
			res = UpdateResult{SeriesUpdated: true, Updated: n, Periods: periods}
			return s.aggregates.RecomputePeriods(ctx, q, tenantID, periods)
		}

		updated := newTransaction(tenantID, in, kind)
		updated.ID = existing.ID
		updated.RecurrenceType = existing.RecurrenceType
		updated.RecurrenceGroupID = existing.RecurrenceGroupID
		if err := q.UpdateTransaction(ctx, updated); err != nil {
			return err
		}
		res = UpdateResult{Updated: 1, Periods: core.UniquePeriods([]core.Period{existing.Period, updated.Period})}
		return s.aggregates.RecomputePeriods(ctx, q, tenantID, res.Periods)
	})
	if err != nil {
		return UpdateResult{}, err
	}

	slog.InfoContext(ctx, "Transaction updated",
		"tenant_id", tenantID,
		"id", id,
		"series", res.SeriesUpdated,
		"rows", res.Updated)
	notify(ctx, s.notifier, Change{TenantID: tenantID, Operation: OpUpdate, Periods: res.Periods})
	return res, nil
}

// Delete removes one row, or with series every row of its recurrence group.
func (s *LedgerService) Delete(ctx context.Context, tenantID, id int64, series bool) (DeleteResult, error) {
	if err := checkTenant(tenantID); err != nil {
		return DeleteResult{}, err
	}

	var res DeleteResult
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetTransaction(ctx, tenantID, id)
		if err != nil {
			return err
		}

		if series && existing.RecurrenceGroupID != "" {
			periods, err := q.GroupPeriods(ctx, tenantID, existing.RecurrenceGroupID)
			if err != nil {
				return err
			}
			n, err := q.DeleteGroup(ctx, tenantID, existing.RecurrenceGroupID)
			if err != nil {
				return err
			}
			res = DeleteResult{SeriesDeleted: true, Deleted: n, Periods: periods}
			return s.aggregates.RecomputePeriods(ctx, q, tenantID, periods)
		}

		if err := q.DeleteTransaction(ctx, tenantID, id); err != nil {
			return err
		}
		res = DeleteResult{Deleted: 1, Periods: []core.Period{existing.Period}}
		return s.aggregates.RecomputePeriods(ctx, q, tenantID, res.Periods)
	})
	if err != nil {
		return DeleteResult{}, err
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"tenant_id", tenantID,
		"id", id,
		"series", res.SeriesDeleted,
		"rows", res.Deleted)
	notify(ctx, s.notifier, Change{TenantID: tenantID, Operation: OpDelete, Periods: res.Periods})
	return res, nil
}

// Get returns one transaction of the tenant.
func (s *LedgerService) Get(ctx context.Context, tenantID, id int64) (core.Transaction, error) {
	if err := checkTenant(tenantID); err != nil {
		return core.Transaction{}, err
	}
	return s.repo.GetTransaction(ctx, tenantID, id)
}

// List returns the tenant's transactions, newest effective date first.
func (s *LedgerService) List(ctx context.Context, tenantID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	if err := checkTenant(tenantID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, tenantID, f)
}

// Export writes the filtered transactions as a delimited file the importer
// can read back.
func (s *LedgerService) Export(ctx context.Context, tenantID int64, f core.TransactionFilter, w io.Writer) (int, error) {
	txs, err := s.List(ctx, tenantID, f)
	if err != nil {
		return 0, err
	}
	cats, err := s.repo.ListCategories(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	if err := importer.WriteCSV(w, txs, names); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}
	return len(txs), nil
}
