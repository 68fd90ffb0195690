package services

import (
	"cmp"
	"context"
	"database/sql"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/storage"
)

const tenant = int64(1)

type recorder struct {
	mu      sync.Mutex
	periods []string
	changes []Change
}

func (r *recorder) observe(_ int64, p core.Period) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.periods = append(r.periods, p.String())
}

func (r *recorder) LedgerChanged(_ context.Context, c Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.periods = nil
	r.changes = nil
}

type env struct {
	dbPath     string
	repo       *storage.SQLiteRepository
	rec        *recorder
	aggregates *AggregateMaintainer
	ledger     *LedgerService
	imports    *ImportService
	reports    *ReportService
	categories *CategoryService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	rec := &recorder{}
	agg := &AggregateMaintainer{observe: rec.observe}
	reports := NewReportService(repo, cache.NewLRUCache[any](64, time.Minute))
	notifier := Notifiers{rec, reports}

	return &env{
		dbPath:     dbPath,
		repo:       repo,
		rec:        rec,
		aggregates: agg,
		ledger:     NewLedgerService(repo, agg, notifier, core.BRL),
		imports:    NewImportService(repo, agg, notifier, core.BRL, 1<<20),
		reports:    reports,
		categories: NewCategoryService(repo),
	}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustCreate(t *testing.T, e *env, in core.TransactionInput) CreateResult {
	t.Helper()
	res, err := e.ledger.Create(context.Background(), tenant, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return res
}

// assertSummaryMatchesLive checks that the stored summary of p equals the
// live aggregate over the transactions.
func assertSummaryMatchesLive(t *testing.T, e *env, p core.Period) core.MonthlySummary {
	t.Helper()
	ctx := context.Background()
	stored, ok, err := e.repo.GetSummary(ctx, tenant, p)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	live, err := Live(ctx, e.repo.Queries, tenant, p)
	if err != nil {
		t.Fatalf("live aggregate: %v", err)
	}
	if !ok {
		if !live.IsZero() {
			t.Fatalf("period %s has transactions but no summary", p)
		}
		return live
	}
	if !stored.Income.Equal(live.Income) || !stored.Expense.Equal(live.Expense) {
		t.Fatalf("period %s: stored %s/%s, live %s/%s", p, stored.Income, stored.Expense, live.Income, live.Expense)
	}
	if !stored.Balance.Equal(stored.Income.Sub(stored.Expense)) {
		t.Fatalf("period %s: balance %s != income - expense", p, stored.Balance)
	}
	return stored
}

func countRows(t *testing.T, e *env) int {
	t.Helper()
	rows, err := e.repo.ListTransactions(context.Background(), tenant, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return len(rows)
}

// groupRows returns a recurrence group's rows ordered by period.
func (e *env) groupRows(t *testing.T, groupID string) []core.Transaction {
	t.Helper()
	all, err := e.repo.ListTransactions(context.Background(), tenant, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var rows []core.Transaction
	for _, row := range all {
		if row.RecurrenceGroupID == groupID {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b core.Transaction) int {
		if c := a.Period.Compare(b.Period.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return rows
}

// dropSummary deletes a stored summary through a separate connection, the
// way an out-of-band edit would.
func dropSummary(t *testing.T, e *env, p core.Period) {
	t.Helper()
	db, err := sql.Open("sqlite", storage.DSN(e.dbPath))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`DELETE FROM monthly_summaries WHERE tenant_id = ? AND period = ?`, tenant, p.Key()); err != nil {
		t.Fatalf("delete summary: %v", err)
	}
}
