package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/storage"
)

// Uncategorized labels rows without a category in the breakdown.
const Uncategorized = "Uncategorized"

// ReportService serves the read views. Totals come from monthly_summaries
// unless the whole range reads as zero, in which case they are aggregated
// from the transactions instead. Results are cached per tenant generation;
// LedgerChanged bumps the generation.
type ReportService struct {
	repo  *storage.SQLiteRepository
	cache cache.Cache[any]
	group singleflight.Group

	mu   sync.Mutex
	gens map[int64]uint64
}

// NewReportService creates a report reader. A nil cache disables caching.
func NewReportService(repo *storage.SQLiteRepository, c cache.Cache[any]) *ReportService {
	return &ReportService{repo: repo, cache: c, gens: make(map[int64]uint64)}
}

// LedgerChanged drops every cached view of the tenant.
func (s *ReportService) LedgerChanged(ctx context.Context, c Change) error {
	s.mu.Lock()
	s.gens[c.TenantID]++
	s.mu.Unlock()
	if s.cache != nil {
		n := s.cache.DeletePrefix(tenantPrefix(c.TenantID))
		slog.DebugContext(ctx, "Report cache invalidated", "tenant_id", c.TenantID, "entries", n)
	}
	return nil
}

func tenantPrefix(tenantID int64) string {
	return fmt.Sprintf("t%d:", tenantID)
}

func (s *ReportService) key(tenantID int64, view string, from, to core.Period) string {
	s.mu.Lock()
	gen := s.gens[tenantID]
	s.mu.Unlock()
	return fmt.Sprintf("%sg%d:%s:%s:%s", tenantPrefix(tenantID), gen, view, from, to)
}

// cached serves key from the cache or computes it once, however many
// callers ask concurrently.
func cached[T any](s *ReportService, key string, compute func() (T, error)) (T, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		out, err := compute()
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(key, out)
		}
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *ReportService) validate(tenantID int64, from, to core.Period) error {
	if err := checkTenant(tenantID); err != nil {
		return err
	}
	return core.CheckRange(from, to)
}

// Summary returns the range totals. The fixed/variable split is always
// computed from the transactions.
func (s *ReportService) Summary(ctx context.Context, tenantID int64, from, to core.Period) (core.Totals, error) {
	if err := s.validate(tenantID, from, to); err != nil {
		return core.Totals{}, err
	}
	return cached(s, s.key(tenantID, "summary", from, to), func() (core.Totals, error) {
		var (
			summaries []core.MonthlySummary
			entries   []core.LedgerEntry
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			summaries, err = s.repo.SummaryRange(gctx, tenantID, from, to)
			return err
		})
		g.Go(func() error {
			var err error
			entries, err = s.repo.PeriodEntries(gctx, tenantID, from, to)
			return err
		})
		if err := g.Wait(); err != nil {
			return core.Totals{}, err
		}

		t := core.Totals{
			TotalIncome:     decimal.Zero,
			TotalExpense:    decimal.Zero,
			FixedExpense:    decimal.Zero,
			VariableExpense: decimal.Zero,
		}
		for _, sm := range summaries {
			t.TotalIncome = t.TotalIncome.Add(sm.Income)
			t.TotalExpense = t.TotalExpense.Add(sm.Expense)
		}
		if t.TotalIncome.IsZero() && t.TotalExpense.IsZero() {
			live := core.Summarize(tenantID, from, entries)
			t.TotalIncome, t.TotalExpense = live.Income, live.Expense
		}
		t.Balance = t.TotalIncome.Sub(t.TotalExpense)

		for _, e := range entries {
			if e.Type != core.Expense {
				continue
			}
			switch e.Kind {
			case core.KindFixed:
				t.FixedExpense = t.FixedExpense.Add(e.Amount)
			case core.KindVariable:
				t.VariableExpense = t.VariableExpense.Add(e.Amount)
			}
		}
		return t, nil
	})
}

// MonthlySeries returns one point per month of the range, empty months
// included.
func (s *ReportService) MonthlySeries(ctx context.Context, tenantID int64, from, to core.Period) ([]core.MonthPoint, error) {
	if err := s.validate(tenantID, from, to); err != nil {
		return nil, err
	}
	return cached(s, s.key(tenantID, "monthly", from, to), func() ([]core.MonthPoint, error) {
		summaries, err := s.repo.SummaryRange(ctx, tenantID, from, to)
		if err != nil {
			return nil, err
		}
		byPeriod := make(map[string]core.MonthlySummary, len(summaries))
		allZero := true
		for _, sm := range summaries {
			byPeriod[sm.Period.Key()] = sm
			if !sm.IsZero() {
				allZero = false
			}
		}

		if allZero {
			entries, err := s.repo.PeriodEntries(ctx, tenantID, from, to)
			if err != nil {
				return nil, err
			}
			grouped := make(map[string][]core.LedgerEntry)
			for _, e := range entries {
				grouped[e.Period.Key()] = append(grouped[e.Period.Key()], e)
			}
			byPeriod = make(map[string]core.MonthlySummary, len(grouped))
			for k, es := range grouped {
				byPeriod[k] = core.Summarize(tenantID, es[0].Period, es)
			}
		}

		months := core.MonthsBetween(from, to)
		points := make([]core.MonthPoint, 0, len(months))
		for _, p := range months {
			sm, ok := byPeriod[p.Key()]
			if !ok {
				sm = core.Summarize(tenantID, p, nil)
			}
			points = append(points, core.MonthPoint{
				Period:  p,
				Income:  sm.Income,
				Expense: sm.Expense,
				Net:     sm.Income.Sub(sm.Expense),
			})
		}
		return points, nil
	})
}

// CategoryBreakdown totals the range per category name, largest first.
func (s *ReportService) CategoryBreakdown(ctx context.Context, tenantID int64, from, to core.Period) (core.Breakdown, error) {
	if err := s.validate(tenantID, from, to); err != nil {
		return core.Breakdown{}, err
	}
	return cached(s, s.key(tenantID, "categories", from, to), func() (core.Breakdown, error) {
		entries, err := s.repo.PeriodEntries(ctx, tenantID, from, to)
		if err != nil {
			return core.Breakdown{}, err
		}
		income := make(map[string]decimal.Decimal)
		expense := make(map[string]decimal.Decimal)
		for _, e := range entries {
			name := e.CategoryName
			if name == "" {
				name = Uncategorized
			}
			target := expense
			if e.Type == core.Income {
				target = income
			}
			target[name] = target[name].Add(e.Amount)
		}
		return core.Breakdown{Income: rank(income), Expense: rank(expense)}, nil
	})
}

func rank(totals map[string]decimal.Decimal) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(totals))
	for name, total := range totals {
		out = append(out, core.CategoryAmount{Name: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
