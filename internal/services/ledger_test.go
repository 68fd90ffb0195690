package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"ledger/internal/core"
	"ledger/internal/storage"
)

func TestCreateOneTimeRecomputesPeriod(t *testing.T) {
	e := newEnv(t)
	res := mustCreate(t, e, core.TransactionInput{
		Type: core.Income, Date: core.NewDate(2025, 1, 5), Description: "Salary", Amount: amount("1000"),
	})
	mustCreate(t, e, core.TransactionInput{
		Type: core.Expense, Period: core.NewPeriod(2025, 1), Description: "Rent", Amount: amount("400.10"),
	})
	if res.ID == 0 || res.RecurrenceGroupID != "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	s := assertSummaryMatchesLive(t, e, core.NewPeriod(2025, 1))
	if core.FormatAmount(s.Balance) != "599.90" {
		t.Fatalf("expected balance 599.90, got %s", core.FormatAmount(s.Balance))
	}
	if !reflect.DeepEqual(e.rec.periods, []string{"2025-01", "2025-01"}) {
		t.Fatalf("unexpected recomputes: %v", e.rec.periods)
	}
	if len(e.rec.changes) != 2 || e.rec.changes[0].Operation != OpCreate {
		t.Fatalf("expected two create notifications, got %+v", e.rec.changes)
	}
}

func TestCreateValidationWritesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	income, err := e.categories.Create(ctx, tenant, "Salary", core.KindIncome)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	missing := int64(999)

	cases := []struct {
		name string
		in   core.TransactionInput
		want error
	}{
		{"no description", core.TransactionInput{Type: core.Expense, Period: core.NewPeriod(2025, 1), Amount: amount("1")}, core.ErrEmptyDescription},
		{"unknown category", core.TransactionInput{Type: core.Expense, Period: core.NewPeriod(2025, 1), Description: "x", Amount: amount("1"), CategoryID: &missing}, core.ErrCategoryNotFound},
		{"expense in income category", core.TransactionInput{Type: core.Expense, Period: core.NewPeriod(2025, 1), Description: "x", Amount: amount("1"), CategoryID: &income.ID}, core.ErrCategoryKindMismatch},
		{"inverted series", core.TransactionInput{
			Type: core.Expense, Period: core.NewPeriod(2025, 3), Description: "x", Amount: amount("1"),
			RecurrenceType: core.Monthly, RecurrenceEnd: core.NewPeriod(2025, 1),
		}, core.ErrInvalidRecurrenceRange},
		{"series without end", core.TransactionInput{
			Type: core.Expense, Period: core.NewPeriod(2025, 3), Description: "x", Amount: amount("1"),
			RecurrenceType: core.Monthly,
		}, core.ErrMissingRecurrenceEnd},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.ledger.Create(ctx, tenant, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if countRows(t, e) != 0 {
		t.Fatalf("failed creates must not write rows")
	}
	if _, ok, _ := e.repo.GetSummary(ctx, tenant, core.NewPeriod(2025, 1)); ok {
		t.Fatalf("failed creates must not write summaries")
	}
	if _, err := e.ledger.Create(ctx, 0, core.TransactionInput{}); !errors.Is(err, core.ErrMissingTenant) {
		t.Fatalf("expected missing tenant, got %v", err)
	}
}

func TestCreateKindFollowsCategory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rent, _ := e.categories.Create(ctx, tenant, "Rent", core.KindFixed)

	res := mustCreate(t, e, core.TransactionInput{
		Type: core.Expense, Period: core.NewPeriod(2025, 1), Description: "Rent", Amount: amount("900"),
		CategoryID: &rent.ID, CategoryKind: core.KindVariable,
	})
	got, err := e.ledger.Get(ctx, tenant, res.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CategoryKind != core.KindFixed {
		t.Fatalf("kind should follow the category, got %s", got.CategoryKind)
	}

	res = mustCreate(t, e, core.TransactionInput{
		Type: core.Income, Period: core.NewPeriod(2025, 1), Description: "Gift", Amount: amount("50"),
	})
	got, _ = e.ledger.Get(ctx, tenant, res.ID)
	if got.CategoryKind != core.KindIncome {
		t.Fatalf("income without category should be kind income, got %s", got.CategoryKind)
	}
}

func TestMonthlySeriesClampsDay(t *testing.T) {
	e := newEnv(t)
	res := mustCreate(t, e, core.TransactionInput{
		Type: core.Expense, Date: core.NewDate(2025, 1, 31), Description: "Gym", Amount: amount("99.90"),
		RecurrenceType: core.Monthly, RecurrenceEnd: core.NewPeriod(2025, 3),
	})
	if res.Count != 3 || res.RecurrenceGroupID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	rows := e.groupRows(t, res.RecurrenceGroupID)
	want := []string{"2025-01-31", "2025-02-28", "2025-03-31"}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, row := range rows {
		if row.Date.String() != want[i] {
			t.Fatalf("row %d: expected %s, got %s", i, want[i], row.Date)
		}
		if row.RecurrenceGroupID != res.RecurrenceGroupID || row.RecurrenceType != core.Monthly {
			t.Fatalf("row %d not tagged with the group: %+v", i, row)
		}
	}
	for _, p := range []core.Period{core.NewPeriod(2025, 1), core.NewPeriod(2025, 2), core.NewPeriod(2025, 3)} {
		s := assertSummaryMatchesLive(t, e, p)
		if core.FormatAmount(s.Expense) != "99.90" {
			t.Fatalf("period %s: expected expense 99.90, got %s", p, s.Expense)
		}
	}
}

func TestMonthlySeriesWithoutDate(t *testing.T) {
	e := newEnv(t)
	res := mustCreate(t, e, core.TransactionInput{
		Type: core.Income, Period: core.NewPeriod(2024, 11), Description: "Allowance", Amount: amount("10"),
		RecurrenceType: core.Monthly, RecurrenceEnd: core.NewPeriod(2025, 2),
	})
	rows := e.groupRows(t, res.RecurrenceGroupID)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows across the year boundary, got %d", len(rows))
	}
	for _, row := range rows {
		if !row.Date.IsEmpty() {
			t.Fatalf("dateless series rows must stay dateless, got %s", row.Date)
		}
	}
}

func TestSeriesUpdateKeepsDates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := mustCreate(t, e, core.TransactionInput{
		Type: core.Expense, Date: core.NewDate(2025, 1, 31), Description: "Gym", Amount: amount("99.90"),
		RecurrenceType: core.Monthly, RecurrenceEnd: core.NewPeriod(2025, 3),
	})
	rows := e.groupRows(t, res.RecurrenceGroupID)
	e.rec.reset()

	up, err := e.ledger.Update(ctx, tenant, rows[1].ID, core.TransactionInput{
		Type: core.Expense, Date: core.NewDate(2025, 2, 10), Description: "Gym plus", Amount: amount("120"),
	}, true)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !up.SeriesUpdated || up.Updated != 3 {
		t.Fatalf("expected 3 rows updated in series mode, got %+v", up)
	}

	after := e.groupRows(t, res.RecurrenceGroupID)
	for i, row := range after {
		if row.Date.String() != rows[i].Date.String() || !row.Period.Equal(rows[i].Period.Time) {
			t.Fatalf("row %d date changed: %s -> %s", i, rows[i].Date, row.Date)
		}
		if core.FormatAmount(row.Amount) != "120.00" || row.Description != "Gym plus" {
			t.Fatalf("row %d shared fields not updated: %+v", i, row)
		}
		assertSummaryMatchesLive(t, e, row.Period)
	}
	if !reflect.DeepEqual(e.rec.periods, []string{"2025-01", "2025-02", "2025-03"}) {
		t.Fatalf("unexpected recomputes: %v", e.rec.periods)
	}
}

func TestSingleUpdateMovesPeriod(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := mustCreate(t, e, core.TransactionInput{
		Type: core.Expense, Date: core.NewDate(2025, 1, 15), Description: "Dinner", Amount: amount("80"),
	})
	e.rec.reset()

	up, err := e.ledger.Update(ctx, tenant, res.ID, core.TransactionInput{
		Type: core.Expense, Date: core.NewDate(2025, 2, 3), Description: "Dinner", Amount: amount("85"),
	}, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if up.SeriesUpdated {
		t.Fatalf("single update reported as series: %+v", up)
	}
	if !reflect.DeepEqual(e.rec.periods, []string{"2025-01", "2025-02"}) {
		t.Fatalf("old and new periods should both be recomputed, got %v", e.rec.periods)
	}
	jan := assertSummaryMatchesLive(t, e, core.NewPeriod(2025, 1))
	feb := assertSummaryMatchesLive(t, e, core.NewPeriod(2025, 2))
	if !jan.Expense.IsZero() || core.FormatAmount(feb.Expense) != "85.00" {
		t.Fatalf("unexpected summaries: jan %s feb %s", jan.Expense, feb.Expense)
	}

	if _, err := e.ledger.Update(ctx, tenant, 12345, core.TransactionInput{
		Type: core.Expense, Period: core.NewPeriod(2025, 2), Description: "x", Amount: amount("1"),
	}, false); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSingleUpdateInSeriesDiverges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := mustCreate(t, e, core.TransactionInput{
		Type: core.Expense, Date: core.NewDate(2025, 1, 10), Description: "Course", Amount: amount("50"),
		RecurrenceType: core.Monthly, RecurrenceEnd: core.NewPeriod(2025, 2),
	})
	rows := e.groupRows(t, res.RecurrenceGroupID)

	if _, err := e.ledger.Update(ctx, tenant, rows[0].ID, core.TransactionInput{
		Type: core.Expense, Date: core.NewDate(2025, 1, 20), Description: "Course", Amount: amount("70"),
	}, false); err != nil {
		t.Fatalf("update: %v", err)
	}
	after := e.groupRows(t, res.RecurrenceGroupID)
	if after[0].Date.String() != "2025-01-20" || core.FormatAmount(after[0].Amount) != "70.00" {
		t.Fatalf("first occurrence not updated: %+v", after[0])
	}
	if core.FormatAmount(after[1].Amount) != "50.00" || after[0].RecurrenceGroupID != res.RecurrenceGroupID {
		t.Fatalf("other occurrence should be untouched and the group kept: %+v", after)
	}
}

func TestDeleteSeriesRecomputesExactlyItsPeriods(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	mustCreate(t, e, core.TransactionInput{
		Type: core.Expense, Date: core.NewDate(2025, 6, 1), Description: "Unrelated", Amount: amount("5"),
	})
	res := mustCreate(t, e, core.TransactionInput{
		Type: core.Expense, Date: core.NewDate(2025, 1, 31), Description: "Gym", Amount: amount("99.90"),
		RecurrenceType: core.Monthly, RecurrenceEnd: core.NewPeriod(2025, 4),
	})
	rows := e.groupRows(t, res.RecurrenceGroupID)
	before := countRows(t, e)
	e.rec.reset()

	del, err := e.ledger.Delete(ctx, tenant, rows[2].ID, true)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !del.SeriesDeleted || del.Deleted != 4 {
		t.Fatalf("expected 4 rows deleted, got %+v", del)
	}
	if got := countRows(t, e); got != before-4 {
		t.Fatalf("expected %d rows left, got %d", before-4, got)
	}
	if !reflect.DeepEqual(e.rec.periods, []string{"2025-01", "2025-02", "2025-03", "2025-04"}) {
		t.Fatalf("expected exactly the series periods recomputed, got %v", e.rec.periods)
	}
	for _, p := range del.Periods {
		s := assertSummaryMatchesLive(t, e, p)
		if !s.IsZero() {
			t.Fatalf("period %s should be empty after delete", p)
		}
	}
}

func TestDeleteSingleOccurrence(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := mustCreate(t, e, core.TransactionInput{
		Type: core.Expense, Date: core.NewDate(2025, 1, 10), Description: "Course", Amount: amount("50"),
		RecurrenceType: core.Monthly, RecurrenceEnd: core.NewPeriod(2025, 3),
	})
	rows := e.groupRows(t, res.RecurrenceGroupID)
	e.rec.reset()

	del, err := e.ledger.Delete(ctx, tenant, rows[1].ID, false)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if del.SeriesDeleted || del.Deleted != 1 {
		t.Fatalf("unexpected result: %+v", del)
	}
	if !reflect.DeepEqual(e.rec.periods, []string{"2025-02"}) {
		t.Fatalf("only the row's period should be recomputed, got %v", e.rec.periods)
	}
	if countRows(t, e) != 2 {
		t.Fatalf("expected 2 rows left")
	}
	if _, err := e.ledger.Delete(ctx, tenant, rows[1].ID, false); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	mustCreate(t, e, core.TransactionInput{Type: core.Income, Period: core.NewPeriod(2025, 5), Description: "A", Amount: amount("10.10")})
	mustCreate(t, e, core.TransactionInput{Type: core.Expense, Period: core.NewPeriod(2025, 5), Description: "B", Amount: amount("3.03")})

	var results []core.MonthlySummary
	for i := 0; i < 2; i++ {
		err := e.repo.WithTx(ctx, func(q *storage.Queries) error {
			s, err := e.aggregates.Recompute(ctx, q, tenant, core.NewPeriod(2025, 5))
			results = append(results, s)
			return err
		})
		if err != nil {
			t.Fatalf("recompute: %v", err)
		}
	}
	if !results[0].Income.Equal(results[1].Income) || !results[0].Balance.Equal(results[1].Balance) {
		t.Fatalf("recompute not idempotent: %+v vs %+v", results[0], results[1])
	}
	if core.FormatAmount(results[1].Balance) != "7.07" {
		t.Fatalf("expected balance 7.07, got %s", results[1].Balance)
	}
}

func TestRecomputeFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	raw, err := sql.Open("sqlite", storage.DSN(e.dbPath))
	if err != nil {
		t.Fatalf("open raw connection: %v", err)
	}
	defer raw.Close()
	if _, err := raw.Exec(`DROP TABLE monthly_summaries`); err != nil {
		t.Fatalf("drop summaries: %v", err)
	}

	_, err = e.ledger.Create(ctx, tenant, core.TransactionInput{
		Type: core.Expense, Period: core.NewPeriod(2025, 1), Description: "x", Amount: amount("1"),
	})
	if err == nil {
		t.Fatalf("expected the create to fail when the summary cannot be written")
	}
	if countRows(t, e) != 0 {
		t.Fatalf("row must not survive a failed recompute")
	}
}

func TestListAndExport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	mustCreate(t, e, core.TransactionInput{Type: core.Expense, Date: core.NewDate(2025, 1, 2), Description: "Older", Amount: amount("1")})
	mustCreate(t, e, core.TransactionInput{Type: core.Expense, Period: core.NewPeriod(2025, 2), Description: "Newer", Amount: amount("2")})

	list, err := e.ledger.List(ctx, tenant, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Description != "Newer" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	var buf bytes.Buffer
	n, err := e.ledger.Export(ctx, tenant, core.TransactionFilter{}, &buf)
	if err != nil || n != 2 {
		t.Fatalf("export: %d %v", n, err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 3 {
		t.Fatalf("expected header plus 2 lines, got %d", lines)
	}
}

func TestConcurrentCreatesKeepSummaryConsistent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ledger.Create(ctx, tenant, core.TransactionInput{
				Type: core.Expense, Period: core.NewPeriod(2025, 7), Description: "Coffee", Amount: amount("2.50"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create: %v", err)
		}
	}
	s := assertSummaryMatchesLive(t, e, core.NewPeriod(2025, 7))
	if core.FormatAmount(s.Expense) != "25.00" {
		t.Fatalf("expected 25.00, got %s", s.Expense)
	}
}
