package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ledger/internal/core"
	"ledger/internal/importer"
	"ledger/internal/storage"
)

// ImportOptions are the caller's choices for one batch.
type ImportOptions struct {
	Mode                    core.ImportMode
	Policy                  core.DuplicatePolicy
	DateFormat              importer.DateFormat
	CreateMissingCategories bool
}

// DuplicateSample identifies one row that matched an existing transaction.
type DuplicateSample struct {
	Row         int    `json:"row"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// Preview is the outcome of a check run. Nothing is written.
type Preview struct {
	Checked        int                 `json:"checked"`
	DuplicateCount int                 `json:"duplicateCount"`
	Duplicates     []DuplicateSample   `json:"duplicates"`
	ErrorCount     int                 `json:"errorCount"`
	Errors         []importer.RowError `json:"errors"`
	DateFormat     importer.DateFormat `json:"dateFormat"`
}

// ImportResult is the outcome of a commit run.
type ImportResult struct {
	Imported          int                 `json:"imported"`
	Skipped           int                 `json:"skipped"`
	Replaced          int                 `json:"replaced"`
	DuplicateCount    int                 `json:"duplicateCount"`
	ErrorCount        int                 `json:"errorCount"`
	Errors            []importer.RowError `json:"errors"`
	CreatedCategories []string            `json:"createdCategories"`
	Periods           []string            `json:"periods"`
	DateFormat        importer.DateFormat `json:"dateFormat"`
}

// ImportService reconciles delimited files against the ledger.
type ImportService struct {
	repo            *storage.SQLiteRepository
	aggregates      *AggregateMaintainer
	notifier        ChangeNotifier
	defaultCurrency core.Currency
	maxBytes        int64
}

func NewImportService(repo *storage.SQLiteRepository, aggregates *AggregateMaintainer, notifier ChangeNotifier, defaultCurrency core.Currency, maxBytes int64) *ImportService {
	if aggregates == nil {
		aggregates = &AggregateMaintainer{}
	}
	return &ImportService{
		repo:            repo,
		aggregates:      aggregates,
		notifier:        notifier,
		defaultCurrency: defaultCurrency,
		maxBytes:        maxBytes,
	}
}

func (s *ImportService) parse(r io.Reader, opts ImportOptions) (*importer.Batch, error) {
	return importer.Parse(r, importer.Options{
		DateFormat:      opts.DateFormat,
		DefaultCurrency: s.defaultCurrency,
		MaxBytes:        s.maxBytes,
	})
}

// categoryIndex is the batch-local view of the tenant's categories. Entries
// created during the batch are added immediately so later rows reuse them.
type categoryIndex struct {
	byName  map[string]core.Category
	ordered []core.Category
}

func newCategoryIndex(cats []core.Category) *categoryIndex {
	idx := &categoryIndex{byName: make(map[string]core.Category, len(cats))}
	for _, c := range cats {
		idx.add(c)
	}
	return idx
}

func (idx *categoryIndex) add(c core.Category) {
	idx.byName[strings.ToLower(c.Name)] = c
	idx.ordered = append(idx.ordered, c)
}

func (idx *categoryIndex) lookup(name string) (core.Category, bool) {
	c, ok := idx.byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// fallback picks the lowest-id category usable by t: income for income,
// variable then fixed for expense.
func (idx *categoryIndex) fallback(t core.TransactionType) (core.Category, bool) {
	order := []core.CategoryKind{core.KindVariable, core.KindFixed}
	if t == core.Income {
		order = []core.CategoryKind{core.KindIncome}
	}
	for _, kind := range order {
		for _, c := range idx.ordered {
			if c.Kind == kind {
				return c, true
			}
		}
	}
	return core.Category{}, false
}

// candidate turns a parsed row into the transaction it would insert. Unlike
// manual entry, a category whose kind does not fit the type is swapped for a
// fallback category (or dropped) instead of rejecting the row.
func candidate(tenantID int64, row importer.Row, cat *core.Category, idx *categoryIndex) core.Transaction {
	tx := newTransaction(tenantID, row.Input, row.Input.CategoryKind)
	tx.CategoryID = nil
	if cat != nil && !cat.Kind.Matches(tx.Type) {
		if fb, ok := idx.fallback(tx.Type); ok {
			cat = &fb
		} else {
			cat = nil
		}
	}
	if cat != nil {
		id := cat.ID
		tx.CategoryID = &id
		tx.CategoryKind = cat.Kind
	}
	return tx
}

func rowErrors(b *importer.Batch) []importer.RowError {
	if b.Errors == nil {
		return []importer.RowError{}
	}
	return b.Errors
}

func sample(row importer.Row, tx core.Transaction) DuplicateSample {
	return DuplicateSample{
		Row:         row.Line,
		Date:        tx.EffectiveDate().String(),
		Description: tx.Description,
		Amount:      core.FormatAmount(tx.Amount),
	}
}

// Check previews a batch. Duplicates are counted against stored rows and
// against earlier rows of the same file, matching what a commit would see.
func (s *ImportService) Check(ctx context.Context, tenantID int64, r io.Reader, opts ImportOptions) (Preview, error) {
	if err := checkTenant(tenantID); err != nil {
		return Preview{}, err
	}
	batch, err := s.parse(r, opts)
	if err != nil {
		return Preview{}, err
	}
	cats, err := s.repo.ListCategories(ctx, tenantID)
	if err != nil {
		return Preview{}, err
	}
	idx := newCategoryIndex(cats)

	p := Preview{
		Checked:    len(batch.Rows),
		Duplicates: []DuplicateSample{},
		Errors:     rowErrors(batch),
		ErrorCount: batch.ErrorCount,
		DateFormat: batch.DateFormat,
	}
	seen := make(map[core.DuplicateKey]bool)
	for _, row := range batch.Rows {
		var cat *core.Category
		if c, ok := idx.lookup(row.Category); ok {
			cat = &c
		}
		tx := candidate(tenantID, row, cat, idx)
		key := core.KeyOf(tx)

		dups, err := s.repo.FindDuplicates(ctx, tenantID, key)
		if err != nil {
			return Preview{}, err
		}
		folded := key
		folded.Description = strings.ToLower(strings.TrimSpace(key.Description))
		if len(dups) > 0 || seen[folded] {
			p.DuplicateCount++
			if len(p.Duplicates) < core.MaxImportSamples {
				p.Duplicates = append(p.Duplicates, sample(row, tx))
			}
		}
		seen[folded] = true
	}

	slog.InfoContext(ctx, "Import checked",
		"tenant_id", tenantID,
		"rows", p.Checked,
		"duplicates", p.DuplicateCount,
		"errors", p.ErrorCount)
	return p, nil
}

// Commit imports a batch in one database transaction. Rows that fail to
// parse are reported and skipped; storage failures roll the batch back.
func (s *ImportService) Commit(ctx context.Context, tenantID int64, r io.Reader, opts ImportOptions) (ImportResult, error) {
	if err := checkTenant(tenantID); err != nil {
		return ImportResult{}, err
	}
	if opts.Policy == "" {
		opts.Policy = core.PolicySkip
	}
	batch, err := s.parse(r, opts)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{
		Errors:            rowErrors(batch),
		ErrorCount:        batch.ErrorCount,
		CreatedCategories: []string{},
		Periods:           []string{},
		DateFormat:        batch.DateFormat,
	}
	var touched []core.Period

	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		cats, err := q.ListCategories(ctx, tenantID)
		if err != nil {
			return err
		}
		idx := newCategoryIndex(cats)
		inserted := make(map[int64]bool)

		for _, row := range batch.Rows {
			cat, err := s.categoryFor(ctx, q, tenantID, row, idx, opts.CreateMissingCategories, &res)
			if err != nil {
				return fmt.Errorf("row %d: %w", row.Line, err)
			}
			tx := candidate(tenantID, row, cat, idx)

			dups, err := q.FindDuplicates(ctx, tenantID, core.KeyOf(tx))
			if err != nil {
				return err
			}
			if len(dups) > 0 {
				res.DuplicateCount++
				switch opts.Policy {
				case core.PolicySkip:
					res.Skipped++
					continue
				case core.PolicyReplace:
					for _, d := range dups {
						if err := q.DeleteTransaction(ctx, tenantID, d.ID); err != nil {
							return err
						}
						touched = append(touched, d.Period)
						// A row from earlier in this file is superseded, not replaced.
						if inserted[d.ID] {
							delete(inserted, d.ID)
							res.Imported--
							continue
						}
						res.Replaced++
					}
				}
			}

			if err := q.InsertTransaction(ctx, &tx); err != nil {
				return fmt.Errorf("row %d: %w", row.Line, err)
			}
			res.Imported++
			inserted[tx.ID] = true
			touched = append(touched, tx.Period)
		}

		return s.aggregates.RecomputePeriods(ctx, q, tenantID, touched)
	})
	if err != nil {
		return ImportResult{}, err
	}

	periods := core.UniquePeriods(touched)
	for _, p := range periods {
		res.Periods = append(res.Periods, p.String())
	}

	slog.InfoContext(ctx, "Import committed",
		"tenant_id", tenantID,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"replaced", res.Replaced,
		"errors", res.ErrorCount,
		"periods", len(periods))
	notify(ctx, s.notifier, Change{TenantID: tenantID, Operation: OpImport, Periods: periods})
	return res, nil
}

// categoryFor resolves the row's category name, creating it when allowed.
func (s *ImportService) categoryFor(ctx context.Context, q *storage.Queries, tenantID int64, row importer.Row, idx *categoryIndex, create bool, res *ImportResult) (*core.Category, error) {
	name := strings.TrimSpace(row.Category)
	if name == "" {
		return nil, nil
	}
	if c, ok := idx.lookup(name); ok {
		return &c, nil
	}
	if !create {
		return nil, nil
	}
	c, err := q.CreateCategory(ctx, tenantID, name, row.Input.CategoryKind)
	if err != nil {
		return nil, err
	}
	idx.add(c)
	res.CreatedCategories = append(res.CreatedCategories, c.Name)
	return &c, nil
}
