package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"ledger/internal/core"
)

var (
	ErrEmptyFile           = errors.New("file is empty")
	ErrNoRecognizedColumns = errors.New("no recognised columns in header")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnknownType         = errors.New("unknown transaction type")
)

// Options control how a file is read.
type Options struct {
	DateFormat      DateFormat
	DefaultCurrency core.Currency
	// MaxBytes rejects larger files when positive.
	MaxBytes int64
}

// Row is one parsed and validated candidate transaction.
type Row struct {
	Line     int
	Input    core.TransactionInput
	Category string
}

// RowError describes a rejected row. Line is 1-based and the header is line 1.
type RowError struct {
	Line    int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Message)
}

// Batch is the result of reading one file.
type Batch struct {
	Rows       []Row
	Errors     []RowError
	ErrorCount int
	DateFormat DateFormat
	Delimiter  rune
}

// AddError counts a row failure and keeps it when the sample is not full.
func (b *Batch) AddError(line int, err error) {
	b.ErrorCount++
	if len(b.Errors) < core.MaxImportSamples {
		b.Errors = append(b.Errors, RowError{Line: line, Message: err.Error()})
	}
}

type record struct {
	line   int
	fields []string
}

// Parse reads a delimited file into candidate rows. Only problems with the
// file as a whole are returned as errors; bad rows are recorded in the batch.
func Parse(r io.Reader, opts Options) (*Batch, error) {
	if opts.MaxBytes > 0 {
		r = io.LimitReader(r, opts.MaxBytes+1)
	}
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, opts.MaxBytes)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyFile
	}

	headerLine, _, _ := strings.Cut(text, "\n")
	batch := &Batch{Delimiter: DetectDelimiter(headerLine)}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = batch.Delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := mapHeader(header)
	if len(cols) == 0 {
		return nil, ErrNoRecognizedColumns
	}

	var records []record
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				batch.AddError(perr.StartLine, perr.Err)
				continue
			}
			return nil, fmt.Errorf("read records: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(fields) {
			continue
		}
		records = append(records, record{line: line, fields: fields})
	}

	batch.DateFormat = opts.DateFormat
	if batch.DateFormat == "" || batch.DateFormat == DateAuto {
		dates := make([]string, 0, len(records))
		for _, rec := range records {
			dates = append(dates, cols.value(rec.fields, FieldDate))
		}
		batch.DateFormat = DetectDateFormat(dates)
	}

	for _, rec := range records {
		row, err := parseRecord(cols, rec, batch.DateFormat, opts.DefaultCurrency)
		if err != nil {
			batch.AddError(rec.line, err)
			continue
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRecord(cols columnMap, rec record, format DateFormat, defaultCurrency core.Currency) (Row, error) {
	get := func(f Field) string { return cols.value(rec.fields, f) }
	row := Row{Line: rec.line, Category: get(FieldCategory)}
	in := &row.Input

	rawType := get(FieldType)
	if rawType == "" {
		return Row{}, core.ErrMissingType
	}
	t, ok := ParseType(rawType)
	if !ok {
		return Row{}, fmt.Errorf("%w: %q", ErrUnknownType, rawType)
	}
	in.Type = t
	in.Description = get(FieldDescription)

	rawAmount := get(FieldAmount)
	if rawAmount == "" {
		return Row{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return Row{}, err
	}
	in.Amount = amount

	if raw := get(FieldDate); raw != "" {
		d, err := ParseDate(raw, format)
		if err != nil {
			return Row{}, err
		}
		in.Date = d
	}
	if raw := get(FieldPeriod); raw != "" {
		p, err := ParsePeriod(raw, format)
		if err != nil {
			return Row{}, err
		}
		in.Period = p
	}

	if raw := get(FieldCurrency); raw != "" {
		c, err := core.ParseCurrency(raw)
		if err != nil {
			return Row{}, err
		}
		in.Currency = c
	}
	in.Source = get(FieldSource)

	if kind, ok := ParseClassification(get(FieldClassification)); ok && kind.Matches(t) {
		in.CategoryKind = kind
	}

	if err := in.Normalize(defaultCurrency); err != nil {
		return Row{}, err
	}
	in.CategoryKind = core.DefaultKind(in.Type, in.CategoryKind)
	in.RecurrenceType = ParseRecurrence(get(FieldRecurrence))
	return row, nil
}

// ParseType maps English and Portuguese type words onto a transaction type.
func ParseType(s string) (core.TransactionType, bool) {
	switch Normalize(s) {
	case "income", "receita", "entrada", "credito", "credit", "renda", "in":
		return core.Income, true
	case "expense", "despesa", "saida", "debito", "debit", "gasto", "out":
		return core.Expense, true
	}
	return "", false
}

// ParseClassification infers a category kind from free classification text,
// e.g. "Despesa fixa" or "variable".
func ParseClassification(s string) (core.CategoryKind, bool) {
	n := Normalize(s)
	switch {
	case n == "":
		return "", false
	case strings.Contains(n, "fix"):
		return core.KindFixed, true
	case strings.Contains(n, "variav"), strings.Contains(n, "variab"):
		return core.KindVariable, true
	case strings.Contains(n, "income"), strings.Contains(n, "receita"), strings.Contains(n, "renda"):
		return core.KindIncome, true
	}
	return "", false
}

// ParseRecurrence reads the recurrence column. Only monthly markers count;
// everything else is a one-time row.
func ParseRecurrence(s string) core.RecurrenceType {
	switch Normalize(s) {
	case "monthly", "mensal", "month", "mes":
		return core.Monthly
	}
	return core.OneTime
}
