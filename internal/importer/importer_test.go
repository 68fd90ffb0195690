package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"(200.00)", "200.00"},
		{"-15,5", "15.50"},
		{"R$ 42,90", "42.90"},
		{"1,500", "1500.00"},
		{"1.234.567", "1234567.00"},
		{"$ 1,234,567.89", "1234567.89"},
		{"R$ 1.500", "1.50"},
		{"10", "10.00"},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q) unexpected error: %v", tc.in, err)
		}
		if core.FormatAmount(got) != tc.want {
			t.Fatalf("ParseAmount(%q) = %s, want %s", tc.in, core.FormatAmount(got), tc.want)
		}
	}

	for _, in := range []string{"", "abc", "0,00", ".,", "1.234", "1.2345", "$ 1,234,567.891"} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q) expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestDetectDateFormat(t *testing.T) {
	if got := DetectDateFormat([]string{"13/02/2025", "20/01/2025"}); got != DateDMY {
		t.Fatalf("expected dmy, got %s", got)
	}
	if got := DetectDateFormat([]string{"02/13/2025"}); got != DateMDY {
		t.Fatalf("expected mdy, got %s", got)
	}
	if got := DetectDateFormat([]string{"01/02/2025", "2025-01-03"}); got != DateDMY {
		t.Fatalf("ambiguous column should default to dmy, got %s", got)
	}
	if got := DetectDateFormat([]string{"13/01/2025", "01/13/2025"}); got != DateDMY {
		t.Fatalf("tie should resolve to dmy, got %s", got)
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in     string
		format DateFormat
		want   string
	}{
		{"2025-01-15", DateMDY, "2025-01-15"},
		{"2025/1/5", DateDMY, "2025-01-05"},
		{"2025-01-15T10:30:00Z", DateDMY, "2025-01-15"},
		{"05/01/2025", DateDMY, "2025-01-05"},
		{"05/01/2025", DateMDY, "2025-05-01"},
		{"31.12.24", DateDMY, "2024-12-31"},
		{"1-2-2025", DateDMY, "2025-02-01"},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in, tc.format)
		if err != nil || got.String() != tc.want {
			t.Fatalf("ParseDate(%q, %s) = %s (%v), want %s", tc.in, tc.format, got, err, tc.want)
		}
	}
	for _, in := range []string{"31/02/2025", "13/13/2025", "yesterday", ""} {
		if _, err := ParseDate(in, DateDMY); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("ParseDate(%q) expected ErrInvalidDate, got %v", in, err)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]string{
		"2025-03":    "2025-03",
		"2025/3":     "2025-03",
		"03/2025":    "2025-03",
		"15/03/2025": "2025-03",
	} {
		got, err := ParsePeriod(in, DateDMY)
		if err != nil || got.String() != want {
			t.Fatalf("ParsePeriod(%q) = %s (%v), want %s", in, got, err, want)
		}
	}
	if _, err := ParsePeriod("2025-13", DateDMY); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]Field{
		"Descrição":          FieldDescription,
		" VALOR (R$) ":       "",
		"Valor":              FieldAmount,
		"Data da Transação":  FieldDate,
		"Competência":        FieldPeriod,
		"Classificação":      FieldClassification,
		"\ufefftype":         FieldType,
		"Recorrência":        FieldRecurrence,
		"Unrelated Column!!": "",
	}
	for in, want := range cases {
		got, ok := CanonicalField(in)
		if want == "" {
			if ok {
				t.Fatalf("header %q should be unmapped, got %s", in, got)
			}
			continue
		}
		if !ok || got != want {
			t.Fatalf("header %q = %s, want %s", in, got, want)
		}
	}
}

func TestDetectDelimiter(t *testing.T) {
	if DetectDelimiter("data;descricao;valor") != ';' {
		t.Fatalf("expected semicolon")
	}
	if DetectDelimiter("date,description,amount") != ',' {
		t.Fatalf("expected comma")
	}
	if DetectDelimiter("a;b,c") != ',' {
		t.Fatalf("tie should resolve to comma")
	}
}

func TestParse(t *testing.T) {
	file := "\ufeffTipo;Data;Descrição;Valor;Categoria;Moeda;Recorrência\n" +
		"despesa;13/02/2025;Mercado;1.234,56;Groceries;;\n" +
		"receita;20/01/2025;Salário;5.000,00;;BRL;mensal\n" +
		";;;;;;\n" +
		"transfer;01/01/2025;Oops;10;;;\n" +
		"despesa;01/01/2025;Bad amount;abc;;;\n" +
		"despesa;;No date;10;;;\n"

	batch, err := Parse(strings.NewReader(file), Options{DateFormat: DateAuto, DefaultCurrency: core.BRL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Delimiter != ';' || batch.DateFormat != DateDMY {
		t.Fatalf("unexpected detection: %q %s", batch.Delimiter, batch.DateFormat)
	}
	if len(batch.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(batch.Rows))
	}
	if batch.ErrorCount != 3 || len(batch.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %d: %+v", batch.ErrorCount, batch.Errors)
	}
	wantLines := []int{5, 6, 7}
	for i, e := range batch.Errors {
		if e.Line != wantLines[i] {
			t.Fatalf("error %d: expected row %d, got %d", i, wantLines[i], e.Line)
		}
	}

	first := batch.Rows[0]
	if first.Line != 2 || first.Input.Type != core.Expense || first.Category != "Groceries" {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if first.Input.Date.String() != "2025-02-13" || first.Input.Period.String() != "2025-02" {
		t.Fatalf("unexpected date: %s %s", first.Input.Date, first.Input.Period)
	}
	if core.FormatAmount(first.Input.Amount) != "1234.56" || first.Input.Currency != core.BRL {
		t.Fatalf("unexpected amount/currency: %s %s", first.Input.Amount, first.Input.Currency)
	}
	if first.Input.CategoryKind != core.KindVariable {
		t.Fatalf("expense without classification should be variable, got %s", first.Input.CategoryKind)
	}

	second := batch.Rows[1]
	if second.Input.Type != core.Income || second.Input.CategoryKind != core.KindIncome {
		t.Fatalf("unexpected second row: %+v", second.Input)
	}
	if second.Input.RecurrenceType != core.Monthly {
		t.Fatalf("mensal should map to monthly, got %s", second.Input.RecurrenceType)
	}
}

func TestParseDuplicateHeadersFirstNonEmptyWins(t *testing.T) {
	file := "type,description,memo,amount,date\nexpense,,Coffee,3.50,2025-01-02\n"
	batch, err := Parse(strings.NewReader(file), Options{DefaultCurrency: core.USD})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Rows) != 1 || batch.Rows[0].Input.Description != "Coffee" {
		t.Fatalf("expected description from second alias column, got %+v", batch)
	}
}

func TestParseClassificationMismatchFallsBack(t *testing.T) {
	file := "type,description,amount,period,classification\nincome,Bonus,100,2025-01,fixed\nexpense,Rent,900,2025-01,Despesa Fixa\n"
	batch, err := Parse(strings.NewReader(file), Options{DefaultCurrency: core.USD})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d (%+v)", len(batch.Rows), batch.Errors)
	}
	if batch.Rows[0].Input.CategoryKind != core.KindIncome {
		t.Fatalf("income row should keep kind income, got %s", batch.Rows[0].Input.CategoryKind)
	}
	if batch.Rows[1].Input.CategoryKind != core.KindFixed {
		t.Fatalf("expected fixed, got %s", batch.Rows[1].Input.CategoryKind)
	}
}

func TestParseErrorsAreCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("type,description,amount,date\n")
	for i := 0; i < 40; i++ {
		b.WriteString("expense,Broken,not-a-number,2025-01-01\n")
	}
	batch, err := Parse(strings.NewReader(b.String()), Options{DefaultCurrency: core.USD})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.ErrorCount != 40 || len(batch.Errors) != core.MaxImportSamples {
		t.Fatalf("expected 40 errors with %d samples, got %d/%d", core.MaxImportSamples, batch.ErrorCount, len(batch.Errors))
	}
}

func TestParseFileErrors(t *testing.T) {
	if _, err := Parse(strings.NewReader("  \n"), Options{}); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := Parse(strings.NewReader("foo,bar\n1,2\n"), Options{}); !errors.Is(err, ErrNoRecognizedColumns) {
		t.Fatalf("expected ErrNoRecognizedColumns, got %v", err)
	}
	big := strings.Repeat("x", 64)
	if _, err := Parse(strings.NewReader(big), Options{MaxBytes: 32}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	catID := int64(4)
	txs := []core.Transaction{
		{
			Type: core.Expense, Date: core.NewDate(2025, 3, 9), Period: core.NewPeriod(2025, 3),
			Description: "Rent, March", Amount: decimal.RequireFromString("1500"), Currency: core.EUR,
			CategoryID: &catID, CategoryKind: core.KindFixed, RecurrenceType: core.Monthly,
		},
		{
			Type: core.Income, Period: core.NewPeriod(2025, 3), Description: "Salary",
			Amount: decimal.RequireFromString("3200.10"), Currency: core.EUR, CategoryKind: core.KindIncome,
			RecurrenceType: core.OneTime,
		},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, txs, map[int64]string{4: "Housing"}); err != nil {
		t.Fatalf("export: %v", err)
	}

	batch, err := Parse(&buf, Options{DefaultCurrency: core.BRL})
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if len(batch.Rows) != 2 || batch.ErrorCount != 0 {
		t.Fatalf("expected 2 clean rows, got %d rows, errors %+v", len(batch.Rows), batch.Errors)
	}
	rent := batch.Rows[0]
	if rent.Input.Description != "Rent, March" || rent.Category != "Housing" || rent.Input.CategoryKind != core.KindFixed {
		t.Fatalf("unexpected rent row: %+v", rent)
	}
	if rent.Input.Date.String() != "2025-03-09" || rent.Input.Currency != core.EUR {
		t.Fatalf("unexpected rent date/currency: %s %s", rent.Input.Date, rent.Input.Currency)
	}
	salary := batch.Rows[1]
	if !salary.Input.Date.IsEmpty() || salary.Input.Period.String() != "2025-03" {
		t.Fatalf("period-only row should stay dateless: %+v", salary.Input)
	}

	var tpl bytes.Buffer
	if err := WriteTemplate(&tpl); err != nil {
		t.Fatalf("template: %v", err)
	}
	if got := strings.TrimSpace(tpl.String()); got != "type,date,period,description,amount,category,classification,currency,source,recurrence" {
		t.Fatalf("unexpected template: %q", got)
	}
}
