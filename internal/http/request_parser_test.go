package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ledger/internal/core"
)

func TestTenantFrom(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    int64
		wantErr bool
	}{
		{name: "valid", header: "42", want: 42},
		{name: "padded", header: " 7 ", want: 7},
		{name: "missing", header: "", wantErr: true},
		{name: "zero", header: "0", wantErr: true},
		{name: "negative", header: "-3", wantErr: true},
		{name: "not a number", header: "acme", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderTenantID, tt.header)
			}
			got, err := tenantFrom(req)
			if tt.wantErr {
				if !errors.Is(err, core.ErrMissingTenant) {
					t.Fatalf("expected ErrMissingTenant, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("tenantFrom() = %d, %v; want %d", got, err, tt.want)
			}
		})
	}
}

func TestQueryBool(t *testing.T) {
	q := url.Values{"a": {"true"}, "b": {"1"}, "c": {"no"}, "d": {"YES"}}
	want := map[string]bool{"a": true, "b": true, "c": false, "d": true, "missing": false}
	for key, w := range want {
		if got := queryBool(q, key); got != w {
			t.Errorf("queryBool(%q) = %v, want %v", key, got, w)
		}
	}
}

func TestParseReportRange(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		query    string
		wantFrom string
		wantTo   string
		wantErr  bool
	}{
		{name: "explicit range", query: "from=2025-01&to=2025-02", wantFrom: "2025-01", wantTo: "2025-02"},
		{name: "full dates accepted", query: "from=2025-01-20&to=2025-02-01", wantFrom: "2025-01", wantTo: "2025-02"},
		{name: "last three months", query: "last=3", wantFrom: "2025-01", wantTo: "2025-03"},
		{name: "last one month", query: "last=1", wantFrom: "2025-03", wantTo: "2025-03"},
		{name: "last zero", query: "last=0", wantErr: true},
		{name: "last too long", query: "last=241", wantErr: true},
		{name: "bad from", query: "from=2025-13&to=2025-02", wantErr: true},
		{name: "missing bounds are left to the service", query: "", wantFrom: "", wantTo: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			from, to, err := parseReportRange(q, now)
			if tt.wantErr {
				var reqErr *requestError
				if !errors.As(err, &reqErr) {
					t.Fatalf("expected requestError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := from.String(); got != tt.wantFrom {
				t.Errorf("from = %q, want %q", got, tt.wantFrom)
			}
			if got := to.String(); got != tt.wantTo {
				t.Errorf("to = %q, want %q", got, tt.wantTo)
			}
		})
	}
}

func TestParseSeriesRangeDefaultsToTrailingYear(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	from, to, err := parseSeriesRange(url.Values{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if from.String() != "2024-04" || to.String() != "2025-03" {
		t.Fatalf("got %s..%s, want 2024-04..2025-03", from, to)
	}
}

func TestParseFilter(t *testing.T) {
	q, _ := url.ParseQuery("from=2025-01-01&to=2025-01-31&monthFrom=2024-12&type=EXPENSE&categoryId=3&categoryKind=fixed&q=%20rent%20&limit=50")
	f, err := parseFilter(q)
	if err != nil {
		t.Fatalf("parseFilter: %v", err)
	}
	if f.From.String() != "2025-01-01" || f.To.String() != "2025-01-31" {
		t.Errorf("date bounds = %s..%s", f.From, f.To)
	}
	if f.MonthFrom.String() != "2024-12" || !f.MonthTo.IsZero() {
		t.Errorf("month bounds = %v..%v", f.MonthFrom, f.MonthTo)
	}
	if f.Type != core.Expense || f.CategoryKind != core.KindFixed {
		t.Errorf("type/kind = %s/%s", f.Type, f.CategoryKind)
	}
	if f.CategoryID == nil || *f.CategoryID != 3 {
		t.Errorf("categoryId = %v", f.CategoryID)
	}
	if f.Text != "rent" || f.Limit != 50 {
		t.Errorf("text/limit = %q/%d", f.Text, f.Limit)
	}

	f, err = parseFilter(url.Values{})
	if err != nil || f.Limit != defaultListLimit {
		t.Fatalf("empty filter: %+v, %v", f, err)
	}

	for _, bad := range []string{"type=transfer", "categoryId=x", "categoryKind=misc", "limit=0", "limit=99999", "from=01/02/2025", "monthTo=2025"} {
		q, _ := url.ParseQuery(bad)
		if _, err := parseFilter(q); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

func TestTransactionRequestInput(t *testing.T) {
	var req transactionRequest
	body := `{"type":"expense","date":"2025-01-10","description":"  Rent\u0007 ","amount":1200.5,"categoryKind":"FIXED","currency":"eur","recurrenceType":"Monthly","recurrenceEndMonth":"2025-06"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	in, err := req.input()
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	if in.Description != "Rent" {
		t.Errorf("description = %q", in.Description)
	}
	if core.FormatAmount(in.Amount) != "1200.50" {
		t.Errorf("amount = %s", in.Amount)
	}
	if in.Date.String() != "2025-01-10" || in.RecurrenceEnd.String() != "2025-06" {
		t.Errorf("date/end = %s/%s", in.Date, in.RecurrenceEnd)
	}
	if in.Currency != core.EUR || in.CategoryKind != core.KindFixed || in.RecurrenceType != core.Monthly {
		t.Errorf("normalised fields = %s/%s/%s", in.Currency, in.CategoryKind, in.RecurrenceType)
	}

	stringAmount := transactionRequest{Type: "income", Period: "2025-02", Description: "x", Amount: "10.25"}
	in, err = stringAmount.input()
	if err != nil || core.FormatAmount(in.Amount) != "10.25" || in.Period.String() != "2025-02" {
		t.Fatalf("string amount: %+v, %v", in, err)
	}

	commaAmount := transactionRequest{Type: "expense", Period: "2025-02", Description: "x", Amount: "12,34"}
	in, err = commaAmount.input()
	if err != nil || core.FormatAmount(in.Amount) != "12.34" {
		t.Fatalf("comma amount: %+v, %v", in, err)
	}

	for name, req := range map[string]transactionRequest{
		"empty amount":  {Type: "income", Period: "2025-02", Description: "x"},
		"signed amount": {Type: "income", Period: "2025-02", Description: "x", Amount: "-3"},
		"zero amount":   {Type: "income", Period: "2025-02", Description: "x", Amount: "0,00"},
		"bad date":      {Type: "income", Date: "10/01/2025", Description: "x", Amount: "1"},
		"bad period":    {Type: "income", Period: "2025-13", Description: "x", Amount: "1"},
		"bad end":       {Type: "income", Period: "2025-01", Description: "x", Amount: "1", RecurrenceEnd: "soon"},
	} {
		if _, err := req.input(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var req categoryRequest
	rec := httptest.NewRecorder()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Food","kind":"variable"}`))
	if err := decodeJSON(rec, r, &req); err != nil || req.Name != "Food" {
		t.Fatalf("decode: %+v, %v", req, err)
	}

	for _, body := range []string{`{"name":"Food","color":"red"}`, `{"name":`, `{"name":"a"}{"name":"b"}`} {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if err := decodeJSON(rec, r, &req); !errors.Is(err, errMalformedBody) {
			t.Errorf("%s: expected errMalformedBody, got %v", body, err)
		}
	}
}
