package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"ledger/internal/core"
	"ledger/internal/importer"
)

// HeaderTenantID is set by the upstream auth layer.
const HeaderTenantID = "X-Tenant-ID"

const (
	defaultListLimit = 200
	maxListLimit     = 5000
	maxJSONBody      = 1 << 20
	defaultLastN     = 12
)

var errMalformedBody = errors.New("malformed JSON body")

// tenantFrom reads the tenant id header. A missing or non-positive value is
// core.ErrMissingTenant.
func tenantFrom(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderTenantID))
	if raw == "" {
		return 0, core.ErrMissingTenant
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", core.ErrMissingTenant, raw)
	}
	return id, nil
}

// pathID reads a positive integer route variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidParam(name, fmt.Errorf("invalid id %q", raw))
	}
	return id, nil
}

// queryBool treats 1, true, yes and on as true.
func queryBool(q url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(q.Get(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func queryPeriod(q url.Values, key string) (core.Period, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return core.Period{}, nil
	}
	p, err := core.ParsePeriod(raw)
	if err != nil {
		return core.Period{}, invalidParam(key, err)
	}
	return p, nil
}

func queryDate(q url.Values, key string) (core.Date, error) {
	d, err := core.ParseDate(q.Get(key))
	if err != nil {
		return core.Date{}, invalidParam(key, err)
	}
	return d, nil
}

// parseReportRange reads from/to, or last=N months ending at the current
// month. Missing bounds are left zero for the service to reject.
func parseReportRange(q url.Values, now time.Time) (core.Period, core.Period, error) {
	if raw := strings.TrimSpace(q.Get("last")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > core.MaxReportMonths {
			return core.Period{}, core.Period{}, invalidParam("last",
				fmt.Errorf("must be between 1 and %d", core.MaxReportMonths))
		}
		from, to := core.LastNMonths(now, n)
		return from, to, nil
	}

	from, err := queryPeriod(q, "from")
	if err != nil {
		return core.Period{}, core.Period{}, err
	}
	to, err := queryPeriod(q, "to")
	if err != nil {
		return core.Period{}, core.Period{}, err
	}
	return from, to, nil
}

// parseSeriesRange is parseReportRange with a trailing year as the default.
func parseSeriesRange(q url.Values, now time.Time) (core.Period, core.Period, error) {
	if q.Get("from") == "" && q.Get("to") == "" && q.Get("last") == "" {
		from, to := core.LastNMonths(now, defaultLastN)
		return from, to, nil
	}
	return parseReportRange(q, now)
}

// parseFilter builds a listing filter from query parameters.
func parseFilter(q url.Values) (core.TransactionFilter, error) {
	var f core.TransactionFilter
	var err error

	if f.From, err = queryDate(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(q, "to"); err != nil {
		return f, err
	}
	if f.MonthFrom, err = queryPeriod(q, "monthFrom"); err != nil {
		return f, err
	}
	if f.MonthTo, err = queryPeriod(q, "monthTo"); err != nil {
		return f, err
	}

	if raw := strings.ToLower(strings.TrimSpace(q.Get("type"))); raw != "" {
		f.Type = core.TransactionType(raw)
		if !f.Type.Valid() {
			return f, invalidParam("type", core.ErrInvalidType)
		}
	}
	if raw := strings.TrimSpace(q.Get("categoryId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return f, invalidParam("categoryId", fmt.Errorf("invalid id %q", raw))
		}
		f.CategoryID = &id
	}
	if raw := strings.ToLower(strings.TrimSpace(q.Get("categoryKind"))); raw != "" {
		f.CategoryKind = core.CategoryKind(raw)
		if !f.CategoryKind.Valid() {
			return f, invalidParam("categoryKind", core.ErrInvalidCategoryKind)
		}
	}
	f.Text = sanitizeInput(q.Get("q"))

	f.Limit = defaultListLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			return f, invalidParam("limit", fmt.Errorf("must be between 1 and %d", maxListLimit))
		}
		f.Limit = n
	}
	return f, nil
}

// decodeJSON reads a bounded JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return nil
}

// amountValue accepts a JSON number or string and keeps its exact digits.
type amountValue string

func (a *amountValue) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*a = amountValue(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = amountValue(n.String())
	return nil
}

// transactionRequest is the JSON body of create and update.
type transactionRequest struct {
	Type           string      `json:"type"`
	Date           string      `json:"date"`
	Period         string      `json:"period"`
	Description    string      `json:"description"`
	Amount         amountValue `json:"amount"`
	CategoryID     *int64      `json:"categoryId"`
	CategoryKind   string      `json:"categoryKind"`
	Currency       string      `json:"currency"`
	Source         string      `json:"source"`
	RecurrenceType string      `json:"recurrenceType"`
	RecurrenceEnd  string      `json:"recurrenceEndMonth"`
}

// input converts the body into a TransactionInput. Field validation beyond
// parsing is left to the ledger.
func (req transactionRequest) input() (core.TransactionInput, error) {
	in := core.TransactionInput{
		Type:           core.TransactionType(req.Type),
		Description:    sanitizeInput(req.Description),
		CategoryID:     req.CategoryID,
		CategoryKind:   core.CategoryKind(strings.ToLower(strings.TrimSpace(req.CategoryKind))),
		Currency:       core.Currency(strings.ToUpper(strings.TrimSpace(req.Currency))),
		Source:         sanitizeInput(req.Source),
		RecurrenceType: core.RecurrenceType(strings.ToLower(strings.TrimSpace(req.RecurrenceType))),
	}

	amount, err := core.ParseDecimal(string(req.Amount))
	if err != nil {
		return in, invalidParam("amount", err)
	}
	in.Amount = amount

	if in.Date, err = core.ParseDate(req.Date); err != nil {
		return in, invalidParam("date", err)
	}
	if strings.TrimSpace(req.Period) != "" {
		if in.Period, err = core.ParsePeriod(req.Period); err != nil {
			return in, invalidParam("period", err)
		}
	}
	if strings.TrimSpace(req.RecurrenceEnd) != "" {
		if in.RecurrenceEnd, err = core.ParsePeriod(req.RecurrenceEnd); err != nil {
			return in, invalidParam("recurrenceEndMonth", err)
		}
	}
	return in, nil
}

type categoryRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// multipartOverhead is the room left for part headers and boundaries on
// top of the import size limit.
const multipartOverhead = 64 << 10

var errMissingFile = errors.New(`multipart field "file" is required`)

// importSource returns the uploaded file: the multipart field "file" when
// the request is multipart, otherwise the raw body. The body is capped so
// an oversized upload is refused while it streams in.
func importSource(w http.ResponseWriter, r *http.Request, maxBytes int64) (io.ReadCloser, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.Body, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, invalidParam("file", err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, invalidParam("file", errMissingFile)
		}
		if err != nil {
			return nil, uploadError(err)
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

// uploadError reports a body over the cap as importer.ErrFileTooLarge.
func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", importer.ErrFileTooLarge, tooLarge.Limit)
	}
	return invalidParam("file", err)
}
