package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"ledger/internal/importer"
	applog "ledger/internal/log"
)

type createResponse struct {
	ID                int64  `json:"id,omitempty"`
	RecurrenceGroupID string `json:"recurrenceGroupId,omitempty"`
	Count             int    `json:"count,omitempty"`
}

type mutationResponse struct {
	OK            bool     `json:"ok"`
	SeriesUpdated *bool    `json:"seriesUpdated,omitempty"`
	SeriesDeleted *bool    `json:"seriesDeleted,omitempty"`
	Affected      int64    `json:"affected"`
	Periods       []string `json:"periods"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "create_transaction", err)
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, "create_transaction", err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(ctx, w, "create_transaction", err)
		return
	}

	res, err := s.ledger.Create(ctx, tenantID, in)
	if err != nil {
		writeError(ctx, w, "create_transaction", err)
		return
	}

	body := createResponse{ID: res.ID}
	if res.RecurrenceGroupID != "" {
		body = createResponse{RecurrenceGroupID: res.RecurrenceGroupID, Count: res.Count}
	}
	NewResponse().Status(http.StatusCreated).JSON(body).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "get_transaction", err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, w, "get_transaction", err)
		return
	}

	tx, err := s.ledger.Get(ctx, tenantID, id)
	if err != nil {
		writeError(ctx, w, "get_transaction", err)
		return
	}
	NewResponse().JSON(toTransactionJSON(tx)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "update_transaction", err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, w, "update_transaction", err)
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, "update_transaction", err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(ctx, w, "update_transaction", err)
		return
	}

	applyToSeries := queryBool(r.URL.Query(), "applyToSeries")
	res, err := s.ledger.Update(ctx, tenantID, id, in, applyToSeries)
	if err != nil {
		writeError(ctx, w, "update_transaction", err)
		return
	}

	body := mutationResponse{OK: true, Affected: res.Updated, Periods: periodStrings(res.Periods)}
	if applyToSeries {
		body.SeriesUpdated = &res.SeriesUpdated
	}
	NewResponse().JSON(body).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "delete_transaction", err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, w, "delete_transaction", err)
		return
	}

	series := queryBool(r.URL.Query(), "series")
	res, err := s.ledger.Delete(ctx, tenantID, id, series)
	if err != nil {
		writeError(ctx, w, "delete_transaction", err)
		return
	}

	body := mutationResponse{OK: true, Affected: res.Deleted, Periods: periodStrings(res.Periods)}
	if series {
		body.SeriesDeleted = &res.SeriesDeleted
	}
	NewResponse().JSON(body).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "list_transactions", err)
		return
	}
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(ctx, w, "list_transactions", err)
		return
	}

	txs, err := s.ledger.List(ctx, tenantID, filter)
	if err != nil {
		writeError(ctx, w, "list_transactions", err)
		return
	}

	items := make([]transactionJSON, 0, len(txs))
	for _, tx := range txs {
		items = append(items, toTransactionJSON(tx))
	}
	NewResponse().JSON(map[string]any{"items": items, "count": len(items)}).Write(w)
}

// handleExportTransactions streams the filtered listing as CSV. The
// default limit does not apply.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "export_transactions", err)
		return
	}
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		writeError(ctx, w, "export_transactions", err)
		return
	}
	if q.Get("limit") == "" {
		filter.Limit = 0
	}

	// buffer so a failure can still be reported as JSON
	var buf bytes.Buffer
	n, err := s.ledger.Export(ctx, tenantID, filter, &buf)
	if err != nil {
		writeError(ctx, w, "export_transactions", err)
		return
	}

	applog.FromContext(ctx).InfoContext(ctx, "Transactions exported",
		applog.FieldTenantID, tenantID, "rows", n)

	filename := fmt.Sprintf("transactions-%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := importer.WriteTemplate(&buf); err != nil {
		writeError(r.Context(), w, "import_template", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions-template.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
