package http

import "net/http"

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "report_summary", err)
		return
	}
	from, to, err := parseReportRange(r.URL.Query(), s.now())
	if err != nil {
		writeError(ctx, w, "report_summary", err)
		return
	}

	totals, err := s.reports.Summary(ctx, tenantID, from, to)
	if err != nil {
		writeError(ctx, w, "report_summary", err)
		return
	}
	NewResponse().JSON(toTotalsJSON(from, to, totals)).Write(w)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "report_monthly", err)
		return
	}
	from, to, err := parseSeriesRange(r.URL.Query(), s.now())
	if err != nil {
		writeError(ctx, w, "report_monthly", err)
		return
	}

	points, err := s.reports.MonthlySeries(ctx, tenantID, from, to)
	if err != nil {
		writeError(ctx, w, "report_monthly", err)
		return
	}
	NewResponse().JSON(map[string]any{
		"from":   from.String(),
		"to":     to.String(),
		"points": toSeriesJSON(points),
	}).Write(w)
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "report_categories", err)
		return
	}
	from, to, err := parseReportRange(r.URL.Query(), s.now())
	if err != nil {
		writeError(ctx, w, "report_categories", err)
		return
	}

	b, err := s.reports.CategoryBreakdown(ctx, tenantID, from, to)
	if err != nil {
		writeError(ctx, w, "report_categories", err)
		return
	}
	NewResponse().JSON(toBreakdownJSON(b)).Write(w)
}
