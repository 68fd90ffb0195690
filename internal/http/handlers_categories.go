package http

import (
	"net/http"
	"strings"

	"ledger/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "list_categories", err)
		return
	}

	cats, err := s.categories.List(ctx, tenantID)
	if err != nil {
		writeError(ctx, w, "list_categories", err)
		return
	}
	items := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		items = append(items, toCategoryJSON(c))
	}
	NewResponse().JSON(map[string]any{"items": items}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "create_category", err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, "create_category", err)
		return
	}

	cat, err := s.categories.Create(ctx, tenantID, sanitizeInput(req.Name), categoryKind(req.Kind))
	if err != nil {
		writeError(ctx, w, "create_category", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(toCategoryJSON(cat)).Write(w)
}

func categoryKind(s string) core.CategoryKind {
	return core.CategoryKind(strings.ToLower(strings.TrimSpace(s)))
}
