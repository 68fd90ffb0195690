package http

import (
	"net/http"

	"ledger/internal/core"
	"ledger/internal/importer"
	"ledger/internal/services"
)

type importResponse struct {
	Mode   core.ImportMode        `json:"mode"`
	Policy core.DuplicatePolicy   `json:"duplicatePolicy"`
	Check  *services.Preview      `json:"preview,omitempty"`
	Result *services.ImportResult `json:"result,omitempty"`
}

func parseImportOptions(r *http.Request) (services.ImportOptions, error) {
	q := r.URL.Query()
	var opts services.ImportOptions
	var err error

	if opts.Mode, err = core.ParseImportMode(q.Get("mode")); err != nil {
		return opts, invalidParam("mode", err)
	}
	if opts.Policy, err = core.ParseDuplicatePolicy(q.Get("duplicatePolicy")); err != nil {
		return opts, invalidParam("duplicatePolicy", err)
	}
	if opts.DateFormat, err = importer.ParseDateFormat(q.Get("dateFormat")); err != nil {
		return opts, invalidParam("dateFormat", err)
	}
	opts.CreateMissingCategories = queryBool(q, "createMissingCategories")
	return opts, nil
}

// handleImport runs a check or a commit over the uploaded file.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := tenantFrom(r)
	if err != nil {
		writeError(ctx, w, "import", err)
		return
	}
	opts, err := parseImportOptions(r)
	if err != nil {
		writeError(ctx, w, "import", err)
		return
	}

	src, err := importSource(w, r, s.importMaxBytes)
	if err != nil {
		writeError(ctx, w, "import", err)
		return
	}
	defer src.Close()

	resp := importResponse{Mode: opts.Mode, Policy: opts.Policy}

	if opts.Mode == core.ModeCheck {
		preview, err := s.imports.Check(ctx, tenantID, src, opts)
		if err != nil {
			writeError(ctx, w, "import_check", err)
			return
		}
		resp.Check = &preview
		NewResponse().JSON(resp).Write(w)
		return
	}

	result, err := s.imports.Commit(ctx, tenantID, src, opts)
	if err != nil {
		writeError(ctx, w, "import_commit", err)
		return
	}
	resp.Result = &result
	NewResponse().JSON(resp).Write(w)
}
