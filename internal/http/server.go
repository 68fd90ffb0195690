package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	applog "ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services behind the API.
type Services struct {
	Ledger     *services.LedgerService
	Imports    *services.ImportService
	Reports    *services.ReportService
	Categories *services.CategoryService
	Store      Pinger
}

// Options tune the HTTP layer.
type Options struct {
	RateLimitPerMinute int
	ImportMaxBytes     int64
	Logger             *applog.Logger
}

type Server struct {
	http.Server

	ledger         *services.LedgerService
	imports        *services.ImportService
	reports        *services.ReportService
	categories     *services.CategoryService
	store          Pinger
	importMaxBytes int64
	now            func() time.Time

	logger      *applog.Logger
	limiter     *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	shutdownOne sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:         svc.Ledger,
		imports:        svc.Imports,
		reports:        svc.Reports,
		categories:     svc.Categories,
		store:          svc.Store,
		importMaxBytes: opts.ImportMaxBytes,
		now:            time.Now,
		logger:         logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Middleware(s.rateLimitKey, s.onRateLimit))

	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/export", s.handleExportTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleGetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleUpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	api.HandleFunc("/imports", s.handleImport).Methods(http.MethodPost)
	api.HandleFunc("/imports/template", s.handleImportTemplate).Methods(http.MethodGet)

	api.HandleFunc("/reports/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/reports/monthly", s.handleMonthly).Methods(http.MethodGet)
	api.HandleFunc("/reports/categories", s.handleCategoryBreakdown).Methods(http.MethodGet)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)

	// trace wraps everything so blocked requests still get an id
	var h http.Handler = r
	h = s.detector.Middleware(s.onSuspicious)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

// rateLimitKey buckets by tenant header and client address.
func (s *Server) rateLimitKey(r *http.Request) string {
	return r.Header.Get(HeaderTenantID) + "|" + s.detector.ExtractClientIP(r)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldTenantID, r.Header.Get(HeaderTenantID),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, retry later").Write(w)
}

func (s *Server) onSuspicious(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request blocked",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
		applog.FieldUserAgent, r.Header.Get("User-Agent"),
		"reason", security.Inspect(r))
	ErrorResponse(http.StatusBadRequest, "bad request").Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

// handleReady pings the database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

// Stats is a snapshot of the HTTP layer counters.
type Stats struct {
	Requests           int64
	ServerErrors       int64
	AverageLatency     time.Duration
	RateLimited        int64
	SuspiciousRequests int64
}

func (s *Server) Stats() Stats {
	tm := s.tracer.GetMetrics()
	return Stats{
		Requests:           tm.TotalRequests,
		ServerErrors:       tm.ServerErrors,
		AverageLatency:     tm.AverageResponseTime(),
		RateLimited:        s.limiter.GetMetrics().Rejected,
		SuspiciousRequests: s.detector.GetMetrics().SuspiciousRequests,
	}
}

// Shutdown stops the limiter and drains the server. Safe to call more
// than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOne.Do(func() {
		s.limiter.Stop()
		stats := s.Stats()
		s.logger.Info("HTTP server stopping",
			"requests", stats.Requests,
			"server_errors", stats.ServerErrors,
			"rate_limited", stats.RateLimited,
			"avg_latency", stats.AverageLatency.String())
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
