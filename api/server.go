// Package api provides the HTTP JSON API server for kstock.
//
// It exposes name resolution, quote snapshots, price series, full lookups
// and the popular-search ranking to a presentation layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/kstock/internal/config"
	"github.com/seenimoa/kstock/internal/datasource"
	"github.com/seenimoa/kstock/internal/infra"
	"github.com/seenimoa/kstock/internal/logging"
	"github.com/seenimoa/kstock/internal/metrics"
	"github.com/seenimoa/kstock/internal/series"
	"github.com/seenimoa/kstock/pkg/models"
	"github.com/seenimoa/kstock/pkg/utils"
)

// maxPages bounds the history depth a client may request.
const maxPages = 200

// maxCompare bounds the number of names in one compare request.
const maxCompare = 10

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	agg     *datasource.Aggregator
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(stack *infra.Stack) *Server {
	s := &Server{
		cfg:     stack.Config,
		agg:     stack.Aggregator,
		metrics: stack.Metrics,
		log:     logging.Component(stack.Logger, "api"),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server and shuts it down gracefully on
// SIGINT or SIGTERM.
func (s *Server) ListenAndServe(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx, addr)
}

// Serve runs the HTTP server until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// Prometheus
	r.Handle("/metrics", s.metrics.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Name → code
		r.Get("/resolve", s.handleResolve)

		// Per-security data
		r.Get("/quote/{code}", s.handleQuote)
		r.Get("/series/{code}", s.handleSeries)

		// Pipelines
		r.Get("/lookup", s.handleLookup)
		r.Get("/compare", s.handleCompare)
		r.Get("/popular", s.handlePopular)

		// Effective configuration
		r.Get("/config", s.handleGetConfig)
	})

	return r
}

// requestLogger logs one line per request through logrus.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"elapsed":    time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Error codes returned in APIResponse.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeNotFound         = "not_found"
	CodeFetchFailed      = "fetch_failed"
	CodeExtractionFailed = "extraction_failed"
	CodeTimeout          = "timeout"
	CodeInternal         = "internal"
)

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"`
	MarketStatus string `json:"market_status"`
	Time         string `json:"time"`
}

// SeriesResponse is returned by GET /api/v1/series/{code}.
type SeriesResponse struct {
	Code   string             `json:"code"`
	Period models.Period      `json:"period"`
	Pages  int                `json:"pages"`
	Bars   models.PriceSeries `json:"bars"`
}

// CompareEntry is one element of GET /api/v1/compare.
type CompareEntry struct {
	Query  string         `json:"query"`
	Lookup *models.Lookup `json:"lookup,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := utils.NowKST()
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:       "ok",
			MarketStatus: utils.MarketStatus(now),
			Time:         utils.FormatDateTimeKST(now),
		},
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "query parameter q is required")
		return
	}
	sec, err := s.agg.KRX().Resolve(r.Context(), q)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: sec})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	code, ok := codeParam(w, r)
	if !ok {
		return
	}
	snap, err := s.agg.Naver().GetSnapshot(r.Context(), code)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	code, ok := codeParam(w, r)
	if !ok {
		return
	}
	period, ok := periodParam(w, r)
	if !ok {
		return
	}

	pages := s.agg.Depth().PagesFor(period)
	if raw := r.URL.Query().Get("pages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPages {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "pages must be between 1 and "+strconv.Itoa(maxPages))
			return
		}
		pages = n
	}

	bars, err := s.agg.Naver().GetSeries(r.Context(), code, pages)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: SeriesResponse{
			Code:   code,
			Period: period,
			Pages:  pages,
			Bars:   nonNil(series.Resample(bars, period)),
		},
	})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "query parameter q is required")
		return
	}
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	withNews, _ := strconv.ParseBool(r.URL.Query().Get("news"))

	res, err := s.agg.Lookup(r.Context(), q, period, withNews)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	res.Series = nonNil(res.Series)
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var queries []string
	for _, q := range r.URL.Query()["q"] {
		for _, part := range strings.Split(q, ",") {
			if part = strings.TrimSpace(part); part != "" {
				queries = append(queries, part)
			}
		}
	}
	if len(queries) == 0 || len(queries) > maxCompare {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "give between 1 and "+strconv.Itoa(maxCompare)+" names in q")
		return
	}
	period, ok := periodParam(w, r)
	if !ok {
		return
	}

	results, errs := s.agg.Compare(r.Context(), queries, period)
	out := make([]CompareEntry, len(queries))
	for i, q := range queries {
		out[i] = CompareEntry{Query: q, Lookup: results[i], Error: datasource.Describe(errs[i])}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Popular.Limit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.agg.Popular(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if rows == nil {
		rows = []models.PopularityRow{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: rows})
}

// ============================================================
// Helpers
// ============================================================

func codeParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	code := utils.NormalizeCode(chi.URLParam(r, "code"))
	if !utils.IsCode(code) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid security code")
		return "", false
	}
	return code, true
}

func periodParam(w http.ResponseWriter, r *http.Request) (models.Period, bool) {
	p, err := models.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return "", false
	}
	return p, true
}

func nonNil(s models.PriceSeries) models.PriceSeries {
	if s == nil {
		return models.PriceSeries{}
	}
	return s
}

// writeFailure maps a pipeline error to its status and code.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, CodeInternal
	switch {
	case errors.Is(err, datasource.ErrTickerNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, datasource.ErrExtractionFailed):
		status, code = http.StatusBadGateway, CodeExtractionFailed
	case errors.Is(err, datasource.ErrFetchFailed):
		status, code = http.StatusBadGateway, CodeFetchFailed
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, CodeTimeout
	}
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Warn("request failed")
	}
	writeError(w, status, code, datasource.Describe(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logrus.WithError(err).Error("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
		Code:    code,
	})
}
