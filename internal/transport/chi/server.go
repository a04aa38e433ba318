package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/catalog"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
	"github.com/kailas-cloud/shopsearch/internal/logger"
	"github.com/kailas-cloud/shopsearch/internal/metrics"
	healthuc "github.com/kailas-cloud/shopsearch/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// Searcher runs a retrieval query.
type Searcher interface {
	Search(ctx context.Context, query, namespace string, rawFilters map[string]any) ([]result.Result, error)
	Normalize(rawFilters map[string]any) filter.Predicate
}

// FilterExtractor derives raw filters from the query text. It never fails.
type FilterExtractor interface {
	Extract(ctx context.Context, query string) map[string]any
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server is the HTTP API over the retrieval service.
type Server struct {
	search        Searcher
	extractor     FilterExtractor
	catalog       *catalog.Catalog
	health        HealthChecker
	apiKeys       []string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// Options configures optional collaborators. A nil Extractor disables
// filter extraction; a nil Catalog leaves title and description out of hits.
type Options struct {
	Extractor FilterExtractor
	Catalog   *catalog.Catalog
	APIKeys   []string
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, opts Options, logger *zap.Logger) *Server {
	s := &Server{
		search:    search,
		extractor: opts.Extractor,
		catalog:   opts.Catalog,
		health:    health,
		apiKeys:   opts.APIKeys,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, CodeRetrievalUnavailable),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
	}
	return s
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/api/search", s.Search)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query     string         `json:"query"`
	Namespace string         `json:"namespace,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`
}

// SearchHit is one ranked product.
type SearchHit struct {
	ID          string         `json:"id"`
	Rank        int            `json:"rank"`
	Score       float64        `json:"score"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
}

// SearchResponse is the body returned by POST /api/search. Filters is the
// normalized predicate the search applied.
type SearchResponse struct {
	Items   []SearchHit    `json:"items"`
	Filters map[string]any `json:"filters,omitempty"`
	Total   int            `json:"total"`
}

// Search handles POST /api/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	filters := req.Filters
	if filters == nil && s.extractor != nil && strings.TrimSpace(req.Query) != "" {
		filters = s.extractor.Extract(r.Context(), req.Query)
		logger.FromContext(r.Context()).Debug("Extracted filters", zap.Any("filters", filters))
	}

	results, err := s.search.Search(r.Context(), req.Query, req.Namespace, filters)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]SearchHit, len(results))
	for i := range results {
		items[i] = s.hit(&results[i])
	}
	resp := SearchResponse{Items: items, Total: len(items)}
	if pred := s.search.Normalize(filters); !pred.IsEmpty() {
		resp.Filters = pred.Map()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) hit(res *result.Result) SearchHit {
	h := SearchHit{
		ID:       res.ID(),
		Rank:     res.Rank(),
		Score:    res.Score(),
		Metadata: res.Metadata(),
	}
	if p, ok := s.catalog.Get(res.ID()); ok {
		h.Title = p.Title
		h.Description = p.Description
	}
	return h
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	writeError(w, http.StatusInternalServerError, CodeInternal, msg)
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrRetrievalUnavailable,
		domain.ErrRateLimited,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeValidationFailed     ErrorCode = "validation_failed"
	CodeRateLimited          ErrorCode = "rate_limited"
	CodeRetrievalUnavailable ErrorCode = "retrieval_unavailable"
	CodeNotFound             ErrorCode = "not_found"
	CodeInternal             ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
