// Package chi exposes the recommendation engine over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/profile"
	"github.com/kailas-cloud/suggest/internal/domain/recommendation"
	"github.com/kailas-cloud/suggest/internal/logger"
	healthuc "github.com/kailas-cloud/suggest/internal/usecase/health"
	"github.com/kailas-cloud/suggest/internal/usecase/recommend"
)

// maxProfileBytes bounds the request body of a suggestion request.
const maxProfileBytes = 1 << 20

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Recommender produces recommendations for a profile.
type Recommender interface {
	Recommend(ctx context.Context, p *profile.Profile) ([]recommendation.Slim, error)
	Categories() []recommend.CategoryInfo
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the suggestion API.
type Server struct {
	recommender   Recommender
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(recommender Recommender, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		recommender: recommender,
		health:      health,
		logger:      logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrUnknownCategory, http.StatusBadRequest),
			sentinelHandler(domain.ErrMalformedProfile, http.StatusBadRequest),
			sentinelHandler(domain.ErrEngineFailure, http.StatusInternalServerError),
		},
	}
}

type suggestionResponse struct {
	Status          string                `json:"status"`
	Recommendations []recommendation.Slim `json:"recommendations"`
}

type categoryItem struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
}

type categoriesResponse struct {
	Status     string         `json:"status"`
	Categories []categoryItem `json:"categories"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string                          `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// Suggest handles POST /api/v1/suggestions.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProfileBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	p, err := profile.Parse(body)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	recs, err := s.recommender.Recommend(ctx, &p)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}
	if recs == nil {
		recs = []recommendation.Slim{}
	}

	writeJSON(w, http.StatusOK, suggestionResponse{Status: statusSuccess, Recommendations: recs})
}

// ListCategories handles GET /api/v1/categories.
func (s *Server) ListCategories(w http.ResponseWriter, _ *http.Request) {
	infos := s.recommender.Categories()
	items := make([]categoryItem, len(infos))
	for i, c := range infos {
		items[i] = categoryItem{Name: c.Name, Documents: c.Documents}
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Status: statusSuccess, Categories: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: report.Checks,
	})
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: statusError, Message: message})
}

func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			if errors.Is(err, domain.ErrEngineFailure) {
				log.Error("Suggestion failed", zap.Error(err))
			} else {
				log.Warn("Suggestion rejected", zap.Error(err))
			}
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
