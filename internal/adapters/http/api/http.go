// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/reviewlens/internal/adapters/mq/queue"
	"github.com/okian/reviewlens/internal/adapters/repository"
	service "github.com/okian/reviewlens/internal/app"
	"github.com/okian/reviewlens/internal/domain/classifier"
	"github.com/okian/reviewlens/internal/domain/consistency"
	"github.com/okian/reviewlens/internal/domain/record"
	"github.com/okian/reviewlens/internal/domain/sentiment"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AnalyzeDependencies
	RecordsDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	analyzeHandler *AnalyzeHandler
	recordsHandler *RecordsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxRecordsLimit int) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		analyzeHandler: NewAnalyzeHandler(deps),
		recordsHandler: NewRecordsHandler(deps, maxRecordsLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/analyze", MetricsMiddleware(s.analyzeHandler.HandleAnalyze, "analyze"))
	mux.HandleFunc("/records", MetricsMiddleware(s.recordsHandler.HandleGetRecords, "records"))
	mux.HandleFunc("/records/summary", MetricsMiddleware(s.recordsHandler.HandleGetSummary, "records_summary"))
}

// analyzeRequest mirrors the OpenAPI schema for POST /analyze.
type analyzeRequest struct {
	Product string `json:"product"`
	Rating  int    `json:"rating"`
	Review  string `json:"review"`
}

// analysisResponse mirrors the OpenAPI schema for a completed analysis.
type analysisResponse struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	Product      string                 `json:"product"`
	Rating       int                    `json:"rating"`
	Review       string                 `json:"review"`
	Sentiment    sentiment.Label        `json:"sentiment"`
	Confidences  sentiment.Distribution `json:"confidences"`
	Mismatch     bool                   `json:"mismatch"`
	Persisted    bool                   `json:"persisted"`
	PersistError string                 `json:"persist_error,omitempty"`
}

func newAnalysisResponse(a record.Analysis, persistErr error) analysisResponse {
	resp := analysisResponse{
		ID:          a.ID,
		Timestamp:   a.Record.Timestamp,
		Product:     a.Record.Product,
		Rating:      a.Record.Rating,
		Review:      a.Record.Review,
		Sentiment:   a.Record.Sentiment,
		Confidences: a.Record.Confidences,
		Mismatch:    a.Record.Mismatch,
		Persisted:   a.Persisted,
	}
	if persistErr != nil {
		resp.PersistError = persistErr.Error()
	}
	return resp
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classifyError maps pipeline errors onto an HTTP status and error code.
func classifyError(op string, err error) (int, string, error) {
	switch {
	case errors.Is(err, service.ErrEmptyReview), errors.Is(err, consistency.ErrInvalidRating):
		return http.StatusBadRequest, "invalid_input", WrapKind(op, ErrBadRequest, err)
	case errors.Is(err, classifier.ErrTokenization):
		return http.StatusUnprocessableEntity, "tokenization_error", Wrap(op, err)
	case errors.Is(err, classifier.ErrModelLoad), errors.Is(err, service.ErrNoClassifier):
		return http.StatusServiceUnavailable, "model_unavailable", WrapKind(op, ErrUnavailable, err)
	case errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err)
	case errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled", WrapKind(op, ErrUnavailable, err)
	case errors.Is(err, repository.ErrStoreCorrupt):
		return http.StatusInternalServerError, "store_corrupt", Wrap(op, err)
	case errors.Is(err, repository.ErrStoreWrite), errors.Is(err, service.ErrNoStore):
		return http.StatusInternalServerError, "store_error", Wrap(op, err)
	default:
		return http.StatusInternalServerError, "internal_error", Wrap(op, err)
	}
}

func parseLimit(raw string, def, maxLimit int) (int, error) {
	if raw == "" {
		return min(def, maxLimit), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	return min(n, maxLimit), nil
}
