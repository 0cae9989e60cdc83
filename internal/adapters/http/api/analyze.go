package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/reviewlens/internal/app"
	"github.com/okian/reviewlens/internal/domain/record"
)

const maxRequestBytes = 1 << 20

// AnalyzeDependencies defines what POST /analyze needs.
type AnalyzeDependencies interface {
	// Submit runs one analysis through the single-writer queue.
	Submit(ctx context.Context, in record.Input) (record.Analysis, error)
}

// AnalyzeHandler handles analysis requests.
type AnalyzeHandler struct {
	deps AnalyzeDependencies
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(deps AnalyzeDependencies) *AnalyzeHandler {
	return &AnalyzeHandler{deps: deps}
}

// HandleAnalyze handles POST /analyze requests.
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "api.analyze"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	a, err := h.deps.Submit(r.Context(), record.Input(req))
	if a.ID != "" {
		w.Header().Set("X-Request-ID", a.ID)
	}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newAnalysisResponse(a, nil))
	case service.Unsaved(a, err):
		// The analysis is valid; the caller must see that it was not saved.
		writeJSON(w, http.StatusOK, newAnalysisResponse(a, err))
	default:
		status, code, werr := classifyError(op, err)
		writeError(w, status, code, werr)
	}
}
