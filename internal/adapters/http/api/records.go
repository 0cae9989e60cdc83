package api

import (
	"context"
	"net/http"

	service "github.com/okian/reviewlens/internal/app"
	"github.com/okian/reviewlens/internal/domain/record"
)

const defaultRecordsLimit = 50

// RecordsDependencies defines the read side of the analysis log.
type RecordsDependencies interface {
	Records(ctx context.Context, limit int) ([]record.Record, error)
	Summary(ctx context.Context) (service.Summary, error)
}

// RecordsHandler handles analysis log queries.
type RecordsHandler struct {
	deps     RecordsDependencies
	maxLimit int
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps RecordsDependencies, maxLimit int) *RecordsHandler {
	if maxLimit < 1 {
		maxLimit = defaultRecordsLimit
	}
	return &RecordsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetRecords handles GET /records?limit=N requests. Records come back
// oldest first; limit keeps the most recent N and is capped at the maximum.
func (h *RecordsHandler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_records"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, err := parseLimit(r.URL.Query().Get("limit"), defaultRecordsLimit, h.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rs, err := h.deps.Records(r.Context(), n)
	if err != nil {
		status, code, werr := classifyError(op, err)
		writeError(w, status, code, werr)
		return
	}
	if rs == nil {
		rs = []record.Record{}
	}
	writeJSON(w, http.StatusOK, rs)
}

// HandleGetSummary handles GET /records/summary requests.
func (h *RecordsHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_summary"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	sum, err := h.deps.Summary(r.Context())
	if err != nil {
		status, code, werr := classifyError(op, err)
		writeError(w, status, code, werr)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
