package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ledger"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/service/governance"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	governance          *governance.Service
	ledger              ledger.Store
	purger              ledger.Purger
	archiver            ledger.Archiver
	retentionDays       int
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Purger, Archiver.
type HandlersDeps struct {
	Governance          *governance.Service
	Ledger              ledger.Store
	Purger              ledger.Purger
	Archiver            ledger.Archiver
	RetentionDays       int
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		governance:          d.Governance,
		ledger:              d.Ledger,
		purger:              d.Purger,
		archiver:            d.Archiver,
		retentionDays:       d.RetentionDays,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Ledger:  "ok",
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	}
	httpStatus := http.StatusOK

	n, err := h.ledger.Count(r.Context())
	if err != nil {
		resp.Status = "unhealthy"
		resp.Ledger = "unavailable"
		httpStatus = http.StatusServiceUnavailable
	}
	resp.LedgerEntries = n

	if score, err := h.governance.Aggressiveness(r.Context()); err != nil {
		resp.Aggressiveness = "unavailable"
		if resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	} else {
		resp.Aggressiveness = string(score.Level)
	}

	writeJSON(w, r, httpStatus, resp)
}

// HandleAggressiveness handles GET /v1/aggressiveness.
func (h *Handlers) HandleAggressiveness(w http.ResponseWriter, r *http.Request) {
	score, err := h.governance.Aggressiveness(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "aggressiveness unavailable", err)
		return
	}
	writeJSON(w, r, http.StatusOK, score)
}

// HandleRecordAction handles POST /v1/actions. It feeds executed actions
// that have no ledger entry, such as MICRO decisions, into the window.
func (h *Handlers) HandleRecordAction(w http.ResponseWriter, r *http.Request) {
	var req model.RecordActionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Type == "" || req.AccountID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "type and account_id are required")
		return
	}
	a := model.Action{ID: req.ID, Type: req.Type, AccountID: req.AccountID}
	if req.OccurredAt != nil {
		a.OccurredAt = *req.OccurredAt
	}
	h.governance.RecordAction(r.Context(), a)
	w.WriteHeader(http.StatusAccepted)
}

// HandleDailyReport handles GET /v1/reports/daily?day=YYYY-MM-DD.
func (h *Handlers) HandleDailyReport(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if v := r.URL.Query().Get("day"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid day: expected YYYY-MM-DD")
			return
		}
		day = t
	}
	report, err := h.governance.DailySummary(r.Context(), day)
	if err != nil {
		h.writeInternalError(w, r, "daily report failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

// writeInternalError logs err and writes a generic 500.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}

// writeLedgerError maps ledger sentinels to stable HTTP codes.
func (h *Handlers) writeLedgerError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "decision not found")
	case errors.Is(err, ledger.ErrOutcomeExists):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "execution outcome already recorded")
	default:
		h.writeInternalError(w, r, msg, err)
	}
}

func parseDecisionID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %s", raw)
	}
	return id, nil
}

// maxQueryLimit is the maximum allowed value for limit query parameters.
const maxQueryLimit = 1000

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// queryLimit returns a bounded limit value from query params.
// Values are clamped to [1, max].
func queryLimit(r *http.Request, defaultVal, max int) int {
	limit := queryInt(r, "limit", defaultVal)
	if limit < 1 {
		return 1
	}
	if limit > max {
		return max
	}
	return limit
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected RFC3339 format (e.g. 2024-01-01T00:00:00Z)", key)
	}
	return &t, nil
}

// ledgerQuery reads the shared list/export filters.
func ledgerQuery(r *http.Request, defaultLimit, maxLimit int) (model.LedgerQuery, error) {
	q := r.URL.Query()
	out := model.LedgerQuery{
		Actor:        q.Get("actor"),
		DecisionType: q.Get("decision_type"),
		Verdict:      model.Outcome(q.Get("verdict")),
		Limit:        queryLimit(r, defaultLimit, maxLimit),
	}
	if lv := q.Get("level"); lv != "" {
		level, err := model.ParseLevel(lv)
		if err != nil {
			return model.LedgerQuery{}, err
		}
		out.Level = level
	}
	var err error
	if out.From, err = queryTime(r, "from"); err != nil {
		return model.LedgerQuery{}, err
	}
	if out.To, err = queryTime(r, "to"); err != nil {
		return model.LedgerQuery{}, err
	}
	return out, nil
}
