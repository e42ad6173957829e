package server

import (
	"net/http"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// HandleEvaluate handles POST /v1/evaluate. Every well-formed request gets a
// verdict with 200; a malformed proposal is itself a REJECTED verdict.
func (h *Handlers) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var p model.ProposedDecision
	if err := decodeJSON(w, r, &p, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	v := h.governance.Evaluate(r.Context(), p)
	writeJSON(w, r, http.StatusOK, v)
}

// HandleRecordExecution handles POST /v1/decisions/{id}/execution.
func (h *Handlers) HandleRecordExecution(w http.ResponseWriter, r *http.Request) {
	id, err := parseDecisionID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	var req model.RecordExecutionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	outcome := model.ExecutionOutcome{Status: req.Status, Detail: req.Detail}
	if err := outcome.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	entry, err := h.governance.RecordExecution(r.Context(), id, outcome)
	if err != nil {
		h.writeLedgerError(w, r, "record execution failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, entry)
}

// HandleGetDecision handles GET /v1/decisions/{id}.
func (h *Handlers) HandleGetDecision(w http.ResponseWriter, r *http.Request) {
	id, err := parseDecisionID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	entry, err := h.governance.Entry(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, r, "get decision failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, entry)
}

// HandleExplain handles GET /v1/decisions/{id}/explanation.
func (h *Handlers) HandleExplain(w http.ResponseWriter, r *http.Request) {
	id, err := parseDecisionID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	report, err := h.governance.Explain(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, r, "explain decision failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

// HandleListDecisions handles GET /v1/decisions with actor, decision_type,
// level, verdict, from, to and limit filters.
func (h *Handlers) HandleListDecisions(w http.ResponseWriter, r *http.Request) {
	q, err := ledgerQuery(r, 50, maxQueryLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	entries, err := h.governance.Entries(r.Context(), q)
	if err != nil {
		h.writeInternalError(w, r, "list decisions failed", err)
		return
	}
	writeList(w, r, entries, len(entries), q.Limit)
}
