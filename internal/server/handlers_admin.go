package server

import (
	"net/http"
	"time"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ledger"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// HandlePurge handles POST /v1/admin/retention/purge. It removes entries
// older than the requested (or configured) retention window, archiving them
// first when an archive is configured, and returns the audit record. With
// dry_run it only counts.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if h.purger == nil {
		writeError(w, r, http.StatusNotImplemented, model.ErrCodeInvalidInput, "ledger backend does not support purge")
		return
	}
	var req model.PurgeRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	days := h.retentionDays
	if req.RetentionDays != nil {
		days = *req.RetentionDays
	}
	if days < 1 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "retention_days must be >= 1")
		return
	}
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -days)

	if req.DryRun {
		expired, err := h.ledger.Query(r.Context(), model.LedgerQuery{To: &cutoff, Limit: ledger.MaxQueryLimit})
		if err != nil {
			h.writeInternalError(w, r, "purge dry run failed", err)
			return
		}
		writeJSON(w, r, http.StatusOK, model.PurgeResponse{DryRun: true, Cutoff: cutoff, Deleted: len(expired)})
		return
	}

	retention := ledger.Retention{
		Purger:   h.purger,
		Source:   h.ledger,
		Archiver: h.archiver,
		Days:     days,
		Operator: req.Operator,
		Reason:   req.Reason,
		Logger:   h.logger,
		Now:      func() time.Time { return now },
	}
	if err := (ledger.PurgeRequest{Operator: req.Operator, Reason: req.Reason, Cutoff: cutoff}).Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	rec, err := retention.Run(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "purge failed", err)
		return
	}
	h.logger.Info("retention purge via api",
		"operator", rec.Operator, "deleted", rec.Deleted, "cutoff", rec.Cutoff,
		"request_id", RequestIDFromContext(r.Context()))
	writeJSON(w, r, http.StatusOK, model.PurgeResponse{Cutoff: rec.Cutoff, Deleted: rec.Deleted, Record: &rec})
}

// HandlePurgeLog handles GET /v1/admin/retention/purges.
func (h *Handlers) HandlePurgeLog(w http.ResponseWriter, r *http.Request) {
	if h.purger == nil {
		writeError(w, r, http.StatusNotImplemented, model.ErrCodeInvalidInput, "ledger backend does not support purge")
		return
	}
	log, err := h.purger.PurgeLog(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "purge log failed", err)
		return
	}
	writeList(w, r, log, len(log), len(log))
}
