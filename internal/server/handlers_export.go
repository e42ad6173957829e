package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ledger"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// Export response headers. The root lets an auditor check the file against
// an independently recomputed ledger.
const (
	headerLedgerRoot  = "X-Ledger-Root"
	headerLedgerCount = "X-Ledger-Count"
)

// HandleExportDecisions handles GET /v1/export/decisions. It writes the
// filtered entries as CSV with the Merkle root of their content hashes in a
// response header.
func (h *Handlers) HandleExportDecisions(w http.ResponseWriter, r *http.Request) {
	q, err := ledgerQuery(r, ledger.MaxQueryLimit, ledger.MaxQueryLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	entries, err := h.governance.Entries(r.Context(), q)
	if err != nil {
		h.writeInternalError(w, r, "export failed", err)
		return
	}

	filename := fmt.Sprintf("warden-decisions-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set(headerLedgerRoot, ledger.Root(entries))
	w.Header().Set(headerLedgerCount, strconv.Itoa(len(entries)))
	w.WriteHeader(http.StatusOK)

	if err := ledger.WriteCSV(w, entries); err != nil {
		h.logger.Warn("export: write csv", "error", err, "request_id", RequestIDFromContext(r.Context()))
	}
}
