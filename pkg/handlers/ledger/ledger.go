package ledger

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chris/recurring-payments/pkg/api"
	"github.com/chris/recurring-payments/pkg/mapping"
	"github.com/chris/recurring-payments/pkg/storage"
)

const defaultLimit = 20

// LedgerHandler holds the dependencies for transfer log handlers.
type LedgerHandler struct {
	Store storage.TransferLogReader
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(store storage.TransferLogReader) *LedgerHandler {
	return &LedgerHandler{Store: store}
}

// ListTransferLogs returns the most recent distribution attempts across all payments.
func (h *LedgerHandler) ListTransferLogs(w http.ResponseWriter, r *http.Request, params api.ListTransferLogsParams) {
	limit := int32(defaultLimit)
	if params.Limit != nil {
		if *params.Limit <= 0 {
			http.Error(w, "Limit must be positive", http.StatusBadRequest)
			return
		}
		limit = int32(*params.Limit)
	}

	logs, err := h.Store.ListRecentTransferLogs(r.Context(), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve transfer logs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, mapping.ToApiTransferLogs(logs))
}

// ListPaymentTransferLogs returns every distribution attempt against one payment, oldest first.
func (h *LedgerHandler) ListPaymentTransferLogs(w http.ResponseWriter, r *http.Request, address string) {
	logs, err := h.Store.ListTransferLogs(r.Context(), address)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve transfer logs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, mapping.ToApiTransferLogs(logs))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}
