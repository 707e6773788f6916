package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chris/recurring-payments/pkg/api"
	"github.com/chris/recurring-payments/pkg/keeper"
	"github.com/chris/recurring-payments/pkg/mapping"
	engine "github.com/chris/recurring-payments/pkg/payments"
	"github.com/chris/recurring-payments/pkg/scheduler"
	"github.com/chris/recurring-payments/pkg/storage"
)

// PaymentsHandler holds the dependencies for payment-related handlers.
type PaymentsHandler struct {
	Service   engine.Service
	Store     storage.PaymentReader
	Scheduler scheduler.Scheduler
}

// NewPaymentsHandler creates a new PaymentsHandler. The scheduler may be nil, in which case
// new payments are left for the keeper's sweep.
func NewPaymentsHandler(service engine.Service, store storage.PaymentReader, sched scheduler.Scheduler) *PaymentsHandler {
	return &PaymentsHandler{Service: service, Store: store, Scheduler: sched}
}

// CreatePayment handles the logic for creating a recurring payment.
func (h *PaymentsHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var newPayment api.NewPayment
	if err := json.NewDecoder(r.Body).Decode(&newPayment); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	p, err := h.Service.CreatePayment(r.Context(), mapping.ToCreatePaymentRequest(&newPayment))
	if err != nil {
		writeError(w, "Failed to create payment", err)
		return
	}

	// The record is durable at this point; a queue failure only delays the first installment
	// until the next sweep.
	if h.Scheduler != nil {
		if err := h.Scheduler.SchedulePayment(r.Context(), scheduler.For(p), keeper.Delay(p.NextTransferAt, p.CreatedAt)); err != nil {
			slog.ErrorContext(r.Context(), "Failed to schedule payment", "address", p.Address, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, mapping.ToApiPayment(p))
}

// GetPayment handles the logic for retrieving a payment by address.
func (h *PaymentsHandler) GetPayment(w http.ResponseWriter, r *http.Request, address string) {
	p, err := h.Store.GetPayment(r.Context(), address)
	if err != nil {
		writeError(w, "Failed to retrieve payment", err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiPayment(p))
}

// DistributePayment handles a permissionless distribution request on behalf of an executor.
func (h *PaymentsHandler) DistributePayment(w http.ResponseWriter, r *http.Request, address string) {
	var req api.DistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	d, err := h.Service.DistributePayment(r.Context(), address, req.Executor)
	if err != nil {
		writeError(w, "Failed to distribute payment", err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiDistribution(d))
}

// ListPaymentsByDebtor handles the logic for listing a debtor's payments.
func (h *PaymentsHandler) ListPaymentsByDebtor(w http.ResponseWriter, r *http.Request, debtor string) {
	ps, err := h.Store.ListPaymentsByDebtor(r.Context(), debtor)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve payments: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiPayments(ps))
}

// Status maps an engine error to its HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidChronology),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidPayment):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInsufficientFeeReserve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrNotDue):
		return http.StatusTooEarly
	case errors.Is(err, engine.ErrAlreadyTerminal),
		errors.Is(err, engine.ErrPaymentExists),
		errors.Is(err, engine.ErrTreasuryExists):
		return http.StatusConflict
	case errors.Is(err, engine.ErrPaymentNotFound), errors.Is(err, storage.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrTreasuryNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, prefix string, err error) {
	http.Error(w, fmt.Sprintf("%s: %v", prefix, err), Status(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}
