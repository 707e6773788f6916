package handlers

import (
	"github.com/chris/recurring-payments/pkg/api"
	"github.com/chris/recurring-payments/pkg/handlers/accounts"
	"github.com/chris/recurring-payments/pkg/handlers/ledger"
	"github.com/chris/recurring-payments/pkg/handlers/payments"
	engine "github.com/chris/recurring-payments/pkg/payments"
	"github.com/chris/recurring-payments/pkg/scheduler"
	"github.com/chris/recurring-payments/pkg/storage"
)

// ApiHandler implements api.ServerInterface.
// It composes the payment, account and transfer log handlers over one storage backend.
type ApiHandler struct {
	*payments.PaymentsHandler
	*accounts.AccountsHandler
	*ledger.LedgerHandler
}

// NewApiHandler creates a new ApiHandler. The scheduler may be nil.
func NewApiHandler(store storage.Storage, service engine.Service, sched scheduler.Scheduler) *ApiHandler {
	return &ApiHandler{
		PaymentsHandler: payments.NewPaymentsHandler(service, store, sched),
		AccountsHandler: accounts.NewAccountsHandler(store, service),
		LedgerHandler:   ledger.NewLedgerHandler(store),
	}
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)
