// Package api defines the HTTP surface of the payment service: its wire types, the server
// interface handlers implement, and the chi routing that binds parameters onto it. The package
// is maintained by hand. Parameter binding uses github.com/oapi-codegen/runtime, so the router
// follows that library's chi server conventions.
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// PaymentStatus is the lifecycle state of a payment on the wire.
type PaymentStatus string

const (
	PaymentStatusSCHEDULED PaymentStatus = "SCHEDULED"
	PaymentStatusCOMPLETED PaymentStatus = "COMPLETED"
	PaymentStatusFAILED    PaymentStatus = "FAILED"
)

// TransferLogStatus reports whether a distribution attempt moved value.
type TransferLogStatus string

const (
	TransferLogStatusSUCCEEDED TransferLogStatus = "SUCCEEDED"
	TransferLogStatusFAILED    TransferLogStatus = "FAILED"
)

// DistributionOutcome is the result of an accepted distribution call.
type DistributionOutcome string

const (
	DistributionOutcomeTRANSFERRED  DistributionOutcome = "TRANSFERRED"
	DistributionOutcomeMARKEDFAILED DistributionOutcome = "MARKED_FAILED"
)

// NewPayment is the body of POST /payments.
type NewPayment struct {
	IdempotencyKey     string  `json:"idempotency_key"`
	Memo               *string `json:"memo,omitempty"`
	Debtor             string  `json:"debtor"`
	DebtorTokens       string  `json:"debtor_tokens"`
	Creditor           string  `json:"creditor"`
	CreditorTokens     string  `json:"creditor_tokens"`
	Currency           string  `json:"currency"`
	Amount             uint64  `json:"amount"`
	RecurrenceInterval uint64  `json:"recurrence_interval"`
	NextTransferAt     uint64  `json:"next_transfer_at"`
	CompletedAt        uint64  `json:"completed_at"`
}

// Payment is a stored recurring payment.
type Payment struct {
	Address            string        `json:"address"`
	IdempotencyKey     string        `json:"idempotency_key"`
	Memo               string        `json:"memo"`
	Debtor             string        `json:"debtor"`
	DebtorTokens       string        `json:"debtor_tokens"`
	Creditor           string        `json:"creditor"`
	CreditorTokens     string        `json:"creditor_tokens"`
	Currency           string        `json:"currency"`
	Status             PaymentStatus `json:"status"`
	Amount             uint64        `json:"amount"`
	RecurrenceInterval uint64        `json:"recurrence_interval"`
	NextTransferAt     uint64        `json:"next_transfer_at"`
	CompletedAt        uint64        `json:"completed_at"`
	CreatedAt          uint64        `json:"created_at"`
	NumInstallments    uint64        `json:"num_installments"`
	ExecutorFee        uint64        `json:"executor_fee"`
	ProtocolFee        uint64        `json:"protocol_fee"`
	FeeReserve         uint64        `json:"fee_reserve"`
	AuthorityScheme    string        `json:"authority_scheme,omitempty"`
}

// DistributeRequest names the executor that collects the executor fee.
type DistributeRequest struct {
	Executor string `json:"executor"`
}

// Distribution is the response of POST /payments/{address}/distribute.
type Distribution struct {
	Outcome     DistributionOutcome `json:"outcome"`
	Payment     Payment             `json:"payment"`
	TransferLog TransferLog         `json:"transfer_log"`
}

// TransferLog is one recorded distribution attempt.
type TransferLog struct {
	Id             string            `json:"id"`
	PaymentAddress string            `json:"payment_address"`
	Executor       string            `json:"executor"`
	Status         TransferLogStatus `json:"status"`
	Amount         uint64            `json:"amount"`
	ExecutorFee    uint64            `json:"executor_fee"`
	ProtocolFee    uint64            `json:"protocol_fee"`
	Reason         *string           `json:"reason,omitempty"`
	Timestamp      uint64            `json:"timestamp"`
}

// NewWallet is the body of POST /wallets.
type NewWallet struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// Wallet holds native balance for fees.
type Wallet struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// NewTokenAccount is the body of POST /token-accounts. Address defaults to the owner's derived
// account for the currency.
type NewTokenAccount struct {
	Address  *string `json:"address,omitempty"`
	Owner    string  `json:"owner"`
	Currency string  `json:"currency"`
	Balance  uint64  `json:"balance"`
}

// TokenAccount holds a balance in one currency and at most one delegation.
type TokenAccount struct {
	Address         string  `json:"address"`
	Owner           string  `json:"owner"`
	Currency        string  `json:"currency"`
	Balance         uint64  `json:"balance"`
	Delegate        *string `json:"delegate,omitempty"`
	DelegatedAmount uint64  `json:"delegated_amount"`
}

// Approval is the body of POST /token-accounts/{address}/approve.
type Approval struct {
	Owner    string `json:"owner"`
	Delegate string `json:"delegate"`
	Limit    uint64 `json:"limit"`
}

// Revocation is the body of POST /token-accounts/{address}/revoke.
type Revocation struct {
	Owner string `json:"owner"`
}

// Treasury is the protocol fee accumulator.
type Treasury struct {
	Address     string `json:"address"`
	Balance     uint64 `json:"balance"`
	Initialized bool   `json:"initialized"`
}

// ListTransferLogsParams are the query parameters of GET /transfer-logs.
type ListTransferLogsParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// ServerInterface is implemented by the service handlers; each method serves one route.
type ServerInterface interface {
	// Create a recurring payment
	// (POST /payments)
	CreatePayment(w http.ResponseWriter, r *http.Request)
	// Get a payment by address
	// (GET /payments/{address})
	GetPayment(w http.ResponseWriter, r *http.Request, address string)
	// Distribute the due installment of a payment
	// (POST /payments/{address}/distribute)
	DistributePayment(w http.ResponseWriter, r *http.Request, address string)
	// List the distribution attempts of a payment
	// (GET /payments/{address}/transfer-logs)
	ListPaymentTransferLogs(w http.ResponseWriter, r *http.Request, address string)
	// List the payments created by a debtor
	// (GET /debtors/{debtor}/payments)
	ListPaymentsByDebtor(w http.ResponseWriter, r *http.Request, debtor string)
	// List recent distribution attempts
	// (GET /transfer-logs)
	ListTransferLogs(w http.ResponseWriter, r *http.Request, params ListTransferLogsParams)
	// Create a wallet
	// (POST /wallets)
	CreateWallet(w http.ResponseWriter, r *http.Request)
	// Get a wallet by address
	// (GET /wallets/{address})
	GetWallet(w http.ResponseWriter, r *http.Request, address string)
	// Create a token account
	// (POST /token-accounts)
	CreateTokenAccount(w http.ResponseWriter, r *http.Request)
	// Get a token account by address
	// (GET /token-accounts/{address})
	GetTokenAccount(w http.ResponseWriter, r *http.Request, address string)
	// Approve a delegate on a token account
	// (POST /token-accounts/{address}/approve)
	ApproveDelegate(w http.ResponseWriter, r *http.Request, address string)
	// Revoke the delegate of a token account
	// (POST /token-accounts/{address}/revoke)
	RevokeDelegate(w http.ResponseWriter, r *http.Request, address string)
	// Initialize the treasury
	// (POST /treasury)
	InitializeTreasury(w http.ResponseWriter, r *http.Request)
	// Get the treasury
	// (GET /treasury)
	GetTreasury(w http.ResponseWriter, r *http.Request)
}

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper binds path and query parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, handler http.Handler) {
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// pathParam binds a simple-style path parameter.
func (siw *ServerInterfaceWrapper) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return "", false
	}
	return value, true
}

func (siw *ServerInterfaceWrapper) withAddress(call func(w http.ResponseWriter, r *http.Request, address string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := siw.pathParam(w, r, "address")
		if !ok {
			return
		}
		siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			call(w, r, address)
		}))
	}
}

func (siw *ServerInterfaceWrapper) plain(call func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		siw.serve(w, r, http.HandlerFunc(call))
	}
}

// ListPaymentsByDebtor binds the debtor path parameter.
func (siw *ServerInterfaceWrapper) ListPaymentsByDebtor(w http.ResponseWriter, r *http.Request) {
	debtor, ok := siw.pathParam(w, r, "debtor")
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListPaymentsByDebtor(w, r, debtor)
	}))
}

// ListTransferLogs binds the optional limit query parameter.
func (siw *ServerInterfaceWrapper) ListTransferLogs(w http.ResponseWriter, r *http.Request) {
	var params ListTransferLogsParams

	err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListTransferLogs(w, r, params)
	}))
}

// InvalidParamFormatError is reported when a parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// Handler routes every operation of si on a new chi router.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux routes every operation of si on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

// HandlerWithOptions routes every operation of si with the given options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/payments", wrapper.plain(si.CreatePayment))
		r.Get(options.BaseURL+"/payments/{address}", wrapper.withAddress(si.GetPayment))
		r.Post(options.BaseURL+"/payments/{address}/distribute", wrapper.withAddress(si.DistributePayment))
		r.Get(options.BaseURL+"/payments/{address}/transfer-logs", wrapper.withAddress(si.ListPaymentTransferLogs))
		r.Get(options.BaseURL+"/debtors/{debtor}/payments", wrapper.ListPaymentsByDebtor)
		r.Get(options.BaseURL+"/transfer-logs", wrapper.ListTransferLogs)
		r.Post(options.BaseURL+"/wallets", wrapper.plain(si.CreateWallet))
		r.Get(options.BaseURL+"/wallets/{address}", wrapper.withAddress(si.GetWallet))
		r.Post(options.BaseURL+"/token-accounts", wrapper.plain(si.CreateTokenAccount))
		r.Get(options.BaseURL+"/token-accounts/{address}", wrapper.withAddress(si.GetTokenAccount))
		r.Post(options.BaseURL+"/token-accounts/{address}/approve", wrapper.withAddress(si.ApproveDelegate))
		r.Post(options.BaseURL+"/token-accounts/{address}/revoke", wrapper.withAddress(si.RevokeDelegate))
		r.Post(options.BaseURL+"/treasury", wrapper.plain(si.InitializeTreasury))
		r.Get(options.BaseURL+"/treasury", wrapper.plain(si.GetTreasury))
	})

	return r
}
