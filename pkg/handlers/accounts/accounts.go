package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chris/recurring-payments/pkg/api"
	"github.com/chris/recurring-payments/pkg/ledger"
	"github.com/chris/recurring-payments/pkg/mapping"
	"github.com/chris/recurring-payments/pkg/payments"
)

// AccountsHandler holds the dependencies for wallet, token account and treasury handlers.
type AccountsHandler struct {
	Ledger  ledger.Ledger
	Service payments.Service
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(l ledger.Ledger, service payments.Service) *AccountsHandler {
	return &AccountsHandler{Ledger: l, Service: service}
}

// CreateWallet handles the logic for creating a funded native wallet.
func (h *AccountsHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var newWallet api.NewWallet
	if err := json.NewDecoder(r.Body).Decode(&newWallet); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if newWallet.Address == "" {
		http.Error(w, "Wallet address is required", http.StatusBadRequest)
		return
	}

	wallet := mapping.ToDomainNewWallet(&newWallet)
	if err := h.Ledger.Commit(r.Context(), ledger.NewBatch(ledger.CreateWallet{Wallet: wallet})); err != nil {
		writeError(w, "Failed to create wallet", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapping.ToApiWallet(wallet))
}

// GetWallet handles the logic for retrieving a wallet.
func (h *AccountsHandler) GetWallet(w http.ResponseWriter, r *http.Request, address string) {
	wallet, err := h.Ledger.GetWallet(r.Context(), address)
	if err != nil {
		writeError(w, "Failed to retrieve wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiWallet(wallet))
}

// CreateTokenAccount handles the logic for creating a funded token account.
func (h *AccountsHandler) CreateTokenAccount(w http.ResponseWriter, r *http.Request) {
	var newAccount api.NewTokenAccount
	if err := json.NewDecoder(r.Body).Decode(&newAccount); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if newAccount.Owner == "" || newAccount.Currency == "" {
		http.Error(w, "Token account owner and currency are required", http.StatusBadRequest)
		return
	}

	account := mapping.ToDomainNewTokenAccount(&newAccount)
	if err := h.Ledger.Commit(r.Context(), ledger.NewBatch(ledger.CreateTokenAccount{Account: account})); err != nil {
		writeError(w, "Failed to create token account", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapping.ToApiTokenAccount(account))
}

// GetTokenAccount handles the logic for retrieving a token account.
func (h *AccountsHandler) GetTokenAccount(w http.ResponseWriter, r *http.Request, address string) {
	account, err := h.Ledger.GetTokenAccount(r.Context(), address)
	if err != nil {
		writeError(w, "Failed to retrieve token account", err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiTokenAccount(account))
}

// ApproveDelegate replaces the delegation on a token account. Only the owner may approve.
func (h *AccountsHandler) ApproveDelegate(w http.ResponseWriter, r *http.Request, address string) {
	var approval api.Approval
	if err := json.NewDecoder(r.Body).Decode(&approval); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	op := ledger.Approve{Account: address, Owner: approval.Owner, Delegate: approval.Delegate, Limit: approval.Limit}
	h.commitAndRespond(w, r, address, op, "Failed to approve delegate")
}

// RevokeDelegate clears the delegation on a token account, which stops every payment that
// relies on it at its next distribution.
func (h *AccountsHandler) RevokeDelegate(w http.ResponseWriter, r *http.Request, address string) {
	var revocation api.Revocation
	if err := json.NewDecoder(r.Body).Decode(&revocation); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	op := ledger.Revoke{Account: address, Owner: revocation.Owner}
	h.commitAndRespond(w, r, address, op, "Failed to revoke delegate")
}

func (h *AccountsHandler) commitAndRespond(w http.ResponseWriter, r *http.Request, address string, op ledger.Op, prefix string) {
	if err := h.Ledger.Commit(r.Context(), ledger.NewBatch(op)); err != nil {
		writeError(w, prefix, err)
		return
	}
	account, err := h.Ledger.GetTokenAccount(r.Context(), address)
	if err != nil {
		writeError(w, "Failed to retrieve token account", err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiTokenAccount(account))
}

// InitializeTreasury handles the one-time creation of the treasury wallet.
func (h *AccountsHandler) InitializeTreasury(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.Service.InitializeTreasury(r.Context())
	if err != nil {
		if errors.Is(err, payments.ErrTreasuryExists) {
			http.Error(w, "Treasury already initialized", http.StatusConflict)
		} else {
			http.Error(w, fmt.Sprintf("Failed to initialize treasury: %v", err), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, mapping.ToApiTreasury(h.Service.Treasury(), wallet))
}

// GetTreasury reports the treasury address and, once initialized, its balance.
func (h *AccountsHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	treasury := h.Service.Treasury()
	wallet, err := h.Ledger.GetWallet(r.Context(), treasury.Address)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		http.Error(w, fmt.Sprintf("Failed to retrieve treasury: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiTreasury(treasury, wallet))
}

func writeError(w http.ResponseWriter, prefix string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidBatch):
		status = http.StatusBadRequest
	}
	http.Error(w, fmt.Sprintf("%s: %v", prefix, err), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}
