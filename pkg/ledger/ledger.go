// Package ledger defines the contract between the payment engine and the ledger that stores
// accounts and executes value movements. A Batch is committed all-or-nothing.
package ledger

import (
	"context"
	"errors"

	"github.com/chris/recurring-payments/pkg/models"
)

var (
	// ErrNotFound is returned when an account or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientFunds is returned when a debit would drive a balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnauthorized is returned when the authorizing identity may not move the funds.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict is returned when a record precondition (existence or version) no longer holds.
	ErrConflict = errors.New("conflicting update")
	// ErrInvalidBatch is returned when a batch is malformed.
	ErrInvalidBatch = errors.New("invalid batch")
)

// Reader exposes the ledger reads the engine needs.
type Reader interface {
	// Now returns the ledger clock as unix seconds.
	Now(ctx context.Context) (uint64, error)
	GetWallet(ctx context.Context, address string) (*models.Wallet, error)
	GetTokenAccount(ctx context.Context, address string) (*models.TokenAccount, error)
	GetPayment(ctx context.Context, address string) (*models.Payment, error)
}

// Ledger is a Reader that can atomically commit a Batch.
type Ledger interface {
	Reader
	// Commit applies every operation in the batch or none of them.
	Commit(ctx context.Context, b *Batch) error
}

// Op is a single operation inside a Batch.
type Op interface {
	isOp()
}

// Transfer moves Amount of Currency between token accounts, authorized by Authority.
// Authority must be the source's delegate with enough allowance, and Seeds must derive it.
type Transfer struct {
	From      string
	To        string
	Currency  string
	Amount    uint64
	Authority string
	Seeds     [][]byte
}

// Approve grants Delegate an allowance of Limit on a token account owned by Owner,
// replacing any previous delegation. When Expect is set the approval only applies while the
// account's delegation still matches it; otherwise the commit fails with ErrConflict.
type Approve struct {
	Account  string
	Owner    string
	Delegate string
	Limit    uint64
	Expect   *Delegation
}

// Delegation is the allowance a token account grants.
type Delegation struct {
	Delegate string
	Amount   uint64
}

// DelegationOf returns the current delegation of a.
func DelegationOf(a *models.TokenAccount) *Delegation {
	return &Delegation{Delegate: a.Delegate, Amount: a.DelegatedAmount}
}

// Revoke clears the delegation on a token account owned by Owner.
type Revoke struct {
	Account string
	Owner   string
}

// AdjustBalance changes a wallet's native balance. A credit creates the wallet if needed;
// a debit fails with ErrInsufficientFunds if it would go negative.
type AdjustBalance struct {
	Account string
	Delta   int64
}

// PutPayment writes a payment record. ExpectVersion zero means the record must not exist;
// otherwise the stored version must equal ExpectVersion. The written version is bumped.
type PutPayment struct {
	Payment       *models.Payment
	ExpectVersion int64
}

// PutTransferLog appends a transfer log.
type PutTransferLog struct {
	Log *models.TransferLog
}

// CreateWallet creates a wallet that must not already exist.
type CreateWallet struct {
	Wallet *models.Wallet
}

// CreateTokenAccount creates a token account that must not already exist.
type CreateTokenAccount struct {
	Account *models.TokenAccount
}

func (Transfer) isOp()           {}
func (Approve) isOp()            {}
func (Revoke) isOp()             {}
func (AdjustBalance) isOp()      {}
func (PutPayment) isOp()         {}
func (PutTransferLog) isOp()     {}
func (CreateWallet) isOp()       {}
func (CreateTokenAccount) isOp() {}

// Batch is an ordered list of operations committed as one unit.
type Batch struct {
	Ops []Op
}

// NewBatch creates a batch holding ops.
func NewBatch(ops ...Op) *Batch {
	return &Batch{Ops: ops}
}

// Add appends ops to the batch.
func (b *Batch) Add(ops ...Op) *Batch {
	b.Ops = append(b.Ops, ops...)
	return b
}

// Adjustments folds every AdjustBalance in the batch into one delta per account, in first-seen order.
// Zero net deltas are dropped.
func (b *Batch) Adjustments() []AdjustBalance {
	totals := make(map[string]int64)
	var order []string
	for _, op := range b.Ops {
		adj, ok := op.(AdjustBalance)
		if !ok {
			continue
		}
		if _, seen := totals[adj.Account]; !seen {
			order = append(order, adj.Account)
		}
		totals[adj.Account] += adj.Delta
	}

	out := make([]AdjustBalance, 0, len(order))
	for _, account := range order {
		if totals[account] == 0 {
			continue
		}
		out = append(out, AdjustBalance{Account: account, Delta: totals[account]})
	}
	return out
}
