// Package memory is an in-process ledger for tests and local runs. Commits are serialized by a
// single mutex and staged so that a failing operation leaves no trace.
package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/chris/recurring-payments/pkg/ledger"
	"github.com/chris/recurring-payments/pkg/models"
	"github.com/chris/recurring-payments/pkg/storage"
)

// Store implements storage.Storage in memory.
type Store struct {
	mu       sync.Mutex
	clock    func() time.Time
	wallets  map[string]models.Wallet
	tokens   map[string]models.TokenAccount
	payments map[string]models.Payment
	logs     []models.TransferLog
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

// New creates an empty Store. A nil clock uses time.Now.
func New(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		clock:    clock,
		wallets:  make(map[string]models.Wallet),
		tokens:   make(map[string]models.TokenAccount),
		payments: make(map[string]models.Payment),
	}
}

// Now returns the store clock as unix seconds.
func (s *Store) Now(ctx context.Context) (uint64, error) {
	sec := s.clock().Unix()
	if sec < 0 {
		return 0, nil
	}
	return uint64(sec), nil
}

func (s *Store) GetWallet(ctx context.Context, address string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrWalletNotFound, address)
	}
	return &w, nil
}

func (s *Store) GetTokenAccount(ctx context.Context, address string) (*models.TokenAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.tokens[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrTokenAccountNotFound, address)
	}
	return &a, nil
}

func (s *Store) GetPayment(ctx context.Context, address string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrPaymentNotFound, address)
	}
	return clonePayment(p), nil
}

func (s *Store) ListPaymentsByDebtor(ctx context.Context, debtor string) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Payment
	for _, p := range s.payments {
		if p.Debtor == debtor {
			out = append(out, *clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}

func (s *Store) GetDuePayments(ctx context.Context, now uint64, limit int32) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Payment
	for _, p := range s.payments {
		if p.Status == models.SCHEDULED && p.NextTransferAt <= now {
			out = append(out, *clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextTransferAt != out[j].NextTransferAt {
			return out[i].NextTransferAt < out[j].NextTransferAt
		}
		return out[i].Address < out[j].Address
	})
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListTransferLogs(ctx context.Context, paymentAddress string) ([]models.TransferLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.TransferLog
	for _, l := range s.logs {
		if l.PaymentAddress == paymentAddress {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) ListRecentTransferLogs(ctx context.Context, limit int32) ([]models.TransferLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.logs)
	slices.Reverse(out)
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

// Commit applies the batch to a staged copy of the touched state and publishes it only if
// every operation succeeds.
func (s *Store) Commit(ctx context.Context, b *ledger.Batch) error {
	if b == nil || len(b.Ops) == 0 {
		return fmt.Errorf("%w: empty batch", ledger.ErrInvalidBatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &stage{
		store:    s,
		wallets:  make(map[string]models.Wallet),
		tokens:   make(map[string]models.TokenAccount),
		payments: make(map[string]models.Payment),
	}

	for _, op := range b.Ops {
		if err := st.apply(op); err != nil {
			return err
		}
	}
	for _, adj := range b.Adjustments() {
		if err := st.adjust(adj); err != nil {
			return err
		}
	}

	for k, v := range st.wallets {
		s.wallets[k] = v
	}
	for k, v := range st.tokens {
		s.tokens[k] = v
	}
	for k, v := range st.payments {
		s.payments[k] = v
	}
	s.logs = append(s.logs, st.logs...)
	return nil
}

type stage struct {
	store    *Store
	wallets  map[string]models.Wallet
	tokens   map[string]models.TokenAccount
	payments map[string]models.Payment
	logs     []models.TransferLog
}

func (st *stage) wallet(address string) (models.Wallet, bool) {
	if w, ok := st.wallets[address]; ok {
		return w, true
	}
	w, ok := st.store.wallets[address]
	return w, ok
}

func (st *stage) token(address string) (models.TokenAccount, error) {
	if a, ok := st.tokens[address]; ok {
		return a, nil
	}
	if a, ok := st.store.tokens[address]; ok {
		return a, nil
	}
	return models.TokenAccount{}, fmt.Errorf("%w: %s", storage.ErrTokenAccountNotFound, address)
}

func (st *stage) payment(address string) (models.Payment, bool) {
	if p, ok := st.payments[address]; ok {
		return p, true
	}
	p, ok := st.store.payments[address]
	return p, ok
}

func (st *stage) apply(op ledger.Op) error {
	switch op := op.(type) {
	case ledger.Transfer:
		return st.transfer(op)
	case ledger.Approve:
		a, err := st.token(op.Account)
		if err != nil {
			return err
		}
		if a.Owner != op.Owner {
			return fmt.Errorf("%w: %s does not own %s", ledger.ErrUnauthorized, op.Owner, op.Account)
		}
		if e := op.Expect; e != nil && (a.Delegate != e.Delegate || a.DelegatedAmount != e.Amount) {
			return fmt.Errorf("%w: delegation on %s changed", ledger.ErrConflict, op.Account)
		}
		a.Delegate = op.Delegate
		a.DelegatedAmount = op.Limit
		st.tokens[a.Address] = a
	case ledger.Revoke:
		a, err := st.token(op.Account)
		if err != nil {
			return err
		}
		if a.Owner != op.Owner {
			return fmt.Errorf("%w: %s does not own %s", ledger.ErrUnauthorized, op.Owner, op.Account)
		}
		a.Delegate = ""
		a.DelegatedAmount = 0
		st.tokens[a.Address] = a
	case ledger.AdjustBalance:
		// folded and applied after every other operation
	case ledger.PutPayment:
		p := op.Payment
		if p == nil || p.Version != op.ExpectVersion+1 {
			return fmt.Errorf("%w: payment version must advance by one", ledger.ErrInvalidBatch)
		}
		existing, ok := st.payment(p.Address)
		switch {
		case op.ExpectVersion == 0 && ok:
			return fmt.Errorf("%w: payment %s already exists", ledger.ErrConflict, p.Address)
		case op.ExpectVersion != 0 && (!ok || existing.Version != op.ExpectVersion):
			return fmt.Errorf("%w: payment %s changed", ledger.ErrConflict, p.Address)
		}
		st.payments[p.Address] = *clonePayment(*p)
	case ledger.PutTransferLog:
		if op.Log == nil || op.Log.ID == "" {
			return fmt.Errorf("%w: transfer log needs an id", ledger.ErrInvalidBatch)
		}
		st.logs = append(st.logs, *op.Log)
	case ledger.CreateWallet:
		if _, ok := st.wallet(op.Wallet.Address); ok {
			return fmt.Errorf("%w: wallet %s already exists", ledger.ErrConflict, op.Wallet.Address)
		}
		st.wallets[op.Wallet.Address] = *op.Wallet
	case ledger.CreateTokenAccount:
		if _, err := st.token(op.Account.Address); err == nil {
			return fmt.Errorf("%w: token account %s already exists", ledger.ErrConflict, op.Account.Address)
		}
		st.tokens[op.Account.Address] = *op.Account
	default:
		return fmt.Errorf("%w: unsupported operation %T", ledger.ErrInvalidBatch, op)
	}
	return nil
}

func (st *stage) transfer(t ledger.Transfer) error {
	if err := ledger.CheckSigner(t); err != nil {
		return err
	}
	from, err := st.token(t.From)
	if err != nil {
		return err
	}
	to, err := st.token(t.To)
	if err != nil {
		return err
	}
	if err := ledger.CheckTransfer(&from, &to, t); err != nil {
		return err
	}
	if to.Balance > math.MaxUint64-t.Amount {
		return fmt.Errorf("%w: destination balance overflow", ledger.ErrInvalidBatch)
	}

	from.Balance -= t.Amount
	from.DelegatedAmount -= t.Amount
	to.Balance += t.Amount
	st.tokens[from.Address] = from
	st.tokens[to.Address] = to
	return nil
}

func (st *stage) adjust(adj ledger.AdjustBalance) error {
	w, ok := st.wallet(adj.Account)
	if !ok {
		w = models.Wallet{Address: adj.Account}
	}
	if adj.Delta < 0 {
		debit := uint64(-adj.Delta)
		if !ok || w.Balance < debit {
			return fmt.Errorf("%w: wallet %s cannot cover %d", ledger.ErrInsufficientFunds, adj.Account, debit)
		}
		w.Balance -= debit
	} else {
		credit := uint64(adj.Delta)
		if w.Balance > math.MaxUint64-credit {
			return fmt.Errorf("%w: wallet balance overflow", ledger.ErrInvalidBatch)
		}
		w.Balance += credit
	}
	st.wallets[w.Address] = w
	return nil
}

func clonePayment(p models.Payment) *models.Payment {
	p.AuthoritySeed = slices.Clone(p.AuthoritySeed)
	return &p
}
