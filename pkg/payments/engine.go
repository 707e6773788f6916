// Package payments creates recurring payments and executes their installments. Every state
// change is a single ledger batch so a payment can never be advanced without its value and
// fees moving with it.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/google/uuid"

	"github.com/chris/recurring-payments/pkg/authority"
	"github.com/chris/recurring-payments/pkg/fees"
	"github.com/chris/recurring-payments/pkg/ledger"
	"github.com/chris/recurring-payments/pkg/models"
	"github.com/chris/recurring-payments/pkg/schedule"
)

const (
	// MaxIdempotencyKeyLength bounds the caller-chosen key that distinguishes payments between
	// the same debtor and creditor.
	MaxIdempotencyKeyLength = 32
	// MaxMemoLength bounds the free-form memo stored on a payment.
	MaxMemoLength = 256

	maxCommitAttempts = 3
)

var treasurySeed = []byte("treasury")

// TreasuryAddress is the derived identity of the protocol fee accumulator.
func TreasuryAddress() string {
	return ledger.DeriveAddress(treasurySeed)
}

// PaymentAddress derives the address of the payment identified by key between debtor and creditor.
func PaymentAddress(key, debtor, creditor string) string {
	return ledger.DeriveAddress(paymentSeeds(key, debtor, creditor)...)
}

func paymentSeeds(key, debtor, creditor string) [][]byte {
	return [][]byte{[]byte(key), []byte(debtor), []byte(creditor)}
}

// Service is the set of operations exposed to the HTTP boundary and the keeper.
type Service interface {
	InitializeTreasury(ctx context.Context) (*models.Wallet, error)
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error)
	DistributePayment(ctx context.Context, address, executor string) (*Distribution, error)
	Treasury() models.Treasury
}

// CreatePaymentRequest carries the debtor-signed parameters of a new payment.
type CreatePaymentRequest struct {
	IdempotencyKey     string
	Memo               string
	Debtor             string
	DebtorTokens       string
	Creditor           string
	CreditorTokens     string
	Currency           string
	Amount             uint64
	RecurrenceInterval uint64
	NextTransferAt     uint64
	CompletedAt        uint64
}

// Distribution is the result of one accepted distribution call.
type Distribution struct {
	Outcome Outcome             `json:"outcome"`
	Payment *models.Payment     `json:"payment"`
	Log     *models.TransferLog `json:"transfer_log"`
}

// Engine implements Service on top of a ledger.
type Engine struct {
	ledger   ledger.Ledger
	policy   fees.Policy
	signer   authority.Signer
	treasury models.Treasury
	logger   *slog.Logger
	newID    func() string
}

// Make sure we conform to the interface
var _ Service = (*Engine)(nil)

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(l ledger.Ledger, policy fees.Policy, signer authority.Signer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		ledger:   l,
		policy:   policy,
		signer:   signer,
		treasury: models.Treasury{Address: TreasuryAddress()},
		logger:   logger,
		newID:    func() string { return uuid.New().String() },
	}
}

// Treasury returns the handle to the fee accumulator.
func (e *Engine) Treasury() models.Treasury {
	return e.treasury
}

// InitializeTreasury creates the treasury wallet. It may only succeed once.
func (e *Engine) InitializeTreasury(ctx context.Context) (*models.Wallet, error) {
	w := &models.Wallet{Address: e.treasury.Address}
	if err := e.ledger.Commit(ctx, ledger.NewBatch(ledger.CreateWallet{Wallet: w})); err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return nil, ErrTreasuryExists
		}
		return nil, fmt.Errorf("failed to initialize treasury: %w", err)
	}
	e.logger.InfoContext(ctx, "Treasury initialized", "address", w.Address)
	return w, nil
}

// CreatePayment validates the schedule, escrows every installment's fees from the debtor's
// wallet, grants the engine an allowance over the debtor's token account and stores the record.
// The grant is written against the delegation it was computed from; if that changed in the
// meantime the create is retried.
func (e *Engine) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	n, err := schedule.Installments(req.Amount, req.RecurrenceInterval, req.NextTransferAt, req.CompletedAt)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidAmount) {
			return nil, ErrInvalidAmount
		}
		return nil, err
	}
	hi, total := bits.Mul64(req.Amount, n)
	if hi != 0 {
		return nil, fmt.Errorf("%w: %d installments of %d overflow", ErrInvalidAmount, n, req.Amount)
	}
	reserve, err := e.policy.Reserve(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientFeeReserve, err)
	}

	for attempt := 1; ; attempt++ {
		p, err := e.create(ctx, req, n, total, reserve)
		if err == nil || !errors.Is(err, ledger.ErrConflict) {
			return p, err
		}
		if attempt == maxCommitAttempts {
			return nil, fmt.Errorf("failed to create payment: %w", err)
		}
		e.logger.WarnContext(ctx, "Payment creation raced a delegation change, retrying",
			"debtor_tokens", req.DebtorTokens,
			"attempt", attempt,
			"error", err,
		)
	}
}

func (e *Engine) create(ctx context.Context, req CreatePaymentRequest, n, total, reserve uint64) (*models.Payment, error) {
	debtorTokens, err := e.tokenAccount(ctx, req.DebtorTokens, req.Debtor, req.Currency)
	if err != nil {
		return nil, err
	}
	if _, err := e.tokenAccount(ctx, req.CreditorTokens, req.Creditor, req.Currency); err != nil {
		return nil, err
	}
	if err := e.checkFeeBalance(ctx, req.Debtor, reserve); err != nil {
		return nil, err
	}

	now, err := e.ledger.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger clock: %w", err)
	}

	seeds := paymentSeeds(req.IdempotencyKey, req.Debtor, req.Creditor)
	p := &models.Payment{
		Address:            ledger.DeriveAddress(seeds...),
		IdempotencyKey:     req.IdempotencyKey,
		Memo:               req.Memo,
		Debtor:             req.Debtor,
		DebtorTokens:       req.DebtorTokens,
		Creditor:           req.Creditor,
		CreditorTokens:     req.CreditorTokens,
		Currency:           req.Currency,
		Status:             models.SCHEDULED,
		Amount:             req.Amount,
		RecurrenceInterval: req.RecurrenceInterval,
		NextTransferAt:     req.NextTransferAt,
		CompletedAt:        req.CompletedAt,
		CreatedAt:          now,
		NumInstallments:    n,
		ExecutorFee:        e.policy.ExecutorFee,
		ProtocolFee:        e.policy.ProtocolFee,
		FeeReserve:         reserve,
		AuthoritySeed:      ledger.EncodeSeeds(seeds...),
		AuthorityScheme:    e.signer.Scheme(),
		Version:            1,
	}

	delegate, err := e.signer.Delegate(p)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve delegate: %w", err)
	}
	if err := e.checkLiveDelegation(ctx, debtorTokens, delegate); err != nil {
		return nil, err
	}

	batch := ledger.NewBatch(
		ledger.PutPayment{Payment: p},
		ledger.Approve{
			Account:  req.DebtorTokens,
			Owner:    req.Debtor,
			Delegate: delegate,
			Limit:    authority.Grant(e.signer, debtorTokens, delegate, total),
			Expect:   ledger.DelegationOf(debtorTokens),
		},
		ledger.AdjustBalance{Account: req.Debtor, Delta: -int64(reserve)},
	)
	if err := e.ledger.Commit(ctx, batch); err != nil {
		switch {
		case errors.Is(err, ledger.ErrConflict):
			if _, getErr := e.ledger.GetPayment(ctx, p.Address); getErr == nil {
				return nil, ErrPaymentExists
			}
			return nil, err
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return nil, ErrInsufficientFeeReserve
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	e.logger.InfoContext(ctx, "Payment created",
		"address", p.Address,
		"debtor", p.Debtor,
		"creditor", p.Creditor,
		"installments", n,
		"fee_reserve", reserve,
	)
	return p, nil
}

// DistributePayment executes the due installment of the payment at address and pays executor
// its fee. Anyone may call it. If the installment cannot move, the payment is marked FAILED and
// fees are still paid; the call itself succeeds with Outcome MarkedFailed.
func (e *Engine) DistributePayment(ctx context.Context, address, executor string) (*Distribution, error) {
	if executor == "" {
		return nil, fmt.Errorf("%w: executor is required", ErrInvalidPayment)
	}

	var err error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		var d *Distribution
		d, err = e.distribute(ctx, address, executor)
		if err == nil {
			return d, nil
		}
		if !retryable(err) {
			return nil, err
		}
		e.logger.WarnContext(ctx, "Distribution raced a concurrent change, retrying",
			"address", address,
			"attempt", attempt,
			"error", err,
		)
	}
	return nil, fmt.Errorf("failed to distribute payment %s: %w", address, err)
}

func (e *Engine) distribute(ctx context.Context, address, executor string) (*Distribution, error) {
	p, err := e.ledger.GetPayment(ctx, address)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	now, err := e.ledger.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger clock: %w", err)
	}
	if err := checkDue(p, now); err != nil {
		return nil, err
	}
	if _, err := e.ledger.GetWallet(ctx, e.treasury.Address); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrTreasuryNotInitialized
		}
		return nil, fmt.Errorf("failed to load treasury: %w", err)
	}

	split := fees.Policy{ExecutorFee: p.ExecutorFee, ProtocolFee: p.ProtocolFee}.Split()
	if p.FeeReserve < split.Total() {
		return nil, fmt.Errorf("%w: reserve %d cannot cover %d", ErrInsufficientFeeReserve, p.FeeReserve, split.Total())
	}

	signer, err := authority.New(p.AuthorityScheme)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", p.Address, err)
	}
	transfer, transferErr := e.prepareTransfer(ctx, signer, p)

	next := *p
	outcome := advance(&next, transferErr)
	next.FeeReserve -= split.Total()
	next.Version++

	log := &models.TransferLog{
		ID:             e.newID(),
		PaymentAddress: p.Address,
		Executor:       executor,
		Status:         models.SUCCEEDED,
		Amount:         p.Amount,
		ExecutorFee:    split.Executor,
		ProtocolFee:    split.Protocol,
		Timestamp:      now,
		GSI1PK:         models.TransferLogPartition,
	}
	batch := ledger.NewBatch()
	if outcome == Transferred {
		batch.Add(transfer)
	} else {
		log.Status = models.TRANSFER_FAILED
		log.Amount = 0
		log.Reason = transferErr.Error()
	}
	batch.Add(
		ledger.PutPayment{Payment: &next, ExpectVersion: p.Version},
		ledger.AdjustBalance{Account: executor, Delta: int64(split.Executor)},
		ledger.AdjustBalance{Account: e.treasury.Address, Delta: int64(split.Protocol)},
		ledger.PutTransferLog{Log: log},
	)

	if err := e.ledger.Commit(ctx, batch); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Payment distributed",
		"address", p.Address,
		"executor", executor,
		"outcome", outcome,
		"status", next.Status,
		"next_transfer_at", next.NextTransferAt,
	)
	return &Distribution{Outcome: outcome, Payment: &next, Log: log}, nil
}

// prepareTransfer builds the installment transfer for p under the scheme it was created with and
// reports why it cannot move, if it cannot. A non-nil error here is a debtor-side failure, not a
// call failure.
func (e *Engine) prepareTransfer(ctx context.Context, signer authority.Signer, p *models.Payment) (ledger.Transfer, error) {
	delegate, err := signer.Delegate(p)
	if err != nil {
		return ledger.Transfer{}, err
	}
	seeds, err := signer.Seeds(p)
	if err != nil {
		return ledger.Transfer{}, err
	}
	t := ledger.Transfer{
		From:      p.DebtorTokens,
		To:        p.CreditorTokens,
		Currency:  p.Currency,
		Amount:    p.Amount,
		Authority: delegate,
		Seeds:     seeds,
	}

	from, err := e.ledger.GetTokenAccount(ctx, p.DebtorTokens)
	if err != nil {
		return t, err
	}
	to, err := e.ledger.GetTokenAccount(ctx, p.CreditorTokens)
	if err != nil {
		return t, err
	}
	if err := authority.Check(from, delegate, p.Amount); err != nil {
		return t, err
	}
	return t, ledger.CheckTransfer(from, to, t)
}

func (e *Engine) tokenAccount(ctx context.Context, address, owner, currency string) (*models.TokenAccount, error) {
	a, err := e.ledger.GetTokenAccount(ctx, address)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("%w: token account %s not found", ErrInvalidPayment, address)
		}
		return nil, fmt.Errorf("failed to load token account: %w", err)
	}
	if a.Owner != owner {
		return nil, fmt.Errorf("%w: token account %s is not owned by %s", ErrInvalidPayment, address, owner)
	}
	if a.Currency != currency {
		return nil, fmt.Errorf("%w: token account %s holds %s, not %s", ErrInvalidPayment, address, a.Currency, currency)
	}
	return a, nil
}

// checkLiveDelegation refuses to replace an allowance that a live payment still draws on. Under
// a per-payment delegate a second payment from the same token account would otherwise revoke
// the first.
func (e *Engine) checkLiveDelegation(ctx context.Context, a *models.TokenAccount, delegate string) error {
	if a.Delegate == "" || a.Delegate == delegate || a.DelegatedAmount == 0 {
		return nil
	}
	if a.Delegate == authority.ProgramAddress() {
		return fmt.Errorf("%w: token account %s already delegates to the program authority", ErrInvalidPayment, a.Address)
	}
	live, err := e.ledger.GetPayment(ctx, a.Delegate)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to load delegate payment: %w", err)
	case live.Status == models.SCHEDULED:
		return fmt.Errorf("%w: token account %s already delegates to live payment %s", ErrInvalidPayment, a.Address, live.Address)
	}
	return nil
}

func (e *Engine) checkFeeBalance(ctx context.Context, debtor string, reserve uint64) error {
	if reserve == 0 {
		return nil
	}
	w, err := e.ledger.GetWallet(ctx, debtor)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrInsufficientFeeReserve
		}
		return fmt.Errorf("failed to load debtor wallet: %w", err)
	}
	if w.Balance < reserve {
		return ErrInsufficientFeeReserve
	}
	return nil
}

func validateRequest(req CreatePaymentRequest) error {
	switch {
	case len(req.IdempotencyKey) == 0 || len(req.IdempotencyKey) > MaxIdempotencyKeyLength:
		return fmt.Errorf("%w: idempotency key must be 1 to %d bytes", ErrInvalidPayment, MaxIdempotencyKeyLength)
	case len(req.Memo) > MaxMemoLength:
		return fmt.Errorf("%w: memo longer than %d bytes", ErrInvalidPayment, MaxMemoLength)
	case req.Debtor == "" || req.Creditor == "":
		return fmt.Errorf("%w: debtor and creditor are required", ErrInvalidPayment)
	case req.DebtorTokens == "" || req.CreditorTokens == "":
		return fmt.Errorf("%w: debtor and creditor token accounts are required", ErrInvalidPayment)
	case req.DebtorTokens == req.CreditorTokens:
		return fmt.Errorf("%w: debtor and creditor token accounts must differ", ErrInvalidPayment)
	case req.Currency == "":
		return fmt.Errorf("%w: currency is required", ErrInvalidPayment)
	}
	return nil
}

// retryable reports whether a commit failed because state moved between read and write.
func retryable(err error) bool {
	return errors.Is(err, ledger.ErrConflict) ||
		errors.Is(err, ledger.ErrUnauthorized) ||
		errors.Is(err, ledger.ErrInsufficientFunds)
}
