package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris/recurring-payments/pkg/authority"
	"github.com/chris/recurring-payments/pkg/fees"
	"github.com/chris/recurring-payments/pkg/ledger"
	"github.com/chris/recurring-payments/pkg/models"
	"github.com/chris/recurring-payments/pkg/storage/memory"
)

const (
	debtor         = "debtor"
	creditor       = "creditor"
	debtorTokens   = "debtor-usdc"
	creditorTokens = "creditor-usdc"
	executor       = "executor"
)

type fixture struct {
	now    int64
	store  *memory.Store
	engine *Engine
}

func newFixture(t *testing.T, signer authority.Signer, nativeBalance, tokenBalance uint64) *fixture {
	t.Helper()
	f := &fixture{}
	f.store = memory.New(func() time.Time { return time.Unix(f.now, 0) })
	f.engine = NewEngine(f.store, fees.DefaultPolicy(), signer, nil)

	ctx := context.Background()
	_, err := f.engine.InitializeTreasury(ctx)
	require.NoError(t, err)
	require.NoError(t, f.store.Commit(ctx, ledger.NewBatch(
		ledger.CreateWallet{Wallet: &models.Wallet{Address: debtor, Balance: nativeBalance}},
		ledger.CreateTokenAccount{Account: &models.TokenAccount{Address: debtorTokens, Owner: debtor, Currency: "USDC", Balance: tokenBalance}},
		ledger.CreateTokenAccount{Account: &models.TokenAccount{Address: creditorTokens, Owner: creditor, Currency: "USDC"}},
	)))
	return f
}

func request(key string) CreatePaymentRequest {
	return CreatePaymentRequest{
		IdempotencyKey:     key,
		Memo:               "rent",
		Debtor:             debtor,
		DebtorTokens:       debtorTokens,
		Creditor:           creditor,
		CreditorTokens:     creditorTokens,
		Currency:           "USDC",
		Amount:             100,
		RecurrenceInterval: 10,
		NextTransferAt:     0,
		CompletedAt:        30,
	}
}

func (f *fixture) balance(t *testing.T, account string) uint64 {
	t.Helper()
	a, err := f.store.GetTokenAccount(context.Background(), account)
	require.NoError(t, err)
	return a.Balance
}

func (f *fixture) native(t *testing.T, address string) uint64 {
	t.Helper()
	w, err := f.store.GetWallet(context.Background(), address)
	if err != nil {
		return 0
	}
	return w.Balance
}

// racingLedger runs before ahead of the first commit it sees, standing in for a writer that
// lands between the engine's reads and its commit.
type racingLedger struct {
	*memory.Store
	before func()
}

func (l *racingLedger) Commit(ctx context.Context, b *ledger.Batch) error {
	if before := l.before; before != nil {
		l.before = nil
		before()
	}
	return l.Store.Commit(ctx, b)
}

func TestPaymentAddress(t *testing.T) {
	assert.Equal(t, PaymentAddress("rent", debtor, creditor), PaymentAddress("rent", debtor, creditor))
	assert.NotEqual(t, PaymentAddress("k1", "Alice", "Bob"), PaymentAddress("k1A", "lice", "Bob"))
	assert.NotEqual(t, TreasuryAddress(), PaymentAddress("tr", "eas", "ury"))
	assert.NotEqual(t, authority.ProgramAddress(), PaymentAddress("auth", "ori", "ty"))
}

func TestInitializeTreasury(t *testing.T) {
	f := newFixture(t, authority.PaymentSigner{}, 0, 0)

	_, err := f.engine.InitializeTreasury(context.Background())

	assert.ErrorIs(t, err, ErrTreasuryExists)
	assert.Equal(t, TreasuryAddress(), f.engine.Treasury().Address)
}

func TestCreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 10_000, 1_000)

		p, err := f.engine.CreatePayment(ctx, request("rent"))

		require.NoError(t, err)
		assert.Equal(t, PaymentAddress("rent", debtor, creditor), p.Address)
		assert.Equal(t, models.SCHEDULED, p.Status)
		assert.Equal(t, uint64(3), p.NumInstallments)
		assert.Equal(t, uint64(6000), p.FeeReserve)
		assert.Equal(t, uint64(4000), f.native(t, debtor))

		account, err := f.store.GetTokenAccount(ctx, debtorTokens)
		require.NoError(t, err)
		assert.Equal(t, p.Address, account.Delegate)
		assert.Equal(t, uint64(300), account.DelegatedAmount)
		assert.Equal(t, authority.SchemePayment, p.AuthorityScheme)
	})

	t.Run("Source Delegates To Live Payment", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 20_000, 1_000)
		rent, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)

		_, err = f.engine.CreatePayment(ctx, request("gym"))

		assert.ErrorIs(t, err, ErrInvalidPayment)
		assert.Equal(t, uint64(14_000), f.native(t, debtor))
		d, err := f.engine.DistributePayment(ctx, rent.Address, executor)
		require.NoError(t, err)
		assert.Equal(t, Transferred, d.Outcome)
	})

	t.Run("Source Delegates To Program Authority", func(t *testing.T) {
		f := newFixture(t, authority.ProgramSigner{}, 20_000, 1_000)
		_, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)
		perPayment := NewEngine(f.store, fees.DefaultPolicy(), authority.PaymentSigner{}, nil)

		_, err = perPayment.CreatePayment(ctx, request("gym"))

		assert.ErrorIs(t, err, ErrInvalidPayment)
	})

	t.Run("Replaces Delegation Of Finished Payment", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 20_000, 150)
		rent, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)
		for _, at := range []int64{0, 10} {
			f.now = at
			_, err := f.engine.DistributePayment(ctx, rent.Address, executor)
			require.NoError(t, err)
		}
		got, err := f.store.GetPayment(ctx, rent.Address)
		require.NoError(t, err)
		require.Equal(t, models.FAILED, got.Status)

		gym, err := f.engine.CreatePayment(ctx, request("gym"))

		require.NoError(t, err)
		account, err := f.store.GetTokenAccount(ctx, debtorTokens)
		require.NoError(t, err)
		assert.Equal(t, gym.Address, account.Delegate)
	})

	t.Run("Concurrent Grants Accumulate", func(t *testing.T) {
		f := newFixture(t, authority.ProgramSigner{}, 20_000, 1_000)
		racing := &racingLedger{Store: f.store}
		engine := NewEngine(racing, fees.DefaultPolicy(), authority.ProgramSigner{}, nil)
		racing.before = func() {
			_, err := f.engine.CreatePayment(ctx, request("gym"))
			require.NoError(t, err)
		}

		_, err := engine.CreatePayment(ctx, request("rent"))

		require.NoError(t, err)
		account, err := f.store.GetTokenAccount(ctx, debtorTokens)
		require.NoError(t, err)
		assert.Equal(t, uint64(600), account.DelegatedAmount)
		assert.Equal(t, uint64(8_000), f.native(t, debtor))
	})

	t.Run("Duplicate Key", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 20_000, 1_000)
		_, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)

		_, err = f.engine.CreatePayment(ctx, request("rent"))

		assert.ErrorIs(t, err, ErrPaymentExists)
		assert.Equal(t, uint64(14_000), f.native(t, debtor))
	})

	t.Run("Insufficient Fee Reserve", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 5_999, 1_000)

		_, err := f.engine.CreatePayment(ctx, request("rent"))

		assert.ErrorIs(t, err, ErrInsufficientFeeReserve)
		_, err = f.store.GetPayment(ctx, PaymentAddress("rent", debtor, creditor))
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("Validation", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 10_000, 1_000)
		tests := []struct {
			name    string
			mutate  func(*CreatePaymentRequest)
			wantErr error
		}{
			{"Empty Key", func(r *CreatePaymentRequest) { r.IdempotencyKey = "" }, ErrInvalidPayment},
			{"Long Key", func(r *CreatePaymentRequest) { r.IdempotencyKey = string(make([]byte, 33)) }, ErrInvalidPayment},
			{"Long Memo", func(r *CreatePaymentRequest) { r.Memo = string(make([]byte, 257)) }, ErrInvalidPayment},
			{"Same Accounts", func(r *CreatePaymentRequest) { r.CreditorTokens = debtorTokens }, ErrInvalidPayment},
			{"Wrong Owner", func(r *CreatePaymentRequest) { r.Creditor = "someone" }, ErrInvalidPayment},
			{"Wrong Currency", func(r *CreatePaymentRequest) { r.Currency = "EURC" }, ErrInvalidPayment},
			{"Missing Account", func(r *CreatePaymentRequest) { r.CreditorTokens = "missing" }, ErrInvalidPayment},
			{"Zero Amount", func(r *CreatePaymentRequest) { r.Amount = 0 }, ErrInvalidAmount},
			{"Bad Chronology", func(r *CreatePaymentRequest) { r.CompletedAt = 5 }, ErrInvalidChronology},
			{"One Shot Mismatch", func(r *CreatePaymentRequest) { r.RecurrenceInterval = 0 }, ErrInvalidChronology},
			{"Total Overflow", func(r *CreatePaymentRequest) { r.Amount = 1 << 63 }, ErrInvalidAmount},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := request("rent")
				tt.mutate(&req)

				_, err := f.engine.CreatePayment(ctx, req)

				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
		assert.Equal(t, uint64(10_000), f.native(t, debtor))
	})
}

func TestDistributePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Runs To Completion", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 10_000, 1_000)
		p, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)

		for _, at := range []int64{0, 10, 20} {
			f.now = at
			d, err := f.engine.DistributePayment(ctx, p.Address, executor)
			require.NoError(t, err)
			assert.Equal(t, Transferred, d.Outcome)
			assert.Equal(t, models.SUCCEEDED, d.Log.Status)
			assert.Equal(t, models.TransferLogPartition, d.Log.GSI1PK)
		}

		got, err := f.store.GetPayment(ctx, p.Address)
		require.NoError(t, err)
		assert.Equal(t, models.COMPLETED, got.Status)
		assert.Equal(t, uint64(30), got.NextTransferAt)
		assert.Zero(t, got.FeeReserve)
		assert.Equal(t, uint64(300), f.balance(t, creditorTokens))
		assert.Equal(t, uint64(700), f.balance(t, debtorTokens))
		assert.Equal(t, uint64(3000), f.native(t, executor))
		assert.Equal(t, uint64(3000), f.native(t, TreasuryAddress()))

		f.now = 30
		_, err = f.engine.DistributePayment(ctx, p.Address, executor)
		assert.ErrorIs(t, err, ErrAlreadyTerminal)

		logs, err := f.store.ListTransferLogs(ctx, p.Address)
		require.NoError(t, err)
		assert.Len(t, logs, 3)
	})

	t.Run("Not Due", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 10_000, 1_000)
		req := request("rent")
		req.NextTransferAt, req.CompletedAt = 100, 130
		p, err := f.engine.CreatePayment(ctx, req)
		require.NoError(t, err)
		f.now = 99

		_, err = f.engine.DistributePayment(ctx, p.Address, executor)

		assert.ErrorIs(t, err, ErrNotDue)
		got, err := f.store.GetPayment(ctx, p.Address)
		require.NoError(t, err)
		assert.Equal(t, p, got)
		assert.Zero(t, f.native(t, executor))
	})

	t.Run("Revoked Delegation", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 10_000, 1_000)
		p, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)
		require.NoError(t, f.store.Commit(ctx, ledger.NewBatch(ledger.Revoke{Account: debtorTokens, Owner: debtor})))

		d, err := f.engine.DistributePayment(ctx, p.Address, executor)

		require.NoError(t, err)
		assert.Equal(t, MarkedFailed, d.Outcome)
		assert.Equal(t, models.FAILED, d.Payment.Status)
		assert.Equal(t, models.TRANSFER_FAILED, d.Log.Status)
		assert.Zero(t, d.Log.Amount)
		assert.Equal(t, uint64(1000), f.balance(t, debtorTokens))
		assert.Zero(t, f.balance(t, creditorTokens))
		assert.Equal(t, uint64(1000), f.native(t, executor))
		assert.Equal(t, uint64(1000), f.native(t, TreasuryAddress()))

		_, err = f.engine.DistributePayment(ctx, p.Address, executor)
		assert.ErrorIs(t, err, ErrAlreadyTerminal)
	})

	t.Run("Allowance Reduced Below Amount", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 10_000, 1_000)
		p, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)
		require.NoError(t, f.store.Commit(ctx, ledger.NewBatch(
			ledger.Approve{Account: debtorTokens, Owner: debtor, Delegate: p.Address, Limit: p.Amount - 1},
		)))

		d, err := f.engine.DistributePayment(ctx, p.Address, executor)

		require.NoError(t, err)
		assert.Equal(t, MarkedFailed, d.Outcome)
		assert.Equal(t, models.FAILED, d.Payment.Status)
		assert.Equal(t, models.TRANSFER_FAILED, d.Log.Status)
		assert.Zero(t, d.Log.Amount)
		assert.Equal(t, uint64(1000), f.balance(t, debtorTokens))
		assert.Zero(t, f.balance(t, creditorTokens))
		assert.Equal(t, uint64(1000), f.native(t, executor))
		assert.Equal(t, uint64(1000), f.native(t, TreasuryAddress()))
	})

	t.Run("Insufficient Token Balance", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 10_000, 150)
		p, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)

		d, err := f.engine.DistributePayment(ctx, p.Address, executor)
		require.NoError(t, err)
		assert.Equal(t, Transferred, d.Outcome)

		f.now = 10
		d, err = f.engine.DistributePayment(ctx, p.Address, executor)
		require.NoError(t, err)
		assert.Equal(t, MarkedFailed, d.Outcome)
		assert.Equal(t, uint64(50), f.balance(t, debtorTokens))
		assert.Equal(t, uint64(2000), d.Payment.FeeReserve)
	})

	t.Run("One Shot", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 10_000, 1_000)
		req := request("once")
		req.RecurrenceInterval, req.NextTransferAt, req.CompletedAt = 0, 50, 50
		p, err := f.engine.CreatePayment(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, uint64(2000), p.FeeReserve)
		f.now = 50

		d, err := f.engine.DistributePayment(ctx, p.Address, executor)

		require.NoError(t, err)
		assert.Equal(t, models.COMPLETED, d.Payment.Status)
		assert.Equal(t, uint64(100), f.balance(t, creditorTokens))
	})

	t.Run("Treasury Not Initialized", func(t *testing.T) {
		var now int64
		store := memory.New(func() time.Time { return time.Unix(now, 0) })
		engine := NewEngine(store, fees.DefaultPolicy(), authority.PaymentSigner{}, nil)
		require.NoError(t, store.Commit(ctx, ledger.NewBatch(
			ledger.CreateWallet{Wallet: &models.Wallet{Address: debtor, Balance: 10_000}},
			ledger.CreateTokenAccount{Account: &models.TokenAccount{Address: debtorTokens, Owner: debtor, Currency: "USDC", Balance: 1_000}},
			ledger.CreateTokenAccount{Account: &models.TokenAccount{Address: creditorTokens, Owner: creditor, Currency: "USDC"}},
		)))
		p, err := engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)

		_, err = engine.DistributePayment(ctx, p.Address, executor)

		assert.ErrorIs(t, err, ErrTreasuryNotInitialized)
	})

	t.Run("Unknown Payment", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 0, 0)

		_, err := f.engine.DistributePayment(ctx, "missing", executor)

		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("Uses Scheme Recorded On Payment", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 10_000, 1_000)
		p, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)
		reconfigured := NewEngine(f.store, fees.DefaultPolicy(), authority.ProgramSigner{}, nil)

		d, err := reconfigured.DistributePayment(ctx, p.Address, executor)

		require.NoError(t, err)
		assert.Equal(t, Transferred, d.Outcome)
		assert.Equal(t, uint64(100), f.balance(t, creditorTokens))
	})

	t.Run("Unknown Recorded Scheme", func(t *testing.T) {
		f := newFixture(t, authority.PaymentSigner{}, 10_000, 1_000)
		p, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)
		corrupt := *p
		corrupt.AuthorityScheme = "multisig"
		corrupt.Version++
		require.NoError(t, f.store.Commit(ctx, ledger.NewBatch(ledger.PutPayment{Payment: &corrupt, ExpectVersion: p.Version})))

		_, err = f.engine.DistributePayment(ctx, p.Address, executor)

		assert.ErrorIs(t, err, authority.ErrUnknownScheme)
		assert.Zero(t, f.native(t, executor))
	})

	t.Run("Program Signer Shares Allowance", func(t *testing.T) {
		f := newFixture(t, authority.ProgramSigner{}, 20_000, 1_000)
		first, err := f.engine.CreatePayment(ctx, request("rent"))
		require.NoError(t, err)
		second, err := f.engine.CreatePayment(ctx, request("gym"))
		require.NoError(t, err)

		account, err := f.store.GetTokenAccount(ctx, debtorTokens)
		require.NoError(t, err)
		assert.Equal(t, authority.ProgramAddress(), account.Delegate)
		assert.Equal(t, uint64(600), account.DelegatedAmount)

		for _, p := range []*models.Payment{first, second} {
			d, err := f.engine.DistributePayment(ctx, p.Address, executor)
			require.NoError(t, err)
			assert.Equal(t, Transferred, d.Outcome)
		}
		assert.Equal(t, uint64(200), f.balance(t, creditorTokens))
	})
}

// TestDistributionConservesValue checks that across any schedule the creditor receives
// exactly amount times installments and the fee reserve is spent exactly.
func TestDistributionConservesValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("creditor receives every installment", prop.ForAll(
		func(amount, interval, span uint64) bool {
			if span < interval {
				span = interval
			}
			ctx := context.Background()
			f := newFixture(t, authority.PaymentSigner{}, 1_000_000_000, 1_000_000_000)
			req := request("prop")
			req.Amount, req.RecurrenceInterval, req.NextTransferAt, req.CompletedAt = amount, interval, 0, span

			p, err := f.engine.CreatePayment(ctx, req)
			if err != nil {
				return false
			}
			for i := uint64(0); i < p.NumInstallments; i++ {
				got, err := f.store.GetPayment(ctx, p.Address)
				if err != nil {
					return false
				}
				f.now = int64(got.NextTransferAt)
				if _, err := f.engine.DistributePayment(ctx, p.Address, fmt.Sprintf("executor-%d", i%2)); err != nil {
					return false
				}
			}
			got, err := f.store.GetPayment(ctx, p.Address)
			if err != nil {
				return false
			}
			return got.Status == models.COMPLETED &&
				got.FeeReserve == 0 &&
				f.balance(t, creditorTokens) == amount*p.NumInstallments
		},
		gen.UInt64Range(1, 1_000),
		gen.UInt64Range(1, 100),
		gen.UInt64Range(1, 1_000),
	))

	properties.TestingRun(t)
}
