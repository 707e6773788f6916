package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chris/recurring-payments/pkg/authority"
	"github.com/chris/recurring-payments/pkg/fees"
	"github.com/chris/recurring-payments/pkg/ledger"
	"github.com/chris/recurring-payments/pkg/models"
	"github.com/chris/recurring-payments/pkg/payments"
	paymentmocks "github.com/chris/recurring-payments/pkg/payments/mocks"
	"github.com/chris/recurring-payments/pkg/scheduler"
	schedulermocks "github.com/chris/recurring-payments/pkg/scheduler/mocks"
	"github.com/chris/recurring-payments/pkg/storage/memory"
)

func newSource(t *testing.T, now int64, ps ...*models.Payment) *memory.Store {
	t.Helper()
	store := memory.New(func() time.Time { return time.Unix(now, 0) })
	batch := ledger.NewBatch()
	for _, p := range ps {
		batch.Add(ledger.PutPayment{Payment: p})
	}
	if len(ps) > 0 {
		require.NoError(t, store.Commit(context.Background(), batch))
	}
	return store
}

func scheduled(address string, next uint64) *models.Payment {
	return &models.Payment{Address: address, Status: models.SCHEDULED, NextTransferAt: next, CompletedAt: next + 100, Version: 1}
}

// newEngine creates a funded three-installment payment on a memory store whose clock reads *now.
func newEngine(t *testing.T, now *int64) (*memory.Store, *payments.Engine, *models.Payment) {
	t.Helper()
	ctx := context.Background()
	store := memory.New(func() time.Time { return time.Unix(*now, 0) })
	engine := payments.NewEngine(store, fees.DefaultPolicy(), authority.PaymentSigner{}, nil)
	_, err := engine.InitializeTreasury(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, ledger.NewBatch(
		ledger.CreateWallet{Wallet: &models.Wallet{Address: "debtor", Balance: 10_000}},
		ledger.CreateTokenAccount{Account: &models.TokenAccount{Address: "src", Owner: "debtor", Currency: "USDC", Balance: 1_000}},
		ledger.CreateTokenAccount{Account: &models.TokenAccount{Address: "dst", Owner: "creditor", Currency: "USDC"}},
	)))
	p, err := engine.CreatePayment(ctx, payments.CreatePaymentRequest{
		IdempotencyKey: "rent", Debtor: "debtor", DebtorTokens: "src", Creditor: "creditor", CreditorTokens: "dst",
		Currency: "USDC", Amount: 100, RecurrenceInterval: 10, NextTransferAt: 0, CompletedAt: 30,
	})
	require.NoError(t, err)
	return store, engine, p
}

func TestDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), Delay(10, 20))
	assert.Equal(t, 30*time.Second, Delay(130, 100))
	assert.Equal(t, 15*time.Minute, Delay(1_000_000, 0))
}

func TestEnqueueDue(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		source := newSource(t, 100, scheduled("a", 50), scheduled("b", 100), scheduled("c", 200))
		mockScheduler := new(schedulermocks.Scheduler)
		k := New(new(paymentmocks.Service), source, mockScheduler, Config{Executor: "executor"}, nil)

		mockScheduler.On("SchedulePayment", mock.Anything, scheduler.Message{PaymentAddress: "a", NextTransferAt: 50}, time.Duration(0)).Return(nil).Once()
		mockScheduler.On("SchedulePayment", mock.Anything, scheduler.Message{PaymentAddress: "b", NextTransferAt: 100}, time.Duration(0)).Return(errors.New("throttled")).Once()

		n, err := k.EnqueueDue(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, n)
		mockScheduler.AssertExpectations(t)
	})

	t.Run("No Scheduler", func(t *testing.T) {
		k := New(new(paymentmocks.Service), newSource(t, 0), nil, Config{}, nil)

		_, err := k.EnqueueDue(context.Background())

		assert.Error(t, err)
	})
}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	msg := scheduler.Message{PaymentAddress: "a", NextTransferAt: 100}

	t.Run("Reschedules Next Installment", func(t *testing.T) {
		source := newSource(t, 100, scheduled("a", 100))
		mockService := new(paymentmocks.Service)
		mockScheduler := new(schedulermocks.Scheduler)
		k := New(mockService, source, mockScheduler, Config{Executor: "executor"}, nil)

		mockService.On("DistributePayment", mock.Anything, "a", "executor").Return(&payments.Distribution{
			Outcome: payments.Transferred,
			Payment: scheduled("a", 160),
		}, nil).Once()
		mockScheduler.On("SchedulePayment", mock.Anything, scheduler.Message{PaymentAddress: "a", NextTransferAt: 160}, 60*time.Second).Return(nil).Once()

		assert.NoError(t, k.Handle(ctx, msg))
		mockService.AssertExpectations(t)
		mockScheduler.AssertExpectations(t)
	})

	t.Run("Completed Payment Is Not Rescheduled", func(t *testing.T) {
		mockService := new(paymentmocks.Service)
		mockScheduler := new(schedulermocks.Scheduler)
		k := New(mockService, newSource(t, 100, scheduled("a", 100)), mockScheduler, Config{Executor: "executor"}, nil)

		mockService.On("DistributePayment", mock.Anything, "a", "executor").Return(&payments.Distribution{
			Outcome: payments.Transferred,
			Payment: &models.Payment{Address: "a", Status: models.COMPLETED},
		}, nil).Once()

		assert.NoError(t, k.Handle(ctx, msg))
		mockScheduler.AssertNotCalled(t, "SchedulePayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Not Due Is Requeued", func(t *testing.T) {
		source := newSource(t, 100, scheduled("a", 400))
		mockService := new(paymentmocks.Service)
		mockScheduler := new(schedulermocks.Scheduler)
		k := New(mockService, source, mockScheduler, Config{Executor: "executor"}, nil)

		mockService.On("DistributePayment", mock.Anything, "a", "executor").Return(nil, payments.ErrNotDue).Once()
		mockScheduler.On("SchedulePayment", mock.Anything, scheduler.Message{PaymentAddress: "a", NextTransferAt: 400}, 300*time.Second).Return(nil).Once()

		assert.NoError(t, k.Handle(ctx, scheduler.Message{PaymentAddress: "a", NextTransferAt: 400}))
		mockScheduler.AssertExpectations(t)
	})

	t.Run("Stale Message Is Dropped", func(t *testing.T) {
		mockService := new(paymentmocks.Service)
		mockScheduler := new(schedulermocks.Scheduler)
		k := New(mockService, newSource(t, 100, scheduled("a", 160)), mockScheduler, Config{Executor: "executor"}, nil)

		assert.NoError(t, k.Handle(ctx, msg))
		mockService.AssertNotCalled(t, "DistributePayment", mock.Anything, mock.Anything, mock.Anything)
		mockScheduler.AssertNotCalled(t, "SchedulePayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Not Due After Concurrent Advance Is Dropped", func(t *testing.T) {
		source := newSource(t, 100, scheduled("a", 100))
		mockService := new(paymentmocks.Service)
		mockScheduler := new(schedulermocks.Scheduler)
		k := New(mockService, source, mockScheduler, Config{Executor: "executor"}, nil)

		advanced := scheduled("a", 160)
		advanced.Version = 2
		mockService.On("DistributePayment", mock.Anything, "a", "executor").Run(func(mock.Arguments) {
			require.NoError(t, source.Commit(ctx, ledger.NewBatch(ledger.PutPayment{Payment: advanced, ExpectVersion: 1})))
		}).Return(nil, payments.ErrNotDue).Once()

		assert.NoError(t, k.Handle(ctx, msg))
		mockScheduler.AssertNotCalled(t, "SchedulePayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Missing Payment Is Dropped", func(t *testing.T) {
		mockService := new(paymentmocks.Service)
		k := New(mockService, newSource(t, 100), new(schedulermocks.Scheduler), Config{Executor: "executor"}, nil)

		assert.NoError(t, k.Handle(ctx, msg))
		mockService.AssertNotCalled(t, "DistributePayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Terminal Is Dropped", func(t *testing.T) {
		mockService := new(paymentmocks.Service)
		k := New(mockService, newSource(t, 100, scheduled("a", 100)), new(schedulermocks.Scheduler), Config{Executor: "executor"}, nil)

		mockService.On("DistributePayment", mock.Anything, "a", "executor").Return(nil, payments.ErrAlreadyTerminal).Once()

		assert.NoError(t, k.Handle(ctx, msg))
	})

	t.Run("Unexpected Error Is Returned", func(t *testing.T) {
		mockService := new(paymentmocks.Service)
		k := New(mockService, newSource(t, 100, scheduled("a", 100)), new(schedulermocks.Scheduler), Config{Executor: "executor"}, nil)

		mockService.On("DistributePayment", mock.Anything, "a", "executor").Return(nil, payments.ErrTreasuryNotInitialized).Once()

		err := k.Handle(ctx, msg)

		assert.ErrorIs(t, err, payments.ErrTreasuryNotInitialized)
	})
}

// queue records scheduled messages in place of SQS.
type queue struct {
	msgs []scheduler.Message
}

func (q *queue) SchedulePayment(_ context.Context, msg scheduler.Message, _ time.Duration) error {
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *queue) drain() []scheduler.Message {
	msgs := q.msgs
	q.msgs = nil
	return msgs
}

// TestHandleConvergesDuplicateMessages feeds the queue a sweep duplicate on top of every
// installment's message and checks that a single message survives each round.
func TestHandleConvergesDuplicateMessages(t *testing.T) {
	ctx := context.Background()
	var now int64
	store, engine, p := newEngine(t, &now)
	q := &queue{}
	k := New(engine, store, q, Config{Executor: "keeper"}, nil)

	require.NoError(t, q.SchedulePayment(ctx, scheduler.For(p), 0))
	for _, at := range []int64{0, 10, 20} {
		now = at
		n, err := k.EnqueueDue(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		require.Len(t, q.msgs, 2)

		for _, msg := range q.drain() {
			require.NoError(t, k.Handle(ctx, msg))
		}
		if at < 20 {
			assert.Len(t, q.msgs, 1, "at %d", at)
		}
	}

	assert.Empty(t, q.msgs)
	got, err := store.GetPayment(ctx, p.Address)
	require.NoError(t, err)
	assert.Equal(t, models.COMPLETED, got.Status)
	dst, err := store.GetTokenAccount(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), dst.Balance)
}

func TestDistributeDue(t *testing.T) {
	source := newSource(t, 100, scheduled("a", 10), scheduled("b", 20), scheduled("c", 30), scheduled("d", 40), scheduled("later", 500))
	mockService := new(paymentmocks.Service)
	k := New(mockService, source, nil, Config{Executor: "executor", Concurrency: 2}, nil)

	mockService.On("DistributePayment", mock.Anything, "a", "executor").Return(&payments.Distribution{Outcome: payments.Transferred, Payment: scheduled("a", 20)}, nil).Once()
	mockService.On("DistributePayment", mock.Anything, "b", "executor").Return(&payments.Distribution{Outcome: payments.MarkedFailed, Payment: scheduled("b", 20)}, nil).Once()
	mockService.On("DistributePayment", mock.Anything, "c", "executor").Return(nil, payments.ErrAlreadyTerminal).Once()
	mockService.On("DistributePayment", mock.Anything, "d", "executor").Return(nil, errors.New("boom")).Once()

	summary, err := k.DistributeDue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Summary{Transferred: 1, Failed: 1, Skipped: 1, Errors: 1}, summary)
	mockService.AssertExpectations(t)
}

// TestDistributeDueEndToEnd runs real sweeps against the engine until the payment completes.
func TestDistributeDueEndToEnd(t *testing.T) {
	ctx := context.Background()
	var now int64
	store, engine, p := newEngine(t, &now)

	k := New(engine, store, nil, Config{Executor: "keeper"}, nil)
	for _, at := range []int64{0, 5, 10, 20, 30} {
		now = at
		_, err := k.DistributeDue(ctx)
		require.NoError(t, err)
	}

	got, err := store.GetPayment(ctx, p.Address)
	require.NoError(t, err)
	assert.Equal(t, models.COMPLETED, got.Status)
	dst, err := store.GetTokenAccount(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), dst.Balance)
	w, err := store.GetWallet(ctx, "keeper")
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), w.Balance)
}

func TestRunner(t *testing.T) {
	t.Run("Invalid Schedule", func(t *testing.T) {
		r := NewRunner(New(new(paymentmocks.Service), newSource(t, 0), nil, Config{}, nil), "not a schedule", nil)

		err := r.Start(context.Background())

		assert.Error(t, err)
	})

	t.Run("Sweep", func(t *testing.T) {
		mockService := new(paymentmocks.Service)
		k := New(mockService, newSource(t, 100, scheduled("a", 10)), nil, Config{Executor: "executor"}, nil)
		r := NewRunner(k, "@every 1h", nil)

		mockService.On("DistributePayment", mock.Anything, "a", "executor").Return(&payments.Distribution{Outcome: payments.Transferred, Payment: scheduled("a", 20)}, nil).Once()

		require.NoError(t, r.Start(context.Background()))
		r.Sweep(context.Background())
		<-r.Stop().Done()

		mockService.AssertExpectations(t)
	})

	t.Run("Cancelled Context Skips Sweep", func(t *testing.T) {
		mockService := new(paymentmocks.Service)
		k := New(mockService, newSource(t, 100, scheduled("a", 10)), nil, Config{Executor: "executor"}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		NewRunner(k, "@every 1h", nil).Sweep(ctx)

		mockService.AssertNotCalled(t, "DistributePayment", mock.Anything, mock.Anything, mock.Anything)
	})
}
