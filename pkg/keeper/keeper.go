// Package keeper runs distributions on behalf of an executor: it finds due payments, enqueues
// them, and distributes them as they come off the queue or in periodic sweeps.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chris/recurring-payments/pkg/ledger"
	"github.com/chris/recurring-payments/pkg/models"
	"github.com/chris/recurring-payments/pkg/payments"
	"github.com/chris/recurring-payments/pkg/scheduler"
)

const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 8
)

// Source is the read side the keeper needs to find and time payments.
type Source interface {
	Now(ctx context.Context) (uint64, error)
	GetPayment(ctx context.Context, address string) (*models.Payment, error)
	GetDuePayments(ctx context.Context, now uint64, limit int32) ([]models.Payment, error)
}

// Config tunes a Keeper.
type Config struct {
	Executor    string
	BatchSize   int32
	Concurrency int
}

// Keeper distributes due payments as a single executor.
type Keeper struct {
	service   payments.Service
	source    Source
	scheduler scheduler.Scheduler
	cfg       Config
	logger    *slog.Logger
}

// Summary counts the results of a sweep.
type Summary struct {
	Transferred int64
	Failed      int64
	Skipped     int64
	Errors      int64
}

// New creates a Keeper. The scheduler may be nil for keepers that only sweep.
func New(service payments.Service, source Source, sched scheduler.Scheduler, cfg Config, logger *slog.Logger) *Keeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Keeper{
		service:   service,
		source:    source,
		scheduler: sched,
		cfg:       cfg,
		logger:    logger,
	}
}

// EnqueueDue schedules every due payment for immediate distribution and returns how many were
// enqueued. A failure to enqueue one payment does not stop the rest. A payment that already has
// a message queued for the same installment ends up with two; Handle drops whichever arrives
// after the installment has moved.
func (k *Keeper) EnqueueDue(ctx context.Context) (int, error) {
	if k.scheduler == nil {
		return 0, errors.New("keeper has no scheduler")
	}
	due, err := k.due(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, p := range due {
		if err := k.scheduler.SchedulePayment(ctx, scheduler.For(&p), 0); err != nil {
			k.logger.ErrorContext(ctx, "Failed to enqueue payment", "address", p.Address, "error", err)
			continue
		}
		enqueued++
	}
	k.logger.InfoContext(ctx, "Enqueued due payments", "due", len(due), "enqueued", enqueued)
	return enqueued, nil
}

// Handle distributes one queued payment and schedules its next installment while it remains
// SCHEDULED. Payments that are gone or terminal are dropped, as are messages for an installment
// the payment has already moved past, so each payment keeps at most one live message.
func (k *Keeper) Handle(ctx context.Context, msg scheduler.Message) error {
	address := msg.PaymentAddress
	p, err := k.source.GetPayment(ctx, address)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		k.logger.InfoContext(ctx, "Dropping payment", "address", address, "reason", payments.ErrPaymentNotFound)
		return nil
	case err != nil:
		return fmt.Errorf("failed to load payment %s: %w", address, err)
	case p.NextTransferAt != msg.NextTransferAt:
		k.logger.InfoContext(ctx, "Dropping stale message",
			"address", address,
			"scheduled_for", msg.NextTransferAt,
			"next_transfer_at", p.NextTransferAt,
		)
		return nil
	}

	d, err := k.service.DistributePayment(ctx, address, k.cfg.Executor)
	switch {
	case err == nil:
		k.logger.InfoContext(ctx, "Handled payment", "address", address, "outcome", d.Outcome, "status", d.Payment.Status)
		if d.Payment.Status != models.SCHEDULED {
			return nil
		}
		return k.reschedule(ctx, d.Payment)
	case errors.Is(err, payments.ErrAlreadyTerminal), errors.Is(err, payments.ErrPaymentNotFound):
		k.logger.InfoContext(ctx, "Dropping payment", "address", address, "reason", err)
		return nil
	case errors.Is(err, payments.ErrNotDue):
		latest, getErr := k.source.GetPayment(ctx, address)
		if getErr != nil {
			return fmt.Errorf("failed to load payment %s: %w", address, getErr)
		}
		if latest.NextTransferAt != msg.NextTransferAt {
			// another message advanced the payment first and queued the next installment
			return nil
		}
		return k.reschedule(ctx, latest)
	default:
		return fmt.Errorf("failed to distribute payment %s: %w", address, err)
	}
}

// DistributeDue distributes every currently due payment with bounded concurrency.
// Per-payment failures are counted and logged, not returned.
func (k *Keeper) DistributeDue(ctx context.Context) (Summary, error) {
	var summary Summary
	due, err := k.due(ctx)
	if err != nil {
		return summary, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k.cfg.Concurrency)
	for _, p := range due {
		g.Go(func() error {
			d, err := k.service.DistributePayment(gctx, p.Address, k.cfg.Executor)
			switch {
			case err == nil && d.Outcome == payments.Transferred:
				atomic.AddInt64(&summary.Transferred, 1)
			case err == nil:
				atomic.AddInt64(&summary.Failed, 1)
			case errors.Is(err, payments.ErrNotDue), errors.Is(err, payments.ErrAlreadyTerminal):
				atomic.AddInt64(&summary.Skipped, 1)
			default:
				atomic.AddInt64(&summary.Errors, 1)
				k.logger.ErrorContext(gctx, "Failed to distribute payment", "address", p.Address, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	k.logger.InfoContext(ctx, "Distributed due payments",
		"due", len(due),
		"transferred", summary.Transferred,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
	)
	return summary, nil
}

func (k *Keeper) due(ctx context.Context) ([]models.Payment, error) {
	now, err := k.source.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger clock: %w", err)
	}
	due, err := k.source.GetDuePayments(ctx, now, k.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get due payments: %w", err)
	}
	return due, nil
}

func (k *Keeper) reschedule(ctx context.Context, p *models.Payment) error {
	if k.scheduler == nil {
		return nil
	}
	now, err := k.source.Now(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger clock: %w", err)
	}
	if err := k.scheduler.SchedulePayment(ctx, scheduler.For(p), Delay(p.NextTransferAt, now)); err != nil {
		return fmt.Errorf("failed to reschedule payment %s: %w", p.Address, err)
	}
	return nil
}

// Delay returns how long to wait from now until next, capped at the queue's maximum delay.
func Delay(next, now uint64) time.Duration {
	if next <= now {
		return 0
	}
	if next-now >= uint64(scheduler.MaxDelay/time.Second) {
		return scheduler.MaxDelay
	}
	return time.Duration(next-now) * time.Second
}
