package payments

import (
	"errors"

	"github.com/chris/recurring-payments/pkg/schedule"
)

var (
	// ErrInvalidChronology is returned when the schedule cannot produce an installment.
	ErrInvalidChronology = schedule.ErrInvalidChronology
	// ErrInvalidAmount is returned for a zero amount or a total that overflows.
	ErrInvalidAmount = errors.New("invalid payment amount")
	// ErrInsufficientFeeReserve is returned when the debtor cannot escrow every installment's fees.
	ErrInsufficientFeeReserve = errors.New("insufficient native balance to pay transfer fees")
	// ErrInvalidPayment is returned when the parties, accounts, key or memo are malformed.
	ErrInvalidPayment = errors.New("invalid payment")
	// ErrPaymentExists is returned when the debtor, creditor and idempotency key already name a payment.
	ErrPaymentExists = errors.New("payment already exists")
	// ErrPaymentNotFound is returned when no payment exists at an address.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrNotDue is returned when distribution is attempted before next_transfer_at.
	ErrNotDue = errors.New("payment is not due")
	// ErrAlreadyTerminal is returned when distribution is attempted on a completed or failed payment.
	ErrAlreadyTerminal = errors.New("payment is already completed or failed")
	// ErrTreasuryNotInitialized is returned when distribution runs before the treasury exists.
	ErrTreasuryNotInitialized = errors.New("treasury is not initialized")
	// ErrTreasuryExists is returned when the treasury is initialized twice.
	ErrTreasuryExists = errors.New("treasury already initialized")
)
