package scheduler

import (
	"context"
	"time"

	"github.com/chris/recurring-payments/pkg/models"
)

// Scheduler defines the interface for a component that schedules a payment for a later
// distribution attempt.
type Scheduler interface {
	// SchedulePayment enqueues msg to be delivered after delay.
	SchedulePayment(ctx context.Context, msg Message, delay time.Duration) error
}

// Message is the body of a scheduled distribution. NextTransferAt is the installment the
// message was scheduled for; once the payment has moved past it the message is stale.
type Message struct {
	PaymentAddress string `json:"payment_address"`
	NextTransferAt uint64 `json:"next_transfer_at"`
}

// For returns the message that schedules the pending installment of p.
func For(p *models.Payment) Message {
	return Message{PaymentAddress: p.Address, NextTransferAt: p.NextTransferAt}
}
