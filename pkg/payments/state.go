package payments

import (
	"github.com/chris/recurring-payments/pkg/models"
	"github.com/chris/recurring-payments/pkg/schedule"
)

// Outcome is the result of a successful distribution call.
type Outcome string

const (
	// Transferred means the installment moved and the schedule advanced.
	Transferred Outcome = "TRANSFERRED"
	// MarkedFailed means the installment could not move and the payment is now FAILED.
	MarkedFailed Outcome = "MARKED_FAILED"
)

// checkDue reports whether p may be advanced at now.
func checkDue(p *models.Payment, now uint64) error {
	if p.Status != models.SCHEDULED {
		return ErrAlreadyTerminal
	}
	if now < p.NextTransferAt {
		return ErrNotDue
	}
	return nil
}

// advance applies one installment to p. A non-nil transferErr means the value could not move;
// the payment becomes FAILED instead of advancing.
func advance(p *models.Payment, transferErr error) Outcome {
	if transferErr != nil {
		p.Status = models.FAILED
		return MarkedFailed
	}

	p.NextTransferAt = schedule.Next(p.NextTransferAt, p.RecurrenceInterval, p.CompletedAt)
	if p.NextTransferAt == p.CompletedAt {
		p.Status = models.COMPLETED
	}
	return Transferred
}
