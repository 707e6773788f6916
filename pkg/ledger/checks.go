package ledger

import (
	"fmt"

	"github.com/chris/recurring-payments/pkg/models"
)

// CheckSigner verifies that seeds derive the authority of a transfer.
func CheckSigner(t Transfer) error {
	if DeriveAddress(t.Seeds...) != t.Authority {
		return fmt.Errorf("%w: seeds do not derive %s", ErrUnauthorized, t.Authority)
	}
	return nil
}

// CheckTransfer validates a transfer against the current state of its two token accounts.
func CheckTransfer(from, to *models.TokenAccount, t Transfer) error {
	if t.From == t.To {
		return fmt.Errorf("%w: transfer source and destination are the same account", ErrInvalidBatch)
	}
	if from.Currency != t.Currency || to.Currency != t.Currency {
		return fmt.Errorf("%w: currency mismatch", ErrUnauthorized)
	}
	if from.Delegate == "" || from.Delegate != t.Authority {
		return fmt.Errorf("%w: %s is not the delegate of %s", ErrUnauthorized, t.Authority, from.Address)
	}
	if from.DelegatedAmount < t.Amount {
		return fmt.Errorf("%w: allowance %d below %d", ErrUnauthorized, from.DelegatedAmount, t.Amount)
	}
	if from.Balance < t.Amount {
		return fmt.Errorf("%w: balance %d below %d", ErrInsufficientFunds, from.Balance, t.Amount)
	}
	return nil
}
