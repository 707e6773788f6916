// Package authority models the signing capability the engine uses to move funds out of a
// debtor's token account without a live debtor signature.
package authority

import (
	"errors"
	"fmt"

	"github.com/chris/recurring-payments/pkg/ledger"
	"github.com/chris/recurring-payments/pkg/models"
)

const (
	// SchemePayment delegates to each payment record's own derived identity.
	SchemePayment = "payment"
	// SchemeProgram delegates to a single program-wide identity.
	SchemeProgram = "program"
)

var (
	// ErrNoDelegation is returned when the debtor's account has no delegation to the expected identity.
	ErrNoDelegation = fmt.Errorf("%w: no live delegation", ledger.ErrUnauthorized)
	// ErrAllowanceExhausted is returned when the remaining allowance cannot cover an installment.
	ErrAllowanceExhausted = fmt.Errorf("%w: allowance exhausted", ledger.ErrUnauthorized)
	// ErrUnknownScheme is returned by New for an unrecognized scheme name.
	ErrUnknownScheme = errors.New("unknown authority scheme")
)

var programSeed = []byte("authority")

// Signer decides which identity must hold a debtor's grant for a payment and supplies the
// seed material that lets the engine sign as that identity.
type Signer interface {
	// Delegate returns the identity the debtor grants an allowance to.
	Delegate(p *models.Payment) (string, error)
	// Seeds returns the material that derives Delegate(p).
	Seeds(p *models.Payment) ([][]byte, error)
	// Shared reports whether one delegate serves many payments, so grants accumulate.
	Shared() bool
	// Scheme is the name New resolves back to this signer. It is stored on each payment.
	Scheme() string
}

// New returns the signer for a scheme name. The empty name is the payment scheme, which is what
// records written before schemes were stored were created under.
func New(scheme string) (Signer, error) {
	switch scheme {
	case "", SchemePayment:
		return PaymentSigner{}, nil
	case SchemeProgram:
		return ProgramSigner{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// PaymentSigner uses the payment record's own address as the delegate.
type PaymentSigner struct{}

func (PaymentSigner) Delegate(p *models.Payment) (string, error) {
	return p.Address, nil
}

func (PaymentSigner) Seeds(p *models.Payment) ([][]byte, error) {
	return ledger.DecodeSeeds(p.AuthoritySeed)
}

func (PaymentSigner) Shared() bool { return false }

func (PaymentSigner) Scheme() string { return SchemePayment }

// ProgramSigner uses one program-wide delegate for every payment.
type ProgramSigner struct{}

// ProgramAddress is the identity of the program-wide delegate.
func ProgramAddress() string {
	return ledger.DeriveAddress(programSeed)
}

func (ProgramSigner) Delegate(*models.Payment) (string, error) {
	return ProgramAddress(), nil
}

func (ProgramSigner) Seeds(*models.Payment) ([][]byte, error) {
	return [][]byte{programSeed}, nil
}

func (ProgramSigner) Shared() bool { return true }

func (ProgramSigner) Scheme() string { return SchemeProgram }

// Check verifies that account carries a live delegation to delegate covering amount.
func Check(account *models.TokenAccount, delegate string, amount uint64) error {
	if account.Delegate == "" || account.Delegate != delegate {
		return ErrNoDelegation
	}
	if account.DelegatedAmount < amount {
		return ErrAllowanceExhausted
	}
	return nil
}

// Grant returns the allowance to approve for a new payment of total on account.
// Shared delegates keep what is left of earlier grants.
func Grant(s Signer, account *models.TokenAccount, delegate string, total uint64) uint64 {
	if !s.Shared() || account.Delegate != delegate {
		return total
	}
	if account.DelegatedAmount > ^uint64(0)-total {
		return ^uint64(0)
	}
	return account.DelegatedAmount + total
}
