package storage

import (
	"fmt"

	"github.com/chris/recurring-payments/pkg/ledger"
)

// ErrPaymentNotFound is returned when no payment exists at an address.
var ErrPaymentNotFound = fmt.Errorf("payment %w", ledger.ErrNotFound)

// ErrWalletNotFound is returned when no wallet exists at an address.
var ErrWalletNotFound = fmt.Errorf("wallet %w", ledger.ErrNotFound)

// ErrTokenAccountNotFound is returned when no token account exists at an address.
var ErrTokenAccountNotFound = fmt.Errorf("token account %w", ledger.ErrNotFound)
