package storage

import "github.com/chris/recurring-payments/pkg/ledger"

// Storage defines the root interface for the entire data layer.
// It composes the ledger the engine commits to with the read-side queries used by the API
// and the keeper. Components should depend on the narrower interfaces instead of this one.
type Storage interface {
	ledger.Ledger
	PaymentReader
	AccountReader
	TransferLogReader
}
