package storage

import (
	"context"

	"github.com/chris/recurring-payments/pkg/models"
)

// AccountReader defines the interface for reading wallets and token accounts.
type AccountReader interface {
	// GetWallet retrieves a native-unit wallet by address.
	GetWallet(ctx context.Context, address string) (*models.Wallet, error)

	// GetTokenAccount retrieves a token account by address.
	GetTokenAccount(ctx context.Context, address string) (*models.TokenAccount, error)
}
