package storage

import (
	"context"

	"github.com/chris/recurring-payments/pkg/models"
)

// PaymentReader defines the interface for reading payment records.
type PaymentReader interface {
	// GetPayment retrieves a payment by its address.
	GetPayment(ctx context.Context, address string) (*models.Payment, error)

	// ListPaymentsByDebtor retrieves every payment a debtor has created.
	ListPaymentsByDebtor(ctx context.Context, debtor string) ([]models.Payment, error)

	// GetDuePayments retrieves up to limit SCHEDULED payments whose next transfer is at or before now.
	GetDuePayments(ctx context.Context, now uint64, limit int32) ([]models.Payment, error)
}
