package storage

import (
	"context"

	"github.com/chris/recurring-payments/pkg/models"
)

// TransferLogReader defines the interface for reading the distribution history.
type TransferLogReader interface {
	// ListTransferLogs retrieves the attempts made against one payment, oldest first.
	ListTransferLogs(ctx context.Context, paymentAddress string) ([]models.TransferLog, error)

	// ListRecentTransferLogs retrieves the most recent attempts across all payments.
	ListRecentTransferLogs(ctx context.Context, limit int32) ([]models.TransferLog, error)
}
