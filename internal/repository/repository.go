package repository

import (
	"context"

	"github.com/jafarshop/refundops/internal/domain"
)

// RefundStore is the adapter contract over the tabular refund record store.
// Records are keyed by their stable row position, assigned on first write.
type RefundStore interface {
	// ListAll returns every record with a non-empty status field. Rows
	// without a status are not yet refund-eligible and are filtered out.
	ListAll(ctx context.Context) ([]*domain.RefundRecord, error)
	GetByRowIndex(ctx context.Context, rowIndex int) (*domain.RefundRecord, error)
	Create(ctx context.Context, record *domain.RefundRecord) error
	// MarkCompleted merges completion metadata into the existing extra data
	// and sets the status to COMPLETED in the same logical update.
	MarkCompleted(ctx context.Context, rowIndex int, receiptURL *string, completedBy string) (*domain.RefundRecord, error)
}

// OperatorStore manages back-office API credentials
type OperatorStore interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Operator, error)
	Create(ctx context.Context, operator *domain.Operator) error
}

// Repositories bundles all stores for injection
type Repositories struct {
	Refund   RefundStore
	Operator OperatorStore
}
