package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefundRecord represents one customer refund in progress or completed
type RefundRecord struct {
	RowIndex     int // stable position-based identifier, assigned at creation
	OrderID      string
	OrderNumber  string
	CustomerName string
	Phone        string
	Address      string
	RefundMethod RefundMethod
	Status       RefundStatus
	RefundAmount float64
	LineItems    []LineItem
	ExtraData    map[string]interface{} // JSONB
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LineItem is one refunded item within a refund record
type LineItem struct {
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	RefundAmount float64 `json:"refund_amount"`
}

// Keys appended to ExtraData by the completion workflow.
const (
	ExtraCompleted   = "completed"
	ExtraCompletedAt = "completed_at"
	ExtraCompletedBy = "completed_by"
	ExtraReceiptURL  = "receipt_url"
	ExtraReturnID    = "return_id"
	ExtraTaxID       = "tax_id"
)

// ReturnID returns the settlement-linkage identifier carried by
// bank-deposit refunds, or "" when the record has none.
func (r *RefundRecord) ReturnID() string {
	if r.ExtraData == nil {
		return ""
	}
	if v, ok := r.ExtraData[ExtraReturnID].(string); ok {
		return v
	}
	return ""
}

// ReceiptURL returns the stored receipt URL, or "" when none was uploaded.
func (r *RefundRecord) ReceiptURL() string {
	if r.ExtraData == nil {
		return ""
	}
	if v, ok := r.ExtraData[ExtraReceiptURL].(string); ok {
		return v
	}
	return ""
}

// TaxID returns the associated tax document identifier, if any.
func (r *RefundRecord) TaxID() string {
	if r.ExtraData == nil {
		return ""
	}
	if v, ok := r.ExtraData[ExtraTaxID].(string); ok {
		return v
	}
	return ""
}

// InboundMessage is one message extracted from a provider webhook delivery
type InboundMessage struct {
	ID   string
	From string
	Type string
	Text string
}

// Operator represents a back-office user allowed to call the API
type Operator struct {
	ID         uuid.UUID
	Name       string
	APIKeyHash string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
