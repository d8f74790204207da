package service

import (
	"context"
	"encoding/json"

	"github.com/jafarshop/refundops/internal/domain"
	"github.com/jafarshop/refundops/internal/settlement"
	"github.com/jafarshop/refundops/internal/whatsapp"
)

// TemplateSender sends one templated message through the messaging provider
type TemplateSender interface {
	SendTemplate(ctx context.Context, to, templateName, languageCode string, components []whatsapp.Component) (string, error)
}

// ReceiptUploader stores a receipt document and returns its public URL
type ReceiptUploader interface {
	Upload(ctx context.Context, data []byte, contentType, name string) (string, error)
}

// SettlementClient finalizes deposit returns on the external system of record
type SettlementClient interface {
	Configured() bool
	CompleteDepositReturn(ctx context.Context, record *domain.RefundRecord, receiptURL *string) (*settlement.Result, error)
}

// CompletionNotifier sends the customer-facing completion message
type CompletionNotifier interface {
	NotifyRefundCompleted(ctx context.Context, record *domain.RefundRecord, receiptURL string) SendResult
}

// SendResult is the outcome of one provider send; provider failures are
// folded in here, never raised.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BulkSendItem is one entry in a bulk notification request
type BulkSendItem struct {
	ID         string   `json:"id"`
	Phone      string   `json:"phone"`
	Selected   bool     `json:"selected"`
	Parameters []string `json:"parameters,omitempty"`
}

// BulkSendResult is the per-item outcome, in input order
type BulkSendResult struct {
	ID        string `json:"id"`
	Phone     string `json:"phone,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StepResult records the outcome of one non-critical side effect of the
// completion workflow.
type StepResult struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ReceiptDocument is an optional receipt artifact supplied on completion
type ReceiptDocument struct {
	Data        []byte
	ContentType string
	Name        string
}

// CompleteOptions controls one completion run
type CompleteOptions struct {
	Receipt        *ReceiptDocument
	NotifyCustomer bool
	CompletedBy    string
}

// CompleteResult is the composite outcome: the refund itself is settled on
// success, while each side effect reports individually.
type CompleteResult struct {
	RowIndex           int                 `json:"row_index"`
	OrderID            string              `json:"order_id"`
	Status             domain.RefundStatus `json:"status"`
	ReceiptURL         *string             `json:"receipt_url"`
	ReceiptResult      *StepResult         `json:"receipt_result,omitempty"`
	SettlementResult   *StepResult         `json:"settlement_result,omitempty"`
	NotificationResult *SendResult         `json:"notification_result,omitempty"`
}

// CreateRefundRequest is the payload for registering a new refund
type CreateRefundRequest struct {
	OrderID      string                 `json:"order_id" binding:"required"`
	OrderNumber  string                 `json:"order_number"`
	CustomerName string                 `json:"customer_name" binding:"required"`
	Phone        string                 `json:"phone"`
	Address      string                 `json:"address"`
	RefundMethod string                 `json:"refund_method" binding:"required"`
	RefundAmount float64                `json:"refund_amount" binding:"min=0"`
	LineItems    []LineItemRequest      `json:"line_items"`
	ExtraData    map[string]interface{} `json:"extra_data"`
}

type LineItemRequest struct {
	Name         string  `json:"name" binding:"required"`
	Quantity     int     `json:"quantity" binding:"required,min=1"`
	RefundAmount float64 `json:"refund_amount" binding:"min=0"`
}
