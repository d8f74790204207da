// Package settlement calls the external point-of-sale integration that keeps
// order and tax records consistent when a deposit-based refund is finalized.
package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/config"
	"github.com/jafarshop/refundops/internal/domain"
)

type Client struct {
	cfg    config.SettlementConfig
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a new settlement service client
func NewClient(cfg config.SettlementConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.Endpoint).
			SetTimeout(30 * time.Second),
		logger: logger,
	}
}

// Configured reports whether all settlement credentials are present.
// When false, deposit-return completion must be skipped, not failed.
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

// CompleteDepositReturnRequest is the settlement callback payload
type CompleteDepositReturnRequest struct {
	APIKey            string            `json:"apiKey"`
	Shop              string            `json:"shop"`
	RowIndex          int               `json:"rowIndex"`
	OrderID           string            `json:"orderId"`
	OrderNumber       string            `json:"orderNumber"`
	ReturnID          string            `json:"returnId"`
	TotalRefundAmount float64           `json:"totalRefundAmount"`
	SelectedItems     []domain.LineItem `json:"selectedItems"`
	ReceiptURL        *string           `json:"receiptUrl"`
	TaxID             string            `json:"taxId,omitempty"`
	Date              string            `json:"date"`
}

// Result is the settlement service outcome surfaced to operators
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CompleteDepositReturn finalizes the order-level return on the settlement side
func (c *Client) CompleteDepositReturn(ctx context.Context, record *domain.RefundRecord, receiptURL *string) (*Result, error) {
	req := CompleteDepositReturnRequest{
		APIKey:            c.cfg.APIKey,
		Shop:              c.cfg.ShopDomain,
		RowIndex:          record.RowIndex,
		OrderID:           record.OrderID,
		OrderNumber:       record.OrderNumber,
		ReturnID:          record.ReturnID(),
		TotalRefundAmount: record.RefundAmount,
		SelectedItems:     record.LineItems,
		ReceiptURL:        receiptURL,
		TaxID:             record.TaxID(),
		Date:              time.Now().Format("2006-01-02"),
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/complete-deposit-return")
	if err != nil {
		return nil, fmt.Errorf("failed to call settlement service: %w", err)
	}

	var result Result
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse settlement response: %w", err)
	}

	if resp.StatusCode() != http.StatusOK || !result.Success {
		if result.Error != "" {
			return &result, fmt.Errorf("settlement service error: %s", result.Error)
		}
		return &result, fmt.Errorf("settlement service error: status %d", resp.StatusCode())
	}

	c.logger.Info("deposit return settled",
		zap.Int("row_index", record.RowIndex),
		zap.String("order_id", record.OrderID),
	)

	return &result, nil
}
