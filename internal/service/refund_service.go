package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/domain"
	"github.com/jafarshop/refundops/internal/repository"
	"github.com/jafarshop/refundops/pkg/errors"
)

// refundService runs the completion workflow. The only critical step is
// persisting the status transition; receipt archival, settlement sync and
// customer notification are best-effort and individually reported.
type refundService struct {
	store      repository.RefundStore
	uploader   ReceiptUploader
	settlement SettlementClient
	notifier   CompletionNotifier
	logger     *zap.Logger

	// per-row locks make the IN_PROGRESS -> COMPLETED transition atomic
	// across concurrent completion attempts
	locksMu sync.Mutex
	locks   map[int]*sync.Mutex
}

// NewRefundService creates a new refund service
func NewRefundService(
	store repository.RefundStore,
	uploader ReceiptUploader,
	settlementClient SettlementClient,
	notifier CompletionNotifier,
	logger *zap.Logger,
) *refundService {
	return &refundService{
		store:      store,
		uploader:   uploader,
		settlement: settlementClient,
		notifier:   notifier,
		logger:     logger,
		locks:      make(map[int]*sync.Mutex),
	}
}

func (s *refundService) lockRow(rowIndex int) func() {
	s.locksMu.Lock()
	m, ok := s.locks[rowIndex]
	if !ok {
		m = &sync.Mutex{}
		s.locks[rowIndex] = m
	}
	s.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// Create registers a new IN_PROGRESS refund and assigns its row index
func (s *refundService) Create(ctx context.Context, req CreateRefundRequest) (*domain.RefundRecord, error) {
	method := domain.RefundMethod(req.RefundMethod)
	if !method.IsValid() {
		return nil, fmt.Errorf("unknown refund method: %q", req.RefundMethod)
	}

	lineItems := make([]domain.LineItem, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		lineItems = append(lineItems, domain.LineItem{
			Name:         item.Name,
			Quantity:     item.Quantity,
			RefundAmount: item.RefundAmount,
		})
	}

	record := &domain.RefundRecord{
		OrderID:      req.OrderID,
		OrderNumber:  req.OrderNumber,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Address:      req.Address,
		RefundMethod: method,
		Status:       domain.RefundStatusInProgress,
		RefundAmount: req.RefundAmount,
		LineItems:    lineItems,
		ExtraData:    req.ExtraData,
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("refund created",
		zap.Int("row_index", record.RowIndex),
		zap.String("order_id", record.OrderID),
		zap.String("method", string(record.RefundMethod)),
	)

	return record, nil
}

// Complete runs the completion workflow for one refund row
func (s *refundService) Complete(ctx context.Context, rowIndex int, opts CompleteOptions) (*CompleteResult, error) {
	unlock := s.lockRow(rowIndex)
	locked := true
	defer func() {
		if locked {
			unlock()
		}
	}()

	// Step 1: load
	record, err := s.store.GetByRowIndex(ctx, rowIndex)
	if err != nil {
		return nil, err
	}

	// Step 2: idempotency guard against double settlement/notification
	if record.Status == domain.RefundStatusCompleted {
		return nil, &errors.ErrAlreadyCompleted{RowIndex: rowIndex}
	}
	if !record.Status.CanTransitionTo(domain.RefundStatusCompleted) {
		return nil, &errors.ErrInvalidStateTransition{
			From: record.Status,
			To:   domain.RefundStatusCompleted,
		}
	}

	result := &CompleteResult{
		RowIndex: rowIndex,
		OrderID:  record.OrderID,
	}

	// Step 3: receipt upload, non-critical. The money already moved; a
	// missing receipt never blocks settling the refund.
	var receiptURL *string
	if opts.Receipt != nil {
		url, err := s.uploader.Upload(ctx, opts.Receipt.Data, opts.Receipt.ContentType, s.receiptName(record, opts.Receipt))
		if err != nil {
			s.logger.Error("Failed to upload receipt, continuing without it",
				zap.Int("row_index", rowIndex),
				zap.Error(err),
			)
			result.ReceiptResult = &StepResult{Success: false, Error: err.Error()}
		} else {
			receiptURL = &url
			result.ReceiptResult = &StepResult{Success: true}
		}
	}

	// Step 4: settlement sync, non-critical. Only deposit refunds with a
	// return linkage are applicable, and only when credentials exist.
	result.SettlementResult = s.settleDepositReturn(ctx, record, receiptURL)

	// Step 5: persist the transition. The one critical step.
	updated, err := s.store.MarkCompleted(ctx, rowIndex, receiptURL, opts.CompletedBy)
	if err != nil {
		return nil, err
	}

	result.Status = updated.Status
	result.ReceiptURL = receiptURL

	s.logger.Info("refund completed",
		zap.Int("row_index", rowIndex),
		zap.String("order_id", record.OrderID),
		zap.String("completed_by", opts.CompletedBy),
	)

	unlock()
	locked = false

	// Step 6: customer notification, non-critical
	if opts.NotifyCustomer && record.Phone != "" {
		url := ""
		if receiptURL != nil {
			url = *receiptURL
		}
		r := s.notifier.NotifyRefundCompleted(ctx, record, url)
		result.NotificationResult = &r
	}

	return result, nil
}

func (s *refundService) settleDepositReturn(ctx context.Context, record *domain.RefundRecord, receiptURL *string) *StepResult {
	if record.RefundMethod != domain.RefundMethodBankDeposit || record.ReturnID() == "" {
		s.logger.Debug("settlement not applicable",
			zap.Int("row_index", record.RowIndex),
			zap.String("method", string(record.RefundMethod)),
		)
		return nil
	}

	if !s.settlement.Configured() {
		// Deposit refund with a return linkage but no credentials: likely a
		// misconfigured deployment, worth an operator's attention.
		s.logger.Warn("settlement credentials not configured, skipping deposit return sync",
			zap.Int("row_index", record.RowIndex),
			zap.String("order_id", record.OrderID),
		)
		return nil
	}

	settled, err := s.settlement.CompleteDepositReturn(ctx, record, receiptURL)
	if err != nil {
		s.logger.Error("Settlement sync failed, continuing; reconcile manually",
			zap.Int("row_index", record.RowIndex),
			zap.String("order_id", record.OrderID),
			zap.Error(err),
		)
		step := &StepResult{Success: false, Error: err.Error()}
		if settled != nil {
			step.Data = settled.Data
		}
		return step
	}

	return &StepResult{Success: true, Data: settled.Data}
}

func (s *refundService) receiptName(record *domain.RefundRecord, doc *ReceiptDocument) string {
	if doc.Name != "" {
		return fmt.Sprintf("refund-%d-%s", record.RowIndex, doc.Name)
	}
	return fmt.Sprintf("refund-%d-%d", record.RowIndex, time.Now().Unix())
}

// Resend re-sends the completion notification for an already-completed
// refund. No retry policy, no persistence change.
func (s *refundService) Resend(ctx context.Context, rowIndex int) (*SendResult, error) {
	record, err := s.store.GetByRowIndex(ctx, rowIndex)
	if err != nil {
		return nil, err
	}

	if record.Status != domain.RefundStatusCompleted {
		return nil, &errors.ErrInvalidStateTransition{
			From: record.Status,
			To:   domain.RefundStatusCompleted,
		}
	}
	if record.Phone == "" {
		return nil, fmt.Errorf("refund at row %d has no phone number", rowIndex)
	}

	r := s.notifier.NotifyRefundCompleted(ctx, record, record.ReceiptURL())
	return &r, nil
}
