package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/config"
	"github.com/jafarshop/refundops/internal/domain"
	"github.com/jafarshop/refundops/internal/whatsapp"
)

// minPhoneDigits is the length floor applied before any provider call
const minPhoneDigits = 8

// bulkSendDelay is the fixed gate between successive bulk sends; the
// provider rate-limits business-initiated sends.
const bulkSendDelay = 500 * time.Millisecond

type notifyService struct {
	sender TemplateSender
	cfg    config.WhatsAppConfig
	logger *zap.Logger
	// gate runs between successive bulk sends; replaced in tests
	gate func(ctx context.Context)
}

// NewNotifyService creates a new notification service
func NewNotifyService(sender TemplateSender, cfg config.WhatsAppConfig, logger *zap.Logger) *notifyService {
	return &notifyService{
		sender: sender,
		cfg:    cfg,
		logger: logger,
		gate: func(ctx context.Context) {
			select {
			case <-time.After(bulkSendDelay):
			case <-ctx.Done():
			}
		},
	}
}

// SendOne sends a single templated notification. Provider failures are
// captured into the result, never returned as an error.
func (s *notifyService) SendOne(ctx context.Context, phone, templateName string, parameters []string) SendResult {
	messageID, err := s.sender.SendTemplate(ctx, phone, templateName, s.cfg.LanguageCode, whatsapp.BodyParameters(parameters...))
	if err != nil {
		s.logger.Error("Failed to send notification",
			zap.String("phone", phone),
			zap.String("template", templateName),
			zap.Error(err),
		)
		return SendResult{Success: false, Error: err.Error()}
	}

	return SendResult{Success: true, MessageID: messageID}
}

// SendBulk sends one templated notification per selected item, preserving
// input order and cardinality so callers can reconcile by item ID.
func (s *notifyService) SendBulk(ctx context.Context, templateName string, items []BulkSendItem) []BulkSendResult {
	results := make([]BulkSendResult, 0, len(items))
	sent := 0

	for _, item := range items {
		if !item.Selected {
			results = append(results, BulkSendResult{ID: item.ID, Skipped: true})
			continue
		}

		if countDigits(item.Phone) < minPhoneDigits {
			results = append(results, BulkSendResult{
				ID:    item.ID,
				Phone: item.Phone,
				Error: fmt.Sprintf("invalid phone number: %q", item.Phone),
			})
			continue
		}

		if sent > 0 {
			s.gate(ctx)
		}
		sent++

		r := s.SendOne(ctx, item.Phone, templateName, item.Parameters)
		results = append(results, BulkSendResult{
			ID:        item.ID,
			Phone:     item.Phone,
			Success:   r.Success,
			MessageID: r.MessageID,
			Error:     r.Error,
		})
	}

	return results
}

// NotifyRefundCompleted sends the completion message to the customer,
// choosing the with-receipt variant when a receipt URL is available.
func (s *notifyService) NotifyRefundCompleted(ctx context.Context, record *domain.RefundRecord, receiptURL string) SendResult {
	amount := fmt.Sprintf("%.2f", record.RefundAmount)

	if receiptURL != "" {
		return s.SendOne(ctx, record.Phone, s.cfg.TemplateCompletedReceipt,
			[]string{record.CustomerName, record.OrderNumber, amount, receiptURL})
	}
	return s.SendOne(ctx, record.Phone, s.cfg.TemplateCompleted,
		[]string{record.CustomerName, record.OrderNumber, amount})
}

// HandleInbound processes one deduplicated webhook message: log it and, for
// text messages, acknowledge with the pre-approved template.
func (s *notifyService) HandleInbound(ctx context.Context, msg domain.InboundMessage) error {
	s.logger.Info("inbound message",
		zap.String("message_id", msg.ID),
		zap.String("from", msg.From),
		zap.String("type", msg.Type),
	)

	if msg.Type != "text" {
		return nil
	}

	r := s.SendOne(ctx, msg.From, s.cfg.TemplateInboundAck, nil)
	if !r.Success {
		return fmt.Errorf("failed to acknowledge inbound message %s: %s", msg.ID, r.Error)
	}
	return nil
}

func countDigits(phone string) int {
	n := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
