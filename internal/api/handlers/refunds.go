package handlers

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/api/middleware"
	"github.com/jafarshop/refundops/internal/domain"
	"github.com/jafarshop/refundops/internal/repository"
	"github.com/jafarshop/refundops/internal/service"
	"github.com/jafarshop/refundops/pkg/errors"
)

// RefundWorkflow is the completion workflow surface consumed by the handlers
type RefundWorkflow interface {
	Create(ctx context.Context, req service.CreateRefundRequest) (*domain.RefundRecord, error)
	Complete(ctx context.Context, rowIndex int, opts service.CompleteOptions) (*service.CompleteResult, error)
	Resend(ctx context.Context, rowIndex int) (*service.SendResult, error)
}

// RefundResponse represents the refund response
type RefundResponse struct {
	RowIndex     int                    `json:"row_index"`
	OrderID      string                 `json:"order_id"`
	OrderNumber  string                 `json:"order_number,omitempty"`
	CustomerName string                 `json:"customer_name"`
	Phone        string                 `json:"phone,omitempty"`
	Address      string                 `json:"address,omitempty"`
	RefundMethod domain.RefundMethod    `json:"refund_method"`
	Status       domain.RefundStatus    `json:"status"`
	RefundAmount float64                `json:"refund_amount"`
	LineItems    []domain.LineItem      `json:"line_items"`
	ExtraData    map[string]interface{} `json:"extra_data,omitempty"`
	CreatedAt    string                 `json:"created_at"`
	UpdatedAt    string                 `json:"updated_at"`
}

func toRefundResponse(record *domain.RefundRecord) RefundResponse {
	return RefundResponse{
		RowIndex:     record.RowIndex,
		OrderID:      record.OrderID,
		OrderNumber:  record.OrderNumber,
		CustomerName: record.CustomerName,
		Phone:        record.Phone,
		Address:      record.Address,
		RefundMethod: record.RefundMethod,
		Status:       record.Status,
		RefundAmount: record.RefundAmount,
		LineItems:    record.LineItems,
		ExtraData:    record.ExtraData,
		CreatedAt:    record.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    record.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// HandleListRefunds handles GET /v1/refunds
func HandleListRefunds(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := repos.Refund.ListAll(c.Request.Context())
		if err != nil {
			logger.Error("Failed to list refunds", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "record store unavailable"})
			return
		}

		responses := make([]RefundResponse, len(records))
		for i, record := range records {
			responses[i] = toRefundResponse(record)
		}

		c.JSON(http.StatusOK, gin.H{"refunds": responses})
	}
}

// HandleGetRefund handles GET /v1/refunds/:rowIndex
func HandleGetRefund(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rowIndex, err := parseRowIndex(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid row index"})
			return
		}

		record, err := repos.Refund.GetByRowIndex(c.Request.Context(), rowIndex)
		if err != nil {
			respondStoreError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, toRefundResponse(record))
	}
}

// HandleCreateRefund handles POST /v1/refunds
func HandleCreateRefund(refunds RefundWorkflow, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateRefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		record, err := refunds.Create(c.Request.Context(), req)
		if err != nil {
			var storeErr *errors.ErrStoreUnavailable
			if stderrors.As(err, &storeErr) {
				logger.Error("Failed to create refund", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "record store unavailable"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, toRefundResponse(record))
	}
}

// CompleteRefundRequest represents the completion payload
type CompleteRefundRequest struct {
	NotifyCustomer *bool           `json:"notify_customer,omitempty"`
	Receipt        *ReceiptPayload `json:"receipt,omitempty"`
}

// ReceiptPayload carries an optional receipt document, base64-encoded
type ReceiptPayload struct {
	DataBase64  string `json:"data_base64" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Name        string `json:"name"`
}

// HandleCompleteRefund handles POST /v1/refunds/:rowIndex/complete
func HandleCompleteRefund(refunds RefundWorkflow, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		operator, ok := middleware.GetOperatorFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		rowIndex, err := parseRowIndex(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid row index"})
			return
		}

		var req CompleteRefundRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"error":   "validation failed",
					"details": err.Error(),
				})
				return
			}
		}

		opts := service.CompleteOptions{
			NotifyCustomer: true,
			CompletedBy:    operator.Name,
		}
		if req.NotifyCustomer != nil {
			opts.NotifyCustomer = *req.NotifyCustomer
		}
		if req.Receipt != nil {
			data, err := base64.StdEncoding.DecodeString(req.Receipt.DataBase64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receipt encoding"})
				return
			}
			opts.Receipt = &service.ReceiptDocument{
				Data:        data,
				ContentType: req.Receipt.ContentType,
				Name:        req.Receipt.Name,
			}
		}

		result, err := refunds.Complete(c.Request.Context(), rowIndex, opts)
		if err != nil {
			var alreadyErr *errors.ErrAlreadyCompleted
			var transitionErr *errors.ErrInvalidStateTransition
			switch {
			case stderrors.As(err, &alreadyErr), stderrors.As(err, &transitionErr):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				respondStoreError(c, logger, err)
			}
			return
		}

		// Non-critical sub-failures ride along as warnings; the refund
		// itself is settled.
		c.JSON(http.StatusOK, result)
	}
}

// HandleResendNotification handles POST /v1/refunds/:rowIndex/resend
func HandleResendNotification(refunds RefundWorkflow, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rowIndex, err := parseRowIndex(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid row index"})
			return
		}

		result, err := refunds.Resend(c.Request.Context(), rowIndex)
		if err != nil {
			var notFoundErr *errors.ErrNotFound
			var transitionErr *errors.ErrInvalidStateTransition
			var storeErr *errors.ErrStoreUnavailable
			switch {
			case stderrors.As(err, &notFoundErr):
				c.JSON(http.StatusNotFound, gin.H{"error": "refund not found"})
			case stderrors.As(err, &storeErr):
				logger.Error("Failed to resend notification", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "record store unavailable"})
			case stderrors.As(err, &transitionErr):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

var errInvalidRowIndex = stderrors.New("invalid row index")

func parseRowIndex(c *gin.Context) (int, error) {
	rowIndex, err := strconv.Atoi(c.Param("rowIndex"))
	if err != nil || rowIndex < 1 {
		return 0, errInvalidRowIndex
	}
	return rowIndex, nil
}

func respondStoreError(c *gin.Context, logger *zap.Logger, err error) {
	var notFoundErr *errors.ErrNotFound
	if stderrors.As(err, &notFoundErr) {
		c.JSON(http.StatusNotFound, gin.H{"error": "refund not found"})
		return
	}
	logger.Error("Record store error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "record store unavailable"})
}
