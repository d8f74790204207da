package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/service"
)

// BulkNotifier is the bulk-send surface consumed by the handler
type BulkNotifier interface {
	SendBulk(ctx context.Context, templateName string, items []service.BulkSendItem) []service.BulkSendResult
}

// BulkSendRequest represents the bulk notification payload
type BulkSendRequest struct {
	Template string                 `json:"template" binding:"required"`
	Items    []service.BulkSendItem `json:"items" binding:"required,min=1"`
}

// HandleBulkSend handles POST /v1/notifications/bulk
func HandleBulkSend(notifier BulkNotifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BulkSendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		results := notifier.SendBulk(c.Request.Context(), req.Template, req.Items)

		sent := 0
		for _, r := range results {
			if r.Success {
				sent++
			}
		}
		logger.Info("bulk send finished",
			zap.Int("items", len(req.Items)),
			zap.Int("sent", sent),
		)

		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}
