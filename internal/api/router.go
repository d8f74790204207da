package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/api/handlers"
	"github.com/jafarshop/refundops/internal/api/middleware"
	"github.com/jafarshop/refundops/internal/config"
	"github.com/jafarshop/refundops/internal/dedup"
	"github.com/jafarshop/refundops/internal/repository"
)

// Deps bundles everything the router needs
type Deps struct {
	Config   *config.Config
	Repos    *repository.Repositories
	Refunds  handlers.RefundWorkflow
	Notifier handlers.BulkNotifier
	Inbound  handlers.InboundHandler
	Dedup    *dedup.Cache
	Logger   *zap.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(deps Deps) *gin.Engine {
	if deps.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(deps.Logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhook surface (authenticated by the shared verify token only)
	router.GET("/webhook", handlers.HandleWebhookVerify(deps.Config.Webhook, deps.Logger))
	router.POST("/webhook", handlers.HandleWebhookReceive(deps.Dedup, deps.Inbound, deps.Logger))

	// API v1 routes (require operator authentication)
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(deps.Repos, deps.Logger))
	{
		v1.GET("/refunds", handlers.HandleListRefunds(deps.Repos, deps.Logger))
		v1.GET("/refunds/:rowIndex", handlers.HandleGetRefund(deps.Repos, deps.Logger))
		v1.POST("/refunds", handlers.HandleCreateRefund(deps.Refunds, deps.Logger))
		v1.POST("/refunds/:rowIndex/complete", handlers.HandleCompleteRefund(deps.Refunds, deps.Logger))
		v1.POST("/refunds/:rowIndex/resend", handlers.HandleResendNotification(deps.Refunds, deps.Logger))
		v1.POST("/notifications/bulk", handlers.HandleBulkSend(deps.Notifier, deps.Logger))
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
