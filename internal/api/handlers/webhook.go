package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/config"
	"github.com/jafarshop/refundops/internal/dedup"
	"github.com/jafarshop/refundops/internal/domain"
)

// expectedObject is the provider's top-level notification kind
const expectedObject = "whatsapp_business_account"

// InboundHandler receives each deduplicated inbound message
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg domain.InboundMessage) error
}

// WebhookPayload mirrors the provider's delivery envelope
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	Messages []WebhookMessage `json:"messages"`
}

type WebhookMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// HandleWebhookVerify handles GET /webhook — the provider's endpoint
// ownership handshake.
func HandleWebhookVerify(cfg config.WebhookConfig, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		if mode == "subscribe" && token == cfg.VerifyToken {
			logger.Info("webhook verified")
			c.String(http.StatusOK, challenge)
			return
		}

		c.Status(http.StatusForbidden)
	}
}

// HandleWebhookReceive handles POST /webhook. The provider enforces a short
// response deadline and retries aggressively, so the delivery is acknowledged
// before any per-message work; processing continues off the request path.
func HandleWebhookReceive(cache *dedup.Cache, inbound InboundHandler, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload WebhookPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.Status(http.StatusNotFound)
			return
		}

		if payload.Object != expectedObject {
			c.Status(http.StatusNotFound)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "received"})

		// The request context dies with the acknowledgement above.
		go processDelivery(context.Background(), payload, cache, inbound, logger)
	}
}

func processDelivery(ctx context.Context, payload WebhookPayload, cache *dedup.Cache, inbound InboundHandler, logger *zap.Logger) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				// Status/read/delivered receipts carry no sender
				if msg.ID == "" || msg.From == "" {
					continue
				}

				if cache.Has(msg.ID) {
					logger.Debug("duplicate delivery skipped", zap.String("message_id", msg.ID))
					continue
				}
				cache.Record(msg.ID)

				inboundMsg := domain.InboundMessage{
					ID:   msg.ID,
					From: msg.From,
					Type: msg.Type,
				}
				if msg.Text != nil {
					inboundMsg.Text = msg.Text.Body
				}

				// One message's failure never aborts its siblings
				if err := inbound.HandleInbound(ctx, inboundMsg); err != nil {
					logger.Error("Failed to handle inbound message",
						zap.String("message_id", msg.ID),
						zap.Error(err),
					)
				}
			}
		}
	}
}
