// Package whatsapp is a minimal WhatsApp Cloud API client. Business-initiated
// messages must use pre-approved templates; free-form text is not permitted.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/config"
)

const graphAPIBase = "https://graph.facebook.com/v19.0"

type Client struct {
	phoneNumberID string
	http          *resty.Client
	logger        *zap.Logger
}

// NewClient creates a new WhatsApp Cloud API client
func NewClient(cfg config.WhatsAppConfig, logger *zap.Logger) *Client {
	return &Client{
		phoneNumberID: cfg.PhoneNumberID,
		http: resty.New().
			SetBaseURL(graphAPIBase).
			SetAuthToken(cfg.AccessToken).
			SetTimeout(15 * time.Second),
		logger: logger,
	}
}

// Component is one template component (body, header, ...)
type Component struct {
	Type       string      `json:"type"`
	Parameters []Parameter `json:"parameters"`
}

// Parameter is one positional template parameter
type Parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BodyParameters builds a single body component from positional text values
func BodyParameters(values ...string) []Component {
	params := make([]Parameter, len(values))
	for i, v := range values {
		params[i] = Parameter{Type: "text", Text: v}
	}
	return []Component{{Type: "body", Parameters: params}}
}

type templateRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Template         template `json:"template"`
}

type template struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []Component `json:"components,omitempty"`
}

type language struct {
	Code string `json:"code"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendTemplate sends one templated message and returns the provider message ID
func (c *Client) SendTemplate(ctx context.Context, to, templateName, languageCode string, components []Component) (string, error) {
	body := templateRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: template{
			Name:       templateName,
			Language:   language{Code: languageCode},
			Components: components,
		},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(fmt.Sprintf("/%s/messages", c.phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("failed to call messaging API: %w", err)
	}

	var result sendResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to parse messaging API response: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		if result.Error != nil {
			return "", fmt.Errorf("messaging API error %d: %s", result.Error.Code, result.Error.Message)
		}
		return "", fmt.Errorf("messaging API error: status %d, body: %s", resp.StatusCode(), resp.Body())
	}

	if len(result.Messages) == 0 {
		return "", fmt.Errorf("messaging API returned no message ID")
	}

	c.logger.Debug("template message sent",
		zap.String("to", to),
		zap.String("template", templateName),
		zap.String("message_id", result.Messages[0].ID),
	)

	return result.Messages[0].ID, nil
}
