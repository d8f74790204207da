package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	Database    DatabaseConfig
	WhatsApp    WhatsAppConfig
	Settlement  SettlementConfig
	Storage     StorageConfig
	Webhook     WebhookConfig
	API         APIConfig
	LogLevel    string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	// Pre-approved template names.
	TemplateCompleted        string
	TemplateCompletedReceipt string
	TemplateInboundAck       string
	LanguageCode             string
}

type SettlementConfig struct {
	Endpoint   string
	APIKey     string
	ShopDomain string
}

// Configured reports whether all three settlement credentials are present.
func (c SettlementConfig) Configured() bool {
	return c.Endpoint != "" && c.APIKey != "" && c.ShopDomain != ""
}

type StorageConfig struct {
	Endpoint       string
	ServiceKey     string
	Bucket         string
	FallbackBucket string
}

type WebhookConfig struct {
	VerifyToken        string
	DedupClearInterval time.Duration
}

type APIConfig struct {
	KeyHashSalt string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("WA_LANGUAGE_CODE", "es")
	viper.SetDefault("WA_TEMPLATE_COMPLETED", "refund_completed")
	viper.SetDefault("WA_TEMPLATE_COMPLETED_RECEIPT", "refund_completed_receipt")
	viper.SetDefault("WA_TEMPLATE_INBOUND_ACK", "inbound_ack")
	viper.SetDefault("STORAGE_BUCKET", "receipts")
	viper.SetDefault("STORAGE_FALLBACK_BUCKET", "documents")
	viper.SetDefault("WEBHOOK_DEDUP_CLEAR_INTERVAL", "1h")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	clearInterval, err := time.ParseDuration(getEnvOrViper("WEBHOOK_DEDUP_CLEAR_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_DEDUP_CLEAR_INTERVAL: %w", err)
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "refundops"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:              getEnvOrViper("WA_ACCESS_TOKEN", ""),
			PhoneNumberID:            getEnvOrViper("WA_PHONE_NUMBER_ID", ""),
			TemplateCompleted:        getEnvOrViper("WA_TEMPLATE_COMPLETED", "refund_completed"),
			TemplateCompletedReceipt: getEnvOrViper("WA_TEMPLATE_COMPLETED_RECEIPT", "refund_completed_receipt"),
			TemplateInboundAck:       getEnvOrViper("WA_TEMPLATE_INBOUND_ACK", "inbound_ack"),
			LanguageCode:             getEnvOrViper("WA_LANGUAGE_CODE", "es"),
		},
		Settlement: SettlementConfig{
			Endpoint:   getEnvOrViper("SETTLEMENT_ENDPOINT", ""),
			APIKey:     getEnvOrViper("SETTLEMENT_API_KEY", ""),
			ShopDomain: getEnvOrViper("SETTLEMENT_SHOP_DOMAIN", ""),
		},
		Storage: StorageConfig{
			Endpoint:       getEnvOrViper("STORAGE_ENDPOINT", ""),
			ServiceKey:     getEnvOrViper("STORAGE_SERVICE_KEY", ""),
			Bucket:         getEnvOrViper("STORAGE_BUCKET", "receipts"),
			FallbackBucket: getEnvOrViper("STORAGE_FALLBACK_BUCKET", "documents"),
		},
		Webhook: WebhookConfig{
			VerifyToken:        getEnvOrViper("WEBHOOK_VERIFY_TOKEN", ""),
			DedupClearInterval: clearInterval,
		},
		API: APIConfig{
			KeyHashSalt: getEnvOrViper("API_KEY_HASH_SALT", "default-salt-change-in-production"),
		},
		LogLevel: getEnvOrViper("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.WhatsApp.AccessToken == "" {
		return nil, fmt.Errorf("WA_ACCESS_TOKEN is required")
	}
	if cfg.WhatsApp.PhoneNumberID == "" {
		return nil, fmt.Errorf("WA_PHONE_NUMBER_ID is required")
	}
	if cfg.Webhook.VerifyToken == "" {
		return nil, fmt.Errorf("WEBHOOK_VERIFY_TOKEN is required")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
