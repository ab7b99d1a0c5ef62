package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Payment gateway
	GatewayURL      string `env:"GATEWAY_API_URL" envDefault:"https://api.cryptomus.com/v1"`
	GatewayMerchant string `env:"GATEWAY_MERCHANT_ID,required"`
	GatewayAPIKey   string `env:"GATEWAY_API_KEY,required"`
	WebhookSecret   string `env:"GATEWAY_WEBHOOK_SECRET,required"`
	WebhookPath     string `env:"GATEWAY_WEBHOOK_PATH" envDefault:"/webhook/payment"`
	PublicBaseURL   string `env:"PUBLIC_BASE_URL,required"`
	DefaultCurrency string `env:"INVOICE_CURRENCY" envDefault:"USD"`
	InvoiceLifetime int    `env:"INVOICE_LIFETIME_SECONDS" envDefault:"3600"`
	GatewayRetries  int    `env:"GATEWAY_RETRIES" envDefault:"3"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS,required" envSeparator:","`

	// Server
	Port int `env:"PORT" envDefault:"3000"`

	// Rate limiting
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// CallbackURL is the publicly reachable webhook URL passed to the gateway.
func (c *Config) CallbackURL() string {
	return strings.TrimSuffix(c.PublicBaseURL, "/") + c.WebhookPath
}
