package config

import "time"

const (
	// Dialog sessions
	SessionTTL = 15 * time.Minute

	// Gateway client
	GatewayTimeout      = 10 * time.Second
	GatewayRetryBackoff = 2 * time.Second

	// Validation bounds
	MaxAmount         = "999999.99"
	MinDescriptionLen = 10
	MaxDescriptionLen = 200
	MaxTelegramID     = 9999999999

	// Telegram limits
	MaxTelegramMessageLen = 4096
)
