package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID            int64
	InvoiceID     string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Status        string
	PaymentMethod string
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
}
