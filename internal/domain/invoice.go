package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusExpired   InvoiceStatus = "expired"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// IsTerminal reports whether no further status transition is permitted.
func (s InvoiceStatus) IsTerminal() bool {
	switch s {
	case InvoiceStatusPaid, InvoiceStatusExpired, InvoiceStatusCancelled:
		return true
	}
	return false
}

type Invoice struct {
	ID                 int64
	InvoiceID          string
	UserTelegramID     int64
	Amount             decimal.Decimal
	Currency           string
	ServiceDescription string
	Status             InvoiceStatus
	PaymentURL         string
	ExternalID         string
	AdminTelegramID    int64
	CreatedAt          time.Time
	PaidAt             *time.Time
}
