package gateway

import "github.com/m-orlov/invoicebot/internal/domain"

// MapStatus translates a gateway-reported payment status into an invoice
// status. Unrecognized statuses are treated as non-terminal: the second
// return is false and the caller should log them for manual review
// instead of guessing a mapping.
func MapStatus(gatewayStatus string) (domain.InvoiceStatus, bool) {
	switch gatewayStatus {
	case "paid", "paid_over":
		return domain.InvoiceStatusPaid, true
	case "fail", "cancel", "wrong_amount", "system_fail":
		return domain.InvoiceStatusCancelled, true
	case "expired":
		return domain.InvoiceStatusExpired, true
	default:
		return domain.InvoiceStatusPending, false
	}
}
