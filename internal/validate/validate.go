// Package validate holds the pure input validation rules for the invoice
// creation dialog. Every function takes raw operator input and returns a
// typed value or a user-facing error.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/m-orlov/invoicebot/internal/config"
)

var (
	usernameRe  = regexp.MustCompile(`^[a-zA-Z0-9_]{5,32}$`)
	invoiceIDRe = regexp.MustCompile(`^INV-\d{6}-[A-Z0-9]{4}$`)

	maxAmount = decimal.RequireFromString(config.MaxAmount)
)

var (
	ErrAmountFormat      = errors.New("amount must be a number, e.g. 150 or 150.50")
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrAmountTooLarge    = errors.New("amount exceeds the maximum of 999999.99")
	ErrAmountPrecision   = errors.New("amount may have at most 2 decimal digits")
	ErrUserRef           = errors.New("expected a numeric Telegram ID or a @username")
	ErrDescriptionLen    = fmt.Errorf("description must be %d-%d characters", config.MinDescriptionLen, config.MaxDescriptionLen)
)

// Amount parses a monetary amount entered by an admin. Comma is accepted
// as the decimal separator.
func Amount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrAmountFormat
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrAmountNotPositive
	}
	if amount.GreaterThan(maxAmount) {
		return decimal.Zero, ErrAmountTooLarge
	}
	if amount.Exponent() < -2 {
		return decimal.Zero, ErrAmountPrecision
	}
	return amount, nil
}

// UserRef parses a user reference: either a numeric Telegram ID or a
// username with or without the leading @. Exactly one of id/username is
// set on success.
func UserRef(s string) (id int64, username string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", ErrUserRef
	}

	if n, convErr := strconv.ParseInt(s, 10, 64); convErr == nil {
		if n <= 0 || n > config.MaxTelegramID {
			return 0, "", ErrUserRef
		}
		return n, "", nil
	}

	name := strings.TrimPrefix(s, "@")
	if !usernameRe.MatchString(name) {
		return 0, "", ErrUserRef
	}
	return 0, name, nil
}

// Description validates the free-text service description.
func Description(s string) (string, error) {
	s = strings.TrimSpace(s)
	if n := len([]rune(s)); n < config.MinDescriptionLen || n > config.MaxDescriptionLen {
		return "", ErrDescriptionLen
	}
	return s, nil
}

// InvoiceID reports whether s matches the INV-YYMMDD-XXXX format.
func InvoiceID(s string) bool {
	return invoiceIDRe.MatchString(s)
}
