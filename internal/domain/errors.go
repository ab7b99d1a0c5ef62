package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserBlocked     = errors.New("user is blocked")
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvoiceTerminal = errors.New("invoice already in terminal state")
	ErrGateway         = errors.New("payment gateway request failed")
	ErrConflict        = errors.New("concurrent status transition lost")
)
