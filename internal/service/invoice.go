// Package service orchestrates the invoice lifecycle: creation with a
// gateway payment link, webhook-driven status reconciliation, and the
// periodic expiry sweep.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m-orlov/invoicebot/internal/config"
	"github.com/m-orlov/invoicebot/internal/domain"
	"github.com/m-orlov/invoicebot/internal/gateway"
)

// InvoiceStore is the persistence surface the service needs for invoices.
type InvoiceStore interface {
	Create(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	SetPaymentLink(ctx context.Context, invoiceID, paymentURL, externalID string) error
	TransitionStatus(ctx context.Context, invoiceID string, from, to domain.InvoiceStatus, paidAt *time.Time) (bool, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Invoice, error)
	ListByStatus(ctx context.Context, status domain.InvoiceStatus, limit int) ([]*domain.Invoice, error)
	ExistsInvoiceID(ctx context.Context, invoiceID string) (bool, error)
	CountByStatus(ctx context.Context) (map[domain.InvoiceStatus]int64, error)
	SumPaidAmount(ctx context.Context) (decimal.Decimal, error)
}

// PaymentStore records gateway-reported transactions.
type PaymentStore interface {
	Upsert(ctx context.Context, p *domain.Payment) (bool, error)
}

// UserStore resolves user references entered by admins.
type UserStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Count(ctx context.Context) (int64, error)
}

// Gateway is the outbound payment-processor surface.
type Gateway interface {
	RequestInvoice(ctx context.Context, amount decimal.Decimal, currency, orderID string) (*gateway.CreatedInvoice, error)
	PaymentInfo(ctx context.Context, orderID string) (string, error)
}

// Notifier dispatches lifecycle chat messages.
type Notifier interface {
	InvoiceIssued(ctx context.Context, inv *domain.Invoice)
	PaymentReceived(ctx context.Context, inv *domain.Invoice)
	InvoiceExpired(ctx context.Context, inv *domain.Invoice)
	InvoiceCancelled(ctx context.Context, inv *domain.Invoice)
}

type InvoiceService struct {
	invoices InvoiceStore
	payments PaymentStore
	users    UserStore
	gateway  Gateway
	notifier Notifier

	currency string
	lifetime time.Duration
	retries  int
	backoff  time.Duration

	now func() time.Time
}

func NewInvoiceService(invoices InvoiceStore, payments PaymentStore, users UserStore, gw Gateway, notifier Notifier, cfg *config.Config) *InvoiceService {
	// GatewayRetries counts attempts, not re-tries: the gateway is always
	// called at least once.
	retries := cfg.GatewayRetries
	if retries < 1 {
		retries = 1
	}
	return &InvoiceService{
		invoices: invoices,
		payments: payments,
		users:    users,
		gateway:  gw,
		notifier: notifier,
		currency: cfg.DefaultCurrency,
		lifetime: time.Duration(cfg.InvoiceLifetime) * time.Second,
		retries:  retries,
		backoff:  config.GatewayRetryBackoff,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (s *InvoiceService) WithClock(now func() time.Time) *InvoiceService {
	s.now = now
	return s
}

type CreateParams struct {
	UserTelegramID  int64
	Amount          decimal.Decimal
	Description     string
	AdminTelegramID int64
}

// CreateInvoice persists a pending invoice, requests a payment link from
// the gateway, and notifies both parties. When the gateway fails after
// retries the invoice stays pending without a link and a wrapped
// ErrGateway is returned so the admin can retry manually.
func (s *InvoiceService) CreateInvoice(ctx context.Context, p CreateParams) (*domain.Invoice, error) {
	if _, err := s.users.GetByTelegramID(ctx, p.UserTelegramID); err != nil {
		return nil, err
	}

	invoiceID, err := s.generateInvoiceID(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := s.invoices.Create(ctx, &domain.Invoice{
		InvoiceID:          invoiceID,
		UserTelegramID:     p.UserTelegramID,
		Amount:             p.Amount,
		Currency:           s.currency,
		ServiceDescription: p.Description,
		AdminTelegramID:    p.AdminTelegramID,
	})
	if err != nil {
		return nil, err
	}

	created, err := s.requestWithRetry(ctx, inv)
	if err != nil {
		slog.Error("payment link request failed, invoice left pending",
			"invoice_id", inv.InvoiceID, "error", err)
		return inv, fmt.Errorf("request payment link for %s: %w", inv.InvoiceID, err)
	}

	if err := s.invoices.SetPaymentLink(ctx, inv.InvoiceID, created.PaymentURL, created.ExternalID); err != nil {
		return inv, err
	}
	inv.PaymentURL = created.PaymentURL
	inv.ExternalID = created.ExternalID

	slog.Info("invoice created",
		"invoice_id", inv.InvoiceID,
		"user_id", inv.UserTelegramID,
		"amount", inv.Amount.StringFixed(2),
		"admin_id", inv.AdminTelegramID,
	)

	s.notifier.InvoiceIssued(ctx, inv)
	return inv, nil
}

func (s *InvoiceService) requestWithRetry(ctx context.Context, inv *domain.Invoice) (*gateway.CreatedInvoice, error) {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff):
			}
		}
		created, err := s.gateway.RequestInvoice(ctx, inv.Amount, inv.Currency, inv.InvoiceID)
		if err == nil {
			return created, nil
		}
		lastErr = err
		slog.Warn("gateway request attempt failed",
			"invoice_id", inv.InvoiceID, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// WebhookEvent carries the fields of one gateway callback the service
// acts on.
type WebhookEvent struct {
	OrderID       string
	Status        string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
}

// ApplyWebhookStatus reconciles one reported payment status. It is
// idempotent under redelivery: terminal invoices absorb events as no-ops,
// payments are upserted by transaction id, and notifications fire only
// for the caller that wins the status transition.
func (s *InvoiceService) ApplyWebhookStatus(ctx context.Context, ev WebhookEvent) error {
	inv, err := s.invoices.GetByInvoiceID(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("lookup invoice %q: %w", ev.OrderID, err)
	}

	if inv.Status.IsTerminal() {
		slog.Info("webhook for terminal invoice ignored",
			"invoice_id", inv.InvoiceID, "status", inv.Status, "reported", ev.Status)
		return nil
	}

	if ev.TransactionID != "" {
		payment := &domain.Payment{
			InvoiceID:     inv.InvoiceID,
			TransactionID: ev.TransactionID,
			Amount:        ev.Amount,
			Currency:      ev.Currency,
			Status:        ev.Status,
			PaymentMethod: ev.PaymentMethod,
		}
		target, _ := gateway.MapStatus(ev.Status)
		if target == domain.InvoiceStatusPaid {
			now := s.now().UTC()
			payment.ConfirmedAt = &now
		}
		if _, err := s.payments.Upsert(ctx, payment); err != nil {
			return fmt.Errorf("record payment for %s: %w", inv.InvoiceID, err)
		}
	}

	target, recognized := gateway.MapStatus(ev.Status)
	if !recognized {
		slog.Warn("unrecognized gateway status, invoice left pending",
			"invoice_id", inv.InvoiceID, "status", ev.Status)
		return nil
	}
	if target == domain.InvoiceStatusPending {
		return nil
	}

	return s.transition(ctx, inv, target)
}

// transition applies the conditional pending→target update and fires the
// matching notification only when this caller won the race. A lost race
// means another delivery already applied the same outcome, so it is
// absorbed silently.
func (s *InvoiceService) transition(ctx context.Context, inv *domain.Invoice, target domain.InvoiceStatus) error {
	var paidAt *time.Time
	if target == domain.InvoiceStatusPaid {
		now := s.now().UTC()
		paidAt = &now
	}

	won, err := s.invoices.TransitionStatus(ctx, inv.InvoiceID, domain.InvoiceStatusPending, target, paidAt)
	if err != nil {
		return fmt.Errorf("transition %s to %s: %w", inv.InvoiceID, target, err)
	}
	if !won {
		slog.Info("status transition already applied elsewhere",
			"invoice_id", inv.InvoiceID, "target", target)
		return nil
	}

	inv.Status = target
	inv.PaidAt = paidAt

	slog.Info("invoice status changed", "invoice_id", inv.InvoiceID, "status", target)

	switch target {
	case domain.InvoiceStatusPaid:
		s.notifier.PaymentReceived(ctx, inv)
	case domain.InvoiceStatusExpired:
		// An invoice without a payment link was never delivered to the
		// user, so there is nothing to announce.
		if inv.PaymentURL != "" {
			s.notifier.InvoiceExpired(ctx, inv)
		}
	case domain.InvoiceStatusCancelled:
		s.notifier.InvoiceCancelled(ctx, inv)
	}
	return nil
}

// CheckInvoice polls the gateway for the current status of an invoice
// and feeds the result through the same transition path as a webhook.
// Used by the inline "check payment" button.
func (s *InvoiceService) CheckInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.invoices.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status.IsTerminal() {
		return inv, nil
	}

	status, err := s.gateway.PaymentInfo(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	target, recognized := gateway.MapStatus(status)
	if recognized && target != domain.InvoiceStatusPending {
		if err := s.transition(ctx, inv, target); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// CancelInvoice withdraws a pending invoice on behalf of an admin.
func (s *InvoiceService) CancelInvoice(ctx context.Context, invoiceID string, adminTelegramID int64) error {
	inv, err := s.invoices.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status.IsTerminal() {
		return domain.ErrInvoiceTerminal
	}

	slog.Info("invoice cancelled by admin", "invoice_id", invoiceID, "admin_id", adminTelegramID)
	return s.transition(ctx, inv, domain.InvoiceStatusCancelled)
}

// ExpireStale sweeps pending invoices older than the configured lifetime
// into the expired state, notifying each owner once. Returns how many
// invoices this run expired.
func (s *InvoiceService) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.lifetime)
	stale, err := s.invoices.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, inv := range stale {
		if err := s.transition(ctx, inv, domain.InvoiceStatusExpired); err != nil {
			slog.Error("expire invoice", "invoice_id", inv.InvoiceID, "error", err)
			continue
		}
		if inv.Status == domain.InvoiceStatusExpired {
			expired++
		}
	}
	if expired > 0 {
		slog.Info("stale invoices expired", "count", expired)
	}
	return expired, nil
}

// Stats aggregates counters for the admin /stats command.
type Stats struct {
	Users     int64
	ByStatus  map[domain.InvoiceStatus]int64
	TotalPaid decimal.Decimal
}

func (s *InvoiceService) Stats(ctx context.Context) (*Stats, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.invoices.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	totalPaid, err := s.invoices.SumPaidAmount(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Users: users, ByStatus: byStatus, TotalPaid: totalPaid}, nil
}

// ListPending returns the most recent pending invoices for the admin
// overview command.
func (s *InvoiceService) ListPending(ctx context.Context, limit int) ([]*domain.Invoice, error) {
	return s.invoices.ListByStatus(ctx, domain.InvoiceStatusPending, limit)
}

// ResolveUser turns a validated admin-entered reference into a stored user.
func (s *InvoiceService) ResolveUser(ctx context.Context, telegramID int64, username string) (*domain.User, error) {
	if telegramID != 0 {
		return s.users.GetByTelegramID(ctx, telegramID)
	}
	return s.users.GetByUsername(ctx, username)
}

const invoiceIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateInvoiceID builds a time-derived identifier INV-YYMMDD-XXXX and
// collision-checks it against storage. Identifiers are never reused.
func (s *InvoiceService) generateInvoiceID(ctx context.Context) (string, error) {
	datePart := s.now().Format("060102")
	for attempt := 0; attempt < 5; attempt++ {
		suffix := make([]byte, 4)
		for i := range suffix {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(invoiceIDAlphabet))))
			if err != nil {
				return "", fmt.Errorf("generate invoice id: %w", err)
			}
			suffix[i] = invoiceIDAlphabet[n.Int64()]
		}
		id := fmt.Sprintf("INV-%s-%s", datePart, suffix)

		exists, err := s.invoices.ExistsInvoiceID(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", errors.New("generate invoice id: too many collisions")
}
