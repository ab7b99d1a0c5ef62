package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/m-orlov/invoicebot/internal/domain"
)

type InvoiceRepository struct {
	db *pgxpool.Pool
}

func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, invoice_id, user_telegram_id, amount, currency,
	service_description, status, payment_url, external_id,
	admin_telegram_id, created_at, paid_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	var paymentURL, externalID *string
	err := row.Scan(
		&inv.ID, &inv.InvoiceID, &inv.UserTelegramID, &inv.Amount,
		&inv.Currency, &inv.ServiceDescription, &inv.Status,
		&paymentURL, &externalID, &inv.AdminTelegramID,
		&inv.CreatedAt, &inv.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, err
	}
	if paymentURL != nil {
		inv.PaymentURL = *paymentURL
	}
	if externalID != nil {
		inv.ExternalID = *externalID
	}
	return &inv, nil
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO invoices (invoice_id, user_telegram_id, amount, currency,
			service_description, status, admin_telegram_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+invoiceColumns,
		inv.InvoiceID, inv.UserTelegramID, inv.Amount, inv.Currency,
		inv.ServiceDescription, domain.InvoiceStatusPending, inv.AdminTelegramID,
	)
	created, err := scanInvoice(row)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return created, nil
}

func (r *InvoiceRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id = $1`, invoiceID)
	return scanInvoice(row)
}

// SetPaymentLink stores the gateway-assigned URL and external id after a
// successful payment request.
func (r *InvoiceRepository) SetPaymentLink(ctx context.Context, invoiceID, paymentURL, externalID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE invoices SET payment_url = $2, external_id = $3
		WHERE invoice_id = $1`,
		invoiceID, paymentURL, externalID,
	)
	if err != nil {
		return fmt.Errorf("set payment link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// TransitionStatus performs the conditional status update. It succeeds
// only when the stored status still equals from, which serializes
// concurrent transitions on the same invoice at the storage layer. The
// returned bool reports whether this caller won the transition.
func (r *InvoiceRepository) TransitionStatus(ctx context.Context, invoiceID string, from, to domain.InvoiceStatus, paidAt *time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE invoices SET status = $3, paid_at = COALESCE($4, paid_at)
		WHERE invoice_id = $1 AND status = $2`,
		invoiceID, from, to, paidAt,
	)
	if err != nil {
		return false, fmt.Errorf("transition invoice status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *InvoiceRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Invoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`,
		domain.InvoiceStatusPending, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *InvoiceRepository) ListByStatus(ctx context.Context, status domain.InvoiceStatus, limit int) ([]*domain.Invoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list invoices by status: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// ExistsInvoiceID is used for collision checks during id generation.
func (r *InvoiceRepository) ExistsInvoiceID(ctx context.Context, invoiceID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE invoice_id = $1)`, invoiceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check invoice id: %w", err)
	}
	return exists, nil
}

func (r *InvoiceRepository) CountByStatus(ctx context.Context) (map[domain.InvoiceStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM invoices GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count invoices: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.InvoiceStatus]int64)
	for rows.Next() {
		var status domain.InvoiceStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan invoice count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *InvoiceRepository) SumPaidAmount(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM invoices WHERE status = $1`,
		domain.InvoiceStatusPaid,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum paid amount: %w", err)
	}
	return total, nil
}
