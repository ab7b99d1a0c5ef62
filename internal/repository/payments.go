package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m-orlov/invoicebot/internal/domain"
)

type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Upsert records a gateway-reported transaction. The transaction id is
// the idempotency key: redelivery of the same transaction updates the
// stored status instead of inserting a duplicate. The returned bool
// reports whether a new row was created.
func (r *PaymentRepository) Upsert(ctx context.Context, p *domain.Payment) (bool, error) {
	var created bool
	err := r.db.QueryRow(ctx, `
		INSERT INTO payments (invoice_id, transaction_id, amount, currency,
			status, payment_method, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO UPDATE
		SET status = EXCLUDED.status,
		    confirmed_at = COALESCE(EXCLUDED.confirmed_at, payments.confirmed_at)
		RETURNING (xmax = 0)`,
		p.InvoiceID, p.TransactionID, p.Amount, p.Currency,
		p.Status, p.PaymentMethod, p.ConfirmedAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert payment: %w", err)
	}
	return created, nil
}
