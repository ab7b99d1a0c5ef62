// Package webhook exposes the HTTP surface for asynchronous gateway
// callbacks plus a healthcheck endpoint.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/m-orlov/invoicebot/internal/config"
	"github.com/m-orlov/invoicebot/internal/service"
)

// Verifier checks webhook authenticity over the raw request body.
type Verifier interface {
	VerifyWebhook(rawBody []byte, providedSign string) bool
}

// StatusApplier feeds verified events into the invoice lifecycle.
type StatusApplier interface {
	ApplyWebhookStatus(ctx context.Context, ev service.WebhookEvent) error
}

type Server struct {
	http *http.Server
}

// payload mirrors the gateway's callback body. Amounts arrive as strings.
type payload struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	PaymentAmount string `json:"payment_amount"`
	Currency      string `json:"currency"`
	TxID          string `json:"txid"`
	UUID          string `json:"uuid"`
	Network       string `json:"network"`
	PayerCurrency string `json:"payer_currency"`
}

func New(cfg *config.Config, verifier Verifier, applier StatusApplier, pool *pgxpool.Pool) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post(cfg.WebhookPath, handleCallback(verifier, applier))
	r.Get("/healthcheck", handleHealth(pool))

	return &Server{
		http: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: r,
		},
	}
}

// handleCallback verifies and processes one gateway callback. The raw
// body is captured before any JSON parsing so the signature covers the
// exact received bytes. Once a payload is authentic and parseable the
// response is 200 regardless of processing outcome; internal failures
// are logged and retried through the expiry/check paths rather than by
// making the gateway redeliver.
func handleCallback(verifier Verifier, applier StatusApplier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auditID := uuid.New().String()

		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			slog.Error("webhook body read failed", "audit_id", auditID, "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		sign := r.Header.Get("sign")
		if !verifier.VerifyWebhook(raw, sign) {
			// Possible forgery attempt: log for audit, reveal nothing.
			slog.Warn("webhook signature verification failed",
				"audit_id", auditID,
				"remote_addr", r.RemoteAddr,
				"body_len", len(raw),
			)
			w.WriteHeader(http.StatusForbidden)
			return
		}

		var p payload
		if err := json.Unmarshal(raw, &p); err != nil {
			slog.Warn("webhook body unparseable", "audit_id", auditID, "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		ev := service.WebhookEvent{
			OrderID:       p.OrderID,
			Status:        p.Status,
			TransactionID: transactionID(p),
			Currency:      p.Currency,
			PaymentMethod: p.Network,
		}
		if amount, err := decimal.NewFromString(p.PaymentAmount); err == nil {
			ev.Amount = amount
		} else if p.PaymentAmount != "" {
			// The payment row will carry a zero amount; flag it so the
			// discrepancy shows up during reconciliation.
			slog.Warn("webhook payment_amount unparseable",
				"audit_id", auditID,
				"order_id", p.OrderID,
				"payment_amount", p.PaymentAmount,
			)
		}

		if err := applier.ApplyWebhookStatus(r.Context(), ev); err != nil {
			slog.Error("webhook processing failed",
				"audit_id", auditID,
				"order_id", p.OrderID,
				"status", p.Status,
				"error", err,
			)
		} else {
			slog.Info("webhook processed",
				"audit_id", auditID,
				"order_id", p.OrderID,
				"status", p.Status,
			)
		}

		w.WriteHeader(http.StatusOK)
	}
}

// transactionID picks the gateway's transaction identifier, preferring
// the on-chain txid over the gateway's own uuid.
func transactionID(p payload) string {
	if p.TxID != "" {
		return p.TxID
	}
	return p.UUID
}

func handleHealth(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"fail","db":%q}`, err.Error())
			return
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
