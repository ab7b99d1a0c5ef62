// Package notify formats and delivers chat messages for invoice
// lifecycle events. Delivery failures are logged, never propagated: a
// missed notification must not fail the event that triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"

	"github.com/m-orlov/invoicebot/internal/config"
	"github.com/m-orlov/invoicebot/internal/domain"
	tg "github.com/m-orlov/invoicebot/internal/telegram"
)

type Notifier struct {
	bot *bot.Bot
	cfg *config.Config
}

func New(b *bot.Bot, cfg *config.Config) *Notifier {
	return &Notifier{bot: b, cfg: cfg}
}

// InvoiceIssued sends the payment request to the billed user and a
// confirmation to the admin who created it.
func (n *Notifier) InvoiceIssued(ctx context.Context, inv *domain.Invoice) {
	userText := fmt.Sprintf(
		"🧾 *Invoice %s*\n\n"+
			"Service: %s\n"+
			"Amount: *%s %s*\n\n"+
			"The payment link is valid for a limited time.",
		inv.InvoiceID, inv.ServiceDescription, inv.Amount.StringFixed(2), inv.Currency,
	)

	markup := tg.InlineKeyboard(
		tg.ButtonRow(tg.URLButton("💳 Pay", inv.PaymentURL)),
		tg.ButtonRow(tg.InlineButton("🔄 Check payment", "check_"+inv.InvoiceID)),
	)
	if err := tg.SendMarkdown(ctx, n.bot, inv.UserTelegramID, userText, markup); err != nil {
		slog.Error("notify user about invoice", "error", err, "invoice_id", inv.InvoiceID)
	}

	adminText := fmt.Sprintf(
		"✅ Invoice *%s* for *%s %s* sent to user %d.",
		inv.InvoiceID, inv.Amount.StringFixed(2), inv.Currency, inv.UserTelegramID,
	)
	if err := tg.SendMarkdown(ctx, n.bot, inv.AdminTelegramID, adminText, nil); err != nil {
		slog.Error("notify admin about invoice", "error", err, "invoice_id", inv.InvoiceID)
	}
}

// PaymentReceived announces a confirmed payment to the payer and all
// configured admins. Called exactly once per pending→paid transition.
func (n *Notifier) PaymentReceived(ctx context.Context, inv *domain.Invoice) {
	userText := fmt.Sprintf(
		"✅ *Payment received!*\n\n"+
			"Invoice %s for *%s %s* is paid.\n"+
			"Thank you!",
		inv.InvoiceID, inv.Amount.StringFixed(2), inv.Currency,
	)
	if err := tg.SendMarkdown(ctx, n.bot, inv.UserTelegramID, userText, nil); err != nil {
		slog.Error("notify user about payment", "error", err, "invoice_id", inv.InvoiceID)
	}

	adminText := fmt.Sprintf(
		"💰 Invoice *%s* paid: *%s %s* from user %d.",
		inv.InvoiceID, inv.Amount.StringFixed(2), inv.Currency, inv.UserTelegramID,
	)
	for _, adminID := range n.cfg.AdminIDs {
		if err := tg.SendMarkdown(ctx, n.bot, adminID, adminText, nil); err != nil {
			slog.Error("notify admin about payment", "error", err, "invoice_id", inv.InvoiceID, "admin_id", adminID)
		}
	}
}

// InvoiceExpired tells the billed user their invoice lapsed unpaid.
func (n *Notifier) InvoiceExpired(ctx context.Context, inv *domain.Invoice) {
	text := fmt.Sprintf(
		"⌛ Invoice *%s* for *%s %s* has expired.\n"+
			"Ask the administrator for a new one if you still need it.",
		inv.InvoiceID, inv.Amount.StringFixed(2), inv.Currency,
	)
	if err := tg.SendMarkdown(ctx, n.bot, inv.UserTelegramID, text, nil); err != nil {
		slog.Error("notify user about expiry", "error", err, "invoice_id", inv.InvoiceID)
	}
}

// InvoiceCancelled tells the billed user an admin withdrew the invoice.
func (n *Notifier) InvoiceCancelled(ctx context.Context, inv *domain.Invoice) {
	text := fmt.Sprintf("🚫 Invoice *%s* has been cancelled.", inv.InvoiceID)
	if err := tg.SendMarkdown(ctx, n.bot, inv.UserTelegramID, text, nil); err != nil {
		slog.Error("notify user about cancellation", "error", err, "invoice_id", inv.InvoiceID)
	}
}
