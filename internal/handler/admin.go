package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/m-orlov/invoicebot/internal/domain"
	tg "github.com/m-orlov/invoicebot/internal/telegram"
	"github.com/m-orlov/invoicebot/internal/validate"
)

const pendingListLimit = 20

func (h *Handler) handleStats(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || !h.isAdmin(update.Message.From.ID) {
		return
	}
	chatID := update.Message.Chat.ID

	stats, err := h.invoices.Stats(ctx)
	if err != nil {
		slog.Error("collect stats", "error", err)
		tg.SendMarkdown(ctx, b, chatID, "❌ Failed to collect statistics.", nil)
		return
	}

	text := fmt.Sprintf(
		"📊 *Statistics*\n\n"+
			"👥 Users: %d\n\n"+
			"🧾 Invoices:\n"+
			"  pending: %d\n"+
			"  paid: %d\n"+
			"  expired: %d\n"+
			"  cancelled: %d\n\n"+
			"💰 Total paid: %s",
		stats.Users,
		stats.ByStatus[domain.InvoiceStatusPending],
		stats.ByStatus[domain.InvoiceStatusPaid],
		stats.ByStatus[domain.InvoiceStatusExpired],
		stats.ByStatus[domain.InvoiceStatusCancelled],
		stats.TotalPaid.StringFixed(2),
	)
	tg.SendMarkdown(ctx, b, chatID, text, nil)
}

func (h *Handler) handlePendingInvoices(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || !h.isAdmin(update.Message.From.ID) {
		return
	}
	chatID := update.Message.Chat.ID

	pending, err := h.invoices.ListPending(ctx, pendingListLimit)
	if err != nil {
		slog.Error("list pending invoices", "error", err)
		tg.SendMarkdown(ctx, b, chatID, "❌ Failed to list invoices.", nil)
		return
	}
	if len(pending) == 0 {
		tg.SendMarkdown(ctx, b, chatID, "No pending invoices.", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("🧾 *Pending invoices*\n\n")
	for _, inv := range pending {
		fmt.Fprintf(&sb, "%s — %s %s → user %d (%s)\n",
			inv.InvoiceID, inv.Amount.StringFixed(2), inv.Currency,
			inv.UserTelegramID, inv.CreatedAt.Format("02.01 15:04"),
		)
	}
	tg.SendMarkdown(ctx, b, chatID, sb.String(), nil)
}

func (h *Handler) handleCancelInvoice(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || !h.isAdmin(update.Message.From.ID) {
		return
	}
	chatID := update.Message.Chat.ID
	adminID := update.Message.From.ID

	arg := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/cancelinvoice"))
	if !validate.InvoiceID(arg) {
		tg.SendMarkdown(ctx, b, chatID, "Usage: /cancelinvoice INV-YYMMDD-XXXX", nil)
		return
	}

	err := h.invoices.CancelInvoice(ctx, arg, adminID)
	switch {
	case err == nil:
		tg.SendMarkdown(ctx, b, chatID, fmt.Sprintf("🚫 Invoice *%s* cancelled.", arg), nil)
	case errors.Is(err, domain.ErrInvoiceNotFound):
		tg.SendMarkdown(ctx, b, chatID, "❌ Invoice not found.", nil)
	case errors.Is(err, domain.ErrInvoiceTerminal):
		tg.SendMarkdown(ctx, b, chatID, "❌ Invoice is already settled and cannot be cancelled.", nil)
	default:
		slog.Error("cancel invoice", "invoice_id", arg, "error", err)
		tg.SendMarkdown(ctx, b, chatID, "❌ Failed to cancel the invoice.", nil)
	}
}

func (h *Handler) handleBlock(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.setBlocked(ctx, b, update, "/block", true)
}

func (h *Handler) handleUnblock(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.setBlocked(ctx, b, update, "/unblock", false)
}

func (h *Handler) setBlocked(ctx context.Context, b *bot.Bot, update *models.Update, command string, blocked bool) {
	if update.Message == nil || !h.isAdmin(update.Message.From.ID) {
		return
	}
	chatID := update.Message.Chat.ID
	adminID := update.Message.From.ID

	arg := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, command))
	id, username, err := validate.UserRef(arg)
	if err != nil {
		tg.SendMarkdown(ctx, b, chatID, fmt.Sprintf("Usage: %s <telegram id or @username>", command), nil)
		return
	}

	user, err := h.invoices.ResolveUser(ctx, id, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			tg.SendMarkdown(ctx, b, chatID, "❌ User not found.", nil)
			return
		}
		slog.Error("resolve user for block", "error", err)
		tg.SendMarkdown(ctx, b, chatID, "❌ Could not look up the user.", nil)
		return
	}

	if err := h.users.SetBlocked(ctx, user.TelegramID, blocked, adminID); err != nil {
		slog.Error("set blocked", "telegram_id", user.TelegramID, "error", err)
		tg.SendMarkdown(ctx, b, chatID, "❌ Failed to update the user.", nil)
		return
	}

	verb := "blocked"
	if !blocked {
		verb = "unblocked"
	}
	slog.Info("user access changed", "telegram_id", user.TelegramID, "blocked", blocked, "admin_id", adminID)
	tg.SendMarkdown(ctx, b, chatID, fmt.Sprintf("✅ User %s %s.", user.DisplayName(), verb), nil)
}
