package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/m-orlov/invoicebot/internal/dialog"
	"github.com/m-orlov/invoicebot/internal/domain"
	tg "github.com/m-orlov/invoicebot/internal/telegram"
)

// handleInvoice starts the invoice-creation dialog, or short-circuits to
// the confirmation step when the admin passed all three arguments.
func (h *Handler) handleInvoice(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	// Prefix matching also catches /invoices; hand that over.
	if strings.HasPrefix(update.Message.Text, "/invoices") {
		h.handlePendingInvoices(ctx, b, update)
		return
	}
	adminID := update.Message.From.ID
	if !h.isAdmin(adminID) {
		return
	}

	tail := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/invoice"))
	var reply dialog.Reply
	if userArg, amountArg, descriptionArg, ok := dialog.SplitArgs(tail); ok {
		reply = h.dialog.StartPrefilled(ctx, adminID, userArg, amountArg, descriptionArg)
	} else {
		reply = h.dialog.Start(adminID)
	}

	h.sendReply(ctx, update.Message.Chat.ID, reply)
}

func (h *Handler) handleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	adminID := update.Message.From.ID
	if !h.isAdmin(adminID) {
		return
	}
	reply := h.dialog.Cancel(adminID)
	h.sendReply(ctx, update.Message.Chat.ID, reply)
}

func (h *Handler) handleInvoiceConfirm(ctx context.Context, b *bot.Bot, update *models.Update) {
	tg.AnswerCallback(ctx, b, update)
	if update.CallbackQuery == nil {
		return
	}
	adminID := update.CallbackQuery.From.ID
	if !h.isAdmin(adminID) {
		return
	}

	reply := h.dialog.Confirm(ctx, adminID)
	h.sendReply(ctx, tg.CallbackChatID(update), reply)
}

func (h *Handler) handleInvoiceCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	tg.AnswerCallback(ctx, b, update)
	if update.CallbackQuery == nil {
		return
	}
	adminID := update.CallbackQuery.From.ID
	if !h.isAdmin(adminID) {
		return
	}

	reply := h.dialog.Cancel(adminID)
	h.sendReply(ctx, tg.CallbackChatID(update), reply)
}

// handleCheckPayment polls the gateway for an invoice the user tapped
// "check payment" on.
func (h *Handler) handleCheckPayment(ctx context.Context, b *bot.Bot, update *models.Update) {
	tg.AnswerCallback(ctx, b, update)
	if update.CallbackQuery == nil {
		return
	}

	invoiceID := strings.TrimPrefix(update.CallbackQuery.Data, "check_")
	chatID := tg.CallbackChatID(update)

	inv, err := h.invoices.CheckInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			tg.SendMarkdown(ctx, b, chatID, "❌ Invoice not found.", nil)
			return
		}
		slog.Error("check payment", "invoice_id", invoiceID, "error", err)
		tg.SendMarkdown(ctx, b, chatID, "❌ Could not check the payment right now, try again later.", nil)
		return
	}

	switch inv.Status {
	case domain.InvoiceStatusPaid:
		// The transition already notified both sides; this is just the
		// tapping user's direct answer.
		tg.SendMarkdown(ctx, b, chatID, fmt.Sprintf("✅ Invoice *%s* is paid.", inv.InvoiceID), nil)
	case domain.InvoiceStatusPending:
		tg.SendMarkdown(ctx, b, chatID, "⏳ Payment not received yet. Try again in a minute.", nil)
	default:
		tg.SendMarkdown(ctx, b, chatID, fmt.Sprintf("Invoice *%s* is %s.", inv.InvoiceID, inv.Status), nil)
	}
}

// sendReply renders a dialog reply, attaching the confirm/cancel
// keyboard when the controller asks for it.
func (h *Handler) sendReply(ctx context.Context, chatID int64, reply dialog.Reply) {
	var markup models.ReplyMarkup
	if reply.ShowConfirm {
		markup = tg.InlineKeyboard(
			tg.ButtonRow(
				tg.InlineButton("✅ Confirm", "inv_confirm"),
				tg.InlineButton("❌ Cancel", "inv_cancel"),
			),
		)
	}
	if err := tg.SendMarkdown(ctx, h.bot, chatID, reply.Text, markup); err != nil {
		slog.Error("send dialog reply", "chat_id", chatID, "error", err)
	}
}
