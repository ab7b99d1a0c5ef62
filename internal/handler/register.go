package handler

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Register registers all command and callback handlers on the bot instance.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleHelp)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/invoice", bot.MatchTypePrefix, h.handleInvoice)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypeExact, h.handleCancel)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancelinvoice", bot.MatchTypePrefix, h.handleCancelInvoice)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/invoices", bot.MatchTypeExact, h.handlePendingInvoices)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stats", bot.MatchTypeExact, h.handleStats)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/block", bot.MatchTypePrefix, h.handleBlock)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/unblock", bot.MatchTypePrefix, h.handleUnblock)

	// Dialog callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "inv_confirm", bot.MatchTypeExact, h.handleInvoiceConfirm)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "inv_cancel", bot.MatchTypeExact, h.handleInvoiceCancel)

	// Payment status callback
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "check_", bot.MatchTypePrefix, h.handleCheckPayment)
}

// HandleText routes non-command text from an admin with a dialog in
// progress into the dialog controller. Wired as the bot's default text
// handler.
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	adminID := update.Message.From.ID
	if !h.isAdmin(adminID) {
		return
	}

	reply, inDialog := h.dialog.HandleText(ctx, adminID, update.Message.Text)
	if !inDialog {
		return
	}
	h.sendReply(ctx, update.Message.Chat.ID, reply)
}
