package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	tg "github.com/m-orlov/invoicebot/internal/telegram"
)

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	text := "👋 *Welcome!*\n\n" +
		"This bot delivers invoices for services and lets you pay them in " +
		"cryptocurrency. You will receive a message with a payment link " +
		"when an invoice is issued to you.\n\n" +
		"Use /help to see what the bot can do."
	if h.isAdmin(update.Message.From.ID) {
		text += "\n\nYou are an administrator: /invoice starts invoice creation."
	}

	tg.SendMarkdown(ctx, b, update.Message.Chat.ID, text, nil)
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	text := "*Commands*\n\n" +
		"/start — about this bot\n" +
		"/help — this message\n" +
		"/cancel — abort the current operation"
	if h.isAdmin(update.Message.From.ID) {
		text += "\n\n*Admin commands*\n\n" +
			"/invoice — create an invoice step by step\n" +
			"/invoice <user> <amount> <description> — one-shot form\n" +
			"/invoices — list pending invoices\n" +
			"/cancelinvoice <INV-...> — withdraw a pending invoice\n" +
			"/stats — usage statistics\n" +
			"/block <user>, /unblock <user> — manage access"
	}

	tg.SendMarkdown(ctx, b, update.Message.Chat.ID, text, nil)
}
