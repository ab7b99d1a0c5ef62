package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/m-orlov/invoicebot/internal/config"
)

// SendMarkdown sends a Markdown message, falling back to plain text when
// Telegram rejects the markup. Long texts are truncated to the API limit.
func SendMarkdown(ctx context.Context, b *bot.Bot, chatID int64, text string, markup models.ReplyMarkup) error {
	if len([]rune(text)) > config.MaxTelegramMessageLen {
		text = string([]rune(text)[:config.MaxTelegramMessageLen-3]) + "..."
	}

	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: markup,
	}

	_, err := b.SendMessage(ctx, params)
	if err != nil {
		slog.Warn("markdown send failed, falling back to plain text", "error", err, "chat_id", chatID)
		params.ParseMode = ""
		if _, err = b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// AnswerCallback acknowledges a callback query so the client stops
// showing the loading state.
func AnswerCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: update.CallbackQuery.ID,
	})
}

// CallbackChatID extracts the chat id a callback query originated from.
func CallbackChatID(update *models.Update) int64 {
	if update.CallbackQuery == nil {
		return 0
	}
	if msg := update.CallbackQuery.Message.Message; msg != nil {
		return msg.Chat.ID
	}
	return update.CallbackQuery.From.ID
}
