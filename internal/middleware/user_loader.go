package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/m-orlov/invoicebot/internal/domain"
)

type ctxKey string

const userKey ctxKey = "user"

// GetUser extracts the stored user from context.
func GetUser(ctx context.Context) *domain.User {
	u, ok := ctx.Value(userKey).(*domain.User)
	if !ok {
		return nil
	}
	return u
}

// UserFinder creates-or-loads a user record on first contact.
type UserFinder interface {
	FindOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string, isAdmin bool) (*domain.User, error)
}

// UserLoader returns middleware that upserts the sender into storage and
// injects the record into context. Blocked users are dropped silently,
// except that commands still get a short notice so the block is visible.
func UserLoader(users UserFinder, isAdmin func(int64) bool) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			from := senderOf(update)
			if from == nil {
				next(ctx, b, update)
				return
			}

			user, err := users.FindOrCreate(ctx, from.ID, from.Username, from.FirstName, from.LastName, isAdmin(from.ID))
			if err != nil {
				slog.Error("load user", "error", err, "telegram_id", from.ID)
				next(ctx, b, update)
				return
			}

			if user.IsBlocked {
				if update.Message != nil {
					b.SendMessage(ctx, &bot.SendMessageParams{
						ChatID: update.Message.Chat.ID,
						Text:   "🚫 You are blocked from using this bot.",
					})
				}
				return
			}

			next(context.WithValue(ctx, userKey, user), b, update)
		}
	}
}

func senderOf(update *models.Update) *models.User {
	switch {
	case update.Message != nil:
		return update.Message.From
	case update.CallbackQuery != nil:
		return &update.CallbackQuery.From
	}
	return nil
}
