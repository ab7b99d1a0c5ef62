package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// limiter counts messages per user over a one-minute window. Counters
// are shared state across in-flight updates, so they live behind the
// same mutex that prunes them.
type limiter struct {
	mu      sync.Mutex
	perUser map[int64][]time.Time
	limit   int
	window  time.Duration
}

func newLimiter(limit int) *limiter {
	return &limiter{
		perUser: make(map[int64][]time.Time),
		limit:   limit,
		window:  time.Minute,
	}
}

func (l *limiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	recent := l.perUser[userID][:0]
	for _, t := range l.perUser[userID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.perUser[userID] = recent
		return false
	}
	l.perUser[userID] = append(recent, now)
	return true
}

// RateLimit returns middleware that drops messages from users exceeding
// the per-minute limit. Callbacks are not limited.
func RateLimit(perMinute int) bot.Middleware {
	l := newLimiter(perMinute)
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				next(ctx, b, update)
				return
			}

			userID := update.Message.From.ID
			if !l.allow(userID, time.Now()) {
				slog.Debug("rate limited", "user_id", userID)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: update.Message.Chat.ID,
					Text:   "⏳ Too many requests. Please wait a moment.",
				})
				return
			}

			next(ctx, b, update)
		}
	}
}
