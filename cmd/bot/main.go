package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	invoicebotroot "github.com/m-orlov/invoicebot"
	"github.com/m-orlov/invoicebot/internal/config"
	"github.com/m-orlov/invoicebot/internal/dialog"
	"github.com/m-orlov/invoicebot/internal/gateway"
	"github.com/m-orlov/invoicebot/internal/handler"
	"github.com/m-orlov/invoicebot/internal/middleware"
	"github.com/m-orlov/invoicebot/internal/notify"
	"github.com/m-orlov/invoicebot/internal/repository"
	"github.com/m-orlov/invoicebot/internal/service"
	"github.com/m-orlov/invoicebot/internal/webhook"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration (.env is optional, real env wins)
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(invoicebotroot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	invoiceRepo := repository.NewInvoiceRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)

	// Create bot. The default handler routes non-command text into the
	// admin dialog; h is assigned once handlers are wired below.
	var h *handler.Handler
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.RateLimit(cfg.RateLimitPerMinute),
			middleware.UserLoader(userRepo, cfg.IsAdmin),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h != nil {
				h.HandleText(ctx, b, update)
			}
		}),
	}
	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Services
	gatewayClient := gateway.NewClient(cfg)
	notifier := notify.New(b, cfg)
	invoiceService := service.NewInvoiceService(invoiceRepo, paymentRepo, userRepo, gatewayClient, notifier, cfg)

	// Dialog controller with TTL-evicted sessions
	sessions := dialog.NewStore(config.SessionTTL)
	dialogController := dialog.NewController(sessions, invoiceService)

	// Handlers
	h = handler.New(handler.Deps{
		Bot:      b,
		Cfg:      cfg,
		Invoices: invoiceService,
		Dialog:   dialogController,
		Users:    userRepo,
	})
	h.Register()

	// Periodic jobs: invoice expiry sweep and session eviction
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 1m", func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := invoiceService.ExpireStale(jobCtx); err != nil {
			slog.Error("expire stale invoices", "error", err)
		}
	}); err != nil {
		slog.Error("failed to schedule expiry sweep", "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.AddFunc("@every 5m", func() {
		if removed := sessions.Sweep(); removed > 0 {
			slog.Info("abandoned dialog sessions evicted", "count", removed)
		}
	}); err != nil {
		slog.Error("failed to schedule session sweep", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Webhook + healthcheck HTTP server
	srv := webhook.New(cfg, gatewayClient, invoiceService, pool)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	// Start bot (blocks until the context is cancelled)
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown", "error", err)
	}
	slog.Info("bot stopped gracefully")
}
