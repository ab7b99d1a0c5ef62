package handler

import (
	"github.com/go-telegram/bot"

	"github.com/m-orlov/invoicebot/internal/config"
	"github.com/m-orlov/invoicebot/internal/dialog"
	"github.com/m-orlov/invoicebot/internal/repository"
	"github.com/m-orlov/invoicebot/internal/service"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot      *bot.Bot
	cfg      *config.Config
	invoices *service.InvoiceService
	dialog   *dialog.Controller
	users    *repository.UserRepository
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot      *bot.Bot
	Cfg      *config.Config
	Invoices *service.InvoiceService
	Dialog   *dialog.Controller
	Users    *repository.UserRepository
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:      deps.Bot,
		cfg:      deps.Cfg,
		invoices: deps.Invoices,
		dialog:   deps.Dialog,
		users:    deps.Users,
	}
}

func (h *Handler) isAdmin(telegramID int64) bool {
	return h.cfg.IsAdmin(telegramID)
}
