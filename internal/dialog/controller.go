// Package dialog drives the multi-step admin conversation for creating
// an invoice: target user, amount, service description, confirmation.
// The controller is transport-agnostic; handlers translate its replies
// into chat messages.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m-orlov/invoicebot/internal/domain"
	"github.com/m-orlov/invoicebot/internal/service"
	"github.com/m-orlov/invoicebot/internal/validate"
)

// Reply is what the controller wants said back to the admin.
type Reply struct {
	Text        string
	ShowConfirm bool
	Done        bool
	Invoice     *domain.Invoice
}

// InvoiceCreator is the slice of the invoice service the dialog needs.
type InvoiceCreator interface {
	ResolveUser(ctx context.Context, telegramID int64, username string) (*domain.User, error)
	CreateInvoice(ctx context.Context, p service.CreateParams) (*domain.Invoice, error)
}

type Controller struct {
	store   *Store
	service InvoiceCreator
}

func NewController(store *Store, svc InvoiceCreator) *Controller {
	return &Controller{store: store, service: svc}
}

const (
	promptUser        = "📝 *Invoice creation*\n\nStep 1/3: enter the client's Telegram ID or @username:"
	promptAmount      = "Step 2/3: enter the amount (e.g. 150 or 150.50):"
	promptDescription = "Step 3/3: enter the service description (10-200 characters):"
	cancelledText     = "❌ Invoice creation cancelled."
)

// Start opens a new dialog for the admin, replacing any session in
// progress.
func (c *Controller) Start(adminID int64) Reply {
	c.store.Begin(adminID)
	return Reply{Text: promptUser}
}

// StartPrefilled validates one-shot command arguments and, when all
// three pass, jumps straight to the confirmation step.
func (c *Controller) StartPrefilled(ctx context.Context, adminID int64, userArg, amountArg, descriptionArg string) Reply {
	sess := c.store.Begin(adminID)

	reply := c.applyUser(ctx, sess, userArg)
	if sess.State == StateAwaitingUser {
		return reply
	}
	reply = c.applyAmount(sess, amountArg)
	if sess.State == StateAwaitingAmount {
		return reply
	}
	return c.applyDescription(sess, descriptionArg)
}

// HandleText advances the dialog with one admin text input. A failed
// guard re-prompts and keeps the current state.
func (c *Controller) HandleText(ctx context.Context, adminID int64, text string) (Reply, bool) {
	sess := c.store.Get(adminID)
	if sess == nil {
		return Reply{}, false
	}
	defer c.store.Touch(adminID)

	switch sess.State {
	case StateAwaitingUser:
		return c.applyUser(ctx, sess, text), true
	case StateAwaitingAmount:
		return c.applyAmount(sess, text), true
	case StateAwaitingService:
		return c.applyDescription(sess, text), true
	case StateAwaitingConfirmation:
		// Only the explicit confirm/cancel actions advance; anything
		// else re-displays the same preview.
		return Reply{Text: c.preview(sess), ShowConfirm: true}, true
	}
	return Reply{}, false
}

func (c *Controller) applyUser(ctx context.Context, sess *Session, text string) Reply {
	id, username, err := validate.UserRef(text)
	if err != nil {
		return Reply{Text: "❌ " + err.Error() + "\n\n" + promptUser}
	}

	user, err := c.service.ResolveUser(ctx, id, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return Reply{Text: "❌ This user has never contacted the bot. They must /start it first.\n\n" + promptUser}
		}
		return Reply{Text: "❌ Could not look up the user, try again.\n\n" + promptUser}
	}

	sess.UserTelegramID = user.TelegramID
	sess.UserDisplay = user.DisplayName()
	sess.State = StateAwaitingAmount
	return Reply{Text: promptAmount}
}

func (c *Controller) applyAmount(sess *Session, text string) Reply {
	amount, err := validate.Amount(text)
	if err != nil {
		return Reply{Text: "❌ " + err.Error() + "\n\n" + promptAmount}
	}
	sess.Amount = amount
	sess.State = StateAwaitingService
	return Reply{Text: promptDescription}
}

func (c *Controller) applyDescription(sess *Session, text string) Reply {
	description, err := validate.Description(text)
	if err != nil {
		return Reply{Text: "❌ " + err.Error() + "\n\n" + promptDescription}
	}
	sess.Description = description
	sess.State = StateAwaitingConfirmation
	return Reply{Text: c.preview(sess), ShowConfirm: true}
}

func (c *Controller) preview(sess *Session) string {
	return fmt.Sprintf(
		"📋 *Invoice preview*\n\n"+
			"👤 Client: %s\n"+
			"💰 Amount: %s\n"+
			"📝 Service: %s\n\n"+
			"Create and send this invoice?",
		sess.UserDisplay, sess.Amount.StringFixed(2), sess.Description,
	)
}

// Confirm commits the previewed invoice. The session is cleared only
// after a successful creation; on failure the admin stays in the
// confirmation step and can retry without re-entering anything.
func (c *Controller) Confirm(ctx context.Context, adminID int64) Reply {
	sess := c.store.Get(adminID)
	if sess == nil || sess.State != StateAwaitingConfirmation {
		return Reply{Text: "Nothing to confirm. Use /invoice to start."}
	}

	inv, err := c.service.CreateInvoice(ctx, service.CreateParams{
		UserTelegramID:  sess.UserTelegramID,
		Amount:          sess.Amount,
		Description:     sess.Description,
		AdminTelegramID: adminID,
	})
	if err != nil {
		c.store.Touch(adminID)
		if errors.Is(err, domain.ErrGateway) {
			text := "⚠️ The payment gateway is unavailable"
			if inv != nil {
				text += fmt.Sprintf("; invoice %s is saved without a payment link", inv.InvoiceID)
			}
			return Reply{Text: text + ". Press confirm to retry.", ShowConfirm: true}
		}
		return Reply{Text: "❌ Failed to create the invoice. Press confirm to retry.", ShowConfirm: true}
	}

	c.store.Clear(adminID)
	return Reply{
		Text:    fmt.Sprintf("✅ Invoice *%s* created and sent to %s.", inv.InvoiceID, sess.UserDisplay),
		Done:    true,
		Invoice: inv,
	}
}

// Cancel aborts the dialog from any state without side effects.
func (c *Controller) Cancel(adminID int64) Reply {
	if c.store.Get(adminID) == nil {
		return Reply{Text: "Nothing to cancel."}
	}
	c.store.Clear(adminID)
	return Reply{Text: cancelledText, Done: true}
}

// HasSession reports whether the admin has a dialog in progress.
func (c *Controller) HasSession(adminID int64) bool {
	return c.store.Get(adminID) != nil
}

// SplitArgs splits a one-shot /invoice command tail into its three
// fields, keeping the description whole.
func SplitArgs(tail string) (userArg, amountArg, descriptionArg string, ok bool) {
	parts := strings.Fields(tail)
	if len(parts) < 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], strings.Join(parts[2:], " "), true
}
