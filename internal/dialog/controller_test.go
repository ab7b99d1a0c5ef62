package dialog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-orlov/invoicebot/internal/domain"
	"github.com/m-orlov/invoicebot/internal/service"
)

type stubCreator struct {
	users     map[int64]*domain.User
	byName    map[string]*domain.User
	created   []service.CreateParams
	createErr error
}

func newStubCreator() *stubCreator {
	user := &domain.User{TelegramID: 42, Username: "client42", FirstName: "Client"}
	return &stubCreator{
		users:  map[int64]*domain.User{42: user},
		byName: map[string]*domain.User{"client42": user},
	}
}

func (s *stubCreator) ResolveUser(ctx context.Context, telegramID int64, username string) (*domain.User, error) {
	if telegramID != 0 {
		if u, ok := s.users[telegramID]; ok {
			return u, nil
		}
		return nil, domain.ErrUserNotFound
	}
	if u, ok := s.byName[username]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubCreator) CreateInvoice(ctx context.Context, p service.CreateParams) (*domain.Invoice, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, p)
	return &domain.Invoice{
		InvoiceID:          "INV-260829-TEST",
		UserTelegramID:     p.UserTelegramID,
		Amount:             p.Amount,
		ServiceDescription: p.Description,
		Status:             domain.InvoiceStatusPending,
		PaymentURL:         "https://pay.example.com/x",
	}, nil
}

func newTestController() (*Controller, *stubCreator, *Store) {
	creator := newStubCreator()
	store := NewStore(15 * time.Minute)
	return NewController(store, creator), creator, store
}

const adminID = int64(1)

func TestDialogFullWalk(t *testing.T) {
	ctx := context.Background()
	c, creator, _ := newTestController()

	reply := c.Start(adminID)
	if !strings.Contains(reply.Text, "Step 1/3") {
		t.Fatalf("start prompt = %q", reply.Text)
	}

	reply, handled := c.HandleText(ctx, adminID, "42")
	if !handled || !strings.Contains(reply.Text, "Step 2/3") {
		t.Fatalf("after user step: handled=%v text=%q", handled, reply.Text)
	}

	reply, _ = c.HandleText(ctx, adminID, "150.00")
	if !strings.Contains(reply.Text, "Step 3/3") {
		t.Fatalf("after amount step: %q", reply.Text)
	}

	reply, _ = c.HandleText(ctx, adminID, "Ad placement 7 days")
	if !reply.ShowConfirm {
		t.Fatal("preview must request confirmation")
	}
	if !strings.Contains(reply.Text, "150.00") || !strings.Contains(reply.Text, "Ad placement 7 days") {
		t.Errorf("preview missing fields: %q", reply.Text)
	}

	reply = c.Confirm(ctx, adminID)
	if !reply.Done {
		t.Fatalf("confirm not done: %q", reply.Text)
	}
	if reply.Invoice == nil || reply.Invoice.InvoiceID != "INV-260829-TEST" {
		t.Errorf("invoice missing from reply")
	}
	if len(creator.created) != 1 {
		t.Fatalf("invoices created = %d", len(creator.created))
	}
	got := creator.created[0]
	if got.UserTelegramID != 42 || got.AdminTelegramID != adminID {
		t.Errorf("params = %+v", got)
	}
	if got.Amount.StringFixed(2) != "150.00" {
		t.Errorf("amount = %s", got.Amount)
	}
	if c.HasSession(adminID) {
		t.Error("session must be cleared after success")
	}
}

func TestDialogWalkByUsername(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController()

	c.Start(adminID)
	reply, _ := c.HandleText(ctx, adminID, "@client42")
	if !strings.Contains(reply.Text, "Step 2/3") {
		t.Fatalf("username not accepted: %q", reply.Text)
	}
}

func TestDialogGuardsReprompt(t *testing.T) {
	ctx := context.Background()
	c, _, store := newTestController()

	c.Start(adminID)

	// Unknown user keeps the dialog at step 1.
	reply, _ := c.HandleText(ctx, adminID, "999")
	if !strings.Contains(reply.Text, "Step 1/3") {
		t.Fatalf("unknown user reply = %q", reply.Text)
	}
	if store.Get(adminID).State != StateAwaitingUser {
		t.Fatal("state advanced past a failed user lookup")
	}

	c.HandleText(ctx, adminID, "42")

	// Malformed amount keeps step 2.
	reply, _ = c.HandleText(ctx, adminID, "abc")
	if !strings.Contains(reply.Text, "Step 2/3") {
		t.Fatalf("bad amount reply = %q", reply.Text)
	}
	if store.Get(adminID).State != StateAwaitingAmount {
		t.Fatal("state advanced past a bad amount")
	}

	c.HandleText(ctx, adminID, "150")

	// Too-short description keeps step 3.
	reply, _ = c.HandleText(ctx, adminID, "short")
	if !strings.Contains(reply.Text, "Step 3/3") {
		t.Fatalf("short description reply = %q", reply.Text)
	}
	if store.Get(adminID).State != StateAwaitingService {
		t.Fatal("state advanced past a short description")
	}
}

func TestDialogConfirmationRedisplaysPreview(t *testing.T) {
	ctx := context.Background()
	c, creator, _ := newTestController()

	c.Start(adminID)
	c.HandleText(ctx, adminID, "42")
	c.HandleText(ctx, adminID, "150")
	c.HandleText(ctx, adminID, "Ad placement 7 days")

	// Free text at the confirmation step re-shows the preview and does
	// not commit.
	reply, handled := c.HandleText(ctx, adminID, "yes please")
	if !handled || !reply.ShowConfirm {
		t.Fatalf("handled=%v showConfirm=%v", handled, reply.ShowConfirm)
	}
	if !strings.Contains(reply.Text, "Invoice preview") {
		t.Errorf("expected preview, got %q", reply.Text)
	}
	if len(creator.created) != 0 {
		t.Error("free text must not create an invoice")
	}
}

func TestDialogCancel(t *testing.T) {
	ctx := context.Background()
	c, creator, _ := newTestController()

	// Cancel with nothing in progress.
	reply := c.Cancel(adminID)
	if reply.Done {
		t.Error("cancel with no session must not report done")
	}

	// Cancel from every state.
	inputs := [][]string{
		{},
		{"42"},
		{"42", "150"},
		{"42", "150", "Ad placement 7 days"},
	}
	for _, steps := range inputs {
		c.Start(adminID)
		for _, text := range steps {
			c.HandleText(ctx, adminID, text)
		}
		reply = c.Cancel(adminID)
		if !reply.Done {
			t.Errorf("cancel after %d steps not done", len(steps))
		}
		if c.HasSession(adminID) {
			t.Errorf("session survived cancel after %d steps", len(steps))
		}
	}
	if len(creator.created) != 0 {
		t.Error("cancel must never create invoices")
	}
}

func TestDialogConfirmFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	c, creator, _ := newTestController()

	c.Start(adminID)
	c.HandleText(ctx, adminID, "42")
	c.HandleText(ctx, adminID, "150")
	c.HandleText(ctx, adminID, "Ad placement 7 days")

	creator.createErr = domain.ErrGateway
	reply := c.Confirm(ctx, adminID)
	if reply.Done {
		t.Fatal("failed confirm must not report done")
	}
	if !reply.ShowConfirm {
		t.Error("failed confirm must offer a retry")
	}
	if !c.HasSession(adminID) {
		t.Fatal("session lost after a gateway failure")
	}

	// Retry succeeds without re-entering anything.
	creator.createErr = nil
	reply = c.Confirm(ctx, adminID)
	if !reply.Done {
		t.Fatalf("retry failed: %q", reply.Text)
	}
	if len(creator.created) != 1 {
		t.Errorf("invoices created = %d, want 1", len(creator.created))
	}
}

func TestDialogConfirmWithoutSession(t *testing.T) {
	c, creator, _ := newTestController()
	reply := c.Confirm(context.Background(), adminID)
	if reply.Done || len(creator.created) != 0 {
		t.Errorf("confirm without session committed: %+v", reply)
	}
}

func TestDialogStartReplacesSession(t *testing.T) {
	ctx := context.Background()
	c, _, store := newTestController()

	c.Start(adminID)
	c.HandleText(ctx, adminID, "42")
	c.HandleText(ctx, adminID, "150")

	// A new /invoice abandons the half-finished dialog.
	c.Start(adminID)
	if store.Get(adminID).State != StateAwaitingUser {
		t.Error("new start did not reset the dialog")
	}
}

func TestDialogStartPrefilled(t *testing.T) {
	ctx := context.Background()
	c, _, store := newTestController()

	reply := c.StartPrefilled(ctx, adminID, "42", "150", "Ad placement 7 days")
	if !reply.ShowConfirm {
		t.Fatalf("prefilled start did not reach confirmation: %q", reply.Text)
	}
	if store.Get(adminID).State != StateAwaitingConfirmation {
		t.Error("state not at confirmation")
	}

	// A bad argument lands the admin at the failed step instead.
	reply = c.StartPrefilled(ctx, adminID, "42", "abc", "Ad placement 7 days")
	if reply.ShowConfirm {
		t.Fatal("bad amount still reached confirmation")
	}
	if store.Get(adminID).State != StateAwaitingAmount {
		t.Errorf("state = %v, want awaiting amount", store.Get(adminID).State)
	}
}

func TestSplitArgs(t *testing.T) {
	user, amount, description, ok := SplitArgs("42 150 Ad placement 7 days")
	if !ok || user != "42" || amount != "150" || description != "Ad placement 7 days" {
		t.Errorf("got %q %q %q ok=%v", user, amount, description, ok)
	}
	if _, _, _, ok := SplitArgs("42 150"); ok {
		t.Error("two fields must not parse")
	}
}

func TestSessionTTL(t *testing.T) {
	store := NewStore(15 * time.Minute)
	current := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return current }

	store.Begin(adminID)
	store.Begin(2)

	current = current.Add(10 * time.Minute)
	store.Touch(adminID)

	current = current.Add(10 * time.Minute)

	// Admin 1 was touched 10 minutes ago and survives; admin 2 is 20
	// minutes stale.
	if store.Get(adminID) == nil {
		t.Error("touched session evicted early")
	}
	if store.Get(2) != nil {
		t.Error("stale session not evicted")
	}

	current = current.Add(time.Hour)
	if removed := store.Sweep(); removed != 1 {
		t.Errorf("sweep removed %d, want 1", removed)
	}
	if store.Get(adminID) != nil {
		t.Error("session survived sweep")
	}
}
