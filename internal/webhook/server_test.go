package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-orlov/invoicebot/internal/config"
	"github.com/m-orlov/invoicebot/internal/service"
)

type stubVerifier struct {
	accept bool
	gotRaw []byte
	gotSig string
}

func (s *stubVerifier) VerifyWebhook(rawBody []byte, providedSign string) bool {
	s.gotRaw = append([]byte(nil), rawBody...)
	s.gotSig = providedSign
	return s.accept
}

type stubApplier struct {
	events []service.WebhookEvent
	err    error
}

func (s *stubApplier) ApplyWebhookStatus(ctx context.Context, ev service.WebhookEvent) error {
	s.events = append(s.events, ev)
	return s.err
}

const validBody = `{"order_id":"INV-260829-AB12","status":"paid","payment_amount":"150.00","currency":"USD","txid":"0xabc","uuid":"gw-uuid-1","network":"TRON"}`

func postCallback(t *testing.T, verifier Verifier, applier StatusApplier, body, sign string) *httptest.ResponseRecorder {
	t.Helper()
	cfg := &config.Config{WebhookPath: "/webhook/payment", Port: 3000}
	srv := New(cfg, verifier, applier, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/payment", strings.NewReader(body))
	req.Header.Set("sign", sign)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCallbackAccepted(t *testing.T) {
	verifier := &stubVerifier{accept: true}
	applier := &stubApplier{}

	rec := postCallback(t, verifier, applier, validBody, "somesign")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Verification must run over the exact received bytes.
	if string(verifier.gotRaw) != validBody {
		t.Errorf("verifier saw %q", verifier.gotRaw)
	}
	if verifier.gotSig != "somesign" {
		t.Errorf("verifier saw sign %q", verifier.gotSig)
	}

	if len(applier.events) != 1 {
		t.Fatalf("events applied = %d", len(applier.events))
	}
	ev := applier.events[0]
	if ev.OrderID != "INV-260829-AB12" || ev.Status != "paid" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Amount.StringFixed(2) != "150.00" {
		t.Errorf("amount = %s", ev.Amount)
	}
	if ev.TransactionID != "0xabc" {
		t.Errorf("transaction id = %q, want on-chain txid", ev.TransactionID)
	}
	if ev.PaymentMethod != "TRON" {
		t.Errorf("payment method = %q", ev.PaymentMethod)
	}
}

func TestCallbackBadSignature(t *testing.T) {
	applier := &stubApplier{}
	rec := postCallback(t, &stubVerifier{accept: false}, applier, validBody, "forged")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if len(applier.events) != 0 {
		t.Error("rejected payload must never reach the applier")
	}
}

func TestCallbackUnparseableBody(t *testing.T) {
	applier := &stubApplier{}
	rec := postCallback(t, &stubVerifier{accept: true}, applier, "{not json", "somesign")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(applier.events) != 0 {
		t.Error("unparseable payload must never reach the applier")
	}
}

func TestCallbackProcessingErrorStill200(t *testing.T) {
	applier := &stubApplier{err: errors.New("db down")}
	rec := postCallback(t, &stubVerifier{accept: true}, applier, validBody, "somesign")

	// An accepted, authentic payload is never bounced back to the
	// gateway; failures are reconciled internally.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(applier.events) != 1 {
		t.Errorf("events applied = %d", len(applier.events))
	}
}

func TestCallbackFallsBackToGatewayUUID(t *testing.T) {
	applier := &stubApplier{}
	body := `{"order_id":"INV-260829-AB12","status":"paid","payment_amount":"150.00","uuid":"gw-uuid-1"}`
	rec := postCallback(t, &stubVerifier{accept: true}, applier, body, "somesign")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if applier.events[0].TransactionID != "gw-uuid-1" {
		t.Errorf("transaction id = %q, want gateway uuid", applier.events[0].TransactionID)
	}
}

func TestCallbackMalformedAmountStillProcessed(t *testing.T) {
	applier := &stubApplier{}
	body := `{"order_id":"INV-260829-AB12","status":"paid","payment_amount":"not-a-number","txid":"0xabc"}`
	rec := postCallback(t, &stubVerifier{accept: true}, applier, body, "somesign")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(applier.events) != 1 {
		t.Fatalf("events applied = %d", len(applier.events))
	}
	// The event goes through with a zero amount; the mismatch is left
	// to reconciliation.
	if !applier.events[0].Amount.IsZero() {
		t.Errorf("amount = %s, want 0", applier.events[0].Amount)
	}
}

func TestUnknownPathNotFound(t *testing.T) {
	cfg := &config.Config{WebhookPath: "/webhook/payment", Port: 3000}
	srv := New(cfg, &stubVerifier{accept: true}, &stubApplier{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook/payment", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on callback = %d, want 405", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/other", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path = %d, want 404", rec.Code)
	}
}
