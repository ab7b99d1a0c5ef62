// Package gateway implements the HTTP client for the external crypto
// payment processor: signed invoice creation, status lookup, and webhook
// signature verification.
package gateway

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/m-orlov/invoicebot/internal/config"
	"github.com/m-orlov/invoicebot/internal/domain"
)

type Client struct {
	baseURL       string
	merchantID    string
	apiKey        string
	webhookSecret string
	callbackURL   string
	lifetime      int
	httpClient    *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:       cfg.GatewayURL,
		merchantID:    cfg.GatewayMerchant,
		apiKey:        cfg.GatewayAPIKey,
		webhookSecret: cfg.WebhookSecret,
		callbackURL:   cfg.CallbackURL(),
		lifetime:      cfg.InvoiceLifetime,
		httpClient:    &http.Client{Timeout: config.GatewayTimeout},
	}
}

// CreatedInvoice is the gateway's answer to an invoice request.
type CreatedInvoice struct {
	ExternalID string
	PaymentURL string
	ExpiredAt  int64
}

type createRequest struct {
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	OrderID           string `json:"order_id"`
	URLCallback       string `json:"url_callback"`
	URLSuccess        string `json:"url_success,omitempty"`
	IsPaymentMultiple bool   `json:"is_payment_multiple"`
	Lifetime          int    `json:"lifetime"`
}

type gatewayResponse struct {
	State  int    `json:"state"`
	Result result `json:"result"`
	Error  string `json:"message"`
}

type result struct {
	UUID          string `json:"uuid"`
	URL           string `json:"url"`
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
	ExpiredAt     int64  `json:"expired_at"`
}

// RequestInvoice creates a payment page at the gateway for the given
// order. The request body is signed with the merchant key; the gateway
// answers with its own invoice uuid and a payer-facing URL. Retries live
// in the caller.
func (c *Client) RequestInvoice(ctx context.Context, amount decimal.Decimal, currency, orderID string) (*CreatedInvoice, error) {
	payload := createRequest{
		Amount:            amount.StringFixed(2),
		Currency:          currency,
		OrderID:           orderID,
		URLCallback:       c.callbackURL,
		IsPaymentMultiple: false,
		Lifetime:          c.lifetime,
	}

	res, err := c.post(ctx, "/payment", payload)
	if err != nil {
		return nil, err
	}
	if res.Result.UUID == "" || res.Result.URL == "" {
		return nil, fmt.Errorf("%w: incomplete payment response", domain.ErrGateway)
	}

	return &CreatedInvoice{
		ExternalID: res.Result.UUID,
		PaymentURL: res.Result.URL,
		ExpiredAt:  res.Result.ExpiredAt,
	}, nil
}

// PaymentInfo looks up the current gateway-side status of an order.
func (c *Client) PaymentInfo(ctx context.Context, orderID string) (string, error) {
	res, err := c.post(ctx, "/payment/info", map[string]string{"order_id": orderID})
	if err != nil {
		return "", err
	}
	return res.Result.PaymentStatus, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*gatewayResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant", c.merchantID)
	req.Header.Set("sign", Sign(body, c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrGateway, resp.StatusCode, truncate(raw, 200))
	}

	var res gatewayResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", domain.ErrGateway, err)
	}
	if res.State != 0 {
		return nil, fmt.Errorf("%w: state %d: %s", domain.ErrGateway, res.State, res.Error)
	}
	return &res, nil
}

// Sign computes the keyed request signature: the hex MD5 of the
// base64-encoded payload concatenated with the key.
func Sign(payload []byte, key string) string {
	encoded := base64.StdEncoding.EncodeToString(payload)
	hash := md5.Sum([]byte(encoded + key))
	return hex.EncodeToString(hash[:])
}

// VerifyWebhook checks a webhook signature against the exact raw bytes of
// the received body. The body must not be re-serialized before
// verification; key order or whitespace changes would break the
// signature. Comparison is constant-time. Malformed input is a
// verification failure, never an error.
func (c *Client) VerifyWebhook(rawBody []byte, providedSign string) bool {
	if len(rawBody) == 0 || providedSign == "" {
		return false
	}
	expected := Sign(rawBody, c.webhookSecret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(providedSign)) == 1
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
