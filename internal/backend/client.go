// Package backend implements the request contract of the payment backend.
// Every operation is keyed by the payment id and addressed relative to the
// stage's base URL.
package backend

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/logger"
	"github.com/yourorg/checkout-orchestrator/internal/monitor"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

const defaultTimeout = 10 * time.Second

// RedirectRequest carries the parameters of a lightbox URL request.
type RedirectRequest struct {
	SuccessURL string `json:"successUrl"`
	FailedURL  string `json:"failedUrl"`
	Language   string `json:"language,omitempty"`
}

// HTTPClient talks to one backend deployment.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	monitor    *monitor.ContractMonitor
	logger     *zap.Logger
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *HTTPClient) { h.logger = logger.OrNop(l) }
}

// WithMonitor replaces the payment contract monitor.
func WithMonitor(m *monitor.ContractMonitor) Option {
	return func(h *HTTPClient) {
		if m != nil {
			h.monitor = m
		}
	}
}

// NewHTTPClient creates a client for the deployment at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		monitor:    monitor.NewPaymentMonitor(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BaseURL returns the deployment address.
func (h *HTTPClient) BaseURL() string {
	return h.baseURL
}

// RetrievePayment fetches the public payment document.
func (h *HTTPClient) RetrievePayment(ctx stdcontext.Context, id string) (payment.Payment, error) {
	return h.paymentCall(ctx, "retrieve_payment", http.MethodGet, id, "")
}

// RenewRedirectPayment asks for a fresh redirect-provider attempt on the same payment.
func (h *HTTPClient) RenewRedirectPayment(ctx stdcontext.Context, id string) (payment.Payment, error) {
	return h.paymentCall(ctx, "renew_redirect_payment", http.MethodPost, id, "/wallee-renew-payment")
}

func (h *HTTPClient) paymentCall(ctx stdcontext.Context, op, method, id, suffix string) (payment.Payment, error) {
	raw, err := h.do(ctx, op, method, id, suffix, nil)
	if err != nil {
		return payment.Payment{}, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return payment.Payment{}, fmt.Errorf("%s: payment %s: %w", op, id, ErrNotFound)
	}
	valid, violations, err := h.monitor.Validate(trimmed)
	if err != nil {
		return payment.Payment{}, fmt.Errorf("%s: %w", op, err)
	}
	if !valid {
		return payment.Payment{}, fmt.Errorf("%s: unsupported payment document: %s", op, monitor.FormatErrors(violations))
	}
	var p payment.Payment
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return payment.Payment{}, fmt.Errorf("%s: failed to decode payment: %w", op, err)
	}
	return p, nil
}

// ListPaymentMethods fetches the ordered method catalog.
func (h *HTTPClient) ListPaymentMethods(ctx stdcontext.Context, id string) ([]payment.Method, error) {
	raw, err := h.do(ctx, "list_payment_methods", http.MethodGet, id, "/payment-methods", nil)
	if err != nil {
		return nil, err
	}
	return payment.DecodeMethods(raw)
}

// CreateClientSecret requests a confirmation token, scoped to storedMethodID when it is not empty.
func (h *HTTPClient) CreateClientSecret(ctx stdcontext.Context, id, storedMethodID string) (payment.ClientSecret, error) {
	body := struct {
		UseStoredMethodID string `json:"useStoredMethodId,omitempty"`
	}{UseStoredMethodID: storedMethodID}
	var secret payment.ClientSecret
	if err := h.call(ctx, "create_client_secret", http.MethodPost, id, "/stripe-client-secret", body, &secret); err != nil {
		return payment.ClientSecret{}, err
	}
	return secret, nil
}

// SaveMethod stores the method used for this payment on the payer.
func (h *HTTPClient) SaveMethod(ctx stdcontext.Context, id string) error {
	_, err := h.do(ctx, "save_method", http.MethodPost, id, "/save-stripe-payment-method", nil)
	return err
}

// CreateWalletOrder opens a wallet order and returns its id.
func (h *HTTPClient) CreateWalletOrder(ctx stdcontext.Context, id string) (string, error) {
	var orderID string
	if err := h.call(ctx, "create_wallet_order", http.MethodPost, id, "/paypal-order", nil, &orderID); err != nil {
		return "", err
	}
	return orderID, nil
}

// CaptureWalletOrder captures the approved wallet order and returns the resulting status.
func (h *HTTPClient) CaptureWalletOrder(ctx stdcontext.Context, id string) (payment.Status, error) {
	var status string
	if err := h.call(ctx, "capture_wallet_order", http.MethodPost, id, "/paypal-capture", nil, &status); err != nil {
		return "", err
	}
	st, err := payment.ParseStatus(status)
	if err != nil {
		return "", fmt.Errorf("capture_wallet_order: %w", err)
	}
	return st, nil
}

// FetchRedirectURL requests the lightbox script URL for the redirect provider.
func (h *HTTPClient) FetchRedirectURL(ctx stdcontext.Context, id string, req RedirectRequest) (string, error) {
	var out struct {
		LightBoxURL string `json:"lightBoxUrl"`
	}
	if err := h.call(ctx, "fetch_redirect_url", http.MethodPost, id, "/wallee-lightbox-url", req, &out); err != nil {
		return "", err
	}
	if out.LightBoxURL == "" {
		return "", fmt.Errorf("fetch_redirect_url: backend returned an empty lightbox url")
	}
	return out.LightBoxURL, nil
}

// PayeeName returns the payee's display name.
func (h *HTTPClient) PayeeName(ctx stdcontext.Context, id string) (string, error) {
	var name string
	err := h.call(ctx, "payee_name", http.MethodGet, id, "/payee-name", nil, &name)
	return name, err
}

// PayeeCountry returns the payee's ISO country code.
func (h *HTTPClient) PayeeCountry(ctx stdcontext.Context, id string) (string, error) {
	var country string
	err := h.call(ctx, "payee_country", http.MethodGet, id, "/payee-country", nil, &country)
	return country, err
}

func (h *HTTPClient) call(ctx stdcontext.Context, op, method, id, suffix string, in, out interface{}) error {
	raw, err := h.do(ctx, op, method, id, suffix, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func (h *HTTPClient) do(ctx stdcontext.Context, op, method, id, suffix string, in interface{}) ([]byte, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		requestDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	endpoint := h.baseURL + "/public/" + url.PathEscape(id) + suffix
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create http request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.Warn("backend request failed", zap.String("operation", op), zap.String("payment_id", id), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		be := &Error{Operation: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
		h.logger.Warn("backend returned an error",
			zap.String("operation", op),
			zap.String("payment_id", id),
			zap.Int("status", resp.StatusCode),
			zap.String("message", be.Message))
		return nil, be
	}
	outcome = "ok"
	return raw, nil
}

// errorMessage applies the failure convention: structured message, raw body,
// then a generic status text.
func errorMessage(status int, raw []byte) string {
	var structured struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil && structured.Message != "" {
		return structured.Message
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fmt.Sprintf("Failed to fetch resource, server returns status %d.", status)
}
