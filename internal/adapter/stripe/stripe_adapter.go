package stripe

import (
	stdcontext "context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/logger"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

var (
	// ErrMissingPaymentDetails is reported when a fresh method is submitted without details.
	ErrMissingPaymentDetails = errors.New("payment details are missing")
	// ErrBillingDetailsRequired is reported when a fresh SEPA debit lacks the billing name or email.
	ErrBillingDetailsRequired = errors.New("billing name and email are required for SEPA direct debit")
)

// Confirmer confirms payment intents with a publishable key and client secret,
// the way the browser library does.
type Confirmer struct {
	backend stripe.Backend
}

// Option customizes the Stripe backend.
type Option func(*stripe.BackendConfig)

// WithAPIURL points the client at another API host, e.g. a test double.
func WithAPIURL(url string) Option {
	return func(c *stripe.BackendConfig) {
		if url != "" {
			c.URL = stripe.String(url)
		}
	}
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *stripe.BackendConfig) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// NewConfirmer builds the Stripe API backend. Retries are disabled: a
// confirmation is never repeated behind the payer's back.
func NewConfirmer(l *zap.Logger, opts ...Option) *Confirmer {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.OrNop(l).Sugar(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Confirmer{backend: stripe.GetBackendWithConfig(stripe.APIBackend, cfg)}
}

// IntentID extracts the payment intent id from a client secret.
func IntentID(clientSecret string) (string, error) {
	id, _, found := strings.Cut(clientSecret, "_secret_")
	if !found || id == "" {
		return "", fmt.Errorf("malformed client secret")
	}
	return id, nil
}

// Confirm confirms the intent behind clientSecret.
func (c *Confirmer) Confirm(ctx stdcontext.Context, publicKey, clientSecret string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	id, err := IntentID(clientSecret)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = &stripe.PaymentIntentConfirmParams{}
	}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)
	client := paymentintent.Client{B: c.backend, Key: publicKey}
	return client.Confirm(id, params)
}

// Outcome normalizes a confirmation result. A provider error that still
// carries the intent is reported as that intent's status; only errors without
// an intent are surfaced as adapter errors.
func Outcome(pi *stripe.PaymentIntent, err error, saveMethod bool) adapter.Event {
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.PaymentIntent != nil {
			return adapter.Confirmed(adapter.MapIntentStatus(string(se.PaymentIntent.Status)), saveMethod)
		}
		return adapter.Failed(err)
	}
	if pi == nil {
		return adapter.Confirmed(payment.StatusSucceeded, saveMethod)
	}
	return adapter.Confirmed(adapter.MapIntentStatus(string(pi.Status)), saveMethod)
}

// StripeAdapter implements the direct-confirmation ProviderAdapter for cards
// and SEPA direct debit.
type StripeAdapter struct {
	confirmer *Confirmer
	logger    *zap.Logger
}

// NewStripeAdapter creates a new StripeAdapter.
func NewStripeAdapter(confirmer *Confirmer, l *zap.Logger) *StripeAdapter {
	if confirmer == nil {
		panic("confirmer cannot be nil")
	}
	return &StripeAdapter{confirmer: confirmer, logger: logger.OrNop(l)}
}

// GetName returns the name of the provider.
func (s *StripeAdapter) GetName() string {
	return "stripe"
}

// Kind implements adapter.ProviderAdapter.
func (s *StripeAdapter) Kind() payment.Kind {
	return payment.KindDirect
}

// Initialize only needs a publishable key; the embedded form is rendered by the presentation surface.
func (s *StripeAdapter) Initialize(_ stdcontext.Context, actx context.AdapterContext) error {
	if actx.Credential == "" {
		return fmt.Errorf("stripe: missing publishable key: %w", adapter.ErrLibraryUnavailable)
	}
	return nil
}

// Present confirms the payment. With a stored-method token it submits at once
// and ignores the form; otherwise the submission must carry payment details.
func (s *StripeAdapter) Present(ctx stdcontext.Context, req adapter.Request) <-chan adapter.Event {
	events := make(chan adapter.Event, 1)
	go func() {
		defer close(events)
		adapter.Emit(ctx, events, s.confirm(ctx, req))
	}()
	return events
}

func (s *StripeAdapter) confirm(ctx stdcontext.Context, req adapter.Request) adapter.Event {
	method, ok := req.Method.(payment.DirectMethod)
	if !ok {
		return adapter.Failed(fmt.Errorf("stripe: cannot present %T", req.Method))
	}

	params := &stripe.PaymentIntentConfirmParams{}
	saveMethod := false
	if req.Secret.StoredShortcut() {
		params.PaymentMethod = stripe.String(req.Secret.PaymentMethodID)
	} else {
		sub := req.Submission
		if sub.PaymentMethodID == "" {
			return adapter.Failed(ErrMissingPaymentDetails)
		}
		if method.Type == payment.TypeSepaDirectDebit {
			if strings.TrimSpace(sub.BillingName) == "" || strings.TrimSpace(sub.BillingEmail) == "" {
				return adapter.Failed(ErrBillingDetailsRequired)
			}
			params.ReceiptEmail = stripe.String(strings.TrimSpace(sub.BillingEmail))
		}
		params.PaymentMethod = stripe.String(sub.PaymentMethodID)
		if sub.SaveMethod {
			params.SetupFutureUsage = stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession))
			saveMethod = true
		}
	}

	pi, err := s.confirmer.Confirm(ctx, req.Context.Credential, req.Secret.ClientSecret, params)
	if err != nil {
		s.logger.Warn("stripe confirmation returned an error",
			zap.String("payment_id", req.Context.PaymentID),
			zap.String("trace_id", req.Context.TraceID),
			zap.Error(err))
	}
	return Outcome(pi, err, saveMethod)
}
