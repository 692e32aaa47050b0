// Package paymentrequest implements the device wallet adapter (platform pay
// sheets backed by the card processor).
package paymentrequest

import (
	stdcontext "context"
	"fmt"
	"strings"
	"sync"

	stripe "github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	stripeadapter "github.com/yourorg/checkout-orchestrator/internal/adapter/stripe"
	"github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/logger"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

// Sheet is what the device pay sheet shows.
type Sheet struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Label    string `json:"label"`
	Amount   int64  `json:"amount"` // minor units, rounded up
}

// SheetFor builds the pay sheet for an invocation.
func SheetFor(actx context.AdapterContext) Sheet {
	return Sheet{
		Country:  actx.Payee.Country,
		Currency: strings.ToLower(actx.Currency),
		Label:    actx.Payee.Name,
		Amount:   payment.CeilMinorUnits(actx.Amount),
	}
}

// Prober answers whether the payer's platform can show a pay sheet.
type Prober interface {
	CanMakePayment(ctx stdcontext.Context, sessionID string, sheet Sheet) (bool, error)
}

// CapabilityProber answers from what the presentation surface reported when
// the session was opened. Unknown sessions are treated as unsupported.
type CapabilityProber struct {
	mu      sync.RWMutex
	capable map[string]bool
}

// NewCapabilityProber creates an empty prober.
func NewCapabilityProber() *CapabilityProber {
	return &CapabilityProber{capable: make(map[string]bool)}
}

// Report records whether the platform behind sessionID supports pay sheets.
func (p *CapabilityProber) Report(sessionID string, supported bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.capable[sessionID] = supported
}

// Forget drops the report for sessionID.
func (p *CapabilityProber) Forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.capable, sessionID)
}

func (p *CapabilityProber) CanMakePayment(_ stdcontext.Context, sessionID string, _ Sheet) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.capable[sessionID], nil
}

// PaymentRequestAdapter implements adapter.ProviderAdapter for device wallets.
type PaymentRequestAdapter struct {
	prober       Prober
	confirmer    *stripeadapter.Confirmer
	interactions *adapter.Interactions
	logger       *zap.Logger
}

// NewPaymentRequestAdapter creates a new PaymentRequestAdapter.
func NewPaymentRequestAdapter(prober Prober, confirmer *stripeadapter.Confirmer, interactions *adapter.Interactions, l *zap.Logger) *PaymentRequestAdapter {
	if prober == nil {
		panic("prober cannot be nil")
	}
	if confirmer == nil {
		panic("confirmer cannot be nil")
	}
	if interactions == nil {
		panic("interactions cannot be nil")
	}
	return &PaymentRequestAdapter{prober: prober, confirmer: confirmer, interactions: interactions, logger: logger.OrNop(l)}
}

// GetName returns the name of the provider.
func (a *PaymentRequestAdapter) GetName() string {
	return "payment_request"
}

// Kind implements adapter.ProviderAdapter.
func (a *PaymentRequestAdapter) Kind() payment.Kind {
	return payment.KindDeviceWallet
}

// Initialize probes the platform. Any failure to confirm support is reported
// as ErrUnsupported, which hides the method for the rest of the session.
func (a *PaymentRequestAdapter) Initialize(ctx stdcontext.Context, actx context.AdapterContext) error {
	if actx.Credential == "" {
		return fmt.Errorf("payment request: missing publishable key: %w", adapter.ErrLibraryUnavailable)
	}
	ok, err := a.prober.CanMakePayment(ctx, actx.SessionID, SheetFor(actx))
	if err != nil {
		a.logger.Warn("pay sheet probe failed", zap.String("payment_id", actx.PaymentID), zap.Error(err))
		return fmt.Errorf("payment request: %w: %w", adapter.ErrUnsupported, err)
	}
	if !ok {
		return adapter.ErrUnsupported
	}
	return nil
}

// Present waits for the payer to answer the pay sheet. An approved sheet
// carries the payment method, which is confirmed against a fresh unscoped
// client secret.
func (a *PaymentRequestAdapter) Present(ctx stdcontext.Context, req adapter.Request) <-chan adapter.Event {
	events := make(chan adapter.Event, 2)
	go func() {
		defer close(events)
		id := req.Context.PaymentID

		decision, err := a.interactions.Await(ctx, req.Context.SessionID)
		if err != nil {
			return
		}
		if !decision.Approved {
			adapter.Emit(ctx, events, adapter.Event{Type: adapter.EventCanceled})
			return
		}
		if !adapter.Emit(ctx, events, adapter.Event{Type: adapter.EventSelected}) {
			return
		}
		if decision.PaymentMethodID == "" {
			adapter.Emit(ctx, events, adapter.Failed(stripeadapter.ErrMissingPaymentDetails))
			return
		}

		secret, err := req.Backend.CreateClientSecret(ctx, id, "")
		if err != nil {
			adapter.Emit(ctx, events, adapter.Failed(err))
			return
		}

		key := req.Context.Credential
		pi, err := a.confirmer.Confirm(ctx, key, secret.ClientSecret, &stripe.PaymentIntentConfirmParams{
			PaymentMethod: stripe.String(decision.PaymentMethodID),
		})
		if err == nil && pi != nil && pi.Status == stripe.PaymentIntentStatusRequiresAction {
			a.logger.Info("pay sheet payment requires action", zap.String("payment_id", id))
			pi, err = a.confirmer.Confirm(ctx, key, secret.ClientSecret, nil)
		}
		adapter.Emit(ctx, events, stripeadapter.Outcome(pi, err, false))
	}()
	return events
}
