// Package catalog turns the backend's ordered method list into the options
// offered to the payer.
package catalog

import (
	stdcontext "context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

// HiddenChecker reports methods that must not be offered, such as device
// wallets the platform does not support.
type HiddenChecker interface {
	Hidden(m payment.Method) bool
}

// Option is one entry of the method list shown to the payer.
type Option struct {
	Index           int              `json:"index"`
	Kind            payment.Kind     `json:"kind"`
	Type            payment.Type     `json:"type"`
	Provider        payment.Provider `json:"provider"`
	PublicKey       string           `json:"publicKey,omitempty"`
	Last4Digits     string           `json:"last4Digits,omitempty"`
	UseStoredMethod bool             `json:"useStoredMethod"`

	Method payment.Method `json:"-"`
}

// Builder constructs the offered options from the methods of a payment.
type Builder struct{}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build filters methods into options, preserving the backend's order. Index
// refers to the position in methods.
func (b *Builder) Build(ctx stdcontext.Context, methods []payment.Method, hidden HiddenChecker) []Option {
	_, span := otel.Tracer("catalog").Start(ctx, "Catalog.Build")
	defer span.End()

	start := time.Now()
	catalogBuilds.Inc()
	defer func() {
		catalogBuildDuration.Observe(time.Since(start).Seconds())
	}()

	options := make([]Option, 0, len(methods))
	for i, m := range methods {
		opt, ok := optionFor(m)
		if !ok {
			continue
		}
		if hidden != nil && hidden.Hidden(m) {
			continue
		}
		opt.Index = i
		offeredOptions.WithLabelValues(opt.Kind.String()).Inc()
		options = append(options, opt)
	}
	span.SetAttributes(
		attribute.Int("catalog.methods", len(methods)),
		attribute.Int("catalog.options", len(options)),
	)
	return options
}

func optionFor(m payment.Method) (Option, bool) {
	opt := Option{
		Kind:      m.Kind(),
		Type:      m.PaymentType(),
		Provider:  m.Provider(),
		PublicKey: m.PublicKey(),
		Method:    m,
	}
	switch v := m.(type) {
	case payment.DirectMethod:
		if v.Stored() {
			opt.Last4Digits = v.Last4Digits
			opt.UseStoredMethod = true
			return opt, true
		}
		return opt, v.Type == payment.TypeCards || v.Type == payment.TypeSepaDirectDebit
	case payment.WalletMethod:
		return opt, v.Key != ""
	case payment.DeviceWalletMethod:
		return opt, v.Key != ""
	case payment.RedirectMethod:
		return opt, true
	default:
		return opt, false
	}
}

// Find returns the option at backend position index.
func Find(options []Option, index int) (Option, bool) {
	for _, o := range options {
		if o.Index == index {
			return o, true
		}
	}
	return Option{}, false
}
