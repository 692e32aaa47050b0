package processor

import (
	stdcontext "context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/logger"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

// Sink receives the checkout-level effects of an adapter interaction.
type Sink interface {
	// MethodSelected records that the payer committed to m.
	MethodSelected(m payment.Method)
	// Confirmed delivers a settlement outcome.
	Confirmed(status payment.Status, saveMethod bool)
	// AdapterError shows err inline for m without leaving the current view.
	AdapterError(m payment.Method, err error)
	// Redirect exposes the page taking over the payer.
	Redirect(url string)
	// Canceled records that the payer backed out of m's provider UI.
	Canceled(m payment.Method)
}

// Processor wraps ProviderAdapter calls and translates their events for a Sink.
// It's responsible for selecting the correct adapter and translating its result.
type Processor struct {
	registry *adapter.Registry
	logger   *zap.Logger
}

// NewProcessor creates a new Processor with a given adapter registry.
func NewProcessor(registry *adapter.Registry, l *zap.Logger) *Processor {
	if registry == nil {
		panic("adapter registry cannot be nil")
	}
	return &Processor{registry: registry, logger: logger.OrNop(l)}
}

// Adapter returns the adapter serving m.
func (p *Processor) Adapter(m payment.Method) (adapter.ProviderAdapter, error) {
	a, err := p.registry.For(m)
	if err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}
	return a, nil
}

// Process presents req.Method through its adapter and forwards every event to
// sink until the adapter is done or ctx ends. At most one Confirmed is delivered.
func (p *Processor) Process(ctx stdcontext.Context, req adapter.Request, sink Sink) error {
	a, err := p.Adapter(req.Method)
	if err != nil {
		return err
	}
	kind := req.Method.Kind().String()

	confirmed := false
	for ev := range a.Present(ctx, req) {
		adapterEvents.WithLabelValues(kind, string(ev.Type)).Inc()
		switch ev.Type {
		case adapter.EventSelected:
			sink.MethodSelected(req.Method)
		case adapter.EventConfirmed:
			if confirmed {
				p.logger.Warn("ignoring repeated confirmation",
					zap.String("adapter", a.GetName()),
					zap.String("payment_id", req.Context.PaymentID))
				continue
			}
			confirmed = true
			sink.Confirmed(ev.Status, ev.SaveMethod)
		case adapter.EventError:
			p.logger.Warn("adapter reported an error",
				zap.String("adapter", a.GetName()),
				zap.String("payment_id", req.Context.PaymentID),
				zap.Error(ev.Err))
			sink.AdapterError(req.Method, ev.Err)
		case adapter.EventRedirect:
			sink.Redirect(ev.RedirectURL)
		case adapter.EventCanceled:
			sink.Canceled(req.Method)
		default:
			p.logger.Warn("unknown adapter event", zap.String("type", string(ev.Type)))
		}
	}
	return nil
}
