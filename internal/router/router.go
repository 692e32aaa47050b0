package router

import (
	stdcontext "context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/logger"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
	"github.com/yourorg/checkout-orchestrator/internal/processor"
	"github.com/yourorg/checkout-orchestrator/internal/router/availability"
)

// ErrMethodUnavailable is returned for methods hidden earlier in the session.
var ErrMethodUnavailable = errors.New("payment method unavailable")

type Router struct {
	processor *processor.Processor
	logger    *zap.Logger
}

func NewRouter(p *processor.Processor, l *zap.Logger) *Router {
	if p == nil {
		panic("processor cannot be nil")
	}
	return &Router{processor: p, logger: logger.OrNop(l)}
}

// Prepare initializes the adapter serving m and records the outcome in avail.
func (r *Router) Prepare(ctx stdcontext.Context, avail *availability.Availability, m payment.Method, actx context.AdapterContext) error {
	if m == nil {
		return fmt.Errorf("router: payment method cannot be nil")
	}
	key := availability.Key(m)

	// 1. Availability gate
	if !avail.Allow(key) {
		return fmt.Errorf("router: %s: %w", key, ErrMethodUnavailable)
	}

	// 2. Adapter initialization
	a, err := r.processor.Adapter(m)
	if err != nil {
		return err
	}
	err = a.Initialize(ctx, actx)
	switch {
	case err == nil:
		avail.RecordReady(key)
		return nil
	case errors.Is(err, adapter.ErrUnsupported):
		avail.RecordUnsupported(key)
		r.logger.Info("payment method not supported, hiding it",
			zap.String("method", key),
			zap.String("payment_id", actx.PaymentID))
	case errors.Is(err, adapter.ErrLibraryUnavailable):
		avail.RecordLoadFailure(key)
		r.logger.Warn("provider library unavailable",
			zap.String("method", key),
			zap.String("payment_id", actx.PaymentID),
			zap.Int("failures", avail.Failures(key)),
			zap.Error(err))
	}
	return fmt.Errorf("router: initializing %s: %w", a.GetName(), err)
}

// Launch prepares req.Method and hands the interaction to the processor. A
// library load failure is reported to sink as an inline error.
func (r *Router) Launch(ctx stdcontext.Context, avail *availability.Availability, req adapter.Request, sink processor.Sink) error {
	if err := r.Prepare(ctx, avail, req.Method, req.Context); err != nil {
		if errors.Is(err, adapter.ErrLibraryUnavailable) {
			sink.AdapterError(req.Method, err)
		}
		return err
	}
	return r.processor.Process(ctx, req, sink)
}
