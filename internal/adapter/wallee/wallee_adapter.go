// Package wallee implements the redirect adapter. The provider's lightbox
// takes over the payer's page, so the adapter never reports a settlement; the
// outcome is learned by re-fetching the payment once the payer returns.
package wallee

import (
	stdcontext "context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/backend"
	"github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/logger"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

// ErrRedirectUnavailable is reported when the lightbox could not be started.
var ErrRedirectUnavailable = errors.New("redirect payment could not be started")

// Launcher hosts the lightbox script on the presentation surface.
type Launcher interface {
	// Inject hands the lightbox script URL to the page of a session.
	Inject(ctx stdcontext.Context, sessionID, scriptURL string) error
	// Ready reports whether the lightbox checkout handler is available.
	Ready(ctx stdcontext.Context, sessionID string) bool
	// StartPayment hands control to the lightbox.
	StartPayment(ctx stdcontext.Context, sessionID string) error
}

// WalleeAdapter implements adapter.ProviderAdapter for redirect methods.
type WalleeAdapter struct {
	launcher      Launcher
	probeInterval time.Duration
	logger        *zap.Logger
}

// NewWalleeAdapter creates a new WalleeAdapter.
func NewWalleeAdapter(launcher Launcher, probeInterval time.Duration, l *zap.Logger) *WalleeAdapter {
	if launcher == nil {
		panic("launcher cannot be nil")
	}
	if probeInterval <= 0 {
		probeInterval = time.Second
	}
	return &WalleeAdapter{launcher: launcher, probeInterval: probeInterval, logger: logger.OrNop(l)}
}

// GetName returns the name of the provider.
func (w *WalleeAdapter) GetName() string {
	return "wallee"
}

// Kind implements adapter.ProviderAdapter.
func (w *WalleeAdapter) Kind() payment.Kind {
	return payment.KindRedirect
}

// Initialize is a no-op: the lightbox script is only known after the backend issues it.
func (w *WalleeAdapter) Initialize(stdcontext.Context, context.AdapterContext) error {
	return nil
}

// Present fetches the lightbox URL, injects it and probes for the handler
// until it appears or ctx is done.
func (w *WalleeAdapter) Present(ctx stdcontext.Context, req adapter.Request) <-chan adapter.Event {
	events := make(chan adapter.Event, 2)
	go func() {
		defer close(events)
		actx := req.Context
		id := actx.PaymentID
		page := actx.SessionID

		if !adapter.Emit(ctx, events, adapter.Event{Type: adapter.EventSelected}) {
			return
		}

		scriptURL, err := req.Backend.FetchRedirectURL(ctx, id, backend.RedirectRequest{
			SuccessURL: actx.ReturnURL,
			FailedURL:  actx.CancelURL,
			Language:   string(actx.Language),
		})
		if err == nil && scriptURL == "" {
			err = errors.New("empty lightbox url")
		}
		if err != nil {
			w.logger.Error("failed to fetch lightbox url", zap.String("payment_id", id), zap.Error(err))
			adapter.Emit(ctx, events, adapter.Failed(fmt.Errorf("%w: %w", ErrRedirectUnavailable, err)))
			return
		}

		if !adapter.Emit(ctx, events, adapter.Event{Type: adapter.EventRedirect, RedirectURL: scriptURL}) {
			return
		}
		if err := w.launcher.Inject(ctx, page, scriptURL); err != nil {
			adapter.Emit(ctx, events, adapter.Failed(fmt.Errorf("%w: %w", ErrRedirectUnavailable, err)))
			return
		}

		w.logger.Debug("awaiting lightbox handler", zap.String("payment_id", id))
		if err := adapter.PollUntil(ctx, w.probeInterval, 0, func(ctx stdcontext.Context) bool {
			return w.launcher.Ready(ctx, page)
		}); err != nil {
			return
		}

		if err := w.launcher.StartPayment(ctx, page); err != nil {
			adapter.Emit(ctx, events, adapter.Failed(fmt.Errorf("%w: %w", ErrRedirectUnavailable, err)))
			return
		}
		w.logger.Info("lightbox started", zap.String("payment_id", id))
	}()
	return events
}
