// Package paypal implements the wallet adapter. The wallet script is loaded
// by the presentation surface; the adapter checks the script is reachable,
// creates and captures the order through the backend, and waits for the
// payer's approval relayed through adapter.Interactions.
package paypal

import (
	stdcontext "context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/logger"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

const disabledFunding = "card,credit,venmo,sepa,bancontact,eps,giropay,ideal,mybank,p24,sofort"

var (
	ErrOrderCreation = errors.New("failed to create wallet order")
	ErrOrderCapture  = errors.New("failed to capture wallet order")
)

// Config controls how the wallet script is located and probed.
type Config struct {
	SDKURL       string
	LoadAttempts int
	LoadInterval time.Duration
}

// DefaultConfig mirrors the wallet provider's public script host.
func DefaultConfig() Config {
	return Config{
		SDKURL:       "https://www.paypal.com/sdk/js",
		LoadAttempts: 10,
		LoadInterval: time.Second,
	}
}

// PayPalAdapter implements adapter.ProviderAdapter for the wallet family.
type PayPalAdapter struct {
	cfg          Config
	httpClient   *http.Client
	interactions *adapter.Interactions
	logger       *zap.Logger
}

// NewPayPalAdapter creates a new PayPalAdapter.
func NewPayPalAdapter(cfg Config, interactions *adapter.Interactions, httpClient *http.Client, l *zap.Logger) *PayPalAdapter {
	if interactions == nil {
		panic("interactions cannot be nil")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	def := DefaultConfig()
	if cfg.SDKURL == "" {
		cfg.SDKURL = def.SDKURL
	}
	if cfg.LoadAttempts <= 0 {
		cfg.LoadAttempts = def.LoadAttempts
	}
	if cfg.LoadInterval <= 0 {
		cfg.LoadInterval = def.LoadInterval
	}
	return &PayPalAdapter{cfg: cfg, httpClient: httpClient, interactions: interactions, logger: logger.OrNop(l)}
}

// GetName returns the name of the provider.
func (p *PayPalAdapter) GetName() string {
	return "paypal"
}

// Kind implements adapter.ProviderAdapter.
func (p *PayPalAdapter) Kind() payment.Kind {
	return payment.KindWallet
}

// ScriptURL builds the wallet script address for a client id and currency.
func (p *PayPalAdapter) ScriptURL(clientID, currency string) string {
	var b strings.Builder
	b.WriteString(p.cfg.SDKURL)
	b.WriteString("?currency=")
	b.WriteString(url.QueryEscape(currency))
	b.WriteString("&client-id=")
	b.WriteString(url.QueryEscape(clientID))
	b.WriteString("&disable-funding=")
	b.WriteString(disabledFunding)
	return b.String()
}

// Initialize waits for the wallet script to become reachable, once per
// LoadInterval for at most LoadAttempts probes.
func (p *PayPalAdapter) Initialize(ctx stdcontext.Context, actx context.AdapterContext) error {
	if actx.Credential == "" {
		return fmt.Errorf("paypal: missing client id: %w", adapter.ErrLibraryUnavailable)
	}
	scriptURL := p.ScriptURL(actx.Credential, actx.Currency)
	err := adapter.PollUntil(ctx, p.cfg.LoadInterval, p.cfg.LoadAttempts, func(ctx stdcontext.Context) bool {
		return p.probe(ctx, scriptURL)
	})
	if err != nil {
		p.logger.Warn("wallet script did not load",
			zap.String("payment_id", actx.PaymentID),
			zap.String("trace_id", actx.TraceID),
			zap.Error(err))
		return fmt.Errorf("paypal: %w", err)
	}
	return nil
}

func (p *PayPalAdapter) probe(ctx stdcontext.Context, scriptURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scriptURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Present runs the wallet interaction: the payer committing to the wallet
// creates the order, approval captures it, anything else cancels.
func (p *PayPalAdapter) Present(ctx stdcontext.Context, req adapter.Request) <-chan adapter.Event {
	events := make(chan adapter.Event, 2)
	go func() {
		defer close(events)
		id := req.Context.PaymentID

		if !adapter.Emit(ctx, events, adapter.Event{Type: adapter.EventSelected}) {
			return
		}

		orderID, err := req.Backend.CreateWalletOrder(ctx, id)
		if err != nil {
			adapter.Emit(ctx, events, adapter.Failed(fmt.Errorf("%w: %w", ErrOrderCreation, err)))
			return
		}
		p.logger.Info("wallet order created",
			zap.String("payment_id", id),
			zap.String("order_id", orderID))

		decision, err := p.interactions.Await(ctx, req.Context.SessionID)
		if err != nil {
			return
		}
		if !decision.Approved {
			adapter.Emit(ctx, events, adapter.Event{Type: adapter.EventCanceled})
			return
		}

		status, err := req.Backend.CaptureWalletOrder(ctx, id)
		if err != nil {
			adapter.Emit(ctx, events, adapter.Failed(fmt.Errorf("%w: %w", ErrOrderCapture, err)))
			return
		}
		adapter.Emit(ctx, events, adapter.Confirmed(status, false))
	}()
	return events
}
