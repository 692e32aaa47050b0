// Package orchestrator drives a checkout from the first payment lookup to a
// payment result. An Orchestrator holds the collaborators shared by every
// checkout; a Session is the state machine of a single one.
package orchestrator

import (
	stdcontext "context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/catalog"
	"github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/logger"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
	"github.com/yourorg/checkout-orchestrator/internal/policy"
	"github.com/yourorg/checkout-orchestrator/internal/poller"
	"github.com/yourorg/checkout-orchestrator/internal/reporting"
	"github.com/yourorg/checkout-orchestrator/internal/router"
	"github.com/yourorg/checkout-orchestrator/internal/router/availability"
)

var (
	// ErrInvalidState is returned when an operation is not reachable from the
	// current checkout state.
	ErrInvalidState = errors.New("operation not allowed in the current checkout state")
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("checkout session closed")
	// ErrSelectionLocked is returned while the method list is disabled after a selection.
	ErrSelectionLocked = errors.New("payment method selection is locked")
	// ErrUnknownMethod is returned for an index that names no offered option.
	ErrUnknownMethod = errors.New("unknown payment method")
	// ErrRenewalNotOffered is returned by RenewPayment when the payment cannot be renewed.
	ErrRenewalNotOffered = errors.New("payment renewal not offered")
)

// State is the checkout session state, distinct from the payment status.
type State string

const (
	StateInitiatePayment             State = "InitiatePayment"
	StateInvalidPayment              State = "InvalidPayment"
	StateAwaitPaymentMethodSelection State = "AwaitPaymentMethodSelection"
	StateRenderPaymentView           State = "RenderPaymentView"
	StatePaymentResult               State = "PaymentResult"
)

// Terminal reports whether the session has nothing left for the payer to do.
func (s State) Terminal() bool {
	return s == StateInvalidPayment || s == StatePaymentResult
}

// Backend is the backend contract as used by a checkout session.
type Backend interface {
	adapter.Backend
	RetrievePayment(ctx stdcontext.Context, id string) (payment.Payment, error)
	ListPaymentMethods(ctx stdcontext.Context, id string) ([]payment.Method, error)
	SaveMethod(ctx stdcontext.Context, id string) error
	RenewRedirectPayment(ctx stdcontext.Context, id string) (payment.Payment, error)
	PayeeName(ctx stdcontext.Context, id string) (string, error)
	PayeeCountry(ctx stdcontext.Context, id string) (string, error)
}

// BackendResolver returns the backend a session talks to, usually picked by
// the session's stage.
type BackendResolver func(sc context.SessionContext) Backend

// Callbacks are supplied by the caller opening a checkout. Any of them may be nil.
type Callbacks struct {
	OnSucceeded  func(p payment.Payment)
	OnProcessing func(p payment.Payment)
	OnError      func(err error)
}

// Config holds the timings of the checkout flow.
type Config struct {
	// SettleDelay is how long a confirmed success waits before OnSucceeded fires.
	SettleDelay time.Duration
	// SelectionLock is how long the method list stays disabled after a selection.
	SelectionLock time.Duration
}

// Orchestrator opens checkout sessions and keeps track of the open ones.
type Orchestrator struct {
	contexts     *context.Builder
	backends     BackendResolver
	router       *router.Router
	catalog      *catalog.Builder
	policy       *policy.PaymentPolicyEnforcer
	poller       *poller.Poller
	journal      *reporting.Journal
	interactions *adapter.Interactions
	cfg          Config
	logger       *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	contexts *context.Builder,
	backends BackendResolver,
	r *router.Router,
	cb *catalog.Builder,
	pe *policy.PaymentPolicyEnforcer,
	p *poller.Poller,
	j *reporting.Journal,
	interactions *adapter.Interactions,
	cfg Config,
	l *zap.Logger,
) *Orchestrator {
	if contexts == nil {
		panic("context builder cannot be nil")
	}
	if backends == nil {
		panic("backend resolver cannot be nil")
	}
	if r == nil {
		panic("Router cannot be nil")
	}
	if cb == nil {
		panic("catalog builder cannot be nil")
	}
	if pe == nil {
		panic("PolicyEnforcer cannot be nil")
	}
	if p == nil {
		panic("poller cannot be nil")
	}
	if j == nil {
		panic("journal cannot be nil")
	}
	if interactions == nil {
		panic("interactions cannot be nil")
	}
	return &Orchestrator{
		contexts:     contexts,
		backends:     backends,
		router:       r,
		catalog:      cb,
		policy:       pe,
		poller:       p,
		journal:      j,
		interactions: interactions,
		cfg:          cfg,
		logger:       logger.OrNop(l),
		sessions:     make(map[string]*Session),
	}
}

// Open creates a session for req in InitiatePayment. The session outlives
// ctx; it ends with Close.
func (o *Orchestrator) Open(ctx stdcontext.Context, req context.OpenRequest, cb Callbacks) (*Session, error) {
	tc, sc, err := o.contexts.Build(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: opening checkout: %w", err)
	}
	sctx, cancel := stdcontext.WithCancel(stdcontext.WithoutCancel(ctx))

	s := &Session{
		o:            o,
		tc:           tc.WithContext(sctx),
		sc:           sc,
		backend:      o.backends(sc),
		avail:        availability.New(),
		callbacks:    cb,
		ctx:          sctx,
		cancel:       cancel,
		state:        StateInitiatePayment,
		methodErrors: make(map[string]payment.Notice),
		logger: o.logger.With(
			zap.String("session_id", sc.SessionID),
			zap.String("payment_id", sc.PaymentID),
			zap.String("trace_id", tc.GetTraceID()),
		),
	}

	o.mu.Lock()
	o.sessions[sc.SessionID] = s
	o.mu.Unlock()
	openSessions.Inc()

	s.logger.Info("checkout opened", zap.String("stage", string(sc.Stage)), zap.String("language", string(sc.Language)))
	return s, nil
}

// Session returns the open session with the given id.
func (o *Orchestrator) Session(id string) (*Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	return s, ok
}

// Interactions returns the hub payer decisions are delivered through.
func (o *Orchestrator) Interactions() *adapter.Interactions {
	return o.interactions
}

// Shutdown closes every open session.
func (o *Orchestrator) Shutdown() {
	o.mu.RLock()
	open := make([]*Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		open = append(open, s)
	}
	o.mu.RUnlock()
	for _, s := range open {
		s.Close()
	}
}

func (o *Orchestrator) forget(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.sessions[id]; ok {
		delete(o.sessions, id)
		openSessions.Dec()
	}
}
