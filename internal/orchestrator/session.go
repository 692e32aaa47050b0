package orchestrator

import (
	stdcontext "context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/backend"
	"github.com/yourorg/checkout-orchestrator/internal/catalog"
	"github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
	"github.com/yourorg/checkout-orchestrator/internal/poller"
	"github.com/yourorg/checkout-orchestrator/internal/reporting"
	"github.com/yourorg/checkout-orchestrator/internal/router/availability"
)

var tracer = otel.Tracer("orchestrator")

// Session is one checkout for a single payment id. Every operation may be
// called from any goroutine; backend calls run without holding the session
// lock and their results are applied only if the session is still in the
// state the call was issued from.
type Session struct {
	o         *Orchestrator
	tc        context.TraceContext
	sc        context.SessionContext
	backend   Backend
	avail     *availability.Availability
	callbacks Callbacks
	logger    *zap.Logger

	ctx    stdcontext.Context
	cancel stdcontext.CancelFunc

	mu           sync.Mutex
	state        State
	closed       bool
	payment      *payment.Payment
	payee        context.PayeeInfo
	options      []catalog.Option
	selected     payment.Method
	secret       *payment.ClientSecret
	notice       *payment.Notice
	methodErrors map[string]payment.Notice
	redirectURL  string
	lockedUntil  time.Time

	renewalOffered bool
	renewalError   bool
	renewing       bool
	// submitting is set while the payment view's form is with the provider.
	submitting bool

	poll       *poller.Handle
	generation uint64
	settle     *time.Timer
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.sc.SessionID
}

// Context returns the session context the checkout was opened with.
func (s *Session) Context() context.SessionContext {
	return s.sc
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Initialize fetches the payment. A failed or empty lookup ends the session
// in InvalidPayment and is reported through OnError; nothing else is looked
// up in that case. Payee attributes are resolved concurrently and on a best
// effort basis before the payment is dispatched.
func (s *Session) Initialize(ctx stdcontext.Context) error {
	ctx, span := tracer.Start(ctx, "Session.Initialize")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", s.sc.PaymentID))

	s.mu.Lock()
	if err := s.expectLocked(StateInitiatePayment); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	p, err := s.backend.RetrievePayment(ctx, s.sc.PaymentID)
	if err == nil && !p.Status.Known() {
		err = fmt.Errorf("unsupported payment status %q", p.Status)
	}
	if err != nil {
		s.logger.Warn("payment lookup failed", zap.Error(err))
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrSessionClosed
		}
		s.transitionLocked(StateInvalidPayment)
		s.noticeLocked(describe(err))
		s.mu.Unlock()
		s.fireError(err)
		return nil
	}

	payee := s.lookupPayee(ctx)
	s.mu.Lock()
	s.payee = payee
	s.mu.Unlock()

	return s.HandlePayment(ctx, p)
}

func (s *Session) lookupPayee(ctx stdcontext.Context) context.PayeeInfo {
	var payee context.PayeeInfo
	var g errgroup.Group
	g.Go(func() error {
		name, err := s.backend.PayeeName(ctx, s.sc.PaymentID)
		if err != nil {
			return fmt.Errorf("payee name: %w", err)
		}
		payee.Name = name
		return nil
	})
	g.Go(func() error {
		country, err := s.backend.PayeeCountry(ctx, s.sc.PaymentID)
		if err != nil {
			return fmt.Errorf("payee country: %w", err)
		}
		payee.Country = country
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("payee lookup failed", zap.Error(err))
	}
	return payee
}

// HandlePayment dispatches on p's status. Pending and Failed payments go to
// method selection with a freshly fetched method list; every other status
// goes to the result, firing OnProcessing (and starting the poller) for
// Processing and OnSucceeded for Succeeded.
func (s *Session) HandlePayment(ctx stdcontext.Context, p payment.Payment) error {
	return s.handle(ctx, p, false, 0)
}

func (s *Session) handle(ctx stdcontext.Context, p payment.Payment, fromPoll bool, generation uint64) error {
	ctx, span := tracer.Start(ctx, "Session.HandlePayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", s.sc.PaymentID),
		attribute.String("payment.status", string(p.Status)),
	)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if fromPoll && (s.renewing || generation != s.generation) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale poll result", zap.Uint64("generation", generation))
		return nil
	}
	s.stopPollLocked()
	s.stopSettleLocked()

	p = p.Clone()
	s.payment = &p
	s.secret = nil
	s.redirectURL = ""
	s.notice = nil

	if !p.Status.Known() {
		s.transitionLocked(StateInvalidPayment)
		s.mu.Unlock()
		return nil
	}

	if !p.Status.AwaitsMethod() {
		s.renewalOffered = s.offerRenewalLocked(p)
		s.transitionLocked(StatePaymentResult)
		if p.Status == payment.StatusProcessing {
			s.startPollLocked()
		}
		s.mu.Unlock()

		switch p.Status {
		case payment.StatusProcessing:
			s.fireProcessing(p)
		case payment.StatusSucceeded:
			s.fireSucceeded(p)
		}
		return nil
	}

	s.selected = nil
	s.options = nil
	s.lockedUntil = time.Time{}
	s.renewalOffered = false
	s.renewalError = false
	s.transitionLocked(StateAwaitPaymentMethodSelection)
	payee := s.payee
	s.mu.Unlock()

	methods, err := s.backend.ListPaymentMethods(ctx, s.sc.PaymentID)
	if err != nil {
		s.logger.Warn("payment method lookup failed", zap.Error(err))
		s.report(err)
		return nil
	}
	s.probeDeviceWallets(ctx, methods, p, payee)
	options := s.o.catalog.Build(ctx, methods, s.avail)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != StateAwaitPaymentMethodSelection {
		return nil
	}
	s.options = options
	return nil
}

// probeDeviceWallets runs the feasibility check of every device wallet so
// unsupported ones are hidden before the list is built.
func (s *Session) probeDeviceWallets(ctx stdcontext.Context, methods []payment.Method, p payment.Payment, payee context.PayeeInfo) {
	for _, m := range methods {
		if m.Kind() != payment.KindDeviceWallet || m.PublicKey() == "" {
			continue
		}
		actx := context.DeriveAdapterContext(s.tc, s.sc, payee, m.PublicKey(), p.Amount, p.Currency)
		if err := s.o.router.Prepare(ctx, s.avail, m, actx); err != nil {
			s.logger.Debug("device wallet not offered", zap.Error(err))
		}
	}
}

// SelectMethod picks the option at index. Direct-confirmation methods need a
// confirmation token first, scoped to the stored method when the option
// reuses one; a token failure leaves the session where it was. A token that
// already carries a stored method is submitted right away.
func (s *Session) SelectMethod(ctx stdcontext.Context, index int) error {
	ctx, span := tracer.Start(ctx, "Session.SelectMethod")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", s.sc.PaymentID),
		attribute.Int("method.index", index),
	)

	s.mu.Lock()
	if err := s.expectLocked(StateAwaitPaymentMethodSelection); err != nil {
		s.mu.Unlock()
		return err
	}
	if time.Now().Before(s.lockedUntil) {
		s.mu.Unlock()
		return ErrSelectionLocked
	}
	opt, ok := catalog.Find(s.options, index)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownMethod, index)
	}
	s.selected = opt.Method
	s.lockedUntil = time.Now().Add(s.o.cfg.SelectionLock)
	s.notice = nil
	delete(s.methodErrors, availability.Key(opt.Method))
	s.mu.Unlock()

	span.SetAttributes(attribute.String("method.kind", opt.Kind.String()))
	s.logger.Info("payment method selected",
		zap.String("kind", opt.Kind.String()),
		zap.String("type", string(opt.Type)),
		zap.Bool("stored", opt.UseStoredMethod))

	direct, ok := opt.Method.(payment.DirectMethod)
	if !ok {
		return nil
	}

	storedID := ""
	if opt.UseStoredMethod {
		storedID = direct.MethodID
	}
	secret, err := s.backend.CreateClientSecret(ctx, s.sc.PaymentID, storedID)
	if err != nil {
		s.logger.Warn("confirmation token request failed", zap.Error(err))
		s.report(err)
		return fmt.Errorf("orchestrator: requesting confirmation token: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateAwaitPaymentMethodSelection || s.selected != opt.Method {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.secret = &secret
	s.transitionLocked(StateRenderPaymentView)
	s.mu.Unlock()

	if secret.StoredShortcut() {
		return s.Submit(ctx, adapter.Submission{})
	}
	return nil
}

// Submit hands the payment view's form to the direct-confirmation adapter.
// It returns once the adapter is done.
func (s *Session) Submit(ctx stdcontext.Context, sub adapter.Submission) error {
	ctx, span := tracer.Start(ctx, "Session.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", s.sc.PaymentID))

	s.mu.Lock()
	if err := s.expectLocked(StateRenderPaymentView); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.selected == nil || s.secret == nil || s.submitting {
		s.mu.Unlock()
		return ErrInvalidState
	}
	req := s.requestLocked(s.selected)
	req.Secret = *s.secret
	req.Submission = sub
	s.submitting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()
	return s.present(ctx, req)
}

// Launch presents the selected wallet, redirect or device wallet method. It
// returns once the adapter is done, which for wallets means the payer has
// answered.
func (s *Session) Launch(ctx stdcontext.Context) error {
	ctx, span := tracer.Start(ctx, "Session.Launch")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", s.sc.PaymentID))

	s.mu.Lock()
	if err := s.expectLocked(StateAwaitPaymentMethodSelection); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.selected == nil || s.selected.Kind() == payment.KindDirect {
		s.mu.Unlock()
		return ErrInvalidState
	}
	req := s.requestLocked(s.selected)
	s.mu.Unlock()

	span.SetAttributes(attribute.String("method.kind", req.Method.Kind().String()))
	return s.present(ctx, req)
}

func (s *Session) requestLocked(m payment.Method) adapter.Request {
	var amount payment.Payment
	if s.payment != nil {
		amount = *s.payment
	}
	return adapter.Request{
		Context: context.DeriveAdapterContext(s.tc, s.sc, s.payee, m.PublicKey(), amount.Amount, amount.Currency),
		Method:  m,
		Backend: s.backend,
	}
}

// present runs the adapter until it is done, ctx ends or the session closes.
func (s *Session) present(ctx stdcontext.Context, req adapter.Request) error {
	ctx, cancel := stdcontext.WithCancel(ctx)
	defer cancel()
	stop := stdcontext.AfterFunc(s.ctx, cancel)
	defer stop()

	if err := s.o.router.Launch(ctx, s.avail, req, s); err != nil {
		if !errors.Is(err, adapter.ErrLibraryUnavailable) {
			s.logger.Warn("payment method could not be presented", zap.Error(err))
		}
		return err
	}
	return nil
}

// Confirm records a settlement outcome for the selected method. Without a
// payment and a selection, or once a result is shown, it does nothing. The
// result transition never waits for the best-effort save of the method.
// Succeeded fires OnSucceeded after the settle delay; Processing fires
// OnProcessing and starts the poller.
func (s *Session) Confirm(ctx stdcontext.Context, status payment.Status, saveMethod bool) error {
	ctx, span := tracer.Start(ctx, "Session.Confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", s.sc.PaymentID),
		attribute.String("payment.status", string(status)),
		attribute.Bool("payment.save_method", saveMethod),
	)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.payment == nil || s.selected == nil || s.state.Terminal() {
		s.mu.Unlock()
		s.logger.Debug("ignoring confirmation without a pending selection", zap.String("status", string(status)))
		return nil
	}
	s.payment.Tag(s.selected)
	s.payment.Status = status
	s.secret = nil
	p := s.payment.Clone()
	s.renewalOffered = s.offerRenewalLocked(p)
	s.transitionLocked(StatePaymentResult)
	switch status {
	case payment.StatusSucceeded:
		s.settle = time.AfterFunc(s.o.cfg.SettleDelay, func() { s.settled(p) })
	case payment.StatusProcessing:
		s.startPollLocked()
	}
	s.mu.Unlock()

	if saveMethod {
		if err := s.backend.SaveMethod(ctx, s.sc.PaymentID); err != nil {
			s.logger.Error("failed to save payment method", zap.Error(err))
			s.report(err)
		}
	}
	if status == payment.StatusProcessing {
		s.fireProcessing(p)
	}
	return nil
}

func (s *Session) settled(p payment.Payment) {
	s.mu.Lock()
	if s.closed || s.settle == nil {
		s.mu.Unlock()
		return
	}
	s.settle = nil
	s.mu.Unlock()
	s.fireSucceeded(p)
}

// RenewPayment asks the backend for a fresh attempt of a stalled redirect
// payment and dispatches the result. A failure only raises the renewal
// error flag; the result view stays as it is.
func (s *Session) RenewPayment(ctx stdcontext.Context) error {
	ctx, span := tracer.Start(ctx, "Session.RenewPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", s.sc.PaymentID))

	s.mu.Lock()
	if err := s.expectLocked(StatePaymentResult); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.renewalOffered || s.renewing {
		s.mu.Unlock()
		return ErrRenewalNotOffered
	}
	s.renewing = true
	s.renewalError = false
	s.stopPollLocked()
	s.mu.Unlock()

	p, err := s.backend.RenewRedirectPayment(ctx, s.sc.PaymentID)

	s.mu.Lock()
	s.renewing = false
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err != nil {
		s.renewalError = true
		n := describe(err)
		s.recordLocked(s.state, s.state, &n)
		if s.payment != nil && s.payment.Status == payment.StatusProcessing {
			s.startPollLocked()
		}
		s.mu.Unlock()
		s.logger.Warn("payment renewal failed", zap.Error(err))
		return fmt.Errorf("orchestrator: renewing payment: %w", err)
	}
	s.mu.Unlock()

	s.logger.Info("payment renewed", zap.String("status", string(p.Status)))
	return s.HandlePayment(ctx, p)
}

// GoBack leaves the payment view for the method list, dropping the
// confirmation token. The method list is not fetched again. It is refused
// while a submission is with the provider.
func (s *Session) GoBack() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expectLocked(StateRenderPaymentView); err != nil {
		return err
	}
	if s.submitting {
		return fmt.Errorf("%w: submission in progress", ErrInvalidState)
	}
	s.secret = nil
	s.selected = nil
	s.lockedUntil = time.Time{}
	s.transitionLocked(StateAwaitPaymentMethodSelection)
	return nil
}

// ReportError surfaces err through the generic error channel.
func (s *Session) ReportError(err error) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	s.report(err)
	return nil
}

// Close tears the session down: the poller, a pending success callback and
// any adapter still waiting for the payer are canceled. Results arriving
// afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopPollLocked()
	s.stopSettleLocked()
	state := s.state
	s.mu.Unlock()

	s.cancel()
	s.o.interactions.Discard(s.sc.SessionID)
	s.o.forget(s.sc.SessionID)
	s.logger.Info("checkout closed", zap.String("state", string(state)))
}

// MethodSelected implements processor.Sink.
func (s *Session) MethodSelected(m payment.Method) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state.Terminal() {
		return
	}
	s.selected = m
	s.lockedUntil = time.Now().Add(s.o.cfg.SelectionLock)
}

// Confirmed implements processor.Sink.
func (s *Session) Confirmed(status payment.Status, saveMethod bool) {
	if err := s.Confirm(s.ctx, status, saveMethod); err != nil {
		s.logger.Debug("confirmation dropped", zap.Error(err))
	}
}

// AdapterError implements processor.Sink. The error is shown next to m.
func (s *Session) AdapterError(m payment.Method, err error) {
	n := describe(err)
	if m.Kind() == payment.KindRedirect {
		n = payment.Notice{Message: n.Message, Text: payment.RedirectMethodErrorText}
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.methodErrors[availability.Key(m)] = n
	s.recordLocked(s.state, s.state, &n)
	s.mu.Unlock()
	s.fireError(err)
}

// Redirect implements processor.Sink.
func (s *Session) Redirect(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.redirectURL = url
}

// Canceled implements processor.Sink. The payer is back at the method list.
func (s *Session) Canceled(m payment.Method) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != StateAwaitPaymentMethodSelection {
		return
	}
	s.selected = nil
	s.lockedUntil = time.Time{}
	s.logger.Info("payer canceled", zap.String("kind", m.Kind().String()))
}

func (s *Session) expectLocked(want State) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state != want {
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, s.state, want)
	}
	return nil
}

func (s *Session) transitionLocked(to State) {
	from := s.state
	s.state = to
	stateTransitions.WithLabelValues(string(from), string(to)).Inc()
	s.logger.Info("checkout state transition", zap.String("from", string(from)), zap.String("to", string(to)))
	s.recordLocked(from, to, nil)
}

func (s *Session) recordLocked(from, to State, n *payment.Notice) {
	e := reporting.TransitionEntry{
		SessionID: s.sc.SessionID,
		PaymentID: s.sc.PaymentID,
		From:      string(from),
		To:        string(to),
	}
	if s.payment != nil {
		e.Status = string(s.payment.Status)
		e.Amount = payment.MinorUnits(s.payment.Amount)
		e.Currency = s.payment.Currency
		e.Provider = string(s.payment.Provider)
	}
	if n != nil {
		e.ErrorCode = n.Message
		if n.Known {
			e.ErrorCode = string(n.Code)
		}
		e.ErrorMessage = n.Text
	}
	s.o.journal.Record(e)
}

func (s *Session) noticeLocked(n payment.Notice) {
	s.notice = &n
	s.recordLocked(s.state, s.state, &n)
}

func (s *Session) report(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.noticeLocked(describe(err))
	s.mu.Unlock()
	s.fireError(err)
}

func (s *Session) offerRenewalLocked(p payment.Payment) bool {
	d, err := s.o.policy.Evaluate(p)
	if err != nil {
		s.logger.Warn("renewal policy evaluation failed", zap.Error(err))
		return false
	}
	return d.OfferRenewal
}

func (s *Session) startPollLocked() {
	s.stopPollLocked()
	id := s.sc.PaymentID
	fetch := func(ctx stdcontext.Context) (payment.Payment, error) {
		return s.backend.RetrievePayment(ctx, id)
	}
	s.poll = s.o.poller.Start(s.ctx, s.generation, fetch, func(p payment.Payment, generation uint64) {
		if err := s.handle(s.ctx, p, true, generation); err != nil {
			s.logger.Debug("poll result dropped", zap.Error(err))
		}
	})
}

// stopPollLocked cancels the running poll and invalidates its in-flight tick.
func (s *Session) stopPollLocked() {
	s.generation++
	if s.poll != nil {
		s.poll.Stop()
		s.poll = nil
	}
}

func (s *Session) stopSettleLocked() {
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
}

func (s *Session) fireSucceeded(p payment.Payment) {
	if s.callbacks.OnSucceeded != nil {
		s.callbacks.OnSucceeded(p)
	}
}

func (s *Session) fireProcessing(p payment.Payment) {
	if s.callbacks.OnProcessing != nil {
		s.callbacks.OnProcessing(p)
	}
}

func (s *Session) fireError(err error) {
	if s.callbacks.OnError != nil {
		s.callbacks.OnError(err)
	}
}

func describe(err error) payment.Notice {
	return payment.DescribeError(backend.Message(err))
}
