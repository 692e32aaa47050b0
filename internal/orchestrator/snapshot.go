package orchestrator

import (
	"time"

	"github.com/yourorg/checkout-orchestrator/internal/catalog"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
	"github.com/yourorg/checkout-orchestrator/internal/router/availability"
)

// Dismissal is the label of the presentation surface's close button.
type Dismissal string

const (
	DismissalOK     Dismissal = "OK"
	DismissalCancel Dismissal = "Cancel"
)

// Snapshot is the renderable view of a session.
type Snapshot struct {
	SessionID string           `json:"sessionId"`
	PaymentID string           `json:"paymentId"`
	State     State            `json:"state"`
	Payment   *payment.Payment `json:"payment,omitempty"`
	Amount    string           `json:"amount,omitempty"`
	PayeeName string           `json:"payeeName,omitempty"`

	Options         []catalog.Option       `json:"options,omitempty"`
	Selected        *int                   `json:"selected,omitempty"`
	SelectionLocked bool                   `json:"selectionLocked"`
	MethodErrors    map[int]payment.Notice `json:"methodErrors,omitempty"`
	ClientSecret    string                 `json:"clientSecret,omitempty"`
	RedirectURL     string                 `json:"redirectUrl,omitempty"`

	Notice *payment.Notice `json:"notice,omitempty"`
	// RetryHint is set when the payer picks a method again after a failed attempt.
	RetryHint      bool      `json:"retryHint"`
	RenewalOffered bool      `json:"renewalOffered"`
	RenewalError   bool      `json:"renewalError"`
	Dismissal      Dismissal `json:"dismissal"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:       s.sc.SessionID,
		PaymentID:       s.sc.PaymentID,
		State:           s.state,
		PayeeName:       s.payee.Name,
		Options:         append([]catalog.Option(nil), s.options...),
		SelectionLocked: time.Now().Before(s.lockedUntil),
		RedirectURL:     s.redirectURL,
		RenewalOffered:  s.renewalOffered && s.state == StatePaymentResult,
		RenewalError:    s.renewalError,
		Dismissal:       DismissalCancel,
	}
	if s.state.Terminal() {
		snap.Dismissal = DismissalOK
	}
	if s.payment != nil {
		p := s.payment.Clone()
		snap.Payment = &p
		snap.Amount = payment.FormatAmount(p.Amount, p.Currency)
		snap.RetryHint = s.state == StateAwaitPaymentMethodSelection && p.Status == payment.StatusFailed
	}
	if s.notice != nil {
		n := *s.notice
		snap.Notice = &n
	}
	if s.secret != nil {
		snap.ClientSecret = s.secret.ClientSecret
	}
	for _, o := range s.options {
		key := availability.Key(o.Method)
		if s.selected != nil && availability.Key(s.selected) == key {
			i := o.Index
			snap.Selected = &i
		}
		if n, ok := s.methodErrors[key]; ok {
			if snap.MethodErrors == nil {
				snap.MethodErrors = make(map[int]payment.Notice)
			}
			snap.MethodErrors[o.Index] = n
		}
	}
	return snap
}
