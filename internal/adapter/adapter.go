// Package adapter defines the capability every payment provider adapter
// implements and the helpers they share. An adapter absorbs its provider's
// callback style (embedded forms, wallet scripts, lightbox redirects, device
// pay sheets) and reports back through a stream of normalized events.
package adapter

import (
	stdcontext "context"
	"errors"

	"github.com/yourorg/checkout-orchestrator/internal/backend"
	"github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

var (
	// ErrUnsupported is returned by Initialize when the platform cannot offer the method.
	ErrUnsupported = errors.New("payment method not supported on this platform")
	// ErrLibraryUnavailable is returned by Initialize when the provider library never became available.
	ErrLibraryUnavailable = errors.New("provider library unavailable")
)

// EventType enumerates what an adapter can report.
type EventType string

const (
	// EventSelected means the payer committed to the method inside the provider UI.
	EventSelected EventType = "selected"
	// EventCanceled means the payer backed out of the provider UI.
	EventCanceled EventType = "canceled"
	// EventConfirmed carries a settlement outcome.
	EventConfirmed EventType = "confirmed"
	// EventError carries a failure that should be shown inline.
	EventError EventType = "error"
	// EventRedirect carries the URL of an external page taking over the payer.
	EventRedirect EventType = "redirect"
)

// Event is one notification from an adapter.
type Event struct {
	Type        EventType
	Status      payment.Status // set for EventConfirmed
	SaveMethod  bool           // set for EventConfirmed when the payer asked to keep the method
	RedirectURL string         // set for EventRedirect
	Err         error          // set for EventError
}

// Confirmed builds a confirmation event.
func Confirmed(status payment.Status, saveMethod bool) Event {
	return Event{Type: EventConfirmed, Status: status, SaveMethod: saveMethod}
}

// Failed builds an error event.
func Failed(err error) Event {
	return Event{Type: EventError, Err: err}
}

// Submission is what the payer entered in an embedded form.
type Submission struct {
	// PaymentMethodID identifies the payment details collected by the provider element.
	PaymentMethodID string `json:"paymentMethodId"`
	SaveMethod      bool   `json:"saveMethod"`
	BillingName     string `json:"billingName"`
	BillingEmail    string `json:"billingEmail"`
}

// Backend is the part of the backend contract adapters call while presenting.
type Backend interface {
	CreateClientSecret(ctx stdcontext.Context, id, storedMethodID string) (payment.ClientSecret, error)
	CreateWalletOrder(ctx stdcontext.Context, id string) (string, error)
	CaptureWalletOrder(ctx stdcontext.Context, id string) (payment.Status, error)
	FetchRedirectURL(ctx stdcontext.Context, id string, req backend.RedirectRequest) (string, error)
}

// Request is a single presentation of a method to the payer.
type Request struct {
	Context    context.AdapterContext
	Method     payment.Method
	Secret     payment.ClientSecret // direct-confirmation methods only
	Submission Submission
	Backend    Backend
}

// ProviderAdapter is the interface implemented by each provider adapter.
type ProviderAdapter interface {
	// GetName returns the name of the provider (e.g., "stripe", "paypal").
	GetName() string
	// Kind returns the method family the adapter serves.
	Kind() payment.Kind
	// Initialize prepares the provider's client library for actx.Credential.
	// It returns ErrUnsupported or ErrLibraryUnavailable when the method cannot be offered.
	Initialize(ctx stdcontext.Context, actx context.AdapterContext) error
	// Present runs the payer interaction. The returned channel is closed when
	// the interaction is over or ctx is done.
	Present(ctx stdcontext.Context, req Request) <-chan Event
}

// Emit sends ev unless ctx is done first.
func Emit(ctx stdcontext.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// MapIntentStatus normalizes a provider intent status. Anything other than
// processing, succeeded or canceled counts as a failed payment.
func MapIntentStatus(status string) payment.Status {
	switch status {
	case "processing":
		return payment.StatusProcessing
	case "succeeded":
		return payment.StatusSucceeded
	case "canceled":
		return payment.StatusCanceled
	default:
		return payment.StatusFailed
	}
}
