package payment

import "fmt"

// Status is the backend-owned lifecycle state of a payment.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusSucceeded  Status = "Succeeded"
	StatusFailed     Status = "Failed"
	StatusCanceled   Status = "Canceled"
)

// ParseStatus returns the Status for s, or an error for values outside the lifecycle.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Known() {
		return "", fmt.Errorf("unsupported payment status %q", s)
	}
	return st, nil
}

// Known reports whether s is one of the five lifecycle states.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// AwaitsMethod reports whether the payer still has to pick a payment method.
// Failed payments are retryable and land here as well.
func (s Status) AwaitsMethod() bool {
	return s == StatusPending || s == StatusFailed
}

// Terminal reports whether no further settlement is expected.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusCanceled
}

func (s Status) String() string { return string(s) }

// Type tags the payment type chosen by the payer.
type Type string

const (
	TypeCards           Type = "Cards"
	TypeSepaDirectDebit Type = "SepaDirectDebit"
	TypePayPal          Type = "PayPal"
	TypePaymentRequest  Type = "PaymentRequest"
)

// Provider tags which payment provider handled the payment.
type Provider string

const (
	ProviderStripe Provider = "Stripe"
	ProviderPayPal Provider = "PayPal"
	ProviderWallee Provider = "Wallee"
)
