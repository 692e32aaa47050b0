package context

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayeeInfo holds the display-only payee attributes resolved at session start.
type PayeeInfo struct {
	Name    string
	Country string
}

// AdapterContext is derived by the orchestrator for each adapter invocation.
type AdapterContext struct {
	TraceID   string    // Taken directly from TraceContext
	SpanID    string    // Span for this invocation
	StartTime time.Time // When the invocation began

	// SessionID keys the interactive state an adapter parks for the payer.
	SessionID string
	PaymentID string
	Language  Language
	ReturnURL string
	CancelURL string

	// Credential is the method's public key for the provider's client library.
	Credential string
	Amount     decimal.Decimal
	Currency   string
	Payee      PayeeInfo
}

// DeriveAdapterContext creates an AdapterContext from the session-wide contexts.
func DeriveAdapterContext(tc TraceContext, sc SessionContext, payee PayeeInfo, credential string, amount decimal.Decimal, currency string) AdapterContext {
	return AdapterContext{
		TraceID:    tc.TraceID,
		SpanID:     tc.NewSpan(),
		StartTime:  time.Now(),
		SessionID:  sc.SessionID,
		PaymentID:  sc.PaymentID,
		Language:   sc.Language,
		ReturnURL:  sc.ReturnURL,
		CancelURL:  sc.CancelURL,
		Credential: credential,
		Amount:     amount,
		Currency:   currency,
		Payee:      payee,
	}
}
