// Package payment holds the checkout data model: the payment document owned by
// the backend, the payment-method sum type, confirmation tokens, amount
// formatting and the backend error-code taxonomy.
package payment

import "github.com/shopspring/decimal"

// Payment is the public payment document returned by the backend.
type Payment struct {
	ID          string                 `json:"uuid"`
	Amount      decimal.Decimal        `json:"amount"`
	Currency    string                 `json:"currency"`
	ProviderID  string                 `json:"providerId,omitempty"`
	Info        string                 `json:"info,omitempty"`
	Type        Type                   `json:"type,omitempty"`
	Provider    Provider               `json:"provider,omitempty"`
	Status      Status                 `json:"status"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Description string                 `json:"description,omitempty"`
	CreatedAt   string                 `json:"createdAt,omitempty"`
	PaidAt      string                 `json:"paidAt,omitempty"`
}

// Tag stamps the type and provider derived from the method the payer used.
func (p *Payment) Tag(m Method) {
	p.Type = m.PaymentType()
	p.Provider = m.Provider()
}

// Clone returns a copy that can be handed to callers without sharing the
// metadata map.
func (p Payment) Clone() Payment {
	if p.Metadata != nil {
		md := make(map[string]interface{}, len(p.Metadata))
		for k, v := range p.Metadata {
			md[k] = v
		}
		p.Metadata = md
	}
	return p
}

// ClientSecret is the confirmation token issued by the backend once a
// direct-confirmation method is chosen. PaymentMethodID is set when the token
// was scoped to a stored method; the payment view then submits without a form.
type ClientSecret struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentMethodID string `json:"paymentMethodId,omitempty"`
}

// StoredShortcut reports whether the token already carries a stored method.
func (c ClientSecret) StoredShortcut() bool {
	return c.PaymentMethodID != ""
}
