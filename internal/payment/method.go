package payment

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which adapter family handles a payment method.
type Kind int

const (
	// KindDirect confirms in an embedded form with a backend-issued token (cards, SEPA debit).
	KindDirect Kind = iota + 1
	// KindWallet hands the payer to a wallet script (PayPal).
	KindWallet
	// KindRedirect hands page control to a lightbox/redirect provider (Wallee).
	KindRedirect
	// KindDeviceWallet uses an on-device payment sheet and is feasibility-gated.
	KindDeviceWallet
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindWallet:
		return "wallet"
	case KindRedirect:
		return "redirect"
	case KindDeviceWallet:
		return "device_wallet"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Method is one entry of the payment-method catalog. Exactly one of the
// variant types below implements it.
type Method interface {
	Kind() Kind
	Provider() Provider
	PaymentType() Type
	// PublicKey is the credential needed to initialize the provider's client library.
	PublicKey() string
	isMethod()
}

// DirectMethod is a card or bank-debit method. A method with Last4Digits is
// stored on the payer and can be reused through MethodID.
type DirectMethod struct {
	Type        Type
	Last4Digits string
	MethodID    string
	Key         string
}

func (DirectMethod) Kind() Kind { return KindDirect }
func (DirectMethod) Provider() Provider { return ProviderStripe }
func (m DirectMethod) PaymentType() Type { return m.Type }
func (m DirectMethod) PublicKey() string { return m.Key }
func (DirectMethod) isMethod() {}

// Stored reports whether the method was saved by the payer earlier.
func (m DirectMethod) Stored() bool { return m.Last4Digits != "" }

// WalletMethod is a PayPal-style wallet.
type WalletMethod struct {
	Type Type
	Key  string
}

func (WalletMethod) Kind() Kind { return KindWallet }
func (WalletMethod) Provider() Provider { return ProviderPayPal }
func (m WalletMethod) PaymentType() Type {
	if m.Type == "" {
		return TypePayPal
	}
	return m.Type
}
func (m WalletMethod) PublicKey() string { return m.Key }
func (WalletMethod) isMethod() {}

// RedirectMethod is a lightbox/redirect provider method.
type RedirectMethod struct {
	Type Type
	Key  string
}

func (RedirectMethod) Kind() Kind { return KindRedirect }
func (RedirectMethod) Provider() Provider { return ProviderWallee }
func (m RedirectMethod) PaymentType() Type { return m.Type }
func (m RedirectMethod) PublicKey() string { return m.Key }
func (RedirectMethod) isMethod() {}

// DeviceWalletMethod is a platform pay sheet confirmed through the card processor.
type DeviceWalletMethod struct {
	Key string
}

func (DeviceWalletMethod) Kind() Kind { return KindDeviceWallet }
func (DeviceWalletMethod) Provider() Provider { return ProviderStripe }
func (DeviceWalletMethod) PaymentType() Type { return TypePaymentRequest }
func (m DeviceWalletMethod) PublicKey() string { return m.Key }
func (DeviceWalletMethod) isMethod() {}

type wireStripe struct {
	Type        Type   `json:"type"`
	Last4Digits string `json:"last4Digits,omitempty"`
	MethodID    string `json:"methodId,omitempty"`
}

type wireTyped struct {
	Type Type `json:"type"`
}

// wireMethod is the backend representation: optional provider descriptors of
// which exactly one is present.
type wireMethod struct {
	Stripe    *wireStripe `json:"stripe,omitempty"`
	PayPal    *wireTyped  `json:"paypal,omitempty"`
	Wallee    *wireTyped  `json:"wallee,omitempty"`
	PublicKey string      `json:"publicKey,omitempty"`
}

func (w wireMethod) decode() (Method, error) {
	present := 0
	for _, set := range []bool{w.Stripe != nil, w.PayPal != nil, w.Wallee != nil} {
		if set {
			present++
		}
	}
	if present != 1 {
		return nil, fmt.Errorf("payment method must carry exactly one provider descriptor, got %d", present)
	}
	switch {
	case w.Stripe != nil:
		if w.Stripe.Type == TypePaymentRequest {
			return DeviceWalletMethod{Key: w.PublicKey}, nil
		}
		return DirectMethod{
			Type:        w.Stripe.Type,
			Last4Digits: w.Stripe.Last4Digits,
			MethodID:    w.Stripe.MethodID,
			Key:         w.PublicKey,
		}, nil
	case w.PayPal != nil:
		return WalletMethod{Type: w.PayPal.Type, Key: w.PublicKey}, nil
	default:
		return RedirectMethod{Type: w.Wallee.Type, Key: w.PublicKey}, nil
	}
}

func encode(m Method) (wireMethod, error) {
	switch v := m.(type) {
	case DirectMethod:
		return wireMethod{Stripe: &wireStripe{Type: v.Type, Last4Digits: v.Last4Digits, MethodID: v.MethodID}, PublicKey: v.Key}, nil
	case DeviceWalletMethod:
		return wireMethod{Stripe: &wireStripe{Type: TypePaymentRequest}, PublicKey: v.Key}, nil
	case WalletMethod:
		return wireMethod{PayPal: &wireTyped{Type: v.PaymentType()}, PublicKey: v.Key}, nil
	case RedirectMethod:
		return wireMethod{Wallee: &wireTyped{Type: v.Type}, PublicKey: v.Key}, nil
	default:
		return wireMethod{}, fmt.Errorf("unknown payment method variant %T", m)
	}
}

// DecodeMethods parses the backend's ordered method list. Order is preserved.
func DecodeMethods(data []byte) ([]Method, error) {
	var wire []wireMethod
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode payment methods: %w", err)
	}
	methods := make([]Method, 0, len(wire))
	for i, w := range wire {
		m, err := w.decode()
		if err != nil {
			return nil, fmt.Errorf("payment method %d: %w", i, err)
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// EncodeMethods renders methods in the backend representation.
func EncodeMethods(methods []Method) ([]byte, error) {
	wire := make([]wireMethod, 0, len(methods))
	for _, m := range methods {
		w, err := encode(m)
		if err != nil {
			return nil, err
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}
