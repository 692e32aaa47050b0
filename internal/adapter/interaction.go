package adapter

import (
	stdcontext "context"
	"errors"
	"sync"
)

// ErrDecisionPending is returned when a decision is already queued for the key.
var ErrDecisionPending = errors.New("a payer decision is already pending")

// Decision is the payer's answer inside a provider UI that the presentation
// surface relays (wallet approval, device pay sheet).
type Decision struct {
	Approved        bool   `json:"approved"`
	PaymentMethodID string `json:"paymentMethodId,omitempty"`
	PayerName       string `json:"payerName,omitempty"`
	PayerEmail      string `json:"payerEmail,omitempty"`
}

// Interactions relays payer decisions to adapters waiting for them. Either
// side may arrive first; one decision is buffered per key. Keys are session
// ids, so two checkouts of one payment never see each other's decisions.
type Interactions struct {
	mu      sync.Mutex
	pending map[string]chan Decision
}

// NewInteractions creates an empty hub.
func NewInteractions() *Interactions {
	return &Interactions{pending: make(map[string]chan Decision)}
}

func (i *Interactions) channel(key string) chan Decision {
	i.mu.Lock()
	defer i.mu.Unlock()
	ch, ok := i.pending[key]
	if !ok {
		ch = make(chan Decision, 1)
		i.pending[key] = ch
	}
	return ch
}

// Await blocks until a decision for key arrives or ctx is done.
func (i *Interactions) Await(ctx stdcontext.Context, key string) (Decision, error) {
	ch := i.channel(key)
	defer func() {
		i.mu.Lock()
		if i.pending[key] == ch && len(ch) == 0 {
			delete(i.pending, key)
		}
		i.mu.Unlock()
	}()
	select {
	case d := <-ch:
		return d, nil
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// Resolve delivers a decision for key.
func (i *Interactions) Resolve(key string, d Decision) error {
	select {
	case i.channel(key) <- d:
		return nil
	default:
		return ErrDecisionPending
	}
}

// Discard drops any decision queued for key.
func (i *Interactions) Discard(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.pending, key)
}
