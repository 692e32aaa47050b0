package availability

import (
	"fmt"
	"sync"

	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

// State represents whether a method can be offered in the session.
type State int

const (
	Offered State = iota
	Unsupported
	LoadFailed
)

func (s State) String() string {
	switch s {
	case Offered:
		return "offered"
	case Unsupported:
		return "unsupported"
	case LoadFailed:
		return "load_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// methodState holds the current state for a single method.
type methodState struct {
	state    State
	failures int
}

// Availability tracks, for one checkout session, which methods could not be
// brought up. Unsupported is sticky: the platform will not change its mind
// within a session. A load failure may be retried.
type Availability struct {
	mu      sync.RWMutex
	methods map[string]*methodState
}

// New creates an Availability where every method is offered.
func New() *Availability {
	return &Availability{methods: make(map[string]*methodState)}
}

// Key identifies a method within a session.
func Key(m payment.Method) string {
	if d, ok := m.(payment.DirectMethod); ok && d.Stored() {
		return fmt.Sprintf("%s/%s/%s", m.Kind(), m.PaymentType(), d.MethodID)
	}
	return fmt.Sprintf("%s/%s/%s", m.Kind(), m.PaymentType(), m.PublicKey())
}

func (a *Availability) getMethodState(key string) *methodState {
	// Caller holds the write lock.
	ms, exists := a.methods[key]
	if !exists {
		ms = &methodState{state: Offered}
		a.methods[key] = ms
	}
	return ms
}

// Allow reports whether the method may be initialized.
func (a *Availability) Allow(key string) bool {
	return a.GetState(key) != Unsupported
}

// Hidden reports whether m must be left out of the catalog.
func (a *Availability) Hidden(m payment.Method) bool {
	return a.GetState(Key(m)) == Unsupported
}

// RecordUnsupported hides the method for the rest of the session.
func (a *Availability) RecordUnsupported(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.getMethodState(key).state = Unsupported
}

// RecordLoadFailure marks the method's library as unavailable.
func (a *Availability) RecordLoadFailure(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ms := a.getMethodState(key)
	if ms.state == Unsupported {
		return
	}
	ms.state = LoadFailed
	ms.failures++
}

// RecordReady marks a previously failed method as offered again.
func (a *Availability) RecordReady(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ms := a.getMethodState(key)
	if ms.state == LoadFailed {
		ms.state = Offered
	}
}

// GetState returns the current state of a method. Unknown methods are offered.
func (a *Availability) GetState(key string) State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ms, exists := a.methods[key]
	if !exists {
		return Offered
	}
	return ms.state
}

// Failures returns how often the method failed to load.
func (a *Availability) Failures(key string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if ms, ok := a.methods[key]; ok {
		return ms.failures
	}
	return 0
}
