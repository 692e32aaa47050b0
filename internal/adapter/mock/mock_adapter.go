package mock

import (
	stdcontext "context"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

// MockAdapter is a mock implementation of the ProviderAdapter interface for testing.
type MockAdapter struct {
	Name           string
	AdapterKind    payment.Kind
	InitializeFunc func(ctx stdcontext.Context, actx context.AdapterContext) error
	// PresentFunc returns the events to emit, in order.
	PresentFunc func(ctx stdcontext.Context, req adapter.Request) []adapter.Event
}

// NewMockAdapter creates a new MockAdapter serving kind.
func NewMockAdapter(name string, kind payment.Kind) *MockAdapter {
	return &MockAdapter{Name: name, AdapterKind: kind}
}

// GetName implements the ProviderAdapter interface.
func (m *MockAdapter) GetName() string {
	return m.Name
}

// Kind implements the ProviderAdapter interface.
func (m *MockAdapter) Kind() payment.Kind {
	return m.AdapterKind
}

// Initialize calls InitializeFunc if defined, otherwise reports ready.
func (m *MockAdapter) Initialize(ctx stdcontext.Context, actx context.AdapterContext) error {
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, actx)
	}
	return nil
}

// Present emits the events from PresentFunc, or a succeeded confirmation by default.
func (m *MockAdapter) Present(ctx stdcontext.Context, req adapter.Request) <-chan adapter.Event {
	events := make(chan adapter.Event)
	go func() {
		defer close(events)
		var out []adapter.Event
		if m.PresentFunc != nil {
			out = m.PresentFunc(ctx, req)
		} else {
			out = []adapter.Event{adapter.Confirmed(payment.StatusSucceeded, false)}
		}
		for _, ev := range out {
			if !adapter.Emit(ctx, events, ev) {
				return
			}
		}
	}()
	return events
}
