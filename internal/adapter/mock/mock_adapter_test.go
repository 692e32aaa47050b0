package mock

import (
	stdcontext "context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

func collect(ch <-chan adapter.Event) []adapter.Event {
	var out []adapter.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestMockAdapter_Defaults(t *testing.T) {
	m := NewMockAdapter("mock-direct", payment.KindDirect)
	assert.Equal(t, "mock-direct", m.GetName())
	assert.Equal(t, payment.KindDirect, m.Kind())
	require.NoError(t, m.Initialize(stdcontext.Background(), context.AdapterContext{}))

	events := collect(m.Present(stdcontext.Background(), adapter.Request{}))
	require.Len(t, events, 1)
	assert.Equal(t, adapter.Confirmed(payment.StatusSucceeded, false), events[0])
}

func TestMockAdapter_Hooks(t *testing.T) {
	m := NewMockAdapter("mock-wallet", payment.KindWallet)
	m.InitializeFunc = func(stdcontext.Context, context.AdapterContext) error { return adapter.ErrUnsupported }
	m.PresentFunc = func(_ stdcontext.Context, req adapter.Request) []adapter.Event {
		assert.Equal(t, "pay_1", req.Context.PaymentID)
		return []adapter.Event{{Type: adapter.EventSelected}, {Type: adapter.EventCanceled}}
	}

	err := m.Initialize(stdcontext.Background(), context.AdapterContext{})
	assert.True(t, errors.Is(err, adapter.ErrUnsupported))

	events := collect(m.Present(stdcontext.Background(), adapter.Request{Context: context.AdapterContext{PaymentID: "pay_1"}}))
	require.Len(t, events, 2)
	assert.Equal(t, adapter.EventSelected, events[0].Type)
	assert.Equal(t, adapter.EventCanceled, events[1].Type)
}

func TestMockAdapter_StopsOnCancel(t *testing.T) {
	m := NewMockAdapter("mock", payment.KindDirect)
	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	cancel()
	events := collect(m.Present(ctx, adapter.Request{}))
	assert.LessOrEqual(t, len(events), 1)
}
