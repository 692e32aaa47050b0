package adapter_test

import (
	stdcontext "context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/adapter"
	"github.com/yourorg/checkout-orchestrator/internal/adapter/mock"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

func TestMapIntentStatus(t *testing.T) {
	tests := map[string]payment.Status{
		"processing":              payment.StatusProcessing,
		"succeeded":               payment.StatusSucceeded,
		"canceled":                payment.StatusCanceled,
		"requires_payment_method": payment.StatusFailed,
		"":                        payment.StatusFailed,
	}
	for in, want := range tests {
		assert.Equal(t, want, adapter.MapIntentStatus(in), in)
	}
}

func TestPollUntil(t *testing.T) {
	t.Run("ready on third probe", func(t *testing.T) {
		var calls int32
		err := adapter.PollUntil(stdcontext.Background(), time.Millisecond, 10, func(stdcontext.Context) bool {
			return atomic.AddInt32(&calls, 1) == 3
		})
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var calls int32
		err := adapter.PollUntil(stdcontext.Background(), time.Millisecond, 10, func(stdcontext.Context) bool {
			atomic.AddInt32(&calls, 1)
			return false
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, adapter.ErrLibraryUnavailable))
		assert.Equal(t, int32(10), atomic.LoadInt32(&calls))
	})

	t.Run("unbounded until canceled", func(t *testing.T) {
		ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 20*time.Millisecond)
		defer cancel()
		err := adapter.PollUntil(ctx, time.Millisecond, 0, func(stdcontext.Context) bool { return false })
		assert.True(t, errors.Is(err, stdcontext.DeadlineExceeded))
	})
}

func TestInteractions(t *testing.T) {
	hub := adapter.NewInteractions()

	t.Run("resolve before await", func(t *testing.T) {
		require.NoError(t, hub.Resolve("pay_1", adapter.Decision{Approved: true}))
		assert.ErrorIs(t, hub.Resolve("pay_1", adapter.Decision{}), adapter.ErrDecisionPending)
		d, err := hub.Await(stdcontext.Background(), "pay_1")
		require.NoError(t, err)
		assert.True(t, d.Approved)
	})

	t.Run("await before resolve", func(t *testing.T) {
		done := make(chan adapter.Decision)
		go func() {
			d, _ := hub.Await(stdcontext.Background(), "pay_2")
			done <- d
		}()
		require.Eventually(t, func() bool {
			return hub.Resolve("pay_2", adapter.Decision{PaymentMethodID: "pm_9"}) == nil
		}, time.Second, time.Millisecond)
		select {
		case d := <-done:
			assert.Equal(t, "pm_9", d.PaymentMethodID)
		case <-time.After(time.Second):
			t.Fatal("decision was not delivered")
		}
	})

	t.Run("await honours cancellation", func(t *testing.T) {
		ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
		cancel()
		_, err := hub.Await(ctx, "pay_3")
		assert.ErrorIs(t, err, stdcontext.Canceled)
	})
}

func TestRegistry(t *testing.T) {
	direct := mock.NewMockAdapter("stripe", payment.KindDirect)
	wallet := mock.NewMockAdapter("paypal", payment.KindWallet)
	reg := adapter.NewRegistry(direct, wallet)

	a, err := reg.For(payment.DirectMethod{Type: payment.TypeCards})
	require.NoError(t, err)
	assert.Equal(t, "stripe", a.GetName())

	a, err = reg.For(payment.WalletMethod{})
	require.NoError(t, err)
	assert.Equal(t, "paypal", a.GetName())

	_, err = reg.For(payment.RedirectMethod{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no adapter registered for redirect methods")

	_, err = reg.For(nil)
	require.Error(t, err)
}
