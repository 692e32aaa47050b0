package poller

import (
	stdcontext "context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

const interval = 10 * time.Millisecond

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestNew_PanicsOnNonPositiveInterval(t *testing.T) {
	assert.Panics(t, func() { New(0, nil) })
	assert.Equal(t, interval, New(interval, nil).Interval())
}

func TestPoller_SettlesOnFirstNonProcessing(t *testing.T) {
	var calls int32
	statuses := []payment.Status{payment.StatusProcessing, payment.StatusProcessing, payment.StatusSucceeded}
	fetch := func(stdcontext.Context) (payment.Payment, error) {
		n := atomic.AddInt32(&calls, 1)
		return payment.Payment{ID: "pay_1", Status: statuses[n-1]}, nil
	}

	settled := make(chan payment.Payment, 1)
	var gotGen uint64
	h := New(interval, nil).Start(stdcontext.Background(), 7, fetch, func(p payment.Payment, gen uint64) {
		gotGen = gen
		settled <- p
	})

	select {
	case p := <-settled:
		assert.Equal(t, payment.StatusSucceeded, p.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("payment never settled")
	}
	waitDone(t, h)
	assert.Equal(t, uint64(7), gotGen)
	assert.Equal(t, uint64(7), h.Generation())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "no fetch after settlement")
}

func TestPoller_ErrorsKeepPolling(t *testing.T) {
	var calls int32
	fetch := func(stdcontext.Context) (payment.Payment, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return payment.Payment{}, errors.New("backend down")
		}
		return payment.Payment{Status: payment.StatusFailed}, nil
	}
	before := testutil.ToFloat64(GetPollTicks().WithLabelValues("error"))

	settled := make(chan payment.Status, 1)
	h := New(interval, nil).Start(stdcontext.Background(), 1, fetch, func(p payment.Payment, _ uint64) { settled <- p.Status })

	select {
	case st := <-settled:
		assert.Equal(t, payment.StatusFailed, st)
	case <-time.After(2 * time.Second):
		t.Fatal("payment never settled")
	}
	waitDone(t, h)
	assert.Equal(t, before+1, testutil.ToFloat64(GetPollTicks().WithLabelValues("error")))
}

func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	fetch := func(stdcontext.Context) (payment.Payment, error) {
		once.Do(func() { close(entered) })
		<-release
		return payment.Payment{Status: payment.StatusSucceeded}, nil
	}

	var fired int32
	h := New(interval, nil).Start(stdcontext.Background(), 1, fetch, func(payment.Payment, uint64) {
		atomic.AddInt32(&fired, 1)
	})

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("poll never fetched")
	}
	h.Stop()
	h.Stop()
	close(release)
	waitDone(t, h)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestPoller_StopsWithParentContext(t *testing.T) {
	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	var calls int32
	h := New(interval, nil).Start(ctx, 1, func(stdcontext.Context) (payment.Payment, error) {
		atomic.AddInt32(&calls, 1)
		return payment.Payment{Status: payment.StatusProcessing}, nil
	}, func(payment.Payment, uint64) {})

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, 2*time.Second, time.Millisecond)
	cancel()
	waitDone(t, h)
	n := atomic.LoadInt32(&calls)
	time.Sleep(3 * interval)
	assert.Equal(t, n, atomic.LoadInt32(&calls))
}
