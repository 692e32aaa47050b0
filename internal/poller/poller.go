// Package poller re-fetches a payment left in Processing until the backend
// reports another status.
package poller

import (
	stdcontext "context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/logger"
	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

// Fetch retrieves the current payment.
type Fetch func(ctx stdcontext.Context) (payment.Payment, error)

// Settled receives the first non-Processing payment together with the
// generation the poll was started under.
type Settled func(p payment.Payment, generation uint64)

// Poller schedules reconciliation polls at a fixed interval.
type Poller struct {
	interval time.Duration
	logger   *zap.Logger
}

// New creates a Poller.
func New(interval time.Duration, l *zap.Logger) *Poller {
	if interval <= 0 {
		panic("poll interval must be positive")
	}
	return &Poller{interval: interval, logger: logger.OrNop(l)}
}

// Interval returns the polling interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Handle controls one running poll.
type Handle struct {
	generation uint64
	cancel     stdcontext.CancelFunc
	done       chan struct{}
	once       sync.Once
}

// Generation returns the generation the poll was started under.
func (h *Handle) Generation() uint64 {
	return h.generation
}

// Stop cancels the poll. It is safe to call more than once and from onSettled.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
}

// Done is closed once the poll goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start polls fetch once per interval until it returns a payment whose status
// is not Processing, then calls onSettled once. Results of a fetch that
// completes after Stop are discarded.
func (p *Poller) Start(ctx stdcontext.Context, generation uint64, fetch Fetch, onSettled Settled) *Handle {
	ctx, cancel := stdcontext.WithCancel(ctx)
	h := &Handle{generation: generation, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer h.Stop()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			pay, err := fetch(ctx)
			if ctx.Err() != nil {
				pollTicks.WithLabelValues("stale").Inc()
				return
			}
			if err != nil {
				pollTicks.WithLabelValues("error").Inc()
				p.logger.Warn("reconciliation poll failed", zap.Uint64("generation", generation), zap.Error(err))
				continue
			}
			if pay.Status == payment.StatusProcessing {
				pollTicks.WithLabelValues("processing").Inc()
				continue
			}
			pollTicks.WithLabelValues("settled").Inc()
			p.logger.Info("payment settled",
				zap.String("payment_id", pay.ID),
				zap.String("status", string(pay.Status)),
				zap.Uint64("generation", generation))
			onSettled(pay, generation)
			return
		}
	}()
	return h
}
