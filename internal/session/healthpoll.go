package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// HealthPoller probes the vision service on a fixed interval so callers can
// gate session starts without a blocking round trip. Probe failures are
// swallowed and surfaced only as Available() == false. The poller is bound
// to an explicit Start/Stop lifecycle; Stop cancels the timer.
type HealthPoller struct {
	gateway   Gateway
	interval  time.Duration
	available atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewHealthPoller creates a poller; the interval defaults to 10 seconds.
func NewHealthPoller(gateway Gateway, interval time.Duration) *HealthPoller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthPoller{
		gateway:  gateway,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start probes immediately, then on every interval until Stop.
func (p *HealthPoller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		defer close(p.done)
		p.probe(ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.probe(ctx)
			}
		}
	}()
}

func (p *HealthPoller) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()
	p.available.Store(p.gateway.Health(probeCtx) == nil)
}

// Available reports the last observed service availability.
func (p *HealthPoller) Available() bool {
	return p.available.Load()
}

// Stop cancels the poll timer. Safe to call more than once.
func (p *HealthPoller) Stop() {
	p.once.Do(func() {
		if p.cancel == nil {
			return
		}
		p.cancel()
		<-p.done
	})
}
