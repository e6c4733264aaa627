package capture

import (
	"context"
	"sync"
	"time"
)

// SubmitFunc dispatches one encoded frame, e.g. to the vision gateway.
type SubmitFunc func(ctx context.Context, frame string)

// Loop samples a Source on a fixed period and dispatches each frame
// asynchronously. A tick never waits for the previous submission, so
// multiple submissions may be in flight at once and may complete out of
// order relative to capture time.
type Loop struct {
	source   Source
	submit   SubmitFunc
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewLoop creates a capture loop. The interval is a cadence choice, not a
// correctness requirement; it defaults to one second.
func NewLoop(source Source, submit SubmitFunc, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = time.Second
	}
	return &Loop{
		source:   source,
		submit:   submit,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins ticking until Stop is called or the parent context ends.
func (l *Loop) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go l.run(ctx)
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, ok := l.source.Frame()
			if !ok {
				// Source has no valid frame yet; skip silently.
				continue
			}
			l.wg.Add(1)
			go func() {
				defer l.wg.Done()
				l.submit(ctx, frame)
			}()
		}
	}
}

// Stop cancels the ticker and waits for in-flight submissions to settle.
// Safe to call more than once. Source release belongs to the caller.
func (l *Loop) Stop() {
	l.once.Do(func() {
		if l.cancel == nil {
			return
		}
		l.cancel()
		<-l.done
		l.wg.Wait()
	})
}
