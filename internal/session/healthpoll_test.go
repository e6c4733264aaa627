package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHealthPollerTracksAvailability(t *testing.T) {
	gateway := &fakeGateway{healthErr: errors.New("down")}
	poller := NewHealthPoller(gateway, 5*time.Millisecond)
	poller.Start(context.Background())
	defer poller.Stop()

	waitFor(t, time.Second, func() bool { return !poller.Available() })

	gateway.mu.Lock()
	gateway.healthErr = nil
	gateway.mu.Unlock()

	waitFor(t, time.Second, func() bool { return poller.Available() })
}

func TestHealthPollerStopIsIdempotent(t *testing.T) {
	poller := NewHealthPoller(&fakeGateway{}, 5*time.Millisecond)
	poller.Start(context.Background())
	poller.Stop()
	poller.Stop()

	// Stop before Start must not hang.
	idle := NewHealthPoller(&fakeGateway{}, 5*time.Millisecond)
	idle.Stop()
}
