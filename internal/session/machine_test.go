package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/capture"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/classroom"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/notify"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/visionclient"
)

// fakeGateway scripts the vision service for tests.
type fakeGateway struct {
	mu           sync.Mutex
	healthErr    error
	aggregateErr error
	aggregate    visionclient.SessionAggregate
	resetCalls   int
	frameCalls   int
}

func (g *fakeGateway) Health(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.healthErr
}

func (g *fakeGateway) Reset(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetCalls++
	return nil
}

func (g *fakeGateway) ProcessFrame(context.Context, string) (*visionclient.FrameMetrics, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frameCalls++
	// Cumulative counts, five blinks per frame.
	return &visionclient.FrameMetrics{
		BlinkCount:       g.frameCalls * 5,
		FacialExpression: "focused",
	}, nil
}

func (g *fakeGateway) Aggregate(context.Context) (*visionclient.SessionAggregate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.aggregateErr != nil {
		return nil, g.aggregateErr
	}
	agg := g.aggregate
	agg.EyeBlinks = g.frameCalls * 5
	return &agg, nil
}

func (g *fakeGateway) frames() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.frameCalls
}

// fakeSource always has a frame ready and records its release.
type fakeSource struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSource) Frame() (string, bool) { return "data:image/jpeg;base64,Zg==", true }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOpener struct {
	mu      sync.Mutex
	source  *fakeSource
	openErr error
	opens   int
}

func (o *fakeOpener) Open(context.Context) (capture.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.opens++
	o.source = &fakeSource{}
	return o.source, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

func newTestStore(t *testing.T) *classroom.Memory {
	t.Helper()
	ctx := context.Background()
	m := classroom.NewMemory()
	for _, u := range []string{"amira", "bruno", "chen"} {
		if _, err := m.CreateUser(ctx, u, u+"@example.edu", "secret"); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	for _, code := range []string{"CS201", "CS305", "CS310"} {
		if _, err := m.CreateSubject(ctx, "Subject "+code, code, "Dr. Rao", ""); err != nil {
			t.Fatalf("seed subject: %v", err)
		}
	}
	pairs := [][2]int64{{1, 1}, {2, 3}}
	for _, p := range pairs {
		if _, err := m.EnrollUserInSubject(ctx, p[0], p[1]); err != nil {
			t.Fatalf("seed enrollment: %v", err)
		}
	}
	return m
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{}
	repo := newTestStore(t)
	opener := &fakeOpener{}
	bus := notify.NewInMemory(4)
	machine := NewMachine(gateway, repo, opener, bus, 3*time.Millisecond)

	if machine.Snapshot().State != StateIdle {
		t.Fatalf("fresh machine must be idle")
	}

	sessionID, err := machine.Start(ctx, 1, 1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if sessionID == "" {
		t.Fatalf("expected a session id")
	}
	if gateway.resetCalls != 1 {
		t.Fatalf("reset must be called exactly once per start, got %d", gateway.resetCalls)
	}

	snap := machine.Snapshot()
	if snap.State != StateActive || snap.UserID != 1 || snap.SubjectID != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// Second start must be rejected while a session is running.
	if _, err := machine.Start(ctx, 2, 3); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}

	// Three frames through the loop, cumulative counts in live metrics.
	waitFor(t, time.Second, func() bool { return gateway.frames() >= 3 })
	waitFor(t, time.Second, func() bool {
		m := machine.Snapshot().Metrics
		return m != nil && m.BlinkCount >= 15
	})

	result, err := machine.Stop(ctx)
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !opener.source.isClosed() {
		t.Fatalf("camera must be released on stop")
	}
	if machine.Snapshot().State != StateIdle {
		t.Fatalf("machine must return to idle")
	}

	// Last aggregate wins: blink total reflects every processed frame.
	if result.EyeBlinkCount != gateway.frames()*5 {
		t.Fatalf("expected blink count %d, got %d", gateway.frames()*5, result.EyeBlinkCount)
	}
	if result.AttentivenessScore < 0 || result.AttentivenessScore > 100 {
		t.Fatalf("score out of range: %v", result.AttentivenessScore)
	}
	if result.EndTime.Before(result.StartTime) {
		t.Fatalf("endTime before startTime")
	}

	// Exactly one result persisted.
	saved, err := repo.GetTrackingResultsByUserAndSubject(ctx, 1, 1)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected exactly one tracking result, got %d", len(saved))
	}

	// Completion published with the session's identity.
	events, _ := bus.Subscribe(ctx)
	select {
	case evt := <-events:
		if evt.UserID != 1 || evt.SubjectID != 1 {
			t.Fatalf("unexpected completion payload: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("completion event not delivered")
	}
}

func TestStartBlockedWhenServiceUnavailable(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{healthErr: errors.New("connection refused")}
	repo := newTestStore(t)
	opener := &fakeOpener{}
	machine := NewMachine(gateway, repo, opener, nil, time.Second)

	_, err := machine.Start(ctx, 1, 1)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if machine.Snapshot().State != StateIdle {
		t.Fatalf("machine must stay idle")
	}
	if gateway.resetCalls != 0 {
		t.Fatalf("reset must not be called when health fails")
	}
	if opener.openCount() != 0 {
		t.Fatalf("camera must not be opened when health fails")
	}

	results, _ := repo.GetTrackingResultsByUserID(ctx, 1)
	if len(results) != 0 {
		t.Fatalf("no tracking result may be created, got %d", len(results))
	}
}

func TestStartRejectsMissingEnrollment(t *testing.T) {
	ctx := context.Background()
	machine := NewMachine(&fakeGateway{}, newTestStore(t), &fakeOpener{}, nil, time.Second)

	if _, err := machine.Start(ctx, 1, 2); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled, got %v", err)
	}
	if _, err := machine.Start(ctx, 99, 1); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	if _, err := machine.Start(ctx, 1, 99); !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("expected ErrUnknownSubject, got %v", err)
	}
}

func TestStartRollsBackOnCameraFailure(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{}
	opener := &fakeOpener{openErr: capture.ErrAccessDenied}
	machine := NewMachine(gateway, newTestStore(t), opener, nil, time.Second)

	_, err := machine.Start(ctx, 1, 1)
	if !errors.Is(err, capture.ErrAccessDenied) {
		t.Fatalf("expected camera error, got %v", err)
	}
	if machine.Snapshot().State != StateIdle {
		t.Fatalf("machine must roll back to idle")
	}

	// A later start must succeed once the device is usable again.
	opener.openErr = nil
	if _, err := machine.Start(ctx, 1, 1); err != nil {
		t.Fatalf("restart after camera failure: %v", err)
	}
	machine.Close()
}

func TestStopReleasesCameraWhenAggregateFails(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{aggregateErr: errors.New("boom")}
	repo := newTestStore(t)
	opener := &fakeOpener{}
	machine := NewMachine(gateway, repo, opener, nil, 5*time.Millisecond)

	if _, err := machine.Start(ctx, 1, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, err := machine.Stop(ctx)
	if !errors.Is(err, ErrAggregateFetch) {
		t.Fatalf("expected ErrAggregateFetch, got %v", err)
	}
	if !opener.source.isClosed() {
		t.Fatalf("camera must be released even when aggregate fetch fails")
	}
	if machine.Snapshot().State != StateIdle {
		t.Fatalf("machine must still return to idle")
	}

	results, _ := repo.GetTrackingResultsByUserID(ctx, 1)
	if len(results) != 0 {
		t.Fatalf("no result may be persisted on aggregate failure, got %d", len(results))
	}
}

func TestStopSurfacesPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{}
	opener := &fakeOpener{}
	machine := NewMachine(gateway, failingStore{newTestStore(t)}, opener, nil, 5*time.Millisecond)

	if _, err := machine.Start(ctx, 1, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, err := machine.Stop(ctx)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !opener.source.isClosed() {
		t.Fatalf("camera must be released before persistence")
	}
	if machine.Snapshot().State != StateIdle {
		t.Fatalf("machine must return to idle")
	}
}

// failingStore delegates everything except the terminal write.
type failingStore struct {
	classroom.Store
}

func (failingStore) SaveTrackingResult(context.Context, classroom.TrackingResult) (*classroom.TrackingResult, error) {
	return nil, errors.New("disk full")
}

func TestStopWithoutActiveSession(t *testing.T) {
	machine := NewMachine(&fakeGateway{}, newTestStore(t), &fakeOpener{}, nil, time.Second)
	if _, err := machine.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestCloseReleasesCameraWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{}
	repo := newTestStore(t)
	opener := &fakeOpener{}
	machine := NewMachine(gateway, repo, opener, nil, 5*time.Millisecond)

	if _, err := machine.Start(ctx, 1, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	machine.Close()

	if !opener.source.isClosed() {
		t.Fatalf("teardown must release the camera")
	}
	if machine.Snapshot().State != StateIdle {
		t.Fatalf("teardown must leave the machine idle")
	}
	results, _ := repo.GetTrackingResultsByUserID(ctx, 1)
	if len(results) != 0 {
		t.Fatalf("teardown must not persist a result, got %d", len(results))
	}
	// Closing an idle machine is a no-op.
	machine.Close()
}

func TestSequentialSessionsForSamePair(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{}
	repo := newTestStore(t)
	machine := NewMachine(gateway, repo, &fakeOpener{}, nil, 5*time.Millisecond)

	for i := 0; i < 2; i++ {
		if _, err := machine.Start(ctx, 2, 3); err != nil {
			t.Fatalf("start %d failed: %v", i, err)
		}
		if _, err := machine.Stop(ctx); err != nil {
			t.Fatalf("stop %d failed: %v", i, err)
		}
	}

	results, err := repo.GetTrackingResultsByUserAndSubject(ctx, 2, 3)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two records in creation order, got %d", len(results))
	}
	if results[0].ID >= results[1].ID {
		t.Fatalf("results out of creation order: %+v", results)
	}
	latest := classroom.Latest(results)
	if latest.ID != results[1].ID {
		t.Fatalf("latest selection must pick the second session")
	}
}
