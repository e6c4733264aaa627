// Package session owns the attention-tracking session lifecycle: Idle while
// nothing runs, Active while frames flow to the vision service, Finalizing
// while the aggregate is fetched, scored and persisted.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/capture"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/classroom"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/notify"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/scoring"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/visionclient"
)

// State is the machine's lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateActive     State = "active"
	StateFinalizing State = "finalizing"
)

// Gateway is the narrow client surface the machine needs from the vision
// service. *visionclient.Client satisfies it.
type Gateway interface {
	Health(ctx context.Context) error
	Reset(ctx context.Context) error
	ProcessFrame(ctx context.Context, frame string) (*visionclient.FrameMetrics, error)
	Aggregate(ctx context.Context) (*visionclient.SessionAggregate, error)
}

// Snapshot is a read-only view of the machine for display consumers.
type Snapshot struct {
	State     State                      `json:"state"`
	SessionID string                     `json:"session_id,omitempty"`
	UserID    int64                      `json:"user_id,omitempty"`
	SubjectID int64                      `json:"subject_id,omitempty"`
	StartTime time.Time                  `json:"start_time,omitempty"`
	Metrics   *visionclient.FrameMetrics `json:"metrics,omitempty"`
}

type activeSession struct {
	id        string
	userID    int64
	subjectID int64
	startTime time.Time
	source    capture.Source
	loop      *capture.Loop

	// metricsMu guards latest so in-flight frame completions never contend
	// with the machine lock during finalization.
	metricsMu sync.Mutex
	latest    *visionclient.FrameMetrics
}

func (s *activeSession) applyMetrics(m *visionclient.FrameMetrics) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	// Last completed response wins. Completions are not reordered by
	// capture time; see DESIGN.md for the open question on sequencing.
	s.latest = m
}

func (s *activeSession) metrics() *visionclient.FrameMetrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	if s.latest == nil {
		return nil
	}
	out := *s.latest
	return &out
}

// Machine coordinates one tracking session at a time for a (user, subject)
// pair. All dependencies are injected; there is no process-global state.
type Machine struct {
	gateway       Gateway
	store         classroom.Store
	opener        capture.Opener
	bus           notify.Bus
	frameInterval time.Duration

	mu      sync.Mutex
	state   State
	current *activeSession
}

// NewMachine wires a session machine. The bus may be nil when no consumer
// cares about completion events.
func NewMachine(gateway Gateway, store classroom.Store, opener capture.Opener, bus notify.Bus, frameInterval time.Duration) *Machine {
	if frameInterval <= 0 {
		frameInterval = time.Second
	}
	return &Machine{
		gateway:       gateway,
		store:         store,
		opener:        opener,
		bus:           bus,
		frameInterval: frameInterval,
		state:         StateIdle,
	}
}

// Start moves Idle → Active: validates the user's enrollment, requires a
// passing gateway health check, resets the service accumulators exactly
// once, acquires the camera and begins the capture loop. Any failure leaves
// the machine Idle with the camera released.
func (m *Machine) Start(ctx context.Context, userID, subjectID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return "", ErrSessionActive
	}

	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUnknownUser
	}
	subject, err := m.store.GetSubject(ctx, subjectID)
	if err != nil {
		return "", err
	}
	if subject == nil {
		return "", ErrUnknownSubject
	}
	enrolled, err := m.store.IsUserEnrolledInSubject(ctx, userID, subjectID)
	if err != nil {
		return "", err
	}
	if !enrolled {
		return "", ErrNotEnrolled
	}

	// Health gate comes before any session mutation: on failure the
	// accumulators are never reset and the camera is never opened.
	if err := m.gateway.Health(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if err := m.gateway.Reset(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	source, err := m.opener.Open(ctx)
	if err != nil {
		return "", err
	}

	cur := &activeSession{
		id:        uuid.NewString(),
		userID:    userID,
		subjectID: subjectID,
		startTime: time.Now().UTC(),
		source:    source,
	}
	cur.loop = capture.NewLoop(source, m.submitFrame(cur), m.frameInterval)
	cur.loop.Start(context.Background())

	m.current = cur
	m.state = StateActive
	log.Printf("session %s started for user %d subject %d", cur.id, userID, subjectID)
	return cur.id, nil
}

// submitFrame builds the capture loop's dispatch callback. A single frame
// failure never aborts the session: it is logged and the last-known metrics
// snapshot is retained.
func (m *Machine) submitFrame(cur *activeSession) capture.SubmitFunc {
	return func(ctx context.Context, frame string) {
		metrics, err := m.gateway.ProcessFrame(ctx, frame)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("session %s: frame submission failed: %v", cur.id, err)
			}
			framesFailed.Inc()
			return
		}
		framesSubmitted.Inc()
		cur.applyMetrics(metrics)
	}
}

// Stop runs Active → Finalizing → Idle: the capture loop halts, the camera
// is released on every path, the aggregate is fetched and scored, and the
// TrackingResult is persisted. Aggregate or persistence failures are
// surfaced to the caller because they mean the session's data did not reach
// durable storage; the machine still returns to Idle.
func (m *Machine) Stop(ctx context.Context) (*classroom.TrackingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive || m.current == nil {
		return nil, ErrNoActiveSession
	}

	cur := m.current
	m.state = StateFinalizing
	m.current = nil
	defer func() { m.state = StateIdle }()

	cur.loop.Stop()
	if err := cur.source.Close(); err != nil {
		log.Printf("session %s: camera release failed: %v", cur.id, err)
	}
	endTime := time.Now().UTC()

	agg, err := m.gateway.Aggregate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAggregateFetch, err)
	}

	result, err := scoring.BuildResult(cur.userID, cur.subjectID, cur.startTime, endTime, agg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	saved, err := m.store.SaveTrackingResult(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	sessionsCompleted.Inc()
	lastScore.Set(saved.AttentivenessScore)

	if m.bus != nil {
		if err := m.bus.Publish(ctx, notify.Completion{UserID: cur.userID, SubjectID: cur.subjectID}); err != nil {
			log.Printf("session %s: completion publish failed: %v", cur.id, err)
		}
	}

	log.Printf("session %s completed: score %.1f, %d blinks, %d eye movements, %d posture changes",
		cur.id, saved.AttentivenessScore, saved.EyeBlinkCount, saved.EyeMovementCount, saved.PostureChangeCount)
	return saved, nil
}

// Snapshot returns the machine state and the most recently completed frame
// metrics.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{State: m.state}
	if m.current != nil {
		snap.SessionID = m.current.id
		snap.UserID = m.current.userID
		snap.SubjectID = m.current.subjectID
		snap.StartTime = m.current.startTime
		snap.Metrics = m.current.metrics()
	}
	return snap
}

// Close is the best-effort teardown path: if a session is Active the loop
// stops and the camera is released, but no aggregate is fetched and nothing
// is persisted.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.loop.Stop()
		if err := m.current.source.Close(); err != nil {
			log.Printf("session %s: camera release failed on teardown: %v", m.current.id, err)
		}
		log.Printf("session %s abandoned on teardown, result not persisted", m.current.id)
		m.current = nil
	}
	m.state = StateIdle
}
