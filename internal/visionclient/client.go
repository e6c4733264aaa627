package visionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// FrameMetrics is the per-frame snapshot returned by /process_frame.
// Counts are cumulative for the running session, not deltas.
type FrameMetrics struct {
	BlinkCount         int     `json:"blink_count"`
	EyeMovementCount   int     `json:"eye_movement_count"`
	PostureChangeCount int     `json:"posture_change_count"`
	AttentivenessScore float64 `json:"attentiveness_score"`
	FacialExpression   string  `json:"facial_expression"`
}

// SessionAggregate is the whole-session result from /get_tracking_results.
// AttentivenessScore is nil when the service returned only raw counts, in
// which case the caller computes the blended score itself.
type SessionAggregate struct {
	EyeBlinks          int            `json:"eyeBlinks"`
	EyeMovements       int            `json:"eyeMovements"`
	PostureChanges     int            `json:"postureChanges"`
	AttentivenessScore *float64       `json:"attentivenessScore"`
	FacialExpressions  map[string]int `json:"facialExpressions"`
	PostureStates      map[string]int `json:"postureStates"`
	SessionData        string         `json:"sessionData"`
}

// Client calls the external attention-analysis microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool

	// mock state used when Skip is set, so sequential calls behave like a
	// real accumulating session. Guarded because frame submissions run
	// concurrently.
	mockMu     sync.Mutex
	mockFrames int
}

// New creates a client. Frame analysis can take time, so the timeout is
// generous.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Health checks whether the analysis service is reachable and responding.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("vision service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("vision service unhealthy: %s", resp.Status)
	}

	return nil
}

// Reset clears the service-side session accumulators. Must be called once
// before the first frame of a new session.
func (c *Client) Reset(ctx context.Context) error {
	if c.Skip {
		c.mockMu.Lock()
		c.mockFrames = 0
		c.mockMu.Unlock()
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/reset_tracking", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("vision service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vision service error %s: %s", resp.Status, string(bodyBytes))
	}

	return nil
}

// ProcessFrame submits one encoded frame and returns the running metrics
// snapshot for the session.
func (c *Client) ProcessFrame(ctx context.Context, frame string) (*FrameMetrics, error) {
	if c.Skip {
		c.mockMu.Lock()
		c.mockFrames++
		n := c.mockFrames
		c.mockMu.Unlock()
		return &FrameMetrics{
			BlinkCount:         n * 2,
			EyeMovementCount:   n,
			PostureChangeCount: n / 3,
			AttentivenessScore: 85,
			FacialExpression:   "focused",
		}, nil
	}
	if frame == "" {
		return nil, fmt.Errorf("frame data required")
	}

	body, _ := json.Marshal(map[string]string{"frame": frame})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/process_frame", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vision service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out FrameMetrics
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &out, nil
}

// Aggregate fetches the full session aggregate. Called once, at session
// stop, before finalization.
func (c *Client) Aggregate(ctx context.Context) (*SessionAggregate, error) {
	if c.Skip {
		c.mockMu.Lock()
		n := c.mockFrames
		c.mockMu.Unlock()
		score := 85.0
		return &SessionAggregate{
			EyeBlinks:          n * 2,
			EyeMovements:       n,
			PostureChanges:     n / 3,
			AttentivenessScore: &score,
			FacialExpressions:  map[string]int{"neutral": n / 2, "focused": n - n/2, "confused": 0, "distracted": 0},
			PostureStates:      map[string]int{"upright": n, "leaning_forward": 0, "slouching": 0, "away": 0},
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/get_tracking_results", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vision service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out SessionAggregate
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &out, nil
}
