// Package capture produces a bounded-rate stream of encoded frames from a
// camera source, decoupled from any client render cycle.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// Device-layer failures reported when a camera cannot be acquired. The
// session stays Idle when any of these is returned from Open.
var (
	ErrAccessDenied = errors.New("capture: camera access denied")
	ErrNoCamera     = errors.New("capture: no camera found")
	ErrBusy         = errors.New("capture: camera in use")
)

// Source yields encoded frames. Frame returns ok=false while the device has
// no valid frame yet, a transient startup condition callers skip silently.
type Source interface {
	Frame() (frame string, ok bool)
	Close() error
}

// Opener acquires a camera Source. Acquisition is scoped: every exit path
// from an active session must Close the returned Source.
type Opener interface {
	Open(ctx context.Context) (Source, error)
}

// PushSource buffers frames pushed by a remote client (e.g. a browser
// posting webcam captures). It reports not-ready until the first push.
type PushSource struct {
	mu     sync.Mutex
	frame  string
	ready  bool
	closed bool
}

// NewPushSource creates an empty push buffer.
func NewPushSource() *PushSource {
	return &PushSource{}
}

// Push stores the most recent client frame.
func (p *PushSource) Push(frame string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.frame = frame
	p.ready = true
}

// Frame returns the latest pushed frame.
func (p *PushSource) Frame() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.ready {
		return "", false
	}
	return p.frame, true
}

func (p *PushSource) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close releases the buffer; further pushes are dropped.
func (p *PushSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.ready = false
	p.frame = ""
	return nil
}

// PushOpener hands out a fresh PushSource per session and exposes the
// current one so an API handler can feed it.
type PushOpener struct {
	mu      sync.Mutex
	current *PushSource
}

// NewPushOpener creates a push-based camera opener.
func NewPushOpener() *PushOpener {
	return &PushOpener{}
}

// Open acquires a new push buffer for the starting session.
func (o *PushOpener) Open(_ context.Context) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil && !o.current.isClosed() {
		return nil, ErrBusy
	}
	o.current = NewPushSource()
	return o.current, nil
}

// Current returns the active push buffer, or nil outside a session.
func (o *PushOpener) Current() *PushSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.isClosed() {
		return nil
	}
	return o.current
}

// HTTPCamera grabs JPEG snapshots from an IP-camera endpoint (e.g. an
// Android IP Webcam /shot.jpg URL) and encodes them as data URLs.
type HTTPCamera struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	closed bool
}

// OpenHTTPCamera probes the snapshot URL and maps device failures to typed
// errors: 401/403 access denied, connection refused no camera, 409/423 busy.
func OpenHTTPCamera(ctx context.Context, url string) (*HTTPCamera, error) {
	cam := &HTTPCamera{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
	if _, err := cam.grab(ctx); err != nil {
		return nil, err
	}
	return cam, nil
}

func (c *HTTPCamera) grab(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		var netErr *net.OpError
		if errors.As(err, &netErr) {
			return "", fmt.Errorf("%w: %s", ErrNoCamera, c.url)
		}
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: %s", ErrAccessDenied, resp.Status)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusLocked:
		return "", fmt.Errorf("%w: %s", ErrBusy, resp.Status)
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("camera snapshot failed: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Frame grabs the current snapshot. Transient grab failures report
// not-ready rather than erroring; the loop will retry on the next tick.
func (c *HTTPCamera) Frame() (string, bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", false
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	frame, err := c.grab(ctx)
	if err != nil || frame == "" {
		return "", false
	}
	return frame, true
}

// Close releases the camera.
func (c *HTTPCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// HTTPCameraOpener opens HTTPCamera sources for a fixed snapshot URL.
type HTTPCameraOpener struct {
	URL string
}

// Open acquires the camera, probing it once.
func (o HTTPCameraOpener) Open(ctx context.Context) (Source, error) {
	if o.URL == "" {
		return nil, ErrNoCamera
	}
	return OpenHTTPCamera(ctx, o.URL)
}
