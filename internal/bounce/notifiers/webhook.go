package notifiers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/daniacca/bouncefield/internal/bounce"
)

// Headers added to every delivery, so receivers can route and deduplicate
// without decoding the body.
const (
	HeaderSimulationID = "X-Bounce-Simulation"
	HeaderTick         = "X-Bounce-Tick"
	HeaderDigest       = "X-Bounce-Digest"
)

// WebhookNotifier posts frames as JSON to a URL. It can be limited to one
// simulation and thinned to every Nth tick, since the engine ticks far
// faster than most receivers want to be called.
type WebhookNotifier struct {
	id     string
	url    string
	client *http.Client

	mu         sync.RWMutex
	headers    map[string]string
	simulation bounce.SimulationID
	every      int64
}

// NewWebhookNotifier creates a webhook notifier delivering every frame of
// every simulation.
func NewWebhookNotifier(id, url string) *WebhookNotifier {
	return &WebhookNotifier{
		id:      id,
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		headers: make(map[string]string),
		every:   1,
	}
}

// SetHeader sets a custom header to include in webhook requests
func (wn *WebhookNotifier) SetHeader(key, value string) {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	wn.headers[key] = value
}

// SetSimulation restricts deliveries to one simulation. Empty means all.
func (wn *WebhookNotifier) SetSimulation(simID bounce.SimulationID) {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	wn.simulation = simID
}

// SetEvery delivers only frames whose tick is a multiple of n. Frames at
// tick 0 (creation, resize, restore) always go out.
func (wn *WebhookNotifier) SetEvery(n int64) error {
	if n < 1 {
		return fmt.Errorf("webhook interval must be at least 1 tick, got %d", n)
	}
	wn.mu.Lock()
	defer wn.mu.Unlock()
	wn.every = n
	return nil
}

// ID returns the notifier ID
func (wn *WebhookNotifier) ID() string {
	return wn.id
}

// Type returns the notifier type
func (wn *WebhookNotifier) Type() string {
	return "webhook"
}

// URL returns the target URL
func (wn *WebhookNotifier) URL() string {
	return wn.url
}

// Accepts reports whether frame passes the simulation filter and the tick interval.
func (wn *WebhookNotifier) Accepts(frame bounce.Frame) bool {
	wn.mu.RLock()
	defer wn.mu.RUnlock()
	if wn.simulation != "" && frame.SimulationID != wn.simulation {
		return false
	}
	return frame.Tick%wn.every == 0
}

// Notify posts the frame. Frames filtered out by Accepts are skipped
// without error.
func (wn *WebhookNotifier) Notify(ctx context.Context, frame bounce.Frame) error {
	if !wn.Accepts(frame) {
		return nil
	}

	jsonData, err := frame.JSON()
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSimulationID, string(frame.SimulationID))
	req.Header.Set(HeaderTick, strconv.FormatInt(frame.Tick, 10))
	req.Header.Set(HeaderDigest, fmt.Sprintf("%016x", frame.Digest))
	wn.mu.RLock()
	for key, value := range wn.headers {
		req.Header.Set(key, value)
	}
	wn.mu.RUnlock()

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post frame %s/%d: %w", frame.SimulationID, frame.Tick, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d for frame %s/%d", resp.StatusCode, frame.SimulationID, frame.Tick)
	}
	return nil
}

// Close is a no-op; webhooks hold no connection.
func (wn *WebhookNotifier) Close() error {
	return nil
}
