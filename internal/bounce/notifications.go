package bounce

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Frame is the complete, read-only state of a simulation after one tick.
// Frames are never modified once published.
type Frame struct {
	SimulationID SimulationID `json:"simulation_id"`
	Tick         int64        `json:"tick"`
	Field        Field        `json:"field"`
	Bodies       []BodyState  `json:"bodies"`
	Stats        StepStats    `json:"stats"`
	Digest       uint64       `json:"digest"`
}

// JSON returns the frame as JSON bytes
func (f Frame) JSON() ([]byte, error) {
	return json.Marshal(f)
}

// Digest hashes the ordered body tuples. Two states with the same ids,
// positions and rotations in the same order share a digest.
func Digest(bodies []BodyState) uint64 {
	h := xxhash.New()
	var buf [32]byte
	for _, b := range bodies {
		binary.LittleEndian.PutUint64(buf[0:], uint64(b.ID))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(b.X))
		binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(b.Y))
		binary.LittleEndian.PutUint64(buf[24:], math.Float64bits(b.Rotation))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// Notifier is the interface that all frame consumers must implement
type Notifier interface {
	// ID returns a unique identifier for this notifier
	ID() string

	// Type returns the type of notifier (e.g., "webhook", "websocket", "csv")
	Type() string

	// Notify delivers a frame. Returns an error if delivery fails.
	// The context can be used for cancellation and timeout.
	Notify(ctx context.Context, frame Frame) error

	// Close closes the notifier and releases any resources
	Close() error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc struct {
	id string
	fn func(ctx context.Context, frame Frame) error
}

// NewNotifierFunc wraps fn as a notifier with the given id.
func NewNotifierFunc(id string, fn func(ctx context.Context, frame Frame) error) *NotifierFunc {
	return &NotifierFunc{id: id, fn: fn}
}

func (n *NotifierFunc) ID() string   { return n.id }
func (n *NotifierFunc) Type() string { return "func" }
func (n *NotifierFunc) Close() error { return nil }

func (n *NotifierFunc) Notify(ctx context.Context, frame Frame) error {
	return n.fn(ctx, frame)
}

// notificationJob represents a job to be processed by the notification queue
type notificationJob struct {
	Frame       Frame
	NotifierIDs []string
}

// NotificationManager manages all notifiers and routes frames to them.
// Delivery happens on a single worker so frames reach each notifier in tick order.
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	jobs      chan notificationJob
	closed    bool
	wg        sync.WaitGroup
	logger    Logger
}

// NewNotificationManager creates a new notification manager
func NewNotificationManager() *NotificationManager {
	return NewNotificationManagerWithLogger(NewNoOpLogger())
}

// NewNotificationManagerWithLogger creates a notification manager that reports
// delivery failures to logger.
func NewNotificationManagerWithLogger(logger Logger) *NotificationManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	mgr := &NotificationManager{
		notifiers: make(map[string]Notifier),
		jobs:      make(chan notificationJob, 1024),
		logger:    logger,
	}
	mgr.startWorkers(1)
	return mgr
}

// RegisterNotifier registers a notifier with the manager
func (nm *NotificationManager) RegisterNotifier(notifier Notifier) error {
	if notifier == nil {
		return fmt.Errorf("notifier cannot be nil")
	}

	id := notifier.ID()
	if id == "" {
		return fmt.Errorf("notifier ID cannot be empty")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()

	if nm.closed {
		return fmt.Errorf("notification manager is closed")
	}
	if _, exists := nm.notifiers[id]; exists {
		return fmt.Errorf("notifier with ID %s already exists", id)
	}

	nm.notifiers[id] = notifier
	return nil
}

// UnregisterNotifier closes and removes a notifier from the manager
func (nm *NotificationManager) UnregisterNotifier(id string) error {
	nm.mu.Lock()
	notifier, exists := nm.notifiers[id]
	if exists {
		delete(nm.notifiers, id)
	}
	nm.mu.Unlock()

	if !exists {
		return fmt.Errorf("notifier with ID %s not found", id)
	}

	if err := notifier.Close(); err != nil {
		return fmt.Errorf("error closing notifier %s: %w", id, err)
	}
	return nil
}

// GetNotifier retrieves a notifier by ID
func (nm *NotificationManager) GetNotifier(id string) (Notifier, bool) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	notifier, exists := nm.notifiers[id]
	return notifier, exists
}

// ListNotifiers returns the sorted IDs of all registered notifiers
func (nm *NotificationManager) ListNotifiers() []string {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	ids := make([]string, 0, len(nm.notifiers))
	for id := range nm.notifiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Broadcast enqueues a frame for every registered notifier.
func (nm *NotificationManager) Broadcast(frame Frame) {
	nm.Enqueue(frame, nm.ListNotifiers())
}

// Enqueue enqueues a frame to be delivered asynchronously by the worker.
// This method is non-blocking and drops the frame if the queue is full, so a
// slow consumer never delays the tick loop.
func (nm *NotificationManager) Enqueue(frame Frame, notifierIDs []string) {
	if len(notifierIDs) == 0 {
		return
	}

	nm.mu.RLock()
	defer nm.mu.RUnlock()

	if nm.closed {
		return
	}

	select {
	case nm.jobs <- notificationJob{Frame: frame, NotifierIDs: notifierIDs}:
	default:
		nm.logger.Warnf("notification queue full, dropping frame: sim_id=%s tick=%d", frame.SimulationID, frame.Tick)
	}
}

// startWorkers starts n worker goroutines to process notification jobs
func (nm *NotificationManager) startWorkers(n int) {
	for range n {
		nm.wg.Add(1)
		go nm.worker()
	}
}

// worker processes notification jobs from the queue
func (nm *NotificationManager) worker() {
	defer nm.wg.Done()
	for job := range nm.jobs {
		nm.dispatchJob(job)
	}
}

// dispatchJob dispatches a notification job to all specified notifiers
func (nm *NotificationManager) dispatchJob(job notificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, id := range job.NotifierIDs {
		nm.notifyWithRetry(ctx, id, job.Frame)
	}
}

// notifyWithRetry attempts to deliver a frame with exponential backoff retry
func (nm *NotificationManager) notifyWithRetry(ctx context.Context, notifierID string, frame Frame) {
	nm.mu.RLock()
	notifier, ok := nm.notifiers[notifierID]
	nm.mu.RUnlock()

	if !ok {
		nm.logger.Warnf("notification failed: notifier=%s error=notifier not found", notifierID)
		return
	}

	// Frames go stale quickly, so keep the retry window short
	const maxRetries = 2
	backoff := 10 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := notifier.Notify(ctx, frame)
		if err == nil {
			return
		}

		nm.logger.Warnf("notification failed: notifier=%s attempt=%d error=%v", notifierID, attempt+1, err)

		if attempt == maxRetries {
			nm.logger.Errorf("notification failed after %d attempts: notifier=%s tick=%d", maxRetries+1, notifierID, frame.Tick)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// Notify delivers a frame to the specified notifiers synchronously.
// For async processing, use Enqueue or Broadcast instead.
func (nm *NotificationManager) Notify(ctx context.Context, frame Frame, notifierIDs []string) error {
	if len(notifierIDs) == 0 {
		return nil
	}

	var errs []error
	for _, id := range notifierIDs {
		nm.mu.RLock()
		notifier, exists := nm.notifiers[id]
		nm.mu.RUnlock()

		if !exists {
			errs = append(errs, fmt.Errorf("notifier %s not found", id))
			continue
		}

		if err := notifier.Notify(ctx, frame); err != nil {
			errs = append(errs, fmt.Errorf("notifier %s failed: %w", id, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

// Close drains the queue, stops the worker and closes all registered notifiers
func (nm *NotificationManager) Close() error {
	nm.mu.Lock()
	if nm.closed {
		nm.mu.Unlock()
		return nil
	}
	nm.closed = true
	close(nm.jobs)
	nm.mu.Unlock()

	nm.wg.Wait()

	nm.mu.Lock()
	var errs []error
	for id, notifier := range nm.notifiers {
		if err := notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing notifier %s: %w", id, err))
		}
	}
	nm.notifiers = make(map[string]Notifier)
	nm.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("errors closing notifiers: %v", errs)
	}
	return nil
}
