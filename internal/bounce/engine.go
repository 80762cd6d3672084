package bounce

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"
)

// SimulationID is a unique identifier for a simulation
type SimulationID string

// ErrNoSnapshotDir is returned when persistence is requested on an engine
// without a snapshot directory.
var ErrNoSnapshotDir = errors.New("snapshot directory not configured")

// ErrSnapshotMismatch is returned when a snapshot file belongs to another simulation.
var ErrSnapshotMismatch = errors.New("snapshot belongs to another simulation")

// Engine drives one simulation state at a fixed tick rate. The state has a
// single writer (Step) and any number of readers, which always receive a
// copy of the last complete frame.
type Engine struct {
	mu      sync.RWMutex
	id      SimulationID
	cfg     Config
	physics Physics
	state   State
	nextID  BodyID
	frame   Frame
	rand    *rand.Rand

	logger        Logger
	notifications *NotificationManager
	snapshotDir   string
	snapshotEvery int64

	stopCh    chan struct{}
	doneCh    chan struct{}
	isRunning bool
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithRand sets the random source used for velocities and rotations.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) {
		if rng != nil {
			e.rand = rng
		}
	}
}

// WithSeed seeds the random source, making velocities and rotations reproducible.
func WithSeed(seed int64) EngineOption {
	return WithRand(rand.New(rand.NewSource(seed)))
}

// WithLogger sets the engine logger.
func WithLogger(logger Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithNotificationManager publishes every frame through nm.
func WithNotificationManager(nm *NotificationManager) EngineOption {
	return func(e *Engine) {
		e.notifications = nm
	}
}

// WithSnapshots enables persistence to dir, saving every n ticks when n > 0.
func WithSnapshots(dir string, everyNTicks int64) EngineOption {
	return func(e *Engine) {
		e.snapshotDir = dir
		e.snapshotEvery = everyNTicks
	}
}

// NewEngine validates the field and the configuration and lays out the
// initial grid. Configuration errors are returned here, never at tick time.
func NewEngine(id SimulationID, field Field, cfg Config, opts ...EngineOption) (*Engine, error) {
	if id == "" {
		return nil, fmt.Errorf("simulation id cannot be empty")
	}
	if err := ValidateSetup(field, cfg); err != nil {
		return nil, err
	}

	e := &Engine{
		id:      id,
		cfg:     cfg,
		physics: cfg.Physics(),
		nextID:  1,
		logger:  NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rand == nil {
		e.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e.layout(field, 0)
	e.logger.Infof("simulation created: sim_id=%s width=%v height=%v bodies=%d", id, field.Width, field.Height, len(e.state.Bodies))
	return e, nil
}

// layout replaces the state with a fresh grid. Callers hold e.mu or own e exclusively.
func (e *Engine) layout(field Field, tick int64) {
	bodies := GenerateLayout(field, e.cfg, e.rand, e.nextID)
	e.nextID += BodyID(len(bodies))
	e.state = NewState(field, bodies)
	e.state.Tick = tick
	e.frame = e.buildFrame(StepStats{})
}

func (e *Engine) buildFrame(stats StepStats) Frame {
	bodies := e.state.Snapshot()
	return Frame{
		SimulationID: e.id,
		Tick:         e.state.Tick,
		Field:        e.state.Field,
		Bodies:       bodies,
		Stats:        stats,
		Digest:       Digest(bodies),
	}
}

// ID returns the simulation id
func (e *Engine) ID() SimulationID {
	return e.id
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Field returns the current field
func (e *Engine) Field() Field {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Field
}

// Tick returns the number of ticks applied so far
func (e *Engine) Tick() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Tick
}

// Step runs exactly one tick, stores the resulting frame and publishes it.
func (e *Engine) Step() Frame {
	e.mu.Lock()
	stats := e.state.Step(e.physics)
	frame := e.buildFrame(stats)
	e.frame = frame
	nm := e.notifications
	persist := e.snapshotDir != "" && e.snapshotEvery > 0 && frame.Tick%e.snapshotEvery == 0
	e.mu.Unlock()

	if nm != nil {
		nm.Broadcast(frame)
	}
	if persist {
		if _, err := e.SaveSnapshot(); err != nil {
			e.logger.Errorf("periodic snapshot failed: sim_id=%s tick=%d error=%v", e.id, frame.Tick, err)
		}
	}
	return frame
}

// Frame returns a copy of the last complete frame.
func (e *Engine) Frame() Frame {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f := e.frame
	f.Bodies = append([]BodyState(nil), e.frame.Bodies...)
	return f
}

// Bodies returns a copy of the full body set, velocities included.
func (e *Engine) Bodies() []Body {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone().Bodies
}

// Start runs the engine in a goroutine, ticking at interval until Stop is
// called. A non-positive interval uses the configured tick interval. Start
// on a running engine does nothing; it can be called again after Stop.
func (e *Engine) Start(interval time.Duration) {
	e.start(interval)
}

// start reports whether this call launched the loop.
func (e *Engine) start(interval time.Duration) bool {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return false
	}
	if interval <= 0 {
		interval = e.cfg.TickInterval()
	}
	// New channels for this run, so the engine can be restarted after Stop
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	e.stopCh = stopCh
	e.doneCh = doneCh
	e.isRunning = true
	e.mu.Unlock()

	e.logger.Debugf("simulation started: sim_id=%s interval=%s", e.id, interval)
	go e.loop(interval, stopCh, doneCh)
	return true
}

func (e *Engine) loop(interval time.Duration, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			// Stop wins over a tick that became ready at the same time
			select {
			case <-stopCh:
				return
			default:
			}
			e.Step()
		}
	}
}

// Run ticks at the configured interval until ctx is cancelled. A loop that
// was already running when Run was called keeps running afterwards.
func (e *Engine) Run(ctx context.Context) error {
	started := e.start(0)
	<-ctx.Done()
	if started {
		e.Stop()
	}
	return nil
}

// Stop halts the tick loop and waits for it to exit. No tick fires after
// Stop returns and the last frame stays readable. Stopping an idle engine
// does nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = false
	close(e.stopCh)
	done := e.doneCh
	e.mu.Unlock()

	<-done
	e.logger.Debugf("simulation stopped: sim_id=%s", e.id)
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isRunning
}

// Resize discards all bodies and lays out a fresh grid for field. The tick
// counter and the id counter carry on, so ids from before the resize are
// never reused.
func (e *Engine) Resize(field Field) error {
	e.mu.Lock()
	if err := ValidateSetup(field, e.cfg); err != nil {
		e.mu.Unlock()
		return err
	}
	e.layout(field, e.state.Tick)
	frame := e.frame
	nm := e.notifications
	e.mu.Unlock()

	e.logger.Infof("simulation resized: sim_id=%s width=%v height=%v bodies=%d", e.id, field.Width, field.Height, len(frame.Bodies))
	if nm != nil {
		nm.Broadcast(frame)
	}
	return nil
}

// Snapshot captures the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.state.Clone()
	return Snapshot{
		SimulationID: e.id,
		Tick:         st.Tick,
		Field:        st.Field,
		Config:       e.cfg,
		Bodies:       st.Bodies,
		NextID:       e.nextID,
	}
}

// Restore replaces configuration and state with a validated snapshot.
func (e *Engine) Restore(snapshot Snapshot) error {
	if err := ValidateSnapshot(snapshot); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	bodies := make([]Body, len(snapshot.Bodies))
	copy(bodies, snapshot.Bodies)

	e.mu.Lock()
	e.cfg = snapshot.Config
	e.physics = snapshot.Config.Physics()
	e.state = NewState(snapshot.Field, bodies)
	e.state.Tick = snapshot.Tick
	e.nextID = snapshot.NextID
	e.frame = e.buildFrame(StepStats{})
	e.mu.Unlock()

	e.logger.Infof("simulation restored: sim_id=%s tick=%d bodies=%d", e.id, snapshot.Tick, len(bodies))
	return nil
}

// SnapshotPath returns where SaveSnapshot writes, or "" without a snapshot dir.
func (e *Engine) SnapshotPath() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.snapshotDir == "" {
		return ""
	}
	return filepath.Join(e.snapshotDir, SnapshotFileName(e.id))
}

// SaveSnapshot writes the current state to the snapshot directory and
// returns the file path.
func (e *Engine) SaveSnapshot() (string, error) {
	path := e.SnapshotPath()
	if path == "" {
		return "", ErrNoSnapshotDir
	}
	if err := WriteSnapshotFile(path, e.Snapshot()); err != nil {
		return "", err
	}
	return path, nil
}

// LoadSnapshot restores the engine from its snapshot file. The file must
// carry this engine's simulation id.
func (e *Engine) LoadSnapshot() error {
	path := e.SnapshotPath()
	if path == "" {
		return ErrNoSnapshotDir
	}
	snapshot, err := ReadSnapshotFile(path)
	if err != nil {
		return err
	}
	if snapshot.SimulationID != e.id {
		return fmt.Errorf("%w: file %s holds %q, engine is %q", ErrSnapshotMismatch, path, snapshot.SimulationID, e.id)
	}
	return e.Restore(snapshot)
}
