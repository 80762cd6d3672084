package bounce

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrSimulationExists is returned when creating a simulation whose id is taken.
	ErrSimulationExists = errors.New("simulation already exists")
	// ErrSimulationNotFound is returned for unknown simulation ids.
	ErrSimulationNotFound = errors.New("simulation not found")
)

// EngineManager manages multiple engines, each isolated from the others
type EngineManager struct {
	mu       sync.RWMutex
	engines  map[SimulationID]*Engine
	defaults []EngineOption
	logger   Logger
}

// NewEngineManager creates a new engine manager. The options are applied to
// every engine it creates, before the per-engine options.
func NewEngineManager(defaults ...EngineOption) *EngineManager {
	return NewEngineManagerWithLogger(NewNoOpLogger(), defaults...)
}

// NewEngineManagerWithLogger creates an engine manager whose engines log to logger.
func NewEngineManagerWithLogger(logger Logger, defaults ...EngineOption) *EngineManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &EngineManager{
		engines:  make(map[SimulationID]*Engine),
		defaults: append([]EngineOption{WithLogger(logger)}, defaults...),
		logger:   logger,
	}
}

// CreateEngine creates a new engine. An empty id gets a random one.
// Returns ErrSimulationExists if an engine with that id already exists.
func (em *EngineManager) CreateEngine(id SimulationID, field Field, cfg Config, opts ...EngineOption) (*Engine, error) {
	if id == "" {
		id = NewSimulationID()
	}

	em.mu.Lock()
	defer em.mu.Unlock()

	if _, exists := em.engines[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSimulationExists, id)
	}

	all := make([]EngineOption, 0, len(em.defaults)+len(opts))
	all = append(all, em.defaults...)
	all = append(all, opts...)

	engine, err := NewEngine(id, field, cfg, all...)
	if err != nil {
		return nil, err
	}
	em.engines[id] = engine
	return engine, nil
}

// GetEngine retrieves an engine by ID
func (em *EngineManager) GetEngine(id SimulationID) (*Engine, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	engine, exists := em.engines[id]
	return engine, exists
}

// DeleteEngine stops and removes an engine by ID
func (em *EngineManager) DeleteEngine(id SimulationID) error {
	em.mu.Lock()
	engine, exists := em.engines[id]
	if exists {
		delete(em.engines, id)
	}
	em.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrSimulationNotFound, id)
	}

	// Stop outside the manager lock, it waits for the tick loop to exit
	engine.Stop()
	em.logger.Infof("simulation deleted: sim_id=%s", id)
	return nil
}

// ListEngines returns the sorted ids of all engines
func (em *EngineManager) ListEngines() []SimulationID {
	em.mu.RLock()
	defer em.mu.RUnlock()

	ids := make([]SimulationID, 0, len(em.engines))
	for id := range em.engines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StopAll stops every running engine, keeping them registered.
func (em *EngineManager) StopAll() {
	em.mu.RLock()
	engines := make([]*Engine, 0, len(em.engines))
	for _, engine := range em.engines {
		engines = append(engines, engine)
	}
	em.mu.RUnlock()

	for _, engine := range engines {
		engine.Stop()
	}
}
