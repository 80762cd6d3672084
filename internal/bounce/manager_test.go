package bounce

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewEngineManager(t *testing.T) {
	em := NewEngineManager()
	if em == nil {
		t.Fatal("NewEngineManager returned nil")
	}
	if len(em.ListEngines()) != 0 {
		t.Errorf("Expected no engines, got %d", len(em.ListEngines()))
	}
}

func TestEngineManager_CreateEngine(t *testing.T) {
	em := NewEngineManager(WithSeed(1))

	engine, err := em.CreateEngine("sim-1", fixtureField, DefaultConfig())
	if err != nil {
		t.Fatalf("Expected no error creating engine, got: %v", err)
	}

	got, exists := em.GetEngine("sim-1")
	if !exists {
		t.Fatal("Expected engine to exist after creation")
	}
	if got != engine {
		t.Error("GetEngine returned a different engine")
	}
	if engine.ID() != "sim-1" {
		t.Errorf("Expected ID 'sim-1', got '%s'", engine.ID())
	}
}

func TestEngineManager_CreateEngine_Duplicate(t *testing.T) {
	em := NewEngineManager()

	if _, err := em.CreateEngine("sim", fixtureField, DefaultConfig()); err != nil {
		t.Fatalf("Expected no error creating first engine, got: %v", err)
	}

	_, err := em.CreateEngine("sim", fixtureField, DefaultConfig())
	if !errors.Is(err, ErrSimulationExists) {
		t.Errorf("Expected ErrSimulationExists, got %v", err)
	}
}

func TestEngineManager_CreateEngine_GeneratesID(t *testing.T) {
	em := NewEngineManager()

	a, err := em.CreateEngine("", fixtureField, DefaultConfig())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	b, err := em.CreateEngine("", fixtureField, DefaultConfig())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("Expected distinct generated IDs, got %q and %q", a.ID(), b.ID())
	}
}

func TestEngineManager_CreateEngine_InvalidSetup(t *testing.T) {
	em := NewEngineManager()

	_, err := em.CreateEngine("bad", Field{Width: 10, Height: 10}, DefaultConfig())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if _, exists := em.GetEngine("bad"); exists {
		t.Error("Invalid engine should not be registered")
	}
}

func TestEngineManager_DeleteEngine(t *testing.T) {
	em := NewEngineManager()
	engine, _ := em.CreateEngine("sim", fixtureField, DefaultConfig())
	engine.Start(time.Millisecond)

	if err := em.DeleteEngine("sim"); err != nil {
		t.Fatalf("Expected no error deleting engine, got: %v", err)
	}
	if engine.Running() {
		t.Error("Expected engine to be stopped after delete")
	}
	if _, exists := em.GetEngine("sim"); exists {
		t.Error("Expected engine to be gone after delete")
	}

	if err := em.DeleteEngine("sim"); !errors.Is(err, ErrSimulationNotFound) {
		t.Errorf("Expected ErrSimulationNotFound, got %v", err)
	}
}

func TestEngineManager_ListEnginesSorted(t *testing.T) {
	em := NewEngineManager()
	for _, id := range []SimulationID{"c", "a", "b"} {
		if _, err := em.CreateEngine(id, fixtureField, DefaultConfig()); err != nil {
			t.Fatal(err)
		}
	}

	ids := em.ListEngines()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("Expected [a b c], got %v", ids)
	}
}

func TestEngineManager_StopAll(t *testing.T) {
	em := NewEngineManager()
	a, _ := em.CreateEngine("a", fixtureField, DefaultConfig())
	b, _ := em.CreateEngine("b", fixtureField, DefaultConfig())
	a.Start(time.Millisecond)
	b.Start(time.Millisecond)

	em.StopAll()

	if a.Running() || b.Running() {
		t.Error("Expected all engines to be stopped")
	}
	if len(em.ListEngines()) != 2 {
		t.Error("StopAll should keep engines registered")
	}
}

func TestEngineManager_Concurrent(t *testing.T) {
	em := NewEngineManager()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine, err := em.CreateEngine("", fixtureField, DefaultConfig())
			if err != nil {
				t.Errorf("CreateEngine failed: %v", err)
				return
			}
			engine.Step()
			_ = em.ListEngines()
		}()
	}
	wg.Wait()

	if got := len(em.ListEngines()); got != 10 {
		t.Errorf("Expected 10 engines, got %d", got)
	}
}
