package bounce

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Snapshot represents a point-in-time capture of an engine's state.
// It carries the physics configuration and the id counter so a restored
// engine continues exactly where the saved one stopped.
type Snapshot struct {
	SimulationID SimulationID `json:"simulation_id"`
	Tick         int64        `json:"tick"`
	Field        Field        `json:"field"`
	Config       Config       `json:"config"`
	Bodies       []Body       `json:"bodies"`
	NextID       BodyID       `json:"next_id"`
}

// ValidateSnapshot performs validation checks on a snapshot.
// It verifies that:
//   - the field and the configuration are valid
//   - NextID is at least 1
//   - all body IDs are non-zero, unique, ascending and below NextID
//   - all positions, velocities and rotations are finite
func ValidateSnapshot(snapshot Snapshot) error {
	if err := ValidateSetup(snapshot.Field, snapshot.Config); err != nil {
		return err
	}
	if snapshot.Tick < 0 {
		return fmt.Errorf("snapshot tick must not be negative, got %d", snapshot.Tick)
	}
	if snapshot.NextID < 1 {
		return fmt.Errorf("snapshot next_id must be at least 1, got %d", snapshot.NextID)
	}

	seenIDs := make(map[BodyID]struct{}, len(snapshot.Bodies))
	for i, b := range snapshot.Bodies {
		if b.ID == 0 {
			return fmt.Errorf("body at index %d has zero ID", i)
		}
		if _, exists := seenIDs[b.ID]; exists {
			return fmt.Errorf("duplicate body ID: %d", b.ID)
		}
		seenIDs[b.ID] = struct{}{}

		// Pairs are resolved in state order, which must be id order
		if i > 0 && b.ID < snapshot.Bodies[i-1].ID {
			return fmt.Errorf("body %d at index %d is out of id order", b.ID, i)
		}

		if b.ID >= snapshot.NextID {
			return fmt.Errorf("body %d is not below next_id %d", b.ID, snapshot.NextID)
		}
		if !finite(b.Position.X, b.Position.Y, b.Velocity.X, b.Velocity.Y, b.Rotation) {
			return fmt.Errorf("body %d has non-finite values", b.ID)
		}
	}

	return nil
}

// EncodeSnapshotJSON encodes a snapshot to JSON format.
func EncodeSnapshotJSON(snapshot Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from JSON format.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

// SnapshotFileName is the file name used for a simulation's snapshot.
func SnapshotFileName(id SimulationID) string {
	return string(id) + ".snapshot.json"
}

// WriteSnapshotFile writes the snapshot to path. The file is written to a
// temporary sibling first and renamed into place, so readers never observe
// a partial snapshot.
func WriteSnapshotFile(path string, snapshot Snapshot) error {
	data, err := EncodeSnapshotJSON(snapshot)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}

// ReadSnapshotFile reads, decodes and validates a snapshot file.
func ReadSnapshotFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snapshot, err := DecodeSnapshotJSON(data)
	if err != nil {
		return Snapshot{}, err
	}
	if err := ValidateSnapshot(snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot %s: %w", path, err)
	}
	return snapshot, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
