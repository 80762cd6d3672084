package bounce

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validSnapshot() Snapshot {
	return Snapshot{
		SimulationID: "snap",
		Tick:         12,
		Field:        Field{Width: 300, Height: 300},
		Config:       DefaultConfig(),
		Bodies: []Body{
			body(1, 50, 50, 1, 0),
			body(2, 150, 150, 0, -1),
		},
		NextID: 3,
	}
}

func TestValidateSnapshot_Valid(t *testing.T) {
	if err := ValidateSnapshot(validSnapshot()); err != nil {
		t.Fatalf("expected no validation error, got: %v", err)
	}
}

func TestValidateSnapshot_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		wantErr string
	}{
		{"zero id", func(s *Snapshot) { s.Bodies[0].ID = 0 }, "zero ID"},
		{"duplicate id", func(s *Snapshot) { s.Bodies[1].ID = 1 }, "duplicate body ID"},
		{"id beyond counter", func(s *Snapshot) { s.NextID = 2 }, "next_id"},
		{"zero counter", func(s *Snapshot) { s.NextID = 0 }, "next_id must be at least 1"},
		{"zero counter without bodies", func(s *Snapshot) { s.Bodies = nil; s.NextID = 0 }, "next_id must be at least 1"},
		{"out of id order", func(s *Snapshot) { s.Bodies[0], s.Bodies[1] = s.Bodies[1], s.Bodies[0] }, "out of id order"},
		{"nan position", func(s *Snapshot) { s.Bodies[0].Position.X = math.NaN() }, "non-finite"},
		{"inf velocity", func(s *Snapshot) { s.Bodies[1].Velocity.Y = math.Inf(-1) }, "non-finite"},
		{"negative tick", func(s *Snapshot) { s.Tick = -1 }, "tick"},
		{"bad field", func(s *Snapshot) { s.Field.Width = 0 }, "width"},
		{"bad config", func(s *Snapshot) { s.Config.CollisionDiameter = 0 }, "collision_diameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnapshot()
			tt.mutate(&s)
			err := ValidateSnapshot(s)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidateSnapshot_EmptyBodies(t *testing.T) {
	s := validSnapshot()
	s.Bodies = nil
	s.NextID = 1
	if err := ValidateSnapshot(s); err != nil {
		t.Errorf("Expected empty snapshot with next_id 1 to be valid, got: %v", err)
	}
}

func TestSnapshotJSON(t *testing.T) {
	snapshot := validSnapshot()

	data, err := EncodeSnapshotJSON(snapshot)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeSnapshotJSON(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.Tick != snapshot.Tick || decoded.NextID != snapshot.NextID || len(decoded.Bodies) != 2 {
		t.Errorf("Decoded snapshot differs: %+v", decoded)
	}
	if decoded.Bodies[1].Velocity != snapshot.Bodies[1].Velocity {
		t.Errorf("Expected velocity %v, got %v", snapshot.Bodies[1].Velocity, decoded.Bodies[1].Velocity)
	}

	if _, err := DecodeSnapshotJSON([]byte("{not json")); err == nil {
		t.Error("Expected error decoding malformed JSON")
	}
}

func TestSnapshotFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, SnapshotFileName("snap"))

	if err := WriteSnapshotFile(path, validSnapshot()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "snap.snapshot.json" {
		t.Errorf("Expected only the snapshot file, got %v", entries)
	}

	loaded, err := ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if loaded.SimulationID != "snap" {
		t.Errorf("Expected simulation ID 'snap', got '%s'", loaded.SimulationID)
	}
}

func TestReadSnapshotFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadSnapshotFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := validSnapshot()
	bad.Bodies[1].ID = 1
	path := filepath.Join(dir, "bad.json")
	data, _ := EncodeSnapshotJSON(bad)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSnapshotFile(path); err == nil {
		t.Error("Expected validation error for duplicate IDs")
	}
}
