package notifiers

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/daniacca/bouncefield/internal/bounce"
	"github.com/gocarina/gocsv"
)

// BodyRecord is one CSV row: a body at a given tick.
type BodyRecord struct {
	SimulationID string  `csv:"sim_id"`
	Tick         int64   `csv:"tick"`
	ID           uint64  `csv:"body_id"`
	X            float64 `csv:"x"`
	Y            float64 `csv:"y"`
	Rotation     float64 `csv:"rotation"`
}

// FrameRecords flattens a frame into one record per body.
func FrameRecords(frame bounce.Frame) []BodyRecord {
	records := make([]BodyRecord, len(frame.Bodies))
	for i, b := range frame.Bodies {
		records[i] = BodyRecord{
			SimulationID: string(frame.SimulationID),
			Tick:         frame.Tick,
			ID:           uint64(b.ID),
			X:            b.X,
			Y:            b.Y,
			Rotation:     b.Rotation,
		}
	}
	return records
}

// CSVNotifier appends one row per body per frame to a writer. The header is
// written with the first non-empty frame.
type CSVNotifier struct {
	id            string
	mu            sync.Mutex
	out           io.Writer
	closer        io.Closer
	headerWritten bool
}

// NewCSVNotifier creates a CSV notifier writing to out
func NewCSVNotifier(id string, out io.Writer) *CSVNotifier {
	return &CSVNotifier{id: id, out: out}
}

// NewCSVFileNotifier creates (or truncates) path and writes frames to it.
// The file is closed by Close.
func NewCSVFileNotifier(id, path string) (*CSVNotifier, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create csv file: %w", err)
	}
	n := NewCSVNotifier(id, f)
	n.closer = f
	return n, nil
}

// ID returns the notifier ID
func (cn *CSVNotifier) ID() string {
	return cn.id
}

// Type returns the notifier type
func (cn *CSVNotifier) Type() string {
	return "csv"
}

// Notify appends the frame's bodies
func (cn *CSVNotifier) Notify(ctx context.Context, frame bounce.Frame) error {
	return cn.Write(frame)
}

// Write appends the frame's bodies synchronously.
func (cn *CSVNotifier) Write(frame bounce.Frame) error {
	records := FrameRecords(frame)
	if len(records) == 0 {
		return nil
	}

	cn.mu.Lock()
	defer cn.mu.Unlock()

	if cn.out == nil {
		return fmt.Errorf("csv notifier %s is closed", cn.id)
	}

	if !cn.headerWritten {
		if err := gocsv.Marshal(records, cn.out); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		cn.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, cn.out); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// Close closes the underlying file, if the notifier owns one
func (cn *CSVNotifier) Close() error {
	cn.mu.Lock()
	defer cn.mu.Unlock()

	cn.out = nil
	if cn.closer == nil {
		return nil
	}
	err := cn.closer.Close()
	cn.closer = nil
	return err
}
