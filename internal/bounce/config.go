package bounce

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds the physics and layout parameters of a simulation.
//
// BodyRadius only drives grid placement, CollisionDiameter drives both
// overlap detection and boundary reflection. The two are independent.
type Config struct {
	TickIntervalMs       int           `json:"tick_interval_ms" yaml:"tick_interval_ms"`
	BodyRadius           float64       `json:"body_radius" yaml:"body_radius"`
	CollisionDiameter    float64       `json:"collision_diameter" yaml:"collision_diameter"`
	GridSpacing          float64       `json:"grid_spacing" yaml:"grid_spacing"`
	RowCount             int           `json:"row_count" yaml:"row_count"`
	RotationIncrementDeg float64       `json:"rotation_increment_deg" yaml:"rotation_increment_deg"`
	VelocityRange        VelocityRange `json:"velocity_range" yaml:"velocity_range"`
}

// VelocityRange bounds the uniform draw for each velocity component, in
// units per tick.
type VelocityRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		panic(fmt.Sprintf("bounce: parsing embedded defaults: %v", err))
	}
	return cfg
}

// LoadConfig loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate reports every invalid option at once.
func (c Config) Validate() error {
	err := &ValidationError{}

	if c.TickIntervalMs <= 0 {
		err.Add(fmt.Sprintf("tick_interval_ms must be positive, got %d", c.TickIntervalMs))
	}
	if !(c.BodyRadius > 0) {
		err.Add(fmt.Sprintf("body_radius must be positive, got %v", c.BodyRadius))
	}
	if !(c.CollisionDiameter > 0) {
		err.Add(fmt.Sprintf("collision_diameter must be positive, got %v", c.CollisionDiameter))
	}
	if !(c.GridSpacing > 0) {
		err.Add(fmt.Sprintf("grid_spacing must be positive, got %v", c.GridSpacing))
	}
	if c.RowCount <= 0 {
		err.Add(fmt.Sprintf("row_count must be positive, got %d", c.RowCount))
	}
	if math.IsNaN(c.RotationIncrementDeg) || math.IsInf(c.RotationIncrementDeg, 0) {
		err.Add("rotation_increment_deg must be finite")
	}
	vr := c.VelocityRange
	if math.IsNaN(vr.Min) || math.IsNaN(vr.Max) || math.IsInf(vr.Min, 0) || math.IsInf(vr.Max, 0) {
		err.Add("velocity_range bounds must be finite")
	} else if vr.Min > vr.Max {
		err.Add(fmt.Sprintf("velocity_range min %v is greater than max %v", vr.Min, vr.Max))
	}

	if err.HasIssues() {
		return err
	}
	return nil
}

// TickInterval is the fixed cadence of the engine loop.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// Physics returns the per-tick parameters derived from the configuration.
func (c Config) Physics() Physics {
	return Physics{
		CollisionDiameter:    c.CollisionDiameter,
		RotationIncrementDeg: c.RotationIncrementDeg,
	}
}
