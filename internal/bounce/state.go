package bounce

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Physics holds the per-tick parameters of State.Step.
type Physics struct {
	CollisionDiameter    float64
	RotationIncrementDeg float64
}

// StepStats counts what happened during one tick.
type StepStats struct {
	Reflections int `json:"reflections"`
	Collisions  int `json:"collisions"`
}

// State is the body set of one field. It is owned by a single writer; use
// Clone or Snapshot to hand it to anyone else.
type State struct {
	Field  Field  `json:"field"`
	Bodies []Body `json:"bodies"`
	Tick   int64  `json:"tick"`
}

// NewState wraps bodies in a state at tick zero. Bodies must be in
// ascending id order; Step resolves pairs in slice order.
func NewState(field Field, bodies []Body) State {
	return State{Field: field, Bodies: bodies}
}

// Step advances the state by one tick.
//
// Every body first moves by its velocity and is reflected against the
// proposed position: a component that would take the body's collision extent
// outside the field is negated and the position is clamped back in. Then all
// unordered pairs (i, j), i < j, are checked once in ascending order and each
// overlapping pair is resolved in place, so later pairs see the effect of
// earlier ones. Finally positions pushed outside the field by a resolution
// are clamped back without touching velocities.
func (s *State) Step(p Physics) StepStats {
	var stats StepStats
	half := p.CollisionDiameter / 2

	for i := range s.Bodies {
		b := &s.Bodies[i]
		next := r2.Add(b.Position, b.Velocity)

		var flipped bool
		next.X, b.Velocity.X, flipped = reflect(next.X, b.Velocity.X, half, s.Field.Width)
		if flipped {
			stats.Reflections++
		}
		next.Y, b.Velocity.Y, flipped = reflect(next.Y, b.Velocity.Y, half, s.Field.Height)
		if flipped {
			stats.Reflections++
		}

		b.Position = next
		b.Rotation = advanceRotation(b.Rotation, p.RotationIncrementDeg)
	}

	for i := 0; i < len(s.Bodies); i++ {
		for j := i + 1; j < len(s.Bodies); j++ {
			if !Overlapping(s.Bodies[i], s.Bodies[j], p.CollisionDiameter) {
				continue
			}
			s.Bodies[i], s.Bodies[j] = Resolve(s.Bodies[i], s.Bodies[j], p.CollisionDiameter)
			stats.Collisions++
		}
	}

	for i := range s.Bodies {
		b := &s.Bodies[i]
		b.Position.X = clamp(b.Position.X, half, s.Field.Width-half)
		b.Position.Y = clamp(b.Position.Y, half, s.Field.Height-half)
	}

	s.Tick++
	return stats
}

// Snapshot returns the published tuples of every body, in id order.
func (s *State) Snapshot() []BodyState {
	out := make([]BodyState, len(s.Bodies))
	for i, b := range s.Bodies {
		out[i] = b.State()
	}
	return out
}

// Clone returns a deep copy of the state.
func (s *State) Clone() State {
	bodies := make([]Body, len(s.Bodies))
	copy(bodies, s.Bodies)
	return State{Field: s.Field, Bodies: bodies, Tick: s.Tick}
}

// reflect applies the boundary rule on one axis. It returns the possibly
// clamped position, the possibly negated velocity and whether it reflected.
func reflect(pos, vel, half, extent float64) (float64, float64, bool) {
	if pos-half < 0 || pos+half > extent {
		return clamp(pos, half, extent-half), -vel, true
	}
	return pos, vel, false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// advanceRotation adds inc degrees and wraps into [0, 360).
func advanceRotation(rot, inc float64) float64 {
	r := math.Mod(rot+inc, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r -= 360
	}
	return r
}
