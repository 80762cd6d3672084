package bounce

import "gonum.org/v1/gonum/spatial/r2"

// BodyID is a unique identifier for a body. IDs start at 1 and are never
// reused by the engine that assigned them.
type BodyID uint64

// Body is one simulated circle: where it is, how fast it moves per tick and
// its cosmetic rotation phase in degrees.
type Body struct {
	ID       BodyID  `json:"id"`
	Position r2.Vec  `json:"position"`
	Velocity r2.Vec  `json:"velocity"`
	Rotation float64 `json:"rotation"`
}

// BodyState is the read-only tuple handed to presentation code every tick.
type BodyState struct {
	ID       BodyID  `json:"id" csv:"id"`
	X        float64 `json:"x" csv:"x"`
	Y        float64 `json:"y" csv:"y"`
	Rotation float64 `json:"rotation" csv:"rotation"`
}

// State returns the published view of the body.
func (b Body) State() BodyState {
	return BodyState{
		ID:       b.ID,
		X:        b.Position.X,
		Y:        b.Position.Y,
		Rotation: b.Rotation,
	}
}
