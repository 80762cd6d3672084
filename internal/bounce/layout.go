package bounce

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
)

// GridPositions returns the deterministic candidate positions of the initial
// grid, row by row. The number of columns is floor(width/spacing); a
// candidate is kept only if a circle of bodyRadius centred on it fits inside
// the field on the right and bottom edges. Rejected candidates are dropped, so
// the result can hold fewer than rows*columns positions.
func GridPositions(field Field, bodyRadius, spacing float64, rows int) []r2.Vec {
	if !(spacing > 0) || rows <= 0 {
		return nil
	}
	columns := int(math.Floor(field.Width / spacing))
	if columns <= 0 {
		return nil
	}

	positions := make([]r2.Vec, 0, rows*columns)
	for row := 0; row < rows; row++ {
		for col := 0; col < columns; col++ {
			x := float64(col)*spacing + bodyRadius
			y := float64(row)*spacing + bodyRadius

			if x+bodyRadius <= field.Width && y+bodyRadius <= field.Height {
				positions = append(positions, r2.Vec{X: x, Y: y})
			}
		}
	}
	return positions
}

// GenerateLayout builds a fresh body set for the field. Ids are assigned
// sequentially starting at firstID. Each velocity component is drawn
// uniformly from cfg.VelocityRange and rotation uniformly from [0, 360).
func GenerateLayout(field Field, cfg Config, rng *rand.Rand, firstID BodyID) []Body {
	positions := GridPositions(field, cfg.BodyRadius, cfg.GridSpacing, cfg.RowCount)
	bodies := make([]Body, 0, len(positions))

	id := firstID
	for _, pos := range positions {
		bodies = append(bodies, Body{
			ID:       id,
			Position: pos,
			Velocity: r2.Vec{
				X: uniform(rng, cfg.VelocityRange.Min, cfg.VelocityRange.Max),
				Y: uniform(rng, cfg.VelocityRange.Min, cfg.VelocityRange.Max),
			},
			Rotation: rng.Float64() * 360,
		})
		id++
	}
	return bodies
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
