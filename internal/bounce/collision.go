package bounce

import "gonum.org/v1/gonum/spatial/r2"

// fallbackAxis separates two bodies whose centres coincide exactly.
var fallbackAxis = r2.Vec{X: 1}

// Overlapping reports whether the centres of a and b are within diameter of
// each other.
func Overlapping(a, b Body, diameter float64) bool {
	return r2.Norm(r2.Sub(b.Position, a.Position)) <= diameter
}

// Resolve separates an overlapping pair and swaps their velocities.
//
// Both bodies are pushed apart along the line between their centres by half
// the overlap each, leaving them exactly diameter apart. Coincident centres
// are pushed apart along the x axis. The full velocity vectors are exchanged,
// which is the equal-mass elastic response without splitting velocities into
// normal and tangential parts. Pairs that do not overlap are returned
// unchanged.
func Resolve(a, b Body, diameter float64) (Body, Body) {
	sep := r2.Sub(b.Position, a.Position)
	distance := r2.Norm(sep)
	if distance > diameter {
		return a, b
	}

	axis := fallbackAxis
	if distance > 0 {
		axis = r2.Scale(1/distance, sep)
	}
	push := r2.Scale((diameter-distance)/2, axis)

	a.Position = r2.Sub(a.Position, push)
	b.Position = r2.Add(b.Position, push)
	a.Velocity, b.Velocity = b.Velocity, a.Velocity

	return a, b
}
