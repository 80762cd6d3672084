package bounce

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

var testPhysics = Physics{CollisionDiameter: 70, RotationIncrementDeg: 2}

func TestStep_ReflectsOffLeftEdge(t *testing.T) {
	s := NewState(Field{Width: 300, Height: 300}, []Body{body(1, 10, 150, -3, 0)})

	stats := s.Step(testPhysics)

	assert.Equal(t, r2.Vec{X: 35, Y: 150}, s.Bodies[0].Position)
	assert.Equal(t, r2.Vec{X: 3, Y: 0}, s.Bodies[0].Velocity)
	assert.Equal(t, 1, stats.Reflections)
	assert.Equal(t, 0, stats.Collisions)
}

func TestStep_ReflectsOffRightAndBottomEdges(t *testing.T) {
	s := NewState(Field{Width: 300, Height: 200}, []Body{body(1, 270, 170, 3, 2)})

	stats := s.Step(testPhysics)

	assert.Equal(t, r2.Vec{X: 265, Y: 165}, s.Bodies[0].Position)
	assert.Equal(t, r2.Vec{X: -3, Y: -2}, s.Bodies[0].Velocity)
	assert.Equal(t, 2, stats.Reflections)
}

func TestStep_FreeFlight(t *testing.T) {
	s := NewState(Field{Width: 300, Height: 300}, []Body{body(1, 100, 100, 1.5, -0.5)})

	stats := s.Step(testPhysics)

	assert.Equal(t, r2.Vec{X: 101.5, Y: 99.5}, s.Bodies[0].Position)
	assert.Equal(t, r2.Vec{X: 1.5, Y: -0.5}, s.Bodies[0].Velocity)
	assert.Equal(t, StepStats{}, stats)
	assert.Equal(t, int64(1), s.Tick)
}

func TestStep_RotationWraps(t *testing.T) {
	b := body(1, 100, 100, 0, 0)
	b.Rotation = 359
	s := NewState(Field{Width: 300, Height: 300}, []Body{b})

	s.Step(testPhysics)
	assert.InDelta(t, 1, s.Bodies[0].Rotation, 1e-9)

	s.Step(Physics{CollisionDiameter: 70, RotationIncrementDeg: -3})
	assert.InDelta(t, 358, s.Bodies[0].Rotation, 1e-9)
}

func TestStep_PairsResolvedInAscendingOrder(t *testing.T) {
	s := NewState(Field{Width: 1000, Height: 1000}, []Body{
		body(1, 100, 100, 0, 0),
		body(2, 150, 100, 0, 0),
		body(3, 200, 100, 0, 0),
	})

	stats := s.Step(testPhysics)

	// (0,1) pushes B to 160, so (0,2) no longer overlaps and (1,2) sees B at 160
	assert.Equal(t, 2, stats.Collisions)
	assert.InDelta(t, 90, s.Bodies[0].Position.X, 1e-9)
	assert.InDelta(t, 145, s.Bodies[1].Position.X, 1e-9)
	assert.InDelta(t, 215, s.Bodies[2].Position.X, 1e-9)
}

func TestStep_CollisionSwapsVelocities(t *testing.T) {
	s := NewState(Field{Width: 1000, Height: 1000}, []Body{
		body(1, 100, 100, 2, 0),
		body(2, 160, 100, -1, 1),
	})

	s.Step(testPhysics)

	assert.Equal(t, r2.Vec{X: -1, Y: 1}, s.Bodies[0].Velocity)
	assert.Equal(t, r2.Vec{X: 2, Y: 0}, s.Bodies[1].Velocity)
	assert.InDelta(t, 70, r2.Norm(r2.Sub(s.Bodies[1].Position, s.Bodies[0].Position)), 1e-9)
}

func TestStep_ClampsAfterCollisionPush(t *testing.T) {
	s := NewState(Field{Width: 300, Height: 300}, []Body{
		body(1, 35, 150, 0, 0),
		body(2, 36, 150, 0, 0),
	})

	s.Step(testPhysics)

	assert.Equal(t, 35.0, s.Bodies[0].Position.X)
	assert.InDelta(t, 70.5, s.Bodies[1].Position.X, 1e-9)
	assert.Equal(t, r2.Vec{}, s.Bodies[0].Velocity)
}

func TestStep_ContainmentHoldsOverManyTicks(t *testing.T) {
	cfg := DefaultConfig()
	field := Field{Width: 800, Height: 600}
	s := NewState(field, GenerateLayout(field, cfg, rand.New(rand.NewSource(42)), 1))
	p := cfg.Physics()
	half := cfg.CollisionDiameter / 2

	for tick := 0; tick < 3000; tick++ {
		s.Step(p)
		for _, b := range s.Bodies {
			require.GreaterOrEqual(t, b.Position.X, half, "tick %d body %d", tick, b.ID)
			require.LessOrEqual(t, b.Position.X, field.Width-half, "tick %d body %d", tick, b.ID)
			require.GreaterOrEqual(t, b.Position.Y, half, "tick %d body %d", tick, b.ID)
			require.LessOrEqual(t, b.Position.Y, field.Height-half, "tick %d body %d", tick, b.ID)
			require.GreaterOrEqual(t, b.Rotation, 0.0)
			require.Less(t, b.Rotation, 360.0)
		}
	}
	assert.Equal(t, int64(3000), s.Tick)
}

func TestStep_EmptyState(t *testing.T) {
	s := NewState(Field{Width: 300, Height: 300}, nil)
	stats := s.Step(testPhysics)
	assert.Equal(t, StepStats{}, stats)
	assert.Equal(t, int64(1), s.Tick)
}

func TestState_SnapshotAndClone(t *testing.T) {
	s := NewState(Field{Width: 300, Height: 300}, []Body{body(1, 50, 60, 1, 1), body(2, 200, 210, 0, 0)})
	s.Bodies[0].Rotation = 45

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, BodyState{ID: 1, X: 50, Y: 60, Rotation: 45}, snap[0])

	clone := s.Clone()
	clone.Bodies[0].Position.X = 999
	assert.Equal(t, 50.0, s.Bodies[0].Position.X)

	s.Step(testPhysics)
	assert.Equal(t, 50.0, snap[0].X, "snapshots do not follow the state")
}
