package bounce

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestGridPositions_SmallField(t *testing.T) {
	positions := GridPositions(Field{Width: 300, Height: 300}, 25, 85, 5)

	// 3 columns; the fourth row (y=280) would reach 305 and is dropped
	require.Len(t, positions, 9)
	assert.Equal(t, r2.Vec{X: 25, Y: 25}, positions[0])
	assert.Equal(t, r2.Vec{X: 110, Y: 25}, positions[1])
	assert.Equal(t, r2.Vec{X: 195, Y: 25}, positions[2])
	assert.Equal(t, r2.Vec{X: 25, Y: 110}, positions[3])
	assert.Equal(t, r2.Vec{X: 195, Y: 195}, positions[8])
}

func TestGridPositions_DefaultField(t *testing.T) {
	cfg := DefaultConfig()
	positions := GridPositions(Field{Width: 800, Height: 600}, cfg.BodyRadius, cfg.GridSpacing, cfg.RowCount)

	// floor(800/85) = 9 columns, all 5 rows fit
	require.Len(t, positions, 45)
	assert.Equal(t, r2.Vec{X: 705, Y: 365}, positions[44])
}

func TestGridPositions_RowMajorOrder(t *testing.T) {
	positions := GridPositions(Field{Width: 300, Height: 300}, 25, 85, 5)
	for i := 1; i < len(positions); i++ {
		prev, cur := positions[i-1], positions[i]
		if cur.Y == prev.Y {
			assert.Greater(t, cur.X, prev.X, "index %d", i)
		} else {
			assert.Greater(t, cur.Y, prev.Y, "index %d", i)
		}
	}
}

func TestGridPositions_RejectsPartialCandidates(t *testing.T) {
	// One column fits by width (floor(100/85) = 1), x+r = 50 <= 100
	positions := GridPositions(Field{Width: 100, Height: 40}, 25, 85, 5)
	assert.Empty(t, positions, "y+r = 50 exceeds height 40")

	positions = GridPositions(Field{Width: 80, Height: 300}, 25, 85, 5)
	assert.Empty(t, positions, "no full column fits")
}

func TestGridPositions_InvalidParameters(t *testing.T) {
	assert.Nil(t, GridPositions(Field{Width: 300, Height: 300}, 25, 0, 5))
	assert.Nil(t, GridPositions(Field{Width: 300, Height: 300}, 25, 85, 0))
}

func TestGenerateLayout_PositionsAreDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	field := Field{Width: 800, Height: 600}

	a := GenerateLayout(field, cfg, rand.New(rand.NewSource(1)), 1)
	b := GenerateLayout(field, cfg, rand.New(rand.NewSource(2)), 1)

	require.Equal(t, len(a), len(b))
	varied := false
	for i := range a {
		assert.Equal(t, a[i].Position, b[i].Position)
		if a[i].Velocity != b[i].Velocity || a[i].Rotation != b[i].Rotation {
			varied = true
		}
	}
	assert.True(t, varied, "velocities and rotations should differ between seeds")
}

func TestGenerateLayout_SameSeedSameBodies(t *testing.T) {
	cfg := DefaultConfig()
	field := Field{Width: 800, Height: 600}

	a := GenerateLayout(field, cfg, rand.New(rand.NewSource(7)), 1)
	b := GenerateLayout(field, cfg, rand.New(rand.NewSource(7)), 1)
	assert.Equal(t, a, b)
}

func TestGenerateLayout_IDsAndRanges(t *testing.T) {
	cfg := DefaultConfig()
	bodies := GenerateLayout(Field{Width: 300, Height: 300}, cfg, rand.New(rand.NewSource(3)), 10)

	require.Len(t, bodies, 9)
	for i, b := range bodies {
		assert.Equal(t, BodyID(10+i), b.ID)
		assert.GreaterOrEqual(t, b.Velocity.X, cfg.VelocityRange.Min)
		assert.LessOrEqual(t, b.Velocity.X, cfg.VelocityRange.Max)
		assert.GreaterOrEqual(t, b.Velocity.Y, cfg.VelocityRange.Min)
		assert.LessOrEqual(t, b.Velocity.Y, cfg.VelocityRange.Max)
		assert.GreaterOrEqual(t, b.Rotation, 0.0)
		assert.Less(t, b.Rotation, 360.0)
	}
}
