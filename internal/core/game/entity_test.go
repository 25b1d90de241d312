package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_ApplyMovementSteps(t *testing.T) {
	e := NewEntity("walker")
	e.X, e.Z = 100, 100

	e.SetStep(DirNorth)
	e.ApplyMovement()
	assert.Equal(t, 100, e.X)
	assert.Equal(t, 101, e.Z)

	e.SetDoubleStep(DirEast, DirEast)
	e.ApplyMovement()
	assert.Equal(t, 102, e.X)
	assert.Equal(t, 101, e.Z)

	e.ClearTransient()
	e.ApplyMovement()
	assert.Equal(t, 102, e.X)
	assert.Equal(t, 101, e.Z)
}

func TestEntity_PlacementUpdatesPositionImmediately(t *testing.T) {
	e := NewEntity("mage")
	e.RegionOriginX, e.RegionOriginZ = 3160, 3200

	e.SetPlacement(1, 3182, 3218, true)
	assert.True(t, e.Placing())
	assert.Equal(t, 3182, e.X)
	assert.Equal(t, 3218, e.Z)
	assert.Equal(t, uint8(1), e.Height)
	assert.Equal(t, 22, e.LocalX())
	assert.Equal(t, 18, e.LocalZ())

	// ApplyMovement leaves placements alone; the position was assigned
	// when the intent was queued.
	e.ApplyMovement()
	assert.Equal(t, 3182, e.X)

	e.ClearTransient()
	assert.False(t, e.Placing())
}

func TestEntity_ClearTransientWipesFlags(t *testing.T) {
	e := NewEntity("brawler")
	e.PlayAnimation(422, 0)
	e.PlayGraphic(92, 100, 0)
	e.Say(0, 0, "hello")
	require.True(t, e.HasFlag(FlagAnimation))
	require.True(t, e.HasFlag(FlagGraphic))
	require.True(t, e.HasFlag(FlagChat))

	e.ClearTransient()
	assert.Zero(t, e.Flags)
	assert.Equal(t, MovementIntent{Primary: DirNone, Secondary: DirNone}, e.Intent)
}

func TestEntity_TouchAppearanceDetectsChange(t *testing.T) {
	e := NewEntity("dresser")

	// First touch establishes the fingerprint and flags appearance.
	require.True(t, e.TouchAppearance())
	require.True(t, e.HasFlag(FlagAppearance))

	e.ClearTransient()
	assert.False(t, e.TouchAppearance())
	assert.False(t, e.HasFlag(FlagAppearance))

	e.Body[0] = 256
	assert.True(t, e.TouchAppearance())
	assert.True(t, e.HasFlag(FlagAppearance))

	e.ClearTransient()
	e.CombatLevel = 99
	assert.True(t, e.TouchAppearance())
}

func TestDirection_Deltas(t *testing.T) {
	cases := []struct {
		dir    Direction
		dx, dz int
	}{
		{DirNorthWest, -1, 1},
		{DirNorth, 0, 1},
		{DirNorthEast, 1, 1},
		{DirWest, -1, 0},
		{DirEast, 1, 0},
		{DirSouthWest, -1, -1},
		{DirSouth, 0, -1},
		{DirSouthEast, 1, -1},
	}
	for _, c := range cases {
		dx, dz := c.dir.Delta()
		assert.Equal(t, c.dx, dx)
		assert.Equal(t, c.dz, dz)
	}

	dx, dz := DirNone.Delta()
	assert.Zero(t, dx)
	assert.Zero(t, dz)
}
