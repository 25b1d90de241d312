package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emberlock/emberlock/internal/core/game"
)

func placed(x, z int, height uint8) *game.Entity {
	e := game.NewEntity("e")
	e.X, e.Z, e.Height = x, z, height
	return e
}

func TestOracle_SelfIsNeverVisible(t *testing.T) {
	o := NewOracle(15)
	e := placed(10, 10, 0)
	assert.False(t, o.CanSee(e, e))
}

func TestOracle_HiddenBeatsDistance(t *testing.T) {
	o := NewOracle(15)
	viewer := placed(10, 10, 0)
	target := placed(10, 11, 0)
	target.Hidden = true
	assert.False(t, o.CanSee(viewer, target))

	target.Hidden = false
	assert.True(t, o.CanSee(viewer, target))
}

func TestOracle_HeightPlanesNeverSeeEachOther(t *testing.T) {
	o := NewOracle(15)
	viewer := placed(10, 10, 0)
	target := placed(10, 10, 1)
	assert.False(t, o.CanSee(viewer, target))
}

func TestOracle_SquareBoundNotDiamond(t *testing.T) {
	o := NewOracle(15)
	viewer := placed(100, 100, 0)

	// The corner of the square: |dx| + |dz| = 30 would fail a Manhattan
	// test, but each axis independently sits at the bound.
	assert.True(t, o.CanSee(viewer, placed(115, 115, 0)))
	assert.True(t, o.CanSee(viewer, placed(85, 85, 0)))
	assert.True(t, o.CanSee(viewer, placed(115, 85, 0)))

	// One tile past the bound on either axis.
	assert.False(t, o.CanSee(viewer, placed(116, 100, 0)))
	assert.False(t, o.CanSee(viewer, placed(100, 116, 0)))
	assert.False(t, o.CanSee(viewer, placed(116, 116, 0)))
	assert.False(t, o.CanSee(viewer, placed(84, 100, 0)))
}

func TestNewOracle_ClampsDistance(t *testing.T) {
	assert.Equal(t, DefaultViewDistance, NewOracle(0).Distance)
	assert.Equal(t, DefaultViewDistance, NewOracle(-3).Distance)
	// Deltas above 16 cannot ride the 5-bit admission fields.
	assert.Equal(t, 16, NewOracle(40).Distance)
	assert.Equal(t, 10, NewOracle(10).Distance)
}
