package sync

import "github.com/emberlock/emberlock/internal/core/game"

// DefaultViewDistance is the per-axis view radius in tiles.
const DefaultViewDistance = 15

// Oracle answers whether one entity can currently observe another.
type Oracle struct {
	// Distance is the per-axis bound. Values above 16 would overflow the
	// 5-bit admission deltas, so NewOracle clamps.
	Distance int
}

// NewOracle creates a visibility oracle with the given per-axis radius.
func NewOracle(distance int) Oracle {
	if distance <= 0 {
		distance = DefaultViewDistance
	}
	if distance > 16 {
		distance = 16
	}
	return Oracle{Distance: distance}
}

// CanSee reports whether viewer currently observes target. The distance
// test bounds each axis independently, covering a square region, not a
// Manhattan diamond; clients expect the square.
func (o Oracle) CanSee(viewer, target *game.Entity) bool {
	if viewer == target {
		return false
	}
	if target.Hidden {
		return false
	}
	if viewer.Height != target.Height {
		return false
	}
	dx := viewer.X - target.X
	if dx < 0 {
		dx = -dx
	}
	dz := viewer.Z - target.Z
	if dz < 0 {
		dz = -dz
	}
	return dx <= o.Distance && dz <= o.Distance
}
