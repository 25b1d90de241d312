package game

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/emberlock/emberlock/internal/core/wire"
)

// EntityID is the small integer identifier a connected entity holds while
// registered. 0 is the null sentinel and never identifies an entity.
type EntityID uint16

const (
	// NilID marks an unassigned identifier.
	NilID EntityID = 0
	// SentinelID terminates the wire addition list; the registry never
	// allocates it.
	SentinelID EntityID = 1<<11 - 1
)

// Direction is a compass step, 0..7. DirNone means no step.
type Direction int8

// DirNone marks the absence of a movement step.
const DirNone Direction = -1

// Compass directions in wire order.
const (
	DirNorthWest Direction = iota
	DirNorth
	DirNorthEast
	DirWest
	DirEast
	DirSouthWest
	DirSouth
	DirSouthEast
)

var dirDeltas = [8][2]int{
	{-1, 1}, {0, 1}, {1, 1},
	{-1, 0}, {1, 0},
	{-1, -1}, {0, -1}, {1, -1},
}

// Delta returns the (dx, dz) step for a compass direction.
func (d Direction) Delta() (int, int) {
	if d < 0 || d > 7 {
		return 0, 0
	}
	return dirDeltas[d][0], dirDeltas[d][1]
}

// MoveKind classifies this tick's movement intent. At most one kind holds
// per entity per tick.
type MoveKind uint8

const (
	MoveNone MoveKind = iota
	MoveStep
	MoveDoubleStep
	MovePlacement
)

// MovementIntent is produced by input handlers and consumed by one encode
// pass, then cleared.
type MovementIntent struct {
	Kind      MoveKind
	Primary   Direction
	Secondary Direction

	// Placement target, valid when Kind is MovePlacement.
	Height uint8
	Reset  bool
}

// VisualFlag marks a non-positional state change that needs a byte-aligned
// update block this tick. Declaration order is wire order.
type VisualFlag uint8

const (
	FlagAppearance VisualFlag = 1 << iota
	FlagAnimation
	FlagGraphic
	FlagChat
)

// AnimationCue is a one-shot animation to play.
type AnimationCue struct {
	ID    uint16
	Delay uint8
}

// GraphicCue is a one-shot graphic effect.
type GraphicCue struct {
	ID     uint16
	Height uint16
	Delay  uint16
}

// ChatCue is one line of public chat.
type ChatCue struct {
	Color  uint8
	Effect uint8
	Text   string
}

// Stock animation defaults for an unarmed humanoid.
var DefaultStockAnims = [7]uint16{0x328, 0x337, 0x333, 0x334, 0x335, 0x336, 0x338}

// Entity is one connected avatar: identity, appearance, position and the
// per-tick transient state the frame encoder consumes.
type Entity struct {
	ID         EntityID
	Name       string
	PackedName uint64

	// Appearance
	Gender      uint8
	Icon        uint8
	Body        [12]uint16 // 0 = empty slot, else body model reference
	Colors      [5]uint8
	StockAnims  [7]uint16
	CombatLevel uint8

	// Position
	X      int
	Z      int
	Height uint8

	// Origin of the entity's current map area; placement coordinates go on
	// the wire relative to it.
	RegionOriginX int
	RegionOriginZ int

	// Hidden makes the entity administratively invisible regardless of
	// distance.
	Hidden bool

	// Per-tick transient state
	Intent  MovementIntent
	Flags   VisualFlag
	Anim    AnimationCue
	Graphic GraphicCue
	Chat    ChatCue

	appearanceSum uint64
}

// NewEntity creates an entity with default appearance. The identifier is
// assigned by the registry.
func NewEntity(name string) *Entity {
	return &Entity{
		Name:       name,
		PackedName: wire.PackName(name),
		StockAnims: DefaultStockAnims,
		Intent:     MovementIntent{Primary: DirNone, Secondary: DirNone},
	}
}

// SetStep queues a single compass step for this tick.
func (e *Entity) SetStep(d Direction) {
	e.Intent = MovementIntent{Kind: MoveStep, Primary: d, Secondary: DirNone}
}

// SetDoubleStep queues two compass steps (running) for this tick.
func (e *Entity) SetDoubleStep(first, second Direction) {
	e.Intent = MovementIntent{Kind: MoveDoubleStep, Primary: first, Secondary: second}
}

// SetPlacement queues an absolute position assignment (login, teleport).
func (e *Entity) SetPlacement(height uint8, x, z int, reset bool) {
	e.X = x
	e.Z = z
	e.Height = height
	e.Intent = MovementIntent{
		Kind:      MovePlacement,
		Primary:   DirNone,
		Secondary: DirNone,
		Height:    height,
		Reset:     reset,
	}
}

// Placing reports whether the entity is mid-placement this tick; its
// position is not yet stable for admission into other viewers' tracking
// sets.
func (e *Entity) Placing() bool {
	return e.Intent.Kind == MovePlacement
}

// LocalX returns the X coordinate relative to the entity's map area origin.
func (e *Entity) LocalX() int { return e.X - e.RegionOriginX }

// LocalZ returns the Z coordinate relative to the entity's map area origin.
func (e *Entity) LocalZ() int { return e.Z - e.RegionOriginZ }

// ApplyMovement advances the position by the queued steps. Placement
// already updated the position when it was queued. Runs before any frame is
// encoded so every viewer sees post-move coordinates.
func (e *Entity) ApplyMovement() {
	switch e.Intent.Kind {
	case MoveStep:
		dx, dz := e.Intent.Primary.Delta()
		e.X += dx
		e.Z += dz
	case MoveDoubleStep:
		dx, dz := e.Intent.Primary.Delta()
		e.X += dx
		e.Z += dz
		dx, dz = e.Intent.Secondary.Delta()
		e.X += dx
		e.Z += dz
	}
}

// Flag raises a visual update flag for this tick.
func (e *Entity) Flag(f VisualFlag) {
	e.Flags |= f
}

// HasFlag reports whether the given visual update is pending.
func (e *Entity) HasFlag(f VisualFlag) bool {
	return e.Flags&f != 0
}

// PlayAnimation queues a one-shot animation block.
func (e *Entity) PlayAnimation(id uint16, delay uint8) {
	e.Anim = AnimationCue{ID: id, Delay: delay}
	e.Flag(FlagAnimation)
}

// PlayGraphic queues a one-shot graphic effect block.
func (e *Entity) PlayGraphic(id uint16, height, delay uint16) {
	e.Graphic = GraphicCue{ID: id, Height: height, Delay: delay}
	e.Flag(FlagGraphic)
}

// Say queues a public chat block.
func (e *Entity) Say(color, effect uint8, text string) {
	e.Chat = ChatCue{Color: color, Effect: effect, Text: text}
	e.Flag(FlagChat)
}

// ClearTransient wipes movement intent and visual flags after every
// viewer's frame for the tick has been encoded.
func (e *Entity) ClearTransient() {
	e.Intent = MovementIntent{Primary: DirNone, Secondary: DirNone}
	e.Flags = 0
}

// TouchAppearance refreshes the appearance fingerprint and raises the
// appearance flag when any appearance field moved since the last call.
// Reports whether a change was detected.
func (e *Entity) TouchAppearance() bool {
	sum := e.appearanceFingerprint()
	if sum == e.appearanceSum {
		return false
	}
	e.appearanceSum = sum
	e.Flag(FlagAppearance)
	return true
}

func (e *Entity) appearanceFingerprint() uint64 {
	var buf [64]byte
	buf[0] = e.Gender
	buf[1] = e.Icon
	buf[2] = e.CombatLevel
	n := 3
	for _, slot := range e.Body {
		binary.BigEndian.PutUint16(buf[n:], slot)
		n += 2
	}
	copy(buf[n:], e.Colors[:])
	n += len(e.Colors)
	for _, anim := range e.StockAnims {
		binary.BigEndian.PutUint16(buf[n:], anim)
		n += 2
	}
	binary.BigEndian.PutUint64(buf[n:], e.PackedName)
	n += 8
	return xxhash.Sum64(buf[:n])
}
