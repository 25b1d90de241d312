package sync

import (
	"github.com/emberlock/emberlock/internal/core/game"
	"github.com/emberlock/emberlock/internal/core/wire"
)

// FrameEntitySync is the frame type tag of the per-tick synchronization
// frame.
const FrameEntitySync = 81

// Wire codes for the local viewer's movement. Code 3 means placement here
// and removal in trackedStatus; the two constants keep the meanings apart
// even though they share an encoding.
const (
	moveKindStand      = 0
	moveKindStep       = 1
	moveKindDoubleStep = 2
	moveKindPlacement  = 3
)

// Wire codes for a previously tracked entity's status.
const (
	statusStand      = 0
	statusStep       = 1
	statusDoubleStep = 2
	statusRemoved    = 3
)

type blockRef struct {
	entity *game.Entity
	mask   game.VisualFlag
}

// Encoder produces one synchronization frame per viewer per tick: local
// movement bits, tracked-entity delta bits, new-entity additions, the end
// sentinel, then the byte-aligned visual update blocks. A single pass runs
// to completion with no blocking; the encoder is reused across viewers on
// the tick goroutine.
type Encoder struct {
	registry *game.Registry
	oracle   Oracle

	blocks  []blockRef
	scratch *wire.Buffer
}

// NewEncoder creates a frame encoder over the given registry.
func NewEncoder(registry *game.Registry, oracle Oracle) *Encoder {
	return &Encoder{
		registry: registry,
		oracle:   oracle,
		blocks:   make([]blockRef, 0, 64),
		scratch:  wire.NewBufferMax(512),
	}
}

// Encode writes the viewer's frame for this tick into buf, updating the
// viewer's tracking set in place. The buffer's sticky error is returned;
// a failed frame must be dropped, not transmitted.
func (enc *Encoder) Encode(viewer *game.Entity, set *TrackingSet, buf *wire.Buffer) error {
	enc.blocks = enc.blocks[:0]

	buf.BeginVarHeader(FrameEntitySync, 2)
	buf.StartBitAccess()

	// The viewer's own block, if any, is queued before any other entity's:
	// clients index block order starting from the local entity.
	enc.writeLocalMovement(buf, viewer)

	// Count of ids tracked as of last tick, before this tick's compaction.
	buf.WriteBits(8, uint32(set.Len()))

	set.Compact(func(id game.EntityID) bool {
		target := enc.registry.Get(id)
		// A mid-placement target is removed like an out-of-view one: its
		// position already jumped server-side, and the status forms carry no
		// absolute coordinates. The admission pass re-admits it with fresh
		// deltas once placement settles.
		if target == nil || target.Placing() || !enc.oracle.CanSee(viewer, target) {
			buf.WriteBits(1, 1)
			buf.WriteBits(2, statusRemoved)
			return false
		}
		enc.writeTrackedStatus(buf, target)
		return true
	})

	enc.writeAdmissions(buf, viewer, set)
	buf.WriteBits(11, uint32(game.SentinelID))
	buf.FinishBitAccess()

	for _, ref := range enc.blocks {
		enc.writeBlock(buf, ref)
	}

	buf.FinishVarHeader()
	return buf.Err()
}

func (enc *Encoder) writeLocalMovement(buf *wire.Buffer, viewer *game.Entity) {
	update := viewer.Flags != 0
	intent := viewer.Intent

	switch {
	case intent.Kind == game.MovePlacement:
		buf.WriteBits(1, 1)
		buf.WriteBits(2, moveKindPlacement)
		buf.WriteBits(2, uint32(intent.Height))
		buf.WriteBits(7, uint32(viewer.LocalX())&0x7F)
		buf.WriteBits(7, uint32(viewer.LocalZ())&0x7F)
		buf.WriteBits(1, boolBit(intent.Reset))
		buf.WriteBits(1, boolBit(update))
	case intent.Kind == game.MoveDoubleStep:
		buf.WriteBits(1, 1)
		buf.WriteBits(2, moveKindDoubleStep)
		buf.WriteBits(3, uint32(intent.Primary))
		buf.WriteBits(3, uint32(intent.Secondary))
		buf.WriteBits(1, boolBit(update))
	case intent.Kind == game.MoveStep:
		buf.WriteBits(1, 1)
		buf.WriteBits(2, moveKindStep)
		buf.WriteBits(3, uint32(intent.Primary))
		buf.WriteBits(1, boolBit(update))
	case update:
		buf.WriteBits(1, 1)
		buf.WriteBits(2, moveKindStand)
	default:
		buf.WriteBits(1, 0)
	}

	if update {
		enc.blocks = append(enc.blocks, blockRef{entity: viewer, mask: viewer.Flags})
	}
}

func (enc *Encoder) writeTrackedStatus(buf *wire.Buffer, target *game.Entity) {
	update := target.Flags != 0
	intent := target.Intent

	switch {
	case intent.Kind == game.MoveDoubleStep:
		buf.WriteBits(1, 1)
		buf.WriteBits(2, statusDoubleStep)
		buf.WriteBits(3, uint32(intent.Primary))
		buf.WriteBits(3, uint32(intent.Secondary))
		buf.WriteBits(1, boolBit(update))
	case intent.Kind == game.MoveStep:
		buf.WriteBits(1, 1)
		buf.WriteBits(2, statusStep)
		buf.WriteBits(3, uint32(intent.Primary))
		buf.WriteBits(1, boolBit(update))
	case update:
		buf.WriteBits(1, 1)
		buf.WriteBits(2, statusStand)
	default:
		// No movement, no update: the statistically dominant case costs a
		// single clear bit.
		buf.WriteBits(1, 0)
	}

	if update {
		enc.blocks = append(enc.blocks, blockRef{entity: target, mask: target.Flags})
	}
}

// writeAdmissions scans the registry for entities entering view and encodes
// an addition for each until the tracking cap is reached.
func (enc *Encoder) writeAdmissions(buf *wire.Buffer, viewer *game.Entity, set *TrackingSet) {
	enc.registry.ForEach(func(target *game.Entity) {
		if target == viewer || set.Contains(target.ID) || target.Placing() {
			return
		}
		if !enc.oracle.CanSee(viewer, target) {
			return
		}
		dx := target.X - viewer.X
		dz := target.Z - viewer.Z
		if dx < -16 || dx > 15 || dz < -16 || dz > 15 {
			return
		}
		if !set.Add(target.ID) {
			return
		}
		buf.WriteBits(11, uint32(target.ID))
		buf.WriteBits(5, uint32(dx)&0x1F)
		buf.WriteBits(5, uint32(dz)&0x1F)
		buf.WriteBits(1, 1) // discard the target's walk queue client-side
		buf.WriteBits(1, 1) // block follows

		// A newly admitted entity always gets an appearance block; the
		// client has no prior appearance state for it.
		enc.blocks = append(enc.blocks, blockRef{
			entity: target,
			mask:   target.Flags | game.FlagAppearance,
		})
	})
}

func (enc *Encoder) writeBlock(buf *wire.Buffer, ref blockRef) {
	e := ref.entity
	buf.WriteUint8(uint8(ref.mask))
	// Sub-blocks follow in flag-bit order regardless of the order the
	// flags were raised.
	if ref.mask&game.FlagAppearance != 0 {
		enc.writeAppearance(buf, e)
	}
	if ref.mask&game.FlagAnimation != 0 {
		buf.WriteUint16(e.Anim.ID, wire.BigEndian)
		buf.WriteUint8(e.Anim.Delay)
	}
	if ref.mask&game.FlagGraphic != 0 {
		buf.WriteUint16(e.Graphic.ID, wire.BigEndian)
		buf.WriteUint32(uint32(e.Graphic.Height)<<16|uint32(e.Graphic.Delay), wire.BigEndian)
	}
	if ref.mask&game.FlagChat != 0 {
		text := e.Chat.Text
		if len(text) > 0xFF {
			text = text[:0xFF]
		}
		buf.WriteUint8(e.Chat.Color)
		buf.WriteUint8(e.Chat.Effect)
		buf.WriteUint8(uint8(len(text)))
		buf.WriteBytes([]byte(text))
	}
}

// writeAppearance emits the only variable-size sub-block, so it alone is
// length-prefixed.
func (enc *Encoder) writeAppearance(buf *wire.Buffer, e *game.Entity) {
	s := enc.scratch
	s.Reset()
	s.WriteUint8(e.Gender)
	s.WriteUint8(e.Icon)
	for _, slot := range e.Body {
		if slot == 0 {
			s.WriteUint8(0)
		} else {
			s.WriteUint16(0x0100|slot, wire.BigEndian)
		}
	}
	for _, color := range e.Colors {
		s.WriteUint8(color)
	}
	for _, anim := range e.StockAnims {
		s.WriteUint16(anim, wire.BigEndian)
	}
	s.WriteUint64(e.PackedName)
	s.WriteUint8(e.CombatLevel)

	body, err := s.Bytes()
	if err != nil {
		// The appearance layout is fixed-size bounded well under the
		// scratch cap; overflowing it is a programming bug.
		panic(err)
	}
	buf.WriteUint8(uint8(len(body)))
	buf.WriteBytes(body)
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
