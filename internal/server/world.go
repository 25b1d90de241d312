package server

import (
	"context"
	"fmt"
	"time"

	"github.com/emberlock/emberlock/internal/core/game"
	"github.com/emberlock/emberlock/internal/core/observability/log"
	gsync "github.com/emberlock/emberlock/internal/core/sync"
	"github.com/emberlock/emberlock/internal/core/wire"
)

// viewer pairs a registered entity with its session and per-viewer
// synchronization state.
type viewer struct {
	entity  *game.Entity
	set     *gsync.TrackingSet
	session *Session
	buf     *wire.Buffer
}

// World owns all game state and drives the fixed tick. A single goroutine
// executes ticks and every state mutation; sessions hand work in through
// the command channel, so no locks guard the registry or tracking sets.
type World struct {
	cfg      Config
	registry *game.Registry
	encoder  *gsync.Encoder
	viewers  map[game.EntityID]*viewer
	names    map[uint64]game.EntityID

	commands chan func()
	ticks    uint64
	logger   log.Log
}

// NewWorld creates a world with an empty registry.
func NewWorld(cfg Config, logger log.Log) (*World, error) {
	registry, err := game.NewRegistry(cfg.Capacity)
	if err != nil {
		return nil, err
	}
	oracle := gsync.NewOracle(cfg.ViewDistance)
	return &World{
		cfg:      cfg,
		registry: registry,
		encoder:  gsync.NewEncoder(registry, oracle),
		viewers:  make(map[game.EntityID]*viewer),
		names:    make(map[uint64]game.EntityID),
		commands: make(chan func(), 256),
		logger:   logger.With(log.String("component", "world")),
	}, nil
}

// Post hands a mutation to the tick goroutine. Safe from any goroutine.
func (w *World) Post(fn func()) {
	w.commands <- fn
}

// Run executes the tick loop until the context is cancelled.
func (w *World) Run(ctx context.Context) error {
	w.logger.Info("Tick loop started",
		log.Duration("interval", w.cfg.TickInterval),
		log.Int("capacity", w.registry.Capacity()))

	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Tick loop stopped", log.Uint64("ticks", w.ticks))
			return ctx.Err()
		case fn := <-w.commands:
			fn()
		case <-ticker.C:
			w.drainCommands()
			w.step()
		}
	}
}

func (w *World) drainCommands() {
	for {
		select {
		case fn := <-w.commands:
			fn()
		default:
			return
		}
	}
}

// step runs one simulation tick: movement, then one frame per viewer, then
// transient state clearing. Frames see post-move positions; flags raised
// during this tick stay visible to every viewer's encode pass.
func (w *World) step() {
	w.ticks++

	w.registry.ForEach(func(e *game.Entity) {
		e.ApplyMovement()
	})

	start := time.Now()
	for _, v := range w.viewers {
		v.buf.Reset()
		if err := w.encoder.Encode(v.entity, v.set, v.buf); err != nil {
			// A failed frame must not reach the wire truncated; drop the
			// viewer instead.
			w.logger.Warn("Frame encode failed, disconnecting viewer",
				log.Uint16("entity_id", uint16(v.entity.ID)),
				log.Error(err))
			v.session.Close()
			continue
		}
		frame, _ := v.buf.Bytes()
		if err := v.session.QueueFrame(frame); err != nil {
			v.session.Close()
		}
	}
	elapsed := time.Since(start)

	w.registry.ForEach(func(e *game.Entity) {
		e.ClearTransient()
	})

	if elapsed > w.cfg.TickInterval {
		w.logger.Warn("Tick overran its budget",
			log.Duration("elapsed", elapsed),
			log.Int("viewers", len(w.viewers)))
	}
}

// join registers a new session's entity. Runs on the tick goroutine.
func (w *World) join(s *Session, name string) (game.EntityID, error) {
	packed := wire.PackName(name)
	if _, taken := w.names[packed]; taken {
		return game.NilID, ErrNameAlreadyInUse
	}

	e := game.NewEntity(name)
	id, err := w.registry.Register(e)
	if err != nil {
		return game.NilID, fmt.Errorf("%w: %w", ErrWorldFull, err)
	}

	e.RegionOriginX = regionOrigin(w.cfg.SpawnX)
	e.RegionOriginZ = regionOrigin(w.cfg.SpawnZ)
	e.SetPlacement(w.cfg.SpawnHeight, w.cfg.SpawnX, w.cfg.SpawnZ, true)
	e.TouchAppearance()

	v := &viewer{
		entity:  e,
		set:     gsync.NewTrackingSet(w.registry.Capacity()),
		session: s,
		buf:     wire.NewBuffer(),
	}
	if s.outStream != nil {
		v.buf.AttachKeystream(s.outStream)
	}
	w.viewers[id] = v
	w.names[packed] = id

	w.logger.Info("Entity joined",
		log.Uint16("entity_id", uint16(id)),
		log.String("name", name),
		log.Int("population", w.registry.Count()))
	return id, nil
}

// leave releases a session's slot. The tracking set dies with the viewer,
// so a reassigned id can never inherit stale visibility state.
func (w *World) leave(id game.EntityID) {
	v, ok := w.viewers[id]
	if !ok {
		return
	}
	delete(w.viewers, id)
	delete(w.names, v.entity.PackedName)
	w.registry.Deregister(id)

	w.logger.Info("Entity left",
		log.Uint16("entity_id", uint16(id)),
		log.Int("population", w.registry.Count()))
}

// regionOrigin returns the map area origin for a coordinate, aligned the
// way clients align their loaded area: the 8-tile chunk 48 tiles back.
func regionOrigin(v int) int {
	return ((v >> 3) - 6) << 3
}
