package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlock/emberlock/internal/core/game"
	"github.com/emberlock/emberlock/internal/core/observability/log"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = 25 * time.Millisecond
	cfg.Capacity = 16
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	return cfg
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := NewWorld(testConfig(), log.Nop())
	require.NoError(t, err)
	return w
}

func newTestSession(t *testing.T, w *World) *Session {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewSession(server, w, w.cfg, log.Nop())
}

func TestWorld_JoinPlacesEntityAtSpawn(t *testing.T) {
	w := newTestWorld(t)
	s := newTestSession(t, w)

	id, err := w.join(s, "adventurer")
	require.NoError(t, err)
	require.NotEqual(t, game.NilID, id)

	v := w.viewers[id]
	require.NotNil(t, v)
	assert.Equal(t, w.cfg.SpawnX, v.entity.X)
	assert.Equal(t, w.cfg.SpawnZ, v.entity.Z)
	assert.True(t, v.entity.Placing())
	assert.True(t, v.entity.HasFlag(game.FlagAppearance))

	// Placement coordinates must ride the 7-bit local fields.
	assert.GreaterOrEqual(t, v.entity.LocalX(), 0)
	assert.Less(t, v.entity.LocalX(), 104)
	assert.GreaterOrEqual(t, v.entity.LocalZ(), 0)
	assert.Less(t, v.entity.LocalZ(), 104)
}

func TestWorld_JoinRejectsDuplicateName(t *testing.T) {
	w := newTestWorld(t)

	_, err := w.join(newTestSession(t, w), "zezima")
	require.NoError(t, err)

	// Name packing folds case, so the duplicate check must too.
	_, err = w.join(newTestSession(t, w), "ZEZIMA")
	require.ErrorIs(t, err, ErrNameAlreadyInUse)
}

func TestWorld_JoinSurfacesRegistryFull(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 3
	w, err := NewWorld(cfg, log.Nop())
	require.NoError(t, err)

	_, err = w.join(newTestSession(t, w), "one")
	require.NoError(t, err)
	_, err = w.join(newTestSession(t, w), "two")
	require.NoError(t, err)
	_, err = w.join(newTestSession(t, w), "three")
	require.ErrorIs(t, err, game.ErrRegistryFull)
}

func TestWorld_LeaveFreesSlotAndName(t *testing.T) {
	w := newTestWorld(t)

	id, err := w.join(newTestSession(t, w), "nomad")
	require.NoError(t, err)

	w.leave(id)
	assert.Nil(t, w.viewers[id])
	assert.Zero(t, w.registry.Count())

	// Both the name and a registry slot are available again.
	_, err = w.join(newTestSession(t, w), "nomad")
	require.NoError(t, err)

	// leave is idempotent for ids with no viewer.
	w.leave(99)
}

func TestRegionOrigin(t *testing.T) {
	// The loaded map area starts six 8-tile chunks back from the chunk
	// containing the coordinate.
	assert.Equal(t, 3168, regionOrigin(3222))
	assert.Equal(t, 3168, regionOrigin(3217))
	assert.Equal(t, 0, regionOrigin(48))
	assert.Equal(t, 54, 3222-regionOrigin(3222))
}

func TestSession_QueueFrameDropsSlowClients(t *testing.T) {
	w := newTestWorld(t)
	s := newTestSession(t, w)

	frame := []byte{81, 0, 1, 0}
	for i := 0; i < cap(s.out); i++ {
		require.NoError(t, s.QueueFrame(frame))
	}
	require.ErrorIs(t, s.QueueFrame(frame), ErrWriteQueueFull)

	s.Close()
	require.ErrorIs(t, s.QueueFrame(frame), ErrSessionClosed)
}

func TestSession_QueueFrameCopies(t *testing.T) {
	w := newTestWorld(t)
	s := newTestSession(t, w)

	frame := []byte{81, 0, 1, 42}
	require.NoError(t, s.QueueFrame(frame))
	frame[3] = 99

	queued := <-s.out
	assert.Equal(t, uint8(42), queued[3])
}
