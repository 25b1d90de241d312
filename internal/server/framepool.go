package server

import "sync"

// framePool recycles the per-frame copies that travel from the tick
// goroutine to session write loops, so steady-state ticks allocate nothing
// per viewer.
var framePool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 512)
		return &b
	},
}

// copyFrame snapshots an encoder buffer into a pooled copy. The encoder
// reuses its own storage next tick, so the snapshot must not alias it.
func copyFrame(frame []byte) []byte {
	p := framePool.Get().(*[]byte)
	buf := append((*p)[:0], frame...)
	*p = buf
	return buf
}

// releaseFrame returns a transmitted copy to the pool. Frames still queued
// when a session dies are simply dropped to the garbage collector.
func releaseFrame(frame []byte) {
	frame = frame[:0]
	framePool.Put(&frame)
}
