package server

import "errors"

// Server errors
var (
	// Lifecycle errors

	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrAlreadyRunning = errors.New("server already running")

	// Session errors

	ErrWorldFull        = errors.New("world is full")
	ErrBadHandshake     = errors.New("malformed handshake")
	ErrBadLoginBlock    = errors.New("malformed login block")
	ErrVersionMismatch  = errors.New("client version mismatch")
	ErrSessionClosed    = errors.New("session is closed")
	ErrWriteQueueFull   = errors.New("session write queue full")
	ErrUnknownOpcode    = errors.New("unknown client opcode")
	ErrNameAlreadyInUse = errors.New("display name already in use")
)
