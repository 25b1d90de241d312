package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberlock/emberlock/internal/core/game"
	"github.com/emberlock/emberlock/internal/core/observability/log"
	"github.com/emberlock/emberlock/internal/core/wire"
)

// ProtocolVersion is the client build this server speaks.
const ProtocolVersion = 317

// Handshake service and login types.
const (
	serviceLogin   = 14
	loginTypeNew   = 16
	loginTypeRecon = 18
	loginMagic     = 255
)

// Login response codes.
const (
	loginSuccess    = 2
	loginDuplicate  = 5
	loginOutOfDate  = 6
	loginWorldFull  = 7
	loginRejected   = 11
	isaacSeedOffset = 50 // outbound stream seeds sit this far above inbound
)

// Client opcode payload sizes; -1 means a 1-byte length prefix follows the
// opcode.
var clientFrameSizes = map[uint8]int{
	opIdle: 0,
	opWalk: 1,
	opRun:  2,
	opChat: -1,
}

const (
	opIdle = 0
	opWalk = 164
	opRun  = 98
	opChat = 4
)

// Session owns one client connection: handshake, opcode decode and the
// outbound frame queue. Game state is never touched directly; every
// mutation is posted to the world's tick goroutine.
type Session struct {
	id     uuid.UUID
	conn   net.Conn
	br     *bufio.Reader
	world  *World
	cfg    Config
	logger log.Log

	inStream  *wire.Isaac
	outStream *wire.Isaac
	entityID  game.EntityID

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wraps an accepted connection.
func NewSession(conn net.Conn, world *World, cfg Config, logger log.Log) *Session {
	id := uuid.New()
	return &Session{
		id:     id,
		conn:   conn,
		br:     bufio.NewReaderSize(conn, 512),
		world:  world,
		cfg:    cfg,
		logger: logger.With(log.String("session_id", id.String())),
		out:    make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

// Close shuts the session down. Safe to call from any goroutine, any
// number of times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// QueueFrame hands an encoded frame to the writer goroutine. The frame is
// copied; the encoder reuses its buffer next tick.
func (s *Session) QueueFrame(frame []byte) error {
	buf := copyFrame(frame)
	select {
	case s.out <- buf:
		return nil
	case <-s.done:
		releaseFrame(buf)
		return ErrSessionClosed
	default:
		// A client that cannot keep up with the tick rate gets dropped
		// rather than a growing backlog of stale frames.
		releaseFrame(buf)
		return ErrWriteQueueFull
	}
}

// Handle runs the session to completion: handshake, login, then the opcode
// read loop. Blocks until the connection dies.
func (s *Session) Handle() {
	defer s.Close()

	remote := s.conn.RemoteAddr().String()
	s.logger.Debug("Session opened", log.String("remote_addr", remote))

	name, err := s.handshake()
	if err != nil {
		s.logger.Debug("Handshake failed", log.Error(err))
		return
	}

	if err := s.login(name); err != nil {
		s.logger.Info("Login rejected",
			log.String("name", name),
			log.Error(err))
		return
	}

	defer func() {
		id := s.entityID
		s.world.Post(func() { s.world.leave(id) })
	}()

	go s.writeLoop()

	s.logger.Info("Session playing",
		log.String("name", name),
		log.Uint16("entity_id", uint16(s.entityID)))

	if err := s.readLoop(); err != nil && err != io.EOF {
		s.logger.Debug("Session read loop ended", log.Error(err))
	}
}

// handshake performs the legacy service exchange and login block decode,
// negotiating the paired keystreams. Returns the display name.
func (s *Session) handshake() (string, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	service, err := s.br.ReadByte()
	if err != nil {
		return "", err
	}
	if service != serviceLogin {
		return "", fmt.Errorf("%w: service %d", ErrBadHandshake, service)
	}
	// Name hash byte, used by historical login servers for shard routing.
	if _, err = s.br.ReadByte(); err != nil {
		return "", err
	}

	serverKey := rand.Uint64()
	resp := wire.NewBuffer()
	resp.WriteUint8(0)
	resp.WriteUint64(serverKey)
	if err = s.send(resp); err != nil {
		return "", err
	}

	loginType, err := s.br.ReadByte()
	if err != nil {
		return "", err
	}
	if loginType != loginTypeNew && loginType != loginTypeRecon {
		return "", fmt.Errorf("%w: login type %d", ErrBadHandshake, loginType)
	}
	size, err := s.br.ReadByte()
	if err != nil {
		return "", err
	}
	block := make([]byte, size)
	if _, err = io.ReadFull(s.br, block); err != nil {
		return "", err
	}

	r := wire.NewReader(block)
	if r.ReadUint8() != loginMagic {
		return "", ErrBadLoginBlock
	}
	version := r.ReadUint16(wire.BigEndian)
	var seeds [4]uint32
	for i := range seeds {
		seeds[i] = r.ReadUint32(wire.BigEndian)
	}
	packedName := r.ReadUint64()
	if err = r.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadLoginBlock, err)
	}
	if version != ProtocolVersion {
		_ = s.sendCode(loginOutOfDate)
		return "", fmt.Errorf("%w: got %d", ErrVersionMismatch, version)
	}

	s.inStream = wire.NewIsaac(seeds[:])
	outSeeds := make([]uint32, len(seeds))
	for i, v := range seeds {
		outSeeds[i] = v + isaacSeedOffset
	}
	s.outStream = wire.NewIsaac(outSeeds)

	return wire.UnpackName(packedName), nil
}

// login registers the entity on the tick goroutine and answers the client.
func (s *Session) login(name string) error {
	type joinResult struct {
		id  game.EntityID
		err error
	}
	res := make(chan joinResult, 1)
	s.world.Post(func() {
		id, err := s.world.join(s, name)
		res <- joinResult{id: id, err: err}
	})

	var jr joinResult
	select {
	case jr = <-res:
	case <-s.done:
		return ErrSessionClosed
	}

	switch {
	case jr.err == nil:
	case errors.Is(jr.err, ErrWorldFull):
		_ = s.sendCode(loginWorldFull)
		return jr.err
	case errors.Is(jr.err, ErrNameAlreadyInUse):
		_ = s.sendCode(loginDuplicate)
		return jr.err
	default:
		_ = s.sendCode(loginRejected)
		return jr.err
	}

	s.entityID = jr.id
	resp := wire.NewBuffer()
	resp.WriteUint8(loginSuccess)
	resp.WriteUint16(uint16(jr.id), wire.BigEndian)
	return s.send(resp)
}

// readLoop decodes obfuscated client opcodes until the connection dies.
func (s *Session) readLoop() error {
	for {
		select {
		case <-s.done:
			return nil
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		raw, err := s.br.ReadByte()
		if err != nil {
			return err
		}
		op := (raw - uint8(s.inStream.Next())) & 0xFF

		size, known := clientFrameSizes[op]
		if !known {
			return fmt.Errorf("%w: %d", ErrUnknownOpcode, op)
		}
		if size == -1 {
			l, err := s.br.ReadByte()
			if err != nil {
				return err
			}
			size = int(l)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(s.br, payload); err != nil {
			return err
		}
		s.dispatch(op, payload)
	}
}

// dispatch posts the decoded input to the tick goroutine.
func (s *Session) dispatch(op uint8, payload []byte) {
	id := s.entityID
	switch op {
	case opIdle:
		// Keepalive only.
	case opWalk:
		dir := game.Direction(payload[0] & 7)
		s.world.Post(func() {
			if v, ok := s.world.viewers[id]; ok {
				v.entity.SetStep(dir)
			}
		})
	case opRun:
		first := game.Direction(payload[0] & 7)
		second := game.Direction(payload[1] & 7)
		s.world.Post(func() {
			if v, ok := s.world.viewers[id]; ok {
				v.entity.SetDoubleStep(first, second)
			}
		})
	case opChat:
		if len(payload) < 2 {
			return
		}
		color, effect := payload[0], payload[1]
		text := string(payload[2:])
		s.world.Post(func() {
			if v, ok := s.world.viewers[id]; ok {
				v.entity.Say(color, effect, text)
			}
		})
	}
}

// writeLoop drains the outbound queue onto the socket.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			_, err := s.conn.Write(frame)
			releaseFrame(frame)
			if err != nil {
				s.logger.Debug("Session write failed", log.Error(err))
				s.Close()
				return
			}
		}
	}
}

func (s *Session) send(buf *wire.Buffer) error {
	data, err := buf.Bytes()
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_, err = s.conn.Write(data)
	return err
}

func (s *Session) sendCode(code uint8) error {
	resp := wire.NewBuffer()
	resp.WriteUint8(code)
	return s.send(resp)
}
