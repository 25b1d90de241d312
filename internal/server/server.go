package server

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/emberlock/emberlock/internal/core/observability/log"
)

// Server ties the world tick loop to its transports: the legacy TCP
// listener and, when configured, the WebSocket gateway.
type Server struct {
	cfg     Config
	world   *World
	logger  log.Log
	running int32 // atomic bool
}

// New creates a server from configuration.
func New(cfg Config, logger log.Log) (*Server, error) {
	world, err := NewWorld(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		world:  world,
		logger: logger.With(log.String("component", "server")),
	}, nil
}

// World exposes the tick driver, mainly for tests.
func (s *Server) World() *World { return s.world }

// Run blocks until the context is cancelled or a transport fails.
func (s *Server) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrAlreadyRunning
	}
	defer atomic.StoreInt32(&s.running, 0)

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	s.logger.Info("Server listening",
		log.String("addr", listener.Addr().String()),
		log.Int("capacity", s.cfg.Capacity))

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := s.world.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})

	group.Go(func() error {
		return s.acceptLoop(ctx, listener)
	})

	if s.cfg.WSAddr != "" {
		gateway := newWSGateway(s, s.logger)
		group.Go(func() error {
			return gateway.run(ctx, s.cfg.WSAddr)
		})
	}

	return group.Wait()
}

// acceptLoop accepts legacy TCP clients.
func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.handleConn(conn)
	}
}

// handleConn starts a session for any stream connection, TCP or the
// WebSocket adapter.
func (s *Server) handleConn(conn net.Conn) {
	sess := NewSession(conn, s.world, s.cfg, s.logger)
	go sess.Handle()
}
