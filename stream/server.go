// Package stream implements the connection-oriented greeting exchange:
// the server writes a fixed greeting, reads one bounded reply and closes.
// There is no framing; a message ends at the read size or when the peer
// closes the connection.
package stream

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Zereker/msgproto"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Server accepts connections and runs the greeting exchange on each.
type Server struct {
	listener *net.TCPListener
	logger   msgproto.Logger
	opts     options

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{} // signals immediate shutdown, bypassing timeout
}

// Listen binds a TCP listener on addr with SO_REUSEADDR set.
func Listen(ctx context.Context, addr string, opt ...Option) (*Server, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &msgproto.TransportError{Op: "listen", Err: err}
	}

	listener, ok := l.(*net.TCPListener)
	if !ok {
		l.Close()
		return nil, errors.Errorf("unexpected listener type %T", l)
	}

	opts := newOptions(opt...)
	return &Server{
		listener:    listener,
		logger:      opts.logger,
		opts:        opts,
		shutdownNow: make(chan struct{}),
	}, nil
}

// Serve accepts connections until the context is canceled or the
// connection limit is reached, then waits for in-flight exchanges.
// If ShutdownTimeoutOption is set, the server waits up to that duration
// after cancellation before closing the listener. Call Close() to bypass
// the timeout.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("stream server started", "addr", s.listener.Addr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// done releases the shutdown watcher when Serve returns first.
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}

		if s.opts.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.opts.shutdownTimeout)
			timer := time.NewTimer(s.opts.shutdownTimeout)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			case <-done:
				return
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Set a deadline to unblock Accept
		_ = s.listener.SetDeadline(time.Now())
	}()

	var group errgroup.Group
	accepted := 0

	for {
		if s.opts.maxConns > 0 && accepted >= s.opts.maxConns {
			err := group.Wait()
			s.logger.Info("stream server stopped", "addr", s.listener.Addr(), "connections", accepted)
			return err
		}

		conn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				_ = group.Wait()
				s.logger.Info("stream server stopped", "addr", s.listener.Addr())
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return msgproto.ErrServerClosed
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			_ = group.Wait()
			return &msgproto.TransportError{Op: "accept", Addr: s.listener.Addr(), Err: err}
		}

		accepted++
		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		group.Go(func() error {
			s.handle(conn)
			return nil
		})
	}
}

// handle writes the greeting, reads one bounded reply and closes.
func (s *Server) handle(conn *net.TCPConn) {
	defer conn.Close()

	addr := conn.RemoteAddr()
	s.logger.Info("connection established", "addr", addr)
	_ = conn.SetDeadline(time.Now().Add(s.opts.timeout))

	if _, err := io.WriteString(conn, s.opts.greeting); err != nil {
		s.logger.Warn("failed to send greeting", "addr", addr, "error", err)
		return
	}

	buf := make([]byte, s.opts.readSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("failed to read reply", "addr", addr, "error", err)
		return
	}

	reply := buf[:n]
	s.logger.Info("client sent", "addr", addr, "reply", string(reply))
	s.opts.onReply(addr, reply)
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is configured, Close() bypasses the remaining timeout.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
