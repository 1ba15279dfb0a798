package msgproto

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServerGreeting is the payload of the server's response.
const DefaultServerGreeting = "Hello from server"

// DefaultAddr is where the server listens: every interface, port 8080.
const DefaultAddr = ":8080"

// Handler answers decoded requests.
type Handler interface {
	// ServeMessage returns the reply for req, or false to send nothing.
	ServeMessage(req Message, from net.Addr) (Message, bool)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(req Message, from net.Addr) (Message, bool)

// ServeMessage calls f(req, from).
func (f HandlerFunc) ServeMessage(req Message, from net.Addr) (Message, bool) {
	return f(req, from)
}

// GreetingHandler answers every request with a response carrying text.
// Messages of any other type get no reply.
func GreetingHandler(text string) Handler {
	return HandlerFunc(func(req Message, _ net.Addr) (Message, bool) {
		if req.Type != TypeRequest {
			return Message{}, false
		}
		return NewMessage(TypeResponse, []byte(text)), true
	})
}

// Server answers requests arriving on a datagram socket.
type Server struct {
	conn    *Conn
	handler Handler
	logger  Logger

	opts options

	served atomic.Int64
	closed atomic.Bool
}

// Listen binds a datagram socket on addr and returns a server for it.
func Listen(addr string, handler Handler, opt ...Option) (*Server, error) {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, newTransportError("listen", nil, err)
	}

	return NewServer(pc, handler, opt...), nil
}

// NewServer returns a server answering requests on pc.
func NewServer(pc net.PacketConn, handler Handler, opt ...Option) *Server {
	opts := newOptions(opt...)
	opts.logger = withRole(opts.logger, "server")

	return &Server{
		conn:    newConnWithOptions(pc, opts),
		handler: handler,
		logger:  opts.logger,
		opts:    opts,
	}
}

// Process turns one request datagram into its reply datagram. It returns
// a codec error when the request fails validation, ErrBadReply when the
// handler's reply cannot be encoded, and nil bytes when the handler
// declines to answer. Process has no transport side effects and
// can be called from any serving loop.
func (s *Server) Process(data []byte, from net.Addr) ([]byte, error) {
	req, err := s.opts.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	s.logger.Info("request received", "from", from, "message", Display(req))

	resp, ok := s.handler.ServeMessage(req, from)
	if !ok {
		s.logger.Debug("request not answered", "from", from, "type", req.Type)
		return nil, nil
	}

	out, err := s.opts.codec.Encode(resp)
	if err != nil {
		return nil, errors.Wrapf(ErrBadReply, "type %d: %v", int32(resp.Type), err)
	}
	return out, nil
}

// ServeOnce waits for one datagram and either answers it or drops it.
// A malformed request is dropped and its validation error returned;
// nothing is sent back.
func (s *Server) ServeOnce(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	data, from, err := s.conn.ReadFrom(ctx)
	if err != nil {
		return err
	}

	ctx, span := s.opts.tracer.Start(ctx, "msgproto.serve",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("peer.addr", from.String()),
			attribute.Int("datagram.size", len(data)),
		))
	defer span.End()

	resp, err := s.Process(data, from)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrBadReply) {
			span.SetStatus(codes.Error, "reply not encodable")
			s.logger.Error("failed to encode response", "to", from, "error", err)
			return err
		}
		span.SetStatus(codes.Error, "request dropped")
		s.logger.Warn("dropping malformed request", "from", from, "error", err)
		return err
	}
	if resp == nil {
		return nil
	}

	if err := s.conn.WriteTo(ctx, resp, from); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reply failed")
		s.logger.Error("failed to send response", "to", from, "error", err)
		return err
	}

	s.served.Add(1)
	span.SetAttributes(attribute.Int("resp.size", len(resp)))
	s.logger.Info("response sent", "to", from, "bytes", len(resp))
	return nil
}

// Serve answers requests until the context is canceled, the request
// limit is reached, or the error callback returns Stop. By default
// malformed requests and read timeouts are skipped.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("server started", "addr", s.Addr())

	for {
		if limit := s.opts.maxRequests; limit > 0 && s.served.Load() >= int64(limit) {
			s.logger.Info("server stopped", "addr", s.Addr(), "served", s.served.Load())
			return nil
		}

		err := s.ServeOnce(ctx)
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			s.logger.Info("server stopped", "addr", s.Addr())
			return ctx.Err()
		}

		if s.closed.Load() {
			return ErrServerClosed
		}

		if errors.Is(err, ErrTimeout) {
			s.logger.Debug("no request within read timeout", "addr", s.Addr())
		}

		if s.opts.onError(err) == Stop {
			s.logger.Error("server stopped with error", "addr", s.Addr(), "error", err)
			return err
		}
	}
}

// Served returns the number of requests answered so far.
func (s *Server) Served() int64 {
	return s.served.Load()
}

// Addr returns the server's local address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close stops the server. A blocked Serve returns ErrServerClosed.
func (s *Server) Close() error {
	s.closed.Store(true)
	return s.conn.Close()
}
