package msgproto

import (
	"context"
	"net"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultClientGreeting is the payload of the client's request.
const DefaultClientGreeting = "Hello from client"

// ClientState tracks the single exchange a Client performs.
type ClientState int

const (
	StateReady ClientState = iota
	StateAwaitingResponse
	StateDone
)

func (s ClientState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Client performs exactly one request/response exchange with a server.
// There is no retry: a lost datagram surfaces as ErrTimeout.
type Client struct {
	conn   *Conn
	server net.Addr
	logger Logger

	opts options

	mu    sync.Mutex
	state ClientState
}

// Dial resolves the server address and opens a local datagram socket.
func Dial(ctx context.Context, addr string, opt ...Option) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, newTransportError("resolve", nil, err)
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", ":0")
	if err != nil {
		return nil, newTransportError("listen", nil, err)
	}

	return NewClient(pc, raddr, opt...), nil
}

// NewClient returns a client that talks to server over pc.
func NewClient(pc net.PacketConn, server net.Addr, opt ...Option) *Client {
	opts := newOptions(opt...)
	opts.logger = withRole(opts.logger, "client")

	return &Client{
		conn:   newConnWithOptions(pc, opts),
		server: server,
		logger: opts.logger,
		opts:   opts,
	}
}

// Exchange sends req and waits for exactly one reply. A reply that fails
// validation is returned as an error and never partially interpreted.
// A Client performs one exchange; later calls return ErrExchangeDone.
// The first datagram to arrive is taken as the reply whatever its sender.
func (c *Client) Exchange(ctx context.Context, req Message) (Message, error) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return Message{}, ErrExchangeDone
	}
	c.state = StateAwaitingResponse
	c.mu.Unlock()

	defer c.setState(StateDone)

	ctx, span := c.opts.tracer.Start(ctx, "msgproto.exchange",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("peer.addr", c.server.String()),
			attribute.Int("msg.type", int(req.Type)),
			attribute.Int("msg.length", req.Length),
		))
	defer span.End()

	if err := c.conn.WriteMessage(ctx, req, c.server); err != nil {
		return Message{}, c.fail(span, "failed to send request", err)
	}
	c.logger.Info("request sent", "to", c.server, "message", Display(req))

	resp, from, err := c.conn.ReadMessage(ctx)
	if err != nil {
		return Message{}, c.fail(span, "failed to receive response", err, "from", from)
	}

	span.SetAttributes(
		attribute.Int("resp.type", int(resp.Type)),
		attribute.Int("resp.length", resp.Length),
	)
	c.logger.Info("response received", "from", from, "message", Display(resp))
	return resp, nil
}

// Greet sends a request carrying text and returns the reply.
func (c *Client) Greet(ctx context.Context, text string) (Message, error) {
	return c.Exchange(ctx, NewMessage(TypeRequest, []byte(text)))
}

// State returns where the client is in its exchange.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LocalAddr returns the client's local address.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close releases the client's socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) setState(s ClientState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) fail(span trace.Span, msg string, err error, args ...any) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	c.logger.Error(msg, append(args, "error", err)...)
	return err
}
