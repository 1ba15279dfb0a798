package msgproto

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrConnectionClosed is returned when operating on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// aLongTimeAgo is a deadline in the past, used to unblock a pending read.
var aLongTimeAgo = time.Unix(1, 0)

// Conn reads and writes whole messages over a datagram socket.
// Every receive is bounded by the read timeout and the caller's context.
// A Conn is not safe for concurrent reads; writes may run alongside a read.
type Conn struct {
	pc     net.PacketConn
	buf    []byte
	logger Logger

	opts options

	closed atomic.Bool
}

// NewConn wraps a datagram socket.
func NewConn(pc net.PacketConn, opt ...Option) *Conn {
	return newConnWithOptions(pc, newOptions(opt...))
}

func newConnWithOptions(pc net.PacketConn, opts options) *Conn {
	return &Conn{
		pc: pc,
		// Room for a header plus a full capacity payload, so a datagram
		// declaring length == capacity arrives whole and fails validation
		// as an invalid length rather than as a truncation.
		buf:    make([]byte, HeaderSize+opts.codec.Capacity()),
		logger: opts.logger,
		opts:   opts,
	}
}

// ReadFrom blocks for one datagram and returns its bytes and sender.
// The returned slice is only valid until the next read.
func (c *Conn) ReadFrom(ctx context.Context) ([]byte, net.Addr, error) {
	if c.closed.Load() {
		return nil, nil, ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	_ = c.pc.SetReadDeadline(c.deadline(ctx, c.opts.readTimeout))

	stop := context.AfterFunc(ctx, func() {
		_ = c.pc.SetReadDeadline(aLongTimeAgo)
	})
	defer stop()

	n, addr, err := c.pc.ReadFrom(c.buf)
	if err != nil {
		return nil, nil, c.readError(ctx, err)
	}

	c.logger.Debug("datagram received", "from", addr, "bytes", n)
	return c.buf[:n], addr, nil
}

// ReadMessage blocks for one datagram and decodes it. On a decode
// failure the sender is still returned so callers can report it.
func (c *Conn) ReadMessage(ctx context.Context) (Message, net.Addr, error) {
	data, addr, err := c.ReadFrom(ctx)
	if err != nil {
		return Message{}, nil, err
	}

	msg, err := c.opts.codec.Decode(data)
	if err != nil {
		return Message{}, addr, err
	}
	return msg, addr, nil
}

// WriteTo sends data as one datagram to addr.
func (c *Conn) WriteTo(ctx context.Context, data []byte, addr net.Addr) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_ = c.pc.SetWriteDeadline(c.deadline(ctx, c.opts.writeTimeout))

	n, err := c.pc.WriteTo(data, addr)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return errors.Wrapf(ErrTimeout, "write to %s", addr)
		}
		return newTransportError("write", addr, err)
	}
	if n != len(data) {
		return newTransportError("write", addr, io.ErrShortWrite)
	}

	c.logger.Debug("datagram sent", "to", addr, "bytes", n)
	return nil
}

// WriteMessage encodes m and sends exactly m.WireSize() bytes to addr.
func (c *Conn) WriteMessage(ctx context.Context, m Message, addr net.Addr) error {
	data, err := c.opts.codec.Encode(m)
	if err != nil {
		return err
	}
	return c.WriteTo(ctx, data, addr)
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.pc.LocalAddr()
}

// Codec returns the codec the connection validates with.
func (c *Conn) Codec() Codec {
	return c.opts.codec
}

// Close closes the underlying socket. Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	return c.pc.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// deadline returns the earlier of now+timeout and the context deadline.
// The zero time means no deadline.
func (c *Conn) deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

func (c *Conn) readError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrapf(ErrTimeout, "read on %s", c.pc.LocalAddr())
	}

	if errors.Is(err, net.ErrClosed) && c.closed.Load() {
		return ErrConnectionClosed
	}

	c.logger.Debug("read error", "addr", c.pc.LocalAddr(), "error", err)
	return newTransportError("read", c.pc.LocalAddr(), err)
}
