package stream

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/Zereker/msgproto"
	"github.com/pkg/errors"
)

// Greet connects to addr, reads the server's greeting, answers with reply
// and closes. The greeting is whatever a single bounded read returns.
func Greet(ctx context.Context, addr, reply string, opt ...Option) (string, error) {
	opts := newOptions(opt...)

	d := net.Dialer{Timeout: opts.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", &msgproto.TransportError{Op: "dial", Err: err}
	}
	defer conn.Close()

	deadline := time.Now().Add(opts.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)

	buf := make([]byte, opts.readSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", readErr(conn, err)
	}
	greeting := string(buf[:n])
	opts.logger.Info("server sent", "addr", conn.RemoteAddr(), "greeting", greeting)

	if _, err := io.WriteString(conn, reply); err != nil {
		return greeting, &msgproto.TransportError{Op: "write", Addr: conn.RemoteAddr(), Err: err}
	}
	return greeting, nil
}

func readErr(conn net.Conn, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrapf(msgproto.ErrTimeout, "read from %s", conn.RemoteAddr())
	}
	return &msgproto.TransportError{Op: "read", Addr: conn.RemoteAddr(), Err: err}
}
