package msgproto

import (
	"net"

	"github.com/pkg/errors"
)

// Errors returned by the codec. Both are returned wrapped with the
// offending values; compare with errors.Is.
var (
	// ErrInvalidLength is returned when a length field is negative or
	// not strictly less than the payload capacity.
	ErrInvalidLength = errors.New("invalid length")
	// ErrTruncated is returned when a datagram is shorter than its header
	// plus its declared payload length.
	ErrTruncated = errors.New("truncated message")
)

// ErrTimeout is returned when no datagram arrived within the read timeout.
var ErrTimeout = errors.New("timed out waiting for datagram")

// ErrExchangeDone is returned by a Client that already completed its exchange.
var ErrExchangeDone = errors.New("exchange already done")

// ErrBadReply is returned when a handler's reply cannot be encoded, for
// example a payload that does not fit the capacity. It is a local fault,
// not a malformed request, so it never matches IsProtocol.
var ErrBadReply = errors.New("reply cannot be encoded")

// ErrServerClosed is returned when serving on a closed server.
var ErrServerClosed = errors.New("server closed")

// TransportError reports a failure of the underlying socket primitive.
type TransportError struct {
	// Op names the failed operation: resolve, listen, read, write, close.
	Op   string
	Addr net.Addr
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr != nil {
		return e.Op + " " + e.Addr.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newTransportError(op string, addr net.Addr, err error) error {
	return &TransportError{Op: op, Addr: addr, Err: err}
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocol reports whether err is a codec validation failure.
func IsProtocol(err error) bool {
	return errors.Is(err, ErrInvalidLength) || errors.Is(err, ErrTruncated)
}
