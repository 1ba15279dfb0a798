package stream

import (
	"log/slog"
	"net"
	"time"

	"github.com/Zereker/msgproto"
)

// Default configuration values.
const (
	// DefaultGreeting is what the server writes to every connection.
	DefaultGreeting = "Hello from server!"
	// DefaultReadSize bounds a single read of the peer's reply.
	DefaultReadSize = 1024
	// DefaultTimeout bounds the whole greeting exchange on one connection.
	DefaultTimeout = 5 * time.Second
)

type options struct {
	logger          msgproto.Logger
	greeting        string
	readSize        int
	timeout         time.Duration
	shutdownTimeout time.Duration
	maxConns        int
	onReply         func(addr net.Addr, reply []byte)
}

// Option configures a Server or a Greet call.
type Option func(*options)

func newOptions(opt ...Option) options {
	opts := options{
		greeting: DefaultGreeting,
		readSize: DefaultReadSize,
		timeout:  DefaultTimeout,
	}
	for _, o := range opt {
		o(&opts)
	}

	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.readSize <= 0 {
		opts.readSize = DefaultReadSize
	}
	if opts.timeout <= 0 {
		opts.timeout = DefaultTimeout
	}
	if opts.onReply == nil {
		opts.onReply = func(net.Addr, []byte) {}
	}
	return opts
}

// LoggerOption sets the logger.
func LoggerOption(logger msgproto.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// GreetingOption sets the text the server sends on every connection.
func GreetingOption(text string) Option {
	return func(o *options) {
		o.greeting = text
	}
}

// ReadSizeOption bounds how many bytes are read from the peer.
func ReadSizeOption(n int) Option {
	return func(o *options) {
		o.readSize = n
	}
}

// TimeoutOption bounds one connection's exchange.
func TimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// ShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context is canceled, the server will wait up to this duration
// before closing the listener. Default is 0 (immediate shutdown).
func ShutdownTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.shutdownTimeout = timeout
	}
}

// MaxConnsOption makes Serve return after n connections were handled.
// Zero serves until the context is canceled.
func MaxConnsOption(n int) Option {
	return func(o *options) {
		o.maxConns = n
	}
}

// OnReplyOption sets a callback receiving each peer's reply.
func OnReplyOption(cb func(addr net.Addr, reply []byte)) Option {
	return func(o *options) {
		o.onReply = cb
	}
}
