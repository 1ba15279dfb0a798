package msgproto

import (
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrorAction defines what a serving loop does after a failed request.
type ErrorAction int

const (
	// Stop ends the serving loop and returns the error.
	Stop ErrorAction = iota
	// Continue drops the failed request and waits for the next one.
	Continue
)

// Default configuration values.
const (
	// DefaultReadTimeout bounds every blocking receive.
	DefaultReadTimeout = 5 * time.Second
	// DefaultWriteTimeout bounds every send.
	DefaultWriteTimeout = 5 * time.Second
)

const tracerName = "github.com/Zereker/msgproto"

// options holds the configuration shared by Conn, Client and Server.
type options struct {
	codec  Codec
	logger Logger
	tracer trace.Tracer

	// onError is consulted by Server.Serve after a failed request.
	onError func(error) ErrorAction

	readTimeout  time.Duration // bound on one receive, 0 waits for the context
	writeTimeout time.Duration // bound on one send
	maxRequests  int           // answered requests before Serve returns, 0 is unlimited
}

// Option is a function that configures options.
type Option func(*options)

func newOptions(opt ...Option) options {
	opts := options{
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)
	return opts
}

// checkOptions fills in defaults for unset options.
func checkOptions(opts *options) {
	if opts.codec.capacity <= 0 {
		opts.codec = NewCodec(DefaultCapacity)
	}

	if opts.readTimeout < 0 {
		opts.readTimeout = 0
	}

	if opts.writeTimeout <= 0 {
		opts.writeTimeout = DefaultWriteTimeout
	}

	if opts.maxRequests < 0 {
		opts.maxRequests = 0
	}

	if opts.onError == nil {
		opts.onError = defaultOnError
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	if opts.tracer == nil {
		opts.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
}

// defaultOnError keeps serving past malformed requests and idle timeouts,
// and stops on transport failures.
func defaultOnError(err error) ErrorAction {
	if IsProtocol(err) || errors.Is(err, ErrTimeout) {
		return Continue
	}
	return Stop
}

// CapacityOption sets the payload capacity used to validate messages.
func CapacityOption(capacity int) Option {
	return func(o *options) {
		o.codec = NewCodec(capacity)
	}
}

// ReadTimeoutOption bounds each blocking receive. Zero waits until the
// context is done.
func ReadTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.readTimeout = timeout
	}
}

// WriteTimeoutOption bounds each send.
func WriteTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = timeout
	}
}

// OnErrorOption sets the callback Server.Serve consults after a request
// fails. Return Continue to keep serving or Stop to return the error.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// MaxRequestsOption makes Server.Serve return after n answered requests.
func MaxRequestsOption(n int) Option {
	return func(o *options) {
		o.maxRequests = n
	}
}

// LoggerOption sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// TracerProviderOption sets the provider spans are created from.
// If not set, the global otel provider is used.
func TracerProviderOption(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp.Tracer(tracerName)
	}
}
