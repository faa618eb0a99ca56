// Package link provides the byte transports a transfer runs over: a serial
// port attached to the radio module and an in-memory pipe.
package link

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrClosed          = errors.New("link closed")
	ErrInvalidBaudRate = errors.New("baud rate must be greater than 0")
	ErrInvalidTimeout  = errors.New("read timeout must be greater than 0")
	ErrNoPort          = errors.New("serial port name must be set")
)

// DefaultReadTimeout bounds every read and doubles as the quiet gap that
// separates packets.
const DefaultReadTimeout = 100 * time.Millisecond

// Link is a half-duplex byte transport. ReadAvailable never blocks longer than
// the link's read timeout and returns nil, nil when nothing arrived.
type Link interface {
	Write(data []byte) error
	ReadAvailable(ctx context.Context) ([]byte, error)
	Close() error
}

type options struct {
	logger      zerolog.Logger
	readTimeout time.Duration
}

// Option configures a link.
type Option func(o *options)

// WithLogger sets the logger used for link-level debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithReadTimeout overrides DefaultReadTimeout.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:      zerolog.Nop(),
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
