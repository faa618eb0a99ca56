package link

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

const readBufferSize = 1024

// SerialConfig describes the UART the radio module is attached to. Both ends
// must agree on the baud rate out of band.
type SerialConfig struct {
	Port     string
	BaudRate int
}

// Validate checks the serial settings before the port is opened.
func (c SerialConfig) Validate() error {
	if c.Port == "" {
		return ErrNoPort
	}
	if c.BaudRate <= 0 {
		return ErrInvalidBaudRate
	}
	return nil
}

// SerialLink is a Link over a serial port, 8N1.
type SerialLink struct {
	port   serial.Port
	name   string
	logger zerolog.Logger
	buf    []byte

	mu     sync.Mutex
	closed bool
}

// OpenSerial opens and configures the port. The caller owns the link and must
// Close it on every exit path.
func OpenSerial(cfg SerialConfig, opts ...Option) (*SerialLink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	if o.readTimeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}

	l, err := newSerialLink(port, cfg.Port, o)
	if err != nil {
		port.Close()
		return nil, err
	}

	o.logger.Info().Str("port", cfg.Port).Int("baud", cfg.BaudRate).Dur("read_timeout", o.readTimeout).Msg("serial port opened")
	return l, nil
}

func newSerialLink(port serial.Port, name string, o options) (*SerialLink, error) {
	if err := port.SetReadTimeout(o.readTimeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	return &SerialLink{
		port:   port,
		name:   name,
		logger: o.logger,
		buf:    make([]byte, readBufferSize),
	}, nil
}

// Write sends data and waits until the UART has transmitted it, so that any
// delay the caller applies afterwards is measured from the end of the packet.
func (s *SerialLink) Write(data []byte) error {
	if s.isClosed() {
		return ErrClosed
	}

	for written := 0; written < len(data); {
		n, err := s.port.Write(data[written:])
		if err != nil {
			return fmt.Errorf("failed to write to %s: %w", s.name, err)
		}
		if n == 0 {
			return fmt.Errorf("failed to write to %s: %w", s.name, io.ErrShortWrite)
		}
		written += n
	}
	if err := s.port.Drain(); err != nil {
		return fmt.Errorf("failed to drain %s: %w", s.name, err)
	}

	s.logger.Debug().Int("bytes", len(data)).Msg("serial write")
	return nil
}

// ReadAvailable returns whatever arrived within the read timeout.
func (s *SerialLink) ReadAvailable(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrClosed
	}

	n, err := s.port.Read(s.buf)
	if err != nil {
		if s.isClosed() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("failed to read from %s: %w", s.name, err)
	}
	if n == 0 {
		return nil, nil
	}

	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out, nil
}

// Close releases the port. Calling it more than once is harmless.
func (s *SerialLink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Info().Str("port", s.name).Msg("serial port closed")
	return s.port.Close()
}

func (s *SerialLink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
