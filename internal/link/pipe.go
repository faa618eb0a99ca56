package link

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const pipeQueueSize = 256

type pipe struct {
	done chan struct{}
	once sync.Once
}

// PipeEnd is one side of an in-memory link. Every Write arrives at the peer as
// a single read, so packet boundaries survive as long as the reader polls
// between writes.
type PipeEnd struct {
	p       *pipe
	in      chan []byte
	out     chan []byte
	timeout time.Duration
	logger  zerolog.Logger
}

// NewPipe returns two connected ends. Closing either end closes both.
func NewPipe(opts ...Option) (*PipeEnd, *PipeEnd) {
	o := newOptions(opts)
	p := &pipe{done: make(chan struct{})}
	ab := make(chan []byte, pipeQueueSize)
	ba := make(chan []byte, pipeQueueSize)

	a := &PipeEnd{p: p, in: ba, out: ab, timeout: o.readTimeout, logger: o.logger.With().Str("end", "a").Logger()}
	b := &PipeEnd{p: p, in: ab, out: ba, timeout: o.readTimeout, logger: o.logger.With().Str("end", "b").Logger()}
	return a, b
}

func (e *PipeEnd) Write(data []byte) error {
	select {
	case <-e.p.done:
		return ErrClosed
	default:
	}

	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case e.out <- msg:
		e.logger.Debug().Int("bytes", len(data)).Msg("pipe write")
		return nil
	case <-e.p.done:
		return ErrClosed
	}
}

func (e *PipeEnd) ReadAvailable(ctx context.Context) ([]byte, error) {
	// Queued data is delivered even after Close.
	select {
	case msg := <-e.in:
		return msg, nil
	default:
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case msg := <-e.in:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.p.done:
		return nil, ErrClosed
	case <-timer.C:
		return nil, nil
	}
}

func (e *PipeEnd) Close() error {
	e.p.once.Do(func() { close(e.p.done) })
	return nil
}
