package transfer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"loraimg/internal/protocol"
)

const (
	// DefaultMaxFragmentSize is the payload carried by one Data packet.
	DefaultMaxFragmentSize = 200
	// DefaultSettleInterval gives the receiver time to prepare after Start.
	DefaultSettleInterval = time.Second
	// DefaultPacketInterval is the transmit duty-cycle pause after every Data
	// packet. It is a regulatory limit of the radio, not a tuning knob.
	DefaultPacketInterval = 2 * time.Second
)

// State is the sender's position in the transfer.
type State uint8

const (
	StateIdle State = iota
	StateSentStart
	StateSendingData
	StateSentEnd
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSentStart:
		return "sent-start"
	case StateSendingData:
		return "sending-data"
	case StateSentEnd:
		return "sent-end"
	default:
		return "unknown"
	}
}

// PacketWriter is the sending half of a link.
type PacketWriter interface {
	Write(data []byte) error
}

// PacketSent describes a packet that was written to the link.
type PacketSent struct {
	Kind  protocol.Kind
	Index int
	Total int
	Bytes int
}

// Encoder frames a payload into Start, Data and End packets and writes them
// with the mandatory delays in between. It is not safe for concurrent use.
type Encoder struct {
	w           PacketWriter
	maxFragment int
	settle      time.Duration
	interval    time.Duration
	sleeper     Sleeper
	logger      zerolog.Logger
	onPacket    func(PacketSent)

	payload []byte
	total   int
	next    int
	state   State
	loaded  bool
}

type EncoderOption func(e *Encoder)

// WithSettleInterval overrides DefaultSettleInterval.
func WithSettleInterval(d time.Duration) EncoderOption {
	return func(e *Encoder) {
		e.settle = d
	}
}

// WithPacketInterval overrides DefaultPacketInterval. Only meant for links
// without a duty-cycle limit such as the in-memory pipe.
func WithPacketInterval(d time.Duration) EncoderOption {
	return func(e *Encoder) {
		e.interval = d
	}
}

func WithSleeper(s Sleeper) EncoderOption {
	return func(e *Encoder) {
		e.sleeper = s
	}
}

func WithEncoderLogger(logger zerolog.Logger) EncoderOption {
	return func(e *Encoder) {
		e.logger = logger
	}
}

// WithPacketHook registers fn to be called after every successful write.
func WithPacketHook(fn func(PacketSent)) EncoderOption {
	return func(e *Encoder) {
		e.onPacket = fn
	}
}

// NewEncoder returns an Encoder writing to w with fragments of at most
// maxFragmentSize bytes.
func NewEncoder(w PacketWriter, maxFragmentSize int, opts ...EncoderOption) (*Encoder, error) {
	if maxFragmentSize < 1 {
		return nil, ErrInvalidFragmentSize
	}

	e := &Encoder{
		w:           w,
		maxFragment: maxFragmentSize,
		settle:      DefaultSettleInterval,
		interval:    DefaultPacketInterval,
		sleeper:     timerSleeper{},
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if e.settle < 0 {
		e.settle = 0
	}
	return e, nil
}

// Begin loads payload and rewinds the state machine to Idle. The payload is
// not copied and must not change until the transfer finished.
func (e *Encoder) Begin(payload []byte) int {
	e.payload = payload
	e.total = protocol.TotalPackets(len(payload), e.maxFragment)
	e.next = 0
	e.state = StateIdle
	e.loaded = true
	return e.total
}

// State reports the current position of the state machine.
func (e *Encoder) State() State { return e.state }

// Done reports whether the End sentinel has been written.
func (e *Encoder) Done() bool { return e.state == StateSentEnd }

// TotalPackets reports the number of Data packets of the loaded payload.
func (e *Encoder) TotalPackets() int { return e.total }

// Step writes exactly one packet and returns how long the caller must wait
// before the next Step. After End it returns ErrTransferFinished.
func (e *Encoder) Step() (time.Duration, error) {
	if !e.loaded {
		return 0, ErrNoTransfer
	}

	switch e.state {
	case StateIdle:
		if err := e.write(protocol.NewStart(len(e.payload), e.total)); err != nil {
			return 0, &SendError{State: e.state, Err: err}
		}
		e.state = StateSentStart
		return e.settle, nil

	case StateSentStart, StateSendingData:
		if e.next < e.total {
			if err := e.write(protocol.NewData(e.next, e.total, e.fragment(e.next))); err != nil {
				return 0, &SendError{State: StateSendingData, Index: e.next, Err: err}
			}
			e.next++
			e.state = StateSendingData
			return e.interval, nil
		}

		if err := e.write(protocol.NewEnd()); err != nil {
			return 0, &SendError{State: e.state, Err: err}
		}
		e.state = StateSentEnd
		return 0, nil

	default:
		return 0, ErrTransferFinished
	}
}

// Send runs a whole transfer: Start, settle, every fragment followed by the
// packet interval, End. A link failure aborts the remaining sequence.
func (e *Encoder) Send(ctx context.Context, payload []byte) error {
	total := e.Begin(payload)
	e.logger.Info().Int("bytes", len(payload)).Int("packets", total).Int("max_fragment", e.maxFragment).Msg("starting transfer")

	for !e.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay, err := e.Step()
		if err != nil {
			e.logger.Error().Err(err).Str("state", e.state.String()).Msg("transfer aborted")
			return err
		}
		if delay > 0 {
			if err := e.sleeper.Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	e.logger.Info().Int("packets", total).Msg("transfer sent")
	return nil
}

func (e *Encoder) fragment(i int) []byte {
	start := i * e.maxFragment
	end := min(start+e.maxFragment, len(e.payload))
	return e.payload[start:end]
}

func (e *Encoder) write(p protocol.Packet) error {
	data := protocol.Encode(p)
	if err := e.w.Write(data); err != nil {
		return err
	}

	e.logger.Debug().Str("kind", p.Kind.String()).Int("index", p.Index).Int("bytes", len(data)).Msg("packet written")
	if e.onPacket != nil {
		e.onPacket(PacketSent{Kind: p.Kind, Index: p.Index, Total: e.total, Bytes: len(data)})
	}
	return nil
}
