package transfer

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"loraimg/internal/protocol"
)

const (
	logPreviewBytes = 50

	// MaxReportedMissing caps Event.Missing. The total comes off the wire and
	// may be arbitrarily large.
	MaxReportedMissing = 32
)

// session accumulates one transfer between a Start and the next Start or End.
type session struct {
	id              string
	expectedBytes   int
	expectedPackets int
	fragments       map[int][]byte
	receivedBytes   int
	startedAt       time.Time
}

func (s *session) store(index int, fragment []byte) bool {
	old, dup := s.fragments[index]
	if dup {
		s.receivedBytes -= len(old)
	}
	s.fragments[index] = fragment
	s.receivedBytes += len(fragment)
	return dup
}

// assemble concatenates fragments 0..expectedPackets-1. It fails if any index
// in that range is absent.
func (s *session) assemble() ([]byte, bool) {
	payload := make([]byte, 0, s.receivedBytes)
	for i := 0; i < s.expectedPackets; i++ {
		fragment, ok := s.fragments[i]
		if !ok {
			return nil, false
		}
		payload = append(payload, fragment...)
	}
	return payload, true
}

// missing returns the lowest absent indices, at most MaxReportedMissing. The
// scan stops after len(fragments)+MaxReportedMissing indices.
func (s *session) missing() []int {
	if s.expectedPackets == UnknownTotal {
		return nil
	}
	var out []int
	for i := 0; i < s.expectedPackets && len(out) < MaxReportedMissing; i++ {
		if _, ok := s.fragments[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// SessionInfo is a snapshot of the active session.
type SessionInfo struct {
	Active          bool
	ID              string
	ExpectedBytes   int
	ExpectedPackets int
	Received        int
	ReceivedBytes   int
	StartedAt       time.Time
}

// Decoder classifies received packets and reassembles transfers. It holds at
// most one session; all state changes happen inside Handle and Reset, so it
// needs no locking as long as one loop owns it.
type Decoder struct {
	sess         *session
	requireStart bool
	logger       zerolog.Logger
	now          func() time.Time
	newID        func() string
}

type DecoderOption func(d *Decoder)

func WithDecoderLogger(logger zerolog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// WithRequireStart makes the decoder drop Data packets that arrive while no
// session is open instead of opening one implicitly.
func WithRequireStart(require bool) DecoderOption {
	return func(d *Decoder) {
		d.requireStart = require
	}
}

func WithClock(now func() time.Time) DecoderOption {
	return func(d *Decoder) {
		d.now = now
	}
}

func WithSessionIDs(newID func() string) DecoderOption {
	return func(d *Decoder) {
		d.newID = newID
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		logger: zerolog.Nop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reset discards the active session, if any.
func (d *Decoder) Reset() {
	d.sess = nil
}

// Session returns a snapshot of the active session.
func (d *Decoder) Session() SessionInfo {
	if d.sess == nil {
		return SessionInfo{ExpectedBytes: UnknownTotal, ExpectedPackets: UnknownTotal}
	}
	return SessionInfo{
		Active:          true,
		ID:              d.sess.id,
		ExpectedBytes:   d.sess.expectedBytes,
		ExpectedPackets: d.sess.expectedPackets,
		Received:        len(d.sess.fragments),
		ReceivedBytes:   d.sess.receivedBytes,
		StartedAt:       d.sess.startedAt,
	}
}

// Handle processes one framed packet and reports what it did. Malformed and
// unknown packets never change the session.
func (d *Decoder) Handle(raw []byte) Event {
	if len(raw) == 0 {
		return Event{Kind: EventNone}
	}

	d.logger.Debug().Int("bytes", len(raw)).Bytes("preview", preview(raw)).Msg("packet received")

	pkt, err := protocol.Parse(raw)
	if err != nil {
		if errors.Is(err, protocol.ErrUnrecognized) {
			d.logger.Warn().Int("bytes", len(raw)).Bytes("preview", preview(raw)).Msg("unrecognized packet")
			return Event{Kind: EventUnrecognized, Raw: raw}
		}
		d.logger.Warn().Err(err).Msg("dropping malformed packet")
		return Event{Kind: EventParseError, Raw: raw, Err: err}
	}

	switch pkt.Kind {
	case protocol.KindStart:
		return d.handleStart(pkt)
	case protocol.KindData:
		return d.handleData(pkt)
	default:
		return d.handleEnd()
	}
}

func (d *Decoder) handleStart(pkt protocol.Packet) Event {
	discarded := 0
	if d.sess != nil {
		discarded = len(d.sess.fragments)
		if discarded > 0 {
			d.logger.Warn().Str("session", d.sess.id).Int("discarded", discarded).Msg("new start supersedes incomplete session")
		}
	}

	d.sess = d.openSession(pkt.TotalBytes, pkt.TotalPackets)
	d.logger.Info().
		Str("session", d.sess.id).
		Int("expected_bytes", pkt.TotalBytes).
		Int("expected_packets", pkt.TotalPackets).
		Msg("start received")

	return Event{
		Kind:            EventSessionStarted,
		SessionID:       d.sess.id,
		ExpectedBytes:   pkt.TotalBytes,
		ExpectedPackets: pkt.TotalPackets,
		Discarded:       discarded,
	}
}

func (d *Decoder) handleData(pkt protocol.Packet) Event {
	if d.sess == nil {
		if d.requireStart {
			d.logger.Warn().Int("index", pkt.Index).Int("total", pkt.TotalPackets).Msg("data without start, dropped")
			return Event{Kind: EventOrphanFragment, Index: pkt.Index, ExpectedPackets: pkt.TotalPackets, ExpectedBytes: UnknownTotal}
		}
		d.sess = d.openSession(UnknownTotal, pkt.TotalPackets)
		d.logger.Warn().Str("session", d.sess.id).Msg("data without start, opening session")
	}

	s := d.sess
	mismatch := s.expectedPackets != UnknownTotal && s.expectedPackets != pkt.TotalPackets
	if mismatch {
		d.logger.Warn().
			Str("session", s.id).
			Int("expected_packets", s.expectedPackets).
			Int("packet_total", pkt.TotalPackets).
			Msg("packet total disagrees with session")
	}
	s.expectedPackets = pkt.TotalPackets

	dup := s.store(pkt.Index, pkt.Fragment)
	d.logger.Info().
		Str("session", s.id).
		Int("index", pkt.Index).
		Int("total", pkt.TotalPackets).
		Int("bytes", len(pkt.Fragment)).
		Bool("duplicate", dup).
		Msg("fragment stored")

	return Event{
		Kind:            EventFragmentStored,
		SessionID:       s.id,
		ExpectedBytes:   s.expectedBytes,
		ExpectedPackets: s.expectedPackets,
		Received:        len(s.fragments),
		Index:           pkt.Index,
		FragmentSize:    len(pkt.Fragment),
		Duplicate:       dup,
		TotalMismatch:   mismatch,
	}
}

// handleEnd is the completeness checkpoint. The session is cleared whatever
// the outcome; there is no resuming across an End.
func (d *Decoder) handleEnd() Event {
	s := d.sess
	d.Reset()

	if s == nil {
		d.logger.Warn().Msg("end received without session")
		return Event{Kind: EventTransferIncomplete, ExpectedBytes: UnknownTotal, ExpectedPackets: UnknownTotal}
	}

	received := len(s.fragments)
	if s.expectedPackets != UnknownTotal && received == s.expectedPackets {
		if payload, ok := s.assemble(); ok {
			sizeMismatch := s.expectedBytes != UnknownTotal && len(payload) != s.expectedBytes
			ev := d.logger.Info()
			if sizeMismatch {
				ev = d.logger.Warn()
			}
			ev.Str("session", s.id).
				Int("bytes", len(payload)).
				Int("expected_bytes", s.expectedBytes).
				Dur("elapsed", d.now().Sub(s.startedAt)).
				Msg("transfer complete")

			return Event{
				Kind:            EventTransferComplete,
				SessionID:       s.id,
				ExpectedBytes:   s.expectedBytes,
				ExpectedPackets: s.expectedPackets,
				Received:        received,
				Payload:         payload,
				SizeMismatch:    sizeMismatch,
			}
		}
	}

	missing := s.missing()
	d.logger.Warn().
		Str("session", s.id).
		Int("received", received).
		Int("expected", s.expectedPackets).
		Ints("missing", missing).
		Msg("transfer incomplete")

	return Event{
		Kind:            EventTransferIncomplete,
		SessionID:       s.id,
		ExpectedBytes:   s.expectedBytes,
		ExpectedPackets: s.expectedPackets,
		Received:        received,
		Missing:         missing,
	}
}

func (d *Decoder) openSession(expectedBytes, expectedPackets int) *session {
	return &session{
		id:              d.newID(),
		expectedBytes:   expectedBytes,
		expectedPackets: expectedPackets,
		fragments:       make(map[int][]byte),
		startedAt:       d.now(),
	}
}

func preview(raw []byte) []byte {
	if len(raw) > logPreviewBytes {
		return raw[:logPreviewBytes]
	}
	return raw
}
