package transfer

// UnknownTotal marks a count that no packet has declared yet.
const UnknownTotal = -1

// EventKind identifies what handling one packet produced.
type EventKind uint8

const (
	// EventNone is returned for empty input.
	EventNone EventKind = iota
	EventSessionStarted
	EventFragmentStored
	EventTransferComplete
	EventTransferIncomplete
	EventUnrecognized
	EventParseError
	// EventOrphanFragment is a Data packet dropped because no Start preceded
	// it and the decoder requires one.
	EventOrphanFragment
)

func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "none"
	case EventSessionStarted:
		return "session-started"
	case EventFragmentStored:
		return "fragment-stored"
	case EventTransferComplete:
		return "transfer-complete"
	case EventTransferIncomplete:
		return "transfer-incomplete"
	case EventUnrecognized:
		return "unrecognized"
	case EventParseError:
		return "parse-error"
	case EventOrphanFragment:
		return "orphan-fragment"
	default:
		return "unknown"
	}
}

// Event is the outcome of Decoder.Handle. Fields not relevant to Kind are zero.
type Event struct {
	Kind      EventKind
	SessionID string

	// Declared by Start, or UnknownTotal.
	ExpectedBytes   int
	ExpectedPackets int

	// Fragments held by the session after this packet; for an incomplete
	// transfer, the fragments that had arrived.
	Received int

	// EventSessionStarted: fragments of a superseded session that were dropped.
	Discarded int

	// EventFragmentStored.
	Index         int
	FragmentSize  int
	Duplicate     bool
	TotalMismatch bool

	// EventTransferComplete.
	Payload      []byte
	SizeMismatch bool

	// EventTransferIncomplete: the lowest indices below ExpectedPackets that
	// never arrived, at most MaxReportedMissing of them.
	Missing []int

	// EventUnrecognized and EventParseError.
	Raw []byte
	Err error
}
