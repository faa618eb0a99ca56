package link

// DefaultMaxPacketSize caps how many bytes the Framer accumulates before it
// cuts a packet regardless of the line being busy.
const DefaultMaxPacketSize = 4096

// Framer splits a byte stream into packets at read boundaries: bytes from
// consecutive reads belong to the same packet until a read comes back empty.
// The sender's mandatory pause between packets produces that empty read, which
// is why fragments need no escaping.
type Framer struct {
	buf []byte
	max int
}

// NewFramer returns a Framer cutting packets at maxPacketSize bytes at the
// latest; values <= 0 select DefaultMaxPacketSize.
func NewFramer(maxPacketSize int) *Framer {
	if maxPacketSize <= 0 {
		maxPacketSize = DefaultMaxPacketSize
	}
	return &Framer{max: maxPacketSize}
}

// Push feeds the result of one read and returns the packets it completed. An
// empty read completes the pending packet, if any.
func (f *Framer) Push(data []byte) [][]byte {
	if len(data) == 0 {
		if pkt := f.Flush(); pkt != nil {
			return [][]byte{pkt}
		}
		return nil
	}

	f.buf = append(f.buf, data...)

	var packets [][]byte
	for len(f.buf) >= f.max {
		pkt := make([]byte, f.max)
		copy(pkt, f.buf[:f.max])
		packets = append(packets, pkt)
		f.buf = f.buf[f.max:]
	}
	return packets
}

// Flush returns the pending bytes as a packet, or nil if there are none.
func (f *Framer) Flush() []byte {
	if len(f.buf) == 0 {
		return nil
	}
	pkt := f.buf
	f.buf = nil
	return pkt
}

// Pending reports how many bytes are buffered.
func (f *Framer) Pending() int { return len(f.buf) }
