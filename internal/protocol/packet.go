package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// Wire markers. Start and Data carry textual decimal fields separated by
// FieldDelimiter; the Data fragment follows its metadata unescaped.
const (
	StartMarker    = "START:"
	DataMarker     = "CHUNK:"
	EndMarker      = "ENDE_BILDUPLOAD"
	FieldDelimiter = ':'
	CountDelimiter = '/'
)

// Kind tags the packet variant.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindStart
	KindData
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindData:
		return "data"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Packet is one unit on the wire. Which fields are meaningful depends on Kind:
// Start uses TotalBytes and TotalPackets, Data uses Index, TotalPackets and
// Fragment, End uses none.
type Packet struct {
	Kind         Kind
	TotalBytes   int
	TotalPackets int
	Index        int
	Fragment     []byte
}

// NewStart builds the Start packet announcing a transfer.
func NewStart(totalBytes, totalPackets int) Packet {
	return Packet{Kind: KindStart, TotalBytes: totalBytes, TotalPackets: totalPackets}
}

// NewData builds the Data packet for fragment index of total.
func NewData(index, totalPackets int, fragment []byte) Packet {
	return Packet{Kind: KindData, Index: index, TotalPackets: totalPackets, Fragment: fragment}
}

// NewEnd builds the End sentinel.
func NewEnd() Packet {
	return Packet{Kind: KindEnd}
}

// TotalPackets returns ceil(totalBytes / maxFragmentSize).
func TotalPackets(totalBytes, maxFragmentSize int) int {
	if totalBytes <= 0 || maxFragmentSize <= 0 {
		return 0
	}
	return (totalBytes + maxFragmentSize - 1) / maxFragmentSize
}

// Encode serialises p into its on-air form.
func Encode(p Packet) []byte {
	switch p.Kind {
	case KindStart:
		buf := make([]byte, 0, len(StartMarker)+24)
		buf = append(buf, StartMarker...)
		buf = strconv.AppendInt(buf, int64(p.TotalBytes), 10)
		buf = append(buf, FieldDelimiter)
		buf = strconv.AppendInt(buf, int64(p.TotalPackets), 10)
		return append(buf, FieldDelimiter)
	case KindData:
		buf := make([]byte, 0, len(DataMarker)+24+len(p.Fragment))
		buf = append(buf, DataMarker...)
		buf = strconv.AppendInt(buf, int64(p.Index), 10)
		buf = append(buf, CountDelimiter)
		buf = strconv.AppendInt(buf, int64(p.TotalPackets), 10)
		buf = append(buf, FieldDelimiter)
		return append(buf, p.Fragment...)
	case KindEnd:
		return []byte(EndMarker)
	default:
		return nil
	}
}

// Classify reports which variant raw belongs to without parsing its fields.
// Order matters: Start prefix, then Data anywhere, then End prefix.
func Classify(raw []byte) Kind {
	control := bytes.TrimSpace(raw)
	switch {
	case bytes.HasPrefix(control, []byte(StartMarker)):
		return KindStart
	case bytes.Contains(raw, []byte(DataMarker)):
		return KindData
	case bytes.HasPrefix(control, []byte(EndMarker)):
		return KindEnd
	default:
		return KindUnknown
	}
}

// Parse decodes one framed packet. Field failures are returned as *ParseError;
// input matching no marker returns ErrUnrecognized. The returned Fragment never
// aliases raw.
func Parse(raw []byte) (Packet, error) {
	if len(raw) == 0 {
		return Packet{}, ErrEmptyPacket
	}

	switch Classify(raw) {
	case KindStart:
		return parseStart(raw)
	case KindData:
		return parseData(raw)
	case KindEnd:
		return NewEnd(), nil
	default:
		return Packet{}, ErrUnrecognized
	}
}

func parseStart(raw []byte) (Packet, error) {
	body := bytes.TrimPrefix(bytes.TrimSpace(raw), []byte(StartMarker))
	fields := bytes.Split(body, []byte{FieldDelimiter})
	if len(fields) < 2 {
		return Packet{}, &ParseError{Kind: KindStart, Raw: raw, Err: fmt.Errorf("%w: want 2 fields, got %d", ErrMalformedStart, len(fields))}
	}

	totalBytes, err := parseCount(fields[0])
	if err != nil {
		return Packet{}, &ParseError{Kind: KindStart, Raw: raw, Err: fmt.Errorf("%w: total bytes: %v", ErrMalformedStart, err)}
	}
	totalPackets, err := parseCount(fields[1])
	if err != nil {
		return Packet{}, &ParseError{Kind: KindStart, Raw: raw, Err: fmt.Errorf("%w: total packets: %v", ErrMalformedStart, err)}
	}

	return NewStart(totalBytes, totalPackets), nil
}

func parseData(raw []byte) (Packet, error) {
	at := bytes.Index(raw, []byte(DataMarker))
	rest := raw[at+len(DataMarker):]

	// Only the delimiter closing the metadata is significant; the fragment
	// after it is taken verbatim.
	end := bytes.IndexByte(rest, FieldDelimiter)
	if end < 0 {
		return Packet{}, &ParseError{Kind: KindData, Raw: raw, Err: fmt.Errorf("%w: missing metadata delimiter", ErrMalformedData)}
	}
	meta := rest[:end]

	slash := bytes.IndexByte(meta, CountDelimiter)
	if slash < 0 {
		return Packet{}, &ParseError{Kind: KindData, Raw: raw, Err: fmt.Errorf("%w: metadata %q is not index/total", ErrMalformedData, meta)}
	}
	index, err := parseCount(meta[:slash])
	if err != nil {
		return Packet{}, &ParseError{Kind: KindData, Raw: raw, Err: fmt.Errorf("%w: index: %v", ErrMalformedData, err)}
	}
	total, err := parseCount(meta[slash+1:])
	if err != nil {
		return Packet{}, &ParseError{Kind: KindData, Raw: raw, Err: fmt.Errorf("%w: total: %v", ErrMalformedData, err)}
	}
	if index >= total {
		return Packet{}, &ParseError{Kind: KindData, Raw: raw, Err: fmt.Errorf("%w: %d/%d", ErrIndexOutOfRange, index, total)}
	}

	fragment := make([]byte, len(rest)-end-1)
	copy(fragment, rest[end+1:])

	return NewData(index, total, fragment), nil
}

// parseCount accepts a non-negative decimal that fits an int.
func parseCount(field []byte) (int, error) {
	n, err := strconv.ParseUint(string(field), 10, strconv.IntSize-1)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
