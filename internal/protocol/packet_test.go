package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalPackets(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int
		fragment int
		want     int
	}{
		{name: "empty payload", bytes: 0, fragment: 200, want: 0},
		{name: "smaller than one fragment", bytes: 1, fragment: 200, want: 1},
		{name: "exact multiple", bytes: 400, fragment: 200, want: 2},
		{name: "remainder", bytes: 450, fragment: 200, want: 3},
		{name: "one byte fragments", bytes: 7, fragment: 1, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalPackets(tt.bytes, tt.fragment))
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
		want   []byte
	}{
		{name: "start", packet: NewStart(450, 3), want: []byte("START:450:3:")},
		{name: "empty start", packet: NewStart(0, 0), want: []byte("START:0:0:")},
		{name: "data", packet: NewData(2, 3, []byte("abc")), want: []byte("CHUNK:2/3:abc")},
		{name: "data with delimiters in fragment", packet: NewData(0, 1, []byte("a:b\nc")), want: []byte("CHUNK:0/1:a:b\nc")},
		{name: "end", packet: NewEnd(), want: []byte("ENDE_BILDUPLOAD")},
		{name: "unknown", packet: Packet{}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.packet))
		})
	}
}

func TestParse(t *testing.T) {
	binary := []byte{0x00, ':', 0xFF, '\n', '/', ':', 0xC0}

	tests := []struct {
		name string
		raw  []byte
		want Packet
	}{
		{name: "start", raw: []byte("START:450:3:"), want: NewStart(450, 3)},
		{name: "start without trailing delimiter", raw: []byte("START:450:3"), want: NewStart(450, 3)},
		{name: "start with line ending", raw: []byte("START:10:1:\r\n"), want: NewStart(10, 1)},
		{name: "data", raw: []byte("CHUNK:1/3:hello"), want: NewData(1, 3, []byte("hello"))},
		{name: "data with binary fragment", raw: append([]byte("CHUNK:0/2:"), binary...), want: NewData(0, 2, binary)},
		{name: "data with leading noise", raw: []byte("\x00\x01CHUNK:0/1:x"), want: NewData(0, 1, []byte("x"))},
		{name: "data with empty fragment", raw: []byte("CHUNK:0/1:"), want: NewData(0, 1, []byte{})},
		{name: "end", raw: []byte("ENDE_BILDUPLOAD"), want: NewEnd()},
		{name: "end with line ending", raw: []byte("ENDE_BILDUPLOAD\n"), want: NewEnd()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		kind Kind
		want error
	}{
		{name: "start with one field", raw: []byte("START:450"), kind: KindStart, want: ErrMalformedStart},
		{name: "start with text fields", raw: []byte("START:abc:def:"), kind: KindStart, want: ErrMalformedStart},
		{name: "start with negative count", raw: []byte("START:-1:3:"), kind: KindStart, want: ErrMalformedStart},
		{name: "start with empty fields", raw: []byte("START:::"), kind: KindStart, want: ErrMalformedStart},
		{name: "data without metadata delimiter", raw: []byte("CHUNK:1/3"), kind: KindData, want: ErrMalformedData},
		{name: "data without slash", raw: []byte("CHUNK:13:xx"), kind: KindData, want: ErrMalformedData},
		{name: "data with text index", raw: []byte("CHUNK:a/3:xx"), kind: KindData, want: ErrMalformedData},
		{name: "data index past total", raw: []byte("CHUNK:3/3:xx"), kind: KindData, want: ErrIndexOutOfRange},
		{name: "data with zero total", raw: []byte("CHUNK:0/0:xx"), kind: KindData, want: ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, tt.raw, perr.Raw)
		})
	}
}

func TestParseUnrecognized(t *testing.T) {
	_, err := Parse([]byte("hello world"))
	assert.ErrorIs(t, err, ErrUnrecognized)

	_, err = Parse(nil)
	assert.ErrorIs(t, err, ErrEmptyPacket)
}

func TestClassifyPriority(t *testing.T) {
	// A Start packet is never mistaken for data even if the marker text follows.
	assert.Equal(t, KindStart, Classify([]byte("START:1:1:CHUNK:")))
	// Data wins over End when both appear.
	assert.Equal(t, KindData, Classify([]byte("ENDE_BILDUPLOADCHUNK:0/1:x")))
	assert.Equal(t, KindUnknown, Classify([]byte("xENDE_BILDUPLOAD")))
}

func TestParseCopiesFragment(t *testing.T) {
	raw := []byte("CHUNK:0/1:abc")
	p, err := Parse(raw)
	require.NoError(t, err)

	copy(raw, bytes.Repeat([]byte{'z'}, len(raw)))
	assert.Equal(t, []byte("abc"), p.Fragment)
}

func TestEncodeParseFragments(t *testing.T) {
	payload := make([]byte, 450)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	const size = 200
	total := TotalPackets(len(payload), size)
	require.Equal(t, 3, total)

	var rebuilt []byte
	for i := 0; i < total; i++ {
		end := min((i+1)*size, len(payload))
		p, err := Parse(Encode(NewData(i, total, payload[i*size:end])))
		require.NoError(t, err)
		assert.Equal(t, i, p.Index)
		rebuilt = append(rebuilt, p.Fragment...)
	}
	assert.Equal(t, payload, rebuilt)
}
