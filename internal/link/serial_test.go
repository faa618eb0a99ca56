package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort implements serial.Port for host-side tests.
type fakePort struct {
	written     []byte
	reads       [][]byte
	readErr     error
	writeErr    error
	maxWrite    int
	drained     int
	readTimeout time.Duration
	closed      bool
}

func (p *fakePort) SetMode(mode *serial.Mode) error { return nil }

func (p *fakePort) Read(buf []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.reads) == 0 {
		return 0, nil
	}
	n := copy(buf, p.reads[0])
	p.reads = p.reads[1:]
	return n, nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	n := len(data)
	if p.maxWrite > 0 && n > p.maxWrite {
		n = p.maxWrite
	}
	p.written = append(p.written, data[:n]...)
	return n, nil
}

func (p *fakePort) Drain() error                                         { p.drained++; return nil }
func (p *fakePort) ResetInputBuffer() error                              { return nil }
func (p *fakePort) ResetOutputBuffer() error                             { return nil }
func (p *fakePort) SetDTR(dtr bool) error                                { return nil }
func (p *fakePort) SetRTS(rts bool) error                                { return nil }
func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return &serial.ModemStatusBits{}, nil }
func (p *fakePort) SetReadTimeout(t time.Duration) error                 { p.readTimeout = t; return nil }
func (p *fakePort) Close() error                                         { p.closed = true; return nil }
func (p *fakePort) Break(time.Duration) error                            { return nil }

func TestSerialConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  SerialConfig
		want error
	}{
		{name: "valid", cfg: SerialConfig{Port: "/dev/ttyS0", BaudRate: 9600}},
		{name: "missing port", cfg: SerialConfig{BaudRate: 9600}, want: ErrNoPort},
		{name: "zero baud", cfg: SerialConfig{Port: "/dev/ttyS0"}, want: ErrInvalidBaudRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSerialLinkWriteAll(t *testing.T) {
	port := &fakePort{maxWrite: 3}
	l, err := newSerialLink(port, "fake", newOptions([]Option{WithReadTimeout(50 * time.Millisecond)}))
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, port.readTimeout)

	require.NoError(t, l.Write([]byte("CHUNK:0/1:abcdef")))
	assert.Equal(t, []byte("CHUNK:0/1:abcdef"), port.written)
	assert.Equal(t, 1, port.drained)
}

func TestSerialLinkWriteError(t *testing.T) {
	boom := errors.New("boom")
	l, err := newSerialLink(&fakePort{writeErr: boom}, "fake", newOptions(nil))
	require.NoError(t, err)

	assert.ErrorIs(t, l.Write([]byte("x")), boom)
}

func TestSerialLinkReadAvailable(t *testing.T) {
	port := &fakePort{reads: [][]byte{[]byte("START:1:1:")}}
	l, err := newSerialLink(port, "fake", newOptions(nil))
	require.NoError(t, err)

	ctx := context.Background()
	got, err := l.ReadAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("START:1:1:"), got)

	got, err = l.ReadAvailable(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSerialLinkClose(t *testing.T) {
	port := &fakePort{}
	l, err := newSerialLink(port, "fake", newOptions(nil))
	require.NoError(t, err)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.True(t, port.closed)

	assert.ErrorIs(t, l.Write([]byte("x")), ErrClosed)
	_, err = l.ReadAvailable(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
