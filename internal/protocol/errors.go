package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedStart  = errors.New("malformed start packet")
	ErrMalformedData   = errors.New("malformed data packet")
	ErrIndexOutOfRange = errors.New("fragment index out of range")
	ErrUnrecognized    = errors.New("unrecognized packet")
	ErrEmptyPacket     = errors.New("empty packet")
)

// ParseError reports a packet whose marker was recognised but whose fields were not.
type ParseError struct {
	Kind Kind
	Raw  []byte
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s packet: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
