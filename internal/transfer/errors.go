package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrLinkFailure         = errors.New("link failure")
	ErrInvalidFragmentSize = errors.New("max fragment size must be at least 1")
	ErrInvalidInterval     = errors.New("packet interval must be greater than 0")
	ErrTransferFinished    = errors.New("transfer already finished")
	ErrNoTransfer          = errors.New("no transfer in progress")
)

// SendError reports a write that failed on the link. The packets after it
// were never sent; the receiver will see an incomplete transfer.
type SendError struct {
	State State
	Index int
	Err   error
}

func (e *SendError) Error() string {
	if e.State == StateSendingData {
		return fmt.Sprintf("%v while sending fragment %d: %v", ErrLinkFailure, e.Index, e.Err)
	}
	return fmt.Sprintf("%v in state %s: %v", ErrLinkFailure, e.State, e.Err)
}

func (e *SendError) Unwrap() []error { return []error{ErrLinkFailure, e.Err} }
