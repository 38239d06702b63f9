package kdbipc

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (§7). Compare with errors.Is, not type
// assertion, except for the two structured kinds below that carry a
// payload.
var (
	ErrConnectionRefused = errors.New("kdbipc: connection refused")
	ErrAuthRejected      = errors.New("kdbipc: handshake rejected")
	ErrPeerClosed        = errors.New("kdbipc: peer closed before a complete frame was read")
	ErrCompression       = errors.New("kdbipc: compression error")
	ErrType              = errors.New("kdbipc: type error")
	ErrIO                = errors.New("kdbipc: io error")
	errUnsupportedPlatform = errors.New("kdbipc: not supported on this platform")
	// ErrSyncInFlight is the programmer error raised when a second
	// send_sync is attempted on a session with one already in flight
	// (§5, "programmer error the API must prevent by construction").
	ErrSyncInFlight = errors.New("kdbipc: a sync request is already in flight on this session")
)

// MalformedMessageError reports a §4.D decode failure, with the byte
// offset into the frame body at which the violation was detected.
type MalformedMessageError struct {
	Offset int
	Reason string
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("kdbipc: malformed message at offset %d: %s", e.Offset, e.Reason)
}

func (e *MalformedMessageError) Is(target error) bool {
	_, ok := target.(*MalformedMessageError)
	return ok
}

// QError is the recoverable "peer raised a q error" outcome (§7): a
// send_sync that completes with a tag -128 reply surfaces one of
// these rather than terminating the session.
type QError struct {
	Symbol string
}

func (e *QError) Error() string {
	return fmt.Sprintf("kdbipc: q error: %s", e.Symbol)
}

func (e *QError) Is(target error) bool {
	_, ok := target.(*QError)
	return ok
}

// IsQError reports whether err is (or wraps) a QError, mirroring the
// teacher's IsErrSingleCmdTerm/IsErrDoubleCmdTerm predicate style.
func IsQError(err error) bool {
	var q *QError
	return errors.As(err, &q)
}
