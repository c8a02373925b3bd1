package domain

import (
	"errors"
	"fmt"
)

// Caller-misuse errors. These indicate a bug at the integration boundary and
// are never shown to the end user as driver validation messages.
var (
	// ErrAnswerKindMismatch is returned when an answer's tag does not match
	// the pending question's kind. The driver is not invoked in that case.
	ErrAnswerKindMismatch = errors.New("answer kind does not match question")

	// ErrInvalidRewindTarget is returned when a rewind position is out of
	// range or there is no answered step to rewind to.
	ErrInvalidRewindTarget = errors.New("invalid rewind target")

	// ErrSessionDone is returned when progressing a completed session.
	ErrSessionDone = errors.New("session is already done")

	// ErrSessionNotDone is returned when reading the result of a session
	// that has not completed.
	ErrSessionNotDone = errors.New("session is not done yet")

	// ErrNoPendingQuestion is returned when the session has not been started.
	ErrNoPendingQuestion = errors.New("no pending question")

	// ErrSessionNotFound is returned when a session ID cannot be found in a store.
	ErrSessionNotFound = errors.New("session not found")
)

// Driver protocol causes, wrapped in *ProtocolError.
var (
	// ErrFirstPollRejected: the driver returned an error outcome on the very
	// first call, where no answer exists to reject.
	ErrFirstPollRejected = errors.New("driver rejected the initial poll")

	// ErrMalformedOutcome: the driver's return value did not match the
	// {status, props, state} contract for its tag.
	ErrMalformedOutcome = errors.New("malformed driver outcome")

	// ErrDriverFault: the script runtime itself failed while executing the
	// driver function.
	ErrDriverFault = errors.New("driver execution failed")
)

// ProtocolError reports a driver contract breakage. It is fatal to the
// session: purity means a retry would reproduce the same failure, so the
// engine never retries and the session should be treated as unusable.
type ProtocolError struct {
	// Op is the engine operation during which the violation surfaced.
	Op string
	// Err is the underlying cause, usually one of the protocol sentinels.
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("driver protocol violation during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError wraps cause as a fatal protocol violation.
func NewProtocolError(op string, cause error) *ProtocolError {
	return &ProtocolError{Op: op, Err: cause}
}

// IsProtocolViolation reports whether err is (or wraps) a ProtocolError.
func IsProtocolViolation(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
