package call

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyInCall  = errors.New("already in a call")
	ErrNotInCall      = errors.New("not in a call")
	ErrNoVideoSender  = errors.New("no outgoing video sender")
	ErrBadDescription = errors.New("invalid session description")
	ErrEngineStopped  = errors.New("call engine stopped")
	ErrJoinRejected   = errors.New("join rejected by relay")
)

// Error is a failed call operation.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
