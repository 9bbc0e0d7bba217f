package fm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is matched by every *StateError
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrDevice          = errors.New("device command failed")
	ErrTimeout         = errors.New("timed out waiting for device")
	// ErrAborted is the no-result outcome of a stopped seek or scan
	ErrAborted = errors.New("search aborted")
	// ErrDisabled means the device turned itself off while an operation waited
	ErrDisabled = errors.New("device disabled")
)

// StateError is returned when an operation's precondition on the
// lifecycle state does not hold
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: not allowed in state %s", e.Op, e.State)
}

// Is makes errors.Is(err, ErrInvalidState) true
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

func deviceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDevice, err)
}

func invalidArgument(op, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidArgument, fmt.Sprintf(format, args...))
}
