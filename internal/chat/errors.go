package chat

import (
	"errors"
	"fmt"
)

// ErrNoRoom is returned when sending before the room has been resolved.
var ErrNoRoom = errors.New("chat room not resolved")

// ErrClosed is returned when a session is used after Close.
var ErrClosed = errors.New("chat session closed")

// WriteError reports a failed room, message or summary write. Writes that
// already succeeded are not rolled back.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("chat %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
