package feed

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied is returned by a Locator when the user has not granted
// access to their location.
var ErrPermissionDenied = errors.New("location permission denied")

// FetchError records a failed page fetch. Items already shown are kept and
// nothing is retried; the next user action starts a fresh fetch.
type FetchError struct {
	Mode     Mode
	LoadMore bool
	Err      error
}

func (e *FetchError) Error() string {
	if e.LoadMore {
		return fmt.Sprintf("fetch more %s posts: %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("fetch %s posts: %v", e.Mode, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
