package domain

import (
	"errors"
	"fmt"
)

// ErrDataShape marks a build server response that lacks an expected field.
// Renderers degrade to a placeholder when they see it.
var ErrDataShape = errors.New("unexpected response shape")

// FetchError is a failed request to the build server or the chat sink.
// It is transient: the next cycle retries naturally.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// DispatchError is a rejected or failed notification for a single build.
type DispatchError struct {
	Build BuildID
	Stage string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch build %d (%s): %v", e.Build, e.Stage, e.Err)
}
func (e *DispatchError) Unwrap() error { return e.Err }
