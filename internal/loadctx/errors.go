package loadctx

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by LoadType after Close.
var ErrClosed = errors.New("loadctx: context closed")

// TypeNotFoundError reports a name absent from the context's search path.
type TypeNotFoundError struct {
	Name string
}

func (e *TypeNotFoundError) Error() string {
	return fmt.Sprintf("type %s not found", e.Name)
}

// TypeLoadError reports a type whose class file exists but cannot be
// loaded: it is corrupt, names a different type, or a supertype is missing.
type TypeLoadError struct {
	Name   string
	Reason string
	Err    error
}

func (e *TypeLoadError) Error() string {
	msg := fmt.Sprintf("load type %s: %s", e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeLoadError) Unwrap() error { return e.Err }
