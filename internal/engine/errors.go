package engine

import (
	"errors"
	"fmt"
)

// DispatchError reports a handler failure while processing a trigger.
type DispatchError struct {
	Trigger Trigger
	Handler string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s (id=%s) to %s: %v", e.Trigger, e.Trigger.ID, e.Handler, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// IsDispatchError reports whether err wraps a DispatchError.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}
