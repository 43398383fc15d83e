package pipe

import (
	"errors"
	"fmt"
)

// ErrorRun is returned if a stage was successfully started, but execution
// and/or flush failed.
type ErrorRun struct {
	ErrExec  error
	ErrFlush error
}

func (e *ErrorRun) Error() string {
	switch {
	case e.ErrExec != nil && e.ErrFlush != nil:
		return fmt.Sprintf("flush error: %v after execute error: %v", e.ErrFlush, e.ErrExec)
	case e.ErrExec != nil:
		return fmt.Sprintf("execute error: %v", e.ErrExec)
	case e.ErrFlush != nil:
		return fmt.Sprintf("flush error: %v", e.ErrFlush)
	}
	return ""
}

// Is checks if any of errors match provided sentinel error.
func (e *ErrorRun) Is(err error) bool {
	if e.ErrExec != nil && errors.Is(e.ErrExec, err) {
		return true
	}
	if e.ErrFlush != nil && errors.Is(e.ErrFlush, err) {
		return true
	}
	return false
}

// runError returns untyped nil if neither execution nor flush failed.
func runError(exec, flush error) error {
	if exec == nil && flush == nil {
		return nil
	}
	return &ErrorRun{ErrExec: exec, ErrFlush: flush}
}
