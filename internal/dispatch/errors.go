package dispatch

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoController         = errors.New("no controller bound")
	ErrUnsupportedOperation = errors.New("operation not supported")
	ErrInvalidRequest       = errors.New("invalid request")
)

// NotImplementedError is returned for resource paths containing segment
// kinds this dispatcher does not handle.
type NotImplementedError struct {
	Kind SegmentKind
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("resource path segment '%s' is not implemented", e.Kind)
}
