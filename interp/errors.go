package interp

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a generic-operation failure.
type ErrorKind uint8

const (
	TypeError ErrorKind = iota
	ReferenceError
	RangeError
)

var errorKindNames = [...]string{"TypeError", "ReferenceError", "RangeError"}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Error is a script-level exception raised by a generic operation. It
// propagates unchanged through the IC dispatch.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsError reports whether err is a script exception of the given kind.
func IsError(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
