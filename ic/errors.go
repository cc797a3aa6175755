package ic

import (
	"errors"
	"fmt"
)

var (
	// ErrStubSpaceExhausted is returned when a stub space has reached its
	// record limit.
	ErrStubSpaceExhausted = errors.New("ic: stub space exhausted")

	// ErrCodeGeneration is returned when the code generator cannot produce
	// code for a stub.
	ErrCodeGeneration = errors.New("ic: code generation failed")

	// ErrUnknownOp is returned when a script contains an op the engine does
	// not know.
	ErrUnknownOp = errors.New("ic: unknown op")
)

// InvariantError reports corrupted IC state. It is raised with panic and is
// never recovered by the engine: a chain that breaks an invariant could
// dispatch to the wrong code.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "ic: invariant violated: " + e.Msg
}

func invariantf(format string, args ...interface{}) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		invariantf(format, args...)
	}
}
