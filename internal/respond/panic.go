package respond

import (
	"fmt"
	"runtime/debug"
)

// PanicError carries a value recovered from a panicking handler body or
// sub-operation.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError captures v together with the current goroutine's stack
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error, so a handler
// that panics with a business error still gets that error's status.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
