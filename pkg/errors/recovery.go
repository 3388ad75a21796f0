package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
)

// PanicError represents an error recovered from a panic.
type PanicError struct {
	Op    string
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("consensusopls: panic in %s: %v", e.Op, e.Value)
}

// NewPanicError creates a PanicError carrying the recovered value and stack.
func NewPanicError(op string, value interface{}) error {
	return errors.WithStack(&PanicError{
		Op:    op,
		Value: value,
		Stack: debug.Stack(),
	})
}

// Recover converts a panic into an error. Use with defer:
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        err = errors.Recover("kernel fusion", r)
//	    }
//	}()
func Recover(op string, recovered interface{}) error {
	if recovered == nil {
		return nil
	}
	if err, ok := recovered.(error); ok {
		return errors.Wrapf(err, "consensusopls: panic in %s", op)
	}
	return NewPanicError(op, recovered)
}

// SafeExecute runs fn and converts any panic into an error.
// Numerical routines dispatched to worker goroutines run inside
// SafeExecute so a single degenerate cell cannot take down the process.
func SafeExecute(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Recover(op, r)
		}
	}()
	return fn()
}
