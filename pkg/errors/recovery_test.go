package errors

import (
	"strings"
	"testing"
)

func TestSafeExecuteNoPanic(t *testing.T) {
	err := SafeExecute("clean op", func() error {
		return nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSafeExecuteReturnsError(t *testing.T) {
	want := NewValidationError("nfold", "must be at least 2", 1)
	err := SafeExecute("validated op", func() error {
		return want
	})

	var ve *ValidationError
	if !As(err, &ve) {
		t.Error("SafeExecute should return fn's error unchanged")
	}
}

func TestSafeExecuteConvertsPanic(t *testing.T) {
	err := SafeExecute("cv cell 3", func() error {
		panic("index out of range")
	})
	if err == nil {
		t.Fatal("expected an error from a panicking fn")
	}

	var pe *PanicError
	if !As(err, &pe) {
		t.Fatalf("expected *PanicError, got %T: %v", err, err)
	}
	if pe.Op != "cv cell 3" {
		t.Errorf("Op = %q, want %q", pe.Op, "cv cell 3")
	}
	if !strings.Contains(err.Error(), "index out of range") {
		t.Errorf("panic value should appear in the message: %v", err)
	}
	if len(pe.Stack) == 0 {
		t.Error("expected a captured stack trace")
	}
}

func TestSafeExecutePanicWithError(t *testing.T) {
	inner := NewNumericalDegeneracyError("eigendecomposition", "Tp'KTp", "factorization failed")
	err := SafeExecute("ortho component", func() error {
		panic(inner)
	})
	if err == nil {
		t.Fatal("expected an error")
	}

	// An error panic keeps its type through the recovery wrapper.
	var nd *NumericalDegeneracyError
	if !As(err, &nd) {
		t.Errorf("expected wrapped *NumericalDegeneracyError, got %v", err)
	}
}

func TestRecoverNil(t *testing.T) {
	if err := Recover("noop", nil); err != nil {
		t.Errorf("Recover(nil) should return nil, got %v", err)
	}
}
