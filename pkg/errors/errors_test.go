package errors

import (
	"math"
	"strings"
	"sync"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("nfold", "must be at least 2", 1)

	if !strings.Contains(err.Error(), "nfold") {
		t.Errorf("error message should contain parameter name: %v", err)
	}
	if !strings.Contains(err.Error(), "must be at least 2") {
		t.Errorf("error message should contain reason: %v", err)
	}

	var ve *ValidationError
	if !As(err, &ve) {
		t.Fatal("expected errors.As to unwrap *ValidationError")
	}
	if ve.ParamName != "nfold" {
		t.Errorf("ParamName = %q, want %q", ve.ParamName, "nfold")
	}
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("kernel", "family", "unknown kernel family \"cubic\"")

	if !strings.Contains(err.Error(), "kernel") {
		t.Errorf("error message should contain component: %v", err)
	}

	var ce *ConfigurationError
	if !As(err, &ce) {
		t.Fatal("expected errors.As to unwrap *ConfigurationError")
	}
	if ce.Option != "family" {
		t.Errorf("Option = %q, want %q", ce.Option, "family")
	}
}

func TestConvergenceError(t *testing.T) {
	err := NewConvergenceError("orthogonal deflation", 2, 1e-15, 1e-12)

	var conv *ConvergenceError
	if !As(err, &conv) {
		t.Fatal("expected errors.As to unwrap *ConvergenceError")
	}
	if conv.Component != 2 {
		t.Errorf("Component = %d, want 2", conv.Component)
	}
	if conv.Norm >= conv.Tol {
		t.Errorf("expected Norm (%g) below Tol (%g)", conv.Norm, conv.Tol)
	}
}

func TestNotFittedError(t *testing.T) {
	err := NewNotFittedError("ConsensusModel", "Predict")

	if !strings.Contains(err.Error(), "not fitted") {
		t.Errorf("error message should mention the unfitted state: %v", err)
	}

	var nf *NotFittedError
	if !As(err, &nf) {
		t.Fatal("expected errors.As to unwrap *NotFittedError")
	}
	if nf.Method != "Predict" {
		t.Errorf("Method = %q, want %q", nf.Method, "Predict")
	}
}

func TestDimensionError(t *testing.T) {
	err := NewDimensionError("block validation", 20, 19, 0)

	var de *DimensionError
	if !As(err, &de) {
		t.Fatal("expected errors.As to unwrap *DimensionError")
	}
	if de.Expected != 20 || de.Got != 19 {
		t.Errorf("Expected/Got = %d/%d, want 20/19", de.Expected, de.Got)
	}
}

func TestNumericalDegeneracyError(t *testing.T) {
	err := NewNumericalDegeneracyError("frobenius normalization", "block kernel", "zero norm")

	var nd *NumericalDegeneracyError
	if !As(err, &nd) {
		t.Fatal("expected errors.As to unwrap *NumericalDegeneracyError")
	}
	if nd.Op != "frobenius normalization" {
		t.Errorf("Op = %q, want %q", nd.Op, "frobenius normalization")
	}
}

func TestWrapPreservesType(t *testing.T) {
	base := NewValidationError("maxPcomp", "must be positive", 0)
	wrapped := Wrap(base, "fitting consensus model")

	var ve *ValidationError
	if !As(wrapped, &ve) {
		t.Error("wrapping should preserve the underlying error type")
	}
	if !strings.Contains(wrapped.Error(), "fitting consensus model") {
		t.Errorf("wrapped message should contain context: %v", wrapped)
	}
}

func TestWarnHandler(t *testing.T) {
	var mu sync.Mutex
	var captured []error

	SetWarningHandler(func(w error) {
		mu.Lock()
		captured = append(captured, w)
		mu.Unlock()
	})
	defer SetWarningHandler(func(w error) {})

	Warn(NewUndefinedMetricWarning("Q2", "zero total sum of squares", math.NaN()))
	Warn(NewCellFailureWarning("cross-validation", 2, 20))

	mu.Lock()
	defer mu.Unlock()
	if len(captured) != 2 {
		t.Fatalf("captured %d warnings, want 2", len(captured))
	}
	if !strings.Contains(captured[0].Error(), "Q2") {
		t.Errorf("first warning should mention the metric: %v", captured[0])
	}
	if !strings.Contains(captured[1].Error(), "2 of 20") {
		t.Errorf("cell failure warning should report counts: %v", captured[1])
	}
}

func TestSentinelErrors(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "loading blocks")
	if !Is(wrapped, ErrEmptyData) {
		t.Error("wrapped sentinel should match with errors.Is")
	}
}
