// Package errors provides the error handling and warning system used across
// the library. Every failure mode of the modeling pipeline maps to one typed
// error here, so callers can branch with errors.As and structured logs carry
// the numeric context of the failure.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// The default handler logs to standard error.
		log.Printf("ConsensusOPLS-Warning: %v\n", w)
	}
	// zerolog sink, injected lazily to avoid an import cycle with pkg/log.
	zerologWarnFunc func(warning error)
)

// SetWarningHandler sets the library-wide warning handler. Warnings are
// non-fatal conditions (a degenerate cross-validation cell, an undefined
// metric entry) that the pipeline survives but the caller should know about.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc routes warnings through a zerolog-backed sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn raises a warning. The zerolog sink takes precedence when configured;
// otherwise the plain handler runs.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warning types
//
// ===========================================================================

// UndefinedMetricWarning is raised when a quality metric cannot be computed,
// for example a Q2 curve entry whose cross-validated predictions are all
// missing.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // value reported under this condition
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject adds the structured warning fields to a zerolog event.
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning creates a new UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// CellFailureWarning is raised when individual cross-validation or
// permutation cells failed and were recorded as missing results rather than
// aborting the whole run.
type CellFailureWarning struct {
	Stage  string
	Failed int
	Total  int
}

func (w *CellFailureWarning) Error() string {
	return fmt.Sprintf("%s: %d of %d cells failed and propagate as missing predictions", w.Stage, w.Failed, w.Total)
}

// MarshalZerologObject adds the structured warning fields to a zerolog event.
func (w *CellFailureWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("stage", w.Stage).
		Int("failed_cells", w.Failed).
		Int("total_cells", w.Total).
		Str("type", "CellFailureWarning")
}

// NewCellFailureWarning creates a new CellFailureWarning.
func NewCellFailureWarning(stage string, failed, total int) *CellFailureWarning {
	return &CellFailureWarning{Stage: stage, Failed: failed, Total: total}
}

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// ValidationError reports invalid caller input: mismatched block dimensions,
// an unusable response, an unknown model-type or cross-validation scheme tag.
// Validation errors abort a fit before any parallel work is dispatched.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("consensusopls: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a new ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ConfigurationError reports an unusable model configuration: an unknown
// kernel family, a missing kernel parameter, or prediction-time blocks whose
// variable sets do not match the fitted blocks.
type ConfigurationError struct {
	Component string
	Option    string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("consensusopls: %s: invalid configuration for '%s': %s", e.Component, e.Option, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("component", e.Component).
		Str("option", e.Option).
		Str("reason", e.Reason).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a new ConfigurationError with a stack trace.
func NewConfigurationError(component, option, reason string) error {
	err := &ConfigurationError{Component: component, Option: option, Reason: reason}
	return errors.WithStack(err)
}

// NumericalDegeneracyError reports a matrix that cannot support the requested
// computation: a block kernel with zero Frobenius norm, or a singular matrix
// where an inverse is required.
type NumericalDegeneracyError struct {
	Op     string
	Matrix string
	Reason string
}

func (e *NumericalDegeneracyError) Error() string {
	return fmt.Sprintf("consensusopls: %s: numerical degeneracy in %s: %s", e.Op, e.Matrix, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *NumericalDegeneracyError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("matrix", e.Matrix).
		Str("reason", e.Reason).
		Str("type", "NumericalDegeneracyError")
}

// NewNumericalDegeneracyError creates a new NumericalDegeneracyError with a
// stack trace.
func NewNumericalDegeneracyError(op, matrix, reason string) error {
	err := &NumericalDegeneracyError{Op: op, Matrix: matrix, Reason: reason}
	return errors.WithStack(err)
}

// ConvergenceError reports rank exhaustion inside the deflation loop: the
// requested component could not be extracted because the remaining kernel
// carries no usable variance. Terminal for the affected fit; the caller must
// reduce the requested component counts.
type ConvergenceError struct {
	Op        string
	Component int     // 1-based index of the component that failed
	Norm      float64 // norm of the degenerate direction
	Tol       float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("consensusopls: %s: component %d cannot be extracted: residual magnitude %.3e below tolerance %.3e (rank exhausted)",
		e.Op, e.Component, e.Norm, e.Tol)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ConvergenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("component", e.Component).
		Float64("norm", e.Norm).
		Float64("tolerance", e.Tol).
		Str("type", "ConvergenceError")
}

// NewConvergenceError creates a new ConvergenceError with a stack trace.
func NewConvergenceError(op string, component int, norm, tol float64) error {
	err := &ConvergenceError{Op: op, Component: component, Norm: norm, Tol: tol}
	return errors.WithStack(err)
}

// NotFittedError is returned when Predict or an accessor is called on a model
// that has not been fitted.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("consensusopls: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a new NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError reports a shape mismatch between two matrices that must
// agree, such as a kernel and its response.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns
}

func (e *DimensionError) Error() string {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("consensusopls: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a new DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches the target error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As reports whether err can be assigned to the target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an existing error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to an error.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Common error variables
//
// ===========================================================================

var (
	// ErrEmptyData is returned when an empty matrix or block list is supplied.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a matrix inversion fails.
	ErrSingularMatrix = New("singular matrix")
)
