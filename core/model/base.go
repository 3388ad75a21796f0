// Package model provides the fitted-state tracking and estimator interfaces
// shared by every model in the library.
package model

// EstimatorState represents the training state of a model.
type EstimatorState int

const (
	// NotFitted is the state of a model before training.
	NotFitted EstimatorState = iota
	// Fitted is the state of a model after successful training.
	Fitted
)

// BaseEstimator is the embedded base of every model. It tracks whether the
// model has been fitted so accessors can fail fast with a NotFittedError.
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted reports whether the model has been fitted.
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted marks the model as fitted.
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// Reset returns the model to its initial unfitted state.
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
}
