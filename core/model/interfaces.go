package model

import "gonum.org/v1/gonum/mat"

// Fitter is the interface for models trained on a data matrix and response.
// For kernel methods X is the training kernel.
type Fitter interface {
	// Fit trains the model.
	Fit(X, y mat.Matrix) error
}

// Predictor is the interface for models that predict a response matrix.
type Predictor interface {
	// Predict returns predictions for the input data.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Transformer is the interface for stateful data transformations such as
// response scaling.
type Transformer interface {
	// Fit learns the transformation parameters.
	Fit(X mat.Matrix) error

	// Transform applies the learned transformation.
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform combines Fit and Transform in one call.
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer is implemented by transformations that can be undone,
// such as rescaling predictions back to the original response units.
type InverseTransformer interface {
	Transformer

	// InverseTransform reverses the learned transformation.
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}
