// Package preprocessing provides response scaling and class-label dummy
// coding for the modeling pipeline.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/core/model"
	"github.com/sib-swiss/ConsensusOPLS/pkg/errors"
)

// ScaleMode selects how a response matrix is centered and scaled before
// model estimation.
type ScaleMode string

const (
	// ScaleNone applies no transformation.
	ScaleNone ScaleMode = "no"
	// ScaleCenter mean-centers each column.
	ScaleCenter ScaleMode = "mc"
	// ScaleUnitVariance mean-centers and divides each column by its
	// standard deviation.
	ScaleUnitVariance ScaleMode = "uv"
	// ScalePareto mean-centers and divides each column by the square root
	// of its standard deviation.
	ScalePareto ScaleMode = "pa"
)

// ParseScaleMode converts a mode tag to a ScaleMode. Unknown tags yield a
// ConfigurationError.
func ParseScaleMode(tag string) (ScaleMode, error) {
	switch ScaleMode(tag) {
	case ScaleNone, ScaleCenter, ScaleUnitVariance, ScalePareto:
		return ScaleMode(tag), nil
	default:
		return "", errors.NewConfigurationError("preprocessing", "scale mode",
			fmt.Sprintf("unknown mode %q (expected no, mc, uv or pa)", tag))
	}
}

// Scaler centers and scales a response matrix column-wise and can undo the
// transformation on predictions. The recorded means and scales freeze at
// Fit time, so held-out predictions rescale against the training statistics.
type Scaler struct {
	model.BaseEstimator

	// Mode is the scaling mode applied by Transform.
	Mode ScaleMode

	// Mean holds the per-column means subtracted by Transform.
	Mean []float64

	// Scale holds the per-column divisors applied by Transform.
	Scale []float64

	// NFeatures is the number of columns seen during Fit.
	NFeatures int
}

// NewScaler creates a Scaler for the given mode.
func NewScaler(mode ScaleMode) *Scaler {
	return &Scaler{Mode: mode}
}

// Fit computes the per-column means and scales from the training response.
func (s *Scaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "Scaler.Fit")
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		s.Mean[j] = 0.0
		s.Scale[j] = 1.0
	}

	if s.Mode != ScaleNone {
		for j := 0; j < c; j++ {
			sum := 0.0
			for i := 0; i < r; i++ {
				sum += X.At(i, j)
			}
			s.Mean[j] = sum / float64(r)
		}
	}

	if s.Mode == ScaleUnitVariance || s.Mode == ScalePareto {
		for j := 0; j < c; j++ {
			sumSquares := 0.0
			for i := 0; i < r; i++ {
				diff := X.At(i, j) - s.Mean[j]
				sumSquares += diff * diff
			}
			// Sample standard deviation (n−1 denominator).
			sd := 0.0
			if r > 1 {
				sd = math.Sqrt(sumSquares / float64(r-1))
			}
			if s.Mode == ScalePareto {
				sd = math.Sqrt(sd)
			}
			// Constant columns keep scale 1 to avoid division by zero.
			if sd < 1e-8 {
				sd = 1.0
			}
			s.Scale[j] = sd
		}
	}

	s.SetFitted()
	return nil
}

// Transform applies the fitted centering and scaling.
func (s *Scaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("Scaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("Scaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}

	return result, nil
}

// FitTransform fits the scaler and transforms the same data.
func (s *Scaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps scaled values (typically predictions) back to the
// original response units.
func (s *Scaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("Scaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("Scaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}

	return result, nil
}

// GetParams returns the scaler configuration.
func (s *Scaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"mode": string(s.Mode),
	}
}

// String returns a printable description of the scaler.
func (s *Scaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("Scaler(mode=%s)", s.Mode)
	}
	return fmt.Sprintf("Scaler(mode=%s, n_features=%d)", s.Mode, s.NFeatures)
}

var _ model.InverseTransformer = (*Scaler)(nil)
