package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/pkg/errors"
)

func TestParseScaleMode(t *testing.T) {
	t.Run("Known modes", func(t *testing.T) {
		for _, tag := range []string{"no", "mc", "uv", "pa"} {
			mode, err := ParseScaleMode(tag)
			require.NoError(t, err)
			assert.Equal(t, ScaleMode(tag), mode)
		}
	})

	t.Run("Unknown mode", func(t *testing.T) {
		_, err := ParseScaleMode("zscore")
		require.Error(t, err)

		var ce *errors.ConfigurationError
		assert.True(t, errors.As(err, &ce))
	})
}

func TestScalerCenter(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1.0, 2.0, 3.0, 4.0})

	scaler := NewScaler(ScaleCenter)
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	want := []float64{-1.5, -0.5, 0.5, 1.5}
	for i, w := range want {
		assert.InDelta(t, w, scaled.At(i, 0), 1e-12, "row %d", i)
	}
	assert.InDelta(t, 2.5, scaler.Mean[0], 1e-12)
	assert.Equal(t, 1.0, scaler.Scale[0], "mc must not rescale")
}

func TestScalerUnitVariance(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1.0, 2.0, 3.0, 4.0})

	scaler := NewScaler(ScaleUnitVariance)
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	// Sample standard deviation of 1..4 is sqrt(5/3).
	assert.InDelta(t, math.Sqrt(5.0/3.0), scaler.Scale[0], 1e-12)

	// Transformed column has mean 0 and sample variance 1.
	var mean float64
	for i := 0; i < 4; i++ {
		mean += scaled.At(i, 0)
	}
	mean /= 4
	assert.InDelta(t, 0.0, mean, 1e-12)

	var ss float64
	for i := 0; i < 4; i++ {
		d := scaled.At(i, 0) - mean
		ss += d * d
	}
	assert.InDelta(t, 1.0, ss/3.0, 1e-12)
}

func TestScalerPareto(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1.0, 2.0, 3.0, 4.0})

	scaler := NewScaler(ScalePareto)
	_, err := scaler.FitTransform(X)
	require.NoError(t, err)

	// Pareto divides by the square root of the standard deviation.
	assert.InDelta(t, math.Sqrt(math.Sqrt(5.0/3.0)), scaler.Scale[0], 1e-12)
}

func TestScalerNone(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1.0, 10.0,
		2.0, 20.0,
		3.0, 30.0,
	})

	scaler := NewScaler(ScaleNone)
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(X, scaled, 1e-15), "no-mode must be the identity")
}

func TestScalerRoundTrip(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1.0, -3.0,
		2.0, 0.5,
		3.0, 7.0,
		4.0, 2.5,
		5.0, -1.0,
	})

	for _, mode := range []ScaleMode{ScaleNone, ScaleCenter, ScaleUnitVariance, ScalePareto} {
		t.Run(string(mode), func(t *testing.T) {
			scaler := NewScaler(mode)
			scaled, err := scaler.FitTransform(X)
			require.NoError(t, err)

			restored, err := scaler.InverseTransform(scaled)
			require.NoError(t, err)

			assert.True(t, mat.EqualApprox(X, restored, 1e-10),
				"InverseTransform(Transform(X)) should restore X")
		})
	}
}

func TestScalerConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{2.0, 2.0, 2.0})

	scaler := NewScaler(ScaleUnitVariance)
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	// Constant column keeps scale 1, so all values become 0 after centering.
	assert.Equal(t, 1.0, scaler.Scale[0])
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0.0, scaled.At(i, 0), 1e-12)
	}
}

func TestScalerErrors(t *testing.T) {
	t.Run("Transform before Fit", func(t *testing.T) {
		scaler := NewScaler(ScaleCenter)
		_, err := scaler.Transform(mat.NewDense(2, 1, []float64{1, 2}))
		require.Error(t, err)

		var nf *errors.NotFittedError
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("Column mismatch", func(t *testing.T) {
		scaler := NewScaler(ScaleCenter)
		require.NoError(t, scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))

		_, err := scaler.Transform(mat.NewDense(2, 1, []float64{1, 2}))
		require.Error(t, err)

		var de *errors.DimensionError
		assert.True(t, errors.As(err, &de))
	})

	t.Run("Empty data", func(t *testing.T) {
		scaler := NewScaler(ScaleCenter)
		err := scaler.Fit(&mat.Dense{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrEmptyData))
	})
}
