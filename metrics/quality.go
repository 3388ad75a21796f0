// Package metrics provides the prediction-quality measures used during
// cross-validation and model assessment: PRESS, Q2, discriminant DQ2, R2 and
// RMSEP. Cross-validated predictions may contain NaN entries where a cell
// failed; every accumulator here treats NaN predictions as missing and skips
// them, so a few failed cells degrade a metric instead of poisoning it.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/pkg/errors"
)

// validateShapes checks that yTrue and yPred are non-empty and congruent.
func validateShapes(op string, yTrue, yPred mat.Matrix) (rows, cols int, err error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	if rTrue != rPred {
		return 0, 0, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != cPred {
		return 0, 0, errors.NewDimensionError(op, cTrue, cPred, 1)
	}

	return rTrue, cTrue, nil
}

// TotalSumSquares returns the per-column sum of squared deviations from the
// column mean: TSS_k = Σ(y_ik − mean_k)².
func TotalSumSquares(y mat.Matrix) []float64 {
	rows, cols := y.Dims()
	tss := make([]float64, cols)

	for k := 0; k < cols; k++ {
		var mean float64
		for i := 0; i < rows; i++ {
			mean += y.At(i, k)
		}
		mean /= float64(rows)

		var sum float64
		for i := 0; i < rows; i++ {
			d := y.At(i, k) - mean
			sum += d * d
		}
		tss[k] = sum
	}

	return tss
}

// PRESS returns the per-column predictive residual sum of squares
// Σ(y − ŷ)², skipping rows whose prediction is NaN. The second return value
// counts the rows that contributed to each column.
func PRESS(yTrue, yPred mat.Matrix) ([]float64, []int, error) {
	rows, cols, err := validateShapes("PRESS", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}

	press := make([]float64, cols)
	counts := make([]int, cols)

	for k := 0; k < cols; k++ {
		for i := 0; i < rows; i++ {
			pred := yPred.At(i, k)
			if math.IsNaN(pred) {
				continue
			}
			d := yTrue.At(i, k) - pred
			press[k] += d * d
			counts[k]++
		}
	}

	return press, counts, nil
}

// Q2Columns returns the per-column cross-validated predictive ability
// Q2_k = 1 − PRESS_k/TSS_k. A column with no valid predictions, or with zero
// total sum of squares, reports NaN and raises an UndefinedMetricWarning.
func Q2Columns(yTrue, yPred mat.Matrix) ([]float64, error) {
	press, counts, err := PRESS(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	tss := TotalSumSquares(yTrue)
	q2 := make([]float64, len(press))

	for k := range q2 {
		switch {
		case counts[k] == 0:
			errors.Warn(errors.NewUndefinedMetricWarning("Q2", "no valid predictions in response column", math.NaN()))
			q2[k] = math.NaN()
		case tss[k] == 0:
			errors.Warn(errors.NewUndefinedMetricWarning("Q2", "zero total sum of squares in response column", math.NaN()))
			q2[k] = math.NaN()
		default:
			q2[k] = 1 - press[k]/tss[k]
		}
	}

	return q2, nil
}

// Q2 returns the mean of the defined per-column Q2 values. If no column
// produced a defined value the result is NaN.
func Q2(yTrue, yPred mat.Matrix) (float64, error) {
	cols, err := Q2Columns(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return nanMean(cols), nil
}

// DQ2Columns returns the per-column discriminant Q2 of Westerhuis et al.
// Residuals of predictions already on the correct side of their 0/1 dummy
// target are discarded: a prediction below 0 for a 0-labeled sample, or
// above 1 for a 1-labeled sample, contributes nothing. NaN predictions are
// skipped as in PRESS.
func DQ2Columns(yTrue, yPred mat.Matrix) ([]float64, error) {
	rows, cols, err := validateShapes("DQ2", yTrue, yPred)
	if err != nil {
		return nil, err
	}

	tss := TotalSumSquares(yTrue)
	dq2 := make([]float64, cols)

	for k := 0; k < cols; k++ {
		var pressd float64
		counted := 0

		for i := 0; i < rows; i++ {
			pred := yPred.At(i, k)
			if math.IsNaN(pred) {
				continue
			}
			counted++

			truth := yTrue.At(i, k)
			// Over-shot predictions on the correct side carry no penalty.
			if (truth == 0 && pred < 0) || (truth == 1 && pred > 1) {
				continue
			}
			d := truth - pred
			pressd += d * d
		}

		switch {
		case counted == 0:
			errors.Warn(errors.NewUndefinedMetricWarning("DQ2", "no valid predictions in response column", math.NaN()))
			dq2[k] = math.NaN()
		case tss[k] == 0:
			errors.Warn(errors.NewUndefinedMetricWarning("DQ2", "zero total sum of squares in response column", math.NaN()))
			dq2[k] = math.NaN()
		default:
			dq2[k] = 1 - pressd/tss[k]
		}
	}

	return dq2, nil
}

// DQ2 returns the mean of the defined per-column DQ2 values. If no column
// produced a defined value the result is NaN.
func DQ2(yTrue, yPred mat.Matrix) (float64, error) {
	cols, err := DQ2Columns(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return nanMean(cols), nil
}

// R2Score returns the coefficient of determination pooled over all response
// columns: 1 − ΣRSS/ΣTSS. NaN predictions are skipped. A response without
// variance yields an error.
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	rows, cols, err := validateShapes("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	tss := TotalSumSquares(yTrue)

	var rssTotal, tssTotal float64
	for k := 0; k < cols; k++ {
		tssTotal += tss[k]
		for i := 0; i < rows; i++ {
			pred := yPred.At(i, k)
			if math.IsNaN(pred) {
				continue
			}
			d := yTrue.At(i, k) - pred
			rssTotal += d * d
		}
	}

	if tssTotal == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}

	return 1 - rssTotal/tssTotal, nil
}

// RMSEP returns the root mean squared error of prediction pooled over all
// response columns, skipping NaN predictions.
func RMSEP(yTrue, yPred mat.Matrix) (float64, error) {
	rows, cols, err := validateShapes("RMSEP", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	counted := 0
	for k := 0; k < cols; k++ {
		for i := 0; i < rows; i++ {
			pred := yPred.At(i, k)
			if math.IsNaN(pred) {
				continue
			}
			d := yTrue.At(i, k) - pred
			sum += d * d
			counted++
		}
	}

	if counted == 0 {
		return math.NaN(), nil
	}

	return math.Sqrt(sum / float64(counted)), nil
}

// nanMean averages the defined entries of values; NaN if none are defined.
func nanMean(values []float64) float64 {
	var sum float64
	counted := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		counted++
	}
	if counted == 0 {
		return math.NaN()
	}
	return sum / float64(counted)
}
