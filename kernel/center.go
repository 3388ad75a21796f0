package kernel

import (
	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/pkg/errors"
)

// CenterTrain double-centers a training kernel:
//
//	Kc = (I − 11ᵀ/n) K (I − 11ᵀ/n)
//
// computed through the equivalent means identity
// Kc_ij = K_ij − rowmean_i − colmean_j + grandmean. The input is not
// modified.
func CenterTrain(K mat.Matrix) (*mat.Dense, error) {
	n, m := K.Dims()
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "kernel.CenterTrain")
	}
	if n != m {
		return nil, errors.NewDimensionError("kernel.CenterTrain", n, m, 1)
	}

	rowMeans := make([]float64, n)
	colMeans := make([]float64, n)
	var grand float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := K.At(i, j)
			rowMeans[i] += v
			colMeans[j] += v
			grand += v
		}
	}
	for i := 0; i < n; i++ {
		rowMeans[i] /= float64(n)
		colMeans[i] /= float64(n)
	}
	grand /= float64(n * n)

	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Set(i, j, K.At(i, j)-rowMeans[i]-colMeans[j]+grand)
		}
	}

	return out, nil
}

// CenterTest centers a test/train cross-kernel against the raw training
// kernel:
//
//	Kc = (Kte − 1te·1trᵀ·Ktr/n)(I − 11ᵀ/n)
//
// Kte is nte×ntr and Ktr the uncentered ntr×ntr training kernel. The
// left factor subtracts the training column means from every row of Kte,
// the right factor removes each row's mean afterwards.
func CenterTest(Kte, Ktr mat.Matrix) (*mat.Dense, error) {
	nte, cte := Kte.Dims()
	ntr, mtr := Ktr.Dims()
	if nte == 0 || ntr == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "kernel.CenterTest")
	}
	if ntr != mtr {
		return nil, errors.NewDimensionError("kernel.CenterTest", ntr, mtr, 1)
	}
	if cte != ntr {
		return nil, errors.NewDimensionError("kernel.CenterTest", ntr, cte, 1)
	}

	trainColMeans := make([]float64, ntr)
	for j := 0; j < ntr; j++ {
		var sum float64
		for i := 0; i < ntr; i++ {
			sum += Ktr.At(i, j)
		}
		trainColMeans[j] = sum / float64(ntr)
	}

	out := mat.NewDense(nte, ntr, nil)
	for i := 0; i < nte; i++ {
		var rowMean float64
		for j := 0; j < ntr; j++ {
			v := Kte.At(i, j) - trainColMeans[j]
			out.Set(i, j, v)
			rowMean += v
		}
		rowMean /= float64(ntr)
		for j := 0; j < ntr; j++ {
			out.Set(i, j, out.At(i, j)-rowMean)
		}
	}

	return out, nil
}
