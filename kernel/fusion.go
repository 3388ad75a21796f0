package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/core/parallel"
	"github.com/sib-swiss/ConsensusOPLS/pkg/errors"
	"github.com/sib-swiss/ConsensusOPLS/pkg/log"
)

// FrobeniusNormalize returns K divided by its Frobenius norm, and the norm
// itself. A zero norm cannot be normalized and yields a
// NumericalDegeneracyError.
func FrobeniusNormalize(K mat.Matrix) (*mat.Dense, float64, error) {
	norm := mat.Norm(K, 2)
	if norm == 0 || math.IsNaN(norm) {
		return nil, 0, errors.NewNumericalDegeneracyError("frobenius normalization", "block kernel",
			"zero or undefined Frobenius norm")
	}

	r, c := K.Dims()
	out := mat.NewDense(r, c, nil)
	out.Scale(1/norm, K)
	return out, norm, nil
}

// ResponseSimilarity returns Y·Yᵀ, the sample-similarity matrix induced by
// the response.
func ResponseSimilarity(Y mat.Matrix) *mat.Dense {
	n, _ := Y.Dims()
	out := mat.NewDense(n, n, nil)
	out.Mul(Y, Y.T())
	return out
}

// RVCoefficient returns the modified RV coefficient between two square
// similarity matrices. Both matrices have their diagonals discarded before
// the trace products, which removes the self-similarity inflation of the
// classical RV and extends the natural range to [−1, 1].
func RVCoefficient(A, B mat.Matrix) (float64, error) {
	ra, ca := A.Dims()
	rb, cb := B.Dims()
	if ra != ca {
		return 0, errors.NewDimensionError("kernel.RVCoefficient", ra, ca, 1)
	}
	if rb != cb {
		return 0, errors.NewDimensionError("kernel.RVCoefficient", rb, cb, 1)
	}
	if ra != rb {
		return 0, errors.NewDimensionError("kernel.RVCoefficient", ra, rb, 0)
	}

	// With zeroed diagonals, tr(ÃB̃) reduces to the off-diagonal
	// elementwise product sum; both matrices are similarity matrices and
	// symmetric.
	var ab, aa, bb float64
	for i := 0; i < ra; i++ {
		for j := 0; j < ra; j++ {
			if i == j {
				continue
			}
			av := A.At(i, j)
			bv := B.At(i, j)
			ab += av * bv
			aa += av * av
			bb += bv * bv
		}
	}

	denom := math.Sqrt(aa * bb)
	if denom == 0 {
		return 0, errors.NewNumericalDegeneracyError("RV coefficient", "similarity matrix",
			"zero off-diagonal variance")
	}

	return ab / denom, nil
}

// Fusion is the result of RV-weighted kernel fusion. Weighted is the
// consensus kernel Σ wᵢ·K̃ᵢ over the Frobenius-normalized block kernels K̃ᵢ;
// Weights holds the rescaled RV weights wᵢ = (RVᵢ+1)/2 and Norms the
// Frobenius norms the raw kernels were divided by. Normalized retains the
// K̃ᵢ for contribution decomposition.
type Fusion struct {
	Weighted   *mat.Dense
	Weights    []float64
	Norms      []float64
	Normalized []*mat.Dense
}

// Fuse normalizes each block kernel, weights it by its modified RV
// coefficient against the response similarity Y·Yᵀ rescaled to [0, 1], and
// sums. Blocks are processed on at most workers goroutines; the reduction
// runs in ascending block order so the sum is reproducible for any worker
// count.
func Fuse(kernels []*mat.Dense, Y mat.Matrix, workers int) (*Fusion, error) {
	if len(kernels) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "kernel.Fuse")
	}

	n, _ := Y.Dims()
	for _, K := range kernels {
		r, c := K.Dims()
		if r != c {
			return nil, errors.NewDimensionError("kernel.Fuse", r, c, 1)
		}
		if r != n {
			return nil, errors.NewDimensionError("kernel.Fuse", n, r, 0)
		}
	}

	similarity := ResponseSimilarity(Y)

	fusion := &Fusion{
		Weights:    make([]float64, len(kernels)),
		Norms:      make([]float64, len(kernels)),
		Normalized: make([]*mat.Dense, len(kernels)),
	}
	cellErrs := make([]error, len(kernels))

	parallel.ForEach(len(kernels), workers, func(i int) {
		normalized, norm, err := FrobeniusNormalize(kernels[i])
		if err != nil {
			cellErrs[i] = err
			return
		}

		rv, err := RVCoefficient(normalized, similarity)
		if err != nil {
			cellErrs[i] = err
			return
		}

		fusion.Normalized[i] = normalized
		fusion.Norms[i] = norm
		fusion.Weights[i] = (rv + 1) / 2
	})

	for i, err := range cellErrs {
		if err != nil {
			return nil, errors.Wrapf(err, "fusing block kernel %d", i)
		}
	}

	logger := log.GetLoggerWithName("kernel.fusion")
	for i, w := range fusion.Weights {
		logger.Debug("block kernel weighted",
			"block.index", i,
			log.KernelWeightKey, w,
			log.FrobeniusNormKey, fusion.Norms[i],
		)
	}

	fusion.Weighted = FuseWithWeights(kernels, fusion.Weights, fusion.Norms)

	return fusion, nil
}

// FuseWithWeights builds a consensus kernel from raw block kernels under
// frozen weights and Frobenius norms, as prediction on new data requires:
// each kernel is divided by its training-time norm, scaled by its
// training-time weight and summed in ascending block order.
func FuseWithWeights(kernels []*mat.Dense, weights, norms []float64) *mat.Dense {
	r, c := kernels[0].Dims()
	out := mat.NewDense(r, c, nil)

	var scaled mat.Dense
	for i, K := range kernels {
		scaled.Scale(weights[i]/norms[i], K)
		out.Add(out, &scaled)
	}

	return out
}
