package copls

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sib-swiss/ConsensusOPLS/core/parallel"
	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
	"github.com/sib-swiss/ConsensusOPLS/pkg/log"
)

// PermutationResult summarizes one permutation round. Row 0 of the model's
// permutation table is the unpermuted reference; subsequent rows come from
// models refitted on row-shuffled responses. A failed round leaves every
// field NaN.
type PermutationResult struct {
	// RY is the mean absolute column correlation between the permuted and
	// the original response, the x-axis of a permutation plot.
	RY float64

	// R2Y is the cumulative explained response variance of the refitted
	// model.
	R2Y float64

	// Q2 is the refitted model's cross-validated Q2 at its selected
	// orthogonal component count.
	Q2 float64

	// DQ2 is the discriminant analogue of Q2; NaN for regression models.
	DQ2 float64
}

// runPermutations refits the whole pipeline on nPerm row-shuffled copies of
// the response and collects reference row plus one result per permutation.
// Block kernels do not depend on the response ordering and are reused; the
// fusion weights, cross-validation and final fit are recomputed per round.
// Rounds run in parallel with a serial pipeline inside each; every round
// draws from its own seed-derived stream, so results do not depend on
// scheduling order.
func runPermutations(kernels []*mat.Dense, Y *mat.Dense, cfg *Config, maxOcomp int, ref PermutationResult, workers int) []PermutationResult {
	nPerm := cfg.NPerm
	if nPerm == 0 {
		return nil
	}

	logger := log.GetLoggerWithName("copls.permutation")
	logger.Debug("permutation validation started",
		log.PermutationCountKey, nPerm,
		log.WorkersKey, workers,
	)

	n, _ := Y.Dims()
	results := make([]PermutationResult, nPerm+1)
	results[0] = ref
	errs := make([]error, nPerm)

	parallel.ForEach(nPerm, workers, func(p int) {
		seed := cfg.RandomSeed + uint64(p) + 1
		rng := rand.New(rand.NewPCG(seed, seed))
		yPerm := permuteRows(Y, rng.Perm(n))

		err := coplserrors.SafeExecute("permutation round", func() error {
			res, err := runPipeline(kernels, yPerm, cfg, maxOcomp, 1)
			if err != nil {
				return err
			}
			em := res.model
			out := PermutationResult{
				RY:  meanAbsCorrelation(yPerm, Y),
				R2Y: em.R2Y[em.NOcomp],
				Q2:  res.cv.Q2[res.nOcompOpt],
				DQ2: math.NaN(),
			}
			if res.cv.DQ2 != nil {
				out.DQ2 = res.cv.DQ2[res.nOcompOpt]
			}
			results[p+1] = out
			return nil
		})
		if err != nil {
			errs[p] = err
		}
	})

	failed := 0
	for p, err := range errs {
		if err == nil {
			continue
		}
		failed++
		nan := math.NaN()
		results[p+1] = PermutationResult{RY: nan, R2Y: nan, Q2: nan, DQ2: nan}
		logger.Debug("permutation round failed",
			log.PermutationKey, p+1,
			log.ErrAttr(err),
		)
	}
	if failed > 0 {
		coplserrors.Warn(coplserrors.NewCellFailureWarning("permutation", failed, nPerm))
		logger.Warn("permutation rounds failed",
			log.FailedCellsKey, failed,
			log.PermutationCountKey, nPerm,
		)
	}

	return results
}

// permuteRows returns a copy of Y with row i taken from Y[perm[i]].
func permuteRows(Y *mat.Dense, perm []int) *mat.Dense {
	n, c := Y.Dims()
	out := mat.NewDense(n, c, nil)
	for i, src := range perm {
		for j := 0; j < c; j++ {
			out.Set(i, j, Y.At(src, j))
		}
	}
	return out
}

// meanAbsCorrelation averages the absolute Pearson correlation of matching
// columns of A and B.
func meanAbsCorrelation(A, B *mat.Dense) float64 {
	_, c := A.Dims()
	sum := 0.0
	for j := 0; j < c; j++ {
		var a, b []float64
		a = mat.Col(a, j, A)
		b = mat.Col(b, j, B)
		sum += math.Abs(stat.Correlation(a, b, nil))
	}
	return sum / float64(c)
}
