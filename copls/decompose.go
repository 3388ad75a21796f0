package copls

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/core/parallel"
	"github.com/sib-swiss/ConsensusOPLS/kopls"
	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
	"github.com/sib-swiss/ConsensusOPLS/pkg/log"
)

// decomposition holds the per-block interpretation artifacts derived from
// the final model: raw and normalized block-component associations,
// per-block variable loadings and VIP scores, and component labels.
type decomposition struct {
	// lambdaRaw[i][j] is the association of block i with component j,
	// the quadratic form of score column j on the block's normalized
	// kernel. Nonnegative for positive semidefinite kernels.
	lambdaRaw *mat.Dense

	// contributions is lambdaRaw with each column normalized to sum 1.
	// Columns with zero total association are NaN.
	contributions *mat.Dense

	// loadings[i] projects block i's variables onto the components:
	// rows are variables, columns follow componentNames.
	loadings []*mat.Dense

	// vip[i] holds one VIP score per variable of block i, computed over
	// the predictive components.
	vip [][]float64

	// componentNames labels score and loading columns: predictive
	// components p_1..p_A, then orthogonal components o_1..o_k.
	componentNames []string

	// scores stacks the final-model predictive and orthogonal score
	// columns in componentNames order.
	scores *mat.Dense
}

// decompose derives block contributions, loadings and VIP from the fitted
// engine model. Blocks fan out in parallel; each goroutine writes only its
// block's row and slots, and assembly order is the block order.
func decompose(blocks []DataBlock, normalized []*mat.Dense, em *kopls.Model, workers int) *decomposition {
	nBlocks := len(blocks)
	nPcomp := em.NPcomp
	nOcomp := em.NOcomp
	nComp := nPcomp + nOcomp

	scores := combinedScores(em)
	names := make([]string, 0, nComp)
	for a := 0; a < nPcomp; a++ {
		names = append(names, fmt.Sprintf("p_%d", a+1))
	}
	for k := 0; k < nOcomp; k++ {
		names = append(names, fmt.Sprintf("o_%d", k+1))
	}

	// Score column squared norms, shared read-only by every block.
	scoreNormSq := make([]float64, nComp)
	for j := 0; j < nComp; j++ {
		col := scores.ColView(j)
		scoreNormSq[j] = mat.Dot(col, col)
	}

	// Explained response sum of squares per predictive component, the
	// VIP weighting. Bt rows map predictive scores to the scaled response.
	bt := em.Bt[nOcomp]
	_, c := bt.Dims()
	ssComp := make([]float64, nPcomp)
	ssTotal := 0.0
	for a := 0; a < nPcomp; a++ {
		btRowSq := 0.0
		for j := 0; j < c; j++ {
			v := bt.At(a, j)
			btRowSq += v * v
		}
		ssComp[a] = scoreNormSq[a] * btRowSq
		ssTotal += ssComp[a]
	}

	d := &decomposition{
		lambdaRaw:      mat.NewDense(nBlocks, nComp, nil),
		contributions:  mat.NewDense(nBlocks, nComp, nil),
		loadings:       make([]*mat.Dense, nBlocks),
		vip:            make([][]float64, nBlocks),
		componentNames: names,
		scores:         scores,
	}

	logger := log.GetLoggerWithName("copls.decompose")
	logger.Debug("block decomposition started",
		log.BlocksKey, nBlocks,
		log.PredictiveKey, nPcomp,
		log.OrthogonalKey, nOcomp,
	)

	parallel.ForEach(nBlocks, workers, func(i int) {
		for j := 0; j < nComp; j++ {
			d.lambdaRaw.Set(i, j, quadForm(normalized[i], scores.ColView(j)))
		}

		_, p := blocks[i].Data.Dims()
		loads := mat.NewDense(p, nComp, nil)
		loads.Mul(blocks[i].Data.T(), scores)
		for j := 0; j < nComp; j++ {
			scale := coplserrors.SafeDivide(1, scoreNormSq[j])
			for v := 0; v < p; v++ {
				loads.Set(v, j, loads.At(v, j)*scale)
			}
		}
		d.loadings[i] = loads
		d.vip[i] = blockVIP(loads, ssComp, ssTotal)
	})

	zeroCols := 0
	for j := 0; j < nComp; j++ {
		colSum := 0.0
		for i := 0; i < nBlocks; i++ {
			colSum += d.lambdaRaw.At(i, j)
		}
		if colSum <= 0 || math.IsNaN(colSum) {
			for i := 0; i < nBlocks; i++ {
				d.contributions.Set(i, j, math.NaN())
			}
			zeroCols++
			coplserrors.Warn(coplserrors.NewUndefinedMetricWarning(
				"block contribution",
				fmt.Sprintf("zero total kernel association for component %s", names[j]),
				math.NaN(),
			))
			continue
		}
		for i := 0; i < nBlocks; i++ {
			d.contributions.Set(i, j, d.lambdaRaw.At(i, j)/colSum)
		}
	}
	if zeroCols > 0 {
		logger.Warn("block contribution columns undefined",
			"undefined_columns", zeroCols,
		)
	}

	if ssTotal <= 0 {
		coplserrors.Warn(coplserrors.NewUndefinedMetricWarning(
			"VIP", "zero explained response sum of squares", math.NaN(),
		))
	}

	return d
}

// combinedScores stacks the final predictive scores and the orthogonal
// scores into one matrix in componentNames order.
func combinedScores(em *kopls.Model) *mat.Dense {
	tp := em.Tp[em.NOcomp]
	n, nPcomp := tp.Dims()
	out := mat.NewDense(n, nPcomp+em.NOcomp, nil)
	for i := 0; i < n; i++ {
		for a := 0; a < nPcomp; a++ {
			out.Set(i, a, tp.At(i, a))
		}
		for k := 0; k < em.NOcomp; k++ {
			out.Set(i, nPcomp+k, em.To.At(i, k))
		}
	}
	return out
}

// quadForm computes t' * K * t.
func quadForm(K *mat.Dense, t mat.Vector) float64 {
	var kt mat.VecDense
	kt.MulVec(K, t)
	return mat.Dot(t, &kt)
}

// blockVIP computes one VIP score per variable from the block's predictive
// loading columns, weighting each component by its explained response sum
// of squares. Undefined totals yield NaN scores.
func blockVIP(loads *mat.Dense, ssComp []float64, ssTotal float64) []float64 {
	p, _ := loads.Dims()
	nPcomp := len(ssComp)
	out := make([]float64, p)

	if ssTotal <= 0 {
		for v := range out {
			out[v] = math.NaN()
		}
		return out
	}

	// Squared loading column norms over the predictive components.
	wNormSq := make([]float64, nPcomp)
	for a := 0; a < nPcomp; a++ {
		for v := 0; v < p; v++ {
			w := loads.At(v, a)
			wNormSq[a] += w * w
		}
	}

	for v := 0; v < p; v++ {
		acc := 0.0
		for a := 0; a < nPcomp; a++ {
			if wNormSq[a] <= 0 {
				continue
			}
			w := loads.At(v, a)
			acc += ssComp[a] * (w * w / wNormSq[a])
		}
		out[v] = math.Sqrt(float64(p) * acc / ssTotal)
	}
	return out
}
