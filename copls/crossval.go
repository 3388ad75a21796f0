package copls

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/core/parallel"
	"github.com/sib-swiss/ConsensusOPLS/kopls"
	"github.com/sib-swiss/ConsensusOPLS/metrics"
	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
	"github.com/sib-swiss/ConsensusOPLS/pkg/log"
)

// partition is one train/test index split. Both sides are sorted
// ascending so every downstream reduction walks samples in a fixed order.
type partition struct {
	train []int
	test  []int
}

// nfoldPartitions assigns sample i to test group i mod nfold.
func nfoldPartitions(n, nfold int) []partition {
	parts := make([]partition, nfold)
	for g := 0; g < nfold; g++ {
		var train, test []int
		for i := 0; i < n; i++ {
			if i%nfold == g {
				test = append(test, i)
			} else {
				train = append(train, i)
			}
		}
		parts[g] = partition{train: train, test: test}
	}
	return parts
}

// mccvPartitions draws nMC independent splits with the given train
// fraction.
func mccvPartitions(n, nMC int, frac float64, rng *rand.Rand) []partition {
	trainSize := clampInt(int(math.Round(frac*float64(n))), 1, n-1)
	parts := make([]partition, nMC)
	for r := 0; r < nMC; r++ {
		perm := rng.Perm(n)
		train := append([]int(nil), perm[:trainSize]...)
		test := append([]int(nil), perm[trainSize:]...)
		sort.Ints(train)
		sort.Ints(test)
		parts[r] = partition{train: train, test: test}
	}
	return parts
}

// mccvbPartitions draws nMC splits preserving per-class proportions.
// classes holds the class index of each sample.
func mccvbPartitions(classes []int, nClasses, nMC int, frac float64, rng *rand.Rand) []partition {
	byClass := make([][]int, nClasses)
	for i, c := range classes {
		byClass[c] = append(byClass[c], i)
	}

	parts := make([]partition, nMC)
	for r := 0; r < nMC; r++ {
		var train, test []int
		for c := 0; c < nClasses; c++ {
			members := byClass[c]
			s := len(members)
			if s == 0 {
				continue
			}
			trainSize := clampInt(int(math.Round(frac*float64(s))), 1, s-1)
			perm := rng.Perm(s)
			for _, p := range perm[:trainSize] {
				train = append(train, members[p])
			}
			for _, p := range perm[trainSize:] {
				test = append(test, members[p])
			}
		}
		sort.Ints(train)
		sort.Ints(test)
		parts[r] = partition{train: train, test: test}
	}
	return parts
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// argmaxRows returns the index of the largest entry of each row.
func argmaxRows(Y *mat.Dense) []int {
	n, c := Y.Dims()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if Y.At(i, j) > Y.At(i, best) {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// CellError records one failed cross-validation cell. Round and NOcomp
// identify the cell (zero based); Err is the engine or recovery error.
type CellError struct {
	Round  int
	NOcomp int
	Err    error
}

// CVDiagnostics bundles the raw cross-validation output retained on the
// model. Predictions and scores are stacked by round in ascending round
// order, each round's rows in ascending sample order; TestIndex maps every
// stacked row back to its original sample index.
type CVDiagnostics struct {
	// AllYhat holds held-out predictions on the original response scale,
	// one c-column block per orthogonal component count 0..MaxOcomp.
	// Cells that failed leave NaN in their block.
	AllYhat *mat.Dense

	// AllTcv holds held-out predictive scores, one MaxPcomp-column block
	// per orthogonal component count, aligned with AllYhat rows.
	AllTcv *mat.Dense

	// YTest holds the held-out true responses aligned with AllYhat rows.
	YTest *mat.Dense

	// TestIndex maps stacked rows to original sample indices.
	TestIndex []int

	// Q2 and DQ2 are the selection curves indexed by orthogonal component
	// count. DQ2 is nil for regression models. Entries with no defined
	// residuals are NaN.
	Q2  []float64
	DQ2 []float64

	// CellErrors lists the failed cells in ascending (round, count) order.
	CellErrors []CellError

	// Rounds and MaxOcomp describe the evaluated grid.
	Rounds   int
	MaxOcomp int
}

// makePartitions builds the train/test splits for the configured scheme.
// Monte Carlo schemes draw from a PCG stream seeded with the configured
// seed, before any parallel dispatch.
func makePartitions(cfg *Config, Y *mat.Dense) []partition {
	n, c := Y.Dims()
	switch cfg.CVScheme {
	case SchemeMCCV:
		rng := rand.New(rand.NewPCG(cfg.RandomSeed, cfg.RandomSeed))
		return mccvPartitions(n, cfg.NMC, cfg.CVFrac, rng)
	case SchemeMCCVB:
		rng := rand.New(rand.NewPCG(cfg.RandomSeed, cfg.RandomSeed))
		return mccvbPartitions(argmaxRows(Y), c, cfg.NMC, cfg.CVFrac, rng)
	default:
		return nfoldPartitions(n, cfg.NFold)
	}
}

// runCrossValidation evaluates the (rounds x orthogonal counts) grid on
// the fused kernel W. Every cell fits its own engine on the training
// submatrix and projects the held-out rows, so a rank-exhausted count on
// one fold fails alone: the cell's predictions stay NaN, a CellError is
// recorded, and sibling cells are unaffected.
func runCrossValidation(W, Y *mat.Dense, cfg *Config, maxOcomp, workers int) (*CVDiagnostics, error) {
	_, c := Y.Dims()
	parts := makePartitions(cfg, Y)
	rounds := len(parts)
	counts := maxOcomp + 1
	nPcomp := cfg.MaxPcomp

	offsets := make([]int, rounds)
	total := 0
	for r, p := range parts {
		offsets[r] = total
		total += len(p.test)
	}

	allYhat := newNaNDense(total, counts*c)
	allTcv := newNaNDense(total, counts*nPcomp)
	yTest := mat.NewDense(total, c, nil)
	testIndex := make([]int, total)
	for r, p := range parts {
		for t, idx := range p.test {
			row := offsets[r] + t
			testIndex[row] = idx
			for j := 0; j < c; j++ {
				yTest.Set(row, j, Y.At(idx, j))
			}
		}
	}

	logger := log.GetLoggerWithName("copls.crossval")
	logger.Debug("cross-validation grid started",
		log.SchemeKey, string(cfg.CVScheme),
		log.RoundKey, rounds,
		log.CellsKey, rounds*counts,
		log.WorkersKey, workers,
	)

	cellErrs := make([]error, rounds*counts)
	parallel.ForEach(rounds*counts, workers, func(cell int) {
		r := cell / counts
		k := cell % counts
		err := coplserrors.SafeExecute("cross-validation cell", func() error {
			return runCell(W, Y, parts[r], k, cfg, allYhat, allTcv, offsets[r])
		})
		if err != nil {
			cellErrs[cell] = err
		}
	})

	var failures []CellError
	for cell, err := range cellErrs {
		if err == nil {
			continue
		}
		r := cell / counts
		k := cell % counts
		failures = append(failures, CellError{Round: r, NOcomp: k, Err: err})
		logger.Debug("cross-validation cell failed",
			log.RoundKey, r,
			log.OrthogonalKey, k,
			log.ErrAttr(err),
		)
	}
	if len(failures) > 0 {
		coplserrors.Warn(coplserrors.NewCellFailureWarning("cross-validation", len(failures), rounds*counts))
		logger.Warn("cross-validation cells failed",
			log.FailedCellsKey, len(failures),
			log.CellsKey, rounds*counts,
		)
	}

	diag := &CVDiagnostics{
		AllYhat:    allYhat,
		AllTcv:     allTcv,
		YTest:      yTest,
		TestIndex:  testIndex,
		Q2:         make([]float64, counts),
		CellErrors: failures,
		Rounds:     rounds,
		MaxOcomp:   maxOcomp,
	}
	if cfg.ModelType == ModelDiscriminant {
		diag.DQ2 = make([]float64, counts)
	}

	for k := 0; k < counts; k++ {
		block := allYhat.Slice(0, total, k*c, (k+1)*c)
		q2, err := metrics.Q2(yTest, block)
		if err != nil {
			return nil, coplserrors.Wrapf(err, "cross-validation Q2 for %d orthogonal components", k)
		}
		diag.Q2[k] = q2
		if math.IsNaN(q2) {
			logger.Warn("selection curve entry undefined",
				log.OrthogonalKey, k,
				log.Q2Key, q2,
			)
		}
		if diag.DQ2 != nil {
			dq2, err := metrics.DQ2(yTest, block)
			if err != nil {
				return nil, coplserrors.Wrapf(err, "cross-validation DQ2 for %d orthogonal components", k)
			}
			diag.DQ2[k] = dq2
		}
	}

	return diag, nil
}

// runCell fits one grid cell and writes its held-out predictions and
// predictive scores into the cell's disjoint region of the stacked
// containers.
func runCell(W, Y *mat.Dense, part partition, k int, cfg *Config, allYhat, allTcv *mat.Dense, rowOffset int) error {
	// More folds than samples leaves some rounds without test rows.
	if len(part.test) == 0 {
		return nil
	}

	Wtr := subKernel(W, part.train, part.train)
	Wte := subKernel(W, part.test, part.train)
	Ytr := subRows(Y, part.train)

	eng := kopls.NewEngine(cfg.MaxPcomp, k, cfg.YScaling, true)
	if err := eng.Fit(Wtr, Ytr); err != nil {
		return err
	}
	proj, err := eng.Project(Wte)
	if err != nil {
		return err
	}

	_, c := Y.Dims()
	nPcomp := cfg.MaxPcomp
	for t := range part.test {
		for j := 0; j < c; j++ {
			allYhat.Set(rowOffset+t, k*c+j, proj.Yhat.At(t, j))
		}
		for a := 0; a < nPcomp; a++ {
			allTcv.Set(rowOffset+t, k*nPcomp+a, proj.TPred.At(t, a))
		}
	}
	return nil
}

// subKernel extracts W[rows, cols].
func subKernel(W *mat.Dense, rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			out.Set(i, j, W.At(r, c))
		}
	}
	return out
}

// subRows extracts Y[rows, :].
func subRows(Y *mat.Dense, rows []int) *mat.Dense {
	_, c := Y.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, Y.At(r, j))
		}
	}
	return out
}

// newNaNDense returns an r x c matrix filled with NaN.
func newNaNDense(r, c int) *mat.Dense {
	d := mat.NewDense(r, c, nil)
	nan := math.NaN()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d.Set(i, j, nan)
		}
	}
	return d
}
