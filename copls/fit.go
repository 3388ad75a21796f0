package copls

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/kernel"
	"github.com/sib-swiss/ConsensusOPLS/kopls"
	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
	"github.com/sib-swiss/ConsensusOPLS/pkg/log"
	"github.com/sib-swiss/ConsensusOPLS/preprocessing"
)

// Fit builds a consensus model from the blocks and a numeric response
// matrix. For discriminant configurations Y must already be a 0/1
// indicator matrix with one column per class; FitDiscriminant builds that
// coding from string labels.
//
// All validation runs before any goroutine starts, the inputs are copied
// before the pipeline touches them, and the same configuration with the
// same seed produces an identical model.
func Fit(blocks []DataBlock, Y mat.Matrix, cfg Config) (*ConsensusModel, error) {
	if Y == nil {
		return nil, coplserrors.Wrap(coplserrors.ErrEmptyData, "consensus fit: response")
	}
	return fitModel(blocks, mat.DenseCopyOf(Y), nil, cfg)
}

// FitDiscriminant builds a discriminant consensus model from string class
// labels, one per sample. Labels are dummy-coded with one column per
// distinct class in sorted order; the model reports predictions against
// this vocabulary. The configured ModelType is overridden to discriminant.
func FitDiscriminant(blocks []DataBlock, labels []string, cfg Config) (*ConsensusModel, error) {
	cfg.ModelType = ModelDiscriminant

	bin := preprocessing.NewLabelBinarizer()
	yd, err := bin.FitTransform(labels)
	if err != nil {
		return nil, coplserrors.Wrap(err, "consensus fit: labels")
	}

	return fitModel(blocks, yd, bin.Classes(), cfg)
}

// fitModel is the shared fit path. yd is an owned copy of the dummy-coded
// or numeric response; classLabels is nil unless the caller binarized
// string labels.
func fitModel(blocks []DataBlock, yd *mat.Dense, classLabels []string, cfg Config) (*ConsensusModel, error) {
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n, err := validateBlocks(blocks)
	if err != nil {
		return nil, err
	}

	yr, yc := yd.Dims()
	if yr != n {
		return nil, coplserrors.NewDimensionError("consensus fit", n, yr, 0)
	}
	if err := coplserrors.CheckMatrix("consensus fit", "response", yd, yr, yc); err != nil {
		return nil, err
	}
	if cfg.MaxPcomp > yc {
		return nil, coplserrors.NewValidationError("maxPcomp",
			fmt.Sprintf("cannot exceed the response column count %d", yc), cfg.MaxPcomp)
	}
	if cfg.MaxPcomp > n {
		return nil, coplserrors.NewValidationError("maxPcomp",
			fmt.Sprintf("cannot exceed the sample count %d", n), cfg.MaxPcomp)
	}
	if len(cfg.BlockKernels) > 0 && len(cfg.BlockKernels) != len(blocks) {
		return nil, coplserrors.NewValidationError("blockKernels",
			fmt.Sprintf("got %d per-block kernel configurations for %d blocks", len(cfg.BlockKernels), len(blocks)),
			len(cfg.BlockKernels))
	}

	if cfg.ModelType == ModelDiscriminant {
		if err := validateDummy(yd); err != nil {
			return nil, err
		}
		if classLabels == nil {
			classLabels = syntheticLabels(yc)
		}
	} else {
		classLabels = nil
	}

	logger := log.GetLoggerWithName("copls.fit")
	logf := logger.Debug
	if cfg.Verbose {
		logf = logger.Info
	}

	// The orthogonal ceiling cannot exceed what the samples and the
	// narrowest block can support; an oversized request clamps silently.
	maxOcomp := cfg.MaxOcomp
	feasible := n - cfg.MaxPcomp
	if mb := minBlockVariables(blocks); mb < feasible {
		feasible = mb
	}
	if feasible < 0 {
		feasible = 0
	}
	if maxOcomp > feasible {
		maxOcomp = feasible
		logger.Debug("orthogonal component ceiling clamped",
			log.OrthogonalKey, maxOcomp,
			log.SamplesKey, n,
		)
	}

	workers := cfg.effectiveWorkers()
	logf("consensus fit started",
		log.OperationKey, log.OperationFit,
		log.ModelTypeKey, string(cfg.ModelType),
		log.SamplesKey, n,
		log.BlocksKey, len(blocks),
		log.ResponsesKey, yc,
		log.SchemeKey, string(cfg.CVScheme),
		log.WorkersKey, workers,
		log.RandomSeedKey, cfg.RandomSeed,
	)

	copied := copyBlocks(blocks)

	kernels := make([]*mat.Dense, len(copied))
	kernelCfgs := make([]kernel.Config, len(copied))
	for i, b := range copied {
		builder, err := kernel.New(cfg.kernelFor(i))
		if err != nil {
			return nil, coplserrors.Wrapf(err, "block kernel %d", i)
		}
		K, err := builder.Compute(b.Data, b.Data)
		if err != nil {
			return nil, coplserrors.Wrapf(err, "computing kernel for %s", b.Name)
		}
		kernels[i] = K
		kernelCfgs[i] = builder.Config()
	}
	logf("block kernels computed", log.BlocksKey, len(kernels))

	res, err := runPipeline(kernels, yd, &cfg, maxOcomp, workers)
	if err != nil {
		return nil, err
	}
	em := res.model
	logf("model order selected",
		log.PredictiveKey, cfg.MaxPcomp,
		log.OrthogonalKey, res.nOcompOpt,
		log.Q2Key, res.cv.Q2[res.nOcompOpt],
	)

	dec := decompose(copied, res.fusion.Normalized, em, workers)

	ref := PermutationResult{
		RY:  meanAbsCorrelation(yd, yd),
		R2Y: em.R2Y[em.NOcomp],
		Q2:  res.cv.Q2[res.nOcompOpt],
		DQ2: math.NaN(),
	}
	if res.cv.DQ2 != nil {
		ref.DQ2 = res.cv.DQ2[res.nOcompOpt]
	}
	perms := runPermutations(kernels, yd, &cfg, maxOcomp, ref, workers)

	m := newConsensusModel(modelParts{
		cfg:         cfg,
		classLabels: classLabels,
		y:           yd,
		blocks:      copied,
		kernelCfgs:  kernelCfgs,
		fusion:      res.fusion,
		cv:          res.cv,
		nOcompOpt:   res.nOcompOpt,
		engine:      em,
		decomp:      dec,
		permStats:   perms,
	})

	logf("consensus fit finished",
		log.OperationKey, log.OperationFit,
		log.PredictiveKey, m.nPcomp,
		log.OrthogonalKey, m.nOcompOpt,
		log.R2YKey, em.R2Y[em.NOcomp],
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return m, nil
}

// pipelineResult carries the outcome of one fusion, cross-validation,
// selection and final-fit chain. Permutation rounds rebuild it from
// shuffled responses.
type pipelineResult struct {
	fusion    *kernel.Fusion
	cv        *CVDiagnostics
	nOcompOpt int
	model     *kopls.Model
}

// runPipeline fuses the block kernels against Y, cross-validates the
// orthogonal-component grid, selects the component count and fits the
// final engine on the full fused kernel.
func runPipeline(kernels []*mat.Dense, Y *mat.Dense, cfg *Config, maxOcomp, workers int) (*pipelineResult, error) {
	fusion, err := kernel.Fuse(kernels, Y, workers)
	if err != nil {
		return nil, err
	}

	cv, err := runCrossValidation(fusion.Weighted, Y, cfg, maxOcomp, workers)
	if err != nil {
		return nil, err
	}

	curve := cv.Q2
	if cv.DQ2 != nil {
		curve = cv.DQ2
	}
	nOcompOpt := selectComponents(curve)

	eng := kopls.NewEngine(cfg.MaxPcomp, nOcompOpt, cfg.YScaling, true)
	if err := eng.Fit(fusion.Weighted, Y); err != nil {
		return nil, coplserrors.Wrap(err, "final model fit")
	}
	em, err := eng.Model()
	if err != nil {
		return nil, err
	}

	return &pipelineResult{fusion: fusion, cv: cv, nOcompOpt: nOcompOpt, model: em}, nil
}

// validateDummy checks that a discriminant response is a 0/1 indicator
// matrix with at least two classes and at least two samples per class.
func validateDummy(Y *mat.Dense) error {
	n, c := Y.Dims()
	if c < 2 {
		return coplserrors.NewValidationError("response",
			"discriminant response needs one indicator column per class (at least 2)", c)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			v := Y.At(i, j)
			if v != 0 && v != 1 {
				return coplserrors.NewValidationError("response",
					fmt.Sprintf("discriminant response must contain only 0/1 entries, found %g at (%d, %d)", v, i, j), v)
			}
		}
	}
	for j := 0; j < c; j++ {
		count := 0
		for i := 0; i < n; i++ {
			if Y.At(i, j) == 1 {
				count++
			}
		}
		if count < 2 {
			return coplserrors.NewValidationError("response",
				fmt.Sprintf("class %d has %d samples; at least 2 required per class", j+1, count), count)
		}
	}
	return nil
}

// syntheticLabels names classes class1..classC for discriminant fits that
// supplied an indicator matrix instead of labels.
func syntheticLabels(c int) []string {
	out := make([]string, c)
	for j := range out {
		out[j] = fmt.Sprintf("class%d", j+1)
	}
	return out
}
