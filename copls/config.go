package copls

import (
	"runtime"

	"github.com/sib-swiss/ConsensusOPLS/kernel"
	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
	"github.com/sib-swiss/ConsensusOPLS/preprocessing"
)

// ModelType selects between regression and discriminant analysis.
type ModelType string

const (
	// ModelRegression fits a quantitative response.
	ModelRegression ModelType = "reg"
	// ModelDiscriminant fits a dummy-coded class response and selects
	// components on the DQ2 curve.
	ModelDiscriminant ModelType = "da"
)

// ParseModelType converts a tag into a ModelType.
func ParseModelType(tag string) (ModelType, error) {
	switch ModelType(tag) {
	case ModelRegression, ModelDiscriminant:
		return ModelType(tag), nil
	default:
		return "", coplserrors.NewValidationError("modelType",
			`must be "reg" or "da"`, tag)
	}
}

// CVScheme selects the cross-validation partitioning scheme.
type CVScheme string

const (
	// SchemeNFold assigns sample i to test group i mod nfold. The split is
	// deterministic and covers every sample exactly once.
	SchemeNFold CVScheme = "nfold"
	// SchemeMCCV draws independent random train/test splits.
	SchemeMCCV CVScheme = "mccv"
	// SchemeMCCVB draws random splits preserving per-class proportions.
	// Discriminant models only.
	SchemeMCCVB CVScheme = "mccvb"
)

// ParseCVScheme converts a tag into a CVScheme.
func ParseCVScheme(tag string) (CVScheme, error) {
	switch CVScheme(tag) {
	case SchemeNFold, SchemeMCCV, SchemeMCCVB:
		return CVScheme(tag), nil
	default:
		return "", coplserrors.NewValidationError("cvScheme",
			`must be "nfold", "mccv" or "mccvb"`, tag)
	}
}

// Config collects the fitting parameters. Construct with DefaultConfig and
// override fields as needed; Fit validates everything up front, before any
// parallel work starts.
type Config struct {
	// MaxPcomp is the number of predictive components, at least 1 and at
	// most the number of response columns.
	MaxPcomp int

	// MaxOcomp is the largest orthogonal component count evaluated by
	// cross-validation. Silently clamped to the feasible maximum for the
	// data (sample count minus MaxPcomp, and the smallest block variable
	// count).
	MaxOcomp int

	// ModelType selects regression or discriminant analysis.
	ModelType ModelType

	// CVScheme selects the partitioning scheme; NFold, NMC and CVFrac
	// parameterize it.
	CVScheme CVScheme
	NFold    int
	NMC      int
	CVFrac   float64

	// Kernel is the kernel configuration shared by all blocks.
	// BlockKernels, when non-nil, overrides it per block and must have one
	// entry per block.
	Kernel       kernel.Config
	BlockKernels []kernel.Config

	// YScaling is the response scaling mode applied inside the engine
	// ("mc", "uv", "pa" or "no"). Predictions are always returned on the
	// original response scale.
	YScaling preprocessing.ScaleMode

	// Workers bounds the worker pool for kernel fusion, the CV grid and
	// permutation rounds. Zero or negative means one worker per CPU.
	Workers int

	// NPerm is the number of permutation rounds; zero disables the
	// permutation test.
	NPerm int

	// RandomSeed seeds Monte Carlo partitioning and permutation draws.
	// Fits with identical inputs and seeds are reproducible.
	RandomSeed uint64

	// Verbose promotes pipeline milestone logs from Debug to Info.
	Verbose bool
}

// DefaultConfig returns the standard configuration: one predictive
// component, up to five orthogonal components, discriminant mode with
// five-fold cross-validation, a linear kernel and mean-centered responses.
func DefaultConfig() Config {
	return Config{
		MaxPcomp:   1,
		MaxOcomp:   5,
		ModelType:  ModelDiscriminant,
		CVScheme:   SchemeNFold,
		NFold:      5,
		NMC:        100,
		CVFrac:     0.75,
		Kernel:     kernel.Config{Family: kernel.FamilyLinear},
		YScaling:   preprocessing.ScaleCenter,
		Workers:    0,
		NPerm:      0,
		RandomSeed: 42,
	}
}

// Validate checks the configuration for internal consistency. Checks that
// depend on the data (sample count, response width) happen in Fit.
func (c *Config) Validate() error {
	if c.MaxPcomp < 1 {
		return coplserrors.NewValidationError("maxPcomp", "must be at least 1", c.MaxPcomp)
	}
	if c.MaxOcomp < 0 {
		return coplserrors.NewValidationError("maxOcomp", "must not be negative", c.MaxOcomp)
	}
	if _, err := ParseModelType(string(c.ModelType)); err != nil {
		return err
	}
	if _, err := ParseCVScheme(string(c.CVScheme)); err != nil {
		return err
	}
	if c.CVScheme == SchemeMCCVB && c.ModelType != ModelDiscriminant {
		return coplserrors.NewValidationError("cvScheme",
			"mccvb requires a discriminant model", string(c.CVScheme))
	}
	switch c.CVScheme {
	case SchemeNFold:
		if c.NFold < 2 {
			return coplserrors.NewValidationError("nFold", "must be at least 2", c.NFold)
		}
	case SchemeMCCV, SchemeMCCVB:
		if c.NMC < 1 {
			return coplserrors.NewValidationError("nMC", "must be at least 1", c.NMC)
		}
		if c.CVFrac <= 0 || c.CVFrac >= 1 {
			return coplserrors.NewValidationError("cvFrac",
				"must lie strictly between 0 and 1", c.CVFrac)
		}
	}
	if c.NPerm < 0 {
		return coplserrors.NewValidationError("nPerm", "must not be negative", c.NPerm)
	}
	if _, err := preprocessing.ParseScaleMode(string(c.YScaling)); err != nil {
		return err
	}
	if _, err := kernel.New(c.Kernel); err != nil {
		return err
	}
	for i, kc := range c.BlockKernels {
		if _, err := kernel.New(kc); err != nil {
			return coplserrors.Wrapf(err, "block kernel %d", i)
		}
	}
	return nil
}

// kernelFor returns the kernel configuration for block i.
func (c *Config) kernelFor(i int) kernel.Config {
	if c.BlockKernels != nil {
		return c.BlockKernels[i]
	}
	return c.Kernel
}

// effectiveWorkers resolves the configured worker count.
func (c *Config) effectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
