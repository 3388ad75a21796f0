// Package kernel computes block kernels and their RV-weighted consensus
// fusion. A Builder turns a data block into a kernel matrix under a fixed
// family and parameter set; the same Builder serves training (X, X) and
// prediction (Xnew, Xtrain) because every product is a cross-kernel.
package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/core/parallel"
	"github.com/sib-swiss/ConsensusOPLS/pkg/errors"
)

// Family identifies a kernel family.
type Family string

const (
	// FamilyLinear is the inner-product kernel X1·X2ᵀ.
	FamilyLinear Family = "linear"
	// FamilyPolynomial is (X1·X2ᵀ + 1)^order.
	FamilyPolynomial Family = "polynomial"
	// FamilyGaussian is exp(−‖x−z‖²/(2σ²)).
	FamilyGaussian Family = "gaussian"
)

// ParseFamily converts a family tag to a Family. Unknown tags yield a
// ConfigurationError.
func ParseFamily(tag string) (Family, error) {
	switch Family(tag) {
	case FamilyLinear, FamilyPolynomial, FamilyGaussian:
		return Family(tag), nil
	default:
		return "", errors.NewConfigurationError("kernel", "family",
			fmt.Sprintf("unknown kernel family %q (expected linear, polynomial or gaussian)", tag))
	}
}

// Config selects a kernel family and its parameters. PolyOrder applies to
// the polynomial family only, GaussianSigma to the gaussian family only.
type Config struct {
	Family        Family
	PolyOrder     int
	GaussianSigma float64
}

// Builder computes kernel matrices under a validated configuration.
type Builder struct {
	cfg Config
}

// New validates cfg and returns a Builder. The family set is closed:
// unknown families, a polynomial order below 1 or a non-positive gaussian
// sigma are configuration errors.
func New(cfg Config) (*Builder, error) {
	switch cfg.Family {
	case FamilyLinear:
		// No parameters.
	case FamilyPolynomial:
		if cfg.PolyOrder < 1 {
			return nil, errors.NewConfigurationError("kernel", "poly order",
				fmt.Sprintf("polynomial kernel requires order >= 1, got %d", cfg.PolyOrder))
		}
	case FamilyGaussian:
		if !(cfg.GaussianSigma > 0) {
			return nil, errors.NewConfigurationError("kernel", "gaussian sigma",
				fmt.Sprintf("gaussian kernel requires sigma > 0, got %g", cfg.GaussianSigma))
		}
	default:
		return nil, errors.NewConfigurationError("kernel", "family",
			fmt.Sprintf("unknown kernel family %q", cfg.Family))
	}

	return &Builder{cfg: cfg}, nil
}

// Config returns the builder configuration.
func (b *Builder) Config() Config {
	return b.cfg
}

// Compute returns the n1×n2 cross-kernel between the rows of X1 and X2.
// The two matrices must share a column count.
func (b *Builder) Compute(X1, X2 mat.Matrix) (*mat.Dense, error) {
	r1, c1 := X1.Dims()
	r2, c2 := X2.Dims()
	if r1 == 0 || c1 == 0 || r2 == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "kernel.Compute")
	}
	if c1 != c2 {
		return nil, errors.NewDimensionError("kernel.Compute", c1, c2, 1)
	}

	// All three families start from the Gram cross-product.
	gram := mat.NewDense(r1, r2, nil)
	gram.Mul(X1, X2.T())

	switch b.cfg.Family {
	case FamilyLinear:
		return gram, nil

	case FamilyPolynomial:
		order := float64(b.cfg.PolyOrder)
		parallel.ParallelizeWithThreshold(r1, 64, func(start, end int) {
			for i := start; i < end; i++ {
				for j := 0; j < r2; j++ {
					gram.Set(i, j, math.Pow(gram.At(i, j)+1, order))
				}
			}
		})
		return gram, nil

	case FamilyGaussian:
		sq1 := rowSquaredNorms(X1)
		sq2 := rowSquaredNorms(X2)
		denom := 2 * b.cfg.GaussianSigma * b.cfg.GaussianSigma
		parallel.ParallelizeWithThreshold(r1, 64, func(start, end int) {
			for i := start; i < end; i++ {
				for j := 0; j < r2; j++ {
					// ‖x−z‖² = ‖x‖² + ‖z‖² − 2·x·z, clipped at zero
					// against rounding.
					d2 := sq1[i] + sq2[j] - 2*gram.At(i, j)
					if d2 < 0 {
						d2 = 0
					}
					gram.Set(i, j, math.Exp(-d2/denom))
				}
			}
		})
		return gram, nil
	}

	return nil, errors.NewConfigurationError("kernel", "family",
		fmt.Sprintf("unknown kernel family %q", b.cfg.Family))
}

// rowSquaredNorms returns ‖x_i‖² for every row of X.
func rowSquaredNorms(X mat.Matrix) []float64 {
	r, c := X.Dims()
	norms := make([]float64, r)
	for i := 0; i < r; i++ {
		var sum float64
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			sum += v * v
		}
		norms[i] = sum
	}
	return norms
}
