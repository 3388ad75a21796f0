// Package kopls implements the kernel-based orthogonal projections to
// latent structures (K-OPLS) estimator of Rantalainen and Bylesjö.
//
// K-OPLS fits a predictive subspace of a kernel Gram matrix against a
// response matrix and iteratively deflates response-orthogonal variation
// out of the kernel. The fitted Model retains the complete deflation
// history, which makes exact out-of-sample projection possible: new
// observations are pushed through the same sequence of orthogonal
// corrections that shaped the training kernel.
//
// The Engine operates on a single Gram matrix. Multi-block fusion,
// cross-validated component selection and permutation testing are layered
// on top by the copls package.
package kopls

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/core/model"
	"github.com/sib-swiss/ConsensusOPLS/kernel"
	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
	"github.com/sib-swiss/ConsensusOPLS/pkg/log"
	"github.com/sib-swiss/ConsensusOPLS/preprocessing"
)

// rankTolerance is the threshold below which singular values, eigenvalues
// and score norms are treated as numerically zero.
const rankTolerance = 1e-12

// Engine estimates a K-OPLS model from a kernel Gram matrix and a response
// matrix. It implements the Fitter and Predictor interfaces so it can be
// driven by generic pipeline code.
//
// The zero value is not usable; construct with NewEngine.
type Engine struct {
	model.BaseEstimator

	nPcomp       int
	nOcomp       int
	scaleMode    preprocessing.ScaleMode
	centerKernel bool

	fitted *Model
}

// Model holds the state of a fitted K-OPLS estimator. Stage slices are
// indexed by the number of orthogonal components removed so far: Tp[i] and
// Bt[i] are the predictive scores and regression coefficients computed
// after i deflation rounds, K1[i] and Kii[i] the corresponding deflated
// kernels. All matrices must be treated as read only.
type Model struct {
	// N is the number of training observations.
	N int
	// NPcomp and NOcomp are the fitted component counts.
	NPcomp int
	NOcomp int

	// Cp holds the top eigenvectors of Y'KY, one column per predictive
	// component. SpVals are the matching eigenvalues in descending order
	// and SpInvSqrt the diagonal matrix of their inverse square roots.
	Cp        *mat.Dense
	SpVals    []float64
	SpInvSqrt *mat.DiagDense

	// Up is the response-side basis Y*Cp.
	Up *mat.Dense

	// Tp and Bt have length NOcomp+1. K1 and Kii hold the deflation
	// history of the cross and symmetric kernels, same length.
	Tp  []*mat.Dense
	Bt  []*mat.Dense
	K1  []*mat.Dense
	Kii []*mat.Dense

	// To holds the unit-norm orthogonal score vectors as columns, nil when
	// NOcomp is zero. Co, So and ToNorm record the loading vector, the
	// eigenvalue and the pre-normalization score norm of each round.
	To     *mat.Dense
	Co     []*mat.VecDense
	So     []float64
	ToNorm []float64

	// KRaw is a copy of the training kernel before centering. Projection
	// of new observations centers their kernel against it.
	KRaw         *mat.Dense
	CenterKernel bool

	// Scaler reproduces the response scaling on predictions.
	Scaler *preprocessing.Scaler

	// Cumulative explained-variance statistics, indexed by the number of
	// orthogonal components in use (0..NOcomp). R2X is the total fraction
	// of kernel variance captured, split into the predictive part R2XC
	// and the orthogonal part R2XO. R2Y is the fraction of response
	// variance explained.
	R2X  []float64
	R2XO []float64
	R2XC []float64
	R2Y  []float64

	// SSY is the total sum of squares of the scaled response.
	SSY float64
}

var (
	_ model.Fitter    = (*Engine)(nil)
	_ model.Predictor = (*Engine)(nil)
)

// NewEngine returns an Engine extracting nPcomp predictive and nOcomp
// orthogonal components. The response matrix is scaled with scaleMode
// before fitting, and predictions are returned on the original response
// scale. When centerKernel is true the Gram matrix is double centered,
// which is required for kernels built from uncentered data.
func NewEngine(nPcomp, nOcomp int, scaleMode preprocessing.ScaleMode, centerKernel bool) *Engine {
	return &Engine{
		nPcomp:       nPcomp,
		nOcomp:       nOcomp,
		scaleMode:    scaleMode,
		centerKernel: centerKernel,
	}
}

// Fit estimates the model from the n x n kernel Gram matrix K and the
// n x c response matrix Y.
//
// The predictive basis comes from the eigendecomposition of Y'KY. Each
// orthogonal round then locates the strongest response-orthogonal
// direction in the current kernel, records it and deflates it from both
// kernel copies. A ConvergenceError is returned when a round finds no
// variation left to extract, which happens when nOcomp exceeds the
// effective rank of the kernel.
func (e *Engine) Fit(K, Y mat.Matrix) error {
	n, nc := K.Dims()
	if n == 0 {
		return coplserrors.Wrap(coplserrors.ErrEmptyData, "kernel-opls fit")
	}
	if n != nc {
		return coplserrors.NewDimensionError("kernel-opls fit", n, nc, 1)
	}
	yr, ycols := Y.Dims()
	if yr != n {
		return coplserrors.NewDimensionError("kernel-opls fit", n, yr, 0)
	}
	if ycols == 0 {
		return coplserrors.Wrap(coplserrors.ErrEmptyData, "kernel-opls fit: response matrix")
	}
	if e.nPcomp < 1 {
		return coplserrors.NewValidationError("nPcomp", "must be at least 1", e.nPcomp)
	}
	if e.nPcomp > ycols {
		return coplserrors.NewValidationError("nPcomp", "cannot exceed the number of response columns", e.nPcomp)
	}
	if e.nPcomp > n {
		return coplserrors.NewValidationError("nPcomp", "cannot exceed the number of observations", e.nPcomp)
	}
	if e.nOcomp < 0 {
		return coplserrors.NewValidationError("nOcomp", "must not be negative", e.nOcomp)
	}

	logger := log.GetLoggerWithName("kopls.engine")

	scaler := preprocessing.NewScaler(e.scaleMode)
	ysM, err := scaler.FitTransform(Y)
	if err != nil {
		return coplserrors.Wrap(err, "kernel-opls fit: response scaling")
	}
	ys := mat.DenseCopyOf(ysM)

	kraw := mat.DenseCopyOf(K)
	var kc *mat.Dense
	if e.centerKernel {
		kc, err = kernel.CenterTrain(kraw)
		if err != nil {
			return coplserrors.Wrap(err, "kernel-opls fit")
		}
	} else {
		kc = mat.DenseCopyOf(K)
	}

	sstotK := mat.Trace(kc)
	if sstotK <= rankTolerance {
		return coplserrors.NewNumericalDegeneracyError("kernel-opls fit", "K", "total kernel variance is not positive")
	}

	// Predictive basis from the response-weighted kernel.
	var yky mat.Dense
	yky.Product(ys.T(), kc, ys)
	spVals, cp, err := topEigenPairs(&yky, e.nPcomp)
	if err != nil {
		return coplserrors.Wrap(err, "kernel-opls fit")
	}
	for _, v := range spVals {
		if v <= rankTolerance {
			return coplserrors.NewNumericalDegeneracyError("kernel-opls fit", "Y'KY",
				"rank is below the requested predictive component count")
		}
	}
	spInvSqrt := mat.NewDiagDense(e.nPcomp, nil)
	for a, v := range spVals {
		spInvSqrt.SetDiag(a, 1/math.Sqrt(v))
	}

	var up mat.Dense
	up.Mul(ys, cp)

	nox := e.nOcomp
	m := &Model{
		N:            n,
		NPcomp:       e.nPcomp,
		NOcomp:       nox,
		Cp:           cp,
		SpVals:       spVals,
		SpInvSqrt:    spInvSqrt,
		Up:           &up,
		Tp:           make([]*mat.Dense, nox+1),
		Bt:           make([]*mat.Dense, nox+1),
		K1:           make([]*mat.Dense, nox+1),
		Kii:          make([]*mat.Dense, nox+1),
		Co:           make([]*mat.VecDense, nox),
		So:           make([]float64, nox),
		ToNorm:       make([]float64, nox),
		KRaw:         kraw,
		CenterKernel: e.centerKernel,
		Scaler:       scaler,
		R2X:          make([]float64, nox+1),
		R2XO:         make([]float64, nox+1),
		R2XC:         make([]float64, nox+1),
		R2Y:          make([]float64, nox+1),
		SSY:          frobSq(ys),
	}
	m.K1[0] = kc
	m.Kii[0] = kc
	if nox > 0 {
		m.To = mat.NewDense(n, nox, nil)
	}

	orthoVarSum := 0.0
	for i := 0; i < nox; i++ {
		tp := scores(m.K1[i], &up, spInvSqrt)
		bt, err := solveScoreRegression(tp, ys)
		if err != nil {
			return err
		}
		m.Tp[i] = tp
		m.Bt[i] = bt
		recordStats(m, i, ys, sstotK, orthoVarSum)

		// Strongest response-orthogonal direction of the residual kernel.
		var tptp mat.Dense
		tptp.Mul(tp, tp.T())
		var residK mat.Dense
		residK.Sub(m.Kii[i], &tptp)
		var w mat.Dense
		w.Product(tp.T(), &residK, tp)
		soVals, coVecs, err := topEigenPairs(&w, 1)
		if err != nil {
			return coplserrors.Wrap(err, "kernel-opls fit")
		}
		so := soVals[0]
		if so <= rankTolerance {
			return coplserrors.NewConvergenceError("orthogonal component extraction", i+1, so, rankTolerance)
		}
		co := mat.NewVecDense(e.nPcomp, nil)
		co.CopyVec(coVecs.ColView(0))

		var dir mat.Dense
		dir.Mul(&residK, tp)
		var to mat.VecDense
		to.MulVec(&dir, co)
		to.ScaleVec(1/math.Sqrt(so), &to)
		toNorm := mat.Norm(&to, 2)
		if toNorm <= rankTolerance {
			return coplserrors.NewConvergenceError("orthogonal component extraction", i+1, toNorm, rankTolerance)
		}
		to.ScaleVec(1/toNorm, &to)

		orthoVar := quadraticForm(m.Kii[i], &to)
		orthoVarSum += orthoVar

		m.Co[i] = co
		m.So[i] = so
		m.ToNorm[i] = toNorm
		for r := 0; r < n; r++ {
			m.To.Set(r, i, to.AtVec(r))
		}

		m.K1[i+1] = deflateRight(m.K1[i], &to)
		m.Kii[i+1] = deflateBoth(m.Kii[i], &to)

		logger.Debug("orthogonal component extracted",
			log.OrthogonalKey, i+1,
			"ortho_variance", orthoVar,
			"score_norm", toNorm,
		)
	}

	tp := scores(m.K1[nox], &up, spInvSqrt)
	bt, err := solveScoreRegression(tp, ys)
	if err != nil {
		return err
	}
	m.Tp[nox] = tp
	m.Bt[nox] = bt
	recordStats(m, nox, ys, sstotK, orthoVarSum)

	e.fitted = m
	e.SetFitted()

	logger.Debug("kernel-opls fit complete",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.ResponsesKey, ycols,
		log.PredictiveKey, e.nPcomp,
		log.OrthogonalKey, nox,
		log.R2YKey, m.R2Y[nox],
		log.R2XKey, m.R2X[nox],
	)
	return nil
}

// recordStats fills the explained-variance entries for stage i using the
// scores and coefficients already stored on the model.
func recordStats(m *Model, i int, ys *mat.Dense, sstotK, orthoVarSum float64) {
	var fitted mat.Dense
	fitted.Mul(m.Tp[i], m.Bt[i])
	var resid mat.Dense
	resid.Sub(ys, &fitted)
	if m.SSY > 0 {
		m.R2Y[i] = 1 - frobSq(&resid)/m.SSY
	} else {
		m.R2Y[i] = math.NaN()
	}
	m.R2XC[i] = frobSq(m.Tp[i]) / sstotK
	m.R2XO[i] = orthoVarSum / sstotK
	m.R2X[i] = m.R2XC[i] + m.R2XO[i]
}

// Model returns the fitted model state. Callers must not modify the
// returned matrices.
func (e *Engine) Model() (*Model, error) {
	if !e.IsFitted() {
		return nil, coplserrors.NewNotFittedError("KOPLS", "Model")
	}
	return e.fitted, nil
}

// NPcomp returns the configured predictive component count.
func (e *Engine) NPcomp() int { return e.nPcomp }

// NOcomp returns the configured orthogonal component count.
func (e *Engine) NOcomp() int { return e.nOcomp }

// scores computes K1' * Up * SpInvSqrt, the predictive score matrix for a
// deflation stage.
func scores(k1 *mat.Dense, up *mat.Dense, spInvSqrt *mat.DiagDense) *mat.Dense {
	var tp mat.Dense
	tp.Product(k1.T(), up, spInvSqrt)
	return &tp
}

// solveScoreRegression computes (Tp'Tp)^-1 Tp'Y. An ill-conditioned but
// solvable system is accepted, exact singularity is reported as a
// degeneracy error.
func solveScoreRegression(tp, ys *mat.Dense) (*mat.Dense, error) {
	var tptp mat.Dense
	tptp.Mul(tp.T(), tp)
	var tpy mat.Dense
	tpy.Mul(tp.T(), ys)
	var bt mat.Dense
	if err := bt.Solve(&tptp, &tpy); err != nil {
		var cond mat.Condition
		if !coplserrors.As(err, &cond) {
			return nil, coplserrors.NewNumericalDegeneracyError("score regression", "Tp'Tp", "matrix is singular")
		}
	}
	return &bt, nil
}

// topEigenPairs returns the k largest eigenvalues of the symmetric part of
// a, in descending order, together with the matching eigenvectors as
// columns.
func topEigenPairs(a *mat.Dense, k int) ([]float64, *mat.Dense, error) {
	r, c := a.Dims()
	if r != c {
		return nil, nil, coplserrors.NewDimensionError("eigendecomposition", r, c, 1)
	}
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return nil, nil, coplserrors.NewNumericalDegeneracyError("eigendecomposition", "symmetric matrix", "factorization failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// EigenSym sorts ascending; flip to descending and keep the top k.
	top := mat.NewDense(r, k, nil)
	topVals := make([]float64, k)
	for j := 0; j < k; j++ {
		src := r - 1 - j
		topVals[j] = vals[src]
		for i := 0; i < r; i++ {
			top.Set(i, j, vecs.At(i, src))
		}
	}
	return topVals, top, nil
}

// quadraticForm computes v' * a * v.
func quadraticForm(a *mat.Dense, v mat.Vector) float64 {
	var av mat.VecDense
	av.MulVec(a, v)
	return mat.Dot(v, &av)
}

// deflateRight computes K * (I - t t'), removing the orthogonal score
// direction from the column space.
func deflateRight(k *mat.Dense, t mat.Vector) *mat.Dense {
	var kt mat.VecDense
	kt.MulVec(k, t)
	var upd mat.Dense
	upd.Outer(1, &kt, t)
	var out mat.Dense
	out.Sub(k, &upd)
	return &out
}

// deflateBoth computes (I - t t') * K * (I - t t').
func deflateBoth(k *mat.Dense, t mat.Vector) *mat.Dense {
	var kt mat.VecDense
	kt.MulVec(k.T(), t)
	var left mat.Dense
	left.Outer(1, t, &kt)
	var half mat.Dense
	half.Sub(k, &left)

	var ht mat.VecDense
	ht.MulVec(&half, t)
	var right mat.Dense
	right.Outer(1, &ht, t)
	var out mat.Dense
	out.Sub(&half, &right)
	return &out
}

// frobSq returns the squared Frobenius norm.
func frobSq(a mat.Matrix) float64 {
	n := mat.Norm(a, 2)
	return n * n
}
