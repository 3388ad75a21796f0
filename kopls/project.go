package kopls

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/kernel"
	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
)

// Projection holds the result of pushing new observations through a fitted
// model: the predictive scores after all orthogonal corrections, the
// orthogonal scores of each round (nil when the model has none) and the
// predicted responses on the original response scale.
type Projection struct {
	TPred  *mat.Dense
	TOrtho *mat.Dense
	Yhat   *mat.Dense
}

// Predict projects new observations and returns the predicted responses.
// KteTr is the test-versus-training kernel with one row per new
// observation and one column per training observation.
func (e *Engine) Predict(KteTr mat.Matrix) (mat.Matrix, error) {
	p, err := e.Project(KteTr)
	if err != nil {
		return nil, err
	}
	return p.Yhat, nil
}

// Project projects new observations through the fitted model.
func (e *Engine) Project(KteTr mat.Matrix) (*Projection, error) {
	if !e.IsFitted() {
		return nil, coplserrors.NewNotFittedError("KOPLS", "Project")
	}
	return e.fitted.Project(KteTr)
}

// Project replays the training deflation sequence on the test kernel.
//
// Each round computes the test-side orthogonal score from the stored
// loading of that round, then removes the corresponding direction from
// both evolving test kernels. Applying Project to the training kernel
// itself reproduces the training scores and fitted responses exactly.
func (m *Model) Project(KteTr mat.Matrix) (*Projection, error) {
	nte, ntr := KteTr.Dims()
	if nte == 0 {
		return nil, coplserrors.Wrap(coplserrors.ErrEmptyData, "kernel-opls projection")
	}
	if ntr != m.N {
		return nil, coplserrors.NewDimensionError("kernel-opls projection", m.N, ntr, 1)
	}

	var kc *mat.Dense
	var err error
	if m.CenterKernel {
		kc, err = kernel.CenterTest(KteTr, m.KRaw)
		if err != nil {
			return nil, coplserrors.Wrap(err, "kernel-opls projection")
		}
	} else {
		kc = mat.DenseCopyOf(KteTr)
	}

	nox := m.NOcomp
	var toMat *mat.Dense
	if nox > 0 {
		toMat = mat.NewDense(nte, nox, nil)
	}

	// kte1 tracks the test kernel against the original training space,
	// kteii against the deflated one. They coincide before the first
	// round.
	kte1 := kc
	kteii := kc
	for i := 0; i < nox; i++ {
		var tpNew mat.Dense
		tpNew.Product(kte1, m.Up, m.SpInvSqrt)

		var proj mat.Dense
		proj.Mul(&tpNew, m.Tp[i].T())
		var residK mat.Dense
		residK.Sub(kteii, &proj)
		var dir mat.Dense
		dir.Mul(&residK, m.Tp[i])
		var toNew mat.VecDense
		toNew.MulVec(&dir, m.Co[i])
		toNew.ScaleVec(1/(math.Sqrt(m.So[i])*m.ToNorm[i]), &toNew)
		for r := 0; r < nte; r++ {
			toMat.Set(r, i, toNew.AtVec(r))
		}

		to := m.To.ColView(i)

		// Deflate the cross kernel against the original training space.
		var v mat.VecDense
		v.MulVec(m.K1[i], to)
		var upd1 mat.Dense
		upd1.Outer(1, &toNew, &v)
		var next1 mat.Dense
		next1.Sub(kte1, &upd1)
		kte1 = &next1

		// Deflate the test kernel against the deflated training space.
		var u mat.VecDense
		u.MulVec(m.Kii[i], to)
		var updL mat.Dense
		updL.Outer(1, &toNew, &u)
		var half mat.Dense
		half.Sub(kteii, &updL)
		var hv mat.VecDense
		hv.MulVec(&half, to)
		var updR mat.Dense
		updR.Outer(1, &hv, to)
		var next2 mat.Dense
		next2.Sub(&half, &updR)
		kteii = &next2
	}

	var tpFinal mat.Dense
	tpFinal.Product(kte1, m.Up, m.SpInvSqrt)
	var yhatScaled mat.Dense
	yhatScaled.Mul(&tpFinal, m.Bt[nox])
	rescaled, err := m.Scaler.InverseTransform(&yhatScaled)
	if err != nil {
		return nil, coplserrors.Wrap(err, "kernel-opls projection")
	}

	return &Projection{
		TPred:  &tpFinal,
		TOrtho: toMat,
		Yhat:   mat.DenseCopyOf(rescaled),
	}, nil
}
