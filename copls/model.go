package copls

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/kernel"
	"github.com/sib-swiss/ConsensusOPLS/kopls"
)

// ConsensusModel is a fitted consensus kernel model. It is assembled once
// after every pipeline stage has finished and never mutated afterwards, so
// a model is safe to share across goroutines. Matrix-valued accessors
// return the model's internal storage; treat them as read-only.
type ConsensusModel struct {
	modelType   ModelType
	classLabels []string
	y           *mat.Dense
	nPcomp      int
	nOcompOpt   int

	// Frozen prediction state: the training blocks, their kernel
	// configurations, and the fusion weights and norms learned at fit
	// time. Predict recomputes cross-kernels against these blocks.
	blocks     []DataBlock
	kernelCfgs []kernel.Config
	rvWeights  []float64
	frobNorms  []float64

	lambdaRaw      *mat.Dense
	contributions  *mat.Dense
	componentNames []string
	scores         *mat.Dense
	loadings       []*mat.Dense
	vip            [][]float64

	r2X []float64
	r2Y []float64
	q2  []float64
	dq2 []float64

	permStats []PermutationResult

	engine   *kopls.Model
	cv       *CVDiagnostics
	cvScores *mat.Dense
}

// modelParts collects the stage outputs the builder assembles into a
// ConsensusModel. Blocks and the response are already owned copies;
// everything else is freshly derived and ownership transfers to the model.
type modelParts struct {
	cfg         Config
	classLabels []string
	y           *mat.Dense
	blocks      []DataBlock
	kernelCfgs  []kernel.Config
	fusion      *kernel.Fusion
	cv          *CVDiagnostics
	nOcompOpt   int
	engine      *kopls.Model
	decomp      *decomposition
	permStats   []PermutationResult
}

// newConsensusModel assembles the immutable model from the stage outputs.
func newConsensusModel(p modelParts) *ConsensusModel {
	m := &ConsensusModel{
		modelType:   p.cfg.ModelType,
		classLabels: append([]string(nil), p.classLabels...),
		y:           p.y,
		nPcomp:      p.engine.NPcomp,
		nOcompOpt:   p.nOcompOpt,

		blocks:     p.blocks,
		kernelCfgs: append([]kernel.Config(nil), p.kernelCfgs...),
		rvWeights:  append([]float64(nil), p.fusion.Weights...),
		frobNorms:  append([]float64(nil), p.fusion.Norms...),

		lambdaRaw:      p.decomp.lambdaRaw,
		contributions:  p.decomp.contributions,
		componentNames: p.decomp.componentNames,
		scores:         p.decomp.scores,
		loadings:       p.decomp.loadings,
		vip:            p.decomp.vip,

		r2X: append([]float64(nil), p.engine.R2X...),
		r2Y: append([]float64(nil), p.engine.R2Y...),
		q2:  append([]float64(nil), p.cv.Q2...),
		dq2: append([]float64(nil), p.cv.DQ2...),

		permStats: p.permStats,

		engine: p.engine,
		cv:     p.cv,
	}

	// Held-out predictive scores of the winning grid column.
	nr, _ := p.cv.AllTcv.Dims()
	lo := p.nOcompOpt * m.nPcomp
	m.cvScores = mat.DenseCopyOf(p.cv.AllTcv.Slice(0, nr, lo, lo+m.nPcomp))

	return m
}

// ModelType reports whether the model is regression or discriminant.
func (m *ConsensusModel) ModelType() ModelType { return m.modelType }

// IsDiscriminant reports whether the model was fitted as a discriminant.
func (m *ConsensusModel) IsDiscriminant() bool { return m.modelType == ModelDiscriminant }

// ClassLabels returns the class vocabulary of a discriminant model in
// response-column order, nil for regression models.
func (m *ConsensusModel) ClassLabels() []string {
	if m.classLabels == nil {
		return nil
	}
	return append([]string(nil), m.classLabels...)
}

// Response returns the response matrix the model was fitted on, dummy-coded
// for discriminant models.
func (m *ConsensusModel) Response() *mat.Dense { return m.y }

// NPcomp returns the number of predictive components.
func (m *ConsensusModel) NPcomp() int { return m.nPcomp }

// NOcompOpt returns the selected number of orthogonal components.
func (m *ConsensusModel) NOcompOpt() int { return m.nOcompOpt }

// BlockNames returns the block names in fit order.
func (m *ConsensusModel) BlockNames() []string {
	out := make([]string, len(m.blocks))
	for i, b := range m.blocks {
		out[i] = b.Name
	}
	return out
}

// BlockContributions returns the blocks × components contribution matrix.
// Every column sums to 1 unless the component had zero total association,
// in which case the column is NaN.
func (m *ConsensusModel) BlockContributions() *mat.Dense { return m.contributions }

// Lambda returns the raw blocks × components association matrix before
// column normalization.
func (m *ConsensusModel) Lambda() *mat.Dense { return m.lambdaRaw }

// ComponentNames labels the columns of Scores, Loadings and the
// contribution matrices: p_1..p_A for predictive components, then
// o_1..o_k for orthogonal ones.
func (m *ConsensusModel) ComponentNames() []string {
	return append([]string(nil), m.componentNames...)
}

// Scores returns the samples × components score matrix of the final model,
// columns in ComponentNames order.
func (m *ConsensusModel) Scores() *mat.Dense { return m.scores }

// Loadings returns one variables × components loading matrix per block, in
// block order.
func (m *ConsensusModel) Loadings() []*mat.Dense { return m.loadings }

// VIP returns one influence score per variable per block, in block order,
// computed over the predictive components.
func (m *ConsensusModel) VIP() [][]float64 { return m.vip }

// R2X returns the cumulative explained kernel variance per deflation
// stage, index 0 holding the predictive-only model.
func (m *ConsensusModel) R2X() []float64 { return append([]float64(nil), m.r2X...) }

// R2Y returns the cumulative explained response variance per deflation
// stage.
func (m *ConsensusModel) R2Y() []float64 { return append([]float64(nil), m.r2Y...) }

// Q2 returns the cross-validated predictive quality per orthogonal
// component count, indices 0..maxOcomp.
func (m *ConsensusModel) Q2() []float64 { return append([]float64(nil), m.q2...) }

// DQ2 returns the discriminant-adjusted Q2 curve, nil for regression
// models.
func (m *ConsensusModel) DQ2() []float64 {
	if m.dq2 == nil {
		return nil
	}
	return append([]float64(nil), m.dq2...)
}

// SelectionCurve returns the curve the component selector scanned: DQ2 for
// discriminant models, Q2 otherwise.
func (m *ConsensusModel) SelectionCurve() []float64 {
	if m.dq2 != nil {
		return append([]float64(nil), m.dq2...)
	}
	return append([]float64(nil), m.q2...)
}

// PermutationStats returns the permutation table, row 0 the unpermuted
// reference. Nil when the model was fitted without permutations.
func (m *ConsensusModel) PermutationStats() []PermutationResult {
	if m.permStats == nil {
		return nil
	}
	return append([]PermutationResult(nil), m.permStats...)
}

// CV returns the raw cross-validation diagnostics.
func (m *ConsensusModel) CV() *CVDiagnostics { return m.cv }

// CVScores returns the stacked held-out predictive scores at the selected
// orthogonal component count, rows aligned with CV().TestIndex.
func (m *ConsensusModel) CVScores() *mat.Dense { return m.cvScores }

// KernelConfigs returns the frozen per-block kernel configurations.
func (m *ConsensusModel) KernelConfigs() []kernel.Config {
	return append([]kernel.Config(nil), m.kernelCfgs...)
}

// RVWeights returns the frozen fusion weight of each block.
func (m *ConsensusModel) RVWeights() []float64 {
	return append([]float64(nil), m.rvWeights...)
}

// FrobeniusNorms returns the frozen Frobenius norm each block kernel was
// divided by during fusion.
func (m *ConsensusModel) FrobeniusNorms() []float64 {
	return append([]float64(nil), m.frobNorms...)
}

// KernelModel returns the fitted kernel regression engine, including its
// deflation history.
func (m *ConsensusModel) KernelModel() *kopls.Model { return m.engine }

// String returns a printable description of the model.
func (m *ConsensusModel) String() string {
	return fmt.Sprintf("ConsensusModel(type=%s, blocks=%d, nPcomp=%d, nOcompOpt=%d)",
		m.modelType, len(m.blocks), m.nPcomp, m.nOcompOpt)
}
