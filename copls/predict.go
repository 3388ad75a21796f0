package copls

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/kernel"
	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
	"github.com/sib-swiss/ConsensusOPLS/pkg/log"
)

// Prediction holds the projection of new observations through a fitted
// consensus model. Classes, Margins and Probabilities are populated for
// discriminant models only.
type Prediction struct {
	// Y is the predicted response on the original scale, one row per new
	// observation.
	Y *mat.Dense

	// TPred and TOrtho are the predictive and orthogonal score
	// projections. TOrtho is nil when the model has no orthogonal
	// components.
	TPred  *mat.Dense
	TOrtho *mat.Dense

	// Classes assigns each observation the label of its largest predicted
	// response column.
	Classes []string

	// Margins is the gap between the top and second predicted column per
	// observation, a crude confidence measure.
	Margins []float64

	// Probabilities is the row-wise softmax of the predicted response.
	Probabilities *mat.Dense
}

// Predict projects new observations through the fitted model. The blocks
// must match the training blocks in number, order and variable count;
// block names are checked when the new blocks carry one. Cross-kernels
// against the stored training blocks are fused under the frozen fit-time
// weights and norms, so prediction never re-estimates any part of the
// model. Predicting on the training blocks reproduces the training scores
// and fitted response.
func (m *ConsensusModel) Predict(newBlocks []DataBlock) (*Prediction, error) {
	if len(newBlocks) == 0 {
		return nil, coplserrors.Wrap(coplserrors.ErrEmptyData, "consensus predict: block collection")
	}
	if len(newBlocks) != len(m.blocks) {
		return nil, coplserrors.NewConfigurationError("predict", "blocks",
			fmt.Sprintf("got %d blocks, model was fitted on %d", len(newBlocks), len(m.blocks)))
	}

	nte := -1
	for i, b := range newBlocks {
		name := blockName(b, i)
		if b.Data == nil {
			return nil, coplserrors.NewValidationError("blocks",
				fmt.Sprintf("%s has no data", name), nil)
		}
		r, c := b.Data.Dims()
		if b.Name != "" && b.Name != m.blocks[i].Name {
			return nil, coplserrors.NewConfigurationError("predict", "blocks",
				fmt.Sprintf("block %d is named %q, model was fitted with %q", i, b.Name, m.blocks[i].Name))
		}
		_, trainCols := m.blocks[i].Data.Dims()
		if c != trainCols {
			return nil, coplserrors.NewConfigurationError("predict", "blocks",
				fmt.Sprintf("%s has %d variables, model was fitted with %d", name, c, trainCols))
		}
		if nte == -1 {
			nte = r
		} else if r != nte {
			return nil, coplserrors.NewValidationError("blocks",
				fmt.Sprintf("%s has %d rows, previous blocks have %d", name, r, nte), r)
		}
		if err := coplserrors.CheckMatrix("consensus predict", name, b.Data, r, c); err != nil {
			return nil, err
		}
	}

	logger := log.GetLoggerWithName("copls.predict")
	logger.Debug("prediction started",
		log.OperationKey, log.OperationPredict,
		log.SamplesKey, nte,
		log.BlocksKey, len(newBlocks),
	)

	kernels := make([]*mat.Dense, len(newBlocks))
	for i, b := range newBlocks {
		builder, err := kernel.New(m.kernelCfgs[i])
		if err != nil {
			return nil, coplserrors.Wrapf(err, "block kernel %d", i)
		}
		K, err := builder.Compute(b.Data, m.blocks[i].Data)
		if err != nil {
			return nil, coplserrors.Wrapf(err, "computing cross-kernel for %s", blockName(b, i))
		}
		kernels[i] = K
	}

	W := kernel.FuseWithWeights(kernels, m.rvWeights, m.frobNorms)

	proj, err := m.engine.Project(W)
	if err != nil {
		return nil, coplserrors.Wrap(err, "consensus predict")
	}

	pred := &Prediction{
		Y:      proj.Yhat,
		TPred:  proj.TPred,
		TOrtho: proj.TOrtho,
	}
	if m.IsDiscriminant() {
		pred.Classes, pred.Margins = classify(proj.Yhat, m.classLabels)
		pred.Probabilities = softmaxRows(proj.Yhat)
	}

	logger.Debug("prediction finished",
		log.SamplesKey, nte,
		log.PredictiveKey, m.nPcomp,
		log.OrthogonalKey, m.nOcompOpt,
	)

	return pred, nil
}

// classify maps each prediction row to the label of its largest column and
// the gap between its two largest columns.
func classify(Yhat *mat.Dense, labels []string) ([]string, []float64) {
	n, c := Yhat.Dims()
	classes := make([]string, n)
	margins := make([]float64, n)
	for i := 0; i < n; i++ {
		best, second := 0, -1
		for j := 1; j < c; j++ {
			switch {
			case Yhat.At(i, j) > Yhat.At(i, best):
				second = best
				best = j
			case second == -1 || Yhat.At(i, j) > Yhat.At(i, second):
				second = j
			}
		}
		classes[i] = labels[best]
		margins[i] = Yhat.At(i, best) - Yhat.At(i, second)
	}
	return classes, margins
}

// softmaxRows converts each row to a probability simplex via a numerically
// stable softmax.
func softmaxRows(Yhat *mat.Dense) *mat.Dense {
	n, c := Yhat.Dims()
	out := mat.NewDense(n, c, nil)
	row := make([]float64, c)
	for i := 0; i < n; i++ {
		mat.Row(row, i, Yhat)
		lse := coplserrors.LogSumExp(row)
		for j := 0; j < c; j++ {
			out.Set(i, j, math.Exp(row[j]-lse))
		}
	}
	return out
}
