package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/core/model"
	"github.com/sib-swiss/ConsensusOPLS/pkg/errors"
)

// LabelBinarizer converts class labels to a 0/1 dummy-coded response matrix
// with one column per class, and maps predicted rows back to labels by
// largest column. Discriminant models consume the dummy coding; the label
// vocabulary freezes at Fit time.
type LabelBinarizer struct {
	model.BaseEstimator

	// ClassLabels holds the distinct labels seen during Fit, sorted.
	ClassLabels []string

	index map[string]int
}

// NewLabelBinarizer creates an unfitted LabelBinarizer.
func NewLabelBinarizer() *LabelBinarizer {
	return &LabelBinarizer{}
}

// Fit learns the sorted set of distinct labels.
func (l *LabelBinarizer) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "LabelBinarizer.Fit")
	}

	seen := make(map[string]bool)
	for _, label := range labels {
		seen[label] = true
	}

	l.ClassLabels = make([]string, 0, len(seen))
	for label := range seen {
		l.ClassLabels = append(l.ClassLabels, label)
	}
	sort.Strings(l.ClassLabels)

	if len(l.ClassLabels) < 2 {
		return errors.NewValidationError("labels", "at least two distinct classes required", len(l.ClassLabels))
	}

	l.index = make(map[string]int, len(l.ClassLabels))
	for i, label := range l.ClassLabels {
		l.index[label] = i
	}

	l.SetFitted()
	return nil
}

// Transform dummy-codes labels into an n×c matrix: row i carries a 1 in the
// column of its class and 0 elsewhere. Labels outside the fitted vocabulary
// yield a ValidationError.
func (l *LabelBinarizer) Transform(labels []string) (*mat.Dense, error) {
	if !l.IsFitted() {
		return nil, errors.NewNotFittedError("LabelBinarizer", "Transform")
	}

	result := mat.NewDense(len(labels), len(l.ClassLabels), nil)
	for i, label := range labels {
		j, ok := l.index[label]
		if !ok {
			return nil, errors.NewValidationError("labels",
				fmt.Sprintf("unknown class %q (fitted classes: %v)", label, l.ClassLabels), label)
		}
		result.Set(i, j, 1.0)
	}

	return result, nil
}

// FitTransform fits the vocabulary and dummy-codes the same labels.
func (l *LabelBinarizer) FitTransform(labels []string) (*mat.Dense, error) {
	if err := l.Fit(labels); err != nil {
		return nil, err
	}
	return l.Transform(labels)
}

// InverseTransform maps each row of a prediction matrix to the label of its
// largest column.
func (l *LabelBinarizer) InverseTransform(Y mat.Matrix) ([]string, error) {
	if !l.IsFitted() {
		return nil, errors.NewNotFittedError("LabelBinarizer", "InverseTransform")
	}

	r, c := Y.Dims()
	if c != len(l.ClassLabels) {
		return nil, errors.NewDimensionError("LabelBinarizer.InverseTransform", len(l.ClassLabels), c, 1)
	}

	labels := make([]string, r)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if Y.At(i, j) > Y.At(i, best) {
				best = j
			}
		}
		labels[i] = l.ClassLabels[best]
	}

	return labels, nil
}

// Classes returns the fitted label vocabulary.
func (l *LabelBinarizer) Classes() []string {
	out := make([]string, len(l.ClassLabels))
	copy(out, l.ClassLabels)
	return out
}

// String returns a printable description of the binarizer.
func (l *LabelBinarizer) String() string {
	if !l.IsFitted() {
		return "LabelBinarizer()"
	}
	return fmt.Sprintf("LabelBinarizer(classes=%v)", l.ClassLabels)
}
