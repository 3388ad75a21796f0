package copls

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
)

// DataBlock is one named measurement table. All blocks passed to a fit
// share the same samples in the same row order; columns are the block's
// own variables.
type DataBlock struct {
	Name string
	Data *mat.Dense
}

// NewDataBlock returns a DataBlock wrapping data under the given name.
func NewDataBlock(name string, data *mat.Dense) DataBlock {
	return DataBlock{Name: name, Data: data}
}

// Dims returns the row and column counts, or zeros for an empty block.
func (b DataBlock) Dims() (int, int) {
	if b.Data == nil {
		return 0, 0
	}
	return b.Data.Dims()
}

// validateBlocks checks the block collection before any kernel work starts
// and returns the shared sample count.
func validateBlocks(blocks []DataBlock) (int, error) {
	if len(blocks) == 0 {
		return 0, coplserrors.Wrap(coplserrors.ErrEmptyData, "consensus fit: block collection")
	}

	n := 0
	for i, b := range blocks {
		if b.Data == nil {
			return 0, coplserrors.NewValidationError("blocks",
				fmt.Sprintf("block %d (%q) has no data", i, b.Name), i)
		}
		r, c := b.Data.Dims()
		if c < 1 {
			return 0, coplserrors.NewValidationError("blocks",
				fmt.Sprintf("block %d (%q) has no variables", i, b.Name), c)
		}
		if i == 0 {
			n = r
		} else if r != n {
			return 0, coplserrors.NewValidationError("blocks",
				fmt.Sprintf("block %d (%q) has %d rows, expected %d", i, b.Name, r, n), r)
		}
		if err := coplserrors.CheckMatrix("consensus fit", blockName(b, i), b.Data, r, c); err != nil {
			return 0, err
		}
	}
	if n < 2 {
		return 0, coplserrors.NewValidationError("blocks",
			"need at least 2 observations", n)
	}
	return n, nil
}

// blockName returns the block's name, or a positional fallback when the
// caller left it empty.
func blockName(b DataBlock, i int) string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("block%d", i+1)
}

// copyBlocks deep-copies the collection so the model never aliases caller
// data, filling in positional names where missing.
func copyBlocks(blocks []DataBlock) []DataBlock {
	out := make([]DataBlock, len(blocks))
	for i, b := range blocks {
		out[i] = DataBlock{
			Name: blockName(b, i),
			Data: mat.DenseCopyOf(b.Data),
		}
	}
	return out
}

// minBlockVariables returns the smallest variable count across blocks.
func minBlockVariables(blocks []DataBlock) int {
	minCols := 0
	for i, b := range blocks {
		_, c := b.Data.Dims()
		if i == 0 || c < minCols {
			minCols = c
		}
	}
	return minCols
}
