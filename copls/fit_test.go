package copls

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"

	"github.com/sib-swiss/ConsensusOPLS/kernel"
	coplserrors "github.com/sib-swiss/ConsensusOPLS/pkg/errors"
)

// discriminantBlocks builds three blocks of 20 shared samples (50, 30 and
// 10 variables) with a 10/10 class split. Half the variables of every
// block carry a class shift, the rest are noise; the draw is seeded, so
// the fixture is identical on every run.
func discriminantBlocks(t *testing.T) ([]DataBlock, []string) {
	t.Helper()

	rng := rand.New(rand.NewPCG(5, 5))
	shapes := []struct {
		name string
		cols int
	}{
		{"proteins", 50},
		{"metabolites", 30},
		{"lipids", 10},
	}

	labels := make([]string, 20)
	for i := range labels {
		if i < 10 {
			labels[i] = "control"
		} else {
			labels[i] = "treated"
		}
	}

	blocks := make([]DataBlock, 0, len(shapes))
	for _, sh := range shapes {
		data := mat.NewDense(20, sh.cols, nil)
		for i := 0; i < 20; i++ {
			shift := 0.0
			if i >= 10 {
				shift = 1.5
			}
			for j := 0; j < sh.cols; j++ {
				v := rng.NormFloat64()
				if j%2 == 0 {
					v += shift
				}
				data.Set(i, j, v)
			}
		}
		blocks = append(blocks, NewDataBlock(sh.name, data))
	}

	return blocks, labels
}

// regressionBlocks builds two 12-sample blocks and a response that is a
// noisy linear function of the first block.
func regressionBlocks(t *testing.T) ([]DataBlock, *mat.Dense) {
	t.Helper()

	X := mat.NewDense(12, 4, []float64{
		2.1, 0.4, 1.3, 3.0,
		0.5, 1.9, 2.2, 0.8,
		3.3, 2.8, 0.1, 1.4,
		1.0, 0.2, 3.1, 2.5,
		2.7, 1.1, 0.6, 0.3,
		0.9, 3.4, 1.8, 2.0,
		1.6, 0.7, 2.9, 1.2,
		3.0, 2.2, 0.4, 0.6,
		0.2, 1.5, 1.0, 2.8,
		2.4, 0.9, 3.2, 1.7,
		1.3, 2.6, 0.8, 0.5,
		0.7, 1.2, 2.0, 3.1,
	})

	Z := mat.NewDense(12, 3, nil)
	for i := 0; i < 12; i++ {
		for j := 0; j < 3; j++ {
			v := X.At(i, j)
			Z.Set(i, j, v*v)
		}
	}

	Y := mat.NewDense(12, 1, []float64{
		4.50, 0.27, 3.90, 3.30, 4.66, -0.75, 4.00, 3.95, -0.55, 5.40, 0.44, 1.25,
	})

	blocks := []DataBlock{
		NewDataBlock("signals", X),
		NewDataBlock("intensities", Z),
	}
	return blocks, Y
}

func TestFitDiscriminant(t *testing.T) {
	blocks, labels := discriminantBlocks(t)

	cfg := DefaultConfig()
	cfg.MaxPcomp = 1
	cfg.MaxOcomp = 3
	cfg.NFold = 5
	cfg.Workers = 2

	m, err := FitDiscriminant(blocks, labels, cfg)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.True(t, m.IsDiscriminant())
	assert.Equal(t, ModelDiscriminant, m.ModelType())
	assert.Equal(t, []string{"control", "treated"}, m.ClassLabels())
	assert.Equal(t, 1, m.NPcomp())

	opt := m.NOcompOpt()
	assert.GreaterOrEqual(t, opt, 0)
	assert.LessOrEqual(t, opt, 3)

	t.Run("Contribution matrix", func(t *testing.T) {
		contrib := m.BlockContributions()
		r, c := contrib.Dims()
		assert.Equal(t, 3, r)
		assert.Equal(t, 1+opt, c)

		for j := 0; j < c; j++ {
			sum := 0.0
			for i := 0; i < r; i++ {
				v := contrib.At(i, j)
				assert.False(t, math.IsNaN(v), "contribution (%d,%d)", i, j)
				assert.GreaterOrEqual(t, v, 0.0)
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-9, "column %d", j)
		}
	})

	t.Run("Selection curves", func(t *testing.T) {
		q2 := m.Q2()
		dq2 := m.DQ2()
		require.Len(t, q2, 4)
		require.Len(t, dq2, 4)
		for k := range dq2 {
			if math.IsNaN(dq2[k]) {
				continue
			}
			assert.GreaterOrEqual(t, dq2[k], -1.0, "DQ2[%d]", k)
			assert.LessOrEqual(t, dq2[k], 1.0, "DQ2[%d]", k)
		}

		curve := m.SelectionCurve()
		require.Len(t, curve, len(dq2))
		for k := range dq2 {
			assertSameValue(t, dq2[k], curve[k])
		}
	})

	t.Run("Scores and loadings", func(t *testing.T) {
		r, c := m.Scores().Dims()
		assert.Equal(t, 20, r)
		assert.Equal(t, 1+opt, c)

		names := m.ComponentNames()
		require.Len(t, names, 1+opt)
		assert.Equal(t, "p_1", names[0])
		if opt > 0 {
			assert.Equal(t, "o_1", names[1])
		}

		loads := m.Loadings()
		require.Len(t, loads, 3)
		wantCols := []int{50, 30, 10}
		for i, L := range loads {
			lr, lc := L.Dims()
			assert.Equal(t, wantCols[i], lr)
			assert.Equal(t, 1+opt, lc)
		}
	})

	t.Run("VIP", func(t *testing.T) {
		vip := m.VIP()
		require.Len(t, vip, 3)
		wantLens := []int{50, 30, 10}
		for i, scores := range vip {
			require.Len(t, scores, wantLens[i])
			for v, s := range scores {
				assert.False(t, math.IsNaN(s), "VIP block %d var %d", i, v)
				assert.GreaterOrEqual(t, s, 0.0)
			}
		}
	})

	t.Run("Explained variance", func(t *testing.T) {
		r2y := m.R2Y()
		r2x := m.R2X()
		require.Len(t, r2y, opt+1)
		require.Len(t, r2x, opt+1)
		assert.Greater(t, r2y[opt], 0.0)
		assert.LessOrEqual(t, r2y[opt], 1.0+1e-9)
	})

	t.Run("CV bookkeeping", func(t *testing.T) {
		cv := m.CV()
		require.NotNil(t, cv)
		assert.Equal(t, 5, cv.Rounds)
		assert.Equal(t, 3, cv.MaxOcomp)
		assert.Empty(t, cv.CellErrors)

		seen := make(map[int]int)
		for _, idx := range cv.TestIndex {
			seen[idx]++
		}
		assert.Len(t, seen, 20)
		for idx, count := range seen {
			assert.Equal(t, 1, count, "sample %d", idx)
		}

		r, c := m.CVScores().Dims()
		assert.Equal(t, 20, r)
		assert.Equal(t, 1, c)
	})

	t.Run("Frozen fusion state", func(t *testing.T) {
		weights := m.RVWeights()
		norms := m.FrobeniusNorms()
		require.Len(t, weights, 3)
		require.Len(t, norms, 3)
		for i := range weights {
			assert.GreaterOrEqual(t, weights[i], 0.0)
			assert.LessOrEqual(t, weights[i], 1.0)
			assert.Greater(t, norms[i], 0.0)
		}
		assert.Equal(t, []string{"proteins", "metabolites", "lipids"}, m.BlockNames())
	})

	t.Run("Dummy response echo", func(t *testing.T) {
		Y := m.Response()
		r, c := Y.Dims()
		assert.Equal(t, 20, r)
		assert.Equal(t, 2, c)
		assert.Equal(t, 1.0, Y.At(0, 0))
		assert.Equal(t, 0.0, Y.At(0, 1))
		assert.Equal(t, 0.0, Y.At(15, 0))
		assert.Equal(t, 1.0, Y.At(15, 1))
	})
}

func TestFitRegression(t *testing.T) {
	blocks, Y := regressionBlocks(t)

	cfg := DefaultConfig()
	cfg.ModelType = ModelRegression
	cfg.MaxPcomp = 1
	cfg.MaxOcomp = 2
	cfg.NFold = 4

	m, err := Fit(blocks, Y, cfg)
	require.NoError(t, err)

	assert.False(t, m.IsDiscriminant())
	assert.Nil(t, m.ClassLabels())
	assert.Nil(t, m.DQ2())
	require.Len(t, m.Q2(), 3)
	require.Equal(t, m.Q2(), m.SelectionCurve())

	// The response is close to linear in the first block, so the model
	// cross-validates well at the selected order.
	assert.Greater(t, m.Q2()[m.NOcompOpt()], 0.5)

	r, c := m.BlockContributions().Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 1+m.NOcompOpt(), c)
}

func TestFitDeterministic(t *testing.T) {
	blocks, Y := regressionBlocks(t)

	cfg := DefaultConfig()
	cfg.ModelType = ModelRegression
	cfg.MaxPcomp = 1
	cfg.MaxOcomp = 2
	cfg.CVScheme = SchemeMCCV
	cfg.NMC = 6
	cfg.CVFrac = 0.75
	cfg.RandomSeed = 7

	first, err := Fit(blocks, Y, cfg)
	require.NoError(t, err)

	cfg.Workers = 1
	second, err := Fit(blocks, Y, cfg)
	require.NoError(t, err)

	require.Equal(t, first.NOcompOpt(), second.NOcompOpt())
	require.Equal(t, first.Q2(), second.Q2())
	require.Equal(t, first.RVWeights(), second.RVWeights())
	assert.True(t, mat.Equal(first.Scores(), second.Scores()))
	assert.True(t, mat.Equal(first.BlockContributions(), second.BlockContributions()))
}

func TestFitSilentOrthogonalClamp(t *testing.T) {
	X := mat.NewDense(8, 5, []float64{
		1.2, 0.5, 2.3, 0.9, 1.8,
		0.4, 1.7, 0.8, 2.2, 0.3,
		2.6, 0.2, 1.1, 1.5, 2.0,
		0.7, 2.4, 0.6, 0.1, 1.3,
		1.9, 1.0, 2.8, 1.6, 0.5,
		0.3, 0.8, 1.4, 2.7, 2.1,
		2.2, 1.3, 0.2, 0.6, 1.0,
		1.1, 2.0, 1.9, 1.2, 0.8,
	})
	Y := mat.NewDense(8, 1, []float64{3.1, 1.4, 4.0, 0.9, 3.6, 1.8, 2.5, 2.9})
	blocks := []DataBlock{NewDataBlock("panel", X)}

	cfg := DefaultConfig()
	cfg.ModelType = ModelRegression
	cfg.MaxPcomp = 1
	cfg.MaxOcomp = 50
	cfg.NFold = 4

	m, err := Fit(blocks, Y, cfg)
	require.NoError(t, err)

	// min(n - maxPcomp, smallest block width) = min(7, 5) = 5.
	require.Len(t, m.Q2(), 6)
	assert.LessOrEqual(t, m.NOcompOpt(), 5)
}

func TestFitMCCVBScheme(t *testing.T) {
	blocks, labels := discriminantBlocks(t)

	cfg := DefaultConfig()
	cfg.MaxPcomp = 1
	cfg.MaxOcomp = 2
	cfg.CVScheme = SchemeMCCVB
	cfg.NMC = 5
	cfg.CVFrac = 0.75
	cfg.RandomSeed = 13

	m, err := FitDiscriminant(blocks, labels, cfg)
	require.NoError(t, err)

	cv := m.CV()
	assert.Equal(t, 5, cv.Rounds)
	// Per round: 2 held-out samples per class.
	assert.Len(t, cv.TestIndex, 20)
	require.NotNil(t, m.DQ2())
}

func TestFitPermutations(t *testing.T) {
	blocks, Y := regressionBlocks(t)

	cfg := DefaultConfig()
	cfg.ModelType = ModelRegression
	cfg.MaxPcomp = 1
	cfg.MaxOcomp = 2
	cfg.NFold = 4
	cfg.RandomSeed = 31

	base, err := Fit(blocks, Y, cfg)
	require.NoError(t, err)
	assert.Nil(t, base.PermutationStats())

	cfg.NPerm = 3
	m, err := Fit(blocks, Y, cfg)
	require.NoError(t, err)

	// Permutation rounds never influence the core model.
	require.Equal(t, base.Q2(), m.Q2())
	require.Equal(t, base.NOcompOpt(), m.NOcompOpt())
	assert.True(t, mat.Equal(base.BlockContributions(), m.BlockContributions()))

	stats := m.PermutationStats()
	require.Len(t, stats, 4)

	ref := stats[0]
	assert.InDelta(t, 1.0, ref.RY, 1e-9)
	assert.Equal(t, m.Q2()[m.NOcompOpt()], ref.Q2)
	assert.True(t, math.IsNaN(ref.DQ2))

	for i, s := range stats[1:] {
		if math.IsNaN(s.RY) {
			// A failed round reports NaN across the board.
			assert.True(t, math.IsNaN(s.Q2), "round %d", i+1)
			continue
		}
		assert.GreaterOrEqual(t, s.RY, 0.0, "round %d", i+1)
		assert.LessOrEqual(t, s.RY, 1.0+1e-9, "round %d", i+1)
		assert.LessOrEqual(t, s.R2Y, 1.0+1e-9, "round %d", i+1)
	}

	// Same seed, same permutation table.
	again, err := Fit(blocks, Y, cfg)
	require.NoError(t, err)
	againStats := again.PermutationStats()
	require.Len(t, againStats, len(stats))
	for i := range stats {
		assertSameValue(t, stats[i].RY, againStats[i].RY)
		assertSameValue(t, stats[i].R2Y, againStats[i].R2Y)
		assertSameValue(t, stats[i].Q2, againStats[i].Q2)
		assertSameValue(t, stats[i].DQ2, againStats[i].DQ2)
	}
}

// assertSameValue compares two floats, treating NaN as equal to NaN.
func assertSameValue(t *testing.T, want, got float64) {
	t.Helper()
	if math.IsNaN(want) {
		assert.True(t, math.IsNaN(got), "want NaN, got %g", got)
		return
	}
	assert.Equal(t, want, got)
}

func TestFitValidation(t *testing.T) {
	blocks, labels := discriminantBlocks(t)

	t.Run("row count mismatch across blocks", func(t *testing.T) {
		bad := make([]DataBlock, len(blocks))
		copy(bad, blocks)
		r, c := bad[1].Data.Dims()
		bad[1] = NewDataBlock(bad[1].Name, mat.DenseCopyOf(bad[1].Data.Slice(0, r-1, 0, c)))

		_, err := FitDiscriminant(bad, labels, DefaultConfig())
		require.Error(t, err)
		var verr *coplserrors.ValidationError
		require.True(t, coplserrors.As(err, &verr))
		assert.Equal(t, "blocks", verr.ParamName)
	})

	t.Run("no blocks", func(t *testing.T) {
		_, err := FitDiscriminant(nil, labels, DefaultConfig())
		require.Error(t, err)
		assert.True(t, coplserrors.Is(err, coplserrors.ErrEmptyData))
	})

	t.Run("nil response", func(t *testing.T) {
		_, err := Fit(blocks, nil, DefaultConfig())
		require.Error(t, err)
		assert.True(t, coplserrors.Is(err, coplserrors.ErrEmptyData))
	})

	t.Run("response row mismatch", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ModelType = ModelRegression
		Y := mat.NewDense(19, 1, nil)

		_, err := Fit(blocks, Y, cfg)
		require.Error(t, err)
		var derr *coplserrors.DimensionError
		require.True(t, coplserrors.As(err, &derr))
		assert.Equal(t, 0, derr.Axis)
	})

	t.Run("maxPcomp beyond response width", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ModelType = ModelRegression
		cfg.MaxPcomp = 2
		Y := mat.NewDense(20, 1, nil)
		for i := 0; i < 20; i++ {
			Y.Set(i, 0, float64(i))
		}

		_, err := Fit(blocks, Y, cfg)
		require.Error(t, err)
		var verr *coplserrors.ValidationError
		require.True(t, coplserrors.As(err, &verr))
		assert.Equal(t, "maxPcomp", verr.ParamName)
	})

	t.Run("per-block kernel count mismatch", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BlockKernels = []kernel.Config{
			{Family: kernel.FamilyLinear},
			{Family: kernel.FamilyLinear},
		}

		_, err := FitDiscriminant(blocks, labels, cfg)
		require.Error(t, err)
		var verr *coplserrors.ValidationError
		require.True(t, coplserrors.As(err, &verr))
		assert.Equal(t, "blockKernels", verr.ParamName)
	})

	t.Run("single label class", func(t *testing.T) {
		uniform := make([]string, 20)
		for i := range uniform {
			uniform[i] = "control"
		}

		_, err := FitDiscriminant(blocks, uniform, DefaultConfig())
		require.Error(t, err)
	})

	t.Run("class below two samples", func(t *testing.T) {
		skewed := make([]string, 20)
		for i := range skewed {
			skewed[i] = "control"
		}
		skewed[19] = "treated"

		_, err := FitDiscriminant(blocks, skewed, DefaultConfig())
		require.Error(t, err)
		var verr *coplserrors.ValidationError
		require.True(t, coplserrors.As(err, &verr))
		assert.Equal(t, "response", verr.ParamName)
	})

	t.Run("non-indicator discriminant response", func(t *testing.T) {
		cfg := DefaultConfig()
		Y := mat.NewDense(20, 2, nil)
		for i := 0; i < 20; i++ {
			Y.Set(i, 0, 0.5)
			Y.Set(i, 1, float64(i))
		}

		_, err := Fit(blocks, Y, cfg)
		require.Error(t, err)
		var verr *coplserrors.ValidationError
		require.True(t, coplserrors.As(err, &verr))
		assert.Equal(t, "response", verr.ParamName)
	})
}

func TestFitDoesNotAliasCallerData(t *testing.T) {
	blocks, Y := regressionBlocks(t)

	cfg := DefaultConfig()
	cfg.ModelType = ModelRegression
	cfg.MaxPcomp = 1
	cfg.MaxOcomp = 1
	cfg.NFold = 4

	m, err := Fit(blocks, Y, cfg)
	require.NoError(t, err)

	before := m.Q2()

	// Scribbling over the caller's matrices must not reach the model.
	blocks[0].Data.Set(0, 0, 1e9)
	Y.Set(0, 0, -1e9)

	pred, err := m.Predict(trainingCopies(t, m))
	require.NoError(t, err)
	require.NotNil(t, pred)
	require.Equal(t, before, m.Q2())
	assert.Equal(t, 4.50, m.Response().At(0, 0))
}

// trainingCopies rebuilds prediction inputs from the model's own frozen
// training blocks.
func trainingCopies(t *testing.T, m *ConsensusModel) []DataBlock {
	t.Helper()
	names := m.BlockNames()
	out := make([]DataBlock, len(names))
	for i, name := range names {
		out[i] = NewDataBlock(name, mat.DenseCopyOf(m.blocks[i].Data))
	}
	return out
}
