package copls

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectComponents(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name  string
		curve []float64
		want  int
	}{
		{"steady improvement runs to the end", []float64{0.10, 0.30, 0.55, 0.70}, 3},
		{"gain above the threshold advances", []float64{0.50, 0.52}, 1},
		{"plateau stops the scan", []float64{0.50, 0.505, 0.90}, 0},
		{"improvement then plateau", []float64{0.10, 0.40, 0.405}, 1},
		{"drop stops the scan", []float64{0.60, 0.30, 0.90}, 0},
		{"undefined entry stops the scan", []float64{0.30, nan, 0.90}, 0},
		{"improvement then undefined", []float64{0.10, 0.40, nan}, 1},
		{"all undefined", []float64{nan, nan, nan}, 0},
		{"single entry", []float64{0.42}, 0},
		{"empty curve", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectComponents(tt.curve))
		})
	}
}

func TestSelectComponentsStaysInRange(t *testing.T) {
	curves := [][]float64{
		{0.0, 0.2, 0.4, 0.6, 0.8},
		{-0.5, -0.1, 0.4},
		{1.0, 1.0, 1.0},
	}
	for _, curve := range curves {
		got := selectComponents(curve)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, len(curve)-1)
	}
}
