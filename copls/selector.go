package copls

// improvementThreshold is the minimum gain in the selection metric that
// justifies one more orthogonal component. The value is the method's
// documented heuristic, not a tunable.
const improvementThreshold = 0.01

// selectComponents scans the cross-validated selection curve greedily.
// curve[k] is the metric (DQ2 for discriminant models, Q2 otherwise)
// obtained with k orthogonal components. The scan starts at zero
// components and advances while the next entry improves on the current one
// by more than the threshold; the first tie, plateau, drop or undefined
// entry stops it. A NaN comparison is false, so a fully failed curve entry
// terminates the scan at the last defined count.
//
// The result is always within [0, len(curve)-1].
func selectComponents(curve []float64) int {
	k := 0
	for k < len(curve)-1 && curve[k+1]-curve[k] > improvementThreshold {
		k++
	}
	return k
}
