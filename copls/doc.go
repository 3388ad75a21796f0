// Package copls implements consensus orthogonal projections to latent
// structures for multi-block data.
//
// Each data block measures the same samples on its own variable set. The
// pipeline builds one kernel per block, weights the blocks by the modified
// RV coefficient between each normalized kernel and the response
// similarity, fuses them into a consensus kernel, and fits a kernel-OPLS
// model on it. Cross-validation over orthogonal component counts drives a
// greedy model-order selection, the fitted model is decomposed into
// per-block contributions, loadings and variable importances, and an
// optional permutation test builds empirical null distributions for the
// quality metrics.
//
// Fit and FitDiscriminant return an immutable ConsensusModel assembled
// after every stage has completed. The model freezes everything prediction
// needs: per-block kernel configurations, Frobenius norms, RV weights and
// the full deflation history, so Predict reproduces the training-time
// transformations exactly on new samples.
//
// Basic discriminant use:
//
//	cfg := copls.DefaultConfig()
//	cfg.MaxOcomp = 3
//	model, err := copls.FitDiscriminant(blocks, labels, cfg)
//	if err != nil {
//	    ...
//	}
//	pred, err := model.Predict(newBlocks)
package copls
