// Package consensusopls provides consensus orthogonal projections to
// latent structures (consensus OPLS) for multi-block omics data in Go.
//
// Multiple data blocks measured on the same samples are combined through
// RV-weighted kernel fusion into a single consensus kernel, on which a
// kernel-OPLS model with cross-validated model-order selection is fitted.
// The fitted model decomposes back into per-block contributions, loadings
// and variable importances, and supports permutation validation and
// prediction on new samples.
//
// # Features
//
//   - Linear, polynomial and gaussian block kernels with per-block override
//   - Modified-RV kernel fusion with Frobenius normalization
//   - Kernel-OPLS fitting with orthogonal signal deflation
//   - N-fold and Monte Carlo (optionally class-balanced) cross-validation
//   - Greedy model-order selection on the Q2 or discriminant DQ2 curve
//   - Block contribution, loading and VIP decomposition
//   - Permutation testing with seeded, reproducible draws
//   - Prediction on new blocks under frozen fusion weights
//
// # Quick Start
//
// Fitting a discriminant model on two blocks:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/sib-swiss/ConsensusOPLS/copls"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    blocks := []copls.DataBlock{
//	        copls.NewDataBlock("proteins", proteinData),
//	        copls.NewDataBlock("metabolites", metaboliteData),
//	    }
//	    labels := []string{"control", "control", "treated", "treated"}
//
//	    cfg := copls.DefaultConfig()
//	    cfg.MaxOcomp = 3
//
//	    model, err := copls.FitDiscriminant(blocks, labels, cfg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    fmt.Println(model)
//	    fmt.Println(mat.Formatted(model.BlockContributions()))
//	}
//
// # Packages
//
// The library is organized into several packages:
//
//   - copls: the consensus pipeline, model and prediction entry points
//   - kernel: block kernels, Frobenius normalization and RV-weighted fusion
//   - kopls: the kernel-OPLS engine with orthogonal deflation
//   - metrics: PRESS, Q2, discriminant DQ2, R2 and RMSEP
//   - preprocessing: response scaling and label dummy coding
//   - core/model: estimator interfaces and fitted-state tracking
//   - core/parallel: bounded worker pools for grid and block fan-out
//   - pkg/errors: the error taxonomy, warnings and panic recovery
//   - pkg/log: structured slog-based logging with pipeline attributes
//
// # Reproducibility
//
// Every stochastic step (Monte Carlo partitioning, permutation draws)
// derives from the configured RandomSeed through independent PCG streams,
// so a fit with the same data, configuration and seed returns an identical
// model for any worker count.
package consensusopls
