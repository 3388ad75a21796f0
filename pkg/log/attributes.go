// Standard attribute keys for consensus modeling operations.
//
// Keys follow a hierarchical naming convention ("block.name", "cv.fold") so
// structured log consumers can filter on a whole category. Using these
// constants instead of ad-hoc strings keeps field names consistent across
// the fitting, cross-validation, permutation and prediction stages.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the model type emitting the record.
	// Examples: "ConsensusModel", "KOPLS", "Scaler"
	ModelNameKey = "model.name"

	// ModelTypeKey distinguishes discriminant analysis from regression.
	// Values: "da", "reg"
	ModelTypeKey = "model.type"

	// OperationKey names the operation being performed.
	// Standard values: "fit", "predict", "transform", "cross_validate",
	// "permute", "fuse"
	OperationKey = "ml.operation"

	// ComponentKey identifies the package or subsystem emitting the record.
	// Examples: "kernel.fusion", "copls.crossval", "kopls.engine"
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline phase.
	PhaseKey = "ml.phase"
)

// Data and block shape.
const (
	// SamplesKey is the number of observations shared by all blocks.
	SamplesKey = "data.samples"

	// BlocksKey is the number of data blocks entering the fusion.
	BlocksKey = "data.blocks"

	// BlockNameKey names one block ("transcriptomics", "NMR", ...).
	BlockNameKey = "block.name"

	// VariablesKey is the number of variables in one block.
	VariablesKey = "block.variables"

	// ResponsesKey is the number of response columns after dummy coding.
	ResponsesKey = "data.responses"
)

// Kernel and fusion.
const (
	// KernelFamilyKey is the kernel family applied to a block.
	// Values: "linear", "polynomial", "gaussian"
	KernelFamilyKey = "kernel.family"

	// KernelWeightKey is the rescaled RV weight assigned to a block kernel.
	KernelWeightKey = "kernel.rv_weight"

	// FrobeniusNormKey is the Frobenius norm a block kernel was divided by.
	FrobeniusNormKey = "kernel.frobenius_norm"
)

// Component counts.
const (
	// PredictiveKey is the number of predictive components.
	PredictiveKey = "model.predictive_components"

	// OrthogonalKey is the number of orthogonal components.
	OrthogonalKey = "model.orthogonal_components"
)

// Cross-validation progress.
const (
	// SchemeKey is the partitioning scheme. Values: "nfold", "mccv", "mccvb"
	SchemeKey = "cv.scheme"

	// FoldKey is the fold index inside one cross-validation round.
	FoldKey = "cv.fold"

	// RoundKey is the cross-validation round (one candidate component count).
	RoundKey = "cv.round"

	// WorkersKey is the number of goroutines dispatched for a stage.
	WorkersKey = "cv.workers"

	// CellsKey is the total number of (round, fold) cells in a grid.
	CellsKey = "cv.cells"

	// FailedCellsKey is the number of cells that failed and propagate as
	// missing predictions.
	FailedCellsKey = "cv.failed_cells"
)

// Quality metrics.
const (
	// Q2Key is the cross-validated predictive ability.
	Q2Key = "metrics.q2"

	// DQ2Key is the discriminant Q2 used for model-order selection in
	// discriminant analysis.
	DQ2Key = "metrics.dq2"

	// R2YKey is the fraction of response variance explained.
	R2YKey = "metrics.r2y"

	// R2XKey is the fraction of consensus kernel variance explained.
	R2XKey = "metrics.r2x"

	// PressKey is the predictive residual sum of squares.
	PressKey = "metrics.press"
)

// Permutation testing.
const (
	// PermutationKey is the index of one permutation draw. Index 0 is the
	// unpermuted reference.
	PermutationKey = "perm.index"

	// PermutationCountKey is the total number of permutation draws.
	PermutationCountKey = "perm.count"
)

// Performance.
const (
	// DurationMsKey records execution time in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// DurationSecondsKey records execution time in seconds, for stages that
	// run minutes.
	DurationSecondsKey = "perf.duration_seconds"
)

// Error and warning context.
const (
	// ErrorCodeKey carries a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey names the error type. Examples: "ValidationError",
	// "ConvergenceError"
	ErrorTypeKey = "error.type"

	// SuggestionKey carries a hint for resolving the condition.
	// Example: "reduce the requested orthogonal component count"
	SuggestionKey = "error.suggestion"
)

// Configuration.
const (
	// RandomSeedKey records the seed driving stochastic partitioning and
	// permutation draws.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit           = "fit"
	OperationPredict       = "predict"
	OperationTransform     = "transform"
	OperationCrossValidate = "cross_validate"
	OperationPermute       = "permute"
	OperationFuse          = "fuse"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
	PhasePermutation   = "permutation"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorSingularMatrix    = "SINGULAR_MATRIX"
	ErrorCellFailure       = "CELL_FAILURE"
)
