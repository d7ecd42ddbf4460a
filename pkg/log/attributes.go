// Standard attribute keys for forest training and prediction logs. Using
// these keys keeps log records filterable across components.

package log

// Model and operation context.
const (
	// ComponentKey identifies which package is performing the operation.
	// Examples: "forest", "tree", "dataframe"
	ComponentKey = "component"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "oob", "reconstruct"
	OperationKey = "operation"
)

// Data shape and training characteristics.
const (
	// SamplesKey is the number of rows in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns in the dataset.
	FeaturesKey = "data.features"

	// TreeCountKey is the number of trees grown or queried.
	TreeCountKey = "forest.trees"

	// SeedKey is the random seed of the forest or tree.
	SeedKey = "forest.seed"

	// NodeCountKey is the number of nodes in a grown tree.
	NodeCountKey = "tree.nodes"

	// DepthKey is the depth reached by a grown tree.
	DepthKey = "tree.depth"
)

// Performance metrics.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// OOBErrorKey records the out-of-bag mean squared error of a fitted forest.
	OOBErrorKey = "metric.oob_error"
)
