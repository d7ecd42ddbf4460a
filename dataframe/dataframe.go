// Package dataframe implements the columnar feature store consumed by the
// tree engine. It owns raw feature values in column-major layout, the
// outcome vector, and per-column metadata: the categorical column set, the
// monotonic-constraint vector, linear-feature columns for ridge leaves,
// feature sampling weight pools, and optional group memberships.
//
// A DataFrame is immutable after construction and safe for concurrent reads.
package dataframe

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/watanabe-lab/honestrf/core/parallel"
	"github.com/watanabe-lab/honestrf/pkg/errors"
)

// Threshold below which ingest is done sequentially.
const parallelThreshold = 1000

// DataFrame is a read-only columnar feature store.
type DataFrame struct {
	cols    [][]float64 // cols[j][i] is feature j of row i
	outcome []float64
	nRows   int
	nCols   int

	catCols []int
	catSet  map[int]bool
	numCols []int // non-categorical columns
	linCols []int // columns entering ridge-leaf regressions

	monotonicConstraints []int
	monotoneAvg          bool

	featureWeights          []float64
	featureWeightVariables  []int
	deepWeights             []float64
	deepWeightVariables     []int

	groups []int
	hasNA  bool
}

// Option configures a DataFrame under construction.
type Option func(*config)

type config struct {
	catCols     []int
	monotonic   []int
	monotoneAvg bool
	groups      []int
	weights     []float64
	deepWeights []float64
	linCols     []int
}

// WithCategorical marks the given columns as categorical. Categorical values
// are compared by equality when splitting.
func WithCategorical(cols ...int) Option {
	return func(c *config) { c.catCols = append(c.catCols, cols...) }
}

// WithMonotonicConstraints sets the per-feature monotonicity directions:
// -1 non-increasing, 0 unconstrained, +1 non-decreasing. The vector must
// have one entry per feature column.
func WithMonotonicConstraints(constraints []int) Option {
	return func(c *config) { c.monotonic = constraints }
}

// WithMonotoneAvg makes monotonic feasibility checks apply to the averaging
// partition means in addition to the splitting means.
func WithMonotoneAvg() Option {
	return func(c *config) { c.monotoneAvg = true }
}

// WithGroups attaches a group membership id (>= 1) to every row, enabling
// out-of-group index computation. A DataFrame without groups reports a zero
// sentinel at index 0.
func WithGroups(groups []int) Option {
	return func(c *config) { c.groups = groups }
}

// WithFeatureWeights sets the primary per-feature sampling weight pool used
// for splits above the interaction depth. One weight per column; columns
// with zero weight are never sampled.
func WithFeatureWeights(weights []float64) Option {
	return func(c *config) { c.weights = weights }
}

// WithDeepFeatureWeights sets the sampling weight pool used for splits at or
// below the interaction depth.
func WithDeepFeatureWeights(weights []float64) Option {
	return func(c *config) { c.deepWeights = weights }
}

// WithLinearCols restricts the columns entering ridge-leaf regressions.
// Default is every non-categorical column.
func WithLinearCols(cols ...int) Option {
	return func(c *config) { c.linCols = cols }
}

// New builds a DataFrame from an n x d feature matrix and an outcome vector
// of length n. Missing feature values are represented as NaN and detected at
// ingest.
func New(X mat.Matrix, y []float64, opts ...Option) (*DataFrame, error) {
	nRows, nCols := X.Dims()
	if nRows == 0 || nCols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataframe.New")
	}
	if len(y) != nRows {
		return nil, errors.NewDimensionError("dataframe.New", nRows, len(y), 0)
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	df := &DataFrame{
		cols:    make([][]float64, nCols),
		outcome: make([]float64, nRows),
		nRows:   nRows,
		nCols:   nCols,
		catSet:  make(map[int]bool),
	}
	copy(df.outcome, y)

	for j := 0; j < nCols; j++ {
		df.cols[j] = make([]float64, nRows)
	}
	parallel.ParallelizeWithThreshold(nRows, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < nCols; j++ {
				df.cols[j][i] = X.At(i, j)
			}
		}
	})
	for j := 0; j < nCols && !df.hasNA; j++ {
		for i := 0; i < nRows; i++ {
			if math.IsNaN(df.cols[j][i]) {
				df.hasNA = true
				break
			}
		}
	}

	for _, c := range cfg.catCols {
		if c < 0 || c >= nCols {
			return nil, errors.NewValidationError("categoricalCols", "column out of range", c)
		}
		if !df.catSet[c] {
			df.catSet[c] = true
			df.catCols = append(df.catCols, c)
		}
	}
	for j := 0; j < nCols; j++ {
		if !df.catSet[j] {
			df.numCols = append(df.numCols, j)
		}
	}

	if cfg.monotonic != nil {
		if len(cfg.monotonic) != nCols {
			return nil, errors.NewDimensionError("monotonicConstraints", nCols, len(cfg.monotonic), 1)
		}
		for j, m := range cfg.monotonic {
			if m < -1 || m > 1 {
				return nil, errors.NewValidationError("monotonicConstraints", "direction must be -1, 0 or 1", m)
			}
			if m != 0 && df.catSet[j] {
				return nil, errors.NewValidationError("monotonicConstraints", "categorical column cannot carry a monotonic constraint", j)
			}
		}
		df.monotonicConstraints = append([]int(nil), cfg.monotonic...)
	} else {
		df.monotonicConstraints = make([]int, nCols)
	}
	df.monotoneAvg = cfg.monotoneAvg

	if cfg.groups != nil {
		if len(cfg.groups) != nRows {
			return nil, errors.NewDimensionError("groups", nRows, len(cfg.groups), 0)
		}
		for _, g := range cfg.groups {
			if g < 1 {
				return nil, errors.NewValidationError("groups", "group ids must be >= 1", g)
			}
		}
		df.groups = append([]int(nil), cfg.groups...)
	} else {
		// Zero sentinel at index 0 signals "no groups configured".
		df.groups = make([]int, nRows)
	}

	var err error
	df.featureWeights, df.featureWeightVariables, err = normalizeWeights("featureWeights", cfg.weights, nCols)
	if err != nil {
		return nil, err
	}
	df.deepWeights, df.deepWeightVariables, err = normalizeWeights("deepFeatureWeights", cfg.deepWeights, nCols)
	if err != nil {
		return nil, err
	}

	if cfg.linCols != nil {
		for _, c := range cfg.linCols {
			if c < 0 || c >= nCols {
				return nil, errors.NewValidationError("linearCols", "column out of range", c)
			}
			if df.catSet[c] {
				return nil, errors.NewValidationError("linearCols", "categorical column cannot be a linear feature", c)
			}
		}
		df.linCols = append([]int(nil), cfg.linCols...)
	} else {
		df.linCols = append([]int(nil), df.numCols...)
	}
	return df, nil
}

// normalizeWeights keeps the positive-weight columns and their weights,
// aligned index-for-index. A nil input means a uniform pool over every
// column.
func normalizeWeights(name string, weights []float64, nCols int) ([]float64, []int, error) {
	if weights == nil {
		w := make([]float64, nCols)
		vars := make([]int, nCols)
		for j := 0; j < nCols; j++ {
			w[j] = 1.0
			vars[j] = j
		}
		return w, vars, nil
	}
	if len(weights) != nCols {
		return nil, nil, errors.NewDimensionError(name, nCols, len(weights), 1)
	}
	var w []float64
	var vars []int
	for j, wj := range weights {
		if wj < 0 || math.IsNaN(wj) {
			return nil, nil, errors.NewValidationError(name, "weights must be non-negative", wj)
		}
		if wj > 0 {
			w = append(w, wj)
			vars = append(vars, j)
		}
	}
	if len(vars) == 0 {
		return nil, nil, errors.NewValidationError(name, "at least one positive weight required", weights)
	}
	return w, vars, nil
}

// NumRows returns the number of rows.
func (df *DataFrame) NumRows() int { return df.nRows }

// NumColumns returns the number of feature columns.
func (df *DataFrame) NumColumns() int { return df.nCols }

// Point returns the feature value at (row, col). Missing values are NaN.
func (df *DataFrame) Point(row, col int) float64 { return df.cols[col][row] }

// OutcomePoint returns the outcome value of a row.
func (df *DataFrame) OutcomePoint(row int) float64 { return df.outcome[row] }

// Outcome returns the full outcome vector. Callers must not modify it.
func (df *DataFrame) Outcome() []float64 { return df.outcome }

// Column returns the full value vector of a feature column. Callers must not
// modify it.
func (df *DataFrame) Column(col int) []float64 { return df.cols[col] }

// AllFeatureData returns the column-major feature values. Callers must not
// modify them.
func (df *DataFrame) AllFeatureData() [][]float64 { return df.cols }

// LinObsData returns the linear-feature vector of a row, in linear-column
// order, without the intercept term.
func (df *DataFrame) LinObsData(row int) []float64 {
	obs := make([]float64, len(df.linCols))
	for i, c := range df.linCols {
		obs[i] = df.cols[c][row]
	}
	return obs
}

// NumLinearFeatures returns the number of columns entering ridge-leaf
// regressions.
func (df *DataFrame) NumLinearFeatures() int { return len(df.linCols) }

// LinCols returns the columns entering ridge-leaf regressions.
func (df *DataFrame) LinCols() []int { return df.linCols }

// PartitionMean returns the mean outcome over an index set, or NaN for an
// empty set.
func (df *DataFrame) PartitionMean(idx []int) float64 {
	if len(idx) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, i := range idx {
		sum += df.outcome[i]
	}
	return sum / float64(len(idx))
}

// IsCategorical reports whether a column is categorical.
func (df *DataFrame) IsCategorical(col int) bool { return df.catSet[col] }

// CatCols returns the categorical column ids.
func (df *DataFrame) CatCols() []int { return df.catCols }

// NumCols returns the non-categorical column ids.
func (df *DataFrame) NumCols() []int { return df.numCols }

// MonotonicConstraints returns the per-feature monotonicity directions.
func (df *DataFrame) MonotonicConstraints() []int { return df.monotonicConstraints }

// MonotoneAvg reports whether monotonic bounds also apply to averaging-set
// means.
func (df *DataFrame) MonotoneAvg() bool { return df.monotoneAvg }

// FeatureWeights returns the primary sampling pool: positive weights and the
// column ids they belong to, aligned index-for-index.
func (df *DataFrame) FeatureWeights() ([]float64, []int) {
	return df.featureWeights, df.featureWeightVariables
}

// DeepFeatureWeights returns the sampling pool used at or below the
// interaction depth.
func (df *DataFrame) DeepFeatureWeights() ([]float64, []int) {
	return df.deepWeights, df.deepWeightVariables
}

// Groups returns the group membership vector. A zero at index 0 signals that
// no groups are configured.
func (df *DataFrame) Groups() []int { return df.groups }

// HasGroups reports whether group memberships are configured.
func (df *DataFrame) HasGroups() bool { return len(df.groups) > 0 && df.groups[0] != 0 }

// HasNA reports whether any feature value is missing.
func (df *DataFrame) HasNA() bool { return df.hasNA }
