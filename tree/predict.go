package tree

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/watanabe-lab/honestrf/core/parallel"
	"github.com/watanabe-lab/honestrf/dataframe"
	pkgerrors "github.com/watanabe-lab/honestrf/pkg/errors"
)

// PredictOptions selects the optional prediction outputs and the
// leaf-restriction behavior used for out-of-bag-style scoring.
type PredictOptions struct {
	// TerminalNodes records the id of the leaf each row lands in.
	TerminalNodes bool
	// Coefficients records each row's ridge coefficient vector (intercept
	// last). Only meaningful in linear mode.
	Coefficients bool
	// ExcludeRows removes the given training rows from each leaf's
	// averaging set before the leaf mean is recomputed, so a row being
	// scored never contributes to its own prediction.
	ExcludeRows []int
	// NodesizeStrictAvg is the minimum restricted averaging size; a leaf
	// falls back to its stored mean below it. Zero means 1.
	NodesizeStrictAvg int
	// NumWorkers bounds the row-traversal workers. Non-positive uses one
	// worker per CPU core.
	NumWorkers int
}

// Prediction is the output of Tree.Predict. TerminalNodes and Coefficients
// are nil unless requested.
type Prediction struct {
	Values        []float64
	TerminalNodes []int
	Coefficients  *mat.Dense
}

// Predict routes every row of x down the tree and evaluates the leaf it
// lands in. x must have the same column layout as the training frame; df
// supplies the column semantics and, for restricted or ridge leaves, the
// training rows. Traversal is read-only and safe for concurrent callers.
func (t *Tree) Predict(x mat.Matrix, df *dataframe.DataFrame, opts *PredictOptions) (*Prediction, error) {
	if opts == nil {
		opts = &PredictOptions{}
	}
	nRows, nCols := x.Dims()
	if nCols != df.NumColumns() {
		return nil, pkgerrors.NewDimensionError("Predict", df.NumColumns(), nCols, 1)
	}

	if t.params.Linear {
		if err := t.ensureRidgeCoefficients(df); err != nil {
			return nil, err
		}
	}
	var exclude map[int]bool
	if len(opts.ExcludeRows) > 0 {
		t.ensureLeafIndexSets(df)
		exclude = make(map[int]bool, len(opts.ExcludeRows))
		for _, row := range opts.ExcludeRows {
			exclude[row] = true
		}
	}

	pred := &Prediction{Values: make([]float64, nRows)}
	if opts.TerminalNodes {
		pred.TerminalNodes = make([]int, nRows)
	}
	if opts.Coefficients && t.params.Linear {
		pred.Coefficients = mat.NewDense(nRows, df.NumLinearFeatures()+1, nil)
	}

	errs := make([]error, nRows)
	parallel.ParallelizeWithWorkers(nRows, opts.NumWorkers, func(start, end int) {
		row := make([]float64, nCols)
		for r := start; r < end; r++ {
			for c := 0; c < nCols; c++ {
				row[c] = x.At(r, c)
			}
			leaf, err := t.routeRow(row, df)
			if err != nil {
				errs[r] = err
				continue
			}
			pred.Values[r] = t.leafValue(leaf, row, df, exclude, opts.NodesizeStrictAvg)
			if pred.TerminalNodes != nil {
				pred.TerminalNodes[r] = leaf.id
			}
			if pred.Coefficients != nil {
				pred.Coefficients.SetRow(r, leaf.ridgeCoefficients)
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return pred, nil
}

// routeRow walks one observation from the root to its terminal leaf.
// Missing values follow the split's stored default direction; an unresolved
// direction is a structural defect in the tree, not a data condition.
func (t *Tree) routeRow(row []float64, df *dataframe.DataFrame) (*Node, error) {
	n := t.root
	for !n.IsLeaf() {
		v := row[n.splitFeature]
		switch {
		case math.IsNaN(v):
			switch n.naDefaultDirection {
			case NALeft:
				n = n.left
			case NARight:
				n = n.right
			default:
				return nil, pkgerrors.Wrapf(pkgerrors.ErrUnresolvedNADirection, "split on feature %d", n.splitFeature)
			}
		case df.IsCategorical(n.splitFeature) && v == n.splitValue,
			!df.IsCategorical(n.splitFeature) && v < n.splitValue:
			n = n.left
		default:
			n = n.right
		}
	}
	return n, nil
}

// leafValue evaluates a terminal leaf for one observation.
func (t *Tree) leafValue(leaf *Node, row []float64, df *dataframe.DataFrame, exclude map[int]bool, strictAvg int) float64 {
	if t.params.Linear {
		v := 0.0
		for i, c := range df.LinCols() {
			v += leaf.ridgeCoefficients[i] * row[c]
		}
		return v + leaf.ridgeCoefficients[len(leaf.ridgeCoefficients)-1]
	}
	if exclude == nil {
		return leaf.predictWeight
	}

	if strictAvg < 1 {
		strictAvg = 1
	}
	sum := 0.0
	kept := 0
	for _, idx := range leaf.averagingIndex {
		if exclude[idx] {
			continue
		}
		sum += df.OutcomePoint(idx)
		kept++
	}
	if kept < strictAvg {
		return leaf.predictWeight
	}
	return sum / float64(kept)
}

// ensureRidgeCoefficients solves any leaf whose coefficient vector is
// missing, repopulating leaf index sets first on reconstructed trees.
func (t *Tree) ensureRidgeCoefficients(df *dataframe.DataFrame) error {
	t.lazyMu.Lock()
	defer t.lazyMu.Unlock()
	if !t.leavesBack {
		t.routeDown(t.root, t.averagingIndex, t.splittingIndex, df)
		t.leavesBack = true
	}
	return t.solveLeafCoefficients(t.root, df)
}

func (t *Tree) solveLeafCoefficients(n *Node, df *dataframe.DataFrame) error {
	if n.IsLeaf() {
		if n.ridgeCoefficients != nil {
			return nil
		}
		coef, err := solveRidgeCoefficients(df, n.averagingIndex, t.params.OverfitPenalty)
		if err != nil {
			return err
		}
		n.ridgeCoefficients = coef
		return nil
	}
	if err := t.solveLeafCoefficients(n.left, df); err != nil {
		return err
	}
	return t.solveLeafCoefficients(n.right, df)
}
