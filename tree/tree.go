// Package tree implements the honest regression-tree engine: recursive
// partitioning over disjoint splitting and averaging subsamples,
// multi-strategy split selection (CART, ridge, missing-value imputation,
// monotonic constraints), prediction traversal, out-of-bag index
// computation, and an exact-round-trip flattened representation.
//
// Growing a tree is strictly single-threaded. A built tree is immutable
// except for lazy ridge-coefficient population at leaves, and its prediction
// traversal is safe for concurrent callers.
package tree

import (
	"math/rand"
	"sync"

	"github.com/watanabe-lab/honestrf/dataframe"
)

// Tree is an honest decision tree. It owns its root node, copies of the two
// index sets it was grown with, the hyperparameter snapshot, and the
// per-tree random seed.
type Tree struct {
	params Params
	seed   int64

	root           *Node
	averagingIndex []int
	splittingIndex []int

	hasNA     bool
	nodeCount int

	// Guards lazy leaf index-set and ridge-coefficient population on
	// reconstructed trees.
	lazyMu     sync.Mutex
	leavesBack bool // leaf index sets populated
}

// Grow builds a tree from the feature store, a splitting index set, an
// averaging index set, and a seed. The index sets are copied; the returned
// tree does not alias the caller's slices. Configuration errors abort before
// any recursion begins.
func Grow(df *dataframe.DataFrame, params Params, splitIdx, avgIdx []int, seed int64) (*Tree, error) {
	if err := params.validate(df, splitIdx, avgIdx); err != nil {
		return nil, err
	}

	t := &Tree{
		params:         params.normalized(len(splitIdx)),
		seed:           seed,
		averagingIndex: append([]int(nil), avgIdx...),
		splittingIndex: append([]int(nil), splitIdx...),
		hasNA:          df.HasNA(),
		leavesBack:     true,
	}

	rng := rand.New(rand.NewSource(seed))

	var lin *linearState
	if t.params.Linear {
		lin = newLinearState(df, t.splittingIndex)
	}

	monotoneSplits := false
	for _, c := range df.MonotonicConstraints() {
		if c != 0 {
			monotoneSplits = true
			break
		}
	}
	mono := newMonotonicInfo(df.MonotonicConstraints(), df.MonotoneAvg())

	t.root = &Node{}
	err := t.recursivePartition(t.root, t.averagingIndex, t.splittingIndex, df, rng, 0, lin, monotoneSplits, mono)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Params returns the hyperparameter snapshot the tree was grown with.
func (t *Tree) Params() Params { return t.params }

// Seed returns the tree's random seed.
func (t *Tree) Seed() int64 { return t.seed }

// NodeCount returns the number of nodes in the tree.
func (t *Tree) NodeCount() int { return t.nodeCount }

// AveragingIndex returns the tree's averaging index set. OOB computation
// sorts it in place; callers must not rely on its order.
func (t *Tree) AveragingIndex() []int { return t.averagingIndex }

// SplittingIndex returns the tree's splitting index set. OOB computation
// sorts it in place; callers must not rely on its order.
func (t *Tree) SplittingIndex() []int { return t.splittingIndex }

// nextNodeID assigns ids in construction order: children are numbered
// before the split node that owns them.
func (t *Tree) nextNodeID() int {
	id := t.nodeCount
	t.nodeCount++
	return id
}

// ensureLeafIndexSets repopulates per-leaf index sets on a reconstructed
// tree by routing the tree-level index sets down the stored splits. Grown
// trees already carry them. Safe for concurrent callers.
func (t *Tree) ensureLeafIndexSets(df *dataframe.DataFrame) {
	t.lazyMu.Lock()
	defer t.lazyMu.Unlock()
	if t.leavesBack {
		return
	}
	t.routeDown(t.root, t.averagingIndex, t.splittingIndex, df)
	t.leavesBack = true
}

func (t *Tree) routeDown(n *Node, avgIdx, splitIdx []int, df *dataframe.DataFrame) {
	if n.IsLeaf() {
		n.averagingIndex = avgIdx
		n.splittingIndex = splitIdx
		return
	}
	categorical := df.IsCategorical(n.splitFeature)
	avgL, avgR, _, _ := partitionIndexSet(df, avgIdx, n.splitFeature, n.splitValue, n.naDefaultDirection, categorical, t.hasNA)
	splL, splR, _, _ := partitionIndexSet(df, splitIdx, n.splitFeature, n.splitValue, n.naDefaultDirection, categorical, t.hasNA)
	t.routeDown(n.left, avgL, splL, df)
	t.routeDown(n.right, avgR, splR, df)
}
