package tree

import (
	"math"
	"math/rand"

	"github.com/watanabe-lab/honestrf/dataframe"
)

// recursivePartition is the tree-growth state machine. It mutates node into
// a leaf or a split and, for a split, recurses on two fresh children.
//
// Stopping rules, first match wins:
//  1. the node is below the minimum sizes, or the depth limit is reached;
//  2. no candidate feature offers a usable split;
//  3. one of the four post-split partitions is empty;
//  4. the configured minimum split gain is not met.
func (t *Tree) recursivePartition(
	node *Node,
	avgIdx, splitIdx []int,
	df *dataframe.DataFrame,
	rng *rand.Rand,
	depth int,
	lin *linearState,
	monotoneSplits bool,
	mono monotonicInfo,
) error {
	if len(avgIdx) < t.params.MinNodeSizeAvg ||
		len(splitIdx) < t.params.MinNodeSizeSpt ||
		depth == t.params.MaxDepth {
		return t.makeLeaf(node, avgIdx, splitIdx, df, mono)
	}

	// Feature pool depends on depth: at or below the interaction depth the
	// deep pool takes over, enabling interaction-only splits.
	var weights []float64
	var variables []int
	if depth >= t.params.InteractionDepth {
		weights, variables = df.DeepFeatureWeights()
	} else {
		weights, variables = df.FeatureWeights()
	}
	featureList := sampleFeatures(t.params.Mtry, weights, variables, rng)

	s := &splitter{df: df, params: t.params, hasNA: t.hasNA}
	cands := newSplitCandidates(len(featureList))
	for i, feature := range featureList {
		s.evaluateFeature(cands, i, feature, avgIdx, splitIdx, rng, lin, monotoneSplits, mono)
	}

	best, ok := determineBestSplit(cands, rng)
	if !ok {
		// No valid split anywhere in the sampled features.
		return t.makeLeaf(node, avgIdx, splitIdx, df, mono)
	}

	categorical := df.IsCategorical(best.feature)
	avgLeft, avgRight, _, _ := partitionIndexSet(df, avgIdx, best.feature, best.value, best.naDirection, categorical, t.hasNA)
	splitLeft, splitRight, naLeftCount, naRightCount := partitionIndexSet(df, splitIdx, best.feature, best.value, best.naDirection, categorical, t.hasNA)

	if len(avgLeft) == 0 || len(avgRight) == 0 || len(splitLeft) == 0 || len(splitRight) == 0 {
		return t.makeLeaf(node, avgIdx, splitIdx, df, mono)
	}

	if t.params.MinSplitGain > 0 {
		gain := t.crossValidatedRSquared(df, splitIdx, splitLeft, splitRight)
		if gain < t.params.MinSplitGain {
			return t.makeLeaf(node, avgIdx, splitIdx, df, mono)
		}
	}

	// Resolve the default NA routing for future observations when this
	// node's rows carried no missing values: a reproducible draw keyed on
	// the tree's seed, in proportion to the averaging partition sizes.
	naDir := best.naDirection
	if t.params.NADirection && naLeftCount == 0 && naRightCount == 0 {
		naDir = drawNADirection(t.seed, len(avgLeft), len(avgRight))
	}

	var linLeft, linRight *linearState
	if t.params.Linear {
		linLeft, linRight = lin.split(df, splitIdx, best.feature, best.value, naDir, categorical)
	}

	monoLeft, monoRight := mono, mono
	if monotoneSplits {
		monoLeft, monoRight = mono.childBounds(
			best.feature,
			df.PartitionMean(splitLeft),
			df.PartitionMean(splitRight),
		)
	}

	left := &Node{}
	right := &Node{}
	if err := t.recursivePartition(left, avgLeft, splitLeft, df, rng, depth+1, linLeft, monotoneSplits, monoLeft); err != nil {
		return err
	}
	if err := t.recursivePartition(right, avgRight, splitRight, df, rng, depth+1, linRight, monotoneSplits, monoRight); err != nil {
		return err
	}

	node.setSplitNode(best.feature, best.value, left, right, t.nextNodeID(), naLeftCount, naRightCount, naDir)
	return nil
}

// makeLeaf finalizes node as a leaf predicting the averaging-set mean,
// clamped into the node's admissible monotone interval, and, in linear mode,
// solves its ridge coefficients.
func (t *Tree) makeLeaf(node *Node, avgIdx, splitIdx []int, df *dataframe.DataFrame, mono monotonicInfo) error {
	node.setLeafNode(avgIdx, splitIdx, t.nextNodeID(), mono.boundedMean(df.PartitionMean(avgIdx)))
	if t.params.Linear {
		coef, err := solveRidgeCoefficients(df, avgIdx, t.params.OverfitPenalty)
		if err != nil {
			return err
		}
		node.ridgeCoefficients = coef
	}
	return nil
}

// partitionIndexSet splits an index set by (feature, value). Numeric rows go
// left on value < threshold, categorical rows on equality. Missing rows
// follow naDir; with an unset direction they are dropped, which only happens
// for evaluators that never see missing data. Returned NA counts say how
// many missing rows were routed each way.
func partitionIndexSet(
	df *dataframe.DataFrame,
	idx []int,
	feature int,
	value float64,
	naDir int,
	categorical bool,
	hasNA bool,
) (left, right []int, naLeft, naRight int) {
	if hasNA {
		var naIndices []int
		for _, i := range idx {
			v := df.Point(i, feature)
			switch {
			case math.IsNaN(v):
				naIndices = append(naIndices, i)
			case categorical && v == value:
				left = append(left, i)
			case !categorical && v < value:
				left = append(left, i)
			default:
				right = append(right, i)
			}
		}
		switch naDir {
		case NALeft:
			left = append(left, naIndices...)
			naLeft = len(naIndices)
		case NARight:
			right = append(right, naIndices...)
			naRight = len(naIndices)
		}
		return left, right, naLeft, naRight
	}

	for _, i := range idx {
		v := df.Point(i, feature)
		if (categorical && v == value) || (!categorical && v < value) {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right, 0, 0
}

// drawNADirection draws the default NA routing with probability proportional
// to the averaging partition sizes. The draw uses a fresh stream seeded from
// the tree seed, decoupled from the main growth stream, so NA routing is
// reproducible independently of split selection.
func drawNADirection(seed int64, nLeft, nRight int) int {
	r := rand.New(rand.NewSource(seed))
	if r.Float64()*float64(nLeft+nRight) < float64(nLeft) {
		return NALeft
	}
	return NARight
}

// crossValidatedRSquared estimates the generalization gain of a split as the
// difference between the children's and the parent's R-squared on the
// splitting subsample, averaged over NumTimesCV evaluations of the ridge RSS
// estimator.
func (t *Tree) crossValidatedRSquared(df *dataframe.DataFrame, splitIdx, splitLeft, splitRight []int) float64 {
	totalParent := 0.0
	totalChildren := 0.0
	for i := 0; i < t.params.NumTimesCV; i++ {
		parent, children := t.rSquaredSplit(df, splitIdx, splitLeft, splitRight)
		totalParent += parent
		totalChildren += children
	}
	n := float64(t.params.NumTimesCV)
	return totalChildren/n - totalParent/n
}

func (t *Tree) rSquaredSplit(df *dataframe.DataFrame, splitIdx, splitLeft, splitRight []int) (parent, children float64) {
	rssParent := calculateRSS(df, splitIdx, t.params.OverfitPenalty, t.params.Linear)
	rssLeft := calculateRSS(df, splitLeft, t.params.OverfitPenalty, t.params.Linear)
	rssRight := calculateRSS(df, splitRight, t.params.OverfitPenalty, t.params.Linear)

	mean := df.PartitionMean(splitIdx)
	tss := 0.0
	for _, i := range splitIdx {
		d := df.OutcomePoint(i) - mean
		tss += d * d
	}

	parent = 1 - rssParent/tss
	children = 1 - (rssLeft+rssRight)/tss
	return parent, children
}
