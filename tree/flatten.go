package tree

import (
	pkgerrors "github.com/watanabe-lab/honestrf/pkg/errors"
)

// FlatTree is the wire form of a grown tree: parallel arrays produced by a
// pre-order walk. Features carries one entry per split node (feature id + 1,
// always positive) and two per leaf (the negated averaging count, then the
// negated splitting count). Values and the three NA arrays carry one entry
// per node, zero-filled at leaf positions; PredictWeights carries one entry
// per leaf. Index sets are exchanged 1-based for interoperability with
// 1-indexed consumers.
type FlatTree struct {
	Features            []int
	Values              []float64
	NALeftCounts        []int
	NARightCounts       []int
	NADefaultDirections []int
	AveragingIndex      []int
	SplittingIndex      []int
	PredictWeights      []float64
	Seed                int64
}

// FlatTree flattens the tree. The result shares no state with the tree.
func (t *Tree) FlatTree() *FlatTree {
	f := &FlatTree{Seed: t.seed}
	f.AveragingIndex = make([]int, len(t.averagingIndex))
	for i, row := range t.averagingIndex {
		f.AveragingIndex[i] = row + 1
	}
	f.SplittingIndex = make([]int, len(t.splittingIndex))
	for i, row := range t.splittingIndex {
		f.SplittingIndex[i] = row + 1
	}
	f.flatten(t.root)
	return f
}

func (f *FlatTree) flatten(n *Node) {
	if n.IsLeaf() {
		f.Features = append(f.Features, -n.averageCount)
		f.Values = append(f.Values, 0)
		f.NALeftCounts = append(f.NALeftCounts, 0)
		f.NARightCounts = append(f.NARightCounts, 0)
		f.NADefaultDirections = append(f.NADefaultDirections, 0)
		f.Features = append(f.Features, -n.splitCount)
		f.PredictWeights = append(f.PredictWeights, n.predictWeight)
		return
	}
	f.Features = append(f.Features, n.splitFeature+1)
	f.Values = append(f.Values, n.splitValue)
	f.NALeftCounts = append(f.NALeftCounts, n.naLeftCount)
	f.NARightCounts = append(f.NARightCounts, n.naRightCount)
	f.NADefaultDirections = append(f.NADefaultDirections, n.naDefaultDirection)
	f.flatten(n.left)
	f.flatten(n.right)
}

// flatCursor decodes a FlatTree by advancing read positions over the
// immutable arrays instead of consuming them destructively, so a flat form
// can be reconstructed any number of times.
type flatCursor struct {
	flat *FlatTree
	fPos int // Features
	nPos int // Values and the NA arrays
	wPos int // PredictWeights
}

func (c *flatCursor) nextFeature() (int, error) {
	if c.fPos >= len(c.flat.Features) {
		return 0, pkgerrors.NewStructureError("Features", c.fPos, "encoding ends before the tree is complete")
	}
	m := c.flat.Features[c.fPos]
	if m == 0 {
		return 0, pkgerrors.NewStructureError("Features", c.fPos, "zero marker is neither split nor leaf")
	}
	c.fPos++
	return m, nil
}

func (c *flatCursor) nextNode() (value float64, naLeft, naRight, naDir int, err error) {
	if c.nPos >= len(c.flat.Values) ||
		c.nPos >= len(c.flat.NALeftCounts) ||
		c.nPos >= len(c.flat.NARightCounts) ||
		c.nPos >= len(c.flat.NADefaultDirections) {
		return 0, 0, 0, 0, pkgerrors.NewStructureError("Values", c.nPos, "per-node arrays shorter than the node sequence")
	}
	value = c.flat.Values[c.nPos]
	naLeft = c.flat.NALeftCounts[c.nPos]
	naRight = c.flat.NARightCounts[c.nPos]
	naDir = c.flat.NADefaultDirections[c.nPos]
	c.nPos++
	return value, naLeft, naRight, naDir, nil
}

func (c *flatCursor) nextWeight() (float64, error) {
	if c.wPos >= len(c.flat.PredictWeights) {
		return 0, pkgerrors.NewStructureError("PredictWeights", c.wPos, "fewer weights than leaves")
	}
	w := c.flat.PredictWeights[c.wPos]
	c.wPos++
	return w, nil
}

// Reconstruct rebuilds a tree from its flat form. Structure, thresholds, NA
// routing, and leaf weights round-trip exactly; node ids are reassigned
// fresh in construction order. Leaf index sets and ridge coefficients are
// repopulated lazily on first use. Malformed encodings are rejected with a
// structural-integrity error instead of being read past the end.
func Reconstruct(flat *FlatTree, params Params) (*Tree, error) {
	t := &Tree{
		params: params.normalized(len(flat.SplittingIndex)),
		seed:   flat.Seed,
	}
	t.averagingIndex = make([]int, len(flat.AveragingIndex))
	for i, row := range flat.AveragingIndex {
		t.averagingIndex[i] = row - 1
	}
	t.splittingIndex = make([]int, len(flat.SplittingIndex))
	for i, row := range flat.SplittingIndex {
		t.splittingIndex[i] = row - 1
	}
	for _, c := range flat.NALeftCounts {
		if c != 0 {
			t.hasNA = true
		}
	}
	for _, c := range flat.NARightCounts {
		if c != 0 {
			t.hasNA = true
		}
	}

	cur := &flatCursor{flat: flat}
	t.root = &Node{}
	if err := t.reconstructNode(t.root, cur); err != nil {
		return nil, err
	}
	if cur.fPos != len(flat.Features) {
		return nil, pkgerrors.NewStructureError("Features", cur.fPos, "trailing entries after a complete tree")
	}
	if cur.nPos != len(flat.Values) {
		return nil, pkgerrors.NewStructureError("Values", cur.nPos, "trailing entries after a complete tree")
	}
	if cur.wPos != len(flat.PredictWeights) {
		return nil, pkgerrors.NewStructureError("PredictWeights", cur.wPos, "trailing entries after a complete tree")
	}
	return t, nil
}

func (t *Tree) reconstructNode(node *Node, cur *flatCursor) error {
	marker, err := cur.nextFeature()
	if err != nil {
		return err
	}
	value, naLeft, naRight, naDir, err := cur.nextNode()
	if err != nil {
		return err
	}

	if marker < 0 {
		second, err := cur.nextFeature()
		if err != nil {
			return err
		}
		if second > 0 {
			return pkgerrors.NewStructureError("Features", cur.fPos-1, "leaf missing its splitting-count marker")
		}
		weight, err := cur.nextWeight()
		if err != nil {
			return err
		}
		node.setReconstructedLeaf(-marker, -second, t.nextNodeID(), weight)
		return nil
	}

	left := &Node{}
	right := &Node{}
	if err := t.reconstructNode(left, cur); err != nil {
		return err
	}
	if err := t.reconstructNode(right, cur); err != nil {
		return err
	}
	node.setSplitNode(marker-1, value, left, right, t.nextNodeID(), naLeft, naRight, naDir)
	return nil
}
