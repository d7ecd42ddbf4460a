package tree

import "fmt"

// NA default routing directions stored on split nodes.
const (
	// NALeft routes missing values to the left child.
	NALeft = -1
	// NAUnset means no default direction was resolved.
	NAUnset = 0
	// NARight routes missing values to the right child.
	NARight = 1
)

type nodeKind uint8

const (
	leafKind nodeKind = iota + 1
	splitKind
)

// Node is a vertex of a grown tree: either a leaf or a split. A split owns
// exactly two children; there is no sharing and no cycles. Structural
// accessors (SplitFeature, LeftChild, ...) panic when invoked on a leaf:
// that is a caller bug, not a data condition, and is kept loudly distinct
// from the data-driven leaf fallbacks during growth.
type Node struct {
	kind         nodeKind
	id           int
	averageCount int
	splitCount   int

	// Leaf payload. The index slices are only populated on grown trees (or
	// lazily on reconstructed trees); ridge coefficients are solved on
	// demand in linear mode.
	predictWeight     float64
	averagingIndex    []int
	splittingIndex    []int
	ridgeCoefficients []float64

	// Split payload.
	splitFeature       int
	splitValue         float64
	left               *Node
	right              *Node
	naLeftCount        int
	naRightCount       int
	naDefaultDirection int
}

// setLeafNode turns the node into a leaf.
func (n *Node) setLeafNode(avgIdx, splitIdx []int, id int, weight float64) {
	n.kind = leafKind
	n.id = id
	n.averageCount = len(avgIdx)
	n.splitCount = len(splitIdx)
	n.averagingIndex = avgIdx
	n.splittingIndex = splitIdx
	n.predictWeight = weight
}

// setReconstructedLeaf turns the node into a leaf carrying counts but no
// index sets, as decoded from a flat encoding.
func (n *Node) setReconstructedLeaf(avgCount, splitCount, id int, weight float64) {
	n.kind = leafKind
	n.id = id
	n.averageCount = avgCount
	n.splitCount = splitCount
	n.predictWeight = weight
}

// setSplitNode turns the node into a split owning the two children.
func (n *Node) setSplitNode(feature int, value float64, left, right *Node, id, naLeft, naRight, naDir int) {
	n.kind = splitKind
	n.id = id
	n.splitFeature = feature
	n.splitValue = value
	n.left = left
	n.right = right
	n.naLeftCount = naLeft
	n.naRightCount = naRight
	n.naDefaultDirection = naDir
	n.averageCount = left.averageCount + right.averageCount
	n.splitCount = left.splitCount + right.splitCount
}

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool { return n.kind == leafKind }

// ID returns the node id, assigned in construction order.
func (n *Node) ID() int { return n.id }

// AverageCount returns the number of averaging rows reaching the node.
func (n *Node) AverageCount() int { return n.averageCount }

// SplitCount returns the number of splitting rows reaching the node.
func (n *Node) SplitCount() int { return n.splitCount }

// PredictWeight returns a leaf's stored prediction.
func (n *Node) PredictWeight() float64 {
	n.mustBe(leafKind, "PredictWeight")
	return n.predictWeight
}

// AveragingIndex returns the averaging rows reaching a leaf, or nil on a
// reconstructed tree whose leaf sets have not been repopulated.
func (n *Node) AveragingIndex() []int {
	n.mustBe(leafKind, "AveragingIndex")
	return n.averagingIndex
}

// SplittingIndex returns the splitting rows reaching a leaf, or nil on a
// reconstructed tree whose leaf sets have not been repopulated.
func (n *Node) SplittingIndex() []int {
	n.mustBe(leafKind, "SplittingIndex")
	return n.splittingIndex
}

// SplitFeature returns the feature a split node routes on.
func (n *Node) SplitFeature() int {
	n.mustBe(splitKind, "SplitFeature")
	return n.splitFeature
}

// SplitValue returns the threshold (numeric) or category (categorical) of a
// split node.
func (n *Node) SplitValue() float64 {
	n.mustBe(splitKind, "SplitValue")
	return n.splitValue
}

// LeftChild returns the left child of a split node.
func (n *Node) LeftChild() *Node {
	n.mustBe(splitKind, "LeftChild")
	return n.left
}

// RightChild returns the right child of a split node.
func (n *Node) RightChild() *Node {
	n.mustBe(splitKind, "RightChild")
	return n.right
}

// NALeftCount returns how many left-routed splitting rows were missing.
func (n *Node) NALeftCount() int {
	n.mustBe(splitKind, "NALeftCount")
	return n.naLeftCount
}

// NARightCount returns how many right-routed splitting rows were missing.
func (n *Node) NARightCount() int {
	n.mustBe(splitKind, "NARightCount")
	return n.naRightCount
}

// NADefaultDirection returns the default routing for missing values:
// NALeft, NARight, or NAUnset.
func (n *Node) NADefaultDirection() int {
	n.mustBe(splitKind, "NADefaultDirection")
	return n.naDefaultDirection
}

func (n *Node) mustBe(kind nodeKind, op string) {
	if n.kind != kind {
		if kind == splitKind {
			panic(fmt.Sprintf("tree: %s called on a leaf node (id=%d)", op, n.id))
		}
		panic(fmt.Sprintf("tree: %s called on a split node (id=%d)", op, n.id))
	}
}
