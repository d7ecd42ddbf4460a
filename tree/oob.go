package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/watanabe-lab/honestrf/dataframe"
)

// canonicalize sorts the tree's stored index sets in place. The sort is a
// destructive canonicalization of the stored order but idempotent, so
// repeated out-of-bag calls stay safe.
func (t *Tree) canonicalize() {
	sort.Ints(t.averagingIndex)
	sort.Ints(t.splittingIndex)
}

// sortedUnion merges two sorted index slices into a sorted slice of unique
// values. Bootstrap draws repeat rows, so duplicates are dropped here.
func sortedUnion(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	push := func(v int) {
		if len(out) == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
	}
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			push(a[i])
			i++
		case a[i] > b[j]:
			push(b[j])
			j++
		default:
			push(a[i])
			i++
			j++
		}
	}
	for ; i < len(a); i++ {
		push(a[i])
	}
	for ; j < len(b); j++ {
		push(b[j])
	}
	return out
}

// sortedComplement returns {0..nRows-1} minus a sorted slice that may hold
// duplicates.
func sortedComplement(used []int, nRows int) []int {
	out := make([]int, 0, nRows)
	j := 0
	for row := 0; row < nRows; row++ {
		for j < len(used) && used[j] < row {
			j++
		}
		if j < len(used) && used[j] == row {
			continue
		}
		out = append(out, row)
	}
	return out
}

// OOBIndex returns the rows of a universe of nRows that appear in neither
// the averaging nor the splitting set.
func (t *Tree) OOBIndex(nRows int) []int {
	t.canonicalize()
	return sortedComplement(sortedUnion(t.averagingIndex, t.splittingIndex), nRows)
}

// DoubleOOBIndex returns the out-of-bag rows under the honest
// double-bootstrap design. The set formula matches OOBIndex; the distinct
// entry point keeps the two designs separately addressable by the caller.
func (t *Tree) DoubleOOBIndex(nRows int) []int {
	return t.OOBIndex(nRows)
}

// OOBHonestIndex returns the rows absent from the averaging set only.
// Splitting rows never touch leaf predictions in an honest tree, so they
// stay eligible.
func (t *Tree) OOBHonestIndex(nRows int) []int {
	t.canonicalize()
	return sortedComplement(t.averagingIndex, nRows)
}

// OOGIndex returns the out-of-group rows: those whose group id is touched by
// no averaging row, and, when doubleOOB is set, by no splitting row either.
func (t *Tree) OOGIndex(df *dataframe.DataFrame, doubleOOB bool) []int {
	groups := df.Groups()
	inGroups := make(map[int]bool)
	for _, row := range t.averagingIndex {
		inGroups[groups[row]] = true
	}
	if doubleOOB {
		for _, row := range t.splittingIndex {
			inGroups[groups[row]] = true
		}
	}
	out := make([]int, 0, len(groups))
	for row, g := range groups {
		if !inGroups[g] {
			out = append(out, row)
		}
	}
	return out
}

// oobForDesign picks the index computation matching the forest's sampling
// design.
func (t *Tree) oobForDesign(df *dataframe.DataFrame, nRows int, oobHonest, doubleOOB bool) []int {
	switch {
	case df.HasGroups():
		return t.OOGIndex(df, doubleOOB)
	case doubleOOB:
		return t.DoubleOOBIndex(nRows)
	case oobHonest:
		return t.OOBHonestIndex(nRows)
	default:
		return t.OOBIndex(nRows)
	}
}

// GetOOBPrediction accumulates this tree's out-of-bag predictions into the
// caller-owned running sum and count buffers, so every tree of a forest can
// contribute to a shared aggregate. Features are read from xNew when given
// and from the training frame otherwise; trainingIdx, when non-nil, maps
// original row ids to buffer/xNew positions and rows outside the map are
// skipped.
func (t *Tree) GetOOBPrediction(
	predSum, counts []float64,
	df *dataframe.DataFrame,
	oobHonest, doubleOOB bool,
	xNew mat.Matrix,
	trainingIdx []int,
) error {
	if t.params.Linear {
		if err := t.ensureRidgeCoefficients(df); err != nil {
			return err
		}
	}

	var pos map[int]int
	if trainingIdx != nil {
		pos = make(map[int]int, len(trainingIdx))
		for p, row := range trainingIdx {
			pos[row] = p
		}
	}

	oob := t.oobForDesign(df, df.NumRows(), oobHonest, doubleOOB)
	row := make([]float64, df.NumColumns())
	for _, origRow := range oob {
		at := origRow
		if pos != nil {
			p, ok := pos[origRow]
			if !ok {
				continue
			}
			at = p
		}
		if xNew != nil {
			for c := range row {
				row[c] = xNew.At(at, c)
			}
		} else {
			for c := range row {
				row[c] = df.Point(origRow, c)
			}
		}
		leaf, err := t.routeRow(row, df)
		if err != nil {
			return err
		}
		predSum[at] += t.leafValue(leaf, row, df, nil, 0)
		counts[at]++
	}
	return nil
}
