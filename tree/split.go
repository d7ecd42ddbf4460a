package tree

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/watanabe-lab/honestrf/dataframe"
)

// splitCandidates holds the per-candidate-feature outputs shared by all
// evaluators: best loss (higher is better), chosen threshold or category
// (NaN sentinel when no usable split exists), feature id, usable-row count,
// and the NA routing direction for imputation splits.
type splitCandidates struct {
	loss        []float64
	value       []float64
	feature     []int
	count       []int
	naDirection []int
}

func newSplitCandidates(mtry int) *splitCandidates {
	c := &splitCandidates{
		loss:        make([]float64, mtry),
		value:       make([]float64, mtry),
		feature:     make([]int, mtry),
		count:       make([]int, mtry),
		naDirection: make([]int, mtry),
	}
	for i := range c.loss {
		c.loss[i] = math.Inf(-1)
		c.value[i] = math.NaN()
	}
	return c
}

// bestSplit is the winner picked by determineBestSplit.
type bestSplit struct {
	feature     int
	value       float64
	loss        float64
	naDirection int
}

// determineBestSplit aggregates the per-feature loss array and picks the
// single best feature. Ties are broken by a count-weighted random draw from
// the tree's random stream, not by array order, to avoid systematic
// feature-selection bias.
func determineBestSplit(c *splitCandidates, rng *rand.Rand) (bestSplit, bool) {
	best := math.Inf(-1)
	found := false
	for i := range c.loss {
		if math.IsNaN(c.value[i]) {
			continue
		}
		found = true
		if c.loss[i] > best {
			best = c.loss[i]
		}
	}
	if !found {
		return bestSplit{}, false
	}

	var ties []int
	for i := range c.loss {
		if !math.IsNaN(c.value[i]) && c.loss[i] == best {
			ties = append(ties, i)
		}
	}

	pick := ties[0]
	if len(ties) > 1 {
		total := 0.0
		for _, i := range ties {
			total += float64(c.count[i])
		}
		r := rng.Float64() * total
		cum := 0.0
		for _, i := range ties {
			cum += float64(c.count[i])
			if r < cum {
				pick = i
				break
			}
		}
	}
	return bestSplit{
		feature:     c.feature[pick],
		value:       c.value[pick],
		loss:        best,
		naDirection: c.naDirection[pick],
	}, true
}

// sampleFeatures draws mtry distinct features from a weighted pool without
// replacement. variables[j] is the column id carrying weights[j].
func sampleFeatures(mtry int, weights []float64, variables []int, rng *rand.Rand) []int {
	w := append([]float64(nil), weights...)
	total := floats.Sum(w)
	out := make([]int, 0, mtry)
	for len(out) < mtry && total > 0 {
		r := rng.Float64() * total
		cum := 0.0
		pick := len(w) - 1
		for j, wj := range w {
			cum += wj
			if r < cum {
				pick = j
				break
			}
		}
		out = append(out, variables[pick])
		total -= w[pick]
		w[pick] = 0
	}
	return out
}

// splitter evaluates a single (feature, node) pair with the applicable
// strategy and writes the result into the shared candidate arrays.
type splitter struct {
	df     *dataframe.DataFrame
	params Params
	hasNA  bool
}

// evaluateFeature dispatches to the strategy for one candidate feature.
// Ridge takes precedence over missing-value handling for both categorical
// and numeric features.
func (s *splitter) evaluateFeature(
	out *splitCandidates,
	i, feature int,
	avgIdx, splitIdx []int,
	rng *rand.Rand,
	lin *linearState,
	monotoneSplits bool,
	mono monotonicInfo,
) {
	categorical := s.df.IsCategorical(feature)
	switch {
	case categorical && s.params.Linear:
		s.findBestSplitRidgeCategorical(out, i, feature, avgIdx, splitIdx, lin)
	case categorical && s.hasNA:
		s.findBestSplitImputeCategorical(out, i, feature, avgIdx, splitIdx)
	case categorical:
		s.findBestSplitCategorical(out, i, feature, avgIdx, splitIdx)
	case s.params.Linear:
		s.findBestSplitRidge(out, i, feature, avgIdx, splitIdx, lin)
	case s.hasNA:
		s.findBestSplitImpute(out, i, feature, avgIdx, splitIdx, monotoneSplits, mono)
	default:
		s.findBestSplitNumeric(out, i, feature, avgIdx, splitIdx, monotoneSplits, mono)
	}
}

// obs is a (feature value, outcome) pair used by the scanning evaluators.
type obs struct {
	value   float64
	outcome float64
}

// collectObs gathers the observations of an index set for one feature,
// sorted ascending by value. Rows with a missing value are folded into the
// returned NA accumulators instead. maxObs > 0 caps how many rows of idx are
// considered at all.
func (s *splitter) collectObs(idx []int, feature, maxObs int) (sorted []obs, naSum float64, naCount int) {
	n := len(idx)
	if maxObs > 0 && maxObs < n {
		n = maxObs
	}
	sorted = make([]obs, 0, n)
	for _, row := range idx[:n] {
		v := s.df.Point(row, feature)
		if math.IsNaN(v) {
			naSum += s.df.OutcomePoint(row)
			naCount++
			continue
		}
		sorted = append(sorted, obs{value: v, outcome: s.df.OutcomePoint(row)})
	}
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].value < sorted[b].value })
	return sorted, naSum, naCount
}

// threshold places the candidate split point between two consecutive
// distinct sorted values.
func (s *splitter) threshold(lo, hi float64) float64 {
	if s.params.SplitMiddle {
		return (lo + hi) / 2
	}
	return hi
}

// findBestSplitNumeric scores a non-categorical feature by CART variance
// reduction on the splitting subsample. Candidate thresholds sit between
// consecutive distinct sorted values; both sides must satisfy the
// minimum-size feasibility on the splitting and averaging sets. Ties are
// broken by the first candidate in sorted order.
func (s *splitter) findBestSplitNumeric(
	out *splitCandidates,
	i, feature int,
	avgIdx, splitIdx []int,
	monotoneSplits bool,
	mono monotonicInfo,
) {
	spl, _, _ := s.collectObs(splitIdx, feature, s.params.MaxObs)
	avg, _, _ := s.collectObs(avgIdx, feature, 0)
	if len(spl) < 2 {
		return
	}

	splTotal := 0.0
	for _, o := range spl {
		splTotal += o.outcome
	}
	avgTotal := 0.0
	for _, o := range avg {
		avgTotal += o.outcome
	}

	bestLoss := math.Inf(-1)
	bestValue := math.NaN()

	leftSum := 0.0
	leftN := 0
	aPtr := 0
	avgLeftSum := 0.0

	for j := 0; j < len(spl)-1; j++ {
		leftSum += spl[j].outcome
		leftN++
		if spl[j].value == spl[j+1].value {
			continue
		}
		th := s.threshold(spl[j].value, spl[j+1].value)
		for aPtr < len(avg) && avg[aPtr].value < th {
			avgLeftSum += avg[aPtr].outcome
			aPtr++
		}

		rightN := len(spl) - leftN
		avgLeftN := aPtr
		avgRightN := len(avg) - aPtr
		if leftN < s.params.MinNodeSizeToSplitSpt || rightN < s.params.MinNodeSizeToSplitSpt ||
			avgLeftN < s.params.MinNodeSizeToSplitAvg || avgRightN < s.params.MinNodeSizeToSplitAvg {
			continue
		}

		rightSum := splTotal - leftSum
		if monotoneSplits {
			if !mono.feasible(feature, leftSum/float64(leftN), rightSum/float64(rightN)) {
				continue
			}
			if mono.monotoneAvg {
				avgRightSum := avgTotal - avgLeftSum
				if !mono.feasible(feature, avgLeftSum/float64(avgLeftN), avgRightSum/float64(avgRightN)) {
					continue
				}
			}
		}

		loss := leftSum*leftSum/float64(leftN) + rightSum*rightSum/float64(rightN)
		if loss > bestLoss {
			bestLoss = loss
			bestValue = th
		}
	}

	if !math.IsInf(bestLoss, -1) {
		out.loss[i] = bestLoss
		out.value[i] = bestValue
		out.feature[i] = feature
		out.count[i] = len(spl)
	}
}

// categoryStats accumulates per-category outcome sums and counts, with a
// deterministic sorted category order.
func categoryStats(sample []obs) (cats []float64, sums map[float64]float64, counts map[float64]int) {
	sums = make(map[float64]float64)
	counts = make(map[float64]int)
	for _, o := range sample {
		if counts[o.value] == 0 {
			cats = append(cats, o.value)
		}
		sums[o.value] += o.outcome
		counts[o.value]++
	}
	sort.Float64s(cats)
	return cats, sums, counts
}

// findBestSplitCategorical scores a categorical feature by trying every
// "this category vs. rest" partition under the CART variance criterion and
// keeping the best single category.
func (s *splitter) findBestSplitCategorical(
	out *splitCandidates,
	i, feature int,
	avgIdx, splitIdx []int,
) {
	spl, _, _ := s.collectObs(splitIdx, feature, s.params.MaxObs)
	avg, _, _ := s.collectObs(avgIdx, feature, 0)
	if len(spl) < 2 {
		return
	}

	cats, sums, counts := categoryStats(spl)
	_, _, avgCounts := categoryStats(avg)

	splTotal := 0.0
	for _, o := range spl {
		splTotal += o.outcome
	}

	bestLoss := math.Inf(-1)
	bestValue := math.NaN()

	for _, cat := range cats {
		leftN := counts[cat]
		rightN := len(spl) - leftN
		avgLeftN := avgCounts[cat]
		avgRightN := len(avg) - avgLeftN
		if leftN < s.params.MinNodeSizeToSplitSpt || rightN < s.params.MinNodeSizeToSplitSpt ||
			avgLeftN < s.params.MinNodeSizeToSplitAvg || avgRightN < s.params.MinNodeSizeToSplitAvg {
			continue
		}

		leftSum := sums[cat]
		rightSum := splTotal - leftSum
		loss := leftSum*leftSum/float64(leftN) + rightSum*rightSum/float64(rightN)
		if loss > bestLoss {
			bestLoss = loss
			bestValue = cat
		}
	}

	if !math.IsInf(bestLoss, -1) {
		out.loss[i] = bestLoss
		out.value[i] = bestValue
		out.feature[i] = feature
		out.count[i] = len(spl)
	}
}

// findBestSplitImpute scores a non-categorical feature while explicitly
// modeling where missing rows go: both "send NAs left" and "send NAs right"
// are scored for every candidate threshold and the better direction is kept.
// Monotonic feasibility is applied to the NA-adjusted partitions, tightening
// the admissible split region.
func (s *splitter) findBestSplitImpute(
	out *splitCandidates,
	i, feature int,
	avgIdx, splitIdx []int,
	monotoneSplits bool,
	mono monotonicInfo,
) {
	spl, naSum, naCount := s.collectObs(splitIdx, feature, s.params.MaxObs)
	avg, _, avgNACount := s.collectObs(avgIdx, feature, 0)
	if len(spl) < 2 {
		return
	}

	splTotal := 0.0
	for _, o := range spl {
		splTotal += o.outcome
	}
	avgTotal := 0.0
	for _, o := range avg {
		avgTotal += o.outcome
	}

	bestLoss := math.Inf(-1)
	bestValue := math.NaN()
	bestDir := NAUnset

	leftSum := 0.0
	leftN := 0
	aPtr := 0
	avgLeftSum := 0.0

	for j := 0; j < len(spl)-1; j++ {
		leftSum += spl[j].outcome
		leftN++
		if spl[j].value == spl[j+1].value {
			continue
		}
		th := s.threshold(spl[j].value, spl[j+1].value)
		for aPtr < len(avg) && avg[aPtr].value < th {
			avgLeftSum += avg[aPtr].outcome
			aPtr++
		}
		rightSum := splTotal - leftSum
		rightN := len(spl) - leftN

		for _, dir := range [2]int{NALeft, NARight} {
			lSum, lN := leftSum, leftN
			rSum, rN := rightSum, rightN
			avgLeftN := aPtr
			avgRightN := len(avg) - aPtr
			if dir == NALeft {
				lSum += naSum
				lN += naCount
				avgLeftN += avgNACount
			} else {
				rSum += naSum
				rN += naCount
				avgRightN += avgNACount
			}

			if lN < s.params.MinNodeSizeToSplitSpt || rN < s.params.MinNodeSizeToSplitSpt ||
				avgLeftN < s.params.MinNodeSizeToSplitAvg || avgRightN < s.params.MinNodeSizeToSplitAvg {
				continue
			}
			if monotoneSplits {
				if !mono.feasible(feature, lSum/float64(lN), rSum/float64(rN)) {
					continue
				}
				if mono.monotoneAvg && avgLeftN > 0 && avgRightN > 0 {
					avgRightSum := avgTotal - avgLeftSum
					if !mono.feasible(feature, avgLeftSum/float64(avgLeftN), avgRightSum/float64(avgRightN)) {
						continue
					}
				}
			}

			loss := lSum*lSum/float64(lN) + rSum*rSum/float64(rN)
			if loss > bestLoss {
				bestLoss = loss
				bestValue = th
				bestDir = dir
			}
		}
	}

	if !math.IsInf(bestLoss, -1) {
		out.loss[i] = bestLoss
		out.value[i] = bestValue
		out.feature[i] = feature
		out.count[i] = len(spl)
		if naCount > 0 {
			out.naDirection[i] = bestDir
		}
	}
}

// findBestSplitImputeCategorical is the missing-value-aware variant of the
// categorical evaluator: every "category vs. rest" partition is scored with
// NAs sent left and sent right, keeping the better direction.
func (s *splitter) findBestSplitImputeCategorical(
	out *splitCandidates,
	i, feature int,
	avgIdx, splitIdx []int,
) {
	spl, naSum, naCount := s.collectObs(splitIdx, feature, s.params.MaxObs)
	avg, _, avgNACount := s.collectObs(avgIdx, feature, 0)
	if len(spl) < 2 {
		return
	}

	cats, sums, counts := categoryStats(spl)
	_, _, avgCounts := categoryStats(avg)

	splTotal := 0.0
	for _, o := range spl {
		splTotal += o.outcome
	}

	bestLoss := math.Inf(-1)
	bestValue := math.NaN()
	bestDir := NAUnset

	for _, cat := range cats {
		for _, dir := range [2]int{NALeft, NARight} {
			lSum := sums[cat]
			lN := counts[cat]
			rSum := splTotal - lSum
			rN := len(spl) - lN
			avgLeftN := avgCounts[cat]
			avgRightN := len(avg) - avgLeftN
			if dir == NALeft {
				lSum += naSum
				lN += naCount
				avgLeftN += avgNACount
			} else {
				rSum += naSum
				rN += naCount
				avgRightN += avgNACount
			}

			if lN < s.params.MinNodeSizeToSplitSpt || rN < s.params.MinNodeSizeToSplitSpt ||
				avgLeftN < s.params.MinNodeSizeToSplitAvg || avgRightN < s.params.MinNodeSizeToSplitAvg {
				continue
			}

			loss := lSum*lSum/float64(lN) + rSum*rSum/float64(rN)
			if loss > bestLoss {
				bestLoss = loss
				bestValue = cat
				bestDir = dir
			}
		}
	}

	if !math.IsInf(bestLoss, -1) {
		out.loss[i] = bestLoss
		out.value[i] = bestValue
		out.feature[i] = feature
		out.count[i] = len(spl)
		if naCount > 0 {
			out.naDirection[i] = bestDir
		}
	}
}

// findBestSplitRidge scores a non-categorical feature by the reduction in
// ridge-regularized residual sum of squares, maintained incrementally from
// the node's Gram/moment accumulators: the left side is built up row by row
// and the right side is derived by subtraction, never recomputed.
func (s *splitter) findBestSplitRidge(
	out *splitCandidates,
	i, feature int,
	avgIdx, splitIdx []int,
	lin *linearState,
) {
	type rowObs struct {
		row   int
		value float64
	}

	n := len(splitIdx)
	if s.params.MaxObs > 0 && s.params.MaxObs < n {
		n = s.params.MaxObs
	}
	rows := make([]rowObs, 0, n)
	for _, row := range splitIdx[:n] {
		v := s.df.Point(row, feature)
		if math.IsNaN(v) {
			continue
		}
		rows = append(rows, rowObs{row: row, value: v})
	}
	sort.Slice(rows, func(a, b int) bool { return rows[a].value < rows[b].value })
	if len(rows) < 2 {
		return
	}

	avg, _, _ := s.collectObs(avgIdx, feature, 0)

	left := newEmptyLinearState(lin.dim())
	scratch := newRidgeScratch(lin.dim())

	bestLoss := math.Inf(-1)
	bestValue := math.NaN()

	aPtr := 0
	for j := 0; j < len(rows)-1; j++ {
		left.addRow(s.df, rows[j].row)
		if rows[j].value == rows[j+1].value {
			continue
		}
		th := s.threshold(rows[j].value, rows[j+1].value)
		for aPtr < len(avg) && avg[aPtr].value < th {
			aPtr++
		}

		leftN := j + 1
		rightN := len(rows) - leftN
		avgLeftN := aPtr
		avgRightN := len(avg) - aPtr
		if leftN < s.params.MinNodeSizeToSplitSpt || rightN < s.params.MinNodeSizeToSplitSpt ||
			avgLeftN < s.params.MinNodeSizeToSplitAvg || avgRightN < s.params.MinNodeSizeToSplitAvg {
			continue
		}

		loss, ok := ridgeSplitLoss(lin, left, s.params.OverfitPenalty, scratch)
		if !ok {
			continue
		}
		if loss > bestLoss {
			bestLoss = loss
			bestValue = th
		}
	}

	if !math.IsInf(bestLoss, -1) {
		out.loss[i] = bestLoss
		out.value[i] = bestValue
		out.feature[i] = feature
		out.count[i] = len(rows)
	}
}

// findBestSplitRidgeCategorical scores a categorical feature under the
// ridge RSS criterion, one "category vs. rest" partition at a time.
func (s *splitter) findBestSplitRidgeCategorical(
	out *splitCandidates,
	i, feature int,
	avgIdx, splitIdx []int,
	lin *linearState,
) {
	n := len(splitIdx)
	if s.params.MaxObs > 0 && s.params.MaxObs < n {
		n = s.params.MaxObs
	}
	sample := splitIdx[:n]

	// Deterministic category order, with per-category row lists.
	catRows := make(map[float64][]int)
	var cats []float64
	for _, row := range sample {
		v := s.df.Point(row, feature)
		if math.IsNaN(v) {
			continue
		}
		if _, seen := catRows[v]; !seen {
			cats = append(cats, v)
		}
		catRows[v] = append(catRows[v], row)
	}
	sort.Float64s(cats)
	usable := 0
	for _, rows := range catRows {
		usable += len(rows)
	}
	if len(cats) < 2 {
		return
	}

	avg, _, _ := s.collectObs(avgIdx, feature, 0)
	avgCounts := make(map[float64]int)
	for _, o := range avg {
		avgCounts[o.value]++
	}

	scratch := newRidgeScratch(lin.dim())

	bestLoss := math.Inf(-1)
	bestValue := math.NaN()

	for _, cat := range cats {
		leftN := len(catRows[cat])
		rightN := usable - leftN
		avgLeftN := avgCounts[cat]
		avgRightN := len(avg) - avgLeftN
		if leftN < s.params.MinNodeSizeToSplitSpt || rightN < s.params.MinNodeSizeToSplitSpt ||
			avgLeftN < s.params.MinNodeSizeToSplitAvg || avgRightN < s.params.MinNodeSizeToSplitAvg {
			continue
		}

		left := newEmptyLinearState(lin.dim())
		for _, row := range catRows[cat] {
			left.addRow(s.df, row)
		}
		loss, ok := ridgeSplitLoss(lin, left, s.params.OverfitPenalty, scratch)
		if !ok {
			continue
		}
		if loss > bestLoss {
			bestLoss = loss
			bestValue = cat
		}
	}

	if !math.IsInf(bestLoss, -1) {
		out.loss[i] = bestLoss
		out.value[i] = bestValue
		out.feature[i] = feature
		out.count[i] = usable
	}
}
