package tree

import "math"

// monotonicInfo carries the admissible prediction interval accumulated along
// a root-to-node path, together with the per-feature constraint directions.
// A child's interval is always a sub-interval of its parent's.
type monotonicInfo struct {
	constraints []int
	lowerBound  float64
	upperBound  float64
	monotoneAvg bool
}

func newMonotonicInfo(constraints []int, monotoneAvg bool) monotonicInfo {
	return monotonicInfo{
		constraints: constraints,
		lowerBound:  math.Inf(-1),
		upperBound:  math.Inf(1),
		monotoneAvg: monotoneAvg,
	}
}

// boundedMean clamps a partition mean into the node's admissible interval.
func (m monotonicInfo) boundedMean(mean float64) float64 {
	if mean < m.lowerBound {
		return m.lowerBound
	}
	if mean > m.upperBound {
		return m.upperBound
	}
	return mean
}

// feasible reports whether a candidate split on feature keeps the clamped
// child means ordered according to the feature's constraint direction.
func (m monotonicInfo) feasible(feature int, leftMean, rightMean float64) bool {
	dir := m.constraints[feature]
	if dir == 0 {
		return true
	}
	left := m.boundedMean(leftMean)
	right := m.boundedMean(rightMean)
	if dir > 0 {
		return left <= right
	}
	return left >= right
}

// childBounds derives the children's admissible intervals from the chosen
// split. For a constrained feature the midpoint of the clamped child means
// partitions the parent interval; for an unconstrained feature both children
// inherit the parent interval unchanged.
func (m monotonicInfo) childBounds(feature int, leftMean, rightMean float64) (left, right monotonicInfo) {
	left = m
	right = m

	dir := m.constraints[feature]
	if dir == 0 {
		return left, right
	}

	mid := (m.boundedMean(leftMean) + m.boundedMean(rightMean)) / 2
	if dir < 0 {
		left.lowerBound = mid
		right.upperBound = mid
	} else {
		left.upperBound = mid
		right.lowerBound = mid
	}
	return left, right
}
