package tree

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/watanabe-lab/honestrf/dataframe"
	pkgerrors "github.com/watanabe-lab/honestrf/pkg/errors"
)

// linearState carries the sufficient statistics for ridge regression over a
// set of rows: the Gram matrix G = Σ x'x'ᵀ and moment vector s = Σ x'y,
// where x' is the linear feature vector extended with a trailing intercept
// term. The squared-outcome sum is kept for exact residual computation.
// States are additive, so a child's statistics follow from the parent's by
// subtraction.
type linearState struct {
	g   *mat.Dense
	s   *mat.VecDense
	yty float64
	n   int
}

func newEmptyLinearState(dim int) *linearState {
	return &linearState{
		g: mat.NewDense(dim, dim, nil),
		s: mat.NewVecDense(dim, nil),
	}
}

// newLinearState accumulates the statistics of an index set.
func newLinearState(df *dataframe.DataFrame, idx []int) *linearState {
	l := newEmptyLinearState(df.NumLinearFeatures() + 1)
	for _, row := range idx {
		l.addRow(df, row)
	}
	return l
}

func (l *linearState) dim() int { return l.s.Len() }

// addRow folds one observation into G and s. Rows with a missing linear
// feature contribute nothing; they are likewise dropped from partitioning,
// keeping parent and child statistics consistent.
func (l *linearState) addRow(df *dataframe.DataFrame, row int) {
	x := df.LinObsData(row)
	for _, v := range x {
		if math.IsNaN(v) {
			return
		}
	}
	d := len(x)
	y := df.OutcomePoint(row)
	for a := 0; a <= d; a++ {
		xa := 1.0
		if a < d {
			xa = x[a]
		}
		l.s.SetVec(a, l.s.AtVec(a)+xa*y)
		for b := a; b <= d; b++ {
			xb := 1.0
			if b < d {
				xb = x[b]
			}
			v := l.g.At(a, b) + xa*xb
			l.g.Set(a, b, v)
			if b != a {
				l.g.Set(b, a, v)
			}
		}
	}
	l.yty += y * y
	l.n++
}

// split partitions the state's rows by the chosen split, producing the two
// child states in a single pass. Missing rows follow naDir and are dropped
// when no direction was resolved.
func (l *linearState) split(
	df *dataframe.DataFrame,
	splitIdx []int,
	feature int,
	value float64,
	naDir int,
	categorical bool,
) (left, right *linearState) {
	left = newEmptyLinearState(l.dim())
	right = newEmptyLinearState(l.dim())
	for _, row := range splitIdx {
		v := df.Point(row, feature)
		switch {
		case math.IsNaN(v):
			switch naDir {
			case NALeft:
				left.addRow(df, row)
			case NARight:
				right.addRow(df, row)
			}
		case categorical && v == value, !categorical && v < value:
			left.addRow(df, row)
		default:
			right.addRow(df, row)
		}
	}
	return left, right
}

// ridgeScratch holds the reusable work matrices for candidate scoring, so a
// full threshold scan allocates the solver state once.
type ridgeScratch struct {
	a    *mat.Dense
	g    *mat.Dense
	s    *mat.VecDense
	beta *mat.VecDense
	tmp  *mat.VecDense
}

func newRidgeScratch(dim int) *ridgeScratch {
	return &ridgeScratch{
		a:    mat.NewDense(dim, dim, nil),
		g:    mat.NewDense(dim, dim, nil),
		s:    mat.NewVecDense(dim, nil),
		beta: mat.NewVecDense(dim, nil),
		tmp:  mat.NewVecDense(dim, nil),
	}
}

// ridgeSideScore solves (G + λJ)β = s, where J is the identity with a zero
// at the intercept entry so the intercept is never shrunk, and returns the
// side's residual contribution βᵀGβ - 2βᵀs. The constant Σy² term cancels
// across candidates and is omitted.
func ridgeSideScore(g *mat.Dense, s *mat.VecDense, penalty float64, scr *ridgeScratch) (float64, bool) {
	dim := s.Len()
	scr.a.Copy(g)
	for i := 0; i < dim-1; i++ {
		scr.a.Set(i, i, scr.a.At(i, i)+penalty)
	}
	if err := scr.beta.SolveVec(scr.a, s); err != nil {
		return 0, false
	}
	scr.tmp.MulVec(g, scr.beta)
	return mat.Dot(scr.tmp, scr.beta) - 2*mat.Dot(scr.beta, s), true
}

// ridgeSplitLoss scores one candidate partition: the left child's statistics
// are given directly, the right child's are derived by subtracting from the
// node total. Higher is better. Singular side systems disqualify the
// candidate.
func ridgeSplitLoss(total, left *linearState, penalty float64, scr *ridgeScratch) (float64, bool) {
	scoreL, ok := ridgeSideScore(left.g, left.s, penalty, scr)
	if !ok {
		return 0, false
	}
	scr.g.Sub(total.g, left.g)
	scr.s.SubVec(total.s, left.s)
	scoreR, ok := ridgeSideScore(scr.g, scr.s, penalty, scr)
	if !ok {
		return 0, false
	}
	return -(scoreL + scoreR), true
}

// solveRidgeCoefficients fits the penalized linear model over an averaging
// set and returns the coefficient vector, intercept last.
func solveRidgeCoefficients(df *dataframe.DataFrame, avgIdx []int, penalty float64) ([]float64, error) {
	state := newLinearState(df, avgIdx)
	scr := newRidgeScratch(state.dim())
	scr.a.Copy(state.g)
	for i := 0; i < state.dim()-1; i++ {
		scr.a.Set(i, i, scr.a.At(i, i)+penalty)
	}
	if err := scr.beta.SolveVec(scr.a, state.s); err != nil {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrSingularMatrix, "ridge system over %d rows", len(avgIdx))
	}
	coef := make([]float64, state.dim())
	for i := range coef {
		coef[i] = scr.beta.AtVec(i)
	}
	return coef, nil
}

// calculateRSS computes a partition's residual sum of squares. In linear
// mode this is the exact ridge residual Σy² - 2βᵀs + βᵀGβ; otherwise it is
// the residual around the partition mean. A singular ridge system falls back
// to the mean residual.
func calculateRSS(df *dataframe.DataFrame, idx []int, penalty float64, linear bool) float64 {
	if linear {
		state := newLinearState(df, idx)
		scr := newRidgeScratch(state.dim())
		if score, ok := ridgeSideScore(state.g, state.s, penalty, scr); ok {
			return state.yty + score
		}
	}
	mean := df.PartitionMean(idx)
	rss := 0.0
	for _, row := range idx {
		d := df.OutcomePoint(row) - mean
		rss += d * d
	}
	return rss
}
