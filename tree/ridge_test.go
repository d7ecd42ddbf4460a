package tree

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/watanabe-lab/honestrf/dataframe"
)

// lineFrame holds y = 2x + 1 exactly.
func lineFrame(t *testing.T, n int) *dataframe.DataFrame {
	t.Helper()
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i))
		y[i] = 2*float64(i) + 1
	}
	df, err := dataframe.New(x, y)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return df
}

func TestSolveRidgeCoefficients(t *testing.T) {
	df := lineFrame(t, 10)
	coef, err := solveRidgeCoefficients(df, allRows(10), 1e-6)
	if err != nil {
		t.Fatalf("solveRidgeCoefficients() error = %v", err)
	}
	if len(coef) != 2 {
		t.Fatalf("len(coef) = %d, want 2 (slope and intercept)", len(coef))
	}
	if math.Abs(coef[0]-2) > 1e-3 {
		t.Errorf("slope = %v, want 2", coef[0])
	}
	if math.Abs(coef[1]-1) > 1e-3 {
		t.Errorf("intercept = %v, want 1", coef[1])
	}
}

func TestLinearStateSplitIsAdditive(t *testing.T) {
	df := lineFrame(t, 12)
	idx := allRows(12)
	total := newLinearState(df, idx)

	left, right := total.split(df, idx, 0, 6, NAUnset, false)
	if left.n+right.n != total.n {
		t.Fatalf("children hold %d rows, parent %d", left.n+right.n, total.n)
	}

	var g mat.Dense
	g.Add(left.g, right.g)
	if !mat.EqualApprox(&g, total.g, 1e-9) {
		t.Error("children Gram matrices do not sum to the parent's")
	}
	var s mat.VecDense
	s.AddVec(left.s, right.s)
	if !mat.EqualApprox(&s, total.s, 1e-9) {
		t.Error("children moment vectors do not sum to the parent's")
	}
}

func TestGrowRidgeLeaf(t *testing.T) {
	df := lineFrame(t, 20)
	p := DefaultParams()
	p.Mtry = 1
	p.Linear = true
	p.OverfitPenalty = 1e-6
	// Force a single-leaf tree so the root solves the whole line.
	p.MinNodeSizeSpt = 100
	p.MinNodeSizeAvg = 100
	p.MaxDepth = 2

	idx := allRows(20)
	tr, err := Grow(df, p, idx, idx, 9)
	if err != nil {
		t.Fatalf("Grow() error = %v", err)
	}
	if !tr.Root().IsLeaf() {
		t.Fatal("root should be a leaf")
	}

	x := mat.NewDense(5, 1, []float64{0, 2.5, 7, 12.25, 19})
	pred, err := tr.Predict(x, df, &PredictOptions{Coefficients: true})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		want := 2*x.At(i, 0) + 1
		if math.Abs(pred.Values[i]-want) > 1e-3 {
			t.Errorf("f(%v) = %v, want %v", x.At(i, 0), pred.Values[i], want)
		}
	}
	if r, c := pred.Coefficients.Dims(); r != 5 || c != 2 {
		t.Errorf("Coefficients dims = (%d, %d), want (5, 2)", r, c)
	}
}

func TestGrowRidgeSplitFindsBreakpoint(t *testing.T) {
	// Piecewise linear: slope +1 up to x = 9, then slope -1. Fitting two
	// exact lines leaves zero residual only when the split lands on the
	// breakpoint.
	const n = 20
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i)
		x.Set(i, 0, v)
		if v < 10 {
			y[i] = v
		} else {
			y[i] = 20 - v
		}
	}
	df, err := dataframe.New(x, y)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p := DefaultParams()
	p.Mtry = 1
	p.Linear = true
	p.OverfitPenalty = 1e-6
	p.MinNodeSizeSpt = 1
	p.MinNodeSizeAvg = 1
	p.MinNodeSizeToSplitSpt = 2
	p.MinNodeSizeToSplitAvg = 2
	p.MaxDepth = 1

	idx := allRows(n)
	tr, err := Grow(df, p, idx, idx, 4)
	if err != nil {
		t.Fatalf("Grow() error = %v", err)
	}
	root := tr.Root()
	if root.IsLeaf() {
		t.Fatal("root should split at the breakpoint")
	}
	if v := root.SplitValue(); v <= 9 || v > 10 {
		t.Errorf("SplitValue = %v, want in (9, 10]", v)
	}
}

func TestCalculateRSS(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := []float64{1, 3, 5, 7}
	df, err := dataframe.New(x, y)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	idx := allRows(4)

	// Around the mean 4: (9 + 1 + 1 + 9).
	if got := calculateRSS(df, idx, 1, false); math.Abs(got-20) > 1e-9 {
		t.Errorf("mean RSS = %v, want 20", got)
	}

	// The data is an exact line, so the ridge residual is near zero.
	if got := calculateRSS(df, idx, 1e-9, true); got > 1e-6 {
		t.Errorf("ridge RSS = %v, want ~0", got)
	}
}
