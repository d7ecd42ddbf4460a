package tree

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/watanabe-lab/honestrf/dataframe"
	pkgerrors "github.com/watanabe-lab/honestrf/pkg/errors"
)

func TestPredictStepTree(t *testing.T) {
	df := stepFrame(t)
	idx := allRows(8)
	tr, err := Grow(df, stepParams(), idx, idx, 42)
	if err != nil {
		t.Fatalf("Grow() error = %v", err)
	}

	x := mat.NewDense(8, 2, nil)
	for i := 0; i < 8; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, float64(i))
	}
	pred, err := tr.Predict(x, df, &PredictOptions{TerminalNodes: true})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	want := []float64{1, 1, 1, 1, 5, 5, 5, 5}
	for i, v := range pred.Values {
		if v != want[i] {
			t.Errorf("Values[%d] = %v, want %v", i, v, want[i])
		}
	}
	for i := 1; i < 4; i++ {
		if pred.TerminalNodes[i] != pred.TerminalNodes[0] {
			t.Errorf("rows 0 and %d landed in different leaves", i)
		}
	}
	if pred.TerminalNodes[4] == pred.TerminalNodes[0] {
		t.Error("rows on opposite sides of the split share a leaf")
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	df := stepFrame(t)
	idx := allRows(8)
	tr, err := Grow(df, stepParams(), idx, idx, 42)
	if err != nil {
		t.Fatalf("Grow() error = %v", err)
	}

	x := mat.NewDense(1, 1, []float64{0})
	if _, err := tr.Predict(x, df, nil); err == nil {
		t.Fatal("Predict() should reject a column-count mismatch")
	} else {
		var dimErr *pkgerrors.DimensionError
		if !pkgerrors.As(err, &dimErr) {
			t.Errorf("error = %v, want a DimensionError", err)
		}
	}
}

func TestPredictUnresolvedNADirection(t *testing.T) {
	df := stepFrame(t)
	idx := allRows(8)
	// No missing values in training and no NADirection resolution: the
	// split keeps an unset default direction.
	tr, err := Grow(df, stepParams(), idx, idx, 42)
	if err != nil {
		t.Fatalf("Grow() error = %v", err)
	}

	x := mat.NewDense(1, 2, []float64{1, math.NaN()})
	_, err = tr.Predict(x, df, nil)
	if !pkgerrors.Is(err, pkgerrors.ErrUnresolvedNADirection) {
		t.Errorf("Predict() error = %v, want ErrUnresolvedNADirection", err)
	}
}

func TestPredictResolvedNADirection(t *testing.T) {
	df := stepFrame(t)
	idx := allRows(8)
	p := stepParams()
	p.NADirection = true
	tr, err := Grow(df, p, idx, idx, 42)
	if err != nil {
		t.Fatalf("Grow() error = %v", err)
	}
	if tr.Root().NADefaultDirection() == NAUnset {
		t.Fatal("NADirection should have resolved a default routing")
	}

	x := mat.NewDense(1, 2, []float64{1, math.NaN()})
	pred, err := tr.Predict(x, df, nil)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if v := pred.Values[0]; v != 1 && v != 5 {
		t.Errorf("missing row predicted %v, want one of the two leaf means", v)
	}
}

func TestPredictExcludeRows(t *testing.T) {
	x := mat.NewDense(8, 2, nil)
	for i := 0; i < 8; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, float64(i))
	}
	y := []float64{0, 2, 1, 1, 5, 5, 5, 5}
	df, err := dataframe.New(x, y, dataframe.WithFeatureWeights([]float64{0, 1}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	idx := allRows(8)
	tr, err := Grow(df, stepParams(), idx, idx, 42)
	if err != nil {
		t.Fatalf("Grow() error = %v", err)
	}

	probe := mat.NewDense(1, 2, []float64{1, 0})

	pred, err := tr.Predict(probe, df, nil)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if pred.Values[0] != 1 {
		t.Fatalf("unrestricted prediction = %v, want 1", pred.Values[0])
	}

	// Excluding row 0 (outcome 0) shifts the leaf mean to (2+1+1)/3.
	pred, err = tr.Predict(probe, df, &PredictOptions{ExcludeRows: []int{0}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if got, want := pred.Values[0], 4.0/3.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("restricted prediction = %v, want %v", got, want)
	}

	// Stripping the leaf below the strict minimum falls back to the
	// stored mean.
	pred, err = tr.Predict(probe, df, &PredictOptions{
		ExcludeRows:       []int{0, 1},
		NodesizeStrictAvg: 3,
	})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if pred.Values[0] != 1 {
		t.Errorf("fallback prediction = %v, want the stored leaf mean 1", pred.Values[0])
	}
}
