package dataframe

import (
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/watanabe-lab/honestrf/pkg/errors"
)

func TestNew(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
	})
	y := []float64{0.5, 1.5, 2.5}

	df, err := New(x, y)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if df.NumRows() != 3 || df.NumColumns() != 2 {
		t.Errorf("dims = (%d, %d), want (3, 2)", df.NumRows(), df.NumColumns())
	}
	if got := df.Point(1, 1); got != 20 {
		t.Errorf("Point(1, 1) = %v, want 20", got)
	}
	if got := df.OutcomePoint(2); got != 2.5 {
		t.Errorf("OutcomePoint(2) = %v, want 2.5", got)
	}
	if df.HasNA() {
		t.Error("HasNA() = true on complete data")
	}
	if df.HasGroups() {
		t.Error("HasGroups() = true without groups (index-0 sentinel must be zero)")
	}
	if got := df.NumLinearFeatures(); got != 2 {
		t.Errorf("NumLinearFeatures() = %d, want 2 (all numeric by default)", got)
	}
}

func TestNewErrors(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	y := []float64{1, 2}

	tests := []struct {
		name string
		x    mat.Matrix
		y    []float64
		opts []Option
	}{
		{name: "outcome length mismatch", x: x, y: []float64{1}},
		{name: "categorical column out of range", x: x, y: y, opts: []Option{WithCategorical(5)}},
		{name: "monotonic vector wrong length", x: x, y: y, opts: []Option{WithMonotonicConstraints([]int{1})}},
		{name: "monotonic direction out of range", x: x, y: y, opts: []Option{WithMonotonicConstraints([]int{2, 0})}},
		{name: "monotonic constraint on categorical", x: x, y: y, opts: []Option{WithCategorical(0), WithMonotonicConstraints([]int{1, 0})}},
		{name: "group id below one", x: x, y: y, opts: []Option{WithGroups([]int{0, 1})}},
		{name: "groups wrong length", x: x, y: y, opts: []Option{WithGroups([]int{1})}},
		{name: "negative feature weight", x: x, y: y, opts: []Option{WithFeatureWeights([]float64{-1, 1})}},
		{name: "all-zero feature weights", x: x, y: y, opts: []Option{WithFeatureWeights([]float64{0, 0})}},
		{name: "linear column out of range", x: x, y: y, opts: []Option{WithLinearCols(3)}},
		{name: "categorical linear column", x: x, y: y, opts: []Option{WithCategorical(1), WithLinearCols(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.x, tt.y, tt.opts...); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestNewEmptyData(t *testing.T) {
	_, err := New(&mat.Dense{}, nil)
	if !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("New() error = %v, want ErrEmptyData", err)
	}
}

func TestCategoricalColumns(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{1, 0, 5, 2, 1, 6})
	df, err := New(x, []float64{1, 2}, WithCategorical(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !df.IsCategorical(1) || df.IsCategorical(0) {
		t.Error("categorical membership is wrong")
	}
	if got := df.CatCols(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("CatCols() = %v, want [1]", got)
	}
	if got := df.NumCols(); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("NumCols() = %v, want [0 2]", got)
	}
	// Categorical columns are excluded from the default linear pool.
	if got := df.LinCols(); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("LinCols() = %v, want [0 2]", got)
	}
}

func TestNADetection(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, math.NaN(), 3, 4})
	df, err := New(x, []float64{1, 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !df.HasNA() {
		t.Error("HasNA() = false with a NaN cell")
	}
}

func TestFeatureWeightPools(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	df, err := New(x, []float64{1, 2},
		WithFeatureWeights([]float64{0, 2, 1}),
		WithDeepFeatureWeights([]float64{1, 0, 0}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	w, vars := df.FeatureWeights()
	if !reflect.DeepEqual(vars, []int{1, 2}) {
		t.Errorf("primary pool variables = %v, want [1 2]", vars)
	}
	if !reflect.DeepEqual(w, []float64{2, 1}) {
		t.Errorf("primary pool weights = %v, want [2 1]", w)
	}

	dw, dvars := df.DeepFeatureWeights()
	if !reflect.DeepEqual(dvars, []int{0}) {
		t.Errorf("deep pool variables = %v, want [0]", dvars)
	}
	if !reflect.DeepEqual(dw, []float64{1}) {
		t.Errorf("deep pool weights = %v, want [1]", dw)
	}
}

func TestPartitionMean(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{0, 0, 0, 0})
	df, err := New(x, []float64{1, 2, 3, 10})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := df.PartitionMean([]int{0, 1, 2, 3}); got != 4 {
		t.Errorf("PartitionMean(all) = %v, want 4", got)
	}
	if got := df.PartitionMean([]int{3}); got != 10 {
		t.Errorf("PartitionMean({3}) = %v, want 10", got)
	}
	if got := df.PartitionMean(nil); !math.IsNaN(got) {
		t.Errorf("PartitionMean(empty) = %v, want NaN", got)
	}
}

func TestLinObsData(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{1, 7, 3, 4, 8, 6})
	df, err := New(x, []float64{1, 2}, WithCategorical(1), WithLinearCols(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := df.LinObsData(1); !reflect.DeepEqual(got, []float64{6}) {
		t.Errorf("LinObsData(1) = %v, want [6]", got)
	}
	if df.NumLinearFeatures() != 1 {
		t.Errorf("NumLinearFeatures() = %d, want 1", df.NumLinearFeatures())
	}
}

func TestGroups(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{1, 2, 3})
	df, err := New(x, []float64{1, 2, 3}, WithGroups([]int{2, 2, 5}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !df.HasGroups() {
		t.Error("HasGroups() = false with configured groups")
	}
	if got := df.Groups(); !reflect.DeepEqual(got, []int{2, 2, 5}) {
		t.Errorf("Groups() = %v, want [2 2 5]", got)
	}
}
