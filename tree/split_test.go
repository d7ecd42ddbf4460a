package tree

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/watanabe-lab/honestrf/dataframe"
)

func TestSampleFeatures(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("draws without replacement", func(t *testing.T) {
		weights := []float64{1, 1, 1, 1}
		variables := []int{0, 1, 2, 3}
		for trial := 0; trial < 50; trial++ {
			got := sampleFeatures(4, weights, variables, rng)
			sort.Ints(got)
			for i, v := range got {
				if v != i {
					t.Fatalf("draw is not a permutation of the pool: %v", got)
				}
			}
		}
	})

	t.Run("zero-weight features are never drawn", func(t *testing.T) {
		weights := []float64{0, 5, 0}
		variables := []int{2, 7, 9}
		for trial := 0; trial < 50; trial++ {
			got := sampleFeatures(1, weights, variables, rng)
			if len(got) != 1 || got[0] != 7 {
				t.Fatalf("got %v, want [7]", got)
			}
		}
	})

	t.Run("exhausted pool stops short", func(t *testing.T) {
		got := sampleFeatures(3, []float64{1, 0}, []int{4, 5}, rng)
		if len(got) != 1 || got[0] != 4 {
			t.Fatalf("got %v, want [4]", got)
		}
	})
}

func TestDetermineBestSplit(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("no usable candidate", func(t *testing.T) {
		c := newSplitCandidates(3)
		if _, ok := determineBestSplit(c, rng); ok {
			t.Error("all-sentinel candidates should produce no split")
		}
	})

	t.Run("single winner", func(t *testing.T) {
		c := newSplitCandidates(3)
		c.loss[1] = 10
		c.value[1] = 2.5
		c.feature[1] = 4
		c.count[1] = 12
		c.loss[2] = 3
		c.value[2] = 0.5
		c.feature[2] = 1
		c.count[2] = 12

		best, ok := determineBestSplit(c, rng)
		if !ok {
			t.Fatal("expected a split")
		}
		if best.feature != 4 || best.value != 2.5 || best.loss != 10 {
			t.Errorf("best = %+v, want feature 4 at 2.5 with loss 10", best)
		}
	})

	t.Run("ties break randomly across candidates", func(t *testing.T) {
		seen := map[int]bool{}
		for trial := 0; trial < 200; trial++ {
			c := newSplitCandidates(2)
			for i := 0; i < 2; i++ {
				c.loss[i] = 7
				c.value[i] = 1
				c.feature[i] = i
				c.count[i] = 10
			}
			best, ok := determineBestSplit(c, rng)
			if !ok {
				t.Fatal("expected a split")
			}
			seen[best.feature] = true
		}
		if !seen[0] || !seen[1] {
			t.Errorf("tie-break never chose one side: %v", seen)
		}
	})
}

func TestFindBestSplitCategorical(t *testing.T) {
	// Category 2 isolates the high outcomes.
	x := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})
	y := []float64{1, 1, 2, 1, 2, 1, 9, 10, 11}
	df, err := dataframe.New(x, y, dataframe.WithCategorical(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p := DefaultParams()
	p.Mtry = 1
	p.MinNodeSizeToSplitSpt = 2
	p.MinNodeSizeToSplitAvg = 2
	p.MaxDepth = 3

	idx := allRows(9)
	tr, err := Grow(df, p, idx, idx, 8)
	if err != nil {
		t.Fatalf("Grow() error = %v", err)
	}
	root := tr.Root()
	if root.IsLeaf() {
		t.Fatal("root should split")
	}
	if got := root.SplitValue(); got != 2 {
		t.Errorf("SplitValue = %v, want category 2", got)
	}
	if got := root.LeftChild().AverageCount(); got != 3 {
		t.Errorf("matching-category side holds %d rows, want 3", got)
	}
	if got := root.LeftChild().PredictWeight(); got != 10 {
		t.Errorf("matching-category leaf predicts %v, want 10", got)
	}
}

func TestFindBestSplitImputeCategorical(t *testing.T) {
	x := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, math.NaN()})
	y := []float64{1, 1, 2, 1, 2, 1, 9, 10, 11}
	df, err := dataframe.New(x, y, dataframe.WithCategorical(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p := DefaultParams()
	p.Mtry = 1
	p.MinNodeSizeToSplitSpt = 2
	p.MinNodeSizeToSplitAvg = 2
	p.MaxDepth = 3

	idx := allRows(9)
	tr, err := Grow(df, p, idx, idx, 8)
	if err != nil {
		t.Fatalf("Grow() error = %v", err)
	}
	root := tr.Root()
	if root.IsLeaf() {
		t.Fatal("root should split")
	}
	if got := root.SplitValue(); got != 2 {
		t.Errorf("SplitValue = %v, want category 2", got)
	}
	// The missing row's outcome (11) belongs with the high category.
	if got := root.NADefaultDirection(); got != NALeft {
		t.Errorf("NADefaultDirection = %d, want %d", got, NALeft)
	}
	if got := root.NALeftCount(); got != 1 {
		t.Errorf("NALeftCount = %d, want 1", got)
	}
}

func TestMaxObsCapsScannedRows(t *testing.T) {
	df := stepFrame(t)
	s := &splitter{df: df, params: stepParams()}

	full, _, _ := s.collectObs(allRows(8), 1, 0)
	if len(full) != 8 {
		t.Fatalf("uncapped scan saw %d rows, want 8", len(full))
	}
	capped, _, _ := s.collectObs(allRows(8), 1, 3)
	if len(capped) != 3 {
		t.Errorf("capped scan saw %d rows, want 3", len(capped))
	}
}

func TestThresholdPlacement(t *testing.T) {
	df := stepFrame(t)

	if !DefaultParams().SplitMiddle {
		t.Error("DefaultParams().SplitMiddle = false, want midpoint placement by default")
	}

	mid := &splitter{df: df, params: Params{SplitMiddle: true}}
	if got := mid.threshold(3, 4); got != 3.5 {
		t.Errorf("midpoint threshold = %v, want 3.5", got)
	}
	raw := &splitter{df: df, params: Params{SplitMiddle: false}}
	if got := raw.threshold(3, 4); got != 4 {
		t.Errorf("raw threshold = %v, want the larger value 4", got)
	}
}
