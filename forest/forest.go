// Package forest orchestrates ensembles of honest trees: per-tree index
// sampling, parallel growth, aggregate prediction, out-of-bag error, and
// whole-forest flatten/rebuild round trips. The per-tree semantics live in
// the tree package; this package only decides sampling, tree count, and
// threading.
package forest

import (
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/watanabe-lab/honestrf/core/parallel"
	"github.com/watanabe-lab/honestrf/dataframe"
	"github.com/watanabe-lab/honestrf/pkg/errors"
	"github.com/watanabe-lab/honestrf/pkg/log"
	"github.com/watanabe-lab/honestrf/tree"
)

// Forest is an ensemble of honest regression trees.
type Forest struct {
	params Params
	df     *dataframe.DataFrame
	trees  []*tree.Tree
	fitted bool
	logger log.Logger
}

// New validates the configuration and returns an unfitted forest.
func New(params Params) (*Forest, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Forest{
		params: params,
		logger: log.GetLoggerWithName("forest"),
	}, nil
}

// Params returns the forest configuration.
func (f *Forest) Params() Params { return f.params }

// Trees returns the grown trees. Nil before Fit.
func (f *Forest) Trees() []*tree.Tree { return f.trees }

// Fit grows the ensemble over df. Each tree draws its index sets and its
// random stream from its own seed, so the forest is reproducible regardless
// of how growth is scheduled across workers.
func (f *Forest) Fit(df *dataframe.DataFrame) error {
	start := time.Now()
	nRows := df.NumRows()

	seedRng := rand.New(rand.NewSource(f.params.Seed))
	seeds := make([]int64, f.params.NTree)
	for i := range seeds {
		seeds[i] = seedRng.Int63()
	}

	trees := make([]*tree.Tree, f.params.NTree)
	errs := make([]error, f.params.NTree)
	parallel.ParallelizeWithWorkers(f.params.NTree, f.params.NumWorkers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			rng := rand.New(rand.NewSource(seeds[i]))
			splitIdx, avgIdx := f.params.drawIndices(rng, nRows)
			t, err := tree.Grow(df, f.params.Params, splitIdx, avgIdx, seeds[i])
			if err != nil {
				errs[i] = errors.Wrapf(err, "tree %d", i)
				continue
			}
			trees[i] = t
			if f.params.Verbose {
				f.logger.Debug("tree grown",
					log.SeedKey, seeds[i],
					log.NodeCountKey, t.NodeCount(),
				)
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	f.df = df
	f.trees = trees
	f.fitted = true
	f.logger.Info("forest fitted",
		log.ComponentKey, "forest",
		log.OperationKey, "fit",
		log.SamplesKey, nRows,
		log.FeaturesKey, df.NumColumns(),
		log.TreeCountKey, f.params.NTree,
		log.SeedKey, f.params.Seed,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict returns the per-row mean of the tree predictions for x, which
// must share the training frame's column layout.
func (f *Forest) Predict(x mat.Matrix) ([]float64, error) {
	if !f.fitted {
		return nil, errors.NewNotFittedError("Forest", "Predict")
	}
	nRows, _ := x.Dims()
	sums := make([]float64, nRows)
	opts := &tree.PredictOptions{NumWorkers: f.params.NumWorkers}
	for _, t := range f.trees {
		pred, err := t.Predict(x, f.df, opts)
		if err != nil {
			return nil, err
		}
		for i, v := range pred.Values {
			sums[i] += v
		}
	}
	for i := range sums {
		sums[i] /= float64(len(f.trees))
	}
	return sums, nil
}

// OOBError returns the out-of-bag mean squared error of the fitted forest.
// Rows that were in bag for every tree carry no out-of-bag prediction and
// are left out of the mean.
func (f *Forest) OOBError() (float64, error) {
	if !f.fitted {
		return 0, errors.NewNotFittedError("Forest", "OOBError")
	}
	nRows := f.df.NumRows()
	predSum := make([]float64, nRows)
	counts := make([]float64, nRows)
	for _, t := range f.trees {
		err := t.GetOOBPrediction(predSum, counts, f.df, f.params.OOBHonest, f.params.DoubleBootstrap, nil, nil)
		if err != nil {
			return 0, err
		}
	}

	mse := 0.0
	scored := 0
	for i := range predSum {
		if counts[i] == 0 {
			continue
		}
		d := predSum[i]/counts[i] - f.df.OutcomePoint(i)
		mse += d * d
		scored++
	}
	if scored == 0 {
		return 0, errors.New("no out-of-bag rows: every row was sampled by every tree")
	}
	mse /= float64(scored)
	f.logger.Info("out-of-bag error computed",
		log.ComponentKey, "forest",
		log.OperationKey, "oob",
		log.TreeCountKey, len(f.trees),
		log.OOBErrorKey, mse,
	)
	return mse, nil
}

// Flatten serializes every tree into its flat form, in tree order.
func (f *Forest) Flatten() ([]*tree.FlatTree, error) {
	if !f.fitted {
		return nil, errors.NewNotFittedError("Forest", "Flatten")
	}
	flats := make([]*tree.FlatTree, len(f.trees))
	for i, t := range f.trees {
		flats[i] = t.FlatTree()
	}
	return flats, nil
}

// FromFlat rebuilds a fitted forest from flattened trees and the training
// frame they were grown on. Leaf index sets and ridge coefficients come back
// lazily on first prediction.
func FromFlat(params Params, df *dataframe.DataFrame, flats []*tree.FlatTree) (*Forest, error) {
	f, err := New(params)
	if err != nil {
		return nil, err
	}
	f.trees = make([]*tree.Tree, len(flats))
	for i, flat := range flats {
		t, err := tree.Reconstruct(flat, params.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "tree %d", i)
		}
		f.trees[i] = t
	}
	f.df = df
	f.fitted = true
	f.logger.Info("forest rebuilt from flat trees",
		log.ComponentKey, "forest",
		log.OperationKey, "reconstruct",
		log.TreeCountKey, len(flats),
	)
	return f, nil
}
