package forest

import (
	"math/rand"

	"github.com/watanabe-lab/honestrf/pkg/errors"
	"github.com/watanabe-lab/honestrf/tree"
)

// Params configures a forest. The embedded tree parameters apply to every
// tree; the remaining fields control sampling and orchestration.
type Params struct {
	tree.Params

	// NTree is the number of trees to grow.
	NTree int `json:"ntree"`

	// SampleSize is the number of rows drawn per tree. Zero means all rows.
	SampleSize int `json:"sample_size"`

	// Replace draws the per-tree sample with replacement.
	Replace bool `json:"replace"`

	// SplitRatio is the fraction of each tree's sample assigned to the
	// splitting set, the remainder becoming the averaging set. Values of 0
	// or 1 disable the honest partition and both sets hold the full sample.
	SplitRatio float64 `json:"split_ratio"`

	// OOBHonest makes each tree's splitting set the in-bag sample and its
	// averaging set the out-of-bag rows.
	OOBHonest bool `json:"oob_honest"`

	// DoubleBootstrap re-bootstraps the averaging set from the out-of-bag
	// rows under OOBHonest, leaving rows that are out of bag twice over.
	DoubleBootstrap bool `json:"double_bootstrap"`

	// NumWorkers bounds concurrent tree growth and batch prediction.
	// Non-positive uses one worker per CPU core.
	NumWorkers int `json:"num_workers"`

	// Verbose enables per-tree progress logging during Fit.
	Verbose bool `json:"verbose"`

	// Seed drives every random draw in the forest. Equal seeds with equal
	// data and parameters reproduce the forest exactly.
	Seed int64 `json:"seed"`
}

// DefaultParams returns the forest defaults over tree.DefaultParams.
func DefaultParams() Params {
	return Params{
		Params:     tree.DefaultParams(),
		NTree:      500,
		Replace:    true,
		SplitRatio: 1,
	}
}

func (p *Params) validate() error {
	if p.NTree <= 0 {
		return errors.NewValidationError("ntree", "must be positive", p.NTree)
	}
	if p.SplitRatio < 0 || p.SplitRatio > 1 {
		return errors.NewValidationError("splitRatio", "must lie in [0, 1]", p.SplitRatio)
	}
	if p.DoubleBootstrap && !p.OOBHonest {
		return errors.NewValidationError("doubleBootstrap", "requires oobHonest", p.DoubleBootstrap)
	}
	return nil
}

// drawIndices produces one tree's splitting and averaging sets from the
// tree's own random stream, keeping index drawing reproducible per tree
// regardless of growth order.
func (p *Params) drawIndices(rng *rand.Rand, nRows int) (splitIdx, avgIdx []int) {
	size := p.SampleSize
	if size <= 0 || (!p.Replace && size > nRows) {
		size = nRows
	}
	sample := make([]int, size)
	if p.Replace {
		for i := range sample {
			sample[i] = rng.Intn(nRows)
		}
	} else {
		copy(sample, rng.Perm(nRows)[:size])
	}

	if p.OOBHonest {
		inBag := make([]bool, nRows)
		for _, row := range sample {
			inBag[row] = true
		}
		var oob []int
		for row := 0; row < nRows; row++ {
			if !inBag[row] {
				oob = append(oob, row)
			}
		}
		if len(oob) == 0 {
			// A draw that touched every row leaves nothing to average
			// over; fall back to an even honest partition.
			return honestPartition(rng, sample, 0.5)
		}
		avg := oob
		if p.DoubleBootstrap {
			avg = make([]int, len(oob))
			for i := range avg {
				avg[i] = oob[rng.Intn(len(oob))]
			}
		}
		return sample, avg
	}

	if p.SplitRatio > 0 && p.SplitRatio < 1 {
		return honestPartition(rng, sample, p.SplitRatio)
	}
	return sample, append([]int(nil), sample...)
}

// honestPartition shuffles a sample and cuts it into disjoint splitting and
// averaging sets, keeping at least one row on each side.
func honestPartition(rng *rand.Rand, sample []int, ratio float64) (splitIdx, avgIdx []int) {
	shuffled := append([]int(nil), sample...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	cut := int(ratio * float64(len(shuffled)))
	if cut < 1 {
		cut = 1
	}
	if cut > len(shuffled)-1 {
		cut = len(shuffled) - 1
	}
	return shuffled[:cut], shuffled[cut:]
}
