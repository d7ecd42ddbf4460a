package tree

import (
	"github.com/watanabe-lab/honestrf/dataframe"
	"github.com/watanabe-lab/honestrf/pkg/errors"
)

// Params is the hyperparameter snapshot a tree is grown with. The zero value
// is not usable; start from DefaultParams and override.
type Params struct {
	// Mtry is the number of candidate features sampled at each split.
	Mtry int `json:"mtry"`

	// MinNodeSizeSpt and MinNodeSizeAvg are the minimum splitting-set and
	// averaging-set sizes a node must have to be considered for splitting.
	MinNodeSizeSpt int `json:"min_node_size_spt"`
	MinNodeSizeAvg int `json:"min_node_size_avg"`

	// MinNodeSizeToSplitSpt and MinNodeSizeToSplitAvg are the minimum sizes
	// each side of a candidate split must retain for the split to be
	// feasible.
	MinNodeSizeToSplitSpt int `json:"min_node_size_to_split_spt"`
	MinNodeSizeToSplitAvg int `json:"min_node_size_to_split_avg"`

	// MinSplitGain, when positive, requires a cross-validated R-squared
	// improvement of at least this much for a split to be kept. Only valid
	// in ridge (Linear) mode.
	MinSplitGain float64 `json:"min_split_gain"`

	// NumTimesCV is how many times the R-squared improvement estimator is
	// evaluated and averaged for the MinSplitGain rule.
	NumTimesCV int `json:"num_times_cv"`

	// MaxDepth bounds the recursion depth. Mandatory and nonzero.
	MaxDepth int `json:"max_depth"`

	// InteractionDepth is the depth at or below which the deep
	// feature-weight pool replaces the primary pool for feature sampling.
	// Zero means the deep pool is never used.
	InteractionDepth int `json:"interaction_depth"`

	// SplitMiddle places numeric thresholds at the midpoint between
	// consecutive distinct values; when false the larger value is used.
	SplitMiddle bool `json:"split_middle"`

	// MaxObs caps the number of splitting observations scanned when
	// enumerating candidate thresholds. Zero means no cap.
	MaxObs int `json:"max_obs"`

	// NADirection enables random resolution of the missing-value default
	// direction at splits that saw no missing values.
	NADirection bool `json:"na_direction"`

	// Linear enables ridge-regression leaves.
	Linear bool `json:"linear"`

	// OverfitPenalty is the ridge regularization strength in Linear mode.
	OverfitPenalty float64 `json:"overfit_penalty"`
}

// DefaultParams returns the parameter defaults for a single tree.
func DefaultParams() Params {
	return Params{
		Mtry:                  1,
		MinNodeSizeSpt:        3,
		MinNodeSizeAvg:        3,
		MinNodeSizeToSplitSpt: 3,
		MinNodeSizeToSplitAvg: 3,
		NumTimesCV:            1,
		MaxDepth:              99,
		SplitMiddle:           true,
		OverfitPenalty:        1.0,
	}
}

// validate checks the configuration against the data and index sets before
// any recursion begins. All failures here are fatal configuration errors.
func (p *Params) validate(df *dataframe.DataFrame, splitIdx, avgIdx []int) error {
	if p.MinNodeSizeAvg <= 0 {
		return errors.NewValidationError("minNodeSizeAvg", "cannot be set to 0", p.MinNodeSizeAvg)
	}
	if p.MinNodeSizeSpt <= 0 {
		return errors.NewValidationError("minNodeSizeSpt", "cannot be set to 0", p.MinNodeSizeSpt)
	}
	if p.MinNodeSizeToSplitSpt <= 0 {
		return errors.NewValidationError("minNodeSizeToSplitSpt", "cannot be set to 0", p.MinNodeSizeToSplitSpt)
	}
	if p.MinNodeSizeToSplitAvg <= 0 {
		return errors.NewValidationError("minNodeSizeToSplitAvg", "cannot be set to 0", p.MinNodeSizeToSplitAvg)
	}
	if len(avgIdx) == 0 {
		return errors.NewValidationError("averagingSampleIndex", "size cannot be 0", len(avgIdx))
	}
	if len(splitIdx) == 0 {
		return errors.NewValidationError("splittingSampleIndex", "size cannot be 0", len(splitIdx))
	}
	if p.MinNodeSizeToSplitAvg > len(avgIdx) {
		return errors.NewValidationError("minNodeSizeToSplitAvg",
			"cannot exceed total elements in the averaging samples", p.MinNodeSizeToSplitAvg)
	}
	if p.MinNodeSizeToSplitSpt > len(splitIdx) {
		return errors.NewValidationError("minNodeSizeToSplitSpt",
			"cannot exceed total elements in the splitting samples", p.MinNodeSizeToSplitSpt)
	}
	if p.MaxDepth <= 0 {
		return errors.NewValidationError("maxDepth", "cannot be set to 0", p.MaxDepth)
	}
	if p.MinSplitGain != 0 && !p.Linear {
		return errors.NewValidationError("minSplitGain", "cannot be set without linear mode", p.MinSplitGain)
	}
	if p.Mtry <= 0 {
		return errors.NewValidationError("mtry", "cannot be set to 0", p.Mtry)
	}
	if p.Mtry > df.NumColumns() {
		return errors.NewValidationError("mtry", "cannot exceed total amount of features", p.Mtry)
	}
	if _, vars := df.FeatureWeights(); p.Mtry > len(vars) {
		return errors.NewValidationError("mtry", "cannot exceed number of positive-weight features", p.Mtry)
	}
	if _, vars := df.DeepFeatureWeights(); p.InteractionDepth > 0 && p.Mtry > len(vars) {
		return errors.NewValidationError("mtry", "cannot exceed number of positive-weight deep features", p.Mtry)
	}
	if p.Linear && p.OverfitPenalty <= 0 {
		return errors.NewValidationError("overfitPenalty", "must be positive in linear mode", p.OverfitPenalty)
	}
	for _, i := range avgIdx {
		if i < 0 || i >= df.NumRows() {
			return errors.NewValidationError("averagingSampleIndex", "row index out of range", i)
		}
	}
	for _, i := range splitIdx {
		if i < 0 || i >= df.NumRows() {
			return errors.NewValidationError("splittingSampleIndex", "row index out of range", i)
		}
	}
	return nil
}

// normalized returns a copy with derived defaults resolved against the data:
// MaxObs falls back to the splitting-set size, NumTimesCV to 1, and
// InteractionDepth to MaxDepth (primary pool everywhere).
func (p Params) normalized(splitLen int) Params {
	if p.MaxObs <= 0 || p.MaxObs > splitLen {
		p.MaxObs = splitLen
	}
	if p.NumTimesCV <= 0 {
		p.NumTimesCV = 1
	}
	if p.InteractionDepth <= 0 {
		p.InteractionDepth = p.MaxDepth
	}
	return p
}
