package analysis

// Thresholds tunes the heuristic checks.
type Thresholds struct {
	// FairnessRatio is the fraction of the mean meal count below which an
	// actor is flagged as starved.
	FairnessRatio float64 `yaml:"fairness_ratio" json:"fairness_ratio"`
	// MinSampleFactor times the actor count is the minimum number of meals
	// before fairness is judged at all.
	MinSampleFactor int `yaml:"min_sample_factor" json:"min_sample_factor"`
	// MaxOffenders caps how many bad lines the format check reports.
	MaxOffenders int `yaml:"max_offenders" json:"max_offenders"`
}

// DefaultThresholds returns the stock values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FairnessRatio:   0.5,
		MinSampleFactor: 2,
		MaxOffenders:    5,
	}
}

// WithDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.FairnessRatio <= 0 {
		t.FairnessRatio = d.FairnessRatio
	}
	if t.MinSampleFactor <= 0 {
		t.MinSampleFactor = d.MinSampleFactor
	}
	if t.MaxOffenders <= 0 {
		t.MaxOffenders = d.MaxOffenders
	}
	return t
}
