package trips

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrPolicy is returned by Validate for rules that cannot produce labels.
var ErrPolicy = errors.New("trips: invalid label policy")

// NumLabels is the width of a label vector.
const NumLabels = 4

// Label indices.
const (
	ShortTerm = iota
	Seasonal
	Exploration
	Return
)

// LabelNames are the field names in vector order.
var LabelNames = [NumLabels]string{
	"short_term_probability",
	"seasonal_probability",
	"exploration_probability",
	"return_probability",
}

// Labels is one label vector, every field in [0,1].
type Labels [NumLabels]float64

// Slice copies the vector into a new slice.
func (l Labels) Slice() []float64 {
	return append([]float64(nil), l[:]...)
}

// LabelPolicy derives a label vector from a feature vector. The policy encodes
// assumptions about travellers, it is not validated against real behaviour.
type LabelPolicy interface {
	Label(f Features, src rand.Source) Labels
}

// BetaParams are the shape parameters of a Beta distribution.
type BetaParams struct {
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
}

func (b BetaParams) valid() bool {
	return b.Alpha > 0 && b.Beta > 0 && !math.IsInf(b.Alpha, 0) && !math.IsInf(b.Beta, 0)
}

func (b BetaParams) sample(src rand.Source) float64 {
	return distuv.Beta{Alpha: b.Alpha, Beta: b.Beta, Src: src}.Rand()
}

// HeuristicPolicy samples each probability from a Beta distribution chosen
// by a rule on the features. The four fields are independent given the features.
type HeuristicPolicy struct {
	// RecentDays is the threshold in days separating recent travellers.
	RecentDays float64 `yaml:"recent_days"`
	// ShortTermRecent applies when the last trip is at most RecentDays old.
	ShortTermRecent BetaParams `yaml:"short_term_recent"`
	// ShortTermStale applies when the last trip is older than RecentDays.
	ShortTermStale BetaParams `yaml:"short_term_stale"`

	// SeasonMidpoint splits the normalized season field.
	SeasonMidpoint float64    `yaml:"season_midpoint"`
	SeasonalHigh   BetaParams `yaml:"seasonal_high"`
	SeasonalLow    BetaParams `yaml:"seasonal_low"`

	// Exploration is scaled by destination variability.
	Exploration BetaParams `yaml:"exploration"`
	// Return is scaled by one minus destination variability.
	Return BetaParams `yaml:"return"`
}

// DefaultHeuristicPolicy returns the stock heuristic rules.
func DefaultHeuristicPolicy() HeuristicPolicy {
	return HeuristicPolicy{
		RecentDays:      30,
		ShortTermRecent: BetaParams{8, 2},
		ShortTermStale:  BetaParams{2, 8},
		SeasonMidpoint:  0.5,
		SeasonalHigh:    BetaParams{6, 4},
		SeasonalLow:     BetaParams{3, 7},
		Exploration:     BetaParams{3, 7},
		Return:          BetaParams{7, 3},
	}
}

// Validate rejects non-positive Beta shapes and a negative or non-finite
// recency threshold or season midpoint.
func (p HeuristicPolicy) Validate() error {
	if !(p.RecentDays >= 0) || math.IsInf(p.RecentDays, 0) {
		return errors.Wrapf(ErrPolicy, "recent_days %v", p.RecentDays)
	}
	if math.IsNaN(p.SeasonMidpoint) || math.IsInf(p.SeasonMidpoint, 0) {
		return errors.Wrapf(ErrPolicy, "season_midpoint %v", p.SeasonMidpoint)
	}
	for _, b := range []struct {
		name string
		BetaParams
	}{
		{"short_term_recent", p.ShortTermRecent},
		{"short_term_stale", p.ShortTermStale},
		{"seasonal_high", p.SeasonalHigh},
		{"seasonal_low", p.SeasonalLow},
		{"exploration", p.Exploration},
		{"return", p.Return},
	} {
		if !b.valid() {
			return errors.Wrapf(ErrPolicy, "%s alpha %v beta %v", b.name, b.Alpha, b.Beta)
		}
	}
	return nil
}

// Label implements LabelPolicy.
func (p HeuristicPolicy) Label(f Features, src rand.Source) (l Labels) {
	if f.Days() > p.RecentDays {
		l[ShortTerm] = p.ShortTermStale.sample(src)
	} else {
		l[ShortTerm] = p.ShortTermRecent.sample(src)
	}
	if f[Season] > p.SeasonMidpoint {
		l[Seasonal] = p.SeasonalHigh.sample(src)
	} else {
		l[Seasonal] = p.SeasonalLow.sample(src)
	}
	variability := clamp01(f[DestinationVariability])
	l[Exploration] = variability * p.Exploration.sample(src)
	l[Return] = (1 - variability) * p.Return.sample(src)
	return
}

// UniformPolicy ignores the features and draws every field from U[0,1).
type UniformPolicy struct{}

// Label implements LabelPolicy.
func (UniformPolicy) Label(_ Features, src rand.Source) (l Labels) {
	rnd := rand.New(src)
	for i := range l {
		l[i] = rnd.Float64()
	}
	return
}

// Synthesize labels every feature vector with policy, seeded by seed.
func Synthesize(features []Features, policy LabelPolicy, seed int64) []Labels {
	if len(features) == 0 {
		return nil
	}
	src := rand.NewSource(uint64(seed))
	out := make([]Labels, len(features))
	for i, f := range features {
		out[i] = policy.Label(f, src)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
