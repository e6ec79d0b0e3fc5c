package export

import (
	"github.com/pkg/errors"

	"github.com/neurlang/tripmodel/architecture"
	"github.com/neurlang/tripmodel/convert"
	"github.com/neurlang/tripmodel/datasets/trips"
	"github.com/neurlang/tripmodel/learning"
	"github.com/neurlang/tripmodel/trainer"
)

// Tier is one export attempt: a model source and the restrictions it is
// compiled under.
type Tier struct {
	Name   string
	Build  func() (convert.Model, error)
	Config convert.Config
}

// PrimaryTier exports model as trained, under the baseline config.
func PrimaryTier(model convert.Model) Tier {
	return Tier{
		Name:   "primary",
		Build:  func() (convert.Model, error) { return model, nil },
		Config: convert.BaselineConfig(),
	}
}

// QuantizedTier exports model with int8 kernels under baseline ops.
func QuantizedTier(model convert.Model) Tier {
	cfg := convert.BaselineConfig()
	cfg.Precision = convert.DynamicRangeInt8
	return Tier{
		Name:   "quantized",
		Build:  func() (convert.Model, error) { return model, nil },
		Config: cfg,
	}
}

// DefaultFallbackSamples is the size of the fallback training set.
const DefaultFallbackSamples = 100

// FallbackOptions configures FallbackTier.
type FallbackOptions struct {
	Samples int
	Epochs  int
	Seed    int64
}

func (o FallbackOptions) withDefaults() FallbackOptions {
	if o.Samples <= 0 {
		o.Samples = DefaultFallbackSamples
	}
	if o.Epochs <= 0 {
		o.Epochs = 1
	}
	return o
}

// FallbackTier ignores the trained model and builds a Minimal network
// trained briefly on fresh naive data with uniform labels.
func FallbackTier(opts FallbackOptions) Tier {
	opts = opts.withDefaults()
	return Tier{
		Name: "fallback",
		Build: func() (convert.Model, error) {
			net, err := architecture.New(architecture.Minimal, opts.Seed)
			if err != nil {
				return nil, err
			}
			h := learning.FallbackHyperParameters(opts.Seed)
			h.Epochs = opts.Epochs
			if _, err := trainer.Fit(net, trips.NaiveDataset(opts.Samples, opts.Seed), h); err != nil {
				return nil, errors.Wrap(err, "export: fallback training")
			}
			return net, nil
		},
		Config: convert.BaselineConfig(),
	}
}

// DefaultTiers is the primary export followed by the fallback.
func DefaultTiers(model convert.Model, opts FallbackOptions) []Tier {
	return []Tier{PrimaryTier(model), FallbackTier(opts)}
}
