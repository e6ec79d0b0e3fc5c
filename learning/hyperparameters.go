// Package learning holds the training hyperparameters, the optimizer and the
// learning rate schedules used by the trainer
package learning

// Defaults applied by WithDefaults to zero fields.
const (
	DefaultEpochs          = 50
	DefaultBatchSize       = 32
	DefaultValidationSplit = 0.2
	DefaultLearningRate    = 0.001
)

// HyperParameters configures one training run.
type HyperParameters struct {
	Epochs          int     `yaml:"epochs"`           // passes over the training split
	BatchSize       int     `yaml:"batch_size"`       // samples per optimizer step
	ValidationSplit float64 `yaml:"validation_split"` // held-out fraction, negative disables
	LearningRate    float64 `yaml:"learning_rate"`    // initial Adam step size
	Seed            int64   `yaml:"seed"`             // split, shuffle and dropout seed

	Decay           *ExponentialDecay `yaml:"decay,omitempty"`
	EarlyStopping   *EarlyStopping    `yaml:"early_stopping,omitempty"`
	ReduceOnPlateau *ReduceOnPlateau  `yaml:"reduce_on_plateau,omitempty"`
}

// WithDefaults replaces zero fields with defaults.
func (h HyperParameters) WithDefaults() HyperParameters {
	if h.Epochs <= 0 {
		h.Epochs = DefaultEpochs
	}
	if h.BatchSize <= 0 {
		h.BatchSize = DefaultBatchSize
	}
	if h.ValidationSplit == 0 {
		h.ValidationSplit = DefaultValidationSplit
	}
	if h.ValidationSplit < 0 {
		h.ValidationSplit = 0
	}
	if h.LearningRate <= 0 {
		h.LearningRate = DefaultLearningRate
		if h.Decay != nil && h.Decay.InitialRate > 0 {
			h.LearningRate = h.Decay.InitialRate
		}
	}
	return h
}

// EarlyStopping stops training once the held-out loss has not improved by
// MinDelta for Patience epochs.
type EarlyStopping struct {
	Patience    int     `yaml:"patience"`
	MinDelta    float64 `yaml:"min_delta"`
	RestoreBest bool    `yaml:"restore_best"`
}

// ReduceOnPlateau multiplies the learning rate by Factor once the held-out
// loss has not improved by MinDelta for Patience epochs. MinRate also floors
// the rate after exponential decay.
type ReduceOnPlateau struct {
	Factor   float64 `yaml:"factor"`
	Patience int     `yaml:"patience"`
	MinDelta float64 `yaml:"min_delta"`
	MinRate  float64 `yaml:"min_rate"`
}

// BasicHyperParameters trains the basic architecture.
func BasicHyperParameters() HyperParameters {
	return HyperParameters{
		Epochs:          50,
		BatchSize:       32,
		ValidationSplit: 0.2,
		LearningRate:    0.001,
		Seed:            42,
	}
}

// ImprovedHyperParameters trains the improved architecture with decay,
// early stopping and plateau reduction.
func ImprovedHyperParameters() HyperParameters {
	return HyperParameters{
		Epochs:          100,
		BatchSize:       64,
		ValidationSplit: 0.2,
		LearningRate:    0.001,
		Seed:            42,
		Decay: &ExponentialDecay{
			InitialRate: 0.001,
			DecaySteps:  100,
			DecayRate:   0.96,
			Staircase:   true,
		},
		EarlyStopping: &EarlyStopping{
			Patience:    10,
			RestoreBest: true,
		},
		ReduceOnPlateau: &ReduceOnPlateau{
			Factor:   0.2,
			Patience: 5,
			MinDelta: 1e-4,
			MinRate:  0.0001,
		},
	}
}

// FallbackHyperParameters is the abbreviated single epoch run.
func FallbackHyperParameters(seed int64) HyperParameters {
	return HyperParameters{
		Epochs:          1,
		BatchSize:       32,
		ValidationSplit: 0.2,
		LearningRate:    0.001,
		Seed:            seed,
	}
}
