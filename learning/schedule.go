package learning

import "math"

// ExponentialDecay multiplies the learning rate by DecayRate every DecaySteps
// optimizer steps, continuously or in discrete jumps when Staircase is set.
type ExponentialDecay struct {
	InitialRate float64 `yaml:"initial_rate"`
	DecaySteps  int     `yaml:"decay_steps"`
	DecayRate   float64 `yaml:"decay_rate"`
	Staircase   bool    `yaml:"staircase"`
}

// Factor returns the multiplier applied to the base rate at step.
func (e *ExponentialDecay) Factor(step int) float64 {
	if e == nil || e.DecaySteps <= 0 || e.DecayRate <= 0 {
		return 1
	}
	p := float64(step) / float64(e.DecaySteps)
	if e.Staircase {
		p = math.Floor(p)
	}
	return math.Pow(e.DecayRate, p)
}
