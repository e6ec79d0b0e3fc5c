package trainer

import "math"

import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/tripmodel/learning"
import "github.com/neurlang/tripmodel/net/feedforward"

// earlyStopper tracks the best held-out loss and the parameters that produced it.
type earlyStopper struct {
	cfg       learning.EarlyStopping
	best      float64
	bestEpoch int
	wait      int
	snapshot  []*mat.Dense
}

func newEarlyStopper(cfg *learning.EarlyStopping) *earlyStopper {
	if cfg == nil {
		return nil
	}
	return &earlyStopper{cfg: *cfg, best: math.Inf(1), bestEpoch: -1}
}

// observe records the loss of epoch and reports whether training should stop.
func (e *earlyStopper) observe(net *feedforward.FeedforwardNetwork, epoch int, loss float64) bool {
	if e == nil {
		return false
	}
	if loss < e.best-e.cfg.MinDelta {
		e.best = loss
		e.bestEpoch = epoch
		e.wait = 0
		if e.cfg.RestoreBest {
			e.snapshot = net.Snapshot()
		}
		return false
	}
	e.wait++
	return e.wait >= e.cfg.Patience
}

// restore writes back the best parameters, reporting whether it did.
func (e *earlyStopper) restore(net *feedforward.FeedforwardNetwork) bool {
	if e == nil || !e.cfg.RestoreBest || e.snapshot == nil {
		return false
	}
	return net.Restore(e.snapshot) == nil
}

// plateau lowers the base learning rate when the held-out loss stalls.
type plateau struct {
	cfg  learning.ReduceOnPlateau
	best float64
	wait int
}

func newPlateau(cfg *learning.ReduceOnPlateau) *plateau {
	if cfg == nil || cfg.Factor <= 0 || cfg.Factor >= 1 {
		return nil
	}
	return &plateau{cfg: *cfg, best: math.Inf(1)}
}

// observe returns the base rate to use after an epoch with the given loss.
func (p *plateau) observe(loss, rate float64) float64 {
	if p == nil {
		return rate
	}
	if loss < p.best-p.cfg.MinDelta {
		p.best = loss
		p.wait = 0
		return rate
	}
	p.wait++
	if p.wait < p.cfg.Patience {
		return rate
	}
	p.wait = 0
	if rate <= p.cfg.MinRate {
		return rate
	}
	return math.Max(rate*p.cfg.Factor, p.cfg.MinRate)
}

// floor keeps a decayed rate at or above MinRate.
func (p *plateau) floor(rate float64) float64 {
	if p == nil {
		return rate
	}
	return math.Max(rate, p.cfg.MinRate)
}
