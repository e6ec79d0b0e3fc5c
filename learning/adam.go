package learning

import "math"

import "gonum.org/v1/gonum/mat"
import "github.com/neurlang/tripmodel/layer"

// Adam implements the Adam optimizer with bias correction.
//
//	m = β1·m + (1-β1)·g
//	v = β2·v + (1-β2)·g²
//	w = w - lr · m̂ / (√v̂ + ε)
type Adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	m, v         []*mat.Dense
	step         int
}

// NewAdam creates an Adam optimizer with the given learning rate.
// Uses β1=0.9, β2=0.999, ε=1e-7.
func NewAdam(lr float64) *Adam {
	return &Adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-7,
	}
}

// LR reports the current learning rate.
func (a *Adam) LR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// Steps reports how many updates were applied.
func (a *Adam) Steps() int {
	return a.step
}

// Update applies one Adam step to every trainable param using its gradient.
// The params must be passed in the same order on every call.
func (a *Adam) Update(params []layer.Param) {
	if a.m == nil {
		for _, p := range params {
			r, c := p.Value.Dims()
			a.m = append(a.m, mat.NewDense(r, c, nil))
			a.v = append(a.v, mat.NewDense(r, c, nil))
		}
	}
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))

	for i, p := range params {
		if !p.Trainable() {
			continue
		}
		w := p.Value.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		m := a.m[i].RawMatrix().Data
		v := a.v[i].RawMatrix().Data
		for k := range w {
			m[k] = a.beta1*m[k] + (1-a.beta1)*g[k]
			v[k] = a.beta2*v[k] + (1-a.beta2)*g[k]*g[k]
			w[k] -= a.lr * (m[k] / c1) / (math.Sqrt(v[k]/c2) + a.eps)
		}
	}
}
