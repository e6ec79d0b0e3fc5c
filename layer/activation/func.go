// Package activation implements element-wise activation functions and an activation layer
package activation

import "math"

// Func is an element-wise activation function.
type Func string

const (
	Linear  Func = "linear"
	ReLU    Func = "relu"
	Sigmoid Func = "sigmoid"
	Tanh    Func = "tanh"
	GELU    Func = "gelu"
)

// geluC is sqrt(2/pi) used by the tanh approximation of GELU.
var geluC = math.Sqrt(2 / math.Pi)

// Valid reports whether f is a known activation.
func (f Func) Valid() bool {
	switch f {
	case Linear, ReLU, Sigmoid, Tanh, GELU:
		return true
	}
	return false
}

// Apply evaluates the activation at v.
func (f Func) Apply(v float64) float64 {
	switch f {
	case ReLU:
		if v > 0 {
			return v
		}
		return 0
	case Sigmoid:
		if v >= 0 {
			return 1 / (1 + math.Exp(-v))
		}
		e := math.Exp(v)
		return e / (1 + e)
	case Tanh:
		return math.Tanh(v)
	case GELU:
		return 0.5 * v * (1 + math.Tanh(geluC*(v+0.044715*v*v*v)))
	}
	return v
}

// Derivative evaluates the derivative of the activation given the
// pre-activation z and the activation output a = f(z).
func (f Func) Derivative(z, a float64) float64 {
	switch f {
	case ReLU:
		if z > 0 {
			return 1
		}
		return 0
	case Sigmoid:
		return a * (1 - a)
	case Tanh:
		return 1 - a*a
	case GELU:
		u := geluC * (z + 0.044715*z*z*z)
		t := math.Tanh(u)
		du := geluC * (1 + 3*0.044715*z*z)
		return 0.5*(1+t) + 0.5*z*(1-t*t)*du
	}
	return 1
}
