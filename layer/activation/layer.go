package activation

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "github.com/neurlang/tripmodel/layer"

// Activation is a standalone activation layer.
type Activation struct {
	fn   Func
	size int

	z, a *mat.Dense
}

// MustNew creates a new activation layer of width size
func MustNew(fn Func, size int) *Activation {
	o, err := New(fn, size)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new activation layer of width size
func New(fn Func, size int) (*Activation, error) {
	if !fn.Valid() {
		return nil, errors.Errorf("activation: unknown function %q", fn)
	}
	if size <= 0 {
		return nil, errors.Errorf("activation: invalid size %d", size)
	}
	return &Activation{fn: fn, size: size}, nil
}

// Func reports the activation function.
func (l *Activation) Func() Func { return l.fn }

func (l *Activation) Kind() layer.Kind { return layer.KindActivation }
func (l *Activation) InputSize() int   { return l.size }
func (l *Activation) OutputSize() int  { return l.size }

func (l *Activation) Forward(x *mat.Dense, training bool) *mat.Dense {
	a := Map(l.fn, x)
	if training {
		l.z = mat.DenseCopyOf(x)
		l.a = a
	}
	return a
}

func (l *Activation) Backward(grad *mat.Dense) *mat.Dense {
	return Gradient(l.fn, grad, l.z, l.a)
}

func (l *Activation) Params() []layer.Param { return nil }

func (l *Activation) Clone() layer.Layer {
	return &Activation{fn: l.fn, size: l.size}
}

// Map applies fn to every element of z into a new matrix.
func Map(fn Func, z mat.Matrix) *mat.Dense {
	var a mat.Dense
	a.Apply(func(_, _ int, v float64) float64 {
		return fn.Apply(v)
	}, z)
	return &a
}

// Gradient multiplies grad by the derivative of fn element-wise.
func Gradient(fn Func, grad, z, a *mat.Dense) *mat.Dense {
	var dz mat.Dense
	dz.Apply(func(i, j int, v float64) float64 {
		return v * fn.Derivative(z.At(i, j), a.At(i, j))
	}, grad)
	return &dz
}
