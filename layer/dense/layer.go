// Package dense implements a fully connected layer with an optional activation
package dense

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/neurlang/tripmodel/layer"
	"github.com/neurlang/tripmodel/layer/activation"
)

// Dense computes act(x·kernel + bias).
type Dense struct {
	in, out int
	act     activation.Func

	kernel, bias   *mat.Dense
	dKernel, dBias *mat.Dense

	x, z, a *mat.Dense
}

// MustNew creates a new dense layer, panicking on invalid arguments
func MustNew(in, out int, act activation.Func, rnd *rand.Rand) *Dense {
	o, err := New(in, out, act, rnd)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new dense layer with Glorot uniform kernel and zero bias.
// A nil rnd leaves the kernel zeroed.
func New(in, out int, act activation.Func, rnd *rand.Rand) (*Dense, error) {
	if in <= 0 || out <= 0 {
		return nil, errors.Errorf("dense: invalid shape %dx%d", in, out)
	}
	if !act.Valid() {
		return nil, errors.Errorf("dense: unknown activation %q", act)
	}
	d := &Dense{
		in:      in,
		out:     out,
		act:     act,
		kernel:  mat.NewDense(in, out, nil),
		bias:    mat.NewDense(1, out, nil),
		dKernel: mat.NewDense(in, out, nil),
		dBias:   mat.NewDense(1, out, nil),
	}
	if rnd != nil {
		limit := math.Sqrt(6 / float64(in+out))
		raw := d.kernel.RawMatrix().Data
		for i := range raw {
			raw[i] = (2*rnd.Float64() - 1) * limit
		}
	}
	return d, nil
}

// Kernel returns the in×out weight matrix.
func (d *Dense) Kernel() *mat.Dense { return d.kernel }

// Bias returns the 1×out bias row.
func (d *Dense) Bias() *mat.Dense { return d.bias }

// Activation reports the activation applied after the affine transform.
func (d *Dense) Activation() activation.Func { return d.act }

// SetWeights overwrites kernel and bias.
func (d *Dense) SetWeights(kernel, bias []float64) error {
	if len(kernel) != d.in*d.out || len(bias) != d.out {
		return errors.Errorf("dense: weights do not fit %dx%d", d.in, d.out)
	}
	copy(d.kernel.RawMatrix().Data, kernel)
	copy(d.bias.RawMatrix().Data, bias)
	return nil
}

func (d *Dense) Kind() layer.Kind { return layer.KindDense }
func (d *Dense) InputSize() int   { return d.in }
func (d *Dense) OutputSize() int  { return d.out }

func (d *Dense) Forward(x *mat.Dense, training bool) *mat.Dense {
	var z mat.Dense
	z.Mul(x, d.kernel)
	b := d.bias.RawRowView(0)
	rows, _ := z.Dims()
	for i := 0; i < rows; i++ {
		floats.Add(z.RawRowView(i), b)
	}
	a := activation.Map(d.act, &z)
	if training {
		d.x = x
		d.z = &z
		d.a = a
	}
	return a
}

func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	dz := activation.Gradient(d.act, grad, d.z, d.a)
	d.dKernel.Mul(d.x.T(), dz)
	rows, _ := dz.Dims()
	db := d.dBias.RawRowView(0)
	for j := range db {
		db[j] = 0
	}
	for i := 0; i < rows; i++ {
		floats.Add(db, dz.RawRowView(i))
	}
	var dx mat.Dense
	dx.Mul(dz, d.kernel.T())
	return &dx
}

func (d *Dense) Params() []layer.Param {
	return []layer.Param{
		{Name: "kernel", Value: d.kernel, Grad: d.dKernel},
		{Name: "bias", Value: d.bias, Grad: d.dBias},
	}
}

func (d *Dense) Clone() layer.Layer {
	return &Dense{
		in:      d.in,
		out:     d.out,
		act:     d.act,
		kernel:  mat.DenseCopyOf(d.kernel),
		bias:    mat.DenseCopyOf(d.bias),
		dKernel: mat.NewDense(d.in, d.out, nil),
		dBias:   mat.NewDense(1, d.out, nil),
	}
}
