// Package dropout implements inverted dropout
package dropout

import "math/rand"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "github.com/neurlang/tripmodel/layer"

// Dropout zeroes a fraction of its inputs while training and scales the rest,
// so that inference is the identity.
type Dropout struct {
	size int
	rate float64
	rnd  *rand.Rand

	mask *mat.Dense
}

// MustNew creates a new dropout layer
func MustNew(size int, rate float64, seed int64) *Dropout {
	o, err := New(size, rate, seed)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new dropout layer dropping rate of the inputs
func New(size int, rate float64, seed int64) (*Dropout, error) {
	if size <= 0 {
		return nil, errors.Errorf("dropout: invalid size %d", size)
	}
	if rate < 0 || rate >= 1 {
		return nil, errors.Errorf("dropout: rate %v outside [0,1)", rate)
	}
	return &Dropout{size: size, rate: rate, rnd: rand.New(rand.NewSource(seed))}, nil
}

// Rate reports the fraction of dropped inputs.
func (d *Dropout) Rate() float64 { return d.rate }

func (d *Dropout) Kind() layer.Kind { return layer.KindDropout }
func (d *Dropout) InputSize() int   { return d.size }
func (d *Dropout) OutputSize() int  { return d.size }

func (d *Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.rate == 0 {
		return mat.DenseCopyOf(x)
	}
	rows, cols := x.Dims()
	keep := 1 - d.rate
	mask := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if d.rnd.Float64() < keep {
				mask.Set(i, j, 1/keep)
			}
		}
	}
	d.mask = mask
	var out mat.Dense
	out.MulElem(x, mask)
	return &out
}

func (d *Dropout) Backward(grad *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return mat.DenseCopyOf(grad)
	}
	var dx mat.Dense
	dx.MulElem(grad, d.mask)
	return &dx
}

func (d *Dropout) Params() []layer.Param { return nil }

func (d *Dropout) Clone() layer.Layer {
	return &Dropout{size: d.size, rate: d.rate, rnd: rand.New(rand.NewSource(d.rnd.Int63()))}
}
