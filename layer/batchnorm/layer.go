// Package batchnorm implements batch normalization over the feature axis
package batchnorm

import "math"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "github.com/neurlang/tripmodel/layer"

// Defaults match the common Keras configuration.
const (
	DefaultMomentum = 0.99
	DefaultEpsilon  = 1e-3
)

// BatchNorm normalizes each feature with batch statistics while training and
// with moving statistics at inference.
type BatchNorm struct {
	size     int
	momentum float64
	epsilon  float64

	gamma, beta    *mat.Dense
	dGamma, dBeta  *mat.Dense
	movingMean     *mat.Dense
	movingVariance *mat.Dense

	xhat   *mat.Dense
	invStd []float64
}

// MustNew creates a new batch normalization layer with default momentum and epsilon
func MustNew(size int) *BatchNorm {
	o, err := New(size, DefaultMomentum, DefaultEpsilon)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new batch normalization layer
func New(size int, momentum, epsilon float64) (*BatchNorm, error) {
	if size <= 0 {
		return nil, errors.Errorf("batchnorm: invalid size %d", size)
	}
	if momentum < 0 || momentum >= 1 || epsilon <= 0 {
		return nil, errors.Errorf("batchnorm: invalid momentum %v or epsilon %v", momentum, epsilon)
	}
	b := &BatchNorm{
		size:           size,
		momentum:       momentum,
		epsilon:        epsilon,
		gamma:          mat.NewDense(1, size, nil),
		beta:           mat.NewDense(1, size, nil),
		dGamma:         mat.NewDense(1, size, nil),
		dBeta:          mat.NewDense(1, size, nil),
		movingMean:     mat.NewDense(1, size, nil),
		movingVariance: mat.NewDense(1, size, nil),
	}
	for j := 0; j < size; j++ {
		b.gamma.Set(0, j, 1)
		b.movingVariance.Set(0, j, 1)
	}
	return b, nil
}

func (b *BatchNorm) Gamma() *mat.Dense          { return b.gamma }
func (b *BatchNorm) Beta() *mat.Dense           { return b.beta }
func (b *BatchNorm) MovingMean() *mat.Dense     { return b.movingMean }
func (b *BatchNorm) MovingVariance() *mat.Dense { return b.movingVariance }
func (b *BatchNorm) Epsilon() float64           { return b.epsilon }

func (b *BatchNorm) Kind() layer.Kind { return layer.KindBatchNorm }
func (b *BatchNorm) InputSize() int   { return b.size }
func (b *BatchNorm) OutputSize() int  { return b.size }

// Affine returns the per-feature scale and shift equivalent to inference mode.
func (b *BatchNorm) Affine() (scale, shift []float64) {
	scale = make([]float64, b.size)
	shift = make([]float64, b.size)
	for j := 0; j < b.size; j++ {
		s := b.gamma.At(0, j) / math.Sqrt(b.movingVariance.At(0, j)+b.epsilon)
		scale[j] = s
		shift[j] = b.beta.At(0, j) - b.movingMean.At(0, j)*s
	}
	return
}

func (b *BatchNorm) Forward(x *mat.Dense, training bool) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	if !training {
		scale, shift := b.Affine()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				out.Set(i, j, x.At(i, j)*scale[j]+shift[j])
			}
		}
		return out
	}
	xhat := mat.NewDense(rows, cols, nil)
	invStd := make([]float64, cols)
	n := float64(rows)
	for j := 0; j < cols; j++ {
		var mean, variance float64
		for i := 0; i < rows; i++ {
			mean += x.At(i, j)
		}
		mean /= n
		for i := 0; i < rows; i++ {
			d := x.At(i, j) - mean
			variance += d * d
		}
		variance /= n
		invStd[j] = 1 / math.Sqrt(variance+b.epsilon)
		for i := 0; i < rows; i++ {
			h := (x.At(i, j) - mean) * invStd[j]
			xhat.Set(i, j, h)
			out.Set(i, j, b.gamma.At(0, j)*h+b.beta.At(0, j))
		}
		b.movingMean.Set(0, j, b.movingMean.At(0, j)*b.momentum+mean*(1-b.momentum))
		b.movingVariance.Set(0, j, b.movingVariance.At(0, j)*b.momentum+variance*(1-b.momentum))
	}
	b.xhat = xhat
	b.invStd = invStd
	return out
}

func (b *BatchNorm) Backward(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()
	dx := mat.NewDense(rows, cols, nil)
	n := float64(rows)
	for j := 0; j < cols; j++ {
		g := b.gamma.At(0, j)
		var sumDy, sumDyXhat float64
		for i := 0; i < rows; i++ {
			dy := grad.At(i, j)
			sumDy += dy
			sumDyXhat += dy * b.xhat.At(i, j)
		}
		b.dGamma.Set(0, j, sumDyXhat)
		b.dBeta.Set(0, j, sumDy)
		for i := 0; i < rows; i++ {
			dxhat := grad.At(i, j) * g
			v := (n*dxhat - g*sumDy - b.xhat.At(i, j)*g*sumDyXhat) * b.invStd[j] / n
			dx.Set(i, j, v)
		}
	}
	return dx
}

func (b *BatchNorm) Params() []layer.Param {
	return []layer.Param{
		{Name: "gamma", Value: b.gamma, Grad: b.dGamma},
		{Name: "beta", Value: b.beta, Grad: b.dBeta},
		{Name: "moving_mean", Value: b.movingMean},
		{Name: "moving_variance", Value: b.movingVariance},
	}
}

func (b *BatchNorm) Clone() layer.Layer {
	return &BatchNorm{
		size:           b.size,
		momentum:       b.momentum,
		epsilon:        b.epsilon,
		gamma:          mat.DenseCopyOf(b.gamma),
		beta:           mat.DenseCopyOf(b.beta),
		dGamma:         mat.NewDense(1, b.size, nil),
		dBeta:          mat.NewDense(1, b.size, nil),
		movingMean:     mat.DenseCopyOf(b.movingMean),
		movingVariance: mat.DenseCopyOf(b.movingVariance),
	}
}
