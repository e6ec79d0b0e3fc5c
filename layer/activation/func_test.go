package activation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var all = []Func{Linear, ReLU, Sigmoid, Tanh, GELU}

func TestApply(t *testing.T) {
	assert.Equal(t, 0.0, ReLU.Apply(-2))
	assert.Equal(t, 3.0, ReLU.Apply(3))
	assert.Equal(t, 0.5, Sigmoid.Apply(0))
	assert.InDelta(t, 0, Sigmoid.Apply(-800), 1e-300)
	assert.Equal(t, 1.0, Sigmoid.Apply(800))
	assert.False(t, math.IsNaN(Sigmoid.Apply(-800)))
	assert.InDelta(t, 0.841192, GELU.Apply(1), 1e-6)
	assert.Equal(t, -4.0, Linear.Apply(-4))
	assert.False(t, Func("swish").Valid())
}

func TestDerivative(t *testing.T) {
	const h = 1e-6
	for _, fn := range all {
		for _, z := range []float64{-2.5, -0.7, 0.3, 1.9} {
			numeric := (fn.Apply(z+h) - fn.Apply(z-h)) / (2 * h)
			assert.InDelta(t, numeric, fn.Derivative(z, fn.Apply(z)), 1e-6, "%s at %v", fn, z)
		}
	}
}

func TestLayer(t *testing.T) {
	_, err := New("swish", 2)
	assert.Error(t, err)
	_, err = New(Tanh, 0)
	assert.Error(t, err)

	l := MustNew(Sigmoid, 2)
	x := mat.NewDense(1, 2, []float64{0, 2})
	out := l.Forward(x, true)
	assert.Equal(t, 0.5, out.At(0, 0))

	grad := l.Backward(mat.NewDense(1, 2, []float64{1, 1}))
	assert.Equal(t, 0.25, grad.At(0, 0))
	s := Sigmoid.Apply(2)
	assert.InDelta(t, s*(1-s), grad.At(0, 1), 1e-12)

	c := l.Clone().(*Activation)
	require.Equal(t, Sigmoid, c.Func())
	assert.Equal(t, 2, c.OutputSize())
}
