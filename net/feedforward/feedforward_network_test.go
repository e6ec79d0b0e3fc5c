package feedforward

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/neurlang/tripmodel/layer/activation"
	"github.com/neurlang/tripmodel/layer/batchnorm"
	"github.com/neurlang/tripmodel/layer/dense"
	"github.com/neurlang/tripmodel/layer/dropout"
)

func network(seed int64) *FeedforwardNetwork {
	rnd := rand.New(rand.NewSource(seed))
	var net FeedforwardNetwork
	net.MustNewLayer(dense.MustNew(3, 5, activation.ReLU, rnd))
	net.MustNewLayer(batchnorm.MustNew(5))
	net.MustNewLayer(dropout.MustNew(5, 0.5, seed))
	net.MustNewLayer(dense.MustNew(5, 2, activation.Sigmoid, rnd))
	return &net
}

func TestNewLayer(t *testing.T) {
	net := network(1)
	assert.Error(t, net.NewLayer(dense.MustNew(3, 1, activation.Linear, nil)))
	assert.Error(t, net.NewLayer(nil))
	assert.Equal(t, 4, net.LenLayers())
	assert.Equal(t, 3, net.InputSize())
	assert.Equal(t, 2, net.OutputSize())
	assert.Nil(t, net.GetLayer(4))
	// kernels, biases, gamma and beta
	assert.Equal(t, 3*5+5+5+5+5*2+2, net.Len())
	assert.Equal(t, "dense(5) -> batchnorm(5) -> dropout(5) -> dense(2)", net.String())

	var empty FeedforwardNetwork
	assert.Equal(t, 0, empty.InputSize())
}

func TestInferDeterministic(t *testing.T) {
	net := network(1)
	in := []float64{0.1, 0.5, 0.9}
	out := net.Infer(in)
	require.Len(t, out, 2)
	assert.Equal(t, out, net.Infer(in))
	assert.Equal(t, []float64{0.1, 0.5, 0.9}, in)
}

func TestSnapshotRestore(t *testing.T) {
	net := network(1)
	snap := net.Snapshot()
	before := net.Infer([]float64{1, 2, 3})

	x := mat.NewDense(4, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 1, 1, 1})
	net.Forward(x, true)
	net.GetLayer(0).(*dense.Dense).Kernel().Set(0, 0, 9)
	assert.NotEqual(t, before, net.Infer([]float64{1, 2, 3}))

	require.NoError(t, net.Restore(snap))
	assert.Equal(t, before, net.Infer([]float64{1, 2, 3}))
	assert.Error(t, net.Restore(snap[:1]))
}

func TestClone(t *testing.T) {
	net := network(1)
	c := net.Clone()
	c.GetLayer(3).(*dense.Dense).Bias().Set(0, 0, 5)
	assert.NotEqual(t, net.Infer([]float64{0, 0, 0}), c.Infer([]float64{0, 0, 0}))
}

func TestCompressedWeights(t *testing.T) {
	a, b := network(1), network(2)
	var buf bytes.Buffer
	require.NoError(t, a.WriteCompressedWeights(&buf))
	require.NoError(t, b.ReadCompressedWeights(&buf))
	assert.Equal(t, a.Infer([]float64{1, 0, 1}), b.Infer([]float64{1, 0, 1}))

	fs := afero.NewMemMapFs()
	require.NoError(t, a.WriteCompressedWeightsToFile(fs, "net.json.lzw"))
	c := network(3)
	require.NoError(t, c.ReadCompressedWeightsFromFile(fs, "net.json.lzw"))
	assert.Equal(t, a.Snapshot(), c.Snapshot())

	var other FeedforwardNetwork
	other.MustNewLayer(dense.MustNew(3, 2, activation.Sigmoid, nil))
	assert.Error(t, other.ReadCompressedWeightsFromFile(fs, "net.json.lzw"))
	assert.Error(t, c.ReadCompressedWeightsFromFile(fs, "missing"))
}
