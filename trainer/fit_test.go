package trainer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/neurlang/tripmodel/datasets"
	"github.com/neurlang/tripmodel/layer/activation"
	"github.com/neurlang/tripmodel/layer/dense"
	"github.com/neurlang/tripmodel/learning"
	"github.com/neurlang/tripmodel/net/feedforward"
)

// linear has targets that a single sigmoid layer can fit.
func linear(n int, seed int64) datasets.Dataset {
	rnd := rand.New(rand.NewSource(seed))
	in := make([][]float64, n)
	out := make([][]float64, n)
	for i := range in {
		in[i] = make([]float64, 3)
		for j := range in[i] {
			in[i][j] = rnd.Float64()
		}
		out[i] = []float64{activation.Sigmoid.Apply(2*in[i][0] - in[i][1]), activation.Sigmoid.Apply(in[i][2])}
	}
	d, err := datasets.New(in, out)
	if err != nil {
		panic(err)
	}
	return d
}

func network(seed int64) *feedforward.FeedforwardNetwork {
	var net feedforward.FeedforwardNetwork
	net.MustNewLayer(dense.MustNew(3, 2, activation.Sigmoid, rand.New(rand.NewSource(seed))))
	return &net
}

func TestFitLearns(t *testing.T) {
	net := network(1)
	data := linear(200, 1)
	before := Evaluate(net, data)

	res, err := Fit(net, data, learning.HyperParameters{Epochs: 40, BatchSize: 16, LearningRate: 0.05, Seed: 1})
	require.NoError(t, err)
	require.Len(t, res.History, 40)
	assert.Equal(t, 160, res.TrainSize)
	assert.Equal(t, 40, res.TestSize)
	assert.Equal(t, -1, res.StoppedEpoch)
	assert.False(t, res.Restored)

	assert.Less(t, res.History[39].Loss, res.History[0].Loss)
	assert.Less(t, res.TestLoss, before.MSE)
	assert.False(t, math.IsNaN(res.TestMAE))
}

func TestFitDeterministic(t *testing.T) {
	h := learning.HyperParameters{Epochs: 3, BatchSize: 8, Seed: 9}
	a, err := Fit(network(2), linear(50, 2), h)
	require.NoError(t, err)
	b, err := Fit(network(2), linear(50, 2), h)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFitErrors(t *testing.T) {
	_, err := Fit(network(1), nil, learning.HyperParameters{})
	assert.Equal(t, ErrEmptyDataset, err)

	d, _ := datasets.New([][]float64{{1, 2}}, [][]float64{{1, 2}})
	_, err = Fit(network(1), d, learning.HyperParameters{})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestEarlyStoppingRestoresBest(t *testing.T) {
	net := network(3)
	h := learning.HyperParameters{
		Epochs:        20,
		BatchSize:     16,
		LearningRate:  0.05,
		EarlyStopping: &learning.EarlyStopping{Patience: 2, MinDelta: 1e9, RestoreBest: true},
	}
	res, err := Fit(net, linear(100, 3), h)
	require.NoError(t, err)
	assert.Len(t, res.History, 3)
	assert.Equal(t, 2, res.StoppedEpoch)
	assert.True(t, res.Restored)
	assert.Equal(t, 0, res.BestEpoch)
	assert.Equal(t, res.History[0].ValLoss, res.TestLoss)
}

func TestReduceOnPlateau(t *testing.T) {
	h := learning.HyperParameters{
		Epochs:          4,
		LearningRate:    0.01,
		ReduceOnPlateau: &learning.ReduceOnPlateau{Factor: 0.5, Patience: 1, MinDelta: 1e9, MinRate: 0.004},
	}
	res, err := Fit(network(4), linear(40, 4), h)
	require.NoError(t, err)
	var rates []float64
	for _, e := range res.History {
		rates = append(rates, e.LearningRate)
	}
	assert.InDeltaSlice(t, []float64{0.01, 0.01, 0.005, 0.004}, rates, 1e-12)
}

func TestDecay(t *testing.T) {
	h := learning.HyperParameters{
		Epochs:          2,
		BatchSize:       10,
		ValidationSplit: -1,
		Decay:           &learning.ExponentialDecay{InitialRate: 0.1, DecaySteps: 4, DecayRate: 0.5, Staircase: true},
	}
	res, err := Fit(network(5), linear(40, 5), h)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TestSize)
	// four steps per epoch, the last step of each epoch is steps 3 and 7
	assert.InDelta(t, 0.1, res.History[0].LearningRate, 1e-12)
	assert.InDelta(t, 0.05, res.History[1].LearningRate, 1e-12)
	assert.Equal(t, res.History[1].Loss, res.History[1].ValLoss)
}

func TestDecayRespectsMinRate(t *testing.T) {
	h := learning.HyperParameters{
		Epochs:          2,
		BatchSize:       10,
		ValidationSplit: -1,
		Decay:           &learning.ExponentialDecay{InitialRate: 0.1, DecaySteps: 1, DecayRate: 0.1, Staircase: true},
		ReduceOnPlateau: &learning.ReduceOnPlateau{Factor: 0.5, Patience: 100, MinRate: 0.005},
	}
	res, err := Fit(network(5), linear(40, 5), h)
	require.NoError(t, err)
	for _, e := range res.History {
		assert.InDelta(t, 0.005, e.LearningRate, 1e-12)
	}
}

func TestFitLogsEpochs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	_, err := Fit(network(6), linear(20, 6), learning.HyperParameters{Epochs: 3}, WithLogger(zap.New(core)))
	require.NoError(t, err)
	assert.Equal(t, 3, logs.FilterMessage("epoch").Len())
}

func TestEvaluateEmpty(t *testing.T) {
	m := Evaluate(network(1), nil)
	assert.True(t, math.IsNaN(m.MSE))
	assert.True(t, math.IsNaN(m.MAE))
}

func TestEvaluateParallelMatchesSequential(t *testing.T) {
	net := network(7)
	data := linear(1000, 7)
	m := Evaluate(net, data)
	var sq, abs float64
	for _, s := range data {
		out := net.Infer(s.Input)
		for j := range out {
			d := out[j] - s.Output[j]
			sq += d * d / 2
			abs += math.Abs(d) / 2
		}
	}
	assert.InDelta(t, sq/1000, m.MSE, 1e-12)
	assert.InDelta(t, abs/1000, m.MAE, 1e-12)
}

func TestBlockSize(t *testing.T) {
	assert.Equal(t, defaultEvaluateBlock, blockSize(-1, 128))
	assert.Equal(t, defaultEvaluateBlock, blockSize(1<<20, 0))
	assert.Equal(t, 512, blockSize(1<<20, 128))
	assert.Equal(t, minEvaluateBlock, blockSize(32<<10, 128))
	assert.Equal(t, maxEvaluateBlock, blockSize(32<<20, 10))
	assert.Equal(t, blockSize(cpuid.CPU.Cache.L2, 3), evaluateBlock(network(1)))
}

func TestCheckpointResume(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := network(1)
	require.NoError(t, Checkpoint(a, fs, "ckpt/net.json.lzw"))
	require.NoError(t, Checkpoint(a, fs, ""))

	b := network(2)
	require.NoError(t, Resume(b, fs, false, "ckpt/net.json.lzw"))
	assert.NotEqual(t, a.Snapshot(), b.Snapshot())
	require.NoError(t, Resume(b, fs, true, "ckpt/net.json.lzw"))
	assert.Equal(t, a.Snapshot(), b.Snapshot())

	assert.Error(t, Resume(b, fs, true, "ckpt/other.json.lzw"))
}
