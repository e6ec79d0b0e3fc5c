package trainer

import "math"
import "runtime"

import "github.com/klauspost/cpuid/v2"
import "github.com/montanaflynn/stats"

import "github.com/neurlang/tripmodel/datasets"
import "github.com/neurlang/tripmodel/net/feedforward"
import "github.com/neurlang/tripmodel/parallel"

// Samples inferred together by one goroutine.
const (
	defaultEvaluateBlock = 256
	minEvaluateBlock     = 32
	maxEvaluateBlock     = 1024
)

// evaluateBlock sizes blocks so that the widest activation batch of net
// fits in half of the L2 cache.
func evaluateBlock(net *feedforward.FeedforwardNetwork) int {
	widest := net.InputSize()
	for _, l := range net.Layers() {
		if w := l.OutputSize(); w > widest {
			widest = w
		}
	}
	return blockSize(cpuid.CPU.Cache.L2, widest)
}

func blockSize(l2, widest int) int {
	if l2 <= 0 || widest <= 0 {
		return defaultEvaluateBlock
	}
	n := l2 / 2 / (8 * widest)
	if n < minEvaluateBlock {
		return minEvaluateBlock
	}
	if n > maxEvaluateBlock {
		return maxEvaluateBlock
	}
	return n
}

// Metrics are regression errors averaged over samples and outputs.
type Metrics struct {
	MSE float64
	MAE float64
}

// Evaluate computes the metrics of net on d in inference mode. An empty
// dataset yields NaN metrics.
func Evaluate(net *feedforward.FeedforwardNetwork, d datasets.Dataset) Metrics {
	if len(d) == 0 {
		return Metrics{MSE: math.NaN(), MAE: math.NaN()}
	}
	sq := make(stats.Float64Data, len(d))
	abs := make(stats.Float64Data, len(d))

	parallel.ForEachBlock(len(d), evaluateBlock(net), runtime.NumCPU(), func(lo, hi int) {
		idx := make([]int, hi-lo)
		for i := range idx {
			idx[i] = lo + i
		}
		x, y := d.Batch(idx)
		s, a := sampleErrors(net.Predict(x), y)
		copy(sq[lo:hi], s)
		copy(abs[lo:hi], a)
	})

	mse, _ := stats.Mean(sq)
	mae, _ := stats.Mean(abs)
	return Metrics{MSE: mse, MAE: mae}
}
