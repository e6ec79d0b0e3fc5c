package trainer

import "math"

import "gonum.org/v1/gonum/mat"

// sampleErrors returns, per row, the mean squared and the mean absolute
// difference between predicted and expected.
func sampleErrors(predicted, expected mat.Matrix) (sq, abs []float64) {
	rows, cols := expected.Dims()
	sq = make([]float64, rows)
	abs = make([]float64, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := predicted.At(i, j) - expected.At(i, j)
			sq[i] += d * d
			abs[i] += math.Abs(d)
		}
		sq[i] /= float64(cols)
		abs[i] /= float64(cols)
	}
	return
}

// mseGradient is the gradient of the batch mean squared error with respect
// to the predictions.
func mseGradient(predicted, expected *mat.Dense) *mat.Dense {
	rows, cols := expected.Dims()
	var g mat.Dense
	g.Sub(predicted, expected)
	g.Scale(2/float64(rows*cols), &g)
	return &g
}
