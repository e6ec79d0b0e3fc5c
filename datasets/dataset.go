// Package datasets implements the regression dataset type
package datasets

import "github.com/pkg/errors"
import "math"
import "math/rand"

import "gonum.org/v1/gonum/mat"

// ErrLength is returned when inputs and outputs differ in count or width.
var ErrLength = errors.New("datasets: inconsistent sample lengths")

// Sample is one input vector with its expected output vector.
type Sample struct {
	Input  []float64
	Output []float64
}

// Dataset is an ordered collection of samples of equal widths.
type Dataset []Sample

// New pairs inputs with outputs.
func New(inputs, outputs [][]float64) (Dataset, error) {
	if len(inputs) != len(outputs) {
		return nil, ErrLength
	}
	d := make(Dataset, len(inputs))
	for i := range inputs {
		d[i] = Sample{Input: inputs[i], Output: outputs[i]}
	}
	if _, _, err := d.Dims(); err != nil {
		return nil, err
	}
	return d, nil
}

// FromMatrices builds a dataset from the rows of x and y.
func FromMatrices(x, y mat.Matrix) (Dataset, error) {
	xr, _ := x.Dims()
	yr, _ := y.Dims()
	if xr != yr {
		return nil, ErrLength
	}
	d := make(Dataset, xr)
	for i := range d {
		d[i] = Sample{Input: mat.Row(nil, i, x), Output: mat.Row(nil, i, y)}
	}
	return d, nil
}

// Dims reports the input and output widths, checking every sample agrees.
func (d Dataset) Dims() (in, out int, err error) {
	if len(d) == 0 {
		return 0, 0, nil
	}
	in, out = len(d[0].Input), len(d[0].Output)
	for _, s := range d {
		if len(s.Input) != in || len(s.Output) != out {
			return 0, 0, ErrLength
		}
	}
	return in, out, nil
}

// Matrices stacks inputs and outputs into row matrices.
func (d Dataset) Matrices() (x, y *mat.Dense) {
	idx := make([]int, len(d))
	for i := range idx {
		idx[i] = i
	}
	return d.Batch(idx)
}

// Batch stacks the samples at positions idx into row matrices.
func (d Dataset) Batch(idx []int) (x, y *mat.Dense) {
	if len(idx) == 0 || len(d) == 0 {
		return nil, nil
	}
	in, out := len(d[0].Input), len(d[0].Output)
	x = mat.NewDense(len(idx), in, nil)
	y = mat.NewDense(len(idx), out, nil)
	for i, j := range idx {
		x.SetRow(i, d[j].Input)
		y.SetRow(i, d[j].Output)
	}
	return
}

// Split partitions the dataset into a training and a held-out part using a
// permutation seeded by seed. The held-out part has ceil(n*fraction) samples,
// but at least one sample always stays in training.
func (d Dataset) Split(fraction float64, seed int64) (train, test Dataset) {
	n := len(d)
	nTest := int(math.Ceil(float64(n) * fraction))
	if nTest < 0 {
		nTest = 0
	}
	if nTest >= n {
		nTest = n - 1
	}
	if nTest <= 0 {
		return append(Dataset(nil), d...), nil
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = make(Dataset, 0, nTest)
	train = make(Dataset, 0, n-nTest)
	for i, j := range perm {
		if i < nTest {
			test = append(test, d[j])
		} else {
			train = append(train, d[j])
		}
	}
	return
}
