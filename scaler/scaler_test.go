package scaler

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFitTransform(t *testing.T) {
	x := mat.NewDense(4, 3, []float64{
		1, 10, 5,
		2, 20, 5,
		3, 30, 5,
		4, 40, 5,
	})
	s := New()
	_, err := s.Transform(x)
	assert.Equal(t, ErrNotFitted, err)

	z, err := s.FitTransform(x)
	require.NoError(t, err)
	p := s.Params()
	assert.Equal(t, []float64{2.5, 25, 5}, p.Mean)
	assert.InDelta(t, 1.118034, p.Scale[0], 1e-6)
	assert.Equal(t, 1.0, p.Scale[2])

	for j := 0; j < 3; j++ {
		var sum float64
		for i := 0; i < 4; i++ {
			sum += z.At(i, j)
		}
		assert.InDelta(t, 0, sum, 1e-9)
	}

	back, err := s.InverseTransform(z)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(x, back, 1e-9))

	_, err = s.Transform(mat.NewDense(1, 2, nil))
	assert.Equal(t, ErrShape, err)

	assert.Error(t, New().Fit(&mat.Dense{}))
}

func TestApplyInvert(t *testing.T) {
	p := &Params{Mean: []float64{1, 2}, Scale: []float64{2, 4}}
	z, err := p.Apply([]float64{3, 10})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, z)
	x, err := p.Invert(z)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 10}, x)

	_, err = p.Apply([]float64{1})
	assert.Equal(t, ErrShape, err)

	row, err := FromParams(p).Transform(mat.NewDense(1, 2, []float64{3, 10}))
	require.NoError(t, err)
	assert.Equal(t, z, mat.Row(nil, 0, row))
}

func TestSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := &Params{Mean: []float64{0.5, 0.25}, Scale: []float64{1, 2}}
	require.NoError(t, p.Save(fs, "out/scaler_params.json"))

	data, err := afero.ReadFile(fs, "out/scaler_params.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"mean":[0.5,0.25],"scale":[1,2]}`, string(data))

	got, err := Load(fs, "out/scaler_params.json")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte(`{"mean":[1],"scale":[]}`), 0644))
	_, err = Load(fs, "bad.json")
	assert.Equal(t, ErrShape, err)

	_, err = Load(fs, "missing.json")
	assert.Error(t, err)
}
