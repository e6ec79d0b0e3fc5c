// Package scaler standardizes feature columns and persists the parameters
// needed to repeat the same standardization on the client.
package scaler

import (
	"encoding/json"
	"path/filepath"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotFitted is returned when transforming before Fit.
	ErrNotFitted = errors.New("scaler: not fitted")

	// ErrShape is returned when the column count does not match the params.
	ErrShape = errors.New("scaler: column count mismatch")
)

// Params holds one mean and one scale per feature.
type Params struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Len reports the number of features.
func (p *Params) Len() int {
	return len(p.Mean)
}

// Apply standardizes a single vector.
func (p *Params) Apply(x []float64) ([]float64, error) {
	if len(x) != len(p.Mean) || len(p.Scale) != len(p.Mean) {
		return nil, ErrShape
	}
	o := make([]float64, len(x))
	for i, v := range x {
		o[i] = (v - p.Mean[i]) / p.Scale[i]
	}
	return o, nil
}

// Invert undoes Apply.
func (p *Params) Invert(x []float64) ([]float64, error) {
	if len(x) != len(p.Mean) || len(p.Scale) != len(p.Mean) {
		return nil, ErrShape
	}
	o := make([]float64, len(x))
	for i, v := range x {
		o[i] = v*p.Scale[i] + p.Mean[i]
	}
	return o, nil
}

// Save writes the params as JSON.
func (p *Params) Save(fs afero.Fs, path string) error {
	buf, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "scaler: marshal")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "scaler: create %s", dir)
		}
	}
	return errors.Wrapf(afero.WriteFile(fs, path, buf, 0644), "scaler: write %s", path)
}

// Load reads params written by Save.
func Load(fs afero.Fs, path string) (*Params, error) {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "scaler: read %s", path)
	}
	var p Params
	if err := json.Unmarshal(buf, &p); err != nil {
		return nil, errors.Wrapf(err, "scaler: decode %s", path)
	}
	if len(p.Mean) != len(p.Scale) {
		return nil, ErrShape
	}
	return &p, nil
}

// StandardScaler removes the mean and divides by the population standard
// deviation of each column. Constant columns keep a scale of one.
type StandardScaler struct {
	params *Params
}

// New returns an unfitted scaler.
func New() *StandardScaler {
	return &StandardScaler{}
}

// FromParams returns a scaler fitted with p.
func FromParams(p *Params) *StandardScaler {
	return &StandardScaler{params: p}
}

// Params returns the fitted parameters, nil before Fit.
func (s *StandardScaler) Params() *Params {
	return s.params
}

// Fit learns the mean and scale of every column of X.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return errors.New("scaler: no rows")
	}
	p := &Params{Mean: make([]float64, cols), Scale: make([]float64, cols)}
	for j := 0; j < cols; j++ {
		col := stats.Float64Data(mat.Col(nil, j, X))
		mean, err := stats.Mean(col)
		if err != nil {
			return errors.Wrapf(err, "scaler: mean of column %d", j)
		}
		std, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return errors.Wrapf(err, "scaler: deviation of column %d", j)
		}
		if std == 0 {
			std = 1
		}
		p.Mean[j], p.Scale[j] = mean, std
	}
	s.params = p
	return nil
}

// Transform standardizes every row of X.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply(X, func(v, mean, scale float64) float64 {
		return (v - mean) / scale
	})
}

// InverseTransform undoes Transform.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply(X, func(v, mean, scale float64) float64 {
		return v*scale + mean
	})
}

// FitTransform executes Fit and Transform.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *StandardScaler) apply(X mat.Matrix, fn func(v, mean, scale float64) float64) (mat.Matrix, error) {
	if s.params == nil {
		return nil, ErrNotFitted
	}
	_, cols := X.Dims()
	if cols != s.params.Len() {
		return nil, ErrShape
	}
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 {
		return fn(v, s.params.Mean[j], s.params.Scale[j])
	}, X)
	return &out, nil
}
