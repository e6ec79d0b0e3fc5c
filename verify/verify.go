// Package verify loads exported artifacts and runs them on random input
package verify

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/neurlang/tripmodel/flatmodel"
	"github.com/neurlang/tripmodel/inference"
)

// ErrShape is reported when an artifact's tensors differ from the expected shapes.
var ErrShape = errors.New("verify: unexpected tensor shape")

// ErrNonFinite is reported when the artifact produces NaN or Inf.
var ErrNonFinite = errors.New("verify: non-finite output")

// Report is the outcome of one verification.
type Report struct {
	OK          bool
	Err         error
	InputShape  []int
	OutputShape []int
	InputType   flatmodel.DType
	OutputType  flatmodel.DType
	Output      []float32
	Kernel      string
}

// Verifier checks artifacts with a Loader. Empty expected shapes are not
// checked.
type Verifier struct {
	Loader      inference.Loader
	Logger      *zap.Logger
	InputShape  []int
	OutputShape []int
}

// New returns a verifier for the default interpreter expecting shapes in and out.
func New(in, out []int) *Verifier {
	return &Verifier{Loader: inference.DefaultLoader, InputShape: in, OutputShape: out}
}

func (v *Verifier) logger() *zap.Logger {
	if v.Logger == nil {
		return zap.NewNop()
	}
	return v.Logger
}

// VerifyFile reads path from fs and verifies its content.
func (v *Verifier) VerifyFile(fs afero.Fs, path string, seed int64) Report {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return Report{Err: errors.Wrapf(err, "verify: read %s", path)}
	}
	return v.Verify(buf, seed)
}

// Verify loads buf, feeds one random input drawn uniformly from [0,1)
// with seed, and captures the output. The same buffer and seed always give
// the same report. Interpreter panics are reported, never propagated.
func (v *Verifier) Verify(buf []byte, seed int64) (r Report) {
	r.Kernel = inference.Kernel()
	defer func() {
		if p := recover(); p != nil {
			r.OK = false
			r.Err = errors.Errorf("verify: interpreter panic: %v", p)
		}
		if r.Err != nil {
			v.logger().Warn("artifact verification failed", zap.Error(r.Err))
		} else {
			v.logger().Debug("artifact verified",
				zap.Ints("input_shape", r.InputShape),
				zap.Ints("output_shape", r.OutputShape),
				zap.Float32s("output", r.Output))
		}
	}()
	r.Err = v.run(buf, seed, &r)
	r.OK = r.Err == nil
	return r
}

func (v *Verifier) run(buf []byte, seed int64, r *Report) error {
	loader := v.Loader
	if loader == nil {
		loader = inference.DefaultLoader
	}
	rt, err := loader.Load(buf)
	if err != nil {
		return errors.Wrap(err, "verify: load")
	}
	ins, outs := rt.InputDetails(), rt.OutputDetails()
	if len(ins) == 0 || len(outs) == 0 {
		return errors.Wrap(ErrShape, "no input or output tensor")
	}
	r.InputShape, r.InputType = ins[0].Shape, ins[0].DType
	r.OutputShape, r.OutputType = outs[0].Shape, outs[0].DType
	if err := expect(v.InputShape, r.InputShape, "input"); err != nil {
		return err
	}
	if err := expect(v.OutputShape, r.OutputShape, "output"); err != nil {
		return err
	}

	rnd := rand.New(rand.NewSource(seed))
	input := make([]float32, product(r.InputShape))
	for i := range input {
		input[i] = rnd.Float32()
	}
	if err := rt.SetInput(0, input); err != nil {
		return errors.Wrap(err, "verify: set input")
	}
	if err := rt.Invoke(); err != nil {
		return errors.Wrap(err, "verify: invoke")
	}
	out, err := rt.Output(0)
	if err != nil {
		return errors.Wrap(err, "verify: output")
	}
	r.Output = out
	for i, x := range out {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return errors.Wrapf(ErrNonFinite, "output %d", i)
		}
	}
	return nil
}

func expect(want, got []int, what string) error {
	if len(want) == 0 {
		return nil
	}
	if len(want) != len(got) {
		return errors.Wrapf(ErrShape, "%s %v, want %v", what, got, want)
	}
	for i := range want {
		if want[i] != got[i] {
			return errors.Wrapf(ErrShape, "%s %v, want %v", what, got, want)
		}
	}
	return nil
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}
