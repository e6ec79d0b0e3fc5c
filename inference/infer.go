// Package inference runs flat model buffers
package inference

import (
	"math"

	"github.com/pkg/errors"

	"github.com/neurlang/tripmodel/flatmodel"
)

var (
	ErrIndex          = errors.New("inference: tensor index out of range")
	ErrInputSize      = errors.New("inference: input size mismatch")
	ErrNotInvoked     = errors.New("inference: output read before invoke")
	ErrUnsupportedOp  = errors.New("inference: unsupported operator")
	ErrInputUnsettled = errors.New("inference: input not set")
)

// TensorDetails describes a graph input or output.
type TensorDetails struct {
	Name  string
	Shape []int
	DType flatmodel.DType
}

// Runtime is a loaded model ready to run.
type Runtime interface {
	InputDetails() []TensorDetails
	OutputDetails() []TensorDetails
	SetInput(i int, data []float32) error
	Invoke() error
	Output(i int) ([]float32, error)
}

// Loader turns an artifact into a Runtime.
type Loader interface {
	Load(buf []byte) (Runtime, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(buf []byte) (Runtime, error)

// Load calls f.
func (f LoaderFunc) Load(buf []byte) (Runtime, error) {
	return f(buf)
}

// DefaultLoader loads buffers into an Interpreter.
var DefaultLoader Loader = LoaderFunc(func(buf []byte) (Runtime, error) {
	return New(buf)
})

// Interpreter executes a flat model sequentially in float32.
type Interpreter struct {
	model   *flatmodel.Model
	weights [][]float32
	input   []float32
	output  []float32
}

// New decodes buf and prepares its tensors, dequantizing int8 data.
func New(buf []byte) (*Interpreter, error) {
	m, err := flatmodel.Decode(buf)
	if err != nil {
		return nil, err
	}
	for _, op := range m.Operators {
		if op.Op == flatmodel.OpCustom {
			return nil, errors.Wrapf(ErrUnsupportedOp, "%v %q", op.Op, op.Custom)
		}
	}
	in := &Interpreter{model: m, weights: make([][]float32, len(m.Tensors))}
	for i := range m.Tensors {
		in.weights[i] = m.Tensors[i].Values()
	}
	return in, nil
}

func details(s flatmodel.TensorSpec) []TensorDetails {
	return []TensorDetails{{Name: s.Name, Shape: append([]int(nil), s.Shape...), DType: s.DType}}
}

func (in *Interpreter) InputDetails() []TensorDetails  { return details(in.model.Input) }
func (in *Interpreter) OutputDetails() []TensorDetails { return details(in.model.Output) }

// SetInput copies data into input i.
func (in *Interpreter) SetInput(i int, data []float32) error {
	if i != 0 {
		return errors.Wrapf(ErrIndex, "input %d", i)
	}
	if len(data) != in.model.Input.Elements() {
		return errors.Wrapf(ErrInputSize, "got %d values, want %d", len(data), in.model.Input.Elements())
	}
	in.input = append(in.input[:0], data...)
	in.output = nil
	return nil
}

// Invoke runs every operator on the current input.
func (in *Interpreter) Invoke() error {
	if in.input == nil {
		return ErrInputUnsettled
	}
	x := append([]float32(nil), in.input...)
	for _, op := range in.model.Operators {
		switch op.Op {
		case flatmodel.OpFullyConnected:
			y := make([]float32, op.Width)
			fullyConnected(y, x, in.weights[op.Inputs[0]], in.weights[op.Inputs[1]])
			x = y
		case flatmodel.OpMul:
			for j, v := range in.weights[op.Inputs[0]] {
				x[j] *= v
			}
		case flatmodel.OpAdd:
			for j, v := range in.weights[op.Inputs[0]] {
				x[j] += v
			}
		case flatmodel.OpRelu, flatmodel.OpLogistic, flatmodel.OpTanh, flatmodel.OpGelu:
			fn := unary(op.Op)
			for j, v := range x {
				x[j] = fn(v)
			}
		default:
			return errors.Wrapf(ErrUnsupportedOp, "%v", op.Op)
		}
	}
	in.output = x
	return nil
}

// Output returns a copy of output i from the last Invoke.
func (in *Interpreter) Output(i int) ([]float32, error) {
	if i != 0 {
		return nil, errors.Wrapf(ErrIndex, "output %d", i)
	}
	if in.output == nil {
		return nil, ErrNotInvoked
	}
	return append([]float32(nil), in.output...), nil
}

func unary(op flatmodel.OpCode) func(float32) float32 {
	switch op {
	case flatmodel.OpRelu:
		return func(v float32) float32 {
			if v < 0 {
				return 0
			}
			return v
		}
	case flatmodel.OpLogistic:
		return func(v float32) float32 {
			if v >= 0 {
				return float32(1 / (1 + math.Exp(-float64(v))))
			}
			e := math.Exp(float64(v))
			return float32(e / (1 + e))
		}
	case flatmodel.OpTanh:
		return func(v float32) float32 {
			return float32(math.Tanh(float64(v)))
		}
	}
	return func(v float32) float32 {
		x := float64(v)
		return float32(0.5 * x * (1 + math.Tanh(math.Sqrt(2/math.Pi)*(x+0.044715*x*x*x))))
	}
}
