// Package convert compiles trained networks into flat model buffers
package convert

import (
	"math"
	"strconv"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/neurlang/tripmodel/datasets/trips"
	"github.com/neurlang/tripmodel/flatmodel"
	"github.com/neurlang/tripmodel/layer"
	"github.com/neurlang/tripmodel/layer/activation"
	"github.com/neurlang/tripmodel/layer/batchnorm"
	"github.com/neurlang/tripmodel/layer/dense"
	"github.com/neurlang/tripmodel/layer/dropout"
)

// Model is the graph a compiler reads.
type Model interface {
	Layers() []layer.Layer
	InputSize() int
	OutputSize() int
}

// Compiler turns a model into a serialized artifact under cfg.
type Compiler interface {
	Compile(m Model, cfg Config) ([]byte, error)
}

// Converter is the in-process Compiler.
type Converter struct {
	Producer string
	Input    int
	Output   int
}

// New returns a converter for the trip model shape.
func New() *Converter {
	return &Converter{
		Producer: "tripmodel",
		Input:    trips.NumFeatures,
		Output:   trips.NumLabels,
	}
}

// Compile lowers m and encodes it.
func (c *Converter) Compile(m Model, cfg Config) ([]byte, error) {
	fm, err := c.Lower(m, cfg)
	if err != nil {
		return nil, err
	}
	return flatmodel.Encode(fm)
}

type lowering struct {
	cfg   Config
	model *flatmodel.Model
	width int
}

// Lower translates m into a flat model without encoding it.
func (c *Converter) Lower(m Model, cfg Config) (*flatmodel.Model, error) {
	if m == nil || len(m.Layers()) == 0 {
		return nil, reject(-1, "empty graph")
	}
	if m.InputSize() != c.Input || m.OutputSize() != c.Output {
		return nil, reject(-1, "model maps %d to %d, want %d to %d",
			m.InputSize(), m.OutputSize(), c.Input, c.Output)
	}
	lo := &lowering{
		cfg: cfg,
		model: &flatmodel.Model{
			Version:  flatmodel.Version,
			Producer: c.Producer,
			BuildID:  uuid.New().String(),
			Input:    flatmodel.TensorSpec{Name: "features", Shape: []int{1, c.Input}, DType: flatmodel.Float32},
			Output:   flatmodel.TensorSpec{Name: "probabilities", Shape: []int{1, c.Output}, DType: flatmodel.Float32},
		},
		width: c.Input,
	}
	for i, l := range m.Layers() {
		if err := lo.layer(i, l); err != nil {
			return nil, err
		}
	}
	if len(lo.model.Operators) == 0 {
		return nil, reject(-1, "graph has no operators")
	}
	return lo.model, nil
}

func (lo *lowering) layer(i int, l layer.Layer) error {
	if l.InputSize() != lo.width {
		return reject(i, "expects width %d, got %d", l.InputSize(), lo.width)
	}
	switch l := l.(type) {
	case *dropout.Dropout:
		return nil
	case *dense.Dense:
		k, err := lo.kernel(i, l.Kernel())
		if err != nil {
			return err
		}
		b, err := lo.vector(i, "bias", l.Bias())
		if err != nil {
			return err
		}
		if err := lo.op(i, flatmodel.Operator{Op: flatmodel.OpFullyConnected, Inputs: []int{k, b}, Width: l.OutputSize()}); err != nil {
			return err
		}
		return lo.activation(i, l.Activation())
	case *batchnorm.BatchNorm:
		scale, shift := l.Affine()
		s, err := lo.vector(i, "scale", mat.NewDense(1, len(scale), scale))
		if err != nil {
			return err
		}
		t, err := lo.vector(i, "shift", mat.NewDense(1, len(shift), shift))
		if err != nil {
			return err
		}
		if err := lo.op(i, flatmodel.Operator{Op: flatmodel.OpMul, Inputs: []int{s}, Width: lo.width}); err != nil {
			return err
		}
		return lo.op(i, flatmodel.Operator{Op: flatmodel.OpAdd, Inputs: []int{t}, Width: lo.width})
	case *activation.Activation:
		return lo.activation(i, l.Func())
	default:
		return lo.op(i, flatmodel.Operator{Op: flatmodel.OpCustom, Custom: string(l.Kind()), Width: l.OutputSize()})
	}
}

func (lo *lowering) activation(i int, fn activation.Func) error {
	var op flatmodel.OpCode
	switch fn {
	case activation.Linear:
		return nil
	case activation.ReLU:
		op = flatmodel.OpRelu
	case activation.Sigmoid:
		op = flatmodel.OpLogistic
	case activation.Tanh:
		op = flatmodel.OpTanh
	case activation.GELU:
		op = flatmodel.OpGelu
	default:
		return lo.op(i, flatmodel.Operator{Op: flatmodel.OpCustom, Custom: string(fn), Width: lo.width})
	}
	return lo.op(i, flatmodel.Operator{Op: op, Width: lo.width})
}

func (lo *lowering) op(i int, op flatmodel.Operator) error {
	if op.Op == flatmodel.OpCustom {
		if !lo.cfg.AllowCustomOps {
			return reject(i, "custom op %q not allowed", op.Custom)
		}
	} else if !lo.cfg.OpSet.Contains(op.Op) {
		return reject(i, "op %v not in target op set", op.Op)
	}
	lo.model.Operators = append(lo.model.Operators, op)
	lo.width = op.Width
	return nil
}

func (lo *lowering) values(i int, name string, m mat.Matrix) ([]float32, []int, error) {
	r, c := m.Dims()
	o := make([]float32, 0, r*c)
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			v := float32(m.At(y, x))
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, nil, reject(i, "non-finite %s weight at %d,%d", name, y, x)
			}
			o = append(o, v)
		}
	}
	return o, []int{r, c}, nil
}

func (lo *lowering) vector(i int, name string, m mat.Matrix) (int, error) {
	v, _, err := lo.values(i, name, m)
	if err != nil {
		return 0, err
	}
	return lo.tensor(flatmodel.Tensor{Shape: []int{len(v)}, DType: flatmodel.Float32, Float32: v}, i, name), nil
}

func (lo *lowering) kernel(i int, m mat.Matrix) (int, error) {
	v, shape, err := lo.values(i, "kernel", m)
	if err != nil {
		return 0, err
	}
	t := flatmodel.Tensor{Shape: shape, DType: flatmodel.Float32, Float32: v}
	if lo.cfg.Precision == DynamicRangeInt8 {
		t = quantize(shape, v)
	}
	return lo.tensor(t, i, "kernel"), nil
}

func (lo *lowering) tensor(t flatmodel.Tensor, i int, name string) int {
	t.Name = name + "_" + strconv.Itoa(i)
	lo.model.Tensors = append(lo.model.Tensors, t)
	return len(lo.model.Tensors) - 1
}

// quantize maps values symmetrically onto [-127, 127].
func quantize(shape []int, v []float32) flatmodel.Tensor {
	var peak float32
	for _, x := range v {
		if x < 0 {
			x = -x
		}
		if x > peak {
			peak = x
		}
	}
	scale := peak / 127
	if scale == 0 {
		scale = 1
	}
	q := make([]int8, len(v))
	for i, x := range v {
		r := math.Round(float64(x / scale))
		if r > 127 {
			r = 127
		} else if r < -127 {
			r = -127
		}
		q[i] = int8(r)
	}
	return flatmodel.Tensor{Shape: shape, DType: flatmodel.Int8, Int8: q, Scale: scale}
}
