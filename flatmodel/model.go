// Package flatmodel defines the portable trip model artifact format
package flatmodel

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrFormat is returned for buffers that are not valid flat models.
var ErrFormat = errors.New("flatmodel: invalid format")

// Version of the body layout written by Encode.
const Version = 1

// DType is the element type of a tensor.
type DType uint8

const (
	Float32 DType = 1
	Int8    DType = 2
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Int8:
		return "int8"
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// Valid reports whether d is a known element type.
func (d DType) Valid() bool {
	return d == Float32 || d == Int8
}

// OpCode identifies an operator.
type OpCode uint8

const (
	OpFullyConnected OpCode = iota + 1
	OpRelu
	OpLogistic
	OpTanh
	OpMul
	OpAdd
	OpGelu
	OpCustom
)

var opNames = map[OpCode]string{
	OpFullyConnected: "FULLY_CONNECTED",
	OpRelu:           "RELU",
	OpLogistic:       "LOGISTIC",
	OpTanh:           "TANH",
	OpMul:            "MUL",
	OpAdd:            "ADD",
	OpGelu:           "GELU",
	OpCustom:         "CUSTOM",
}

func (o OpCode) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("OP(%d)", uint8(o))
}

// Valid reports whether o is a known operator code.
func (o OpCode) Valid() bool {
	_, ok := opNames[o]
	return ok
}

// Operands is the number of constant tensors the operator consumes.
func (o OpCode) Operands() int {
	switch o {
	case OpFullyConnected:
		return 2
	case OpMul, OpAdd:
		return 1
	}
	return 0
}

// TensorSpec describes a graph input or output.
type TensorSpec struct {
	Name  string
	Shape []int
	DType DType
}

// Elements is the product of the shape dimensions.
func (t TensorSpec) Elements() int {
	return elements(t.Shape)
}

// Tensor is a constant operand. Float32 tensors carry Float32 data, Int8
// tensors carry Int8 data whose real value is Int8[i]*Scale.
type Tensor struct {
	Name    string
	Shape   []int
	DType   DType
	Float32 []float32
	Int8    []int8
	Scale   float32
}

// Len is the number of stored elements.
func (t *Tensor) Len() int {
	if t.DType == Int8 {
		return len(t.Int8)
	}
	return len(t.Float32)
}

// Values returns the tensor as float32, dequantizing int8 data.
func (t *Tensor) Values() []float32 {
	if t.DType != Int8 {
		return t.Float32
	}
	o := make([]float32, len(t.Int8))
	for i, v := range t.Int8 {
		o[i] = float32(v) * t.Scale
	}
	return o
}

// Operator transforms the running activation. Inputs index constant
// tensors, Width is the activation width after the operator.
type Operator struct {
	Op     OpCode
	Custom string
	Inputs []int
	Width  int
}

// Model is a sequential graph: the input flows through Operators in order.
type Model struct {
	Version   uint32
	Producer  string
	BuildID   string
	Input     TensorSpec
	Output    TensorSpec
	Tensors   []Tensor
	Operators []Operator
}

const maxElements = 1 << 24

func elements(shape []int) int {
	n := 1
	for _, d := range shape {
		if d <= 0 || d > maxElements || n > maxElements/d {
			return -1
		}
		n *= d
	}
	return n
}

// Validate checks the graph is consistent: tensor data matches shapes,
// operands exist and widths chain from input to output.
func (m *Model) Validate() error {
	if m.Version != Version {
		return errors.Wrapf(ErrFormat, "version %d", m.Version)
	}
	for _, spec := range []TensorSpec{m.Input, m.Output} {
		if !spec.DType.Valid() || spec.Elements() <= 0 {
			return errors.Wrapf(ErrFormat, "tensor spec %q", spec.Name)
		}
	}
	for i := range m.Tensors {
		t := &m.Tensors[i]
		if !t.DType.Valid() {
			return errors.Wrapf(ErrFormat, "tensor %q: %v", t.Name, t.DType)
		}
		if n := elements(t.Shape); n <= 0 || n != t.Len() {
			return errors.Wrapf(ErrFormat, "tensor %q: %d values for shape %v", t.Name, t.Len(), t.Shape)
		}
	}
	if len(m.Operators) == 0 {
		return errors.Wrap(ErrFormat, "empty graph")
	}
	width := m.Input.Elements()
	for i, op := range m.Operators {
		if !op.Op.Valid() {
			return errors.Wrapf(ErrFormat, "operator %d: %v", i, op.Op)
		}
		if op.Op != OpCustom && len(op.Inputs) != op.Op.Operands() {
			return errors.Wrapf(ErrFormat, "operator %d %v: %d operands", i, op.Op, len(op.Inputs))
		}
		for _, in := range op.Inputs {
			if in < 0 || in >= len(m.Tensors) {
				return errors.Wrapf(ErrFormat, "operator %d %v: tensor %d out of range", i, op.Op, in)
			}
		}
		switch op.Op {
		case OpFullyConnected:
			k, b := &m.Tensors[op.Inputs[0]], &m.Tensors[op.Inputs[1]]
			if len(k.Shape) != 2 || k.Shape[0] != width || k.Shape[1] != op.Width || b.Len() != op.Width {
				return errors.Wrapf(ErrFormat, "operator %d %v: kernel %v bias %v for %d->%d",
					i, op.Op, k.Shape, b.Shape, width, op.Width)
			}
		case OpMul, OpAdd:
			if m.Tensors[op.Inputs[0]].Len() != width || op.Width != width {
				return errors.Wrapf(ErrFormat, "operator %d %v: width mismatch", i, op.Op)
			}
		case OpCustom:
			if op.Width <= 0 {
				return errors.Wrapf(ErrFormat, "operator %d %v: width %d", i, op.Op, op.Width)
			}
		default:
			if op.Width != width {
				return errors.Wrapf(ErrFormat, "operator %d %v: width mismatch", i, op.Op)
			}
		}
		width = op.Width
	}
	if width != m.Output.Elements() {
		return errors.Wrapf(ErrFormat, "graph yields %d values, output %v", width, m.Output.Shape)
	}
	return nil
}
