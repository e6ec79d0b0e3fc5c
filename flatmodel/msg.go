package flatmodel

import (
	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"
)

// The body is encoded the way msgp generates code for map encoded structs:
// field names as keys, unknown scalar keys skipped.

var errNested = errors.New("container under unknown key")

// skip passes over the value of an unknown key. Containers are refused so
// hostile nesting cannot recurse.
func skip(b []byte) ([]byte, error) {
	switch msgp.NextType(b) {
	case msgp.MapType, msgp.ArrayType:
		return b, errNested
	}
	return msgp.Skip(b)
}

func appendInts(b []byte, v []int) []byte {
	b = msgp.AppendArrayHeader(b, uint32(len(v)))
	for _, x := range v {
		b = msgp.AppendInt(b, x)
	}
	return b
}

func readInts(b []byte) (v []int, o []byte, err error) {
	sz, o, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	if int(sz) > len(o) {
		return nil, b, msgp.ErrShortBytes
	}
	if sz == 0 {
		return nil, o, nil
	}
	v = make([]int, sz)
	for i := range v {
		v[i], o, err = msgp.ReadIntBytes(o)
		if err != nil {
			return nil, b, err
		}
	}
	return v, o, nil
}

// MarshalMsg implements msgp.Marshaler
func (t *TensorSpec) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "name")
	b = msgp.AppendString(b, t.Name)
	b = msgp.AppendString(b, "shape")
	b = appendInts(b, t.Shape)
	b = msgp.AppendString(b, "dtype")
	b = msgp.AppendUint8(b, uint8(t.DType))
	return b, nil
}

// UnmarshalMsg implements msgp.Unmarshaler
func (t *TensorSpec) UnmarshalMsg(b []byte) (o []byte, err error) {
	var field []byte
	var sz uint32
	sz, b, err = msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return
	}
	for sz > 0 {
		sz--
		field, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "name":
			t.Name, b, err = msgp.ReadStringBytes(b)
		case "shape":
			t.Shape, b, err = readInts(b)
		case "dtype":
			var d uint8
			d, b, err = msgp.ReadUint8Bytes(b)
			t.DType = DType(d)
		default:
			b, err = skip(b)
		}
		if err != nil {
			return
		}
	}
	return b, nil
}

// MarshalMsg implements msgp.Marshaler
func (t *Tensor) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 5)
	b = msgp.AppendString(b, "name")
	b = msgp.AppendString(b, t.Name)
	b = msgp.AppendString(b, "shape")
	b = appendInts(b, t.Shape)
	b = msgp.AppendString(b, "dtype")
	b = msgp.AppendUint8(b, uint8(t.DType))
	b = msgp.AppendString(b, "data")
	if t.DType == Int8 {
		raw := make([]byte, len(t.Int8))
		for i, v := range t.Int8 {
			raw[i] = byte(v)
		}
		b = msgp.AppendBytes(b, raw)
	} else {
		b = msgp.AppendArrayHeader(b, uint32(len(t.Float32)))
		for _, v := range t.Float32 {
			b = msgp.AppendFloat32(b, v)
		}
	}
	b = msgp.AppendString(b, "scale")
	b = msgp.AppendFloat32(b, t.Scale)
	return b, nil
}

// UnmarshalMsg implements msgp.Unmarshaler. The dtype key precedes data.
func (t *Tensor) UnmarshalMsg(b []byte) (o []byte, err error) {
	var field []byte
	var sz uint32
	sz, b, err = msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return
	}
	for sz > 0 {
		sz--
		field, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "name":
			t.Name, b, err = msgp.ReadStringBytes(b)
		case "shape":
			t.Shape, b, err = readInts(b)
		case "dtype":
			var d uint8
			d, b, err = msgp.ReadUint8Bytes(b)
			t.DType = DType(d)
		case "data":
			b, err = t.unmarshalData(b)
		case "scale":
			t.Scale, b, err = msgp.ReadFloat32Bytes(b)
		default:
			b, err = skip(b)
		}
		if err != nil {
			return
		}
	}
	return b, nil
}

func (t *Tensor) unmarshalData(b []byte) ([]byte, error) {
	if t.DType == Int8 {
		raw, o, err := msgp.ReadBytesZC(b)
		if err != nil {
			return b, err
		}
		if len(raw) == 0 {
			return o, nil
		}
		t.Int8 = make([]int8, len(raw))
		for i, v := range raw {
			t.Int8[i] = int8(v)
		}
		return o, nil
	}
	sz, o, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if int(sz) > len(o) {
		return b, msgp.ErrShortBytes
	}
	if sz == 0 {
		return o, nil
	}
	t.Float32 = make([]float32, sz)
	for i := range t.Float32 {
		t.Float32[i], o, err = msgp.ReadFloat32Bytes(o)
		if err != nil {
			return b, err
		}
	}
	return o, nil
}

// MarshalMsg implements msgp.Marshaler
func (op *Operator) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 4)
	b = msgp.AppendString(b, "op")
	b = msgp.AppendUint8(b, uint8(op.Op))
	b = msgp.AppendString(b, "custom")
	b = msgp.AppendString(b, op.Custom)
	b = msgp.AppendString(b, "inputs")
	b = appendInts(b, op.Inputs)
	b = msgp.AppendString(b, "width")
	b = msgp.AppendInt(b, op.Width)
	return b, nil
}

// UnmarshalMsg implements msgp.Unmarshaler
func (op *Operator) UnmarshalMsg(b []byte) (o []byte, err error) {
	var field []byte
	var sz uint32
	sz, b, err = msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return
	}
	for sz > 0 {
		sz--
		field, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "op":
			var c uint8
			c, b, err = msgp.ReadUint8Bytes(b)
			op.Op = OpCode(c)
		case "custom":
			op.Custom, b, err = msgp.ReadStringBytes(b)
		case "inputs":
			op.Inputs, b, err = readInts(b)
		case "width":
			op.Width, b, err = msgp.ReadIntBytes(b)
		default:
			b, err = skip(b)
		}
		if err != nil {
			return
		}
	}
	return b, nil
}

// MarshalMsg implements msgp.Marshaler
func (m *Model) MarshalMsg(b []byte) (o []byte, err error) {
	b = msgp.AppendMapHeader(b, 7)
	b = msgp.AppendString(b, "version")
	b = msgp.AppendUint32(b, m.Version)
	b = msgp.AppendString(b, "producer")
	b = msgp.AppendString(b, m.Producer)
	b = msgp.AppendString(b, "build_id")
	b = msgp.AppendString(b, m.BuildID)
	b = msgp.AppendString(b, "input")
	if b, err = m.Input.MarshalMsg(b); err != nil {
		return
	}
	b = msgp.AppendString(b, "output")
	if b, err = m.Output.MarshalMsg(b); err != nil {
		return
	}
	b = msgp.AppendString(b, "tensors")
	b = msgp.AppendArrayHeader(b, uint32(len(m.Tensors)))
	for i := range m.Tensors {
		if b, err = m.Tensors[i].MarshalMsg(b); err != nil {
			return
		}
	}
	b = msgp.AppendString(b, "operators")
	b = msgp.AppendArrayHeader(b, uint32(len(m.Operators)))
	for i := range m.Operators {
		if b, err = m.Operators[i].MarshalMsg(b); err != nil {
			return
		}
	}
	return b, nil
}

// UnmarshalMsg implements msgp.Unmarshaler
func (m *Model) UnmarshalMsg(b []byte) (o []byte, err error) {
	var field []byte
	var sz, n uint32
	sz, b, err = msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return
	}
	for sz > 0 {
		sz--
		field, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "version":
			m.Version, b, err = msgp.ReadUint32Bytes(b)
		case "producer":
			m.Producer, b, err = msgp.ReadStringBytes(b)
		case "build_id":
			m.BuildID, b, err = msgp.ReadStringBytes(b)
		case "input":
			b, err = m.Input.UnmarshalMsg(b)
		case "output":
			b, err = m.Output.UnmarshalMsg(b)
		case "tensors":
			n, b, err = msgp.ReadArrayHeaderBytes(b)
			if err == nil && int(n) > len(b) {
				err = msgp.ErrShortBytes
			}
			if err != nil {
				return
			}
			m.Tensors = make([]Tensor, n)
			for i := range m.Tensors {
				if b, err = m.Tensors[i].UnmarshalMsg(b); err != nil {
					return
				}
			}
		case "operators":
			n, b, err = msgp.ReadArrayHeaderBytes(b)
			if err == nil && int(n) > len(b) {
				err = msgp.ErrShortBytes
			}
			if err != nil {
				return
			}
			m.Operators = make([]Operator, n)
			for i := range m.Operators {
				if b, err = m.Operators[i].UnmarshalMsg(b); err != nil {
					return
				}
			}
		default:
			b, err = skip(b)
		}
		if err != nil {
			return
		}
	}
	return b, nil
}
