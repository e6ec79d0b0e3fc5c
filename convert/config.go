package convert

import "github.com/neurlang/tripmodel/flatmodel"

// OpSet is the set of operators a target runtime supports.
type OpSet []flatmodel.OpCode

// Contains reports whether op is in the set.
func (s OpSet) Contains(op flatmodel.OpCode) bool {
	for _, o := range s {
		if o == op {
			return true
		}
	}
	return false
}

// BaselineOps is what every deployed interpreter runs.
func BaselineOps() OpSet {
	return OpSet{
		flatmodel.OpFullyConnected,
		flatmodel.OpRelu,
		flatmodel.OpLogistic,
		flatmodel.OpTanh,
		flatmodel.OpMul,
		flatmodel.OpAdd,
	}
}

// ExtendedOps adds operators only recent interpreters provide.
func ExtendedOps() OpSet {
	return append(BaselineOps(), flatmodel.OpGelu)
}

// Precision selects how weights are stored.
type Precision int

const (
	// Float32 stores every tensor as float32.
	Float32 Precision = iota
	// DynamicRangeInt8 stores fully connected kernels as int8 with a
	// per-tensor scale, activations stay float32.
	DynamicRangeInt8
)

func (p Precision) String() string {
	if p == DynamicRangeInt8 {
		return "dynamic-range-int8"
	}
	return "float32"
}

// Config restricts what the compiler may emit.
type Config struct {
	OpSet          OpSet
	Precision      Precision
	AllowCustomOps bool
}

// BaselineConfig is baseline ops, float32 weights and no custom ops.
func BaselineConfig() Config {
	return Config{OpSet: BaselineOps(), Precision: Float32}
}
