package inference

import (
	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// fullyConnected computes out = in·kernel + bias for a row-major
// len(in)×len(out) kernel.
var fullyConnected func(out, in, kernel, bias []float32)

var kernelName string

func init() {
	selectKernel(cpuid.CPU.Supports(cpuid.SSE, cpuid.SSE2))
}

// selectKernel picks the gonum blas32 kernel, backed by gonum's float32 SIMD
// assembly on x86, when the CPU has SSE2. Other CPUs use the scalar loop.
func selectKernel(simd bool) {
	if simd {
		fullyConnected = fullyConnectedBLAS
		kernelName = "blas32"
	} else {
		fullyConnected = fullyConnectedGeneric
		kernelName = "generic"
	}
}

// Kernel names the fully connected kernel selected for this CPU.
func Kernel() string {
	return kernelName
}

func fullyConnectedGeneric(out, in, kernel, bias []float32) {
	copy(out, bias)
	for i, x := range in {
		row := kernel[i*len(out) : (i+1)*len(out)]
		for j, w := range row {
			out[j] += x * w
		}
	}
}

func fullyConnectedBLAS(out, in, kernel, bias []float32) {
	copy(out, bias)
	if len(in) == 0 || len(out) == 0 {
		return
	}
	a := blas32.General{Rows: len(in), Cols: len(out), Stride: len(out), Data: kernel}
	x := blas32.Vector{N: len(in), Inc: 1, Data: in}
	y := blas32.Vector{N: len(out), Inc: 1, Data: out}
	// out = kernelᵀ·in + out
	blas32.Gemv(blas.Trans, 1, a, x, 1, y)
}
