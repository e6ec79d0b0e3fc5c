// Package layer defines the layer interface shared by the network, the trainer and the converter
package layer

import "gonum.org/v1/gonum/mat"

// Kind names the family of a layer.
type Kind string

const (
	KindDense      Kind = "dense"
	KindBatchNorm  Kind = "batchnorm"
	KindDropout    Kind = "dropout"
	KindActivation Kind = "activation"
)

// Param is one tensor owned by a layer. Grad is nil for state which is
// not trained by the optimizer (for example moving statistics).
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// Trainable reports whether the optimizer should update the param.
func (p Param) Trainable() bool {
	return p.Grad != nil
}

// Layer is a single transformation of a batch of row vectors.
type Layer interface {

	// Kind reports the family of the layer.
	Kind() Kind

	// InputSize is the width of the rows accepted by Forward.
	InputSize() int

	// OutputSize is the width of the rows returned by Forward.
	OutputSize() int

	// Forward transforms the batch x. In training mode the layer caches
	// what Backward needs. With training false the layer is not mutated,
	// so inference may run concurrently.
	Forward(x *mat.Dense, training bool) *mat.Dense

	// Backward receives the loss gradient with respect to the output of the
	// last training Forward, stores parameter gradients and returns the
	// gradient with respect to the input.
	Backward(grad *mat.Dense) *mat.Dense

	// Params lists the tensors owned by the layer.
	Params() []Param

	// Clone returns an independent copy of the layer.
	Clone() Layer
}
