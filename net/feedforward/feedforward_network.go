// Package feedforward implements a feedforward network type
package feedforward

import "fmt"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "github.com/neurlang/tripmodel/layer"

// FeedforwardNetwork is the feedforward network: an ordered stack of layers
// where each layer consumes the output of the previous one.
type FeedforwardNetwork struct {
	layers []layer.Layer
}

// NewLayer appends a layer to the end of network. The layer input width must
// match the current network output width.
func (f *FeedforwardNetwork) NewLayer(l layer.Layer) error {
	if l == nil {
		return errors.New("feedforward: nil layer")
	}
	if len(f.layers) > 0 && f.OutputSize() != l.InputSize() {
		return errors.Errorf("feedforward: layer %d (%s) expects %d inputs, network produces %d",
			len(f.layers), l.Kind(), l.InputSize(), f.OutputSize())
	}
	f.layers = append(f.layers, l)
	return nil
}

// MustNewLayer is NewLayer which panics on error.
func (f *FeedforwardNetwork) MustNewLayer(l layer.Layer) {
	if err := f.NewLayer(l); err != nil {
		panic(err.Error())
	}
}

// Len returns the number of trainable scalars inside the network.
func (f FeedforwardNetwork) Len() (o int) {
	for _, p := range f.Params() {
		if p.Trainable() {
			r, c := p.Value.Dims()
			o += r * c
		}
	}
	return
}

// LenLayers returns the number of layers.
func (f FeedforwardNetwork) LenLayers() int {
	return len(f.layers)
}

// GetLayer gets the n-th layer. Returns nil on failure.
func (f FeedforwardNetwork) GetLayer(n int) layer.Layer {
	if n < 0 || n >= len(f.layers) {
		return nil
	}
	return f.layers[n]
}

// Layers returns the layers in order.
func (f FeedforwardNetwork) Layers() []layer.Layer {
	return f.layers
}

// InputSize reports the width of a network input row, 0 when empty.
func (f FeedforwardNetwork) InputSize() int {
	if len(f.layers) == 0 {
		return 0
	}
	return f.layers[0].InputSize()
}

// OutputSize reports the width of a network output row, 0 when empty.
func (f FeedforwardNetwork) OutputSize() int {
	if len(f.layers) == 0 {
		return 0
	}
	return f.layers[len(f.layers)-1].OutputSize()
}

// Forward runs the batch x through every layer.
func (f *FeedforwardNetwork) Forward(x *mat.Dense, training bool) *mat.Dense {
	out := x
	for _, l := range f.layers {
		out = l.Forward(out, training)
	}
	return out
}

// Backward propagates the loss gradient of the last training Forward back
// through the network, leaving parameter gradients in each layer.
func (f *FeedforwardNetwork) Backward(grad *mat.Dense) {
	for i := len(f.layers) - 1; i >= 0; i-- {
		grad = f.layers[i].Backward(grad)
	}
}

// Predict runs the batch x in inference mode.
func (f *FeedforwardNetwork) Predict(x *mat.Dense) *mat.Dense {
	return f.Forward(x, false)
}

// Infer infers the network output of a single input vector.
func (f *FeedforwardNetwork) Infer(input []float64) []float64 {
	x := mat.NewDense(1, len(input), append([]float64(nil), input...))
	return mat.Row(nil, 0, f.Predict(x))
}

// Params lists the tensors of all layers, in layer order.
func (f FeedforwardNetwork) Params() (o []layer.Param) {
	for _, l := range f.layers {
		o = append(o, l.Params()...)
	}
	return
}

// Snapshot copies the current value of every param.
func (f FeedforwardNetwork) Snapshot() (o []*mat.Dense) {
	for _, p := range f.Params() {
		o = append(o, mat.DenseCopyOf(p.Value))
	}
	return
}

// Restore writes a Snapshot back into the params.
func (f *FeedforwardNetwork) Restore(snapshot []*mat.Dense) error {
	params := f.Params()
	if len(params) != len(snapshot) {
		return errors.Errorf("feedforward: snapshot has %d tensors, network %d", len(snapshot), len(params))
	}
	for i, p := range params {
		r, c := p.Value.Dims()
		sr, sc := snapshot[i].Dims()
		if r != sr || c != sc {
			return errors.Errorf("feedforward: snapshot tensor %d is %dx%d, want %dx%d", i, sr, sc, r, c)
		}
		p.Value.Copy(snapshot[i])
	}
	return nil
}

// Clone returns a fresh mutable copy of the network.
func (f FeedforwardNetwork) Clone() *FeedforwardNetwork {
	o := &FeedforwardNetwork{layers: make([]layer.Layer, len(f.layers))}
	for i, l := range f.layers {
		o.layers[i] = l.Clone()
	}
	return o
}

// String summarizes the layer stack.
func (f FeedforwardNetwork) String() (s string) {
	for i, l := range f.layers {
		if i > 0 {
			s += " -> "
		}
		s += fmt.Sprintf("%s(%d)", l.Kind(), l.OutputSize())
	}
	return
}
