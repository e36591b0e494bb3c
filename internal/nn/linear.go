package nn

import (
	"math/rand"

	"tagforge/internal/tensor"
)

// Linear is a fully connected layer y = xW + b.
type Linear struct {
	W *tensor.Node
	B *tensor.Node
}

// NewLinear initializes the layer with Glorot-uniform weights and zero bias.
func NewLinear(inSize, outSize int, rng *rand.Rand) *Linear {
	return &Linear{
		W: tensor.Xavier(inSize, outSize, rng),
		B: tensor.Zeros(1, outSize, true),
	}
}

// Forward applies the layer to a (batch, in) input.
func (l *Linear) Forward(x *tensor.Node) *tensor.Node {
	return tensor.AddBias(tensor.MatMul(x, l.W), l.B)
}

// Params returns the trainable parameters.
func (l *Linear) Params() []*tensor.Node {
	return []*tensor.Node{l.W, l.B}
}
