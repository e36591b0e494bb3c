package nn

import (
	"math"
	"math/rand"

	"tagforge/internal/tensor"
)

// GRUCell is a single-layer gated recurrent unit computing one batch-first
// timestep. Gate layout follows the reset/update/new convention with
// separate input-side and hidden-side biases, so the reset gate also scales
// the hidden-side bias of the candidate state.
type GRUCell struct {
	InSize     int
	HiddenSize int

	Wr, Wz, Wn    *tensor.Node // input weights, in×H
	Ur, Uz, Un    *tensor.Node // hidden weights, H×H
	Bir, Biz, Bin *tensor.Node
	Bhr, Bhz, Bhn *tensor.Node
}

// NewGRUCell initializes all weights uniformly in ±1/sqrt(hidden).
func NewGRUCell(inSize, hiddenSize int, rng *rand.Rand) *GRUCell {
	scale := 1 / math.Sqrt(float64(hiddenSize))
	w := func(r, c int) *tensor.Node { return tensor.Uniform(r, c, scale, rng) }
	return &GRUCell{
		InSize:     inSize,
		HiddenSize: hiddenSize,
		Wr:         w(inSize, hiddenSize),
		Wz:         w(inSize, hiddenSize),
		Wn:         w(inSize, hiddenSize),
		Ur:         w(hiddenSize, hiddenSize),
		Uz:         w(hiddenSize, hiddenSize),
		Un:         w(hiddenSize, hiddenSize),
		Bir:        w(1, hiddenSize),
		Biz:        w(1, hiddenSize),
		Bin:        w(1, hiddenSize),
		Bhr:        w(1, hiddenSize),
		Bhz:        w(1, hiddenSize),
		Bhn:        w(1, hiddenSize),
	}
}

// InitHidden returns a zero hidden state for the given batch size.
func (c *GRUCell) InitHidden(batchSize int) *tensor.Node {
	return tensor.Zeros(batchSize, c.HiddenSize, false)
}

// Step advances the cell by one timestep: (x, h) → h'.
func (c *GRUCell) Step(x, h *tensor.Node) *tensor.Node {
	r := tensor.Sigmoid(tensor.Add(
		tensor.AddBias(tensor.MatMul(x, c.Wr), c.Bir),
		tensor.AddBias(tensor.MatMul(h, c.Ur), c.Bhr),
	))
	z := tensor.Sigmoid(tensor.Add(
		tensor.AddBias(tensor.MatMul(x, c.Wz), c.Biz),
		tensor.AddBias(tensor.MatMul(h, c.Uz), c.Bhz),
	))
	n := tensor.Tanh(tensor.Add(
		tensor.AddBias(tensor.MatMul(x, c.Wn), c.Bin),
		tensor.Mul(r, tensor.AddBias(tensor.MatMul(h, c.Un), c.Bhn)),
	))
	return tensor.Add(tensor.Mul(tensor.OneMinus(z), n), tensor.Mul(z, h))
}

// Params returns all trainable parameters of the cell.
func (c *GRUCell) Params() []*tensor.Node {
	return []*tensor.Node{
		c.Wr, c.Wz, c.Wn,
		c.Ur, c.Uz, c.Un,
		c.Bir, c.Biz, c.Bin,
		c.Bhr, c.Bhz, c.Bhn,
	}
}
