package nn

import (
	"gonum.org/v1/gonum/mat"

	"tagforge/internal/tensor"
)

const (
	bnEps      = 1e-5
	bnMomentum = 0.1
)

// BatchNorm normalizes a (batch, hidden) activation as a single-channel 2-D
// feature map: one scalar mean and variance across every element, one learned
// scale and shift. Training uses batch statistics and maintains running
// statistics for eval mode; a training batch therefore needs more than one
// element to produce a usable variance.
type BatchNorm struct {
	Gamma *tensor.Node
	Beta  *tensor.Node

	// running holds [mean, variance] for eval mode.
	running *mat.Dense
}

// NewBatchNorm returns a layer with identity scale and zero shift.
func NewBatchNorm() *BatchNorm {
	return &BatchNorm{
		Gamma:   tensor.FromSlice(1, 1, []float64{1}, true),
		Beta:    tensor.Zeros(1, 1, true),
		running: mat.NewDense(1, 2, []float64{0, 1}),
	}
}

// Running exposes the running [mean, variance] row for checkpointing.
func (b *BatchNorm) Running() *mat.Dense { return b.running }

// Forward normalizes x. In training mode the batch statistics are used and
// folded into the running statistics; in eval mode the running statistics
// apply and the normalization is a fixed affine map.
func (b *BatchNorm) Forward(x *tensor.Node, training bool) *tensor.Node {
	if !training {
		return tensor.Normalize(x, b.Gamma, b.Beta, b.running.At(0, 0), b.running.At(0, 1), bnEps, false)
	}

	r, c := x.Dims()
	n := float64(r * c)
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum += x.Value.At(i, j)
		}
	}
	mean := sum / n
	variance := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := x.Value.At(i, j) - mean
			variance += d * d
		}
	}
	variance /= n

	// Running stats track the unbiased variance.
	unbiased := variance
	if n > 1 {
		unbiased = variance * n / (n - 1)
	}
	b.running.Set(0, 0, (1-bnMomentum)*b.running.At(0, 0)+bnMomentum*mean)
	b.running.Set(0, 1, (1-bnMomentum)*b.running.At(0, 1)+bnMomentum*unbiased)

	return tensor.Normalize(x, b.Gamma, b.Beta, mean, variance, bnEps, true)
}

// Params returns the trainable parameters.
func (b *BatchNorm) Params() []*tensor.Node {
	return []*tensor.Node{b.Gamma, b.Beta}
}
